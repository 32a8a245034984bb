package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog/hlog"

	contractx "github.com/tanpawarit/pronto-relay/agent/contract"
	"github.com/tanpawarit/pronto-relay/pkg/sse"
)

const maxChatBodyBytes = 1 << 20

type chatRequest struct {
	Message json.RawMessage `json:"message"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

type statusResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	logger := hlog.FromRequest(r)

	message, status, err := decodeChatRequest(w, r)
	if err != nil {
		logger.Debug().Err(err).Int("status", status).Msg("rejected chat request")
		writeJSON(w, status, errorResponse{Detail: err.Error()})
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	events, err := s.runtime.Run(ctx, []contractx.Message{contractx.UserMessage(message)})
	if err != nil {
		logger.Error().Err(err).Msg("agent run did not start")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Detail: err.Error()})
		return
	}

	stream := sse.NewStream(w)
	frames := 0
	for evt := range events {
		switch evt.Kind {
		case contractx.EventError:
			detail := "agent run failed"
			if evt.Err != nil {
				detail = evt.Err.Error()
			}
			logger.Warn().Err(evt.Err).Int("frames", frames).Msg("agent run failed mid-stream")
			if err := stream.SendError(detail); err != nil {
				return
			}
			_ = stream.Done()
			return
		case contractx.EventMessage:
			if !evt.HasText() {
				continue
			}
			if err := stream.SendContent(evt.Content()); err != nil {
				logger.Debug().Err(err).Msg("client went away")
				return
			}
			frames++
		}
	}

	if err := stream.Done(); err != nil {
		logger.Debug().Err(err).Msg("client went away")
		return
	}
	logger.Debug().Int("frames", frames).Msg("chat stream finished")
}

func decodeChatRequest(w http.ResponseWriter, r *http.Request) (string, int, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxChatBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return "", http.StatusRequestEntityTooLarge, errors.New("request body too large")
		}
		return "", http.StatusBadRequest, errors.New("could not read request body")
	}

	var req chatRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return "", http.StatusUnprocessableEntity, errors.New("request body must be a JSON object")
	}
	if len(req.Message) == 0 || string(req.Message) == "null" {
		return "", http.StatusUnprocessableEntity, errors.New("field required: message")
	}

	var message string
	if err := json.Unmarshal(req.Message, &message); err != nil {
		return "", http.StatusUnprocessableEntity, errors.New("message must be a string")
	}
	if strings.TrimSpace(message) == "" {
		return "", http.StatusUnprocessableEntity, errors.New("message must not be blank")
	}
	return message, 0, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Detail: "readiness check not configured"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()
	if err := s.ready.Check(ctx); err != nil {
		hlog.FromRequest(r).Warn().Err(err).Msg("not ready")
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Detail: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "ready"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
