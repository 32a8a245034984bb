package sse

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
)

const doneFrame = "data: [DONE]\n\n"

// Stream writes chat frames to an HTTP client. Every frame is flushed as
// soon as it is written.
type Stream struct {
	w     io.Writer
	flush func()
	mu    sync.Mutex
	done  bool
}

// NewStream sets the event-stream headers on w. Headers are sent with the
// first frame.
func NewStream(w http.ResponseWriter) *Stream {
	headers := w.Header()
	headers.Set("Content-Type", "text/event-stream")
	headers.Set("Cache-Control", "no-cache")
	headers.Set("Connection", "keep-alive")
	headers.Set("X-Accel-Buffering", "no")

	var flushFn func()
	if f, ok := w.(http.Flusher); ok {
		flushFn = f.Flush
	}

	return &Stream{w: w, flush: flushFn}
}

// NewStreamWriter wraps a plain writer, mostly for tests.
func NewStreamWriter(w io.Writer) *Stream {
	return &Stream{w: w}
}

func (s *Stream) SendContent(content string) error {
	return s.sendJSON(struct {
		Content string `json:"content"`
	}{Content: content})
}

func (s *Stream) SendError(msg string) error {
	return s.sendJSON(struct {
		Error string `json:"error"`
	}{Error: msg})
}

// Done writes the terminating sentinel. Later calls are no-ops.
func (s *Stream) Done() error {
	if s == nil {
		return errors.New("sse: stream is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return nil
	}
	s.done = true
	return s.writeLocked([]byte(doneFrame))
}

func (s *Stream) sendJSON(payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("sse: marshal frame: %w", err)
	}
	return s.write([]byte("data: " + string(body) + "\n\n"))
}

func (s *Stream) write(data []byte) error {
	if s == nil {
		return errors.New("sse: stream is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return errors.New("sse: stream already finished")
	}
	return s.writeLocked(data)
}

func (s *Stream) writeLocked(data []byte) error {
	if s.w == nil {
		return errors.New("sse: stream writer not configured")
	}
	if _, err := s.w.Write(data); err != nil {
		return err
	}
	if s.flush != nil {
		s.flush()
	}
	return nil
}
