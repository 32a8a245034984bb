package pronto

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	defaultBaseURL        = "https://xi.testing-dc4.prontocloud.com.au/pronto/rest/dem.ai_api"
	defaultTimeout        = 30 * time.Second
	defaultResultLimit    = 25
	defaultRecordLimit    = 10
	defaultMaxResultChars = 1000
	maxResponseSizeBytes  = 2 << 20
)

type Config struct {
	BaseURL        string        `envconfig:"BASE_URL" split_words:"true" default:"https://xi.testing-dc4.prontocloud.com.au/pronto/rest/dem.ai_api"`
	Username       string        `envconfig:"USERNAME" split_words:"true" required:"true"`
	Password       string        `envconfig:"PASSWORD" split_words:"true" required:"true"`
	Timeout        time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"30s"`
	ResultLimit    int           `envconfig:"RESULT_LIMIT" split_words:"true" default:"25"`
	RecordLimit    int           `envconfig:"RECORD_LIMIT" split_words:"true" default:"10"`
	MaxResultChars int           `envconfig:"MAX_RESULT_CHARS" split_words:"true" default:"1000"`
}

// ClientOption customizes Client.
type ClientOption func(*Client)

func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

func WithLogger(logger zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// Client talks to the Pronto Xi REST API. Its operations never return an
// error: every failure is rendered into the returned text so a language model
// can read it.
type Client struct {
	baseURL        string
	username       string
	password       string
	resultLimit    int
	recordLimit    int
	maxResultChars int
	httpClient     *http.Client
	logger         zerolog.Logger
}

func NewClient(cfg Config, opts ...ClientOption) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid pronto base url: %w", err)
	}

	username := strings.TrimSpace(cfg.Username)
	if username == "" {
		return nil, errors.New("pronto username is required")
	}
	if cfg.Password == "" {
		return nil, errors.New("pronto password is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	client := &Client{
		baseURL:        baseURL,
		username:       username,
		password:       cfg.Password,
		resultLimit:    positiveOr(cfg.ResultLimit, defaultResultLimit),
		recordLimit:    positiveOr(cfg.RecordLimit, defaultRecordLimit),
		maxResultChars: positiveOr(cfg.MaxResultChars, defaultMaxResultChars),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: log.Logger.With().Str("component", "pronto").Logger(),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	return client, nil
}

func MustNew(cfg Config, opts ...ClientOption) *Client {
	client, err := NewClient(cfg, opts...)
	if err != nil {
		panic(err)
	}
	return client
}

// StatusError is returned by do for non-2xx responses.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	kind := "Server Error"
	if e.StatusCode < http.StatusInternalServerError {
		kind = "Client Error"
	}
	return fmt.Sprintf("%d %s: %s for url: %s", e.StatusCode, kind, http.StatusText(e.StatusCode), e.URL)
}

// call describes one outbound request.
type call struct {
	op          string
	method      string
	path        string
	body        io.Reader
	contentType string
	header      http.Header
}

func (c *Client) jsonCall(op, method, path, token string, payload any) (call, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return call{}, fmt.Errorf("marshal %s payload: %w", op, err)
	}
	header := http.Header{}
	header.Set("X-Pronto-Token", token)
	return call{
		op:          op,
		method:      method,
		path:        path,
		body:        bytes.NewReader(body),
		contentType: "application/json",
		header:      header,
	}, nil
}

func (c *Client) do(ctx context.Context, cl call) (string, error) {
	if c == nil || c.httpClient == nil {
		return "", errors.New("nil pronto client")
	}

	endpoint := c.baseURL + cl.path
	req, err := http.NewRequestWithContext(ctx, cl.method, endpoint, cl.body)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	for k, values := range cl.header {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}
	if cl.contentType != "" {
		req.Header.Set("Content-Type", cl.contentType)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug().Err(err).Str("op", cl.op).Dur("duration", time.Since(start)).Msg("pronto request failed")
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	c.logger.Debug().
		Str("op", cl.op).
		Int("status", resp.StatusCode).
		Int("bytes", len(raw)).
		Dur("duration", time.Since(start)).
		Msg("pronto request")

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return "", &StatusError{StatusCode: resp.StatusCode, URL: endpoint}
	}

	return string(raw), nil
}

// truncate cuts text to at most limit characters.
func truncate(text string, limit int) string {
	if limit <= 0 {
		return text
	}
	count := 0
	for i := range text {
		if count == limit {
			return text[:i]
		}
		count++
	}
	return text
}

func failure(doing string, err error) string {
	return fmt.Sprintf("Error %s: %s", doing, err)
}

func positiveOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}
