// Package backend is the REST client for the interview backend.
package backend

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

	"go.uber.org/zap"

	"github.com/satriahrh/mockmaster-client/domain"
	"github.com/satriahrh/mockmaster-client/domain/entities"
	"github.com/satriahrh/mockmaster-client/domain/repositories"
	"github.com/satriahrh/mockmaster-client/internal/metrics"
)

const (
	defaultBaseURL = "http://localhost:8000/api"
	defaultTimeout = 30 * time.Second
	// maxErrorBody caps how much of a failed response is read for the error message
	maxErrorBody = 4 << 10
)

// Config holds configuration for the backend client
type Config struct {
	BaseURL string        // Optional: REST base including the /api prefix
	Timeout time.Duration // Optional: per-request timeout
}

// APIError is a non-2xx backend response
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("backend returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.StatusCode, e.Detail)
}

// Unwrap maps 404 to domain.ErrNotFound
func (e *APIError) Unwrap() error {
	if e.StatusCode == http.StatusNotFound {
		return domain.ErrNotFound
	}
	return nil
}

// Client implements InterviewBackend over HTTP
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// Ensure Client implements the InterviewBackend interface
var _ repositories.InterviewBackend = (*Client)(nil)

// NewClient creates a backend client
func NewClient(config Config, logger *zap.Logger) (*Client, error) {
	baseURL := strings.TrimRight(config.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid backend URL %q", config.BaseURL)
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}, nil
}

// GetInterview fetches session metadata
func (c *Client) GetInterview(ctx context.Context, id entities.SessionID) (*entities.Session, error) {
	var s entities.Session
	if err := c.do(ctx, "get_interview", http.MethodGet, "/interviews/"+url.PathEscape(string(id)), nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// CreateInterview creates a new interview session
func (c *Client) CreateInterview(ctx context.Context, req *entities.CreateSessionRequest) (*entities.Session, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	var s entities.Session
	if err := c.do(ctx, "create_interview", http.MethodPost, "/interviews", req, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// ListTopics returns the interview topics offered by the backend
func (c *Client) ListTopics(ctx context.Context) ([]entities.Topic, error) {
	var topics []entities.Topic
	if err := c.do(ctx, "list_topics", http.MethodGet, "/topics", nil, &topics); err != nil {
		return nil, err
	}
	return topics, nil
}

// GenerateFeedback asks the backend to assess a finished interview
func (c *Client) GenerateFeedback(ctx context.Context, id entities.SessionID) (*entities.Feedback, error) {
	var fb entities.Feedback
	if err := c.do(ctx, "generate_feedback", http.MethodPost, "/feedback/"+url.PathEscape(string(id)), nil, &fb); err != nil {
		return nil, err
	}
	if fb.SessionID == "" {
		fb.SessionID = id
	}
	return &fb, nil
}

// RunCode executes code in the backend sandbox
func (c *Client) RunCode(ctx context.Context, req *entities.CodeRunRequest) (*entities.CodeRunResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	var res entities.CodeRunResult
	if err := c.do(ctx, "run_code", http.MethodPost, "/code/run", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) do(ctx context.Context, operation, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.BackendRequestLatency.WithLabelValues(operation).Observe(float64(time.Since(start).Milliseconds()))
	if err != nil {
		c.logger.Warn("Backend request failed", zap.String("operation", operation), zap.Error(err))
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	c.logger.Debug("Backend request completed",
		zap.String("operation", operation),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Detail: errorDetail(resp.Body)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", operation, err)
	}
	return nil
}

// errorDetail extracts {"detail": "..."} from an error body, falling back to the raw text
func errorDetail(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil || len(raw) == 0 {
		return ""
	}

	var body struct {
		Detail json.RawMessage `json:"detail"`
	}
	if json.Unmarshal(raw, &body) == nil && len(body.Detail) > 0 {
		var s string
		if json.Unmarshal(body.Detail, &s) == nil {
			return s
		}
		return string(body.Detail)
	}
	return strings.TrimSpace(string(raw))
}

// IsNotFound reports whether err is a 404 from the backend
func IsNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}
