// Package httpstore implements the task store contract against a remote
// tracktask REST API.
package httpstore

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

	"github.com/charmbracelet/log"

	"github.com/hylla/tracktask/internal/adapters/wire"
	"github.com/hylla/tracktask/internal/app"
	"github.com/hylla/tracktask/internal/domain"
)

// DefaultTimeout bounds one request when no timeout is configured.
const DefaultTimeout = 10 * time.Second

// ErrInvalidBaseURL and related errors describe client failures.
var (
	ErrInvalidBaseURL = errors.New("invalid base url")
	ErrInvalidRequest = errors.New("request rejected by server")
	ErrUnsupported    = errors.New("operation not supported by server")
)

// maxErrorBodyBytes caps how much of a failed response is read.
const maxErrorBodyBytes = 64 << 10

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

// Error implements error.
func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("remote store: status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("remote store: %s (%d): %s", e.Code, e.StatusCode, e.Message)
}

// Unwrap maps server error codes to sentinels.
func (e *APIError) Unwrap() error {
	switch e.Code {
	case "not_found":
		return app.ErrNotFound
	case "invalid_request":
		return ErrInvalidRequest
	case "not_implemented":
		return ErrUnsupported
	default:
		return nil
	}
}

// Client is an app.TaskStore and app.BatchReorderer backed by HTTP.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	logger  *log.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. Its timeout is kept.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLogger sets the request logger.
func WithLogger(logger *log.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New returns a client for the API rooted at baseURL, for example
// "http://127.0.0.1:5437/api/v1".
func New(baseURL string, timeout time.Duration, opts ...Option) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidBaseURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("%w: scheme must be http or https, got %q", ErrInvalidBaseURL, baseURL)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("%w: host is required", ErrInvalidBaseURL)
	}
	parsed.Path = strings.TrimRight(parsed.Path, "/")
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &Client{
		baseURL: parsed,
		http:    &http.Client{Timeout: timeout},
		logger:  log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the normalized API root.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// ListTasks fetches every task owned by ownerID.
func (c *Client) ListTasks(ctx context.Context, ownerID string) ([]domain.Task, error) {
	var out []wire.Task
	if err := c.do(ctx, http.MethodGet, "/tasks", ownerQuery(ownerID), nil, &out); err != nil {
		return nil, err
	}
	return wire.ToDomainList(out)
}

// CreateTask creates a task on the server.
func (c *Client) CreateTask(ctx context.Context, in app.CreateTaskInput) (domain.Task, error) {
	req := wire.CreateTaskRequest{
		Title:       in.Title,
		Description: in.Description,
		Category:    string(in.Category),
		AddedBy:     in.OwnerID,
	}
	var out wire.CreateTaskResponse
	if err := c.do(ctx, http.MethodPost, "/tasks", nil, req, &out); err != nil {
		return domain.Task{}, err
	}
	return out.Task.ToDomain()
}

// UpdateTask sends patch for one task.
func (c *Client) UpdateTask(ctx context.Context, ownerID, taskID string, patch app.TaskPatch) (domain.Task, error) {
	var out wire.Task
	if err := c.do(ctx, http.MethodPut, taskPath(taskID), ownerQuery(ownerID), wire.PatchFromDomain(patch), &out); err != nil {
		return domain.Task{}, err
	}
	return out.ToDomain()
}

// DeleteTask deletes one task.
func (c *Client) DeleteTask(ctx context.Context, ownerID, taskID string) error {
	return c.do(ctx, http.MethodDelete, taskPath(taskID), ownerQuery(ownerID), nil, nil)
}

// ReorderTasks sends all order updates in one request.
func (c *Client) ReorderTasks(ctx context.Context, ownerID string, updates []app.OrderUpdate) error {
	var out wire.ModifiedResponse
	return c.do(ctx, http.MethodPut, "/tasks/reorder", ownerQuery(ownerID), wire.ReorderRequestFrom(updates), &out)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	target := *c.baseURL
	rawPath := c.baseURL.EscapedPath() + path
	unescaped, err := url.PathUnescape(rawPath)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	target.Path = unescaped
	target.RawPath = rawPath
	if query != nil {
		target.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		buf := new(bytes.Buffer)
		if err := json.NewEncoder(buf).Encode(body); err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		reader = buf
	}
	req, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	c.logger.Debug("remote store request", "method", method, "path", path, "status", resp.StatusCode, "elapsed", time.Since(started))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

// decodeAPIError reads the error envelope, falling back to the raw body.
func decodeAPIError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	apiErr := &APIError{StatusCode: resp.StatusCode}
	var envelope wire.ErrorEnvelope
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error.Code != "" {
		apiErr.Code = envelope.Error.Code
		apiErr.Message = envelope.Error.Message
		return apiErr
	}
	apiErr.Message = strings.TrimSpace(string(raw))
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	if resp.StatusCode == http.StatusNotFound {
		apiErr.Code = "not_found"
	}
	return apiErr
}

func ownerQuery(ownerID string) url.Values {
	return url.Values{"addedBy": []string{ownerID}}
}

func taskPath(taskID string) string {
	return "/tasks/" + url.PathEscape(taskID)
}
