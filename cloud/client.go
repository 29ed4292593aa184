// Package cloud implements the Job contract for automation runs
// executing on the Automation Cloud. The driver creates (or attaches
// to) a remote job and reconciles its state by polling the job's
// offset-paginated event log, translating each remote event into bus
// notifications and state transitions.
package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/automationcloud/robot/backoff"
)

// ErrNotFound reports that the requested remote resource does not
// exist (HTTP 404). Output lookups treat it as "not yet available".
var ErrNotFound = errors.New("cloud: not found")

// Client is a typed REST client for the Automation Cloud API. It is
// safe for concurrent use.
type Client struct {
	baseURL   string
	secretKey string
	hc        *http.Client
	logger    *slog.Logger

	retryAttempts  int
	retryStrategy  backoff.Strategy
	requestTimeout time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client. The retrying
// transport is not installed over a caller-supplied client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.hc = hc }
}

// WithClientLogger sets the structured logger for the client.
func WithClientLogger(l *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// WithRequestTimeout bounds each API request. Non-positive values are
// ignored. It has no effect over a caller-supplied HTTP client, which
// carries its own timeout.
func WithRequestTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.requestTimeout = d
		}
	}
}

// WithRetry configures transport-level retries for idempotent
// requests. Zero attempts disables retrying.
func WithRetry(attempts int, strategy backoff.Strategy) ClientOption {
	return func(c *Client) {
		c.retryAttempts = attempts
		c.retryStrategy = strategy
	}
}

// NewClient creates an API client. The secret key authenticates every
// request via HTTP basic auth.
func NewClient(baseURL, secretKey string, opts ...ClientOption) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("cloud: empty base URL")
	}
	if secretKey == "" {
		return nil, errors.New("cloud: empty secret key")
	}
	c := &Client{
		baseURL:        baseURL,
		secretKey:      secretKey,
		logger:         slog.Default(),
		retryAttempts:  4,
		retryStrategy:  backoff.DefaultStrategy(),
		requestTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.hc == nil {
		c.hc = &http.Client{
			Timeout: c.requestTimeout,
			Transport: NewRetryTransport(
				http.DefaultTransport, c.retryStrategy, c.retryAttempts, c.logger,
			),
		}
	}
	return c, nil
}

// CreateJob creates a remote job and returns its representation.
func (c *Client) CreateJob(ctx context.Context, req CreateJobRequest) (*JobRepresentation, error) {
	var rep JobRepresentation
	if err := c.do(ctx, http.MethodPost, "/jobs", req, &rep); err != nil {
		return nil, err
	}
	return &rep, nil
}

// GetJob fetches the current representation of a remote job.
func (c *Client) GetJob(ctx context.Context, jobID string) (*JobRepresentation, error) {
	var rep JobRepresentation
	path := "/jobs/" + url.PathEscape(jobID)
	if err := c.do(ctx, http.MethodGet, path, nil, &rep); err != nil {
		return nil, err
	}
	return &rep, nil
}

// GetJobEvents fetches the job's event log starting at offset, in
// ascending order.
func (c *Client) GetJobEvents(ctx context.Context, jobID string, offset int) ([]RemoteEvent, error) {
	var resp jobEventsResponse
	path := "/jobs/" + url.PathEscape(jobID) + "/events?offset=" + strconv.Itoa(offset)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// GetJobOutput fetches one output by key. Returns ErrNotFound when
// the output does not exist remotely.
func (c *Client) GetJobOutput(ctx context.Context, jobID, key string) (*JobOutput, error) {
	var out JobOutput
	path := "/jobs/" + url.PathEscape(jobID) + "/outputs/" + url.PathEscape(key)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateJobInput submits an input for a remote job.
func (c *Client) CreateJobInput(ctx context.Context, jobID, key string, data any) (*JobInput, error) {
	var in JobInput
	path := "/jobs/" + url.PathEscape(jobID) + "/inputs"
	body := map[string]any{"key": key, "data": data}
	if err := c.do(ctx, http.MethodPost, path, body, &in); err != nil {
		return nil, err
	}
	return &in, nil
}

// CancelJob requests cancellation of a remote job. The request is
// acknowledged, not awaited: the job reports the outcome through a
// subsequent fail event.
func (c *Client) CancelJob(ctx context.Context, jobID string) error {
	path := "/jobs/" + url.PathEscape(jobID) + "/cancel"
	return c.do(ctx, http.MethodPost, path, nil, nil)
}

// QueryPreviousOutputs returns historical outputs of a service for
// the given key, matched against the supplied inputs.
func (c *Client) QueryPreviousOutputs(ctx context.Context, serviceID, key string, inputs map[string]any) ([]PreviousOutput, error) {
	var resp previousOutputsResponse
	path := "/services/" + url.PathEscape(serviceID) + "/previous-job-outputs"
	if key != "" {
		path += "?key=" + url.QueryEscape(key)
	}
	body := map[string]any{"inputs": inputs}
	if err := c.do(ctx, http.MethodPost, path, body, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// do performs one API request, encoding body and decoding the
// response into out when non-nil.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("cloud: marshal request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("cloud: build request: %w", err)
	}
	req.SetBasicAuth(c.secretKey, "")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("cloud: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("cloud: %s %s: %w", method, path, ErrNotFound)
	}
	if resp.StatusCode >= 400 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("cloud: %s %s: unexpected status %d: %s",
			method, path, resp.StatusCode, bytes.TrimSpace(snippet))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("cloud: %s %s: decode response: %w", method, path, err)
		}
	}
	return nil
}
