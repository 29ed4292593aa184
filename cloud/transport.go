package cloud

import (
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/automationcloud/robot/backoff"
)

// retryTransport retries idempotent requests on transport errors and
// 5xx responses, sleeping per the backoff strategy between attempts.
// Non-idempotent requests pass through untouched: the polling loop
// tolerates a repeated GET, but a replayed POST could double-submit
// an input.
type retryTransport struct {
	base     http.RoundTripper
	strategy backoff.Strategy
	attempts int
	logger   *slog.Logger
}

// NewRetryTransport wraps base with retry behaviour for idempotent
// requests. attempts is the number of retries after the initial try;
// zero or negative disables retrying.
func NewRetryTransport(base http.RoundTripper, strategy backoff.Strategy, attempts int, logger *slog.Logger) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	if logger == nil {
		logger = slog.Default()
	}
	if strategy == nil {
		strategy = backoff.DefaultStrategy()
	}
	return &retryTransport{
		base:     base,
		strategy: strategy,
		attempts: attempts,
		logger:   logger,
	}
}

// RoundTrip implements http.RoundTripper.
func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if !idempotent(req.Method) || t.attempts <= 0 {
		return t.base.RoundTrip(req)
	}

	var (
		resp    *http.Response
		lastErr error
	)
	for attempt := 0; attempt <= t.attempts; attempt++ {
		if attempt > 0 {
			delay := t.strategy.Delay(attempt)
			t.logger.Debug("retrying request",
				slog.String("method", req.Method),
				slog.String("url", req.URL.String()),
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay),
			)
			select {
			case <-req.Context().Done():
				return nil, req.Context().Err()
			case <-time.After(delay):
			}
		}

		resp, lastErr = t.base.RoundTrip(req)
		if lastErr != nil {
			continue
		}
		if resp.StatusCode >= 500 && attempt < t.attempts {
			// Drain so the connection can be reused.
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
			continue
		}
		return resp, nil
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return resp, nil
}

func idempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}
