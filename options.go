package robot

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/automationcloud/robot/local"
)

// Option configures a Robot.
type Option func(*Robot) error

// WithConfig replaces the entire configuration. Later options still
// override individual fields.
func WithConfig(cfg Config) Option {
	return func(r *Robot) error {
		r.cfg = cfg
		return nil
	}
}

// WithBaseURL sets the Automation Cloud API endpoint.
func WithBaseURL(url string) Option {
	return func(r *Robot) error {
		r.cfg.BaseURL = url
		return nil
	}
}

// WithSecretKey sets the API secret key.
func WithSecretKey(key string) Option {
	return func(r *Robot) error {
		r.cfg.SecretKey = key
		return nil
	}
}

// WithEngine runs jobs in-process on the given automation engine
// instead of the cloud API.
func WithEngine(e local.Engine) Option {
	return func(r *Robot) error {
		if e == nil {
			return ErrNoEngine
		}
		r.engine = e
		return nil
	}
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Robot) error {
		r.logger = l
		return nil
	}
}

// WithHTTPClient overrides the HTTP client used for API requests.
// Supplying one disables the built-in retry transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(r *Robot) error {
		r.hc = hc
		return nil
	}
}

// WithPollInterval sets the cloud event log polling interval.
func WithPollInterval(d time.Duration) Option {
	return func(r *Robot) error {
		r.cfg.PollInterval = d
		return nil
	}
}

// WithPollRate caps sustained polls per second per tracked job. Zero
// disables the cap.
func WithPollRate(rps float64) Option {
	return func(r *Robot) error {
		r.cfg.PollRate = rps
		return nil
	}
}

// WithInputTimeout sets how long a local job waits for a requested
// input before failing with InputTimeout.
func WithInputTimeout(d time.Duration) Option {
	return func(r *Robot) error {
		r.cfg.InputTimeout = d
		return nil
	}
}

// WithRequestTimeout bounds individual API requests.
func WithRequestTimeout(d time.Duration) Option {
	return func(r *Robot) error {
		r.cfg.RequestTimeout = d
		return nil
	}
}

// WithRetryAttempts sets how many times the transport retries an
// idempotent API request on transient failure.
func WithRetryAttempts(n int) Option {
	return func(r *Robot) error {
		r.cfg.RetryAttempts = n
		return nil
	}
}
