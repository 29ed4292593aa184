package robot

import "time"

// Config holds configuration for a Robot.
type Config struct {
	// BaseURL is the Automation Cloud API endpoint.
	BaseURL string

	// SecretKey authenticates API requests.
	SecretKey string

	// PollInterval is how often the cloud driver polls the remote
	// event log.
	PollInterval time.Duration

	// PollRate caps sustained poll requests per second across one
	// job's tracking loop. Zero disables the cap.
	PollRate float64

	// InputTimeout is how long a local job waits for a requested
	// input before failing with InputTimeout.
	InputTimeout time.Duration

	// RequestTimeout bounds individual API requests.
	RequestTimeout time.Duration

	// RetryAttempts is how many times the transport retries an
	// idempotent request on transient failure.
	RetryAttempts int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		BaseURL:        "https://api.automationcloud.net",
		PollInterval:   1 * time.Second,
		InputTimeout:   5 * time.Minute,
		RequestTimeout: 30 * time.Second,
		RetryAttempts:  4,
	}
}
