package robot

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/automationcloud/robot/backoff"
	"github.com/automationcloud/robot/cloud"
	"github.com/automationcloud/robot/job"
	"github.com/automationcloud/robot/local"
)

// Job categories, mirrored from the cloud API. A local engine ignores
// the category.
const (
	CategoryLive = cloud.CategoryLive
	CategoryTest = cloud.CategoryTest
)

// CreateJobSpec describes a job to create.
type CreateJobSpec struct {
	// ServiceID selects the automation service to run. Required for
	// cloud jobs, ignored by a local engine.
	ServiceID string

	// Category is CategoryLive or CategoryTest. Defaults to
	// CategoryTest.
	Category string

	// Input seeds the job's input cache. Keys supplied here are
	// answered without entering awaitingInput.
	Input map[string]any
}

// Robot creates and tracks jobs. With an engine configured it runs
// jobs in-process; otherwise it drives them through the Automation
// Cloud API.
type Robot struct {
	cfg    Config
	logger *slog.Logger
	engine local.Engine
	client *cloud.Client
	hc     *http.Client
}

// New creates a Robot from the given options. Without WithEngine, a
// base URL and secret key are required to reach the cloud API.
func New(opts ...Option) (*Robot, error) {
	r := &Robot{
		cfg:    DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}

	if r.engine != nil {
		return r, nil
	}

	if r.cfg.BaseURL == "" {
		return nil, ErrNoBaseURL
	}
	if r.cfg.SecretKey == "" {
		return nil, ErrNoSecretKey
	}

	copts := []cloud.ClientOption{
		cloud.WithClientLogger(r.logger),
		cloud.WithRetry(r.cfg.RetryAttempts, backoff.DefaultStrategy()),
		cloud.WithRequestTimeout(r.cfg.RequestTimeout),
	}
	if r.hc != nil {
		copts = append(copts, cloud.WithHTTPClient(r.hc))
	}
	client, err := cloud.NewClient(r.cfg.BaseURL, r.cfg.SecretKey, copts...)
	if err != nil {
		return nil, err
	}
	r.client = client
	return r, nil
}

// CreateJob starts a new job and returns its handle. The job is
// already running when CreateJob returns.
func (r *Robot) CreateJob(ctx context.Context, spec CreateJobSpec) (job.Job, error) {
	if r.engine != nil {
		j := local.NewJob(r.engine,
			local.WithLogger(r.logger),
			local.WithInputTimeout(r.cfg.InputTimeout),
		)
		if err := j.Start(ctx, spec.Input); err != nil {
			return nil, err
		}
		return j, nil
	}

	if spec.ServiceID == "" {
		return nil, ErrNoServiceID
	}
	category := spec.Category
	if category == "" {
		category = CategoryTest
	}
	j := r.newCloudJob()
	if err := j.Start(ctx, cloud.CreateJobRequest{
		ServiceID: spec.ServiceID,
		Category:  category,
		Input:     spec.Input,
	}); err != nil {
		return nil, err
	}
	return j, nil
}

// TrackJob re-attaches to a cloud job created elsewhere, adopting its
// current remote state. It fails with ErrLocalTracking when an engine
// is configured: local runs are not resumable across processes.
func (r *Robot) TrackJob(ctx context.Context, jobID string) (job.Job, error) {
	if r.engine != nil {
		return nil, ErrLocalTracking
	}
	j := r.newCloudJob()
	if err := j.TrackExisting(ctx, jobID); err != nil {
		return nil, err
	}
	return j, nil
}

// QueryPreviousOutputs fetches outputs produced by earlier jobs of a
// service, optionally narrowed by the inputs a new job would submit.
// Useful for price caching and input pre-validation.
func (r *Robot) QueryPreviousOutputs(ctx context.Context, serviceID, key string, inputs map[string]any) ([]cloud.PreviousOutput, error) {
	if r.client == nil {
		return nil, fmt.Errorf("robot: previous outputs require a cloud client")
	}
	return r.client.QueryPreviousOutputs(ctx, serviceID, key, inputs)
}

func (r *Robot) newCloudJob() *cloud.Job {
	return cloud.NewJob(r.client,
		cloud.WithJobLogger(r.logger),
		cloud.WithPollInterval(r.cfg.PollInterval),
		cloud.WithPollRate(r.cfg.PollRate),
	)
}
