package cloud

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/automationcloud/robot/job"
)

// Compile-time interface check.
var _ job.Job = (*Job)(nil)

// DefaultPollInterval is the delay between event log polls.
const DefaultPollInterval = time.Second

// Job tracks one automation run executing on the Automation Cloud.
// It reconciles remote state by polling the job's event log with a
// monotonic offset cursor: the cursor only advances by events
// actually consumed, so no event is ever processed twice.
type Job struct {
	*job.Core

	client       *Client
	logger       *slog.Logger
	pollInterval time.Duration
	limiter      *rate.Limiter

	// remoteID and category are written before the tracking goroutine
	// starts and read-only afterwards.
	remoteID string
	category string

	// offset and pending are owned by the tracking goroutine. pending
	// holds output keys announced by the event log whose data was not
	// yet readable; they are re-fetched on every iteration until they
	// resolve.
	offset  int
	pending map[string]struct{}

	tracking atomic.Bool
}

// Option configures a cloud Job.
type Option func(*Job)

// WithJobLogger sets the structured logger for the job.
func WithJobLogger(l *slog.Logger) Option {
	return func(j *Job) { j.logger = l }
}

// WithPollInterval sets the delay between event log polls.
func WithPollInterval(d time.Duration) Option {
	return func(j *Job) { j.pollInterval = d }
}

// WithPollRate caps sustained polls per second with a token bucket.
// Zero disables the cap.
func WithPollRate(rps float64) Option {
	return func(j *Job) {
		if rps > 0 {
			j.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// NewJob creates a cloud job around the given client. The job does
// not begin tracking until Start or TrackExisting is called.
func NewJob(client *Client, opts ...Option) *Job {
	j := &Job{
		client:       client,
		logger:       slog.Default(),
		pollInterval: DefaultPollInterval,
		pending:      make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(j)
	}
	j.Core = job.NewCore(j.logger)
	j.Core.BindSubmitter(func(ctx context.Context, key string, data any) error {
		return j.SubmitInput(ctx, key, data)
	})
	return j
}

// ID returns the service-assigned job identifier, or "" before Start.
func (j *Job) ID() string { return j.remoteID }

// Category returns the job category reported by the service.
func (j *Job) Category() string { return j.category }

// Start creates the remote job, seeds the input cache with the
// initial inputs and begins the tracking loop. ctx bounds the
// tracking loop's lifetime: cancelling it stops polling without
// finalizing the job, so WaitForCompletion callers must watch their
// own context.
func (j *Job) Start(ctx context.Context, req CreateJobRequest) error {
	rep, err := j.client.CreateJob(ctx, req)
	if err != nil {
		return fmt.Errorf("cloud: create job: %w", err)
	}
	for key, data := range req.Input {
		j.SeedInput(key, data)
	}
	j.adopt(rep)
	j.startTracking(ctx)
	return nil
}

// TrackExisting attaches to a job created elsewhere, adopting its
// current remote state, and begins the tracking loop. This supports
// re-attaching to a job from a different process. As with Start, ctx
// bounds the tracking loop's lifetime.
func (j *Job) TrackExisting(ctx context.Context, jobID string) error {
	rep, err := j.client.GetJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("cloud: fetch job %q: %w", jobID, err)
	}
	j.adopt(rep)
	j.startTracking(ctx)
	return nil
}

// adopt applies a remote job representation to the local state.
func (j *Job) adopt(rep *JobRepresentation) {
	j.remoteID = rep.ID
	j.category = rep.Category
	switch {
	case rep.State == job.StateSuccess:
		j.Succeed()
	case rep.State == job.StateFail:
		j.Fail(rep.Error)
	case rep.State == job.StateAwaitingInput && rep.AwaitingInputKey != "":
		j.AwaitInput(rep.AwaitingInputKey)
	case rep.State != "":
		j.SetState(rep.State)
	}
}

// startTracking launches the tracking loop exactly once; re-entrant
// calls are no-ops while a loop is active.
func (j *Job) startTracking(ctx context.Context) {
	if !j.tracking.CompareAndSwap(false, true) {
		return
	}
	go j.track(ctx)
}

// track is the reconciliation loop: fetch events at the cursor,
// advance the cursor by the number of events received, translate each
// event in arrival order, stop on a terminal local state, otherwise
// sleep one poll interval and repeat.
func (j *Job) track(ctx context.Context) {
	for {
		if j.limiter != nil {
			if err := j.limiter.Wait(ctx); err != nil {
				j.logger.Debug("tracking stopped", slog.String("reason", err.Error()))
				return
			}
		}

		events, err := j.client.GetJobEvents(ctx, j.remoteID, j.offset)
		if err != nil {
			if ctx.Err() != nil {
				j.logger.Debug("tracking stopped", slog.String("reason", ctx.Err().Error()))
				return
			}
			// The transport has already retried; a surviving error is
			// terminal for this job.
			j.Fail(job.AsError(err))
			return
		}
		j.offset += len(events)

		for _, e := range events {
			if err := j.apply(ctx, e); err != nil {
				j.Fail(job.AsError(err))
				return
			}
		}
		j.fetchPending(ctx)

		if j.State().IsTerminal() {
			return
		}

		select {
		case <-ctx.Done():
			j.logger.Debug("tracking stopped", slog.String("reason", ctx.Err().Error()))
			return
		case <-time.After(j.pollInterval):
		}
	}
}

// apply translates one remote event into local effects.
func (j *Job) apply(ctx context.Context, e RemoteEvent) error {
	switch e.Name {
	case EventAwaitingInput:
		j.AwaitInput(e.Key)
	case EventCreateOutput:
		out, err := j.client.GetJobOutput(ctx, j.remoteID, e.Key)
		if errors.Is(err, ErrNotFound) {
			// Announced but not yet readable; fetchPending retries.
			j.logger.Debug("output not yet available", slog.String("key", e.Key))
			j.pending[e.Key] = struct{}{}
			return nil
		}
		if err != nil {
			return fmt.Errorf("fetch output %q: %w", e.Key, err)
		}
		delete(j.pending, e.Key)
		j.AddOutput(e.Key, out.Data)
	case EventProcessing:
		j.SetState(job.StateProcessing)
	case EventSuccess:
		// Resolve announced outputs before the terminal publish so
		// waiters observe a complete cache.
		j.fetchPending(ctx)
		j.Succeed()
	case EventFail:
		j.fetchPending(ctx)
		rep, err := j.client.GetJob(ctx, j.remoteID)
		if err != nil {
			j.Fail(job.AsError(err))
			return nil
		}
		j.Fail(rep.Error)
	case EventRestart, EventTdsStart, EventTdsFinish:
		// Received but deliberately not translated into state effects.
		j.logger.Debug("unhandled remote event", slog.String("event", e.Name))
	default:
		j.logger.Debug("unknown remote event", slog.String("event", e.Name))
	}
	return nil
}

// fetchPending retries outputs the event log announced before their
// data became readable. Keys that still 404 stay pending for the next
// iteration; transient fetch errors are logged and retried likewise.
func (j *Job) fetchPending(ctx context.Context) {
	for key := range j.pending {
		out, err := j.client.GetJobOutput(ctx, j.remoteID, key)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			j.logger.Debug("pending output fetch failed",
				slog.String("key", key), slog.String("error", err.Error()))
			continue
		}
		delete(j.pending, key)
		j.AddOutput(key, out.Data)
	}
}

// SubmitInput sends the input to the service, then updates the local
// cache and publishes. The write is durable once the POST resolves.
func (j *Job) SubmitInput(ctx context.Context, key string, data any) error {
	if _, err := j.client.CreateJobInput(ctx, j.remoteID, key, data); err != nil {
		return fmt.Errorf("cloud: submit input %q: %w", key, err)
	}
	j.AddInput(key, data)
	return nil
}

// GetOutput returns the output for key, falling through to a remote
// fetch when the event log has not yet delivered it. A remote 404
// means "absent", not an error.
func (j *Job) GetOutput(ctx context.Context, key string) (any, bool, error) {
	if o, ok := j.CachedOutput(key); ok {
		return o.Data, true, nil
	}
	out, err := j.client.GetJobOutput(ctx, j.remoteID, key)
	if errors.Is(err, ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cloud: fetch output %q: %w", key, err)
	}
	return out.Data, true, nil
}

// Cancel requests a best-effort remote abort. The durable signal of
// success is a subsequent cancellation-flavored fail event.
func (j *Job) Cancel(ctx context.Context) error {
	if err := j.client.CancelJob(ctx, j.remoteID); err != nil {
		return fmt.Errorf("cloud: cancel job: %w", err)
	}
	return nil
}
