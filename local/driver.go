package local

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/automationcloud/robot/bus"
	"github.com/automationcloud/robot/id"
	"github.com/automationcloud/robot/job"
)

// Compile-time interface check.
var _ job.Job = (*Job)(nil)

// DefaultInputTimeout is how long a requested input may stay
// unanswered before the job fails with InputTimeout.
const DefaultInputTimeout = 5 * time.Minute

// Job tracks one automation run executing on a local engine.
type Job struct {
	*job.Core

	id           id.ID
	engine       Engine
	inputTimeout time.Duration
	logger       *slog.Logger
}

// Option configures a local Job.
type Option func(*Job)

// WithLogger sets the structured logger for the job.
func WithLogger(l *slog.Logger) Option {
	return func(j *Job) { j.logger = l }
}

// WithInputTimeout sets how long a requested input may stay
// unanswered before the job fails.
func WithInputTimeout(d time.Duration) Option {
	return func(j *Job) { j.inputTimeout = d }
}

// NewJob creates a local job around the given engine. The job does
// not begin tracking until Start is called.
func NewJob(engine Engine, opts ...Option) *Job {
	j := &Job{
		id:           id.NewJobID(),
		engine:       engine,
		inputTimeout: DefaultInputTimeout,
		logger:       slog.Default(),
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

// ID returns the locally minted job identifier.
func (j *Job) ID() string { return j.id.String() }

// Start wires the engine callbacks, seeds the pre-supplied inputs and
// begins script playback. An engine that fails to connect finalizes
// the job through the fail path, so completion waiters are never left
// unresolved.
func (j *Job) Start(ctx context.Context, input map[string]any) error {
	for key, data := range input {
		j.SeedInput(key, data)
	}

	j.engine.OnScriptSuccess(func() {
		j.Succeed()
	})
	j.engine.OnScriptFail(func(err error) {
		j.Fail(job.AsError(err))
	})
	j.engine.OnEmitOutput(func(key string, data any) {
		j.AddOutput(key, data)
	})
	j.engine.OnRequestInput(j.requestInput)

	j.SetState(job.StateProcessing)

	if err := j.engine.Start(ctx); err != nil {
		j.Fail(job.AsError(err))
		return fmt.Errorf("local: start engine: %w", err)
	}
	return nil
}

// SubmitInput writes the input into the cache and publishes it,
// unblocking a pending request for the same key. Duplicate
// submissions overwrite.
func (j *Job) SubmitInput(_ context.Context, key string, data any) error {
	j.AddInput(key, data)
	return nil
}

// GetOutput returns the cached output for key.
func (j *Job) GetOutput(_ context.Context, key string) (any, bool, error) {
	o, ok := j.CachedOutput(key)
	if !ok {
		return nil, false, nil
	}
	return o.Data, true, nil
}

// Cancel pauses engine playback and finalizes the job with a
// cancellation-flavored failure.
func (j *Job) Cancel(ctx context.Context) error {
	if err := j.engine.Pause(ctx); err != nil {
		return fmt.Errorf("local: pause engine: %w", err)
	}
	j.Fail(job.NewCancelled())
	return nil
}

// requestInput serves the engine's input protocol. A cached input is
// returned synchronously without a round trip through the bus.
// Otherwise the job transitions to awaitingInput and three outcomes
// race: the matching input arrives, the input timeout elapses, or the
// state machine leaves awaitingInput for an unrelated reason. Listener
// cleanup is symmetric on every branch.
func (j *Job) requestInput(ctx context.Context, key string) (any, error) {
	if in, ok := j.CachedInput(key); ok {
		return in.Data, nil
	}

	inputCh := make(chan any, 1)
	interruptCh := make(chan struct{})
	var interruptOnce sync.Once

	unsubInput := j.Bus().Subscribe(bus.KindInput, func(n bus.Notification) error {
		if n.Key == key {
			select {
			case inputCh <- n.Data:
			default:
			}
		}
		return nil
	})
	defer unsubInput()

	unsubState := j.Bus().Subscribe(bus.KindStateChanged, func(n bus.Notification) error {
		if job.State(n.State) != job.StateAwaitingInput {
			interruptOnce.Do(func() { close(interruptCh) })
		}
		return nil
	})
	defer unsubState()

	// Close the race with an input submitted between the cache check
	// and the subscription.
	if in, ok := j.CachedInput(key); ok {
		return in.Data, nil
	}

	j.AwaitInput(key)

	timer := time.NewTimer(j.inputTimeout)
	defer timer.Stop()

	select {
	case data := <-inputCh:
		return data, nil
	case <-timer.C:
		e := job.NewInputTimeout(key)
		j.Fail(e)
		return nil, e
	case <-interruptCh:
		return nil, job.NewAwaitingInputInterrupted(key)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
