package job

import (
	"context"
	"time"
)

// Output is a key/value datum produced by the automation. The key is
// unique per job; a later write with the same key overwrites the
// cached value.
type Output struct {
	Key       string    `json:"key"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// Input is a key/value datum supplied by the caller, either in bulk at
// job creation or individually during the run. A key may be submitted
// before the automation requests it.
type Input struct {
	Key       string    `json:"key"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// InputResolver produces the data for a requested input key. It is
// invoked by OnAwaitingInput registrations; see Job.OnAwaitingInput
// for the submission rules.
type InputResolver func(requestedKey string) (any, error)

// OutputHandler consumes an output notification. The output is already
// cached when the handler runs. A returned error is redirected to the
// job's error channel, never to the emitting driver.
type OutputHandler func(o Output) error

// StateHandler consumes a state transition.
type StateHandler func(state, previous State) error

// SuccessHandler runs once when the job reaches StateSuccess.
type SuccessHandler func() error

// FailHandler runs once when the job reaches StateFail, receiving the
// job's *Error.
type FailHandler func(err error) error

// ErrorHandler consumes errors raised by other handlers. Without at
// least one registration these errors are dropped.
type ErrorHandler func(err error) error

// Job is the unified handle representing one automation run, local or
// remote. All methods are safe for concurrent use and any number of
// independent callers may register listeners or wait on the same Job.
//
// Every caller that starts a job must eventually call
// WaitForCompletion to observe the terminal outcome.
type Job interface {
	// ID returns the job identifier: service-assigned for cloud jobs,
	// locally minted for engine-driven jobs.
	ID() string

	// State returns the last known lifecycle state without blocking.
	State() State

	// ErrorInfo returns the failure report, non-nil iff State is
	// StateFail.
	ErrorInfo() *Error

	// AwaitingInputKey returns the requested input key, non-empty iff
	// State is StateAwaitingInput.
	AwaitingInputKey() string

	// SubmitInput supplies data for an input key. Duplicate
	// submissions overwrite and never fail at this layer.
	SubmitInput(ctx context.Context, key string, data any) error

	// GetOutput returns the output value for key. The second return
	// reports presence; cloud jobs fall through to a remote fetch
	// when the key has not yet been observed via the event log.
	GetOutput(ctx context.Context, key string) (any, bool, error)

	// WaitForOutputs blocks until every key has an output, returning
	// the data values in request order. It fails with
	// JobSuccessMissingOutputs or JobFailMissingOutputs when the job
	// terminates before the outputs are complete.
	WaitForOutputs(ctx context.Context, keys ...string) ([]any, error)

	// WaitForCompletion blocks until the job reaches a terminal
	// state: nil on success, the job's *Error on fail.
	WaitForCompletion(ctx context.Context) error

	// Cancel requests a best-effort abort. A subsequent
	// cancellation-flavored fail notification is the only durable
	// signal that the abort took effect.
	Cancel(ctx context.Context) error

	// OnAwaitingInput registers a resolver for requests of the given
	// key, or for every request when key is "*". See Core.OnAwaitingInput.
	OnAwaitingInput(key string, resolve InputResolver) func()

	// OnOutput registers a handler for outputs with the given key.
	OnOutput(key string, h OutputHandler) func()

	// OnAnyOutput registers a handler for every output.
	OnAnyOutput(h OutputHandler) func()

	// OnStateChanged registers a handler for state transitions.
	OnStateChanged(h StateHandler) func()

	// OnSuccess registers a handler for the success notification.
	OnSuccess(h SuccessHandler) func()

	// OnFail registers a handler for the fail notification.
	OnFail(h FailHandler) func()

	// OnError registers a handler for the error channel carrying
	// failures raised by other handlers.
	OnError(h ErrorHandler) func()
}
