package job

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/automationcloud/robot/bus"
)

// Submitter submits an input on behalf of a negotiation handler.
// Drivers bind their own submission path (cache write for local, API
// call for cloud) at construction time.
type Submitter func(ctx context.Context, key string, data any) error

// Core aggregates the state shared by both job drivers: the
// notification bus, the lifecycle state machine, the output and input
// caches, the single outstanding awaiting-input key and the completion
// latch. Drivers embed a *Core and feed it; callers reach it through
// the Job interface.
//
// Core preserves the mutate-then-publish invariant: every cache or
// state mutation completes before the corresponding notification is
// dispatched, and dispatch happens outside the lock.
type Core struct {
	bus    *bus.Bus
	logger *slog.Logger
	submit Submitter

	mu          sync.Mutex
	state       State
	prevState   State
	errInfo     *Error
	outputs     map[string]Output
	inputs      map[string]Input
	awaitingKey string

	done      chan struct{}
	closeOnce sync.Once
	finalErr  error
}

// NewCore creates a Core in StateCreated. A nil logger falls back to
// slog.Default().
func NewCore(logger *slog.Logger) *Core {
	if logger == nil {
		logger = slog.Default()
	}
	return &Core{
		bus:     bus.New(logger),
		logger:  logger,
		state:   StateCreated,
		outputs: make(map[string]Output),
		inputs:  make(map[string]Input),
		done:    make(chan struct{}),
	}
}

// Bus returns the job's notification bus.
func (c *Core) Bus() *bus.Bus { return c.bus }

// Logger returns the job's logger.
func (c *Core) Logger() *slog.Logger { return c.logger }

// BindSubmitter installs the driver's input submission path. It must
// be called exactly once, before tracking starts.
func (c *Core) BindSubmitter(s Submitter) { c.submit = s }

// State returns the last known lifecycle state.
func (c *Core) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// PreviousState returns the state held before the most recent
// transition.
func (c *Core) PreviousState() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.prevState
}

// ErrorInfo returns the failure report, non-nil iff the job failed.
func (c *Core) ErrorInfo() *Error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errInfo
}

// AwaitingInputKey returns the key of the single outstanding input
// request, or "" when none is pending.
func (c *Core) AwaitingInputKey() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.awaitingKey
}

// SetState transitions the state machine and publishes stateChanged.
// Transitions out of a terminal state are ignored; validity of any
// other transition is the emitting driver's responsibility. Leaving
// StateAwaitingInput clears the awaiting-input key.
func (c *Core) SetState(s State) {
	c.mu.Lock()
	if c.state.IsTerminal() || c.state == s {
		c.mu.Unlock()
		return
	}
	prev := c.state
	c.prevState = prev
	c.state = s
	if s != StateAwaitingInput {
		c.awaitingKey = ""
	}
	c.mu.Unlock()

	c.bus.Publish(bus.Notification{
		Kind:          bus.KindStateChanged,
		State:         string(s),
		PreviousState: string(prev),
	})
}

// AwaitInput records key as the outstanding input request, transitions
// to StateAwaitingInput and publishes awaitingInput. A terminal state
// absorbs the call.
func (c *Core) AwaitInput(key string) {
	c.mu.Lock()
	if c.state.IsTerminal() {
		c.mu.Unlock()
		return
	}
	prev := c.state
	changed := prev != StateAwaitingInput
	if changed {
		c.prevState = prev
		c.state = StateAwaitingInput
	}
	c.awaitingKey = key
	c.mu.Unlock()

	if changed {
		c.bus.Publish(bus.Notification{
			Kind:          bus.KindStateChanged,
			State:         string(StateAwaitingInput),
			PreviousState: string(prev),
		})
	}
	c.bus.Publish(bus.Notification{Kind: bus.KindAwaitingInput, Key: key})
}

// AddOutput writes an output into the cache and publishes output. The
// cache write completes before the notification fires.
func (c *Core) AddOutput(key string, data any) {
	c.mu.Lock()
	c.outputs[key] = Output{Key: key, Data: data, Timestamp: time.Now().UTC()}
	c.mu.Unlock()

	c.bus.Publish(bus.Notification{Kind: bus.KindOutput, Key: key, Data: data})
}

// AddInput writes an input into the cache and publishes input. A
// matching outstanding input request is cleared before the
// notification fires.
func (c *Core) AddInput(key string, data any) {
	c.mu.Lock()
	c.inputs[key] = Input{Key: key, Data: data, Timestamp: time.Now().UTC()}
	if c.awaitingKey == key {
		c.awaitingKey = ""
	}
	c.mu.Unlock()

	c.bus.Publish(bus.Notification{Kind: bus.KindInput, Key: key, Data: data})
}

// SeedInput writes an input into the cache without publishing. Used
// for inputs supplied in bulk at job creation, which no listener can
// have raced to observe.
func (c *Core) SeedInput(key string, data any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inputs[key] = Input{Key: key, Data: data, Timestamp: time.Now().UTC()}
}

// CachedOutput returns the cached output for key.
func (c *Core) CachedOutput(key string) (Output, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	o, ok := c.outputs[key]
	return o, ok
}

// CachedInput returns the cached input for key.
func (c *Core) CachedInput(key string) (Input, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	in, ok := c.inputs[key]
	return in, ok
}

// Succeed transitions to StateSuccess, publishes success and releases
// completion waiters. Only the first terminal transition wins.
func (c *Core) Succeed() {
	c.mu.Lock()
	if c.state.IsTerminal() {
		c.mu.Unlock()
		return
	}
	prev := c.state
	c.prevState = prev
	c.state = StateSuccess
	c.awaitingKey = ""
	c.mu.Unlock()

	c.bus.Publish(bus.Notification{
		Kind:          bus.KindStateChanged,
		State:         string(StateSuccess),
		PreviousState: string(prev),
	})
	c.bus.Publish(bus.Notification{Kind: bus.KindSuccess})
	c.complete(nil)
}

// Fail stores the failure report, transitions to StateFail, publishes
// fail and releases completion waiters. Only the first terminal
// transition wins; the error is recorded before any notification
// fires, so fail handlers observe ErrorInfo synchronously.
func (c *Core) Fail(e *Error) {
	e = Normalize(e)
	c.mu.Lock()
	if c.state.IsTerminal() {
		c.mu.Unlock()
		return
	}
	prev := c.state
	c.prevState = prev
	c.state = StateFail
	c.errInfo = e
	c.awaitingKey = ""
	c.mu.Unlock()

	c.bus.Publish(bus.Notification{
		Kind:          bus.KindStateChanged,
		State:         string(StateFail),
		PreviousState: string(prev),
	})
	c.bus.Publish(bus.Notification{Kind: bus.KindFail, Err: e})
	c.complete(e)
}

// complete latches the terminal outcome exactly once.
func (c *Core) complete(err error) {
	c.closeOnce.Do(func() {
		c.finalErr = err
		close(c.done)
	})
}

// Done returns a channel closed when the job reaches a terminal state.
func (c *Core) Done() <-chan struct{} { return c.done }

// WaitForCompletion blocks until the job reaches StateSuccess (nil) or
// StateFail (the job's *Error), or until ctx is done.
func (c *Core) WaitForCompletion(ctx context.Context) error {
	select {
	case <-c.done:
		return c.finalErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// OnOutput registers a handler for outputs with the given key and
// returns an unsubscribe closure.
func (c *Core) OnOutput(key string, h OutputHandler) func() {
	return c.bus.Subscribe(bus.KindOutput, func(n bus.Notification) error {
		if n.Key != key {
			return nil
		}
		o, ok := c.CachedOutput(n.Key)
		if !ok {
			o = Output{Key: n.Key, Data: n.Data}
		}
		return h(o)
	})
}

// OnAnyOutput registers a handler for every output and returns an
// unsubscribe closure.
func (c *Core) OnAnyOutput(h OutputHandler) func() {
	return c.bus.Subscribe(bus.KindOutput, func(n bus.Notification) error {
		o, ok := c.CachedOutput(n.Key)
		if !ok {
			o = Output{Key: n.Key, Data: n.Data}
		}
		return h(o)
	})
}

// OnStateChanged registers a handler for state transitions and returns
// an unsubscribe closure.
func (c *Core) OnStateChanged(h StateHandler) func() {
	return c.bus.Subscribe(bus.KindStateChanged, func(n bus.Notification) error {
		return h(State(n.State), State(n.PreviousState))
	})
}

// OnSuccess registers a handler for the success notification and
// returns an unsubscribe closure.
func (c *Core) OnSuccess(h SuccessHandler) func() {
	return c.bus.Subscribe(bus.KindSuccess, func(_ bus.Notification) error {
		return h()
	})
}

// OnFail registers a handler for the fail notification and returns an
// unsubscribe closure.
func (c *Core) OnFail(h FailHandler) func() {
	return c.bus.Subscribe(bus.KindFail, func(n bus.Notification) error {
		return h(n.Err)
	})
}

// OnError registers a handler for the error channel and returns an
// unsubscribe closure.
func (c *Core) OnError(h ErrorHandler) func() {
	return c.bus.Subscribe(bus.KindError, func(n bus.Notification) error {
		return h(n.Err)
	})
}
