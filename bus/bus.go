// Package bus provides the per-job notification bus: an in-process,
// broadcast publish/subscribe channel carrying a closed set of typed
// notifications. Every subscriber sees every notification of the kind
// it subscribed to; delivery order across subscribers of one kind is
// registration order.
package bus

import (
	"fmt"
	"log/slog"
	"sync"
)

// Kind identifies one of the notification channels a job emits on.
type Kind string

const (
	// KindInput fires when an input has been written to the input cache.
	KindInput Kind = "input"
	// KindOutput fires when an output has been written to the output cache.
	KindOutput Kind = "output"
	// KindAwaitingInput fires when the run pauses, requesting an input key.
	KindAwaitingInput Kind = "awaitingInput"
	// KindStateChanged fires on every lifecycle state transition.
	KindStateChanged Kind = "stateChanged"
	// KindSuccess fires once when the run reaches its success state.
	KindSuccess Kind = "success"
	// KindFail fires once when the run reaches its fail state.
	KindFail Kind = "fail"
	// KindError carries errors raised by subscriber handlers. It is a
	// best-effort channel: with no subscriber, emissions are dropped
	// after a debug log.
	KindError Kind = "error"
)

// Notification is the payload delivered to subscribers. Which fields
// are populated depends on Kind:
//
//   - KindInput, KindOutput: Key and Data
//   - KindAwaitingInput: Key
//   - KindStateChanged: State and PreviousState
//   - KindFail, KindError: Err
//   - KindSuccess: no payload
type Notification struct {
	Kind          Kind
	Key           string
	Data          any
	State         string
	PreviousState string
	Err           error
}

// Handler consumes a notification. A handler that returns an error or
// panics does not affect other handlers: the failure is captured and
// re-published on KindError.
type Handler func(n Notification) error

type subscription struct {
	id      uint64
	handler Handler
}

// Bus is a per-job broadcast notification channel. It is safe for
// concurrent use. Handlers run synchronously on the publishing
// goroutine, so a publisher that mutates state before publishing
// guarantees handlers observe the mutation.
type Bus struct {
	logger *slog.Logger

	mu     sync.Mutex
	nextID uint64
	subs   map[Kind][]subscription
}

// New creates an empty bus. A nil logger falls back to slog.Default().
func New(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		logger: logger,
		subs:   make(map[Kind][]subscription),
	}
}

// Subscribe registers a handler for a notification kind and returns an
// unsubscribe closure. Unsubscribing twice is a no-op.
func (b *Bus) Subscribe(kind Kind, h Handler) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[kind] = append(b.subs[kind], subscription{id: id, handler: h})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.subs[kind]
		for i, s := range subs {
			if s.id == id {
				b.subs[kind] = append(subs[:i:i], subs[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers n to every subscriber of n.Kind, in registration
// order. Handler errors and panics are isolated: each is re-published
// on KindError so one failing listener cannot break the others or the
// publisher.
func (b *Bus) Publish(n Notification) {
	b.mu.Lock()
	subs := b.subs[n.Kind]
	snapshot := make([]subscription, len(subs))
	copy(snapshot, subs)
	b.mu.Unlock()

	if len(snapshot) == 0 && n.Kind == KindError {
		// Known gap: an unobserved error channel swallows the emission.
		b.logger.Debug("unobserved handler error dropped",
			slog.String("error", errString(n.Err)),
		)
		return
	}

	for _, s := range snapshot {
		if err := b.invoke(s.handler, n); err != nil {
			if n.Kind == KindError {
				// A failing error handler is not re-dispatched.
				b.logger.Debug("error-channel handler failed",
					slog.String("error", err.Error()),
				)
				continue
			}
			b.Publish(Notification{Kind: KindError, Err: err})
		}
	}
}

// invoke runs one handler, converting a panic into an error.
func (b *Bus) invoke(h Handler, n Notification) (retErr error) {
	defer func() {
		if r := recover(); r != nil {
			retErr = fmt.Errorf("bus: handler panicked on %s: %v", n.Kind, r)
		}
	}()
	return h(n)
}

func errString(err error) string {
	if err == nil {
		return "<nil>"
	}
	return err.Error()
}
