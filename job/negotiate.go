package job

import (
	"context"
	"fmt"

	"github.com/automationcloud/robot/bus"
)

// Wildcard registers an OnAwaitingInput resolver for every requested
// key.
const Wildcard = "*"

// OnAwaitingInput registers a resolver for input requests and returns
// an unsubscribe closure.
//
// With a concrete key, the resolver runs whenever that exact key is
// requested; a non-nil resolved value is submitted for the key
// automatically. With the Wildcard key, the resolver runs for every
// requested key and is itself responsible for submitting whatever key
// it deems appropriate — commonly a different, derived one — so its
// return value is not auto-submitted.
//
// Resolver errors, and submission failures, are redirected to the
// job's error channel rather than the emitting driver's call stack.
func (c *Core) OnAwaitingInput(key string, resolve InputResolver) func() {
	return c.bus.Subscribe(bus.KindAwaitingInput, func(n bus.Notification) error {
		requested := n.Key
		if key != Wildcard && key != requested {
			return nil
		}
		value, err := resolve(requested)
		if err != nil {
			return fmt.Errorf("resolve input %q: %w", requested, err)
		}
		if key == Wildcard || value == nil {
			return nil
		}
		if c.submit == nil {
			return fmt.Errorf("submit input %q: no submitter bound", key)
		}
		if err := c.submit(context.Background(), key, value); err != nil {
			return fmt.Errorf("submit input %q: %w", key, err)
		}
		return nil
	})
}
