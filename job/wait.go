package job

import (
	"context"
	"sync"

	"github.com/automationcloud/robot/bus"
)

// WaitForOutputs blocks until every requested key has a cached output,
// returning their data values in request order (duplicate keys resolve
// to the same value in every position).
//
// Three outcomes race, and exactly one occurs:
//
//   - all keys present (checked immediately, then on every output
//     notification): the values are returned;
//   - the job succeeds first: a JobSuccessMissingOutputs error carrying
//     the requested keys;
//   - the job fails first: a JobFailMissingOutputs error carrying the
//     requested keys.
//
// All three subscriptions are released on every exit path, including
// context cancellation.
func (c *Core) WaitForOutputs(ctx context.Context, keys ...string) ([]any, error) {
	check := func() ([]any, bool) {
		c.mu.Lock()
		defer c.mu.Unlock()
		values := make([]any, 0, len(keys))
		for _, key := range keys {
			o, ok := c.outputs[key]
			if !ok {
				return nil, false
			}
			values = append(values, o.Data)
		}
		return values, true
	}

	type result struct {
		values []any
		err    error
	}
	resCh := make(chan result, 1)
	var once sync.Once
	settle := func(values []any, err error) {
		once.Do(func() { resCh <- result{values: values, err: err} })
	}

	unsubOutput := c.bus.Subscribe(bus.KindOutput, func(_ bus.Notification) error {
		if values, ok := check(); ok {
			settle(values, nil)
		}
		return nil
	})
	defer unsubOutput()

	unsubSuccess := c.bus.Subscribe(bus.KindSuccess, func(_ bus.Notification) error {
		if values, ok := check(); ok {
			settle(values, nil)
		} else {
			settle(nil, NewSuccessMissingOutputs(keys))
		}
		return nil
	})
	defer unsubSuccess()

	unsubFail := c.bus.Subscribe(bus.KindFail, func(_ bus.Notification) error {
		if values, ok := check(); ok {
			settle(values, nil)
		} else {
			settle(nil, NewFailMissingOutputs(keys))
		}
		return nil
	})
	defer unsubFail()

	// Outputs emitted before this call resolve without waiting for a
	// further notification.
	if values, ok := check(); ok {
		return values, nil
	}
	// Likewise a job that terminated before this call.
	switch c.State() {
	case StateSuccess:
		return nil, NewSuccessMissingOutputs(keys)
	case StateFail:
		return nil, NewFailMissingOutputs(keys)
	}

	select {
	case res := <-resCh:
		if res.err != nil {
			return nil, res.err
		}
		return res.values, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
