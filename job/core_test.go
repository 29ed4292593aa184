package job_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/automationcloud/robot/bus"
	"github.com/automationcloud/robot/job"
)

func TestCore_InitialState(t *testing.T) {
	c := job.NewCore(nil)
	if got := c.State(); got != job.StateCreated {
		t.Errorf("initial state = %q, want %q", got, job.StateCreated)
	}
	if c.ErrorInfo() != nil {
		t.Error("ErrorInfo should be nil before failure")
	}
}

func TestCore_StateChangedCarriesPrevious(t *testing.T) {
	c := job.NewCore(nil)

	var transitions [][2]job.State
	c.OnStateChanged(func(state, previous job.State) error {
		transitions = append(transitions, [2]job.State{state, previous})
		return nil
	})

	c.SetState(job.StateProcessing)
	c.AwaitInput("value")
	c.Succeed()

	want := [][2]job.State{
		{job.StateProcessing, job.StateCreated},
		{job.StateAwaitingInput, job.StateProcessing},
		{job.StateSuccess, job.StateAwaitingInput},
	}
	if len(transitions) != len(want) {
		t.Fatalf("saw %d transitions, want %d: %v", len(transitions), len(want), transitions)
	}
	for i, tr := range transitions {
		if tr != want[i] {
			t.Errorf("transition %d = %v, want %v", i, tr, want[i])
		}
	}
}

func TestCore_TerminalStateAbsorbs(t *testing.T) {
	c := job.NewCore(nil)
	c.Succeed()

	c.SetState(job.StateProcessing)
	if got := c.State(); got != job.StateSuccess {
		t.Errorf("state after terminal = %q, want %q", got, job.StateSuccess)
	}

	c.Fail(&job.Error{Code: "Late", Category: job.CategoryServer, Message: "too late"})
	if c.ErrorInfo() != nil {
		t.Error("Fail after Succeed must not record an error")
	}
	if err := c.WaitForCompletion(context.Background()); err != nil {
		t.Errorf("WaitForCompletion = %v, want nil", err)
	}
}

func TestCore_FirstTerminalWins_Fail(t *testing.T) {
	c := job.NewCore(nil)
	c.Fail(&job.Error{Code: "ScriptError", Category: job.CategoryWebsite, Message: "boom"})
	c.Succeed()

	if got := c.State(); got != job.StateFail {
		t.Errorf("state = %q, want %q", got, job.StateFail)
	}
	err := c.WaitForCompletion(context.Background())
	var je *job.Error
	if !errors.As(err, &je) || je.Code != "ScriptError" {
		t.Errorf("WaitForCompletion = %v, want ScriptError", err)
	}
}

func TestCore_OutputCachedBeforeNotification(t *testing.T) {
	c := job.NewCore(nil)

	var seen any
	c.OnOutput("echo", func(o job.Output) error {
		// The cache must already hold the value when the handler runs.
		cached, ok := c.CachedOutput("echo")
		if !ok {
			t.Error("output not cached before notification")
		}
		seen = cached.Data
		return nil
	})

	c.AddOutput("echo", map[string]any{"foo": 1})

	m, ok := seen.(map[string]any)
	if !ok || m["foo"] != 1 {
		t.Errorf("handler saw %v, want map with foo=1", seen)
	}
}

func TestCore_AwaitingKeyClearedByMatchingInput(t *testing.T) {
	c := job.NewCore(nil)
	c.SetState(job.StateProcessing)
	c.AwaitInput("value")

	if got := c.AwaitingInputKey(); got != "value" {
		t.Fatalf("awaiting key = %q, want %q", got, "value")
	}
	if got := c.State(); got != job.StateAwaitingInput {
		t.Fatalf("state = %q, want %q", got, job.StateAwaitingInput)
	}

	c.AddInput("other", 1)
	if got := c.AwaitingInputKey(); got != "value" {
		t.Errorf("non-matching input cleared awaiting key: %q", got)
	}

	c.AddInput("value", 2)
	if got := c.AwaitingInputKey(); got != "" {
		t.Errorf("awaiting key = %q after matching input, want empty", got)
	}
}

func TestCore_AwaitInputReplacesKey(t *testing.T) {
	c := job.NewCore(nil)
	c.SetState(job.StateProcessing)

	var stateChanges int
	c.OnStateChanged(func(_, _ job.State) error {
		stateChanges++
		return nil
	})

	c.AwaitInput("foo")
	c.AwaitInput("bar")

	if got := c.AwaitingInputKey(); got != "bar" {
		t.Errorf("awaiting key = %q, want %q", got, "bar")
	}
	// Second request while already awaiting must not re-publish a
	// state transition.
	if stateChanges != 1 {
		t.Errorf("saw %d state changes, want 1", stateChanges)
	}
}

func TestCore_DuplicateInputOverwrites(t *testing.T) {
	c := job.NewCore(nil)

	c.AddInput("value", "first")
	c.AddInput("value", "second")

	in, ok := c.CachedInput("value")
	if !ok || in.Data != "second" {
		t.Errorf("cached input = %v, want %q", in.Data, "second")
	}
}

func TestCore_SeedInputDoesNotPublish(t *testing.T) {
	c := job.NewCore(nil)

	var notified bool
	c.Bus().Subscribe(bus.KindInput, func(_ bus.Notification) error {
		notified = true
		return nil
	})

	c.SeedInput("value", 42)

	if notified {
		t.Error("seeding an input must not publish a notification")
	}
	in, ok := c.CachedInput("value")
	if !ok || in.Data != 42 {
		t.Errorf("cached input = %v, want 42", in.Data)
	}
}

func TestCore_WaitForCompletionContextCancelled(t *testing.T) {
	c := job.NewCore(nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := c.WaitForCompletion(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("WaitForCompletion = %v, want deadline exceeded", err)
	}
}

func TestCore_FailNotificationCarriesError(t *testing.T) {
	c := job.NewCore(nil)

	var got error
	c.OnFail(func(err error) error {
		// ErrorInfo must be readable synchronously from the handler.
		if c.ErrorInfo() == nil {
			t.Error("ErrorInfo nil inside fail handler")
		}
		got = err
		return nil
	})

	c.Fail(&job.Error{Code: "WebsiteDown", Category: job.CategoryWebsite, Message: "down"})

	var je *job.Error
	if !errors.As(got, &je) || je.Code != "WebsiteDown" {
		t.Errorf("fail handler received %v, want WebsiteDown", got)
	}
}
