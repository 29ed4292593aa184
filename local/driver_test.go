package local_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/automationcloud/robot/job"
	"github.com/automationcloud/robot/local"
)

// fakeEngine is a scriptable engine double. Its script runs on a
// playback goroutine, exactly like a real engine driving callbacks.
type fakeEngine struct {
	onSuccess func()
	onFail    func(error)
	onRequest func(context.Context, string) (any, error)
	onEmit    func(string, any)

	script   func(e *fakeEngine)
	startErr error
	paused   atomic.Bool
}

func (e *fakeEngine) OnScriptSuccess(fn func())   { e.onSuccess = fn }
func (e *fakeEngine) OnScriptFail(fn func(error)) { e.onFail = fn }

func (e *fakeEngine) OnEmitOutput(fn func(string, any)) {
	e.onEmit = fn
}
func (e *fakeEngine) OnRequestInput(fn func(context.Context, string) (any, error)) {
	e.onRequest = fn
}

func (e *fakeEngine) Start(_ context.Context) error {
	if e.startErr != nil {
		return e.startErr
	}
	if e.script != nil {
		go e.script(e)
	}
	return nil
}

func (e *fakeEngine) Pause(_ context.Context) error {
	e.paused.Store(true)
	return nil
}

func TestLocalJob_EndToEndEcho(t *testing.T) {
	// Script: output "echo" ← input "value".
	engine := &fakeEngine{
		script: func(e *fakeEngine) {
			data, err := e.onRequest(context.Background(), "value")
			if err != nil {
				e.onFail(err)
				return
			}
			e.onEmit("echo", data)
			e.onSuccess()
		},
	}

	j := local.NewJob(engine)

	// Submit the input upon reaching awaitingInput, via OnStateChanged.
	j.OnStateChanged(func(state, _ job.State) error {
		if state == job.StateAwaitingInput {
			return j.SubmitInput(context.Background(), "value", map[string]any{"foo": 1})
		}
		return nil
	})

	if err := j.Start(context.Background(), nil); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := j.WaitForCompletion(context.Background()); err != nil {
		t.Fatalf("completion: %v", err)
	}

	data, ok, err := j.GetOutput(context.Background(), "echo")
	if err != nil || !ok {
		t.Fatalf("GetOutput: ok=%v err=%v", ok, err)
	}
	m, ok := data.(map[string]any)
	if !ok || m["foo"] != 1 {
		t.Errorf("echo output = %v, want {foo:1}", data)
	}
}

func TestLocalJob_StateOrdering(t *testing.T) {
	engine := &fakeEngine{
		script: func(e *fakeEngine) {
			if _, err := e.onRequest(context.Background(), "value"); err != nil {
				e.onFail(err)
				return
			}
			e.onSuccess()
		},
	}

	j := local.NewJob(engine)

	var states []job.State
	j.OnStateChanged(func(state, _ job.State) error {
		states = append(states, state)
		if state == job.StateAwaitingInput {
			return j.SubmitInput(context.Background(), "value", "v")
		}
		return nil
	})

	if err := j.Start(context.Background(), nil); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := j.WaitForCompletion(context.Background()); err != nil {
		t.Fatalf("completion: %v", err)
	}

	want := []job.State{job.StateProcessing, job.StateAwaitingInput, job.StateSuccess}
	if len(states) != len(want) {
		t.Fatalf("states = %v, want %v", states, want)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Fatalf("states = %v, want %v", states, want)
		}
	}
}

func TestLocalJob_PreSuppliedInputSkipsBus(t *testing.T) {
	engine := &fakeEngine{
		script: func(e *fakeEngine) {
			data, err := e.onRequest(context.Background(), "value")
			if err != nil {
				e.onFail(err)
				return
			}
			e.onEmit("echo", data)
			e.onSuccess()
		},
	}

	j := local.NewJob(engine)

	var states []job.State
	j.OnStateChanged(func(state, _ job.State) error {
		states = append(states, state)
		return nil
	})

	if err := j.Start(context.Background(), map[string]any{"value": "cached"}); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := j.WaitForCompletion(context.Background()); err != nil {
		t.Fatalf("completion: %v", err)
	}

	// The cached input answers the request synchronously: the job
	// never enters awaitingInput.
	for _, s := range states {
		if s == job.StateAwaitingInput {
			t.Fatalf("job entered awaitingInput despite pre-supplied input: %v", states)
		}
	}

	data, ok, _ := j.GetOutput(context.Background(), "echo")
	if !ok || data != "cached" {
		t.Errorf("echo output = %v, want cached", data)
	}
}

func TestLocalJob_InputTimeout(t *testing.T) {
	engine := &fakeEngine{
		script: func(e *fakeEngine) {
			if _, err := e.onRequest(context.Background(), "value"); err != nil {
				e.onFail(err)
				return
			}
			e.onSuccess()
		},
	}

	j := local.NewJob(engine, local.WithInputTimeout(200*time.Millisecond))

	if err := j.Start(context.Background(), nil); err != nil {
		t.Fatalf("start: %v", err)
	}

	err := j.WaitForCompletion(context.Background())
	var je *job.Error
	if !errors.As(err, &je) {
		t.Fatalf("completion error = %v, want *job.Error", err)
	}
	if je.Code != job.CodeInputTimeout {
		t.Errorf("code = %q, want %q", je.Code, job.CodeInputTimeout)
	}
	details, ok := je.Details.(map[string]any)
	if !ok || details["key"] != "value" {
		t.Errorf("details = %v, want key=value", je.Details)
	}
	if got := j.State(); got != job.StateFail {
		t.Errorf("state = %q, want %q", got, job.StateFail)
	}
}

func TestLocalJob_CancelInterruptsPendingInput(t *testing.T) {
	requestErr := make(chan error, 1)
	engine := &fakeEngine{
		script: func(e *fakeEngine) {
			_, err := e.onRequest(context.Background(), "value")
			requestErr <- err
		},
	}

	j := local.NewJob(engine)

	if err := j.Start(context.Background(), nil); err != nil {
		t.Fatalf("start: %v", err)
	}

	// Wait for the script to reach awaitingInput.
	deadline := time.Now().Add(time.Second)
	for j.State() != job.StateAwaitingInput {
		if time.Now().After(deadline) {
			t.Fatal("job never reached awaitingInput")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := j.Cancel(context.Background()); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if !engine.paused.Load() {
		t.Error("cancel did not pause the engine")
	}

	select {
	case err := <-requestErr:
		var je *job.Error
		if !errors.As(err, &je) || je.Code != job.CodeAwaitingInputInterrupted {
			t.Errorf("pending request error = %v, want %s", err, job.CodeAwaitingInputInterrupted)
		}
	case <-time.After(time.Second):
		t.Fatal("pending input request was not interrupted")
	}

	err := j.WaitForCompletion(context.Background())
	var je *job.Error
	if !errors.As(err, &je) || je.Code != job.CodeJobCancelled {
		t.Errorf("completion error = %v, want %s", err, job.CodeJobCancelled)
	}
}

func TestLocalJob_EngineStartFailureSurfacesAsFail(t *testing.T) {
	engine := &fakeEngine{startErr: errors.New("chrome connection refused")}

	j := local.NewJob(engine)

	if err := j.Start(context.Background(), nil); err == nil {
		t.Fatal("expected start error")
	}

	// The fail path must finalize the job so completion waiters are
	// not left hanging.
	err := j.WaitForCompletion(context.Background())
	var je *job.Error
	if !errors.As(err, &je) {
		t.Fatalf("completion error = %v, want *job.Error", err)
	}
	if got := j.State(); got != job.StateFail {
		t.Errorf("state = %q, want %q", got, job.StateFail)
	}
}

func TestLocalJob_ScriptFailWithoutErrorNormalized(t *testing.T) {
	engine := &fakeEngine{
		script: func(e *fakeEngine) {
			e.onFail(nil)
		},
	}

	j := local.NewJob(engine)
	if err := j.Start(context.Background(), nil); err != nil {
		t.Fatalf("start: %v", err)
	}

	err := j.WaitForCompletion(context.Background())
	var je *job.Error
	if !errors.As(err, &je) {
		t.Fatalf("completion error = %v, want *job.Error", err)
	}
	if je.Code != job.CodeUnknown {
		t.Errorf("code = %q, want %q", je.Code, job.CodeUnknown)
	}
	if info := j.ErrorInfo(); info == nil || info.Category != job.CategoryServer {
		t.Errorf("ErrorInfo = %+v, want server category default", info)
	}
}

func TestLocalJob_OnAwaitingInputResolver(t *testing.T) {
	engine := &fakeEngine{
		script: func(e *fakeEngine) {
			data, err := e.onRequest(context.Background(), "value")
			if err != nil {
				e.onFail(err)
				return
			}
			e.onEmit("echo", data)
			e.onSuccess()
		},
	}

	j := local.NewJob(engine)
	j.OnAwaitingInput("value", func(string) (any, error) {
		return "resolved", nil
	})

	if err := j.Start(context.Background(), nil); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := j.WaitForCompletion(context.Background()); err != nil {
		t.Fatalf("completion: %v", err)
	}

	data, ok, _ := j.GetOutput(context.Background(), "echo")
	if !ok || data != "resolved" {
		t.Errorf("echo output = %v, want resolved", data)
	}
}

func TestLocalJob_HasTypeID(t *testing.T) {
	j := local.NewJob(&fakeEngine{})
	if j.ID() == "" {
		t.Fatal("local job must carry an identifier")
	}
}
