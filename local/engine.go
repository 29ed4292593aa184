// Package local implements the Job contract for automation runs
// executing in-process, driven by a local automation engine. The
// driver bridges the engine's synchronous callbacks — script success,
// script failure, input requests, produced outputs — into the job's
// notification bus and state machine.
package local

import "context"

// Engine is the surface the driver requires from an automation
// engine. It is deliberately minimal: the engine owns script parsing,
// playback and browser control; the driver only observes the script
// lifecycle and mediates the input protocol.
type Engine interface {
	// OnScriptSuccess registers fn to run when script playback
	// finishes successfully.
	OnScriptSuccess(fn func())

	// OnScriptFail registers fn to run when script playback fails.
	// The engine may report a nil error; the driver normalizes it.
	OnScriptFail(fn func(err error))

	// OnRequestInput registers fn for the engine to call when the
	// script needs data for an input key. The call blocks until the
	// input is supplied, the input timeout elapses, or the request is
	// interrupted.
	OnRequestInput(fn func(ctx context.Context, key string) (any, error))

	// OnEmitOutput registers fn for the engine to call when the
	// script produces an output.
	OnEmitOutput(fn func(key string, data any))

	// Start connects to the browser and begins script playback.
	// A returned error means playback never began.
	Start(ctx context.Context) error

	// Pause suspends script playback. Best effort.
	Pause(ctx context.Context) error
}
