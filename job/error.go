package job

import "fmt"

// Category classifies who is responsible for a job failure.
type Category string

const (
	// CategoryClient means the caller supplied bad input or timed out.
	CategoryClient Category = "client"
	// CategoryServer means the automation infrastructure failed.
	CategoryServer Category = "server"
	// CategoryWebsite means the target website misbehaved.
	CategoryWebsite Category = "website"
)

// Error codes raised by this module. Remote failures carry whatever
// code the service reported.
const (
	CodeInputTimeout             = "InputTimeout"
	CodeAwaitingInputInterrupted = "AwaitingInputInterrupted"
	CodeSuccessMissingOutputs    = "JobSuccessMissingOutputs"
	CodeFailMissingOutputs       = "JobFailMissingOutputs"
	CodeJobCancelled             = "JobCancelled"
	CodeUnknown                  = "UnknownError"
)

// Error is the structured failure report of a job. It is set exactly
// once, when the job transitions to StateFail, and is nil otherwise.
type Error struct {
	Code     string   `json:"code"`
	Category Category `json:"category"`
	Message  string   `json:"message"`
	Details  any      `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInputTimeout reports that the requested input key was not
// supplied within the configured timeout.
func NewInputTimeout(key string) *Error {
	return &Error{
		Code:     CodeInputTimeout,
		Category: CategoryClient,
		Message:  fmt.Sprintf("input %q was not submitted in time", key),
		Details:  map[string]any{"key": key},
	}
}

// NewAwaitingInputInterrupted reports that the job left the
// awaitingInput state for a reason other than the awaited key being
// satisfied.
func NewAwaitingInputInterrupted(key string) *Error {
	return &Error{
		Code:     CodeAwaitingInputInterrupted,
		Category: CategoryClient,
		Message:  fmt.Sprintf("job state changed while awaiting input %q", key),
		Details:  map[string]any{"key": key},
	}
}

// NewSuccessMissingOutputs reports that the job succeeded before all
// awaited outputs were produced.
func NewSuccessMissingOutputs(keys []string) *Error {
	return &Error{
		Code:     CodeSuccessMissingOutputs,
		Category: CategoryClient,
		Message:  "job succeeded, but specified outputs were not emitted",
		Details:  map[string]any{"keys": keys},
	}
}

// NewFailMissingOutputs reports that the job failed before all awaited
// outputs were produced.
func NewFailMissingOutputs(keys []string) *Error {
	return &Error{
		Code:     CodeFailMissingOutputs,
		Category: CategoryClient,
		Message:  "job failed, and specified outputs were not emitted",
		Details:  map[string]any{"keys": keys},
	}
}

// NewCancelled reports a caller-initiated cancellation.
func NewCancelled() *Error {
	return &Error{
		Code:     CodeJobCancelled,
		Category: CategoryClient,
		Message:  "job was cancelled by the client",
	}
}

// Normalize fills missing fields of a failure payload with defaults:
// category server, code UnknownError, message "Unknown error". A nil
// input yields a fully defaulted error.
func Normalize(e *Error) *Error {
	out := &Error{
		Code:     CodeUnknown,
		Category: CategoryServer,
		Message:  "Unknown error",
	}
	if e == nil {
		return out
	}
	if e.Code != "" {
		out.Code = e.Code
	}
	if e.Category != "" {
		out.Category = e.Category
	}
	if e.Message != "" {
		out.Message = e.Message
	}
	out.Details = e.Details
	return out
}

// AsError coerces an arbitrary error into a job Error. Errors that
// already are *Error pass through; anything else becomes an
// UnknownError in category server; nil becomes a fully defaulted
// UnknownError.
func AsError(err error) *Error {
	if err == nil {
		return Normalize(nil)
	}
	if je, ok := err.(*Error); ok {
		return je
	}
	return &Error{
		Code:     CodeUnknown,
		Category: CategoryServer,
		Message:  err.Error(),
	}
}
