package job

// State represents the lifecycle state of a job.
type State string

const (
	// StateCreated is the initial state before tracking begins.
	StateCreated State = "created"
	// StateScheduled means the remote service accepted the job but a
	// worker has not picked it up yet.
	StateScheduled State = "scheduled"
	// StateProcessing means the automation is executing.
	StateProcessing State = "processing"
	// StateAwaitingInput means the automation paused, requesting an
	// input key from the caller.
	StateAwaitingInput State = "awaitingInput"
	// StateAwaitingTds means the automation paused on a 3-D Secure
	// challenge.
	StateAwaitingTds State = "awaitingTds"
	// StateSuccess means the run finished successfully. Terminal.
	StateSuccess State = "success"
	// StateFail means the run failed. Terminal.
	StateFail State = "fail"
)

// IsTerminal reports whether no further transition can occur from s.
func (s State) IsTerminal() bool {
	return s == StateSuccess || s == StateFail
}
