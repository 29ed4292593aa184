package cloud

import (
	"time"

	"github.com/automationcloud/robot/job"
)

// Job categories accepted by the Automation Cloud.
const (
	CategoryLive = "live"
	CategoryTest = "test"
)

// Remote event names appearing in a job's event log.
const (
	EventAwaitingInput = "awaitingInput"
	EventCreateOutput  = "createOutput"
	EventProcessing    = "processing"
	EventSuccess       = "success"
	EventFail          = "fail"
	EventRestart       = "restart"
	EventTdsStart      = "tdsStart"
	EventTdsFinish     = "tdsFinish"
)

// CreateJobRequest is the payload for creating a remote job.
type CreateJobRequest struct {
	ServiceID string         `json:"serviceId"`
	Category  string         `json:"category"`
	Input     map[string]any `json:"input"`
}

// JobRepresentation is the remote job resource.
type JobRepresentation struct {
	ID               string     `json:"id"`
	State            job.State  `json:"state"`
	Category         string     `json:"category"`
	AwaitingInputKey string     `json:"awaitingInputKey,omitempty"`
	Error            *job.Error `json:"error,omitempty"`
}

// RemoteEvent is one entry of a job's offset-paginated event log.
type RemoteEvent struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Key       string    `json:"key,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// JobOutput is the remote representation of a produced output.
type JobOutput struct {
	JobID string `json:"jobId"`
	Key   string `json:"key"`
	Data  any    `json:"data"`
}

// JobInput is the remote representation of a submitted input.
type JobInput struct {
	JobID     string `json:"jobId"`
	Key       string `json:"key"`
	Data      any    `json:"data"`
	Encrypted bool   `json:"encrypted"`
}

// PreviousOutput is a historical output of a service, returned by
// QueryPreviousOutputs for the "reuse previous output" feature.
type PreviousOutput struct {
	JobID       string  `json:"jobId"`
	Key         string  `json:"key"`
	Data        any     `json:"data"`
	Variability float64 `json:"variability"`
}

type jobEventsResponse struct {
	Data []RemoteEvent `json:"data"`
}

type previousOutputsResponse struct {
	Data []PreviousOutput `json:"data"`
}
