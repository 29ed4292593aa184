package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/automationcloud/robot/job"
)

// meterName is the instrumentation scope name for robot metrics.
const meterName = "github.com/automationcloud/robot"

// Metrics records job lifecycle events using OTel instruments.
//
// Instruments:
//   - robot.job.completions (Int64Counter): jobs reaching a terminal
//     state, with attributes: status ("success" or "fail"), error_code
//     (fail only)
//   - robot.job.outputs (Int64Counter): outputs received, with
//     attribute: key
//   - robot.job.state_transitions (Int64Counter): state changes, with
//     attributes: from, to
//   - robot.job.input_requests (Int64Counter): awaitingInput entries,
//     with attribute: key
type Metrics struct {
	completions      metric.Int64Counter
	outputs          metric.Int64Counter
	stateTransitions metric.Int64Counter
	inputRequests    metric.Int64Counter
}

// NewMetrics creates a recorder using the global OTel MeterProvider.
// If no MeterProvider is configured, noop instruments are used.
func NewMetrics() *Metrics {
	return NewMetricsWithMeter(otel.Meter(meterName))
}

// NewMetricsWithMeter creates a recorder using the provided meter.
// This variant allows injecting a specific MeterProvider for testing.
func NewMetricsWithMeter(meter metric.Meter) *Metrics {
	// Create instruments once at construction time. OTel instruments
	// are safe for concurrent use. On error, the API returns noop
	// instruments so the recorder degrades gracefully.
	completions, cErr := meter.Int64Counter(
		"robot.job.completions",
		metric.WithDescription("Jobs that reached a terminal state"),
		metric.WithUnit("{job}"),
	)
	_ = cErr // noop fallback guaranteed by OTel API contract

	outputs, oErr := meter.Int64Counter(
		"robot.job.outputs",
		metric.WithDescription("Outputs received from jobs"),
		metric.WithUnit("{output}"),
	)
	_ = oErr

	transitions, tErr := meter.Int64Counter(
		"robot.job.state_transitions",
		metric.WithDescription("Job state transitions"),
		metric.WithUnit("{transition}"),
	)
	_ = tErr

	inputs, iErr := meter.Int64Counter(
		"robot.job.input_requests",
		metric.WithDescription("Inputs requested by jobs"),
		metric.WithUnit("{request}"),
	)
	_ = iErr

	return &Metrics{
		completions:      completions,
		outputs:          outputs,
		stateTransitions: transitions,
		inputRequests:    inputs,
	}
}

// Observe attaches the recorder to a job's notification channels and
// returns a function that detaches all of them.
func (m *Metrics) Observe(j job.Job) func() {
	ctx := context.Background()

	unsubs := []func(){
		j.OnStateChanged(func(state, previous job.State) error {
			m.stateTransitions.Add(ctx, 1, metric.WithAttributes(
				attribute.String("from", string(previous)),
				attribute.String("to", string(state)),
			))
			if state == job.StateAwaitingInput {
				m.inputRequests.Add(ctx, 1, metric.WithAttributes(
					attribute.String("key", j.AwaitingInputKey()),
				))
			}
			return nil
		}),
		j.OnAnyOutput(func(o job.Output) error {
			m.outputs.Add(ctx, 1, metric.WithAttributes(
				attribute.String("key", o.Key),
			))
			return nil
		}),
		j.OnSuccess(func() error {
			m.completions.Add(ctx, 1, metric.WithAttributes(
				attribute.String("status", "success"),
			))
			return nil
		}),
		j.OnFail(func(err error) error {
			m.completions.Add(ctx, 1, metric.WithAttributes(
				attribute.String("status", "fail"),
				attribute.String("error_code", job.AsError(err).Code),
			))
			return nil
		}),
	}

	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}
