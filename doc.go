// Package robot provides a client library for running and observing
// automation jobs, either in-process through a local automation engine
// or remotely through the Automation Cloud API.
//
// A Job is the unified handle for one automation run. Regardless of
// where the run executes, a Job exposes the same contract: lifecycle
// state, typed notifications, output collection, and interactive input
// negotiation.
//
// # Quick Start
//
//	r, err := robot.New(
//	    robot.WithBaseURL("https://api.automationcloud.net"),
//	    robot.WithSecretKey(os.Getenv("AC_SECRET_KEY")),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	j, err := r.CreateJob(ctx, robot.CreateJobSpec{
//	    ServiceID: "service-id",
//	    Category:  robot.CategoryLive,
//	    Input:     map[string]any{"url": "https://example.com"},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	outputs, err := j.WaitForOutputs(ctx, "confirmation")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := j.WaitForCompletion(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// # Architecture
//
// Each Job owns a typed notification bus, a state machine, and
// output/input caches. Two drivers feed them: the local driver bridges
// synchronous engine callbacks, and the cloud driver reconciles an
// offset-paginated remote event log by polling. Shared algorithms
// (output waiting, input negotiation) live in the job package and are
// identical for both drivers.
package robot
