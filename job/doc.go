// Package job defines the Job contract and the machinery shared by
// both drivers: the lifecycle state machine, the output/input caches,
// the wait coordinator (WaitForOutputs, WaitForCompletion) and the
// input negotiator (OnAwaitingInput).
//
// A Job is produced by robot.Robot; callers never construct one
// directly. The two implementations — local engine bridge and cloud
// event-log poller — embed the same Core, so every algorithm in this
// package behaves identically regardless of where the run executes.
//
// # Notification ordering
//
// Within one job, notifications are delivered in the order the
// underlying event source produced them, and every cache mutation
// completes before the notification announcing it fires. A handler
// reacting to an output notification can therefore read the output
// from the cache synchronously.
package job
