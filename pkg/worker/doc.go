// Package worker executes queued engine commands in the background.
//
// A command names a flow, an operation and the acting role, and carries the
// operation's request as JSON. Workers pull commands from a task queue,
// dispatch them to the engine and report the outcome. Several workers can
// share one queue; the engine serializes work on each instance.
//
// # Retries
//
// Only failures that may resolve on their own are retried: VERSION_CONFLICT
// (another process wrote the instance first) and INTERNAL (store
// unavailable). Request, state and role errors are final. A retried command
// goes back on the queue with NotBefore set to attempt*Backoff from now.
//
// # Tracing
//
// Each execution runs in an OpenTelemetry span named
// "packflow.command <flow>.<operation>" carrying the command id, the flow,
// the operation, the actor role and the attempt number. Failed commands
// record the error and its code on the span.
//
// # Usage
//
//	w := worker.NewWithConfig(eng, queue, worker.Config{MaxAttempts: 3, Backoff: 50 * time.Millisecond})
//	id, err := w.Enqueue(ctx, api.FlowReceipt, "release", actor, api.ReasonRequest{InstanceID: receiptID})
//	...
//	go w.Run(ctx)
//
// Most applications use packflow.LocalPlant, which wires engine, queue and
// workers together.
package worker
