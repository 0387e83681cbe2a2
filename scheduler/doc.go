// Package scheduler runs named background tasks on a bounded worker pool.
//
// Tasks are keyed by a target id (typically a source id). Submitting a task
// for a target that already has a pending or running task is a no-op, so
// repeated requests to process the same source collapse into one run.
// Submit never blocks: tasks wait in a FIFO queue until a worker is free.
//
// Cancellation is cooperative. Pending tasks are cancelled immediately;
// running tasks have their context cancelled and are recorded as cancelled
// once their function returns. Every task ends in exactly one terminal state.
package scheduler
