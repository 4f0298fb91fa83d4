package queue

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// Job type identifiers shared by all broker implementations.
const (
	// TypeProcessTask executes a pending task.
	TypeProcessTask = "task:process"

	// TypeNotifyTask sends the completion notification for a task.
	TypeNotifyTask = "task:notify"
)

// ErrQueueFull is returned when a submission cannot be accepted because
// the broker's buffer is exhausted. The task stays PENDING and remains
// visible for manual retry.
var ErrQueueFull = errors.New("task queue is full")

// Client submits jobs to the work queue. Submission is fire-and-forget:
// it returns as soon as the broker accepts the job, never waiting for
// execution. Failure to submit surfaces as an error to the caller.
type Client interface {
	// SubmitProcess enqueues a process job for the task and returns the
	// broker's opaque job handle, later recorded as the task's external
	// job ID.
	SubmitProcess(ctx context.Context, taskID uuid.UUID) (jobID string, err error)

	// SubmitNotify enqueues a notification job for the task.
	SubmitNotify(ctx context.Context, taskID uuid.UUID) error

	// Close releases the client's broker resources.
	Close() error
}

// Handlers holds the functions the broker's worker pool invokes with a
// task id. Keeping the job logic behind plain functions makes it
// broker-agnostic and unit-testable without a real broker.
type Handlers struct {
	Process func(ctx context.Context, taskID uuid.UUID) error
	Notify  func(ctx context.Context, taskID uuid.UUID) error
}

// jobIDKey is the context key carrying the broker-assigned job handle
// into a handler invocation.
type jobIDKey struct{}

// WithJobID returns a context carrying the broker's job handle for the
// current handler invocation.
func WithJobID(ctx context.Context, jobID string) context.Context {
	return context.WithValue(ctx, jobIDKey{}, jobID)
}

// JobIDFromContext retrieves the broker's job handle for the current
// handler invocation, if one was set.
func JobIDFromContext(ctx context.Context) (string, bool) {
	jobID, ok := ctx.Value(jobIDKey{}).(string)
	return jobID, ok && jobID != ""
}
