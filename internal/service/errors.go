package service

import "errors"

// Common service errors
var (
	// ErrEnqueueFailed indicates the work queue rejected a job
	// submission. The task record stays PENDING and can be retried
	// manually.
	ErrEnqueueFailed = errors.New("failed to enqueue task for processing")
)
