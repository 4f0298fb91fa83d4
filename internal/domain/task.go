package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the lifecycle state of a task
type TaskStatus string

// Possible task status values
const (
	TaskStatusPending    TaskStatus = "PENDING"
	TaskStatusInProgress TaskStatus = "IN_PROGRESS"
	TaskStatusCompleted  TaskStatus = "COMPLETED"
	TaskStatusFailed     TaskStatus = "FAILED"
)

// MaxTitleLength is the maximum number of characters allowed in a task title.
const MaxTitleLength = 200

// Common validation errors for Task
var (
	ErrEmptyTaskID       = errors.New("task ID cannot be empty")
	ErrEmptyTaskTitle    = errors.New("task title cannot be empty")
	ErrTaskTitleTooLong  = errors.New("task title exceeds maximum length")
	ErrInvalidTaskStatus = errors.New("invalid task status")
	ErrTaskNotRetryable  = errors.New("only failed or completed tasks can be retried")
)

// Task represents a unit of deferred work tracked through a status
// lifecycle. Execution happens in a background worker; the record
// captures the outcome (result or error) and the terminal timestamp.
type Task struct {
	ID            uuid.UUID  `json:"id"`
	Title         string     `json:"title"`
	Description   *string    `json:"description"`
	Status        TaskStatus `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	ScheduledTime time.Time  `json:"scheduled_time"`
	CompletedAt   *time.Time `json:"completed_at"`
	Result        *string    `json:"result"`
	Error         *string    `json:"error"`
	ExternalJobID *string    `json:"external_job_id"`
}

// NewTask creates a new Task with the given title, optional description
// and scheduled time. It generates a new UUID, sets the status to
// PENDING and initializes the timestamps. A zero scheduledTime defaults
// to the creation time.
// Returns an error if validation fails.
func NewTask(title string, description *string, scheduledTime time.Time) (*Task, error) {
	now := time.Now().UTC()
	if scheduledTime.IsZero() {
		scheduledTime = now
	}

	task := &Task{
		ID:            uuid.New(),
		Title:         title,
		Description:   description,
		Status:        TaskStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
		ScheduledTime: scheduledTime,
	}

	if err := task.Validate(); err != nil {
		return nil, err
	}

	return task, nil
}

// Validate checks if the Task has valid data.
// Returns an error if any field fails validation.
func (t *Task) Validate() error {
	if t.ID == uuid.Nil {
		return ErrEmptyTaskID
	}

	if t.Title == "" {
		return ErrEmptyTaskTitle
	}

	if len(t.Title) > MaxTitleLength {
		return ErrTaskTitleTooLong
	}

	if !isValidTaskStatus(t.Status) {
		return ErrInvalidTaskStatus
	}

	return nil
}

// MarkInProgress transitions the task to IN_PROGRESS and records the
// external job handle when one is provided. The mutation is
// unconditional; callers are responsible for checking the current
// status first.
func (t *Task) MarkInProgress(externalJobID string) {
	t.Status = TaskStatusInProgress
	if externalJobID != "" {
		t.ExternalJobID = &externalJobID
	}
	t.UpdatedAt = time.Now().UTC()
}

// MarkCompleted transitions the task to COMPLETED, sets the completion
// timestamp and stores the result payload. Error is cleared.
func (t *Task) MarkCompleted(result string) {
	now := time.Now().UTC()
	t.Status = TaskStatusCompleted
	t.CompletedAt = &now
	t.Result = &result
	t.Error = nil
	t.UpdatedAt = now
}

// MarkFailed transitions the task to FAILED, sets the completion
// timestamp and stores the error message. Result is cleared.
func (t *Task) MarkFailed(errMsg string) {
	now := time.Now().UTC()
	t.Status = TaskStatusFailed
	t.CompletedAt = &now
	t.Error = &errMsg
	t.Result = nil
	t.UpdatedAt = now
}

// IsTerminal reports whether the task is in a terminal state.
// No automatic transition leaves a terminal state.
func (t *Task) IsTerminal() bool {
	return t.Status == TaskStatusCompleted || t.Status == TaskStatusFailed
}

// CanRetry reports whether a retry may be created from this task.
// Only terminal tasks are retryable; retry never mutates the original
// record, it clones a new one.
func (t *Task) CanRetry() bool {
	return t.IsTerminal()
}

// retrySuffix is appended to a retried task's title.
const retrySuffix = " (Retry)"

// NewRetry creates a fresh PENDING task cloned from this one. The new
// task gets a distinct ID, the title suffixed with " (Retry)", and the
// same description and scheduled time. Titles near MaxTitleLength are
// truncated so the suffixed title always stays within the limit.
// Returns ErrTaskNotRetryable if the task is not in a terminal state.
func (t *Task) NewRetry() (*Task, error) {
	if !t.CanRetry() {
		return nil, ErrTaskNotRetryable
	}
	title := t.Title
	if len(title)+len(retrySuffix) > MaxTitleLength {
		title = title[:MaxTitleLength-len(retrySuffix)]
	}
	return NewTask(title+retrySuffix, t.Description, t.ScheduledTime)
}

// StatusDisplay returns the human-readable label for the task's status.
func (t *Task) StatusDisplay() string {
	return statusDisplay(t.Status)
}

// ParseTaskStatus converts a string into a TaskStatus, matching
// case-insensitively. Returns ErrInvalidTaskStatus for unknown values.
func ParseTaskStatus(s string) (TaskStatus, error) {
	status := TaskStatus(strings.ToUpper(s))
	if !isValidTaskStatus(status) {
		return "", ErrInvalidTaskStatus
	}
	return status, nil
}

// isValidTaskStatus checks if the given status is a valid TaskStatus.
func isValidTaskStatus(status TaskStatus) bool {
	switch status {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted, TaskStatusFailed:
		return true
	default:
		return false
	}
}

func statusDisplay(status TaskStatus) string {
	switch status {
	case TaskStatusPending:
		return "Pending"
	case TaskStatusInProgress:
		return "In Progress"
	case TaskStatusCompleted:
		return "Completed"
	case TaskStatusFailed:
		return "Failed"
	default:
		return string(status)
	}
}
