package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/taskforge/taskforge-api/internal/domain"
)

// TaskStore defines the interface for task data persistence.
type TaskStore interface {
	// Create saves a new task to the store.
	// Returns validation errors from the domain Task if the data is
	// invalid, or ErrDuplicateJobID if the external job ID is taken.
	Create(ctx context.Context, task *domain.Task) error

	// GetByID retrieves a task by its unique ID.
	// Returns ErrTaskNotFound if the task does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error)

	// List retrieves tasks ordered by creation time, newest first.
	// A non-nil status restricts the result to tasks in that status.
	List(ctx context.Context, status *domain.TaskStatus, limit, offset int) ([]*domain.Task, error)

	// Update saves all mutable fields of an existing task
	// (last-writer-wins). Returns ErrTaskNotFound if the task does
	// not exist.
	Update(ctx context.Context, task *domain.Task) error

	// UpdateWithStatusCheck saves the task only if the stored row is
	// still in the expected status, making status transitions a
	// compare-and-set. Returns ErrStatusConflict if another writer got
	// there first, ErrTaskNotFound if the task does not exist.
	UpdateWithStatusCheck(ctx context.Context, task *domain.Task, expected domain.TaskStatus) error

	// Delete removes a task by ID.
	// Returns ErrTaskNotFound if the task does not exist.
	Delete(ctx context.Context, id uuid.UUID) error

	// DeleteCompletedBefore removes every COMPLETED task whose
	// completion timestamp is older than the cutoff. Tasks in any
	// other status are never touched. Returns the number of rows
	// deleted.
	DeleteCompletedBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// FindByStatus retrieves all tasks in the given status, oldest
	// first. Used by the in-process queue to recover pending work at
	// startup.
	FindByStatus(ctx context.Context, status domain.TaskStatus) ([]*domain.Task, error)

	// WithTx returns a new TaskStore instance that uses the provided
	// transaction. The transaction is created and managed by the
	// caller.
	WithTx(tx *sql.Tx) TaskStore
}
