package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/taskforge/taskforge-api/internal/domain"
	"github.com/taskforge/taskforge-api/internal/platform/logger"
	"github.com/taskforge/taskforge-api/internal/queue"
	"github.com/taskforge/taskforge-api/internal/store"
)

// CreateTaskParams holds the client-settable fields for a new task.
type CreateTaskParams struct {
	Title         string
	Description   *string
	ScheduledTime time.Time
}

// UpdateTaskParams holds the client-mutable fields for a direct field
// update. Nil fields are left unchanged. This is the explicit
// allow-list: status, result, error and the external job id are
// system-managed and have no representation here.
type UpdateTaskParams struct {
	Title         *string
	Description   *string
	ScheduledTime *time.Time
}

// UpdateStatusParams holds an explicit status-update request.
type UpdateStatusParams struct {
	Status string
	Result *string
	Error  *string
}

// TaskService implements the task operations exposed by the API layer.
type TaskService struct {
	taskStore store.TaskStore
	queue     queue.Client
	logger    *slog.Logger
}

// NewTaskService creates a TaskService.
func NewTaskService(taskStore store.TaskStore, queueClient queue.Client, logger *slog.Logger) (*TaskService, error) {
	if taskStore == nil {
		return nil, fmt.Errorf("taskStore cannot be nil")
	}
	if queueClient == nil {
		return nil, fmt.Errorf("queueClient cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &TaskService{
		taskStore: taskStore,
		queue:     queueClient,
		logger:    logger.With(slog.String("component", "task_service")),
	}, nil
}

// CreateTask creates a new PENDING task and enqueues its process job.
// The status is always forced to PENDING regardless of input. If the
// enqueue fails the created record is kept (still PENDING, visible for
// manual retry) and ErrEnqueueFailed is returned.
func (s *TaskService) CreateTask(ctx context.Context, params CreateTaskParams) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	task, err := domain.NewTask(params.Title, params.Description, params.ScheduledTime)
	if err != nil {
		return nil, err
	}

	if err := s.taskStore.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	if _, err := s.queue.SubmitProcess(ctx, task.ID); err != nil {
		log.Error("failed to enqueue process job for new task",
			slog.String("task_id", task.ID.String()),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("%w: %v", ErrEnqueueFailed, err)
	}

	log.Info("task created and enqueued",
		slog.String("task_id", task.ID.String()),
		slog.String("title", task.Title))
	return task, nil
}

// GetTask retrieves a task by ID.
func (s *TaskService) GetTask(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	return s.taskStore.GetByID(ctx, id)
}

// ListTasks returns tasks, newest first, optionally filtered by status.
// The status filter matches case-insensitively; an unknown value
// returns domain.ErrInvalidTaskStatus.
func (s *TaskService) ListTasks(ctx context.Context, statusFilter string, limit, offset int) ([]*domain.Task, error) {
	var status *domain.TaskStatus
	if statusFilter != "" {
		parsed, err := domain.ParseTaskStatus(statusFilter)
		if err != nil {
			return nil, err
		}
		status = &parsed
	}

	return s.taskStore.List(ctx, status, limit, offset)
}

// runInStoreTx executes fn against a transaction-bound store when the
// underlying store exposes a connection pool, and directly against the
// store otherwise (in-memory fakes). Read-modify-write operations use
// this so their load and write commit atomically.
func (s *TaskService) runInStoreTx(
	ctx context.Context,
	fn func(ctx context.Context, taskStore store.TaskStore) error,
) error {
	type dbProvider interface{ DB() *sql.DB }
	if provider, ok := s.taskStore.(dbProvider); ok {
		if db := provider.DB(); db != nil {
			return store.RunInTransaction(ctx, db, func(ctx context.Context, tx *sql.Tx) error {
				return fn(ctx, s.taskStore.WithTx(tx))
			})
		}
	}
	return fn(ctx, s.taskStore)
}

// UpdateTask applies a direct field update to a task. Only the
// allow-listed fields in UpdateTaskParams can change.
func (s *TaskService) UpdateTask(ctx context.Context, id uuid.UUID, params UpdateTaskParams) (*domain.Task, error) {
	var task *domain.Task
	err := s.runInStoreTx(ctx, func(ctx context.Context, taskStore store.TaskStore) error {
		var err error
		task, err = taskStore.GetByID(ctx, id)
		if err != nil {
			return err
		}

		if params.Title != nil {
			task.Title = *params.Title
		}
		if params.Description != nil {
			task.Description = params.Description
		}
		if params.ScheduledTime != nil {
			task.ScheduledTime = *params.ScheduledTime
		}
		task.UpdatedAt = time.Now().UTC()

		return taskStore.Update(ctx, task)
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// DeleteTask removes a task by ID.
func (s *TaskService) DeleteTask(ctx context.Context, id uuid.UUID) error {
	return s.taskStore.Delete(ctx, id)
}

// RetryTask creates a fresh PENDING task cloned from a terminal one and
// enqueues it. The original record is never mutated. Returns
// domain.ErrTaskNotRetryable when the task is not FAILED or COMPLETED;
// no new record is created in that case.
func (s *TaskService) RetryTask(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	task, err := s.taskStore.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	retry, err := task.NewRetry()
	if err != nil {
		return nil, err
	}

	if err := s.taskStore.Create(ctx, retry); err != nil {
		return nil, fmt.Errorf("failed to create retry task: %w", err)
	}

	if _, err := s.queue.SubmitProcess(ctx, retry.ID); err != nil {
		log.Error("failed to enqueue process job for retry task",
			slog.String("task_id", retry.ID.String()),
			slog.String("original_task_id", id.String()),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("%w: %v", ErrEnqueueFailed, err)
	}

	log.Info("retry task created and enqueued",
		slog.String("task_id", retry.ID.String()),
		slog.String("original_task_id", id.String()))
	return retry, nil
}

// UpdateStatus applies an explicit status-update request, routing
// through the same transition helpers as the worker so the terminal
// side effects (completed_at, result, error) apply. Any other valid
// status is a raw field assignment. Persistence is last-writer-wins.
func (s *TaskService) UpdateStatus(ctx context.Context, id uuid.UUID, params UpdateStatusParams) (*domain.Task, error) {
	status, err := domain.ParseTaskStatus(params.Status)
	if err != nil {
		return nil, err
	}

	var task *domain.Task
	err = s.runInStoreTx(ctx, func(ctx context.Context, taskStore store.TaskStore) error {
		var err error
		task, err = taskStore.GetByID(ctx, id)
		if err != nil {
			return err
		}

		switch status {
		case domain.TaskStatusCompleted:
			result := ""
			if params.Result != nil {
				result = *params.Result
			}
			task.MarkCompleted(result)
			if params.Result == nil {
				// An explicit completion without a payload leaves the
				// result unset rather than storing an empty string.
				task.Result = nil
			}
		case domain.TaskStatusFailed:
			errMsg := "An error occurred"
			if params.Error != nil {
				errMsg = *params.Error
			}
			task.MarkFailed(errMsg)
		case domain.TaskStatusInProgress:
			task.MarkInProgress("")
		default:
			task.Status = status
			task.UpdatedAt = time.Now().UTC()
		}

		return taskStore.Update(ctx, task)
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}
