package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/taskforge/taskforge-api/internal/domain"
	"github.com/taskforge/taskforge-api/internal/platform/logger"
	"github.com/taskforge/taskforge-api/internal/store"
)

// taskColumns is the column list shared by every SELECT on the tasks table.
const taskColumns = `id, title, description, status, created_at, updated_at,
	scheduled_time, completed_at, result, error, external_job_id`

// PostgresTaskStore implements the store.TaskStore interface using
// a PostgreSQL database as the storage backend.
type PostgresTaskStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// Ensure PostgresTaskStore implements store.TaskStore
var _ store.TaskStore = (*PostgresTaskStore)(nil)

// NewPostgresTaskStore creates a new PostgreSQL implementation of the
// TaskStore interface. It accepts a database connection or transaction
// managed by the caller. If logger is nil, the default logger is used.
func NewPostgresTaskStore(db store.DBTX, logger *slog.Logger) *PostgresTaskStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresTaskStore{
		db:     db,
		logger: logger.With(slog.String("component", "task_store")),
	}
}

// WithTx returns a new store bound to the given transaction.
func (s *PostgresTaskStore) WithTx(tx *sql.Tx) store.TaskStore {
	return &PostgresTaskStore{
		db:     tx,
		logger: s.logger,
	}
}

// DB exposes the underlying connection pool so callers can open
// transactions around multi-statement operations. Returns nil when the
// store is already bound to a transaction.
func (s *PostgresTaskStore) DB() *sql.DB {
	if db, ok := s.db.(*sql.DB); ok {
		return db
	}
	return nil
}

// Create implements store.TaskStore.Create.
// It saves a new task to the database after domain validation.
// Returns store.ErrDuplicateJobID if the external job ID is taken.
func (s *PostgresTaskStore) Create(ctx context.Context, task *domain.Task) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := task.Validate(); err != nil {
		log.Warn("task validation failed during create",
			slog.String("error", err.Error()),
			slog.String("task_id", task.ID.String()))
		return err
	}

	query := `
		INSERT INTO tasks (` + taskColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := s.db.ExecContext(
		ctx,
		query,
		task.ID,
		task.Title,
		task.Description,
		task.Status,
		task.CreatedAt,
		task.UpdatedAt,
		task.ScheduledTime,
		task.CompletedAt,
		task.Result,
		task.Error,
		task.ExternalJobID,
	)
	if err != nil {
		log.Error("failed to create task",
			slog.String("error", err.Error()),
			slog.String("task_id", task.ID.String()))
		return MapError(err)
	}

	log.Info("task created",
		slog.String("task_id", task.ID.String()),
		slog.String("title", task.Title),
		slog.String("status", string(task.Status)))
	return nil
}

// GetByID implements store.TaskStore.GetByID.
// Returns store.ErrTaskNotFound if the task does not exist.
func (s *PostgresTaskStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`

	task, err := scanTask(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("task not found", slog.String("task_id", id.String()))
			return nil, store.ErrTaskNotFound
		}
		log.Error("failed to get task by ID",
			slog.String("error", err.Error()),
			slog.String("task_id", id.String()))
		return nil, MapError(err)
	}

	return task, nil
}

// List implements store.TaskStore.List.
// Tasks are ordered newest first; a non-nil status filters the result.
func (s *PostgresTaskStore) List(
	ctx context.Context,
	status *domain.TaskStatus,
	limit, offset int,
) ([]*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var (
		rows *sql.Rows
		err  error
	)
	if status != nil {
		query := `SELECT ` + taskColumns + ` FROM tasks
			WHERE status = $1
			ORDER BY created_at DESC
			LIMIT $2 OFFSET $3`
		rows, err = s.db.QueryContext(ctx, query, *status, limit, offset)
	} else {
		query := `SELECT ` + taskColumns + ` FROM tasks
			ORDER BY created_at DESC
			LIMIT $1 OFFSET $2`
		rows, err = s.db.QueryContext(ctx, query, limit, offset)
	}
	if err != nil {
		log.Error("failed to list tasks", slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	return collectTasks(rows, log)
}

// FindByStatus implements store.TaskStore.FindByStatus.
// Tasks are ordered oldest first so recovered work keeps its original order.
func (s *PostgresTaskStore) FindByStatus(
	ctx context.Context,
	status domain.TaskStatus,
) ([]*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT ` + taskColumns + ` FROM tasks
		WHERE status = $1
		ORDER BY created_at ASC`

	rows, err := s.db.QueryContext(ctx, query, status)
	if err != nil {
		log.Error("failed to find tasks by status",
			slog.String("error", err.Error()),
			slog.String("status", string(status)))
		return nil, MapError(err)
	}

	return collectTasks(rows, log)
}

// Update implements store.TaskStore.Update (last-writer-wins).
// Returns store.ErrTaskNotFound if the task does not exist.
func (s *PostgresTaskStore) Update(ctx context.Context, task *domain.Task) error {
	return s.update(ctx, task, nil)
}

// UpdateWithStatusCheck implements store.TaskStore.UpdateWithStatusCheck.
// The write succeeds only when the stored row is still in the expected
// status, making worker transitions a compare-and-set.
func (s *PostgresTaskStore) UpdateWithStatusCheck(
	ctx context.Context,
	task *domain.Task,
	expected domain.TaskStatus,
) error {
	return s.update(ctx, task, &expected)
}

func (s *PostgresTaskStore) update(
	ctx context.Context,
	task *domain.Task,
	expected *domain.TaskStatus,
) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := task.Validate(); err != nil {
		log.Warn("task validation failed during update",
			slog.String("error", err.Error()),
			slog.String("task_id", task.ID.String()))
		return err
	}

	var (
		result sql.Result
		err    error
	)
	if expected != nil {
		query := `
			UPDATE tasks
			SET title = $1, description = $2, status = $3, updated_at = $4,
				scheduled_time = $5, completed_at = $6, result = $7,
				error = $8, external_job_id = $9
			WHERE id = $10 AND status = $11
		`
		result, err = s.db.ExecContext(ctx, query,
			task.Title, task.Description, task.Status, task.UpdatedAt,
			task.ScheduledTime, task.CompletedAt, task.Result,
			task.Error, task.ExternalJobID, task.ID, *expected)
	} else {
		query := `
			UPDATE tasks
			SET title = $1, description = $2, status = $3, updated_at = $4,
				scheduled_time = $5, completed_at = $6, result = $7,
				error = $8, external_job_id = $9
			WHERE id = $10
		`
		result, err = s.db.ExecContext(ctx, query,
			task.Title, task.Description, task.Status, task.UpdatedAt,
			task.ScheduledTime, task.CompletedAt, task.Result,
			task.Error, task.ExternalJobID, task.ID)
	}
	if err != nil {
		log.Error("failed to update task",
			slog.String("error", err.Error()),
			slog.String("task_id", task.ID.String()),
			slog.String("status", string(task.Status)))
		return MapError(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		log.Error("failed to get rows affected",
			slog.String("error", err.Error()),
			slog.String("task_id", task.ID.String()))
		return err
	}

	if rowsAffected == 0 {
		// Row either does not exist or, for the CAS variant, holds a
		// different status than expected. Distinguish by re-reading.
		if expected != nil {
			if _, getErr := s.GetByID(ctx, task.ID); getErr == nil {
				log.Warn("concurrent status change detected",
					slog.String("task_id", task.ID.String()),
					slog.String("expected_status", string(*expected)))
				return store.ErrStatusConflict
			}
		}
		log.Debug("task not found for update",
			slog.String("task_id", task.ID.String()))
		return store.ErrTaskNotFound
	}

	log.Info("task updated",
		slog.String("task_id", task.ID.String()),
		slog.String("status", string(task.Status)))
	return nil
}

// Delete implements store.TaskStore.Delete.
// Returns store.ErrTaskNotFound if the task does not exist.
func (s *PostgresTaskStore) Delete(ctx context.Context, id uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	result, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		log.Error("failed to delete task",
			slog.String("error", err.Error()),
			slog.String("task_id", id.String()))
		return MapError(err)
	}

	if err := CheckRowsAffected(result); err != nil {
		return err
	}

	log.Info("task deleted", slog.String("task_id", id.String()))
	return nil
}

// DeleteCompletedBefore implements store.TaskStore.DeleteCompletedBefore.
// Only COMPLETED tasks are eligible; the delete is a hard prune.
func (s *PostgresTaskStore) DeleteCompletedBefore(
	ctx context.Context,
	cutoff time.Time,
) (int64, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		DELETE FROM tasks
		WHERE status = $1 AND completed_at < $2
	`
	result, err := s.db.ExecContext(ctx, query, domain.TaskStatusCompleted, cutoff)
	if err != nil {
		log.Error("failed to delete old completed tasks",
			slog.String("error", err.Error()),
			slog.Time("cutoff", cutoff))
		return 0, MapError(err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		log.Error("failed to get rows affected for cleanup",
			slog.String("error", err.Error()))
		return 0, err
	}

	log.Info("old completed tasks deleted",
		slog.Int64("count", deleted),
		slog.Time("cutoff", cutoff))
	return deleted, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanTask maps one tasks row into a domain.Task.
func scanTask(row rowScanner) (*domain.Task, error) {
	var (
		task        domain.Task
		status      string
		description sql.NullString
		completedAt sql.NullTime
		result      sql.NullString
		errMsg      sql.NullString
		jobID       sql.NullString
	)

	err := row.Scan(
		&task.ID,
		&task.Title,
		&description,
		&status,
		&task.CreatedAt,
		&task.UpdatedAt,
		&task.ScheduledTime,
		&completedAt,
		&result,
		&errMsg,
		&jobID,
	)
	if err != nil {
		return nil, err
	}

	task.Status = domain.TaskStatus(status)
	if description.Valid {
		task.Description = &description.String
	}
	if completedAt.Valid {
		t := completedAt.Time
		task.CompletedAt = &t
	}
	if result.Valid {
		task.Result = &result.String
	}
	if errMsg.Valid {
		task.Error = &errMsg.String
	}
	if jobID.Valid {
		task.ExternalJobID = &jobID.String
	}

	return &task, nil
}

// collectTasks drains rows into a slice, always returning a non-nil slice.
func collectTasks(rows *sql.Rows, log *slog.Logger) ([]*domain.Task, error) {
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	tasks := []*domain.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			log.Error("failed to scan task row", slog.String("error", err.Error()))
			return nil, err
		}
		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		log.Error("error after scanning rows", slog.String("error", err.Error()))
		return nil, err
	}

	return tasks, nil
}
