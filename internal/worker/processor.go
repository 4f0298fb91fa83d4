package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/taskforge/taskforge-api/internal/domain"
	"github.com/taskforge/taskforge-api/internal/platform/logger"
	"github.com/taskforge/taskforge-api/internal/platform/mail"
	"github.com/taskforge/taskforge-api/internal/queue"
	"github.com/taskforge/taskforge-api/internal/store"
)

// WorkFunc is the unit of work a process job performs for a task.
// It returns the result payload stored on successful completion.
// The hook is injectable so the lifecycle logic stays independent of
// what a task actually does.
type WorkFunc func(ctx context.Context, task *domain.Task) (string, error)

// DefaultWork is the placeholder unit of work: it produces the standard
// completion message without doing anything else.
func DefaultWork(ctx context.Context, task *domain.Task) (string, error) {
	return fmt.Sprintf("Task %s completed successfully", task.Title), nil
}

// Processor owns the background job logic: processing a task through
// its status transitions, sending the completion notification, and
// pruning old completed tasks.
type Processor struct {
	taskStore    store.TaskStore
	mailer       mail.Mailer
	notifyClient queue.Client
	work         WorkFunc
	logger       *slog.Logger
}

// NewProcessor creates a Processor. A nil mailer disables
// notifications; a nil work function falls back to DefaultWork.
func NewProcessor(
	taskStore store.TaskStore,
	mailer mail.Mailer,
	work WorkFunc,
	logger *slog.Logger,
) *Processor {
	if work == nil {
		work = DefaultWork
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Processor{
		taskStore: taskStore,
		mailer:    mailer,
		work:      work,
		logger:    logger.With(slog.String("component", "worker")),
	}
}

// SetNotifyClient wires the queue client used to enqueue notification
// jobs. Set after construction because the queue itself is built around
// this processor's handlers.
func (p *Processor) SetNotifyClient(client queue.Client) {
	p.notifyClient = client
}

// Handlers returns the queue handler set backed by this processor.
func (p *Processor) Handlers() queue.Handlers {
	return queue.Handlers{
		Process: p.ProcessTask,
		Notify:  p.NotifyTask,
	}
}

// ProcessTask runs the lifecycle of one task: load, transition to
// IN_PROGRESS recording the broker job handle, execute the unit of
// work, then transition to COMPLETED or FAILED. Any failure is recorded
// on the task before the error is returned, so observers see FAILED
// rather than a stale status while the queue applies its retry policy.
func (p *Processor) ProcessTask(ctx context.Context, taskID uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, p.logger).With(
		slog.String("task_id", taskID.String()))

	task, err := p.taskStore.GetByID(ctx, taskID)
	if err != nil {
		log.Error("failed to load task", slog.String("error", err.Error()))
		return fmt.Errorf("failed to load task %s: %w", taskID, err)
	}

	// At-least-once brokers can redeliver a job after the task already
	// finished; a terminal record is never reopened.
	if task.IsTerminal() {
		log.Info("task already in terminal state, skipping",
			slog.String("status", string(task.Status)))
		return nil
	}

	loadedStatus := task.Status
	jobID, _ := queue.JobIDFromContext(ctx)

	task.MarkInProgress(jobID)
	if err := p.taskStore.UpdateWithStatusCheck(ctx, task, loadedStatus); err != nil {
		if errors.Is(err, store.ErrStatusConflict) {
			// Another worker owns this record now; back off without
			// stomping its state.
			log.Warn("task claimed by another worker, skipping")
			return err
		}
		p.recordFailure(ctx, task, err, log)
		return fmt.Errorf("failed to mark task in progress: %w", err)
	}

	log.Info("processing task", slog.String("title", task.Title))

	result, err := p.work(ctx, task)
	if err != nil {
		p.recordFailure(ctx, task, err, log)
		return err
	}

	task.MarkCompleted(result)
	if err := p.taskStore.UpdateWithStatusCheck(ctx, task, domain.TaskStatusInProgress); err != nil {
		if errors.Is(err, store.ErrStatusConflict) {
			// Someone else moved this record to a terminal state while
			// the work ran; leave their result in place.
			log.Warn("task status changed concurrently, skipping completion")
			return err
		}
		p.recordFailure(ctx, task, err, log)
		return fmt.Errorf("failed to mark task completed: %w", err)
	}

	log.Info("task completed", slog.String("result", result))

	// Notification is best-effort: a failed enqueue never fails the task.
	if p.mailer != nil && p.notifyClient != nil {
		if err := p.notifyClient.SubmitNotify(ctx, task.ID); err != nil {
			log.Warn("failed to enqueue notification",
				slog.String("error", err.Error()))
		}
	}

	return nil
}

// recordFailure marks the loaded task FAILED with the error message and
// persists it best-effort. The original error still propagates to the
// caller afterwards.
func (p *Processor) recordFailure(ctx context.Context, task *domain.Task, cause error, log *slog.Logger) {
	task.MarkFailed(cause.Error())
	if err := p.taskStore.Update(ctx, task); err != nil {
		log.Error("failed to record task failure",
			slog.String("error", err.Error()),
			slog.String("cause", cause.Error()))
		return
	}
	log.Error("task failed", slog.String("error", cause.Error()))
}

// NotifyTask sends the completion notification for a task. It loads
// the terminal record, formats the message and delivers it through the
// mail transport. Errors propagate to the queue's retry policy; the
// task record is never mutated here.
func (p *Processor) NotifyTask(ctx context.Context, taskID uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, p.logger).With(
		slog.String("task_id", taskID.String()))

	if p.mailer == nil {
		log.Debug("mailer not configured, skipping notification")
		return nil
	}

	task, err := p.taskStore.GetByID(ctx, taskID)
	if err != nil {
		log.Error("failed to load task for notification",
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to load task %s: %w", taskID, err)
	}

	subject := fmt.Sprintf("Task Completed: %s", task.Title)
	body := formatNotification(task)

	if err := p.mailer.Send(ctx, subject, body); err != nil {
		log.Error("failed to send notification",
			slog.String("error", err.Error()))
		return err
	}

	log.Info("notification sent")
	return nil
}

// formatNotification renders the plain-text notification body.
func formatNotification(task *domain.Task) string {
	completedAt := ""
	if task.CompletedAt != nil {
		completedAt = task.CompletedAt.Format(time.RFC3339)
	}
	result := ""
	if task.Result != nil {
		result = *task.Result
	}

	return fmt.Sprintf(
		"Task Details:\nTitle: %s\nStatus: %s\nCompleted at: %s\nResult: %s",
		task.Title,
		task.StatusDisplay(),
		completedAt,
		result,
	)
}

// CleanupTasks deletes COMPLETED tasks whose completion timestamp is
// older than the retention window. FAILED tasks are never auto-deleted.
// Returns the number of tasks removed.
func (p *Processor) CleanupTasks(ctx context.Context, retention time.Duration) (int64, error) {
	log := logger.FromContextOrDefault(ctx, p.logger)

	cutoff := time.Now().UTC().Add(-retention)
	deleted, err := p.taskStore.DeleteCompletedBefore(ctx, cutoff)
	if err != nil {
		log.Error("cleanup failed", slog.String("error", err.Error()))
		return 0, fmt.Errorf("failed to clean up old tasks: %w", err)
	}

	log.Info("cleaned up old tasks", slog.Int64("deleted", deleted))
	return deleted, nil
}
