// Package memqueue provides an in-process implementation of the queue
// contract: a buffered channel drained by a pool of worker goroutines.
// It needs no external broker, which makes it the backend for tests and
// single-node deployments, at the cost of at-most-once delivery.
package memqueue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/taskforge/taskforge-api/internal/domain"
	"github.com/taskforge/taskforge-api/internal/queue"
	"github.com/taskforge/taskforge-api/internal/store"
)

// Config holds tuning for the in-process queue.
type Config struct {
	// WorkerCount determines how many concurrent workers drain the queue.
	WorkerCount int

	// BufferSize determines the capacity of the in-memory job buffer.
	BufferSize int
}

// DefaultConfig returns a Config with reasonable defaults.
func DefaultConfig() Config {
	return Config{
		WorkerCount: 2,
		BufferSize:  100,
	}
}

// job is one buffered work item.
type job struct {
	kind   string
	taskID uuid.UUID
	jobID  string
}

// Queue is an in-process work queue backed by a channel and a worker
// pool. It implements queue.Client.
type Queue struct {
	taskStore  store.TaskStore
	handlers   queue.Handlers
	jobs       chan job
	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	config     Config
	logger     *slog.Logger

	mu     sync.Mutex
	closed bool
}

// Ensure Queue implements the queue contract
var _ queue.Client = (*Queue)(nil)

// New creates an in-process queue. The task store is used to recover
// unfinished tasks at startup; handlers hold the job logic invoked by
// the workers.
func New(taskStore store.TaskStore, handlers queue.Handlers, cfg Config, logger *slog.Logger) *Queue {
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = DefaultConfig().WorkerCount
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultConfig().BufferSize
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Queue{
		taskStore:  taskStore,
		handlers:   handlers,
		jobs:       make(chan job, cfg.BufferSize),
		ctx:        ctx,
		cancelFunc: cancel,
		config:     cfg,
		logger:     logger.With(slog.String("component", "memqueue")),
	}
}

// Start recovers unfinished tasks from the store and launches the
// worker pool.
func (q *Queue) Start() error {
	if err := q.recover(); err != nil {
		return fmt.Errorf("failed to recover tasks: %w", err)
	}

	for i := 0; i < q.config.WorkerCount; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}

	return nil
}

// Close stops accepting jobs and waits for in-flight handlers to finish.
func (q *Queue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	q.mu.Unlock()

	q.cancelFunc()
	q.wg.Wait()
	// The jobs channel is left open: a submit racing Close must fail
	// with an error, never panic on a closed channel.
	return nil
}

// SubmitProcess implements queue.Client.SubmitProcess. The job handle
// is generated locally since there is no external broker to assign one.
func (q *Queue) SubmitProcess(ctx context.Context, taskID uuid.UUID) (string, error) {
	jobID := uuid.NewString()
	if err := q.submit(job{kind: queue.TypeProcessTask, taskID: taskID, jobID: jobID}); err != nil {
		return "", err
	}
	return jobID, nil
}

// SubmitNotify implements queue.Client.SubmitNotify.
func (q *Queue) SubmitNotify(ctx context.Context, taskID uuid.UUID) error {
	return q.submit(job{kind: queue.TypeNotifyTask, taskID: taskID})
}

func (q *Queue) submit(j job) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return fmt.Errorf("queue is closed")
	}
	q.mu.Unlock()

	select {
	case q.jobs <- j:
		return nil
	default:
		return queue.ErrQueueFull
	}
}

// recover requeues tasks left PENDING or IN_PROGRESS by a previous run.
// In-progress tasks were interrupted mid-flight; they are requeued so
// the worker transition logic runs them again from a clean load.
func (q *Queue) recover() error {
	ctx := context.Background()

	pending, err := q.taskStore.FindByStatus(ctx, domain.TaskStatusPending)
	if err != nil {
		return fmt.Errorf("failed to load pending tasks: %w", err)
	}

	interrupted, err := q.taskStore.FindByStatus(ctx, domain.TaskStatusInProgress)
	if err != nil {
		return fmt.Errorf("failed to load in-progress tasks: %w", err)
	}

	q.logger.Info("recovering unfinished tasks",
		slog.Int("pending_count", len(pending)),
		slog.Int("in_progress_count", len(interrupted)))

	for _, task := range append(pending, interrupted...) {
		j := job{kind: queue.TypeProcessTask, taskID: task.ID, jobID: uuid.NewString()}
		select {
		case q.jobs <- j:
		default:
			q.logger.Error("failed to requeue task, queue is full",
				slog.String("task_id", task.ID.String()))
		}
	}

	return nil
}

// worker drains jobs until the queue is stopped.
func (q *Queue) worker(id int) {
	defer q.wg.Done()

	log := q.logger.With(slog.Int("worker_id", id))
	log.Debug("starting worker")

	for {
		select {
		case <-q.ctx.Done():
			log.Debug("stopping worker")
			return

		case j := <-q.jobs:
			q.runJob(j, log)
		}
	}
}

func (q *Queue) runJob(j job, log *slog.Logger) {
	ctx := q.ctx
	if j.jobID != "" {
		ctx = queue.WithJobID(ctx, j.jobID)
	}

	var err error
	switch j.kind {
	case queue.TypeProcessTask:
		err = q.handlers.Process(ctx, j.taskID)
	case queue.TypeNotifyTask:
		err = q.handlers.Notify(ctx, j.taskID)
	default:
		err = fmt.Errorf("unknown job type %q", j.kind)
	}

	// The handler has already recorded the failure on the task record;
	// with no broker retry policy the error ends here.
	if err != nil {
		log.Error("job failed",
			slog.String("job_type", j.kind),
			slog.String("task_id", j.taskID.String()),
			slog.String("error", err.Error()))
	}
}
