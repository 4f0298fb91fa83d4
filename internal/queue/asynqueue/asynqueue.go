// Package asynqueue implements the queue contract on top of
// hibiken/asynq, a Redis-backed at-least-once work queue. Retry,
// backoff and dead-lettering for failed jobs are owned by asynq.
package asynqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/taskforge/taskforge-api/internal/queue"
)

// taskPayload is the JSON body of every job: just the task record id.
type taskPayload struct {
	TaskID string `json:"task_id"`
}

// Config holds the broker settings shared by client and server.
type Config struct {
	// RedisAddr is the host:port of the Redis broker.
	RedisAddr string

	// Queue is the asynq queue name jobs are submitted to.
	Queue string

	// Concurrency is the server's worker pool size.
	Concurrency int
}

// Client submits jobs to the Redis broker. It implements queue.Client.
type Client struct {
	client *asynq.Client
	queue  string
}

var _ queue.Client = (*Client)(nil)

// NewClient creates a broker client for the given Redis address.
func NewClient(cfg Config) *Client {
	q := cfg.Queue
	if q == "" {
		q = "default"
	}
	return &Client{
		client: asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr}),
		queue:  q,
	}
}

// SubmitProcess implements queue.Client.SubmitProcess. The returned job
// handle is asynq's task id for the enqueued job.
func (c *Client) SubmitProcess(ctx context.Context, taskID uuid.UUID) (string, error) {
	info, err := c.enqueue(ctx, queue.TypeProcessTask, taskID)
	if err != nil {
		return "", err
	}
	return info.ID, nil
}

// SubmitNotify implements queue.Client.SubmitNotify.
func (c *Client) SubmitNotify(ctx context.Context, taskID uuid.UUID) error {
	_, err := c.enqueue(ctx, queue.TypeNotifyTask, taskID)
	return err
}

func (c *Client) enqueue(ctx context.Context, jobType string, taskID uuid.UUID) (*asynq.TaskInfo, error) {
	payload, err := json.Marshal(taskPayload{TaskID: taskID.String()})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	info, err := c.client.EnqueueContext(ctx,
		asynq.NewTask(jobType, payload),
		asynq.Queue(c.queue),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue %s job: %w", jobType, err)
	}
	return info, nil
}

// Close implements queue.Client.Close.
func (c *Client) Close() error {
	return c.client.Close()
}

// Server runs the asynq worker pool and dispatches jobs to the
// registered handlers.
type Server struct {
	server *asynq.Server
	queue  string
	logger *slog.Logger
}

// NewServer creates the worker-pool server for the given Redis address.
func NewServer(cfg Config, logger *slog.Logger) *Server {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 10
	}
	q := cfg.Queue
	if q == "" {
		q = "default"
	}
	if logger == nil {
		logger = slog.Default()
	}

	server := asynq.NewServer(
		asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		asynq.Config{
			Concurrency: concurrency,
			Queues:      map[string]int{q: 1},
		},
	)

	return &Server{
		server: server,
		queue:  q,
		logger: logger.With(slog.String("component", "asynqueue")),
	}
}

// Start registers the handlers and runs the worker pool in the
// background. Handler errors propagate back to asynq, which applies
// its retry and dead-letter policy.
func (s *Server) Start(handlers queue.Handlers) error {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TypeProcessTask, s.wrap(handlers.Process))
	mux.HandleFunc(queue.TypeNotifyTask, s.wrap(handlers.Notify))

	if err := s.server.Start(mux); err != nil {
		return fmt.Errorf("failed to start queue server: %w", err)
	}
	return nil
}

// Shutdown stops the worker pool, waiting for in-flight jobs.
func (s *Server) Shutdown() {
	s.server.Shutdown()
}

// wrap adapts a queue handler to an asynq handler: it decodes the task
// id from the payload and exposes asynq's job id via the context so the
// process handler can record it on the task record.
func (s *Server) wrap(handler func(ctx context.Context, taskID uuid.UUID) error) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload taskPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			s.logger.Error("failed to unmarshal job payload",
				slog.String("job_type", t.Type()),
				slog.String("error", err.Error()))
			// Malformed payloads never become valid; skip retries.
			return fmt.Errorf("unmarshal payload: %v: %w", err, asynq.SkipRetry)
		}

		taskID, err := uuid.Parse(payload.TaskID)
		if err != nil {
			s.logger.Error("invalid task id in job payload",
				slog.String("job_type", t.Type()),
				slog.String("task_id", payload.TaskID))
			return fmt.Errorf("invalid task id: %v: %w", err, asynq.SkipRetry)
		}

		if jobID, ok := asynq.GetTaskID(ctx); ok {
			ctx = queue.WithJobID(ctx, jobID)
		}

		return handler(ctx, taskID)
	}
}
