package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/taskforge/taskforge-api/internal/config"
	"github.com/taskforge/taskforge-api/internal/platform/mail"
	"github.com/taskforge/taskforge-api/internal/platform/postgres"
	"github.com/taskforge/taskforge-api/internal/queue"
	"github.com/taskforge/taskforge-api/internal/queue/asynqueue"
	"github.com/taskforge/taskforge-api/internal/queue/memqueue"
	"github.com/taskforge/taskforge-api/internal/service"
	"github.com/taskforge/taskforge-api/internal/service/auth"
	"github.com/taskforge/taskforge-api/internal/store"
	"github.com/taskforge/taskforge-api/internal/worker"
)

// application holds the wired components of the server process.
type application struct {
	config           *config.Config
	logger           *slog.Logger
	db               *sql.DB
	taskStore        store.TaskStore
	taskService      *service.TaskService
	processor        *worker.Processor
	queueClient      queue.Client
	queueServer      *asynqueue.Server
	memQueue         *memqueue.Queue
	jwtService       auth.JWTService
	passwordVerifier auth.PasswordVerifier
	scheduler        *cron.Cron
}

// newApplication wires the application components from the loaded
// configuration: database, store, worker, queue, auth and the cleanup
// scheduler.
func newApplication(cfg *config.Config, appLogger *slog.Logger) (*application, error) {
	db, err := setupAppDatabase(cfg, appLogger)
	if err != nil {
		return nil, err
	}

	if err := runMigrations(db, appLogger); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	taskStore := postgres.NewPostgresTaskStore(db, appLogger)

	var mailer mail.Mailer
	if cfg.Mail.Enabled() {
		smtpMailer, err := mail.NewSMTPMailer(cfg.Mail)
		if err != nil {
			return nil, fmt.Errorf("failed to set up mailer: %w", err)
		}
		mailer = smtpMailer
		appLogger.Info("Mail notifications enabled", "host", cfg.Mail.Host)
	} else {
		appLogger.Info("Mail notifications disabled")
	}

	processor := worker.NewProcessor(taskStore, mailer, nil, appLogger)

	app := &application{
		config:           cfg,
		logger:           appLogger,
		db:               db,
		taskStore:        taskStore,
		processor:        processor,
		passwordVerifier: auth.NewBcryptVerifier(),
	}

	if err := app.setupQueue(); err != nil {
		return nil, err
	}
	processor.SetNotifyClient(app.queueClient)

	taskService, err := service.NewTaskService(taskStore, app.queueClient, appLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to set up task service: %w", err)
	}
	app.taskService = taskService

	jwtService, err := auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to set up JWT service: %w", err)
	}
	app.jwtService = jwtService

	if err := app.setupCleanupSchedule(); err != nil {
		return nil, err
	}

	return app, nil
}

// setupQueue builds the queue client and, for the Redis broker, the
// worker-pool server, per the configured broker.
func (app *application) setupQueue() error {
	switch app.config.Queue.Broker {
	case "redis":
		qcfg := asynqueue.Config{
			RedisAddr:   app.config.Queue.RedisAddr,
			Queue:       app.config.Queue.Name,
			Concurrency: app.config.Queue.Concurrency,
		}
		app.queueClient = asynqueue.NewClient(qcfg)
		app.queueServer = asynqueue.NewServer(qcfg, app.logger)

	case "memory":
		app.memQueue = memqueue.New(
			app.taskStore,
			app.processor.Handlers(),
			memqueue.Config{
				WorkerCount: app.config.Queue.Concurrency,
				BufferSize:  app.config.Queue.BufferSize,
			},
			app.logger,
		)
		app.queueClient = app.memQueue

	default:
		return fmt.Errorf("unknown queue broker %q", app.config.Queue.Broker)
	}
	return nil
}

// setupCleanupSchedule registers the periodic prune of old completed
// tasks on a cron scheduler.
func (app *application) setupCleanupSchedule() error {
	retention := time.Duration(app.config.Cleanup.RetentionDays) * 24 * time.Hour
	scheduler := cron.New()

	_, err := scheduler.AddFunc(app.config.Cleanup.Schedule, func() {
		deleted, err := app.processor.CleanupTasks(context.Background(), retention)
		if err != nil {
			app.logger.Error("task cleanup failed", "error", err)
			return
		}
		app.logger.Info("task cleanup completed", "deleted_count", deleted)
	})
	if err != nil {
		return fmt.Errorf("invalid cleanup schedule %q: %w", app.config.Cleanup.Schedule, err)
	}

	app.scheduler = scheduler
	return nil
}

// start launches the queue workers and the cleanup scheduler.
func (app *application) start() error {
	switch {
	case app.queueServer != nil:
		if err := app.queueServer.Start(app.processor.Handlers()); err != nil {
			return fmt.Errorf("failed to start queue server: %w", err)
		}
	case app.memQueue != nil:
		if err := app.memQueue.Start(); err != nil {
			return fmt.Errorf("failed to start in-process queue: %w", err)
		}
	}

	app.scheduler.Start()
	return nil
}

// cleanup releases the application's resources in reverse dependency
// order. Safe to call after a partial or failed start.
func (app *application) cleanup() {
	if app.scheduler != nil {
		app.scheduler.Stop()
	}
	if app.queueServer != nil {
		app.queueServer.Shutdown()
	}
	if app.queueClient != nil {
		if err := app.queueClient.Close(); err != nil {
			app.logger.Error("failed to close queue client", "error", err)
		}
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("failed to close database", "error", err)
		}
	}
}
