package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/phrazzld/taskcore/internal/api"
	"github.com/phrazzld/taskcore/internal/archive"
	"github.com/phrazzld/taskcore/internal/config"
	"github.com/phrazzld/taskcore/internal/connection"
	"github.com/phrazzld/taskcore/internal/events"
	"github.com/phrazzld/taskcore/internal/platform/postgres"
	"github.com/phrazzld/taskcore/internal/platform/sqlite"
	"github.com/phrazzld/taskcore/internal/store"
	"github.com/phrazzld/taskcore/internal/task"
	"github.com/phrazzld/taskcore/internal/tasks"
	"go.opentelemetry.io/otel"
)

const (
	tracerName           = "github.com/phrazzld/taskcore"
	adminShutdownTimeout = 10 * time.Second
)

// application holds all the shared application dependencies to simplify management
// and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger

	store      store.TaskArchiveStore
	closeStore func() error

	provider   *connection.Provider
	supervisor *connection.Supervisor
	backend    *loopback

	services *tasks.Services
	archiver *archive.Archiver
	manager  *task.Manager
}

// newApplication creates the archive store, the connection and the task
// manager. The manager is running when it returns, so archived tasks can be
// restored right away.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application, error) {
	app := &application{
		config:  cfg,
		logger:  logger,
		backend: newLoopback(logger, cfg.Connection.DeviceID),
	}

	var err error
	app.store, app.closeStore, err = openStore(ctx, cfg.Archive, logger)
	if err != nil {
		return nil, err
	}

	if err := app.setupConnection(); err != nil {
		app.cleanup()
		return nil, err
	}

	if err := app.setupTasks(); err != nil {
		app.cleanup()
		return nil, err
	}

	logger.Info("application initialized successfully")
	return app, nil
}

// openStore returns the archive store selected by cfg and the function that releases it
func openStore(ctx context.Context, cfg config.ArchiveConfig, logger *slog.Logger) (store.TaskArchiveStore, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Driver {
	case "memory":
		logger.Warn("using the in-memory task archive, tasks do not survive a restart")
		return archive.NewMemoryStore(), noop, nil

	case "postgres":
		db, err := postgres.Open(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("database connection established", "url", postgres.MaskDatabaseURL(cfg.Postgres.URL))
		if cfg.Postgres.MigrateOnStart {
			if err := postgres.Migrate(ctx, db, logger); err != nil {
				_ = db.Close()
				return nil, nil, fmt.Errorf("failed to migrate task archive: %w", err)
			}
		}
		return postgres.NewArchiveStore(db), db.Close, nil

	case "sqlite":
		s, err := sqlite.Open(ctx, sqlite.Config{
			Path:     cfg.Sqlite.Path,
			PoolSize: cfg.Sqlite.PoolSize,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown archive driver %q", cfg.Driver)
	}
}

func (app *application) setupConnection() error {
	var err error
	app.provider, err = connection.NewProvider(app.logger)
	if err != nil {
		return fmt.Errorf("failed to create connection provider: %w", err)
	}

	policy := connection.NewReconnectPolicy(app.config.Connection)
	app.supervisor, err = connection.NewSupervisor(app.provider, policy, app.config.Connection.DeviceID, app.logger)
	if err != nil {
		return fmt.Errorf("failed to create connection supervisor: %w", err)
	}
	return nil
}

func (app *application) setupTasks() error {
	app.services = &tasks.Services{
		Messages:      app.backend,
		Groups:        app.backend,
		Devices:       app.backend,
		RemoteSecrets: app.backend,
		MultiDevice:   app.backend,
		Transactions: tasks.ConnectionTransactions{
			Provider: app.provider,
			Mediator: connection.NoopMediator{Logger: app.logger},
		},
		Logger: app.logger,
		Retry:  tasks.DefaultRetryPolicy(),
	}
	if err := app.services.Validate(); err != nil {
		return err
	}

	registry, err := tasks.NewRegistry(app.services)
	if err != nil {
		return fmt.Errorf("failed to register task decoders: %w", err)
	}
	recovery, err := tasks.NewRecoveryManager(app.services)
	if err != nil {
		return fmt.Errorf("failed to create recovery manager: %w", err)
	}

	tracer := otel.Tracer(tracerName)
	app.archiver, err = archive.NewBuilder(app.store, app.logger).
		WithRegistry(registry).
		WithRecovery(recovery).
		WithTracer(tracer).
		Build()
	if err != nil {
		return fmt.Errorf("failed to create task archiver: %w", err)
	}

	emitter := events.NewInMemoryEventEmitter(app.logger)
	emitter.RegisterHandler(app.archiver, archive.HandledKinds...)

	app.manager, err = task.NewManager(task.ManagerConfig{
		QueueCapacity: app.config.Runner.QueueCapacity,
		Runner: task.RunnerConfig{
			DefaultMaxAttempts:   app.config.Runner.MaxAttempts,
			RetryInitialInterval: app.config.Runner.RetryInitialInterval,
			RetryMaxInterval:     app.config.Runner.RetryMaxInterval,
		},
	}, app.logger,
		task.WithEventEmitter(emitter),
		task.WithManagerTracer(tracer),
	)
	if err != nil {
		return fmt.Errorf("failed to create task manager: %w", err)
	}
	return nil
}

// restoreTasks queues every task left in the archive by the previous run
func (app *application) restoreTasks(ctx context.Context) ([]*task.Deferred, error) {
	restored, err := app.archiver.LoadAllTasks(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load archived tasks: %w", err)
	}

	deferreds := make([]*task.Deferred, 0, len(restored))
	for _, t := range restored {
		d, err := app.manager.QueueTask(ctx, t)
		if err != nil {
			app.logger.Error("failed to queue restored task, it stays archived",
				"task_id", t.ID,
				"task_type", t.Type,
				"error", err)
			continue
		}
		deferreds = append(deferreds, d)
	}

	app.logger.Info("archived tasks restored", "queued", len(deferreds), "loaded", len(restored))
	return deferreds, nil
}

// Run keeps the connection alive and serves the admin API until ctx is done,
// then shuts everything down.
func (app *application) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.supervisor.Run(ctx, app.backend); err != nil && !errors.Is(err, connection.ErrProviderClosed) {
			app.logger.Error("connection supervisor failed", "error", err)
		}
	}()

	var runErr error
	if _, err := app.restoreTasks(ctx); err != nil {
		runErr = err
	}

	var server *http.Server
	if runErr == nil && app.config.Admin.Enabled {
		server, runErr = app.startAdminServer()
	}

	if runErr == nil {
		<-ctx.Done()
		app.logger.Info("shutting down")
	}

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), adminShutdownTimeout)
		if err := server.Shutdown(shutdownCtx); err != nil {
			app.logger.Error("admin server shutdown failed", "error", err)
		}
		cancel()
	}

	if err := app.closeManager(); err != nil && runErr == nil {
		runErr = err
	}
	app.provider.Close()
	wg.Wait()
	app.cleanup()

	app.logger.Info("shutdown completed")
	return runErr
}

func (app *application) startAdminServer() (*http.Server, error) {
	handler, err := api.NewAdminHandler(app.manager, app.archiver, app.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create admin handler: %w", err)
	}

	server := &http.Server{
		Addr:              adminAddr(app.config.Admin),
		Handler:           api.NewRouter(handler),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		app.logger.Info("starting admin server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.logger.Error("admin server failed", "error", err)
		}
	}()
	return server, nil
}

// adminAddr is the listen address of the admin server
func adminAddr(cfg config.AdminConfig) string {
	return net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
}

// closeManager waits up to the configured timeout for queued tasks
func (app *application) closeManager() error {
	if app.manager == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), app.config.Runner.CloseTimeout)
	defer cancel()
	return app.manager.Close(ctx)
}

// cleanup releases the archive store and the connection provider
func (app *application) cleanup() {
	if app.provider != nil {
		app.provider.Close()
	}
	if app.closeStore != nil {
		if err := app.closeStore(); err != nil {
			app.logger.Error("error closing task archive", "error", err)
		}
		app.closeStore = nil
	}
}
