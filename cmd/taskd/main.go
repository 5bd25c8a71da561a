// Package main implements taskd, the daemon that runs the persistent task
// queue: it restores archived tasks, keeps the server connection alive and
// optionally serves the inspection API.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/phrazzld/taskcore/internal/config"
	"github.com/phrazzld/taskcore/internal/platform/logger"
)

func main() {
	cfg, l, err := initializeApp(os.Args[1:])
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := newApplication(ctx, cfg, l)
	if err != nil {
		l.Error("failed to initialize application", "error", err)
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil {
		l.Error("taskd stopped with error", "error", err)
		os.Exit(1)
	}
}

// initializeApp loads configuration and sets up logging
func initializeApp(args []string) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(config.WithArgs(args))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	l, err := logger.Setup(cfg.Logging)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up logger: %w", err)
	}

	l.Info("configuration loaded",
		"archive_driver", cfg.Archive.Driver,
		"queue_capacity", cfg.Runner.QueueCapacity,
		"multi_device", cfg.Connection.DeviceID != "",
		"admin_enabled", cfg.Admin.Enabled)

	return cfg, l, nil
}
