package archive_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/phrazzld/taskcore/internal/archive"
	"github.com/phrazzld/taskcore/internal/store"
	"github.com/phrazzld/taskcore/internal/task"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func mockEncoding(label string, step int) string {
	data := task.MockData{Label: label, Step: step}
	encoding, err := task.EncodeData(data)
	if err != nil {
		panic(err)
	}
	return encoding
}

func newMockRegistry(t *testing.T) *archive.Registry {
	t.Helper()
	registry := archive.NewRegistry()
	require.NoError(t, archive.Register(registry, func(ctx context.Context, data task.MockData) (*task.Task, error) {
		return (&task.MockTask{Data: data}).Task(), nil
	}))
	return registry
}

func newTestArchiver(t *testing.T, s store.TaskArchiveStore, logger *slog.Logger, recovery *archive.RecoveryManager) *archive.Archiver {
	t.Helper()
	if logger == nil {
		logger = discardLogger()
	}
	archiver, err := archive.NewBuilder(s, logger).
		WithRegistry(newMockRegistry(t)).
		WithRecovery(recovery).
		Build()
	require.NoError(t, err)
	return archiver
}
