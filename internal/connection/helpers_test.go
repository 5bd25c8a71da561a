package connection

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func newTestProvider(t *testing.T) *Provider {
	t.Helper()
	p, err := NewProvider(discardLogger())
	require.NoError(t, err)
	t.Cleanup(p.Close)
	return p
}

// authenticate completes the milestones of a cycle in protocol order
func authenticate(c *Controller) {
	c.Connected.Complete()
	c.CSPAuthenticated.Complete()
}

func requireClosed(t *testing.T, ch <-chan struct{}, msg string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal(msg)
	}
}
