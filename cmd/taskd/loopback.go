package main

import (
	"context"
	"log/slog"

	"github.com/phrazzld/taskcore/internal/connection"
	"github.com/phrazzld/taskcore/internal/tasks"
)

// loopback stands in for the messaging backend. Every call is logged and
// succeeds, which lets taskd exercise the queue, the archive and the
// connection lifecycle without a server.
type loopback struct {
	logger   *slog.Logger
	deviceID string
}

func newLoopback(logger *slog.Logger, deviceID string) *loopback {
	return &loopback{
		logger:   logger.With("component", "loopback"),
		deviceID: deviceID,
	}
}

// SendText implements tasks.MessageSender
func (l *loopback) SendText(ctx context.Context, messageModelID string, recipients []string, receiverType tasks.ReceiverType) error {
	l.logger.InfoContext(ctx, "text message sent",
		"message_id", messageModelID,
		"recipients", len(recipients),
		"receiver_type", receiverType)
	return nil
}

// Exists implements tasks.GroupMessenger
func (l *loopback) Exists(ctx context.Context, group tasks.GroupIdentity) (bool, error) {
	return true, nil
}

// Reflect implements tasks.GroupMessenger
func (l *loopback) Reflect(ctx context.Context, update tasks.GroupUpdateData) error {
	l.logger.InfoContext(ctx, "group update reflected", "group", update.Group.String())
	return nil
}

// Notify implements tasks.GroupMessenger
func (l *loopback) Notify(ctx context.Context, group tasks.GroupIdentity, recipients []string, kind tasks.NotificationKind, messageID uint64) error {
	l.logger.InfoContext(ctx, "group members notified",
		"group", group.String(),
		"notification", kind,
		"recipients", len(recipients),
		"message_id", messageID)
	return nil
}

// DropDevice implements tasks.DeviceManager
func (l *loopback) DropDevice(ctx context.Context, deviceID string) error {
	l.logger.InfoContext(ctx, "device dropped", "device_id", deviceID)
	return nil
}

// DeleteRemoteSecret implements tasks.RemoteSecretClient
func (l *loopback) DeleteRemoteSecret(ctx context.Context, authenticationToken string) error {
	l.logger.InfoContext(ctx, "remote secret deleted")
	return nil
}

// IsEnabled implements tasks.MultiDeviceState
func (l *loopback) IsEnabled() bool {
	return l.deviceID != ""
}

// Dial implements connection.Dialer. The loopback connection authenticates
// immediately and stays up until ctx is done.
func (l *loopback) Dial(ctx context.Context, c *connection.Controller) error {
	c.Connected.Complete()
	c.CSPAuthenticated.Complete()
	if c.MultiDevice != nil {
		c.MultiDevice.ReflectionQueueDry.Complete()
	}
	l.logger.InfoContext(ctx, "loopback connection established", "connection_id", c.ID)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.ConnectionClosed.Done():
		return nil
	}
}

var (
	_ tasks.MessageSender      = (*loopback)(nil)
	_ tasks.GroupMessenger     = (*loopback)(nil)
	_ tasks.DeviceManager      = (*loopback)(nil)
	_ tasks.RemoteSecretClient = (*loopback)(nil)
	_ tasks.MultiDeviceState   = (*loopback)(nil)
	_ connection.Dialer        = (*loopback)(nil)
)
