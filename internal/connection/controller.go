package connection

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// MultiDeviceSession is the multi-device part of a connection cycle
type MultiDeviceSession struct {
	DeviceID string

	// ReflectionQueueDry completes once the mediator delivered every
	// reflected message queued while this device was offline.
	ReflectionQueueDry *Signal
}

// Controller holds the state of one connection cycle. It is never reused
// after the connection closed.
type Controller struct {
	ID               uuid.UUID
	Connected        *Signal
	CSPAuthenticated *Signal
	ConnectionClosed *Signal
	Dispatcher       *Dispatcher

	// MultiDevice is nil when the cycle has no multi-device session
	MultiDevice *MultiDeviceSession

	logger *slog.Logger
}

// NewController creates the controller of a fresh connection cycle.
// A non-empty deviceID adds a multi-device session.
func NewController(deviceID string, logger *slog.Logger) *Controller {
	id := uuid.New()
	log := logger.With("component", "connection_controller", "connection_id", id)

	c := &Controller{
		ID:               id,
		Connected:        NewSignal(),
		CSPAuthenticated: NewSignal(),
		ConnectionClosed: NewSignal(),
		Dispatcher:       NewDispatcher(log),
		logger:           log,
	}
	if deviceID != "" {
		c.MultiDevice = &MultiDeviceSession{
			DeviceID:           deviceID,
			ReflectionQueueDry: NewSignal(),
		}
	}
	return c
}

// IsClosed reports whether the connection cycle ended
func (c *Controller) IsClosed() bool {
	select {
	case <-c.ConnectionClosed.Done():
		return true
	default:
		return false
	}
}

// Close ends the cycle. ConnectionClosed completes, failing with cause when it
// is not nil, and every pending milestone fails with ErrConnectionClosed.
// Closing twice is a no-op.
func (c *Controller) Close(cause error) {
	var first bool
	if cause == nil {
		first = c.ConnectionClosed.Complete()
	} else {
		first = c.ConnectionClosed.Fail(cause)
	}
	if !first {
		return
	}

	pendingErr := ErrConnectionClosed
	if cause != nil {
		pendingErr = fmt.Errorf("%w: %w", ErrConnectionClosed, cause)
	}
	c.Connected.Fail(pendingErr)
	c.CSPAuthenticated.Fail(pendingErr)
	if c.MultiDevice != nil {
		c.MultiDevice.ReflectionQueueDry.Fail(pendingErr)
	}

	c.Dispatcher.Close()

	if cause != nil && !errors.Is(cause, ErrConnectionClosed) {
		c.logger.Info("connection closed", "cause", cause)
	} else {
		c.logger.Info("connection closed")
	}
}
