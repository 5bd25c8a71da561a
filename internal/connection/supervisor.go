package connection

import (
	"context"
	"log/slog"
	"time"
)

// Dialer drives one connection cycle. Dial returns when the connection ends;
// it completes the controller's milestones as the connection progresses.
type Dialer interface {
	Dial(ctx context.Context, c *Controller) error
}

// DialerFunc adapts a function to the Dialer interface
type DialerFunc func(ctx context.Context, c *Controller) error

// Dial implements Dialer
func (f DialerFunc) Dial(ctx context.Context, c *Controller) error {
	return f(ctx, c)
}

// Supervisor keeps a connection alive, starting a new cycle after every
// disconnect
type Supervisor struct {
	provider *Provider
	policy   *ReconnectPolicy
	deviceID string
	logger   *slog.Logger

	// sleep waits between cycles; replaced in tests
	sleep func(ctx context.Context, d time.Duration) error
}

// NewSupervisor creates a supervisor. A non-empty deviceID starts every
// cycle with a multi-device session.
func NewSupervisor(provider *Provider, policy *ReconnectPolicy, deviceID string, logger *slog.Logger) (*Supervisor, error) {
	if logger == nil {
		return nil, ErrNilLogger
	}
	return &Supervisor{
		provider: provider,
		policy:   policy,
		deviceID: deviceID,
		logger:   logger.With("component", "connection_supervisor"),
		sleep:    sleepContext,
	}, nil
}

// Run dials until ctx is done or the provider is closed. Each cycle gets a
// fresh controller that is closed when Dial returns.
func (s *Supervisor) Run(ctx context.Context, dialer Dialer) error {
	for {
		c := s.provider.NewCycle(s.deviceID)
		if c.IsClosed() {
			return ErrProviderClosed
		}
		log := s.logger.With("connection_id", c.ID)

		log.Info("connecting")
		err := dialer.Dial(ctx, c)
		c.Close(err)

		if ctx.Err() != nil {
			log.Info("connection supervisor stopped")
			return nil
		}
		if c.CSPAuthenticated.IsCompleted() {
			s.policy.Reset()
		}
		delay := s.policy.Next()
		log.Warn("connection lost, reconnecting",
			"retry_in", delay,
			"error", err)

		if err := s.sleep(ctx, delay); err != nil {
			log.Info("connection supervisor stopped")
			return nil
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
