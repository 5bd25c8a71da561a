package connection

import (
	"context"
	"log/slog"
	"sync"
)

// Provider hands out the controller of the current connection cycle
type Provider struct {
	logger *slog.Logger

	mu      sync.Mutex
	current *Controller
	changed chan struct{}
	closed  bool
}

// NewProvider creates a provider without a connection cycle
func NewProvider(logger *slog.Logger) (*Provider, error) {
	if logger == nil {
		return nil, ErrNilLogger
	}
	return &Provider{
		logger:  logger.With("component", "connection_provider"),
		changed: make(chan struct{}),
	}, nil
}

// Current returns the controller of the current cycle, or nil
func (p *Provider) Current() *Controller {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// NewCycle closes the current controller and installs a fresh one.
// A non-empty deviceID gives the new cycle a multi-device session.
// After Close the returned controller is already closed.
func (p *Provider) NewCycle(deviceID string) *Controller {
	c := NewController(deviceID, p.logger)

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		c.Close(ErrProviderClosed)
		return c
	}
	previous := p.current
	p.current = c
	close(p.changed)
	p.changed = make(chan struct{})
	p.mu.Unlock()

	if previous != nil {
		previous.Close(nil)
	}
	p.logger.Debug("new connection cycle",
		"connection_id", c.ID,
		"multi_device", c.MultiDevice != nil)
	return c
}

// Close closes the current controller and ends every wait
func (p *Provider) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	current := p.current
	close(p.changed)
	p.mu.Unlock()

	if current != nil {
		current.Close(nil)
	}
}

func (p *Provider) snapshot() (*Controller, <-chan struct{}, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, nil, ErrProviderClosed
	}
	return p.current, p.changed, nil
}

// AwaitAuthenticated returns a controller whose CSP-authenticated signal
// completed. When the held controller closes before authenticating, it waits
// for the next cycle instead of failing.
func (p *Provider) AwaitAuthenticated(ctx context.Context) (*Controller, error) {
	return p.await(ctx, func(c *Controller) (*Signal, error) {
		return c.CSPAuthenticated, nil
	})
}

// AwaitReflectionQueueDry returns an authenticated multi-device controller
// whose reflection queue is dry. Re-acquires like AwaitAuthenticated.
func (p *Provider) AwaitReflectionQueueDry(ctx context.Context) (*Controller, error) {
	return p.await(ctx, func(c *Controller) (*Signal, error) {
		if c.MultiDevice == nil {
			return nil, ErrNotMultiDevice
		}
		return c.MultiDevice.ReflectionQueueDry, nil
	})
}

func (p *Provider) await(ctx context.Context, milestone func(*Controller) (*Signal, error)) (*Controller, error) {
	for {
		c, changed, err := p.snapshot()
		if err != nil {
			return nil, err
		}
		if c == nil || c.IsClosed() {
			if err := waitChanged(ctx, changed); err != nil {
				return nil, err
			}
			continue
		}

		if err := c.CSPAuthenticated.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}

		signal, err := milestone(c)
		if err != nil {
			return nil, err
		}
		if err := signal.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}

		if c.IsClosed() {
			continue
		}
		return c, nil
	}
}

func waitChanged(ctx context.Context, changed <-chan struct{}) error {
	select {
	case <-changed:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
