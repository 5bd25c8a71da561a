package connection

import (
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/phrazzld/taskcore/internal/config"
)

// ReconnectPolicy yields the delays between connection attempts: an
// exponential series without jitter and without an overall deadline.
type ReconnectPolicy struct {
	backoff *backoff.ExponentialBackOff
}

// NewReconnectPolicy creates a policy from the connection config
func NewReconnectPolicy(cfg config.ConnectionConfig) *ReconnectPolicy {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.ReconnectMinDelay
	b.MaxInterval = cfg.ReconnectMaxDelay
	b.Multiplier = cfg.Multiplier
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()
	return &ReconnectPolicy{backoff: b}
}

// Next returns the delay before the next attempt
func (p *ReconnectPolicy) Next() time.Duration {
	return p.backoff.NextBackOff()
}

// Reset starts the series over. Called after a successful authentication.
func (p *ReconnectPolicy) Reset() {
	p.backoff.Reset()
}
