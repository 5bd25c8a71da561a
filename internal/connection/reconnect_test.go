package connection

import (
	"testing"
	"time"

	"github.com/phrazzld/taskcore/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestReconnectPolicy_DoublesUpToMax(t *testing.T) {
	t.Parallel()

	policy := NewReconnectPolicy(config.ConnectionConfig{
		ReconnectMinDelay: 2 * time.Second,
		ReconnectMaxDelay: 512 * time.Second,
		Multiplier:        2,
	})

	expected := []time.Duration{2, 4, 8, 16, 32, 64, 128, 256, 512, 512, 512}
	for i, want := range expected {
		assert.Equal(t, want*time.Second, policy.Next(), "attempt %d", i+1)
	}
}

func TestReconnectPolicy_Reset(t *testing.T) {
	t.Parallel()

	policy := NewReconnectPolicy(config.ConnectionConfig{
		ReconnectMinDelay: time.Second,
		ReconnectMaxDelay: time.Minute,
		Multiplier:        2,
	})
	policy.Next()
	policy.Next()
	policy.Reset()

	assert.Equal(t, time.Second, policy.Next())
}
