package connection

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/phrazzld/taskcore/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSupervisor(t *testing.T, p *Provider) (*Supervisor, *[]time.Duration) {
	t.Helper()
	policy := NewReconnectPolicy(config.ConnectionConfig{
		ReconnectMinDelay: 2 * time.Second,
		ReconnectMaxDelay: 512 * time.Second,
		Multiplier:        2,
	})
	s, err := NewSupervisor(p, policy, "device-1", discardLogger())
	require.NoError(t, err)

	var (
		mu     sync.Mutex
		delays []time.Duration
	)
	s.sleep = func(ctx context.Context, d time.Duration) error {
		mu.Lock()
		delays = append(delays, d)
		mu.Unlock()
		return ctx.Err()
	}
	return s, &delays
}

func TestNewSupervisor_NilLogger(t *testing.T) {
	t.Parallel()
	_, err := NewSupervisor(nil, nil, "", nil)
	assert.ErrorIs(t, err, ErrNilLogger)
}

func TestSupervisor_FreshControllerPerCycle(t *testing.T) {
	t.Parallel()
	p := newTestProvider(t)
	s, delays := newTestSupervisor(t, p)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var seen []*Controller
	dialer := DialerFunc(func(ctx context.Context, c *Controller) error {
		seen = append(seen, c)
		assert.Same(t, c, p.Current())
		assert.NotNil(t, c.MultiDevice)
		switch len(seen) {
		case 1, 2:
			return errors.New("connection refused")
		case 3:
			authenticate(c)
			return errors.New("connection reset")
		case 4:
			return errors.New("connection refused")
		default:
			cancel()
			return ctx.Err()
		}
	})

	require.NoError(t, s.Run(ctx, dialer))

	require.Len(t, seen, 5)
	for i, c := range seen {
		assert.True(t, c.IsClosed(), "controller %d closed after its cycle", i)
		for _, other := range seen[i+1:] {
			assert.NotSame(t, c, other)
		}
	}
	assert.Equal(t, []time.Duration{
		2 * time.Second,
		4 * time.Second,
		2 * time.Second, // reset after the authenticated third cycle
		4 * time.Second,
	}, *delays)
}

func TestSupervisor_StopsWhenSleepInterrupted(t *testing.T) {
	t.Parallel()
	p := newTestProvider(t)
	s, _ := newTestSupervisor(t, p)

	ctx, cancel := context.WithCancel(context.Background())
	s.sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}

	calls := 0
	err := s.Run(ctx, DialerFunc(func(ctx context.Context, c *Controller) error {
		calls++
		return errors.New("refused")
	}))
	assert.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestSupervisor_ProviderClosed(t *testing.T) {
	t.Parallel()
	p := newTestProvider(t)
	s, _ := newTestSupervisor(t, p)
	p.Close()

	err := s.Run(context.Background(), DialerFunc(func(ctx context.Context, c *Controller) error {
		t.Fatal("dial after provider close")
		return nil
	}))
	assert.ErrorIs(t, err, ErrProviderClosed)
}
