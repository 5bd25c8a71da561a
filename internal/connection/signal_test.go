package connection

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSignal_CompletesOnce(t *testing.T) {
	t.Parallel()

	s := NewSignal()
	assert.False(t, s.IsCompleted())

	assert.True(t, s.Complete())
	assert.False(t, s.Complete(), "second completion is a no-op")
	assert.False(t, s.Fail(errors.New("late")), "failure after completion is a no-op")

	assert.True(t, s.IsCompleted())
	assert.NoError(t, s.Err())
	assert.NoError(t, s.Wait(context.Background()))
}

func TestSignal_Fail(t *testing.T) {
	t.Parallel()

	cause := errors.New("handshake rejected")
	s := NewSignal()
	assert.True(t, s.Fail(cause))
	assert.False(t, s.Complete())

	assert.False(t, s.IsCompleted())
	assert.ErrorIs(t, s.Err(), cause)
	assert.ErrorIs(t, s.Wait(context.Background()), cause)
	requireClosed(t, s.Done(), "failed signal must close Done")
}

func TestSignal_WaitHonorsContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := NewSignal().Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSignal_ReleasesAllWaiters(t *testing.T) {
	t.Parallel()

	s := NewSignal()
	var wg sync.WaitGroup
	errs := make(chan error, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.Wait(context.Background())
		}()
	}

	s.Complete()
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
}
