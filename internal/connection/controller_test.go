package connection

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewController(t *testing.T) {
	t.Parallel()

	single := NewController("", discardLogger())
	defer single.Close(nil)
	assert.Nil(t, single.MultiDevice)
	assert.False(t, single.IsClosed())

	multi := NewController("device-1", discardLogger())
	defer multi.Close(nil)
	if assert.NotNil(t, multi.MultiDevice) {
		assert.Equal(t, "device-1", multi.MultiDevice.DeviceID)
		assert.False(t, multi.MultiDevice.ReflectionQueueDry.IsCompleted())
	}
	assert.NotEqual(t, single.ID, multi.ID)
}

func TestController_CloseFailsPendingMilestones(t *testing.T) {
	t.Parallel()

	c := NewController("device-1", discardLogger())
	c.Connected.Complete()

	c.Close(nil)

	assert.True(t, c.IsClosed())
	assert.True(t, c.ConnectionClosed.IsCompleted())
	assert.True(t, c.Connected.IsCompleted(), "completed milestones stay completed")
	assert.ErrorIs(t, c.CSPAuthenticated.Err(), ErrConnectionClosed)
	assert.ErrorIs(t, c.MultiDevice.ReflectionQueueDry.Err(), ErrConnectionClosed)

	err := c.Dispatcher.Execute(context.Background(), func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrDispatcherClosed)
}

func TestController_CloseWithCause(t *testing.T) {
	t.Parallel()

	cause := errors.New("socket reset")
	c := NewController("", discardLogger())
	c.Close(cause)
	c.Close(errors.New("second close is ignored"))

	assert.ErrorIs(t, c.ConnectionClosed.Err(), cause)
	assert.ErrorIs(t, c.Connected.Err(), ErrConnectionClosed)
	assert.ErrorIs(t, c.Connected.Err(), cause)
}
