package tasks

import (
	"context"
	"errors"
	"testing"

	"github.com/phrazzld/taskcore/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutgoingTextMessage(t *testing.T) {
	t.Parallel()
	ts := newTestServices(t)
	data := OutgoingTextMessageData{
		MessageModelID:      "msg-1",
		RecipientIdentities: []string{"AAAAAAAA"},
		ReceiverType:        ReceiverContact,
	}

	tk := NewOutgoingTextMessage(ts.Services, data)
	_, err := tk.Invoke(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"send:msg-1"}, ts.rec.Calls())

	encoding, err := task.Encode(tk)
	require.NoError(t, err)
	assert.Equal(t,
		`{"type":"OutgoingTextMessageTask","messageModelId":"msg-1","recipientIdentities":["AAAAAAAA"],"receiverType":"contact"}`,
		encoding)
}

func TestOutgoingTextMessage_SendFailure(t *testing.T) {
	t.Parallel()
	ts := newTestServices(t)
	ts.messages.sendFn = func(string) error { return errors.New("offline") }

	_, err := NewOutgoingTextMessage(ts.Services, OutgoingTextMessageData{MessageModelID: "msg-2"}).
		Invoke(context.Background())
	assert.ErrorContains(t, err, "failed to send message msg-2")
}

func TestDropDevice(t *testing.T) {
	t.Parallel()

	t.Run("skipped without multi-device", func(t *testing.T) {
		t.Parallel()
		ts := newTestServices(t)

		result, err := NewDropDevice(ts.Services, "device-2").Invoke(context.Background())
		require.NoError(t, err)
		assert.True(t, result.Skipped)
		assert.Empty(t, ts.rec.Calls())
	})

	t.Run("runs in a drop device transaction", func(t *testing.T) {
		t.Parallel()
		ts := newTestServices(t)
		ts.multiDevice.enabled.Store(true)

		tk := NewDropDevice(ts.Services, "device-2")
		result, err := tk.Invoke(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "device-2", result.Value)
		assert.Equal(t, []string{"begin:drop_device", "drop:device-2", "commit:drop_device"}, ts.rec.Calls())
		assert.False(t, tk.IsPersistable())
	})
}

func TestDeleteRemoteSecret(t *testing.T) {
	t.Parallel()
	data := DeleteRemoteSecretData{AuthenticationToken: "token"}

	t.Run("retries transient failures", func(t *testing.T) {
		t.Parallel()
		ts := newTestServices(t)
		ts.secrets.deleteFn = func(attempt int) error {
			if attempt < 3 {
				return errors.New("503 service unavailable")
			}
			return nil
		}

		_, err := NewDeleteRemoteSecret(ts.Services, data).Invoke(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int32(3), ts.secrets.attempts.Load())
	})

	t.Run("already deleted counts as success", func(t *testing.T) {
		t.Parallel()
		ts := newTestServices(t)
		ts.secrets.deleteFn = func(int) error { return ErrRemoteSecretNotFound }

		_, err := NewDeleteRemoteSecret(ts.Services, data).Invoke(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int32(1), ts.secrets.attempts.Load())
	})

	t.Run("forbidden is not retried", func(t *testing.T) {
		t.Parallel()
		ts := newTestServices(t)
		ts.secrets.deleteFn = func(int) error { return ErrRemoteSecretForbidden }

		_, err := NewDeleteRemoteSecret(ts.Services, data).Invoke(context.Background())
		assert.ErrorIs(t, err, ErrRemoteSecretForbidden)
		assert.Equal(t, int32(1), ts.secrets.attempts.Load())
	})

	t.Run("gives up after the retry budget", func(t *testing.T) {
		t.Parallel()
		ts := newTestServices(t)
		ts.secrets.deleteFn = func(int) error { return errors.New("timeout") }

		_, err := NewDeleteRemoteSecret(ts.Services, data).Invoke(context.Background())
		assert.ErrorContains(t, err, "failed to delete remote secret")
		assert.Equal(t, int32(4), ts.secrets.attempts.Load(), "first try plus three retries")
	})
}
