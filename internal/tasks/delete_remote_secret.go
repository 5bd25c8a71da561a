package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/phrazzld/taskcore/internal/platform/logger"
	"github.com/phrazzld/taskcore/internal/task"
)

// DeleteRemoteSecretType is the type tag of DeleteRemoteSecretData
const DeleteRemoteSecretType = "DeleteRemoteSecretTask"

var (
	// ErrRemoteSecretNotFound is returned by the server when the secret is already gone
	ErrRemoteSecretNotFound = errors.New("remote secret not found")

	// ErrRemoteSecretForbidden is returned by the server for a revoked token
	ErrRemoteSecretForbidden = errors.New("remote secret access forbidden")
)

// DeleteRemoteSecretData is the snapshot of a remote secret deletion
type DeleteRemoteSecretData struct {
	AuthenticationToken string `json:"authenticationToken" validate:"required"`
}

// TaskType implements task.Data
func (DeleteRemoteSecretData) TaskType() string {
	return DeleteRemoteSecretType
}

// NewDeleteRemoteSecret creates the task that deletes the remote secret.
// The body retries transient failures itself, so the runner runs it once.
func NewDeleteRemoteSecret(svc *Services, data DeleteRemoteSecretData) *task.Task {
	t := task.New(DeleteRemoteSecretType, func(ctx context.Context) (any, error) {
		log := logger.FromContext(ctx)

		policy := backoff.NewExponentialBackOff()
		policy.InitialInterval = svc.Retry.InitialInterval
		policy.MaxInterval = svc.Retry.MaxInterval
		policy.MaxElapsedTime = 0

		operation := func() error {
			err := svc.RemoteSecrets.DeleteRemoteSecret(ctx, data.AuthenticationToken)
			switch {
			case err == nil, errors.Is(err, ErrRemoteSecretNotFound):
				return nil
			case errors.Is(err, ErrRemoteSecretForbidden):
				return backoff.Permanent(err)
			default:
				return err
			}
		}
		notify := func(err error, delay time.Duration) {
			log.Warn("failed to delete remote secret, retrying", "retry_in", delay, "error", err)
		}

		b := backoff.WithContext(backoff.WithMaxRetries(policy, svc.Retry.MaxRetries), ctx)
		if err := backoff.RetryNotify(operation, b, notify); err != nil {
			return nil, task.Permanent(fmt.Errorf("failed to delete remote secret: %w", err))
		}
		log.Info("remote secret deleted")
		return nil, nil
	})
	t.Persist = func() (task.Data, error) {
		return data, nil
	}
	t.MaxAttempts = 1
	return t
}
