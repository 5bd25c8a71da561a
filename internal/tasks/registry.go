package tasks

import (
	"context"
	"fmt"

	"github.com/phrazzld/taskcore/internal/archive"
	"github.com/phrazzld/taskcore/internal/task"
)

// NewRegistry returns a registry decoding every persistable task of this
// package. The decoded tasks run against svc.
func NewRegistry(svc *Services) (*archive.Registry, error) {
	if err := svc.Validate(); err != nil {
		return nil, err
	}

	r := archive.NewRegistry()
	err := archive.Register(r, func(ctx context.Context, data OutgoingTextMessageData) (*task.Task, error) {
		return NewOutgoingTextMessage(svc, data), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to register %s: %w", OutgoingTextMessageType, err)
	}

	err = archive.Register(r, func(ctx context.Context, data GroupUpdateData) (*task.Task, error) {
		return NewGroupUpdate(svc, data), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to register %s: %w", GroupUpdateType, err)
	}

	err = archive.Register(r, func(ctx context.Context, data DeleteRemoteSecretData) (*task.Task, error) {
		return NewDeleteRemoteSecret(svc, data), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to register %s: %w", DeleteRemoteSecretType, err)
	}

	return r, nil
}
