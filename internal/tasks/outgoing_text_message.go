package tasks

import (
	"context"
	"fmt"

	"github.com/phrazzld/taskcore/internal/task"
)

// OutgoingTextMessageType is the type tag of OutgoingTextMessageData
const OutgoingTextMessageType = "OutgoingTextMessageTask"

// OutgoingTextMessageData is the snapshot of an outgoing text message
type OutgoingTextMessageData struct {
	MessageModelID      string       `json:"messageModelId" validate:"required"`
	RecipientIdentities []string     `json:"recipientIdentities" validate:"required,min=1,dive,len=8"`
	ReceiverType        ReceiverType `json:"receiverType" validate:"oneof=contact group distribution_list"`
}

// TaskType implements task.Data
func (OutgoingTextMessageData) TaskType() string {
	return OutgoingTextMessageType
}

// NewOutgoingTextMessage creates the task that delivers a stored text message
func NewOutgoingTextMessage(svc *Services, data OutgoingTextMessageData) *task.Task {
	t := task.New(OutgoingTextMessageType, func(ctx context.Context) (any, error) {
		if err := svc.Messages.SendText(ctx, data.MessageModelID, data.RecipientIdentities, data.ReceiverType); err != nil {
			return nil, fmt.Errorf("failed to send message %s: %w", data.MessageModelID, err)
		}
		return nil, nil
	})
	t.Persist = func() (task.Data, error) {
		return data, nil
	}
	t.MaxAttempts = 3
	return t
}
