package tasks

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/taskcore/internal/archive"
	"github.com/phrazzld/taskcore/internal/task"
	"github.com/tidwall/gjson"
)

// NewRecoveryManager returns a recovery manager for the snapshot shapes
// earlier releases archived
func NewRecoveryManager(svc *Services) (*archive.RecoveryManager, error) {
	if err := svc.Validate(); err != nil {
		return nil, err
	}
	return archive.NewRecoveryManager(svc.Logger,
		archive.ForType(GroupUpdateType, func(ctx context.Context, doc gjson.Result) (*task.Task, error) {
			return recoverGroupUpdateV1(ctx, svc, doc)
		}),
		archive.ForType(OutgoingTextMessageType, func(ctx context.Context, doc gjson.Result) (*task.Task, error) {
			return recoverOutgoingTextMessageV1(svc, doc)
		}),
	)
}

// recoverGroupUpdateV1 reads group updates archived before the message ids
// were predefined. That shape had a boolean profilePictureChanged instead of
// the expected change.
func recoverGroupUpdateV1(ctx context.Context, svc *Services, doc gjson.Result) (*task.Task, error) {
	changed := doc.Get("profilePictureChanged")
	if !changed.Exists() || doc.Get("predefinedMessageIds").Exists() {
		return nil, nil
	}

	data := GroupUpdateData{
		UpdatedMembers: stringArray(doc.Get("updatedMembers")),
		AddedMembers:   stringArray(doc.Get("addedMembers")),
		RemovedMembers: stringArray(doc.Get("removedMembers")),
		Group: GroupIdentity{
			CreatorIdentity: doc.Get("groupIdentity.creatorIdentity").String(),
			GroupID:         doc.Get("groupIdentity.groupId").Uint(),
		},
		MessageIDs: PredefinedMessageIDs{
			MessageID1: rand.Uint64(),
			MessageID2: rand.Uint64(),
			MessageID3: rand.Uint64(),
			MessageID4: rand.Uint64(),
		},
		ProfilePictureChange: ProfilePictureChange{Kind: PictureNoChange},
	}
	if name := doc.Get("name"); name.Type == gjson.String {
		value := name.String()
		data.Name = &value
	}

	log := svc.Logger.With("task_type", GroupUpdateType, "group", data.Group.String())
	if changed.Bool() {
		log.Warn("recovered group update cannot restore the profile picture change, sending none")
	}
	log.Info("recovered group update with new message ids")

	if err := validator.New().Struct(data); err != nil {
		return nil, fmt.Errorf("%w: legacy group update: %w", archive.ErrMalformedEncoding, err)
	}
	return NewGroupUpdate(svc, data), nil
}

// recoverOutgoingTextMessageV1 reads messages archived with a single
// recipientIdentity
func recoverOutgoingTextMessageV1(svc *Services, doc gjson.Result) (*task.Task, error) {
	recipient := doc.Get("recipientIdentity")
	if !recipient.Exists() {
		return nil, nil
	}

	data := OutgoingTextMessageData{
		MessageModelID:      doc.Get("messageModelId").String(),
		RecipientIdentities: []string{recipient.String()},
		ReceiverType:        ReceiverContact,
	}
	if receiverType := doc.Get("receiverType"); receiverType.Exists() {
		data.ReceiverType = ReceiverType(receiverType.String())
	}

	if err := validator.New().Struct(data); err != nil {
		return nil, fmt.Errorf("%w: legacy outgoing message: %w", archive.ErrMalformedEncoding, err)
	}
	return NewOutgoingTextMessage(svc, data), nil
}

func stringArray(value gjson.Result) []string {
	if !value.IsArray() {
		return nil
	}
	var out []string
	for _, item := range value.Array() {
		out = append(out, item.String())
	}
	return out
}
