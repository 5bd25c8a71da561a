package tasks

import (
	"context"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"github.com/phrazzld/taskcore/internal/connection"
	"github.com/phrazzld/taskcore/internal/platform/logger"
	"github.com/phrazzld/taskcore/internal/task"
)

// GroupUpdateType is the type tag of GroupUpdateData
const GroupUpdateType = "GroupUpdateTask"

// Sections of a group update, in execution order
const (
	sectionReflect = iota + 1
	sectionNotifyAdded
	sectionNotifyRemoved
	sectionNotifyRemaining
)

const groupSyncTTL = 30 * time.Second

// Profile picture changes
const (
	PictureSet              = "set"
	PictureSetWithoutUpload = "set_without_upload"
	PictureRemove           = "remove"
	PictureNoChange         = "no_change"
)

// GroupIdentity identifies a group by its creator and id
type GroupIdentity struct {
	CreatorIdentity string `json:"creatorIdentity" validate:"len=8"`
	GroupID         uint64 `json:"groupId"`
}

// String returns the identity for logs
func (g GroupIdentity) String() string {
	return fmt.Sprintf("%s/%d", g.CreatorIdentity, g.GroupID)
}

// ProfilePictureChange is the expected profile picture change of an update
type ProfilePictureChange struct {
	Kind   string `json:"kind" validate:"oneof=set set_without_upload remove no_change"`
	BlobID string `json:"blobId,omitempty" validate:"required_if=Kind set"`
}

// PredefinedMessageIDs are the message ids of the group messages, fixed
// when the update is created so that a resumed task sends the same messages
type PredefinedMessageIDs struct {
	MessageID1 uint64 `json:"messageId1"`
	MessageID2 uint64 `json:"messageId2"`
	MessageID3 uint64 `json:"messageId3"`
	MessageID4 uint64 `json:"messageId4"`
}

// GroupUpdateData is the snapshot of a group update
type GroupUpdateData struct {
	Name                 *string              `json:"name"`
	ProfilePictureChange ProfilePictureChange `json:"expectedProfilePictureChange"`
	UpdatedMembers       []string             `json:"updatedMembers" validate:"dive,len=8"`
	AddedMembers         []string             `json:"addedMembers" validate:"dive,len=8"`
	RemovedMembers       []string             `json:"removedMembers" validate:"dive,len=8"`
	Group                GroupIdentity        `json:"groupIdentity"`
	MessageIDs           PredefinedMessageIDs `json:"predefinedMessageIds"`
	Step                 int                  `json:"step" validate:"gte=0,lte=4"`
}

// TaskType implements task.Data
func (GroupUpdateData) TaskType() string {
	return GroupUpdateType
}

// remainingMembers are the updated members that were neither added nor removed
func (d GroupUpdateData) remainingMembers() []string {
	var remaining []string
	for _, member := range d.UpdatedMembers {
		if slices.Contains(d.AddedMembers, member) || slices.Contains(d.RemovedMembers, member) {
			continue
		}
		remaining = append(remaining, member)
	}
	return remaining
}

// NewGroupUpdate creates the task that reflects a group change and notifies
// the members. It runs in a group sync transaction and resumes after the last
// completed section.
func NewGroupUpdate(svc *Services, data GroupUpdateData) *task.Task {
	var progress atomic.Pointer[task.Lifecycle]
	progress.Store(task.NewLifecycle(data.Step))

	t := task.New(GroupUpdateType, func(ctx context.Context) (any, error) {
		log := logger.FromContext(ctx).With("group", data.Group.String())

		// each attempt resumes after the sections earlier attempts completed
		lifecycle := task.NewLifecycle(progress.Load().Completed())
		progress.Store(lifecycle)

		err := lifecycle.Section(ctx, sectionReflect, func(ctx context.Context) error {
			if !svc.MultiDevice.IsEnabled() {
				return nil
			}
			return svc.Groups.Reflect(ctx, data)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to reflect group update: %w", err)
		}

		err = lifecycle.Section(ctx, sectionNotifyAdded, func(ctx context.Context) error {
			return notify(ctx, svc, data.Group, data.AddedMembers, NotifySetup, data.MessageIDs.MessageID1)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to notify added members: %w", err)
		}

		err = lifecycle.Section(ctx, sectionNotifyRemoved, func(ctx context.Context) error {
			return notify(ctx, svc, data.Group, data.RemovedMembers, NotifyRemoved, data.MessageIDs.MessageID2)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to notify removed members: %w", err)
		}

		err = lifecycle.Section(ctx, sectionNotifyRemaining, func(ctx context.Context) error {
			remaining := data.remainingMembers()
			if data.Name != nil {
				if err := notify(ctx, svc, data.Group, remaining, NotifyName, data.MessageIDs.MessageID3); err != nil {
					return err
				}
			}
			if data.ProfilePictureChange.Kind != PictureNoChange {
				return notify(ctx, svc, data.Group, remaining, NotifyProfilePicture, data.MessageIDs.MessageID4)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to notify remaining members: %w", err)
		}

		log.Info("group update finished")
		return nil, nil
	})

	t.Transaction = svc.transaction(connection.ScopeGroupSync, groupSyncTTL, func(ctx context.Context) (bool, error) {
		return svc.Groups.Exists(ctx, data.Group)
	})
	t.Persist = func() (task.Data, error) {
		snapshot := data
		snapshot.Step = progress.Load().Completed()
		return snapshot, nil
	}
	t.MaxAttempts = 3
	return t
}

func notify(ctx context.Context, svc *Services, group GroupIdentity, recipients []string, kind NotificationKind, messageID uint64) error {
	if len(recipients) == 0 {
		return nil
	}
	return svc.Groups.Notify(ctx, group, recipients, kind, messageID)
}
