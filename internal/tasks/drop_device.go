package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/phrazzld/taskcore/internal/connection"
	"github.com/phrazzld/taskcore/internal/task"
)

// DropDeviceType is the type of the drop device task
const DropDeviceType = "DropDeviceTask"

const dropDeviceTTL = 10 * time.Second

// NewDropDevice creates the task that removes a device from the device group.
// It only runs while multi-device is enabled and is not archived: a device
// that outlives a restart is dropped again from the linked devices screen.
func NewDropDevice(svc *Services, deviceID string) *task.Task {
	t := task.New(DropDeviceType, func(ctx context.Context) (any, error) {
		if err := svc.Devices.DropDevice(ctx, deviceID); err != nil {
			return nil, fmt.Errorf("failed to drop device %s: %w", deviceID, err)
		}
		return deviceID, nil
	})
	t.Gate = task.OnlyWithMultiDevice(svc.MultiDevice.IsEnabled)
	t.Transaction = svc.transaction(connection.ScopeDropDevice, dropDeviceTTL, nil)
	return t
}
