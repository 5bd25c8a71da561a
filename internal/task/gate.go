package task

// GateMode selects which multi-device state allows a task to run
type GateMode int

// Possible gate modes
const (
	MultiDeviceOnly GateMode = iota + 1
	MultiDeviceExcluded
)

// String returns the mode name used in logs
func (m GateMode) String() string {
	switch m {
	case MultiDeviceOnly:
		return "multi_device_only"
	case MultiDeviceExcluded:
		return "multi_device_excluded"
	default:
		return "unknown"
	}
}

// Gate restricts a task to a multi-device mode.
// Enabled is consulted when the task is invoked, not when it is queued,
// so a task queued under one mode and run under the other is skipped.
type Gate struct {
	Mode    GateMode
	Enabled func() bool
}

// OnlyWithMultiDevice returns a gate that runs the task only while multi-device is enabled
func OnlyWithMultiDevice(enabled func() bool) *Gate {
	return &Gate{Mode: MultiDeviceOnly, Enabled: enabled}
}

// ExcludedWithMultiDevice returns a gate that runs the task only while multi-device is disabled
func ExcludedWithMultiDevice(enabled func() bool) *Gate {
	return &Gate{Mode: MultiDeviceExcluded, Enabled: enabled}
}

// Allows reports whether the gated body may run now.
// A missing predicate counts as multi-device disabled.
func (g *Gate) Allows() bool {
	enabled := g.Enabled != nil && g.Enabled()
	switch g.Mode {
	case MultiDeviceOnly:
		return enabled
	case MultiDeviceExcluded:
		return !enabled
	default:
		return true
	}
}
