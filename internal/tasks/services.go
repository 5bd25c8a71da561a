package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/taskcore/internal/connection"
	"github.com/phrazzld/taskcore/internal/task"
)

// ReceiverType is the kind of conversation a message is sent to
type ReceiverType string

// Receiver types
const (
	ReceiverContact          ReceiverType = "contact"
	ReceiverGroup            ReceiverType = "group"
	ReceiverDistributionList ReceiverType = "distribution_list"
)

// NotificationKind selects the group message sent to a set of members
type NotificationKind string

// Group notifications
const (
	NotifySetup          NotificationKind = "setup"
	NotifyRemoved        NotificationKind = "removed"
	NotifyName           NotificationKind = "name"
	NotifyProfilePicture NotificationKind = "profile_picture"
)

// MessageSender delivers stored outgoing messages
type MessageSender interface {
	SendText(ctx context.Context, messageModelID string, recipients []string, receiverType ReceiverType) error
}

// GroupMessenger reflects group changes and notifies members
type GroupMessenger interface {
	Exists(ctx context.Context, group GroupIdentity) (bool, error)
	Reflect(ctx context.Context, update GroupUpdateData) error
	Notify(ctx context.Context, group GroupIdentity, recipients []string, kind NotificationKind, messageID uint64) error
}

// DeviceManager manages the devices of the device group
type DeviceManager interface {
	DropDevice(ctx context.Context, deviceID string) error
}

// RemoteSecretClient talks to the remote secret server
type RemoteSecretClient interface {
	DeleteRemoteSecret(ctx context.Context, authenticationToken string) error
}

// MultiDeviceState reports whether multi-device is active
type MultiDeviceState interface {
	IsEnabled() bool
}

// TransactionSource opens mediator transactions
type TransactionSource interface {
	NewTransaction(scope connection.TransactionScope, ttl time.Duration) (task.TransactionHandler, error)
}

// RetryPolicy bounds the internal retry loops of tasks
type RetryPolicy struct {
	InitialInterval time.Duration `validate:"gt=0"`
	MaxInterval     time.Duration `validate:"gtefield=InitialInterval"`
	MaxRetries      uint64        `validate:"gte=1"`
}

// DefaultRetryPolicy returns the policy used when none is configured
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		InitialInterval: time.Second,
		MaxInterval:     time.Minute,
		MaxRetries:      5,
	}
}

// Services holds the collaborators of all tasks
type Services struct {
	Messages      MessageSender      `validate:"required"`
	Groups        GroupMessenger     `validate:"required"`
	Devices       DeviceManager      `validate:"required"`
	RemoteSecrets RemoteSecretClient `validate:"required"`
	MultiDevice   MultiDeviceState   `validate:"required"`
	Transactions  TransactionSource  `validate:"required"`
	Logger        *slog.Logger       `validate:"required"`
	Retry         RetryPolicy
}

// Validate checks that every collaborator is set
func (s *Services) Validate() error {
	if err := validator.New().Struct(s); err != nil {
		return fmt.Errorf("invalid task services: %w", err)
	}
	return nil
}

// ConnectionTransactions opens mediator transactions on the connection of
// provider
type ConnectionTransactions struct {
	Provider *connection.Provider
	Mediator connection.Mediator
}

// NewTransaction implements TransactionSource
func (c ConnectionTransactions) NewTransaction(scope connection.TransactionScope, ttl time.Duration) (task.TransactionHandler, error) {
	return connection.NewTransactionHandler(c.Provider, c.Mediator, scope, ttl)
}

// multiDeviceTransaction opens the mediator transaction only while
// multi-device is enabled. Without multi-device there is nobody to
// coordinate with and Init and Finish do nothing.
type multiDeviceTransaction struct {
	svc   *Services
	scope connection.TransactionScope
	ttl   time.Duration

	active task.TransactionHandler
}

func (s *Services) transaction(scope connection.TransactionScope, ttl time.Duration, precondition task.Precondition) *task.Transaction {
	return &task.Transaction{
		Precondition: precondition,
		Handler:      &multiDeviceTransaction{svc: s, scope: scope, ttl: ttl},
	}
}

func (t *multiDeviceTransaction) Init(ctx context.Context) error {
	t.active = nil
	if !t.svc.MultiDevice.IsEnabled() {
		return nil
	}
	handler, err := t.svc.Transactions.NewTransaction(t.scope, t.ttl)
	if err != nil {
		return err
	}
	if err := handler.Init(ctx); err != nil {
		return err
	}
	t.active = handler
	return nil
}

func (t *multiDeviceTransaction) Finish(ctx context.Context) error {
	if t.active == nil {
		return nil
	}
	handler := t.active
	t.active = nil
	return handler.Finish(ctx)
}
