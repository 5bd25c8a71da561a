package tasks

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/phrazzld/taskcore/internal/connection"
	"github.com/phrazzld/taskcore/internal/task"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// recorder collects the calls made to the fake collaborators in order
type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(call string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
}

func (r *recorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

type fakeMessages struct {
	rec    *recorder
	sendFn func(messageModelID string) error
}

func (f *fakeMessages) SendText(ctx context.Context, messageModelID string, recipients []string, receiverType ReceiverType) error {
	f.rec.add("send:" + messageModelID)
	if f.sendFn != nil {
		return f.sendFn(messageModelID)
	}
	return nil
}

type fakeGroups struct {
	rec      *recorder
	exists   bool
	notifyFn func(kind NotificationKind) error
}

func (f *fakeGroups) Exists(ctx context.Context, group GroupIdentity) (bool, error) {
	return f.exists, nil
}

func (f *fakeGroups) Reflect(ctx context.Context, update GroupUpdateData) error {
	f.rec.add("reflect")
	return nil
}

func (f *fakeGroups) Notify(ctx context.Context, group GroupIdentity, recipients []string, kind NotificationKind, messageID uint64) error {
	f.rec.add("notify:" + string(kind))
	if f.notifyFn != nil {
		return f.notifyFn(kind)
	}
	return nil
}

type fakeDevices struct {
	rec *recorder
}

func (f *fakeDevices) DropDevice(ctx context.Context, deviceID string) error {
	f.rec.add("drop:" + deviceID)
	return nil
}

type fakeRemoteSecrets struct {
	rec      *recorder
	deleteFn func(attempt int) error
	attempts atomic.Int32
}

func (f *fakeRemoteSecrets) DeleteRemoteSecret(ctx context.Context, token string) error {
	attempt := int(f.attempts.Add(1))
	f.rec.add("delete_secret")
	if f.deleteFn != nil {
		return f.deleteFn(attempt)
	}
	return nil
}

type fakeMultiDevice struct {
	enabled atomic.Bool
}

func (f *fakeMultiDevice) IsEnabled() bool {
	return f.enabled.Load()
}

type fakeTransactions struct {
	rec *recorder
}

func (f *fakeTransactions) NewTransaction(scope connection.TransactionScope, ttl time.Duration) (task.TransactionHandler, error) {
	return &fakeTransaction{rec: f.rec, scope: scope}, nil
}

type fakeTransaction struct {
	rec   *recorder
	scope connection.TransactionScope
}

func (f *fakeTransaction) Init(ctx context.Context) error {
	f.rec.add("begin:" + string(f.scope))
	return nil
}

func (f *fakeTransaction) Finish(ctx context.Context) error {
	f.rec.add("commit:" + string(f.scope))
	return nil
}

type testServices struct {
	*Services
	rec         *recorder
	messages    *fakeMessages
	groups      *fakeGroups
	secrets     *fakeRemoteSecrets
	multiDevice *fakeMultiDevice
}

func newTestServices(t *testing.T) *testServices {
	t.Helper()
	rec := &recorder{}
	ts := &testServices{
		rec:         rec,
		messages:    &fakeMessages{rec: rec},
		groups:      &fakeGroups{rec: rec, exists: true},
		secrets:     &fakeRemoteSecrets{rec: rec},
		multiDevice: &fakeMultiDevice{},
	}
	ts.Services = &Services{
		Messages:      ts.messages,
		Groups:        ts.groups,
		Devices:       &fakeDevices{rec: rec},
		RemoteSecrets: ts.secrets,
		MultiDevice:   ts.multiDevice,
		Transactions:  &fakeTransactions{rec: rec},
		Logger:        discardLogger(),
		Retry: RetryPolicy{
			InitialInterval: time.Millisecond,
			MaxInterval:     5 * time.Millisecond,
			MaxRetries:      3,
		},
	}
	return ts
}
