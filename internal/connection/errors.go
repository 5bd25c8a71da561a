package connection

import "errors"

var (
	// ErrConnectionClosed is reported by milestones that can no longer complete
	// because their connection cycle ended.
	ErrConnectionClosed = errors.New("connection closed")

	// ErrDispatcherClosed is returned when work is submitted to a closed dispatcher.
	ErrDispatcherClosed = errors.New("dispatcher closed")

	// ErrProviderClosed is returned by waits on a provider that was shut down.
	ErrProviderClosed = errors.New("connection provider closed")

	// ErrNotMultiDevice is returned when a multi-device milestone is awaited
	// on a connection without a multi-device session.
	ErrNotMultiDevice = errors.New("connection has no multi-device session")

	// ErrNilLogger is returned when a nil logger is provided.
	ErrNilLogger = errors.New("logger cannot be nil")

	// ErrNilMediator is returned when a transaction handler has no mediator.
	ErrNilMediator = errors.New("mediator cannot be nil")
)
