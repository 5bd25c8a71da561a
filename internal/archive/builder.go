package archive

import (
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/taskcore/internal/store"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Builder collects the collaborators of an Archiver
type Builder struct {
	store    store.TaskArchiveStore
	logger   *slog.Logger
	registry *Registry
	recovery *RecoveryManager
	tracer   trace.Tracer
}

// NewBuilder starts building an Archiver over the given store
func NewBuilder(s store.TaskArchiveStore, logger *slog.Logger) *Builder {
	return &Builder{store: s, logger: logger}
}

// WithRegistry sets the decoder registry. It is required.
func (b *Builder) WithRegistry(registry *Registry) *Builder {
	b.registry = registry
	return b
}

// WithRecovery sets the recovery manager consulted for encodings that fail to decode
func (b *Builder) WithRecovery(recovery *RecoveryManager) *Builder {
	b.recovery = recovery
	return b
}

// WithTracer sets the tracer used for the load span
func (b *Builder) WithTracer(tracer trace.Tracer) *Builder {
	b.tracer = tracer
	return b
}

// Build returns the Archiver, or an error when a required collaborator is missing
func (b *Builder) Build() (*Archiver, error) {
	if b.logger == nil {
		return nil, ErrNilLogger
	}
	if b.store == nil {
		return nil, ErrMissingStore
	}
	if b.registry == nil {
		return nil, ErrMissingRegistry
	}

	tracer := b.tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("taskcore/archive")
	}

	return &Archiver{
		store:    b.store,
		registry: b.registry,
		recovery: b.recovery,
		logger:   b.logger.With("component", "task_archiver"),
		tracer:   tracer,
		tracked:  make(map[uuid.UUID]*archivedRow),
	}, nil
}
