package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/phrazzld/taskcore/internal/api/middleware"
	"github.com/phrazzld/taskcore/internal/api/shared"
	"github.com/phrazzld/taskcore/internal/archive"
	"github.com/phrazzld/taskcore/internal/redact"
	"github.com/phrazzld/taskcore/internal/task"
)

// ErrNilLogger is returned when a nil logger is provided
var ErrNilLogger = errors.New("logger cannot be nil")

// QueueInspector reports the state of the task manager
type QueueInspector interface {
	Pending() int
	State() task.State
}

// ArchiveInspector lists the task archive
type ArchiveInspector interface {
	Entries(ctx context.Context) ([]archive.Entry, error)
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status string `json:"status"`
}

// QueueResponse is the body of GET /v1/queue
type QueueResponse struct {
	Pending int    `json:"pending"`
	State   string `json:"state"`
}

// ArchiveResponse is the body of GET /v1/archive
type ArchiveResponse struct {
	Entries []archive.Entry `json:"entries"`
}

// AdminHandler serves the admin endpoints
type AdminHandler struct {
	queue   QueueInspector
	archive ArchiveInspector
	logger  *slog.Logger
}

// NewAdminHandler creates an admin handler
func NewAdminHandler(queue QueueInspector, archive ArchiveInspector, logger *slog.Logger) (*AdminHandler, error) {
	if logger == nil {
		return nil, ErrNilLogger
	}
	return &AdminHandler{
		queue:   queue,
		archive: archive,
		logger:  logger.With("component", "admin_api"),
	}, nil
}

// Health reports that the process is serving
func (h *AdminHandler) Health(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, HealthResponse{Status: "ok"})
}

// Queue reports the pending task count and the runner state
func (h *AdminHandler) Queue(w http.ResponseWriter, r *http.Request) {
	state := h.queue.State()
	status := http.StatusOK
	if state == task.StateClosing || state == task.StateClosed {
		status = http.StatusServiceUnavailable
	}
	shared.RespondWithJSON(w, r, status, QueueResponse{
		Pending: h.queue.Pending(),
		State:   state.String(),
	})
}

// Archive lists the archived tasks, oldest first, with secrets redacted
func (h *AdminHandler) Archive(w http.ResponseWriter, r *http.Request) {
	entries, err := h.archive.Entries(r.Context())
	if err != nil {
		shared.RespondWithError(w, r, http.StatusInternalServerError, "failed to read task archive", err)
		return
	}
	listed := make([]archive.Entry, 0, len(entries))
	for _, entry := range entries {
		entry.Encoding = redact.Encoding(entry.Encoding)
		listed = append(listed, entry)
	}
	shared.RespondWithJSON(w, r, http.StatusOK, ArchiveResponse{Entries: listed})
}

// NewRouter mounts the admin endpoints
func NewRouter(h *AdminHandler) chi.Router {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewTraceMiddleware(h.logger))
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", h.Health)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/queue", h.Queue)
		r.Get("/archive", h.Archive)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		shared.RespondWithError(w, r, http.StatusNotFound, "not found", nil)
	})
	return r
}
