// Package api provides the HTTP handler for the queue engine. Every route is
// a thin JSON shim over the queue service; the handler holds no state of its
// own, so any number of replicas can serve the same bucket.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"runqueue/internal/domain"
	"runqueue/internal/service/queue"
)

// queueService defines the queue operations used by the HTTP handler.
type queueService interface {
	InitQueue(ctx context.Context, name string) (*domain.QueueDocument, error)
	Submit(ctx context.Context, name string, paramSets []map[string]string) ([]*domain.JobEntry, error)
	Tick(ctx context.Context, name string) (queue.TickResult, error)
	DrainToEmpty(ctx context.Context, name string, maxTicks int) (queue.DrainResult, error)
	Status(ctx context.Context, name string) (*queue.QueueStatus, error)
	Pause(ctx context.Context, name string) error
	Resume(ctx context.Context, name string) error
	Cancel(ctx context.Context, name, entryID string) (*domain.JobEntry, error)
	Report(ctx context.Context, name, entryID string, succeeded bool, message string) (*domain.JobEntry, error)
	RequeueStale(ctx context.Context, name string) ([]string, error)
}

// Handler serves the queue HTTP API.
type Handler struct {
	queues    queueService
	logger    *slog.Logger
	startTime time.Time
}

// NewHandler creates the HTTP handler.
func NewHandler(queues queueService, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		queues:    queues,
		logger:    logger,
		startTime: time.Now(),
	}
}

// Routes mounts all queue API routes on a fresh chi router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/healthz", h.Healthz)
	r.Route("/v1/queues/{queue}", func(r chi.Router) {
		r.Post("/", h.InitQueue)
		r.Get("/status", h.QueueStatus)
		r.Post("/entries", h.SubmitEntries)
		r.Post("/tick", h.Tick)
		r.Post("/drain", h.Drain)
		r.Post("/pause", h.Pause)
		r.Post("/resume", h.Resume)
		r.Post("/requeue-stale", h.RequeueStale)
		r.Post("/entries/{entryID}/cancel", h.CancelEntry)
		r.Post("/entries/{entryID}/report", h.ReportEntry)
	})
	return r
}

// Healthz reports liveness. It deliberately does not touch the bucket: a
// storage outage makes ticks fail loudly, not the process unhealthy.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"uptime_seconds": int(time.Since(h.startTime).Seconds()),
	})
}

// InitQueue creates a new empty queue document.
func (h *Handler) InitQueue(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "queue")
	doc, err := h.queues.InitQueue(r.Context(), name)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, doc)
}

// QueueStatus returns the per-state counts and stale entries of a queue.
func (h *Handler) QueueStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.queues.Status(r.Context(), chi.URLParam(r, "queue"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, status)
}

// SubmitEntries appends a batch of pending entries to the queue.
func (h *Handler) SubmitEntries(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Entries []struct {
			Params map[string]string `json:"params"`
		} `json:"entries"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, domain.ErrValidation("invalid request body: %v", err))
		return
	}
	paramSets := make([]map[string]string, len(req.Entries))
	for i, e := range req.Entries {
		paramSets[i] = e.Params
	}

	added, err := h.queues.Submit(r.Context(), chi.URLParam(r, "queue"), paramSets)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, map[string]any{"entries": added})
}

// Tick advances the queue by at most one entry.
func (h *Handler) Tick(w http.ResponseWriter, r *http.Request) {
	res, err := h.queues.Tick(r.Context(), chi.URLParam(r, "queue"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

// Drain ticks until the queue is empty, paused, or the tick bound is hit.
// An optional maxTicks query parameter overrides the configured bound.
func (h *Handler) Drain(w http.ResponseWriter, r *http.Request) {
	maxTicks := 0
	if v := r.URL.Query().Get("maxTicks"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			h.writeError(w, r, domain.ErrValidation("invalid maxTicks %q", v))
			return
		}
		maxTicks = n
	}

	res, err := h.queues.DrainToEmpty(r.Context(), chi.URLParam(r, "queue"), maxTicks)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

// Pause stops ticks from claiming entries.
func (h *Handler) Pause(w http.ResponseWriter, r *http.Request) {
	h.setRunning(w, r, h.queues.Pause, false)
}

// Resume re-enables ticking.
func (h *Handler) Resume(w http.ResponseWriter, r *http.Request) {
	h.setRunning(w, r, h.queues.Resume, true)
}

func (h *Handler) setRunning(w http.ResponseWriter, r *http.Request, op func(context.Context, string) error, running bool) {
	name := chi.URLParam(r, "queue")
	if err := op(r.Context(), name); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"queue": name, "running": running})
}

// RequeueStale returns wedged LAUNCHING entries to PENDING.
func (h *Handler) RequeueStale(w http.ResponseWriter, r *http.Request) {
	requeued, err := h.queues.RequeueStale(r.Context(), chi.URLParam(r, "queue"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if requeued == nil {
		requeued = []string{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"requeued": requeued})
}

// CancelEntry moves a non-terminal entry to CANCELLED.
func (h *Handler) CancelEntry(w http.ResponseWriter, r *http.Request) {
	entry, err := h.queues.Cancel(r.Context(), chi.URLParam(r, "queue"), chi.URLParam(r, "entryID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, entry)
}

// ReportEntry accepts an external completion notice for a RUNNING entry.
func (h *Handler) ReportEntry(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Succeeded bool   `json:"succeeded"`
		Message   string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, domain.ErrValidation("invalid request body: %v", err))
		return
	}

	entry, err := h.queues.Report(r.Context(), chi.URLParam(r, "queue"), chi.URLParam(r, "entryID"), req.Succeeded, req.Message)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, entry)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := httpStatusFromDomainError(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}
	h.writeJSON(w, status, map[string]any{
		"code":    status,
		"message": err.Error(),
	})
}
