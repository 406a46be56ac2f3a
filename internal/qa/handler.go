package qa

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/snt-portal/snt-portal/internal/guard"
	"github.com/snt-portal/snt-portal/internal/platform/httpx"
)

// Handler exposes the QA ops endpoints. Everything here is disabled in
// production unless the QA flag is set, and a disabled endpoint answers 404
// so unauthorized callers cannot even confirm the tooling exists.
type Handler struct {
	logger    *slog.Logger
	guard     *guard.Guard
	engine    *Engine
	builder   *Builder
	store     *ReportStore
	enqueue   func(reportID string) error
	qaEnabled func() bool
	qaSecret  string
}

// NewHandler constructs a Handler. enqueue schedules a background full run
// for the given report id; a nil enqueue makes /run execute synchronously.
func NewHandler(logger *slog.Logger, g *guard.Guard, engine *Engine, builder *Builder, store *ReportStore, enqueue func(reportID string) error, qaEnabled func() bool, qaSecret string) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if qaEnabled == nil {
		qaEnabled = func() bool { return false }
	}
	return &Handler{
		logger:    logger,
		guard:     g,
		engine:    engine,
		builder:   builder,
		store:     store,
		enqueue:   enqueue,
		qaEnabled: qaEnabled,
		qaSecret:  qaSecret,
	}
}

// MountRoutes registers the /api/admin/qa endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/run-access-matrix", h.handleRunAccessMatrix)
	r.Post("/run", h.handleRun)
	r.Get("/report/{id}", h.handleGetReport)
}

// gate applies the fixed check order for QA endpoints: existence (404 when
// QA is disabled), same-origin (403), then admin session or shared secret.
// Returns true when it wrote a denial.
func (h *Handler) gate(w http.ResponseWriter, r *http.Request, methods ...string) bool {
	if !h.qaEnabled() {
		httpx.Error(w, r, http.StatusNotFound, httpx.CodeNotFound, "not found")
		return true
	}
	if !sameOrigin(r) {
		httpx.Error(w, r, http.StatusForbidden, httpx.CodeOriginMismatch, "cross-origin request rejected")
		return true
	}
	if h.qaSecret != "" {
		provided := r.Header.Get("X-QA-Secret")
		if provided != "" && subtle.ConstantTimeCompare([]byte(provided), []byte(h.qaSecret)) == 1 {
			return false
		}
	}
	return h.guard.FailClosed(w, r, guard.FailClosedOpts{
		AllowedMethods: methods,
		RequireRole:    guard.RoleClassAdmin,
	})
}

func (h *Handler) handleRunAccessMatrix(w http.ResponseWriter, r *http.Request) {
	if h.gate(w, r, http.MethodPost) {
		return
	}
	report, err := h.engine.RunMatrix(r.Context(), DefaultRoutes())
	if err != nil {
		h.logger.Error("access matrix run", slog.Any("error", err))
		httpx.Error(w, r, http.StatusInternalServerError, httpx.CodeInternal, "matrix run failed")
		return
	}
	httpx.OK(w, r, report)
}

func (h *Handler) handleRun(w http.ResponseWriter, r *http.Request) {
	if h.gate(w, r, http.MethodPost) {
		return
	}
	reportID := NewReportID()

	if h.enqueue != nil {
		if err := h.enqueue(reportID); err != nil {
			h.logger.Error("enqueue qa full run", slog.Any("error", err))
			httpx.Error(w, r, http.StatusInternalServerError, httpx.CodeInternal, "could not queue run")
			return
		}
		httpx.OK(w, r, map[string]any{"reportId": reportID, "queued": true})
		return
	}

	report, err := h.builder.Run(r.Context(), reportID)
	if err != nil {
		h.logger.Error("qa full run", slog.Any("error", err))
		httpx.Error(w, r, http.StatusInternalServerError, httpx.CodeInternal, "full run failed")
		return
	}
	httpx.OK(w, r, report)
}

func (h *Handler) handleGetReport(w http.ResponseWriter, r *http.Request) {
	if h.gate(w, r, http.MethodGet) {
		return
	}
	report, err := h.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, ErrReportNotFound) {
			httpx.Error(w, r, http.StatusNotFound, httpx.CodeNotFound, "report not found")
			return
		}
		httpx.RespondError(w, r, err)
		return
	}
	httpx.OK(w, r, report)
}

// sameOrigin verifies the Origin (or, failing that, Referer) header matches
// the request host. Requests without either header pass: they come from
// non-browser tooling that CSRF does not apply to.
func sameOrigin(r *http.Request) bool {
	check := func(raw string) bool {
		u, err := url.Parse(raw)
		if err != nil {
			return false
		}
		return u.Host == r.Host
	}
	if origin := r.Header.Get("Origin"); origin != "" {
		return check(origin)
	}
	if referer := r.Header.Get("Referer"); referer != "" {
		return check(referer)
	}
	return true
}
