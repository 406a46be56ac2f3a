// Package office serves the board workspace behind the office guard.
package office

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/snt-portal/snt-portal/internal/auth"
	"github.com/snt-portal/snt-portal/internal/shared"
	"github.com/snt-portal/snt-portal/internal/view"
)

// Handler renders the office pages.
type Handler struct {
	logger    *slog.Logger
	templates *view.Engine
	resolver  *auth.Resolver
	csrf      *shared.CSRFManager
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, templates *view.Engine, resolver *auth.Resolver, csrf *shared.CSRFManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, templates: templates, resolver: resolver, csrf: csrf}
}

// MountRoutes registers the office pages.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.page("Офис правления", "pages/office.html"))
	r.Get("/appeals", h.page("Обращения жителей", "pages/office_appeals.html"))
	r.Get("/registry", h.page("Реестр участков", "pages/office_registry.html"))
}

func (h *Handler) page(title, template string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		var flash *shared.FlashMessage
		if sess != nil {
			flash = sess.PopFlash()
		}
		data := view.Base(title, h.resolver.EffectiveUser(r), false, h.csrf.Token(sess), r.URL.Path, flash)
		if err := h.templates.Render(w, template, data); err != nil {
			h.logger.Error("render office page", slog.String("template", template), slog.Any("error", err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
	}
}
