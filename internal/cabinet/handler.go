// Package cabinet serves the resident area. Every route is mounted behind
// the cabinet guard; handlers assume access has already been granted.
package cabinet

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/snt-portal/snt-portal/internal/auth"
	"github.com/snt-portal/snt-portal/internal/shared"
	"github.com/snt-portal/snt-portal/internal/view"
)

// Handler renders the cabinet pages.
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

// MountRoutes registers the cabinet pages.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.page("Личный кабинет", "pages/cabinet.html"))
	r.Get("/appeals", h.page("Мои обращения", "pages/cabinet_appeals.html"))
	r.Get("/billing", h.page("Начисления", "pages/cabinet_billing.html"))
}

func (h *Handler) page(title, template string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		var flash *shared.FlashMessage
		if sess != nil {
			flash = sess.PopFlash()
		}
		data := view.Base(title,
			h.resolver.EffectiveUser(r),
			shared.DegradedCabinetFromContext(r.Context()),
			h.csrf.Token(sess),
			r.URL.Path,
			flash)
		if err := h.templates.Render(w, template, data); err != nil {
			h.logger.Error("render cabinet page", slog.String("template", template), slog.Any("error", err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
	}
}
