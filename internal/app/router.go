package app

import (
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/snt-portal/snt-portal/internal/adminpanel"
	"github.com/snt-portal/snt-portal/internal/auth"
	"github.com/snt-portal/snt-portal/internal/cabinet"
	"github.com/snt-portal/snt-portal/internal/guard"
	"github.com/snt-portal/snt-portal/internal/observability"
	"github.com/snt-portal/snt-portal/internal/office"
	"github.com/snt-portal/snt-portal/internal/qa"
	"github.com/snt-portal/snt-portal/internal/shared"
	"github.com/snt-portal/snt-portal/internal/view"
	"github.com/snt-portal/snt-portal/jobs"
	"github.com/snt-portal/snt-portal/web"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	Templates      *view.Engine
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager
	Resolver       *auth.Resolver
	Guard          *guard.Guard

	AuthHandler    *auth.Handler
	CabinetHandler *cabinet.Handler
	OfficeHandler  *office.Handler
	AdminHandler   *adminpanel.Handler
	QAHandler      *qa.Handler
	JobHandler     *jobs.Handler
	Metrics        *observability.Metrics
}

// NewRouter constructs the chi.Router with portal defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Public pages. The login pages carry the next parameter through to the
	// form; the forbidden page renders the reason the guard attached.
	r.Get("/", params.page("Портал СНТ", "pages/landing.html", nil))
	r.Get("/login", params.page("Вход для жителей", "pages/login.html", func(r *http.Request) any {
		return map[string]string{"Next": r.URL.Query().Get("next")}
	}))
	r.Get("/staff-login", params.page("Вход для правления", "pages/staff_login.html", func(r *http.Request) any {
		return map[string]string{"Next": r.URL.Query().Get("next")}
	}))
	r.Get("/forbidden", params.page("Доступ ограничен", "pages/forbidden.html", func(r *http.Request) any {
		q := r.URL.Query()
		return map[string]string{
			"Reason": q.Get("reason"),
			"Next":   q.Get("next"),
			"Src":    q.Get("src"),
		}
	}))

	r.Route("/cabinet", func(r chi.Router) {
		r.Use(params.Guard.RequireCabinet)
		params.CabinetHandler.MountRoutes(r)
	})
	r.Route("/office", func(r chi.Router) {
		r.Use(params.Guard.RequireOffice)
		params.OfficeHandler.MountRoutes(r)
	})
	r.Route("/admin", func(r chi.Router) {
		r.Use(params.Guard.RequireAdmin)
		params.AdminHandler.MountRoutes(r)
	})

	r.Route("/api/auth", params.AuthHandler.MountRoutes)
	r.Route("/api/admin", func(r chi.Router) {
		params.AuthHandler.MountAdminRoutes(r)
		if params.QAHandler != nil {
			r.Route("/qa", params.QAHandler.MountRoutes)
		}
	})

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		params.Logger.Error("create static sub filesystem", slog.Any("error", err))
	} else {
		fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
		r.Handle("/static/*", staticCacheHandler(fileServer))
	}

	return r
}

// page renders a public template. extra, when set, derives page data from the
// request query.
func (params RouterParams) page(title, template string, extra func(r *http.Request) any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		var flash *shared.FlashMessage
		if sess != nil {
			flash = sess.PopFlash()
		}
		data := view.Base(title,
			params.Resolver.EffectiveUser(r),
			false,
			params.CSRFManager.Token(sess),
			r.URL.Path,
			flash)
		if extra != nil {
			data.Data = extra(r)
		}
		if err := params.Templates.Render(w, template, data); err != nil {
			params.Logger.Error("render page", slog.String("template", template), slog.Any("error", err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
	}
}

// staticCacheHandler wraps a file server with Cache-Control headers so
// browsers keep CSS and images for an hour.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}
