package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/snt-portal/snt-portal/internal/platform/httpx"
	"github.com/snt-portal/snt-portal/internal/shared"
)

// Handler wires the JSON auth endpoints.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	sessionManager *shared.SessionManager
	validator      *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, sessions *shared.SessionManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:         logger,
		service:        service,
		sessionManager: sessions,
		validator:      validator.New(),
	}
}

// MountRoutes registers the /api/auth endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/login", h.handleStaffLogin)
	r.Post("/resident-login", h.handleResidentLogin)
	r.Post("/logout", h.handleLogout)
}

// MountAdminRoutes registers the impersonation endpoints under /api/admin.
// The underlying-admin requirement is enforced by the service, not a route
// guard: impersonation must check the real session role, never the effective
// one.
func (h *Handler) MountAdminRoutes(r chi.Router) {
	r.Post("/impersonate", h.handleImpersonate)
	r.Post("/impersonate/stop", h.handleImpersonateStop)
}

type staffLoginRequest struct {
	Mode     string `json:"mode" validate:"required,eq=staff"`
	RoleRu   string `json:"roleRu" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type residentLoginRequest struct {
	Scenario string `json:"scenario" validate:"required"`
}

type impersonateRequest struct {
	UserID string `json:"userId" validate:"required"`
}

type loginResponse struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
}

func (h *Handler) handleStaffLogin(w http.ResponseWriter, r *http.Request) {
	var req staffLoginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, r, http.StatusBadRequest, httpx.CodeInvalidRequest, "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Error(w, r, http.StatusBadRequest, httpx.CodeInvalidRequest, "mode, roleRu and password are required")
		return
	}

	user, err := h.service.AuthenticateStaff(r.Context(), req.RoleRu, req.Password)
	if err != nil {
		httpx.Error(w, r, http.StatusUnauthorized, httpx.CodeInvalidCredentials, "роль или пароль не подходят")
		return
	}
	h.login(w, r, user)
}

func (h *Handler) handleResidentLogin(w http.ResponseWriter, r *http.Request) {
	var req residentLoginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, r, http.StatusBadRequest, httpx.CodeInvalidRequest, "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Error(w, r, http.StatusBadRequest, httpx.CodeInvalidRequest, "scenario is required")
		return
	}

	user, err := h.service.ResidentByScenario(r.Context(), req.Scenario)
	if err != nil {
		if errors.Is(err, shared.ErrUnknownScenario) {
			httpx.Error(w, r, http.StatusBadRequest, httpx.CodeInvalidRequest, "unknown scenario")
			return
		}
		httpx.RespondError(w, r, err)
		return
	}
	h.login(w, r, user)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request, user *User) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		h.logger.Error("session missing during login")
		httpx.Error(w, r, http.StatusInternalServerError, httpx.CodeInternal, "session unavailable")
		return
	}
	h.service.EstablishSession(r.Context(), sess, user, h.sessionManager.TTL(), r.RemoteAddr, r.UserAgent())
	httpx.OK(w, r, loginResponse{UserID: user.ID, Role: string(user.Role)})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		h.service.Logout(r.Context(), sess)
		h.sessionManager.Destroy(sess)
	}
	httpx.OK(w, r, map[string]bool{"loggedOut": true})
}

func (h *Handler) handleImpersonate(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil || !sess.Authenticated() {
		httpx.Error(w, r, http.StatusUnauthorized, httpx.CodeUnauthorized, "authentication required")
		return
	}

	var req impersonateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, r, http.StatusBadRequest, httpx.CodeInvalidRequest, "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Error(w, r, http.StatusBadRequest, httpx.CodeInvalidRequest, "userId is required")
		return
	}

	target, err := h.service.StartImpersonation(r.Context(), sess, req.UserID)
	if err != nil {
		switch {
		case errors.Is(err, shared.ErrImpersonationDenied):
			httpx.Error(w, r, http.StatusForbidden, httpx.CodeForbidden, "impersonation requires an admin session")
		case errors.Is(err, shared.ErrNotFound):
			httpx.Error(w, r, http.StatusNotFound, httpx.CodeNotFound, "user not found")
		default:
			httpx.RespondError(w, r, err)
		}
		return
	}
	httpx.OK(w, r, loginResponse{UserID: target.ID, Role: string(target.Role)})
}

func (h *Handler) handleImpersonateStop(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil || !sess.Authenticated() {
		httpx.Error(w, r, http.StatusUnauthorized, httpx.CodeUnauthorized, "authentication required")
		return
	}
	h.service.StopImpersonation(r.Context(), sess)
	httpx.OK(w, r, map[string]bool{"stopped": true})
}
