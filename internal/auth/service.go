package auth

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/cases"

	"github.com/snt-portal/snt-portal/internal/rbac"
	"github.com/snt-portal/snt-portal/internal/shared"
)

// StaffPasswords carries the per-role staff passwords from the environment.
type StaffPasswords struct {
	Admin      string
	Chairman   string
	Secretary  string
	Accountant string
}

// Service wraps the login business rules.
type Service struct {
	dir      *Directory
	registry SessionRegistry
	audit    *shared.AuditLogger
	logger   *slog.Logger
	// bcrypt hashes derived from StaffPasswords at startup; roles with an
	// empty password are absent and cannot log in.
	staffHashes map[rbac.Role][]byte
}

// NewService constructs a Service. Passwords are hashed once here so the
// plaintext never outlives startup.
func NewService(dir *Directory, registry SessionRegistry, audit *shared.AuditLogger, logger *slog.Logger, passwords StaffPasswords) (*Service, error) {
	hashes := make(map[rbac.Role][]byte)
	for role, pass := range map[rbac.Role]string{
		rbac.RoleAdmin:      passwords.Admin,
		rbac.RoleChairman:   passwords.Chairman,
		rbac.RoleSecretary:  passwords.Secretary,
		rbac.RoleAccountant: passwords.Accountant,
	} {
		if pass == "" {
			continue
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(pass), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		hashes[role] = hash
	}
	if registry == nil {
		registry = NopSessionRegistry{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		dir:         dir,
		registry:    registry,
		audit:       audit,
		logger:      logger,
		staffHashes: hashes,
	}, nil
}

// staffRoleNames maps case-folded Russian (and English, for tooling) role
// names from the staff login form to canonical roles.
var staffRoleNames = map[string]rbac.Role{
	"администратор": rbac.RoleAdmin,
	"админ":         rbac.RoleAdmin,
	"admin":         rbac.RoleAdmin,
	"председатель":  rbac.RoleChairman,
	"chairman":      rbac.RoleChairman,
	"секретарь":     rbac.RoleSecretary,
	"secretary":     rbac.RoleSecretary,
	"бухгалтер":     rbac.RoleAccountant,
	"accountant":    rbac.RoleAccountant,
}

// StaffRoleFromName resolves a staff role from its display name. Folding
// handles the Cyrillic casing the login form submits.
func StaffRoleFromName(roleRu string) (rbac.Role, bool) {
	folded := cases.Fold().String(strings.TrimSpace(roleRu))
	role, ok := staffRoleNames[folded]
	return role, ok
}

// AuthenticateStaff validates a staff login and returns the account.
func (s *Service) AuthenticateStaff(ctx context.Context, roleRu, password string) (*User, error) {
	role, ok := StaffRoleFromName(roleRu)
	if !ok {
		return nil, shared.ErrInvalidCredentials
	}
	hash, ok := s.staffHashes[role]
	if !ok {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	user, err := s.dir.StaffByRole(role)
	if err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return user, nil
}

// ResidentByScenario resolves the seeded resident behind a demo scenario.
func (s *Service) ResidentByScenario(ctx context.Context, scenario string) (*User, error) {
	return s.dir.ByScenario(strings.TrimSpace(scenario))
}

// EstablishSession writes the login result into the session payload and
// registers the session. Registry and audit failures are logged, not fatal.
func (s *Service) EstablishSession(ctx context.Context, sess *shared.Session, user *User, ttl time.Duration, ip, ua string) {
	sess.UpdatePayload(func(p *shared.SessionPayload) {
		p.UserID = user.ID
		p.Role = string(user.Role)
		p.ImpersonateUserID = ""
		p.ImpersonatorAdminID = ""
	})
	if err := s.registry.RegisterSession(ctx, sess.ID, user.ID, time.Now().Add(ttl), ip, ua); err != nil {
		s.logger.Warn("register session", slog.Any("error", err))
	}
	s.recordAudit(ctx, user.ID, shared.AuditActionLogin, "session", sess.ID, nil)
}

// Logout deregisters the session and records the audit entry. The caller
// destroys the session itself.
func (s *Service) Logout(ctx context.Context, sess *shared.Session) {
	payload := sess.Payload()
	if err := s.registry.DeleteSession(ctx, sess.ID); err != nil {
		s.logger.Warn("remove session", slog.Any("error", err))
	}
	if payload.UserID != "" {
		s.recordAudit(ctx, payload.UserID, shared.AuditActionLogout, "session", sess.ID, nil)
	}
}

// StartImpersonation switches the session to act as target. Only an admin
// session may impersonate, and the admin id stays on the payload for audit.
func (s *Service) StartImpersonation(ctx context.Context, sess *shared.Session, targetUserID string) (*User, error) {
	payload := sess.Payload()
	if payload.UserID == "" || rbac.NormalizeRole(payload.Role) != rbac.RoleAdmin {
		return nil, shared.ErrImpersonationDenied
	}
	target, err := s.dir.FindByID(targetUserID)
	if err != nil {
		return nil, err
	}
	sess.UpdatePayload(func(p *shared.SessionPayload) {
		p.ImpersonateUserID = target.ID
		p.ImpersonatorAdminID = p.UserID
	})
	s.recordAudit(ctx, payload.UserID, shared.AuditActionImpersonateStart, "user", target.ID, map[string]any{"session": sess.ID})
	return target, nil
}

// StopImpersonation restores the admin's own identity.
func (s *Service) StopImpersonation(ctx context.Context, sess *shared.Session) {
	payload := sess.Payload()
	if payload.ImpersonateUserID == "" {
		return
	}
	sess.UpdatePayload(func(p *shared.SessionPayload) {
		p.ImpersonateUserID = ""
		p.ImpersonatorAdminID = ""
	})
	s.recordAudit(ctx, payload.UserID, shared.AuditActionImpersonateStop, "user", payload.ImpersonateUserID, map[string]any{"session": sess.ID})
}

func (s *Service) recordAudit(ctx context.Context, actorID, action, entity, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{ActorID: actorID, Action: action, Entity: entity, EntityID: entityID, Meta: meta}); err != nil {
		s.logger.Warn("audit record", slog.String("action", action), slog.Any("error", err))
	}
}
