package qa

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snt-portal/snt-portal/internal/auth"
	"github.com/snt-portal/snt-portal/internal/guard"
	"github.com/snt-portal/snt-portal/internal/rbac"
	"github.com/snt-portal/snt-portal/internal/shared"
)

var testPasswords = auth.StaffPasswords{
	Admin:      "admin-pass",
	Chairman:   "chairman-pass",
	Secretary:  "secretary-pass",
	Accountant: "accountant-pass",
}

type testPortal struct {
	server   *httptest.Server
	sessions *shared.SessionManager
	dir      *auth.Directory
	client   *redis.Client
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestPortal stands up the real route tree behind httptest: session
// middleware, guards, auth endpoints and marker pages. The engine under test
// talks to it exactly the way it talks to a deployed portal.
func newTestPortal(t *testing.T, qaEnabled bool) *testPortal {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	logger := quietLogger()
	sessions := shared.NewSessionManager(client, shared.SessionCookieName, "test-secret", time.Hour, false)
	dir := auth.NewDirectory()
	svc, err := auth.NewService(dir, nil, nil, logger, testPasswords)
	require.NoError(t, err)
	resolver := auth.NewResolver(dir, func() bool { return qaEnabled })
	g := guard.New(resolver, logger)
	authHandler := auth.NewHandler(logger, svc, sessions)

	page := func(name string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			fmt.Fprintf(w, "<main data-page=%q>%s</main>", name, name)
		}
	}

	r := chi.NewRouter()
	r.Use(shared.SessionMiddleware(sessions, logger))
	r.Get("/", page("landing"))
	r.Get("/login", page("login"))
	r.Get("/staff-login", page("staff-login"))
	r.Get("/forbidden", page("forbidden"))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, "ok")
	})
	r.Route("/cabinet", func(r chi.Router) {
		r.Use(g.RequireCabinet)
		r.Get("/", page("cabinet"))
		r.Get("/appeals", page("cabinet-appeals"))
		r.Get("/billing", page("cabinet-billing"))
	})
	r.Route("/office", func(r chi.Router) {
		r.Use(g.RequireOffice)
		r.Get("/", page("office"))
		r.Get("/appeals", page("office-appeals"))
		r.Get("/registry", page("office-registry"))
	})
	r.Route("/admin", func(r chi.Router) {
		r.Use(g.RequireAdmin)
		r.Get("/", page("admin"))
		r.Get("/settings", page("admin-settings"))
	})
	r.Route("/api/auth", authHandler.MountRoutes)

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	return &testPortal{server: server, sessions: sessions, dir: dir, client: client}
}

func (p *testPortal) engine(passwords auth.StaffPasswords) *Engine {
	e := NewEngine(p.server.URL, p.sessions, p.dir, passwords, quietLogger())
	e.SetDelay(0)
	return e
}

func TestRunMatrixAllCellsMatch(t *testing.T) {
	portal := newTestPortal(t, false)
	engine := portal.engine(testPasswords)

	report, err := engine.RunMatrix(context.Background(), DefaultRoutes())
	require.NoError(t, err)

	assert.Len(t, report.Cells, len(rbac.AllRoles())*len(DefaultRoutes()))
	assert.Equal(t, 0, report.LoginFallbacks, "every role should log in through the real flow")
	for _, cell := range report.Cells {
		assert.True(t, cell.MatchesExpected,
			"%s %s: expected %s got %s (final %s)", cell.Role, cell.Route, cell.Expected, cell.Actual, cell.FinalURL)
	}
	assert.Equal(t, 0, report.Mismatches)
}

func TestMatrixGuestCabinetRequiresLogin(t *testing.T) {
	portal := newTestPortal(t, false)
	engine := portal.engine(testPasswords)

	res := engine.fetch(context.Background(), "/cabinet", nil)
	outcome, _ := Classify("/cabinet", res)

	assert.Equal(t, OutcomeLoginRequired, outcome)
	require.NotEmpty(t, res.RedirectChain)
	assert.Equal(t, "/login?next=%2Fcabinet", res.RedirectChain[0])
}

func TestMatrixResidentOfficeForbidden(t *testing.T) {
	portal := newTestPortal(t, false)
	engine := portal.engine(testPasswords)

	cookie, fallback, err := engine.sessionFor(context.Background(), rbac.RoleResident)
	require.NoError(t, err)
	assert.False(t, fallback)

	res := engine.fetch(context.Background(), "/office", cookie)
	outcome, reason := Classify("/office", res)

	assert.Equal(t, OutcomeForbidden, outcome)
	assert.Equal(t, string(rbac.ReasonOfficeOnly), reason)
}

func TestMatrixChairmanAdminForbidden(t *testing.T) {
	portal := newTestPortal(t, false)
	engine := portal.engine(testPasswords)

	cookie, _, err := engine.sessionFor(context.Background(), rbac.RoleChairman)
	require.NoError(t, err)

	res := engine.fetch(context.Background(), "/admin", cookie)
	outcome, reason := Classify("/admin", res)

	assert.Equal(t, OutcomeForbidden, outcome)
	assert.Equal(t, string(rbac.ReasonAdminOnly), reason)
}

func TestMatrixAdminEntersOfficeSubroutes(t *testing.T) {
	portal := newTestPortal(t, false)
	engine := portal.engine(testPasswords)

	cookie, _, err := engine.sessionFor(context.Background(), rbac.RoleAdmin)
	require.NoError(t, err)

	for _, route := range []string{"/office", "/office/appeals", "/office/registry"} {
		res := engine.fetch(context.Background(), route, cookie)
		outcome, _ := Classify(route, res)
		assert.Equal(t, OutcomeAllow, outcome, route)
		assert.Equal(t, route, res.FinalURL, route)
	}
}

func TestMatrixSyntheticSessionFallback(t *testing.T) {
	portal := newTestPortal(t, false)
	// Wrong passwords force every staff login through the session-store
	// fallback; the matrix must still come out clean.
	engine := portal.engine(auth.StaffPasswords{
		Admin: "wrong", Chairman: "wrong", Secretary: "wrong", Accountant: "wrong",
	})

	report, err := engine.RunMatrix(context.Background(), []string{"/cabinet", "/office", "/admin"})
	require.NoError(t, err)

	assert.Equal(t, 4, report.LoginFallbacks, "all four staff roles fall back")
	assert.Equal(t, 0, report.Mismatches)
}

func TestQAOverrideCookie(t *testing.T) {
	newRequest := func(t *testing.T, portal *testPortal) *http.Request {
		t.Helper()
		id, err := portal.sessions.Establish(context.Background(), shared.SessionPayload{
			UserID: "u-resident", Role: "resident",
		})
		require.NoError(t, err)
		req, err := http.NewRequest(http.MethodGet, portal.server.URL+"/admin", nil)
		require.NoError(t, err)
		req.AddCookie(&http.Cookie{Name: shared.SessionCookieName, Value: id})
		req.AddCookie(&http.Cookie{Name: auth.QACookieName, Value: "admin"})
		return req
	}
	noRedirect := &http.Client{CheckRedirect: func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}}

	t.Run("inert in production", func(t *testing.T) {
		portal := newTestPortal(t, false)
		resp, err := noRedirect.Do(newRequest(t, portal))
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
		loc, err := resp.Location()
		require.NoError(t, err)
		assert.Equal(t, "/forbidden", loc.Path)
		assert.Equal(t, string(rbac.ReasonAdminOnly), loc.Query().Get("reason"))
	})

	t.Run("grants access when enabled", func(t *testing.T) {
		portal := newTestPortal(t, true)
		resp, err := noRedirect.Do(newRequest(t, portal))
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestScanDeadEndsCleanPortal(t *testing.T) {
	portal := newTestPortal(t, false)
	engine := portal.engine(testPasswords)

	cookie, _, err := engine.sessionFor(context.Background(), rbac.RoleAdmin)
	require.NoError(t, err)

	issues, err := engine.ScanDeadEnds(context.Background(), CriticalRoutes(), cookie)
	require.NoError(t, err)
	assert.Empty(t, issues)
}

func TestScanDeadEndsFlagsMissingRoute(t *testing.T) {
	portal := newTestPortal(t, false)
	engine := portal.engine(testPasswords)

	issues, err := engine.ScanDeadEnds(context.Background(), []string{"/", "/no-such-page"}, nil)
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, "/no-such-page", issues[0].Route)
	assert.Equal(t, "not_found", issues[0].Kind)
}

func TestScanSmokeCleanPortal(t *testing.T) {
	portal := newTestPortal(t, false)
	engine := portal.engine(testPasswords)

	issues, err := engine.ScanSmoke(context.Background(), CriticalRoutes())
	require.NoError(t, err)
	assert.Empty(t, issues)
}

func TestBuilderRunPersistsPassingReport(t *testing.T) {
	portal := newTestPortal(t, false)
	engine := portal.engine(testPasswords)
	store := NewReportStore(portal.client)
	builder := NewBuilder(engine, store, quietLogger())

	report, err := builder.Run(context.Background(), "report-1")
	require.NoError(t, err)

	assert.True(t, report.Pass)
	assert.True(t, report.Health.OK)
	assert.Equal(t, 0, report.MatrixMismatch)
	assert.Equal(t, 0, report.DeadEndCount)
	assert.Equal(t, 0, report.SmokeCount)
	assert.False(t, report.FinishedAt.Before(report.StartedAt))

	stored, err := store.Get(context.Background(), "report-1")
	require.NoError(t, err)
	assert.Equal(t, report.ID, stored.ID)
	assert.True(t, stored.Pass)
	assert.Len(t, stored.Matrix.Cells, len(rbac.AllRoles())*len(DefaultRoutes()))
}

func TestBuilderRunSingleFlight(t *testing.T) {
	portal := newTestPortal(t, false)
	engine := portal.engine(testPasswords)
	store := NewReportStore(portal.client)
	builder := NewBuilder(engine, store, quietLogger())

	require.NoError(t, portal.client.SetNX(context.Background(), runLockKey, "other-run", time.Minute).Err())

	_, err := builder.Run(context.Background(), "report-2")
	assert.ErrorIs(t, err, ErrRunInProgress)
}

func TestReportStoreMissingReport(t *testing.T) {
	portal := newTestPortal(t, false)
	store := NewReportStore(portal.client)

	_, err := store.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrReportNotFound)
}
