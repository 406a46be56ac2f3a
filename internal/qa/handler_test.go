package qa

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snt-portal/snt-portal/internal/auth"
	"github.com/snt-portal/snt-portal/internal/guard"
	"github.com/snt-portal/snt-portal/internal/shared"
)

type handlerEnv struct {
	portal  *testPortal
	handler *Handler
	router  *chi.Mux
	store   *ReportStore
	queued  []string
}

func newHandlerEnv(t *testing.T, qaEnabled bool, qaSecret string) *handlerEnv {
	t.Helper()
	portal := newTestPortal(t, qaEnabled)
	logger := quietLogger()

	engine := portal.engine(testPasswords)
	store := NewReportStore(portal.client)
	builder := NewBuilder(engine, store, logger)
	resolver := auth.NewResolver(portal.dir, func() bool { return qaEnabled })
	g := guard.New(resolver, logger)

	env := &handlerEnv{portal: portal, store: store}
	enqueue := func(reportID string) error {
		env.queued = append(env.queued, reportID)
		return nil
	}
	env.handler = NewHandler(logger, g, engine, builder, store, enqueue, func() bool { return qaEnabled }, qaSecret)

	r := chi.NewRouter()
	r.Use(shared.SessionMiddleware(portal.sessions, logger))
	r.Route("/api/admin/qa", env.handler.MountRoutes)
	env.router = r
	return env
}

func (env *handlerEnv) do(t *testing.T, method, target string, role string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	if role != "" {
		userID := "u-" + role
		id, err := env.portal.sessions.Establish(context.Background(), shared.SessionPayload{UserID: userID, Role: role})
		require.NoError(t, err)
		req.AddCookie(&http.Cookie{Name: shared.SessionCookieName, Value: id})
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res := httptest.NewRecorder()
	env.router.ServeHTTP(res, req)
	return res
}

func TestQAEndpointsHiddenWhenDisabled(t *testing.T) {
	env := newHandlerEnv(t, false, "")

	// 404, never 403: a disabled endpoint must not confirm it exists, even
	// to an authenticated admin.
	res := env.do(t, http.MethodPost, "/api/admin/qa/run", "admin", nil)
	assert.Equal(t, http.StatusNotFound, res.Code)

	res = env.do(t, http.MethodGet, "/api/admin/qa/report/some-id", "admin", nil)
	assert.Equal(t, http.StatusNotFound, res.Code)
}

func TestQAEndpointsRejectCrossOrigin(t *testing.T) {
	env := newHandlerEnv(t, true, "")

	res := env.do(t, http.MethodPost, "/api/admin/qa/run", "admin", map[string]string{
		"Origin": "https://evil.example",
	})
	assert.Equal(t, http.StatusForbidden, res.Code)
	assert.Contains(t, res.Body.String(), "origin_mismatch")
}

func TestQAEndpointsRequireAdmin(t *testing.T) {
	env := newHandlerEnv(t, true, "")

	res := env.do(t, http.MethodPost, "/api/admin/qa/run", "", nil)
	assert.Equal(t, http.StatusUnauthorized, res.Code)

	res = env.do(t, http.MethodPost, "/api/admin/qa/run", "resident", nil)
	assert.Equal(t, http.StatusForbidden, res.Code)
}

func TestQASecretHeaderBypassesSession(t *testing.T) {
	env := newHandlerEnv(t, true, "hunter2")

	res := env.do(t, http.MethodPost, "/api/admin/qa/run", "", map[string]string{
		"X-QA-Secret": "hunter2",
	})
	assert.Equal(t, http.StatusOK, res.Code)
	require.Len(t, env.queued, 1)

	// A wrong secret falls through to the session checks, which fail.
	res = env.do(t, http.MethodPost, "/api/admin/qa/run", "", map[string]string{
		"X-QA-Secret": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestQARunEnqueuesAndReturnsReportID(t *testing.T) {
	env := newHandlerEnv(t, true, "")

	res := env.do(t, http.MethodPost, "/api/admin/qa/run", "admin", nil)
	require.Equal(t, http.StatusOK, res.Code)

	var envelope struct {
		OK   bool `json:"ok"`
		Data struct {
			ReportID string `json:"reportId"`
			Queued   bool   `json:"queued"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &envelope))
	assert.True(t, envelope.OK)
	assert.True(t, envelope.Data.Queued)
	require.Len(t, env.queued, 1)
	assert.Equal(t, env.queued[0], envelope.Data.ReportID)
}

func TestQARunAccessMatrixSynchronous(t *testing.T) {
	env := newHandlerEnv(t, true, "")

	res := env.do(t, http.MethodPost, "/api/admin/qa/run-access-matrix", "admin", nil)
	require.Equal(t, http.StatusOK, res.Code)

	var envelope struct {
		Data MatrixReport `json:"data"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &envelope))
	assert.Equal(t, 0, envelope.Data.Mismatches)
	assert.NotEmpty(t, envelope.Data.Cells)
}

func TestQAReportLookup(t *testing.T) {
	env := newHandlerEnv(t, true, "")
	saved := &Report{ID: "r-42", Pass: true}
	require.NoError(t, env.store.Save(context.Background(), saved))

	res := env.do(t, http.MethodGet, "/api/admin/qa/report/r-42", "admin", nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), `"r-42"`)

	res = env.do(t, http.MethodGet, "/api/admin/qa/report/missing", "admin", nil)
	assert.Equal(t, http.StatusNotFound, res.Code)
}
