package shared_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snt-portal/snt-portal/internal/shared"
)

func newManager(t *testing.T) *shared.SessionManager {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return shared.NewSessionManager(client, shared.SessionCookieName, "secret", time.Hour, false)
}

func TestSessionRoundTrip(t *testing.T) {
	sm := newManager(t)
	ctx := context.Background()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := sm.Load(ctx, req)
	require.NoError(t, err)
	sess.UpdatePayload(func(p *shared.SessionPayload) {
		p.UserID = "u-1"
		p.Role = "resident"
	})

	res := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, res, req, sess))

	cookies := res.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, shared.SessionCookieName, cookies[0].Name)

	req2 := httptest.NewRequest(http.MethodGet, "/", nil)
	req2.AddCookie(cookies[0])
	loaded, err := sm.Load(ctx, req2)
	require.NoError(t, err)
	assert.True(t, loaded.Authenticated())
	assert.Equal(t, "u-1", loaded.Payload().UserID)
	assert.Equal(t, "resident", loaded.Payload().Role)
}

func TestUpdatePayloadImpersonation(t *testing.T) {
	sm := newManager(t)
	ctx := context.Background()

	id, err := sm.Establish(ctx, shared.SessionPayload{UserID: "u-admin", Role: "admin"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: shared.SessionCookieName, Value: id})
	sess, err := sm.Load(ctx, req)
	require.NoError(t, err)

	sess.UpdatePayload(func(p *shared.SessionPayload) {
		p.ImpersonateUserID = "u-resident"
		p.ImpersonatorAdminID = p.UserID
	})
	res := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, res, req, sess))

	reloaded, err := sm.Load(ctx, req)
	require.NoError(t, err)
	payload := reloaded.Payload()
	assert.Equal(t, "u-admin", payload.UserID)
	assert.Equal(t, "u-resident", payload.ImpersonateUserID)
	assert.Equal(t, "u-admin", payload.ImpersonatorAdminID)
}

func TestDestroyClearsSession(t *testing.T) {
	sm := newManager(t)
	ctx := context.Background()

	id, err := sm.Establish(ctx, shared.SessionPayload{UserID: "u-1", Role: "resident"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: shared.SessionCookieName, Value: id})
	sess, err := sm.Load(ctx, req)
	require.NoError(t, err)

	sm.Destroy(sess)
	res := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, res, req, sess))

	cookies := res.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, -1, cookies[0].MaxAge)

	reloaded, err := sm.Load(ctx, req)
	require.NoError(t, err)
	assert.False(t, reloaded.Authenticated())
}

func TestCorruptSessionRecordFailsOpenToAnonymous(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sm := shared.NewSessionManager(client, shared.SessionCookieName, "secret", time.Hour, false)
	require.NoError(t, client.Set(context.Background(), "session:broken", "{not json", time.Hour).Err())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: shared.SessionCookieName, Value: "broken"})
	sess, err := sm.Load(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, sess.Authenticated())
}

func TestCSRFTokenBoundToSession(t *testing.T) {
	csrf := shared.NewCSRFManager("csrfsecret")
	a := &shared.Session{ID: "sess-a"}
	b := &shared.Session{ID: "sess-b"}

	tokenA := csrf.Token(a)
	assert.NotEmpty(t, tokenA)
	assert.NoError(t, csrf.VerifyToken(a, tokenA))
	assert.ErrorIs(t, csrf.VerifyToken(b, tokenA), shared.ErrCSRFTokenMismatch)
	assert.ErrorIs(t, csrf.VerifyToken(a, ""), shared.ErrCSRFTokenMissing)
}
