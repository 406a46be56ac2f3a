package notify

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snt-portal/snt-portal/internal/auth"
)

func newService(t *testing.T) (*Service, *Store) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	store := NewStore(client)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(store, auth.NewDirectory(), logger), store
}

func TestNotifyOverdueSendsOncePerPeriod(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	sent, err := svc.NotifyOverdue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	sent, err = svc.NotifyOverdue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, sent, "same period must not re-send")
}

func TestNotifyOverdueNewPeriodSendsAgain(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	svc.now = func() time.Time { return time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC) }
	sent, err := svc.NotifyOverdue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	svc.now = func() time.Time { return time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC) }
	sent, err = svc.NotifyOverdue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
}

func TestNotifyOverdueHonorsPreference(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	require.NoError(t, store.SetEnabled(ctx, "u-debtor", false))
	sent, err := svc.NotifyOverdue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, sent)

	enabled, err := store.Enabled(ctx, "u-resident")
	require.NoError(t, err)
	assert.True(t, enabled, "unset preference defaults to enabled")
}
