package auth

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SessionRegistry records issued sessions for ops visibility. It is advisory:
// authorization never reads it, so registry failures must not block login.
type SessionRegistry interface {
	RegisterSession(ctx context.Context, id, userID string, expiresAt time.Time, ip, ua string) error
	DeleteSession(ctx context.Context, id string) error
}

// PGSessionRegistry persists session metadata in Postgres.
type PGSessionRegistry struct {
	pool *pgxpool.Pool
}

// NewPGSessionRegistry constructs a registry over the given pool.
func NewPGSessionRegistry(pool *pgxpool.Pool) *PGSessionRegistry {
	return &PGSessionRegistry{pool: pool}
}

// RegisterSession inserts a session row. Re-registering the same session id
// (login retried after a slow response) is not an error.
func (r *PGSessionRegistry) RegisterSession(ctx context.Context, id, userID string, expiresAt time.Time, ip, ua string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO sessions (id, user_id, expires_at, ip, user_agent) VALUES ($1, $2, $3, $4, $5)`,
		id, userID, expiresAt, ip, ua)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.ConstraintName == "sessions_pkey" {
		return nil
	}
	return err
}

// DeleteSession removes the session row on logout.
func (r *PGSessionRegistry) DeleteSession(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	return err
}

// NopSessionRegistry discards registrations; used when Postgres is absent
// (tests, QA harness runs).
type NopSessionRegistry struct{}

func (NopSessionRegistry) RegisterSession(context.Context, string, string, time.Time, string, string) error {
	return nil
}

func (NopSessionRegistry) DeleteSession(context.Context, string) error { return nil }
