// Package notify delivers resident reminders. Delivery is a log line in the
// demo deployment; preferences and dedupe state are real and live in Redis so
// reminders survive restarts without double-sending.
package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/snt-portal/snt-portal/internal/auth"
)

// dedupeTTL keeps a sent marker slightly longer than the monthly reminder
// cycle so clock drift cannot cause a duplicate.
const dedupeTTL = 35 * 24 * time.Hour

// Store keeps notification preferences and sent-markers in Redis.
type Store struct {
	client *redis.Client
}

// NewStore constructs a Store.
func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

// SetEnabled records whether the user wants reminders.
func (s *Store) SetEnabled(ctx context.Context, userID string, enabled bool) error {
	value := "0"
	if enabled {
		value = "1"
	}
	return s.client.Set(ctx, s.prefKey(userID), value, 0).Err()
}

// Enabled reports the user's reminder preference; unset means enabled.
func (s *Store) Enabled(ctx context.Context, userID string) (bool, error) {
	value, err := s.client.Get(ctx, s.prefKey(userID)).Result()
	if err != nil {
		if err == redis.Nil {
			return true, nil
		}
		return false, err
	}
	return value == "1", nil
}

// MarkNotified claims the dedupe slot for (userID, period). It returns true
// exactly once per period regardless of how many workers race on it.
func (s *Store) MarkNotified(ctx context.Context, userID, period string) (bool, error) {
	return s.client.SetNX(ctx, "notify:sent:"+userID+":"+period, "1", dedupeTTL).Result()
}

func (s *Store) prefKey(userID string) string {
	return "notify:pref:" + userID
}

// Service sends the overdue-dues reminder run.
type Service struct {
	store  *Store
	dir    *auth.Directory
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs a Service.
func NewService(store *Store, dir *auth.Directory, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, dir: dir, logger: logger, now: time.Now}
}

// NotifyOverdue reminds residents with outstanding dues, at most once per
// calendar month each. Returns the number of reminders sent.
func (s *Service) NotifyOverdue(ctx context.Context) (int, error) {
	period := s.now().Format("2006-01")
	sent := 0
	for _, user := range s.dir.OverdueResidents() {
		enabled, err := s.store.Enabled(ctx, user.ID)
		if err != nil {
			return sent, err
		}
		if !enabled {
			continue
		}
		claimed, err := s.store.MarkNotified(ctx, user.ID, period)
		if err != nil {
			return sent, err
		}
		if !claimed {
			continue
		}
		s.logger.Info("overdue reminder",
			slog.String("user_id", user.ID),
			slog.String("plot", user.ResidentProfileID),
			slog.String("period", period))
		sent++
	}
	return sent, nil
}
