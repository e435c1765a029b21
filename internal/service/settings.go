// Package service implements the engine's use cases over the domain
// model and the ports.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/mirrorloop/aegis/internal/domain"
	"github.com/mirrorloop/aegis/internal/domain/autonomy"
	"github.com/mirrorloop/aegis/internal/port/cache"
	"github.com/mirrorloop/aegis/internal/port/database"
)

// SettingsService owns autonomy settings access. Reads go through a
// cache; updates are atomic whole-value replacements that invalidate it.
type SettingsService struct {
	store        database.Store
	cache        cache.Cache
	cacheTTL     time.Duration
	allowNewCaps bool
	fill         singleflight.Group
}

// NewSettingsService creates a SettingsService. cache may be nil to
// disable caching.
func NewSettingsService(store database.Store, c cache.Cache, cacheTTL time.Duration, allowNewCaps bool) *SettingsService {
	return &SettingsService{
		store:        store,
		cache:        c,
		cacheTTL:     cacheTTL,
		allowNewCaps: allowNewCaps,
	}
}

// Get returns a user's settings, falling back to system defaults for
// users who never saved any. Concurrent cache fills for the same user
// are collapsed into one store read.
func (s *SettingsService) Get(ctx context.Context, userID string) (*autonomy.Settings, error) {
	if userID == "" {
		return nil, fmt.Errorf("userId is required: %w", domain.ErrValidation)
	}

	if s.cache != nil {
		if data, ok, err := s.cache.Get(ctx, settingsKey(userID)); err == nil && ok {
			var st autonomy.Settings
			if err := json.Unmarshal(data, &st); err == nil {
				return &st, nil
			}
			// Corrupt entry: drop it and fall through to the store.
			_ = s.cache.Delete(ctx, settingsKey(userID))
		}
	}

	v, err, _ := s.fill.Do(userID, func() (any, error) {
		st, err := s.store.GetSettings(ctx, userID)
		if errors.Is(err, domain.ErrNotFound) {
			st = autonomy.Defaults(userID)
		} else if err != nil {
			return nil, err
		}
		s.cachePut(ctx, st)
		return st, nil
	})
	if err != nil {
		return nil, fmt.Errorf("get settings %s: %w", userID, err)
	}
	return v.(*autonomy.Settings), nil
}

// Update validates and applies a partial update, persists the merged
// value atomically, appends the change history, and invalidates the
// cache. Returns the new settings as read-back would see them.
func (s *SettingsService) Update(ctx context.Context, userID, actorID string, req autonomy.UpdateRequest) (*autonomy.Settings, error) {
	current, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	next, err := req.Apply(current, now, s.allowNewCaps)
	if err != nil {
		return nil, err
	}

	if err := s.store.PutSettings(ctx, next); err != nil {
		return nil, fmt.Errorf("put settings %s: %w", userID, err)
	}

	rec := &autonomy.ChangeRecord{
		ID:        uuid.NewString(),
		UserID:    userID,
		Previous:  *current,
		Updated:   *next,
		ActorID:   actorID,
		ChangedAt: now,
	}
	if err := s.store.AppendSettingsHistory(ctx, rec); err != nil {
		// The write itself succeeded; a missing history row is logged,
		// not surfaced as a failed update.
		slog.Error("append settings history", "user_id", userID, "error", err)
	}

	if s.cache != nil {
		if err := s.cache.Delete(ctx, settingsKey(userID)); err != nil {
			slog.Warn("settings cache invalidate", "user_id", userID, "error", err)
		}
	}
	return next, nil
}

// History returns a user's settings change history, newest first.
func (s *SettingsService) History(ctx context.Context, userID string, limit int) ([]autonomy.ChangeRecord, error) {
	return s.store.ListSettingsHistory(ctx, userID, limit)
}

func (s *SettingsService) cachePut(ctx context.Context, st *autonomy.Settings) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(st)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, settingsKey(st.UserID), data, s.cacheTTL); err != nil {
		slog.Warn("settings cache set", "user_id", st.UserID, "error", err)
	}
}

func settingsKey(userID string) string {
	return "settings:" + userID
}
