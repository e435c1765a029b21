package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mirrorloop/aegis/internal/domain/autonomy"
)

// GetSettings returns the autonomy settings row for a user.
// Users without a row get domain.ErrNotFound; the service layer falls
// back to system defaults without creating anything.
func (s *Store) GetSettings(ctx context.Context, userID string) (*autonomy.Settings, error) {
	var (
		out        autonomy.Settings
		levels     []byte
		overrides  []byte
		thresholds []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT user_id, levels, overrides, thresholds, updated_at
		 FROM autonomy_settings WHERE user_id = $1`,
		userID).Scan(&out.UserID, &levels, &overrides, &thresholds, &out.UpdatedAt)
	if err != nil {
		return nil, notFoundWrap(err, "get settings %s", userID)
	}
	if err := json.Unmarshal(levels, &out.Levels); err != nil {
		return nil, fmt.Errorf("decode levels for %s: %w", userID, err)
	}
	if err := json.Unmarshal(overrides, &out.Overrides); err != nil {
		return nil, fmt.Errorf("decode overrides for %s: %w", userID, err)
	}
	if err := json.Unmarshal(thresholds, &out.Thresholds); err != nil {
		return nil, fmt.Errorf("decode thresholds for %s: %w", userID, err)
	}
	return &out, nil
}

// PutSettings upserts a user's settings as one atomic row write, so
// concurrent readers never observe a partial capability map.
func (s *Store) PutSettings(ctx context.Context, st *autonomy.Settings) error {
	levels, err := json.Marshal(st.Levels)
	if err != nil {
		return fmt.Errorf("encode levels: %w", err)
	}
	overrides, err := json.Marshal(st.Overrides)
	if err != nil {
		return fmt.Errorf("encode overrides: %w", err)
	}
	thresholds, err := json.Marshal(st.Thresholds)
	if err != nil {
		return fmt.Errorf("encode thresholds: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO autonomy_settings (user_id, levels, overrides, thresholds, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (user_id) DO UPDATE
		 SET levels = EXCLUDED.levels, overrides = EXCLUDED.overrides,
		     thresholds = EXCLUDED.thresholds, updated_at = EXCLUDED.updated_at`,
		st.UserID, levels, overrides, thresholds, st.UpdatedAt)
	if err != nil {
		return fmt.Errorf("put settings %s: %w", st.UserID, err)
	}
	return nil
}

// AppendSettingsHistory records one settings change in the audit trail.
func (s *Store) AppendSettingsHistory(ctx context.Context, rec *autonomy.ChangeRecord) error {
	previous, err := json.Marshal(rec.Previous)
	if err != nil {
		return fmt.Errorf("encode previous settings: %w", err)
	}
	updated, err := json.Marshal(rec.Updated)
	if err != nil {
		return fmt.Errorf("encode updated settings: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO settings_history (id, user_id, previous, updated, actor_id, changed_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.ID, rec.UserID, previous, updated, rec.ActorID, rec.ChangedAt)
	if err != nil {
		return fmt.Errorf("append settings history %s: %w", rec.UserID, err)
	}
	return nil
}

// ListSettingsHistory returns a user's settings changes, newest first.
func (s *Store) ListSettingsHistory(ctx context.Context, userID string, limit int) ([]autonomy.ChangeRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, previous, updated, actor_id, changed_at
		 FROM settings_history WHERE user_id = $1
		 ORDER BY changed_at DESC LIMIT $2`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list settings history %s: %w", userID, err)
	}
	defer rows.Close()

	var result []autonomy.ChangeRecord
	for rows.Next() {
		var (
			rec      autonomy.ChangeRecord
			previous []byte
			updated  []byte
		)
		if err := rows.Scan(&rec.ID, &rec.UserID, &previous, &updated, &rec.ActorID, &rec.ChangedAt); err != nil {
			return nil, fmt.Errorf("scan settings history: %w", err)
		}
		if err := json.Unmarshal(previous, &rec.Previous); err != nil {
			return nil, fmt.Errorf("decode previous settings: %w", err)
		}
		if err := json.Unmarshal(updated, &rec.Updated); err != nil {
			return nil, fmt.Errorf("decode updated settings: %w", err)
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}
