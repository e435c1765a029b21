package postgres

import (
	"context"
	"fmt"

	"github.com/mirrorloop/aegis/internal/domain/autonomy"
	"github.com/mirrorloop/aegis/internal/domain/decision"
)

// InsertDecision appends one decision to the audit log.
func (s *Store) InsertDecision(ctx context.Context, rec *decision.Record) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO decision_log
		 (id, action_id, user_id, capability, action_type, can_execute, requires_approval,
		  blocked, reason, autonomy_level, confidence, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		rec.ID, rec.ActionID, rec.UserID, string(rec.Capability), rec.ActionType,
		rec.CanExecute, rec.RequiresApproval, rec.Blocked, rec.Reason,
		rec.AutonomyLevel, rec.Confidence, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert decision %s: %w", rec.ID, err)
	}
	return nil
}

// ListDecisions returns a user's decision history, newest first.
func (s *Store) ListDecisions(ctx context.Context, userID string, limit int) ([]decision.Record, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, action_id, user_id, capability, action_type, can_execute, requires_approval,
		        blocked, reason, autonomy_level, confidence, created_at
		 FROM decision_log WHERE user_id = $1
		 ORDER BY created_at DESC LIMIT $2`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list decisions for %s: %w", userID, err)
	}
	defer rows.Close()

	var result []decision.Record
	for rows.Next() {
		var rec decision.Record
		var capability string
		if err := rows.Scan(&rec.ID, &rec.ActionID, &rec.UserID, &capability, &rec.ActionType,
			&rec.CanExecute, &rec.RequiresApproval, &rec.Blocked, &rec.Reason,
			&rec.AutonomyLevel, &rec.Confidence, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		rec.Capability = autonomy.Capability(capability)
		result = append(result, rec)
	}
	return result, rows.Err()
}
