package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mirrorloop/aegis/internal/domain/approval"
)

// CreateApproval inserts a new approval request. Persisted immediately
// at creation so concurrent expiration sweeps can observe it.
func (s *Store) CreateApproval(ctx context.Context, r *approval.Request) error {
	proposal, risk, dec, responses, err := encodeApproval(r)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO approval_requests
		 (id, user_id, proposal, risk, decision, responses, status, expires_at, created_at, resolved_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		r.ID, r.UserID, proposal, risk, dec, responses,
		string(r.Status), r.ExpiresAt, r.CreatedAt, nullTime(r.ResolvedAt))
	if err != nil {
		return fmt.Errorf("create approval %s: %w", r.ID, err)
	}
	return nil
}

// GetApproval retrieves an approval request by ID.
func (s *Store) GetApproval(ctx context.Context, id string) (*approval.Request, error) {
	row := s.pool.QueryRow(ctx, selectApproval+` WHERE id = $1`, id)
	r, err := scanApproval(row)
	if err != nil {
		return nil, notFoundWrap(err, "get approval %s", id)
	}
	return r, nil
}

// UpdateApproval persists the full mutable state of a request:
// responses, status, resolution timestamp.
func (s *Store) UpdateApproval(ctx context.Context, r *approval.Request) error {
	responses, err := json.Marshal(r.Responses)
	if err != nil {
		return fmt.Errorf("encode responses: %w", err)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE approval_requests
		 SET responses = $2, status = $3, resolved_at = $4
		 WHERE id = $1`,
		r.ID, responses, string(r.Status), nullTime(r.ResolvedAt))
	return execExpectOne(tag, err, "update approval %s", r.ID)
}

// ListApprovalsByUser returns requests a user owns or is asked to weigh
// in on, optionally filtered by status, newest first.
func (s *Store) ListApprovalsByUser(ctx context.Context, userID string, status approval.Status) ([]approval.Request, error) {
	q := selectApproval + `
		 WHERE (user_id = $1 OR proposal->'affectedUserIds' ? $1)`
	args := []any{userID}
	if status != "" {
		q += ` AND status = $2`
		args = append(args, string(status))
	}
	q += ` ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list approvals for %s: %w", userID, err)
	}
	defer rows.Close()
	return scanApprovals(rows)
}

// ListExpiredPending returns pending requests whose deadline has passed,
// for the expiration sweep.
func (s *Store) ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]approval.Request, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		selectApproval+`
		 WHERE status = $1 AND expires_at < $2
		 ORDER BY expires_at LIMIT $3`,
		string(approval.StatusPending), now, limit)
	if err != nil {
		return nil, fmt.Errorf("list expired pending: %w", err)
	}
	defer rows.Close()
	return scanApprovals(rows)
}

// ListSettledApprovals returns non-pending requests for a user created
// after since, for the recommendation analyzer.
func (s *Store) ListSettledApprovals(ctx context.Context, userID string, since time.Time) ([]approval.Request, error) {
	rows, err := s.pool.Query(ctx,
		selectApproval+`
		 WHERE user_id = $1 AND status <> $2 AND created_at >= $3
		 ORDER BY created_at DESC`,
		userID, string(approval.StatusPending), since)
	if err != nil {
		return nil, fmt.Errorf("list settled approvals for %s: %w", userID, err)
	}
	defer rows.Close()
	return scanApprovals(rows)
}

// DeleteTerminalBefore removes terminal requests resolved before the
// retention cutoff. The only deletion path for approval requests.
func (s *Store) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM approval_requests
		 WHERE status IN ($1, $2, $3) AND resolved_at < $4`,
		string(approval.StatusRejected), string(approval.StatusExpired),
		string(approval.StatusExecuted), cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete terminal approvals: %w", err)
	}
	return tag.RowsAffected(), nil
}

const selectApproval = `SELECT id, user_id, proposal, risk, decision, responses,
	 status, expires_at, created_at, resolved_at FROM approval_requests`

func encodeApproval(r *approval.Request) (proposal, risk, dec, responses []byte, err error) {
	if proposal, err = json.Marshal(r.Proposal); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("encode proposal: %w", err)
	}
	if risk, err = json.Marshal(r.Risk); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("encode risk: %w", err)
	}
	if dec, err = json.Marshal(r.Decision); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("encode decision: %w", err)
	}
	if responses, err = json.Marshal(r.Responses); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("encode responses: %w", err)
	}
	return proposal, risk, dec, responses, nil
}

func scanApproval(row pgx.Row) (*approval.Request, error) {
	var (
		r          approval.Request
		proposal   []byte
		risk       []byte
		dec        []byte
		responses  []byte
		status     string
		resolvedAt *time.Time
	)
	if err := row.Scan(&r.ID, &r.UserID, &proposal, &risk, &dec, &responses,
		&status, &r.ExpiresAt, &r.CreatedAt, &resolvedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(proposal, &r.Proposal); err != nil {
		return nil, fmt.Errorf("decode proposal: %w", err)
	}
	if err := json.Unmarshal(risk, &r.Risk); err != nil {
		return nil, fmt.Errorf("decode risk: %w", err)
	}
	if err := json.Unmarshal(dec, &r.Decision); err != nil {
		return nil, fmt.Errorf("decode decision: %w", err)
	}
	if err := json.Unmarshal(responses, &r.Responses); err != nil {
		return nil, fmt.Errorf("decode responses: %w", err)
	}
	r.Status = approval.Status(status)
	r.ResolvedAt = scanTime(resolvedAt)
	return &r, nil
}

func scanApprovals(rows pgx.Rows) ([]approval.Request, error) {
	var result []approval.Request
	for rows.Next() {
		r, err := scanApproval(rows)
		if err != nil {
			return nil, fmt.Errorf("scan approval: %w", err)
		}
		result = append(result, *r)
	}
	return result, rows.Err()
}
