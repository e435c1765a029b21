// Package database defines the database store port (interface).
package database

import (
	"context"
	"time"

	"github.com/mirrorloop/aegis/internal/domain/approval"
	"github.com/mirrorloop/aegis/internal/domain/autonomy"
	"github.com/mirrorloop/aegis/internal/domain/decision"
)

// Store is the port interface for database operations.
type Store interface {
	// Autonomy settings. GetSettings returns domain.ErrNotFound for a
	// user without a row; callers fall back to system defaults.
	GetSettings(ctx context.Context, userID string) (*autonomy.Settings, error)
	PutSettings(ctx context.Context, s *autonomy.Settings) error
	AppendSettingsHistory(ctx context.Context, rec *autonomy.ChangeRecord) error
	ListSettingsHistory(ctx context.Context, userID string, limit int) ([]autonomy.ChangeRecord, error)

	// Approval requests.
	CreateApproval(ctx context.Context, r *approval.Request) error
	GetApproval(ctx context.Context, id string) (*approval.Request, error)
	UpdateApproval(ctx context.Context, r *approval.Request) error
	ListApprovalsByUser(ctx context.Context, userID string, status approval.Status) ([]approval.Request, error)
	ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]approval.Request, error)
	ListSettledApprovals(ctx context.Context, userID string, since time.Time) ([]approval.Request, error)
	DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Decision audit log.
	InsertDecision(ctx context.Context, rec *decision.Record) error
	ListDecisions(ctx context.Context, userID string, limit int) ([]decision.Record, error)
}
