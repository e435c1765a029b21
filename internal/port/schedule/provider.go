// Package schedule defines the port supplying override-window
// boundaries. The user's calendar/profile collaborator owns the actual
// schedule; the engine only asks which windows surround a given moment.
package schedule

import (
	"context"
	"time"

	"github.com/mirrorloop/aegis/internal/domain/decision"
)

// Provider resolves the override windows relevant to userID around the
// given moment. Implementations return every window whose interval
// could contain t; the evaluator decides which are enabled and binding.
type Provider interface {
	Windows(ctx context.Context, userID string, t time.Time) ([]decision.Window, error)
}
