package decision

import (
	"time"

	"github.com/google/uuid"

	"github.com/mirrorloop/aegis/internal/domain/action"
	"github.com/mirrorloop/aegis/internal/domain/autonomy"
)

// Record is the persisted audit entry for one decision, including hard
// blocks and auto-executions that never produce an approval request.
// Records feed the recommendation analyzer and the decision event feed.
type Record struct {
	ID               string              `json:"id"`
	ActionID         string              `json:"actionId"`
	UserID           string              `json:"userId"`
	Capability       autonomy.Capability `json:"capability"`
	ActionType       string              `json:"actionType"`
	CanExecute       bool                `json:"canExecute"`
	RequiresApproval bool                `json:"requiresApproval"`
	Blocked          bool                `json:"blocked"`
	Reason           string              `json:"reason,omitempty"`
	AutonomyLevel    int                 `json:"autonomyLevel"`
	Confidence       float64             `json:"confidence"`
	CreatedAt        time.Time           `json:"createdAt"`
}

// NewRecord snapshots a decision for the audit log.
func NewRecord(p *action.Proposal, d Decision, now time.Time) Record {
	reason := d.ApprovalReason
	if d.Blocked() {
		reason = "blocked by override window"
	}
	return Record{
		ID:               uuid.NewString(),
		ActionID:         p.ID,
		UserID:           p.UserID,
		Capability:       p.Capability,
		ActionType:       p.ActionType,
		CanExecute:       d.CanExecute,
		RequiresApproval: d.RequiresApproval,
		Blocked:          d.Blocked(),
		Reason:           reason,
		AutonomyLevel:    d.AutonomyLevel,
		Confidence:       d.Confidence,
		CreatedAt:        now.UTC(),
	}
}
