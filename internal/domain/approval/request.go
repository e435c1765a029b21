// Package approval defines the approval request state machine. A
// request is created when the policy evaluator defers an action to
// human judgment, collects responses from the owner and every affected
// user, and ends in exactly one terminal state. Requests are audit
// records: they are never deleted by user action, only by retention.
package approval

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mirrorloop/aegis/internal/domain"
	"github.com/mirrorloop/aegis/internal/domain/action"
	"github.com/mirrorloop/aegis/internal/domain/decision"
)

// Status is the state of an approval request. Transitions are
// monotonic: a request never revisits pending after leaving it.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusExpired  Status = "expired"
	StatusExecuted Status = "executed"
)

// Terminal reports whether no further transition is possible.
// Approved is not terminal: it still awaits execution.
func (s Status) Terminal() bool {
	switch s {
	case StatusRejected, StatusExpired, StatusExecuted:
		return true
	}
	return false
}

// RiskAssessment explains why the action was considered risky, for
// display to approvers.
type RiskAssessment struct {
	Level   action.RiskLevel `json:"level"`
	Factors []string         `json:"factors,omitempty"`
	Impact  string           `json:"impact,omitempty"`
}

// Request tracks a deferred decision pending human input.
type Request struct {
	ID         string            `json:"id"`
	UserID     string            `json:"userId"`
	Proposal   action.Proposal   `json:"proposal"`
	Risk       RiskAssessment    `json:"risk"`
	Decision   decision.Decision `json:"decision"`
	Responses  []Response        `json:"responses"`
	Status     Status            `json:"status"`
	ExpiresAt  time.Time         `json:"expiresAt"`
	CreatedAt  time.Time         `json:"createdAt"`
	ResolvedAt time.Time         `json:"resolvedAt,omitzero"`
}

// NewRequest builds a pending request for a proposal the evaluator
// deferred. ttl bounds how long responders have before the request
// expires on its own.
func NewRequest(p *action.Proposal, d decision.Decision, risk RiskAssessment, ttl time.Duration, now time.Time) (*Request, error) {
	if !d.RequiresApproval {
		return nil, fmt.Errorf("decision for action %s does not require approval: %w", d.ActionID, domain.ErrValidation)
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("approval ttl must be positive: %w", domain.ErrValidation)
	}
	now = now.UTC()
	return &Request{
		ID:        uuid.NewString(),
		UserID:    p.UserID,
		Proposal:  *p,
		Risk:      risk,
		Decision:  d,
		Responses: []Response{},
		Status:    StatusPending,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}, nil
}

// RequiredResponders returns the owner plus every affected user,
// deduplicated, preserving order. Approval needs all of them; any one
// can veto.
func (r *Request) RequiredResponders() []string {
	seen := map[string]bool{r.UserID: true}
	out := []string{r.UserID}
	for _, id := range r.Proposal.AffectedUserIDs {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// CanRespond reports whether userID is a required responder.
func (r *Request) CanRespond(userID string) bool {
	for _, id := range r.RequiredResponders() {
		if id == userID {
			return true
		}
	}
	return false
}

// transition enforces the monotonic state machine. It is the only
// place Status is written after creation.
func (r *Request) transition(to Status, now time.Time) error {
	allowed := false
	switch r.Status {
	case StatusPending:
		allowed = to == StatusApproved || to == StatusRejected || to == StatusExpired
	case StatusApproved:
		allowed = to == StatusExecuted
	}
	if !allowed {
		return fmt.Errorf("cannot move request %s from %s to %s: %w", r.ID, r.Status, to, domain.ErrInvalidTransition)
	}
	r.Status = to
	if to.Terminal() || to == StatusApproved {
		r.ResolvedAt = now.UTC()
	}
	return nil
}
