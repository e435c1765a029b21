// Package action defines the action proposal model submitted by the
// reasoning layer. Proposals arrive already scored for risk and
// confidence and are immutable once accepted.
package action

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mirrorloop/aegis/internal/domain"
	"github.com/mirrorloop/aegis/internal/domain/autonomy"
)

// RiskLevel is the declared risk of a proposed action.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Proposal is an action the agent wants to take on the user's behalf.
type Proposal struct {
	ID              string              `json:"id"`
	UserID          string              `json:"userId"`
	Capability      autonomy.Capability `json:"capability"`
	ActionType      string              `json:"actionType"`
	Parameters      json.RawMessage     `json:"parameters,omitempty"`
	RiskLevel       RiskLevel           `json:"riskLevel"`
	Confidence      float64             `json:"confidence"`
	AffectedUserIDs []string            `json:"affectedUserIds,omitempty"`
	Reasoning       string              `json:"reasoning,omitempty"`

	// Optional magnitude fields consumed by the threshold evaluator.
	FinancialAmount  float64 `json:"financialAmount,omitempty"`
	EstimatedMinutes int     `json:"estimatedMinutes,omitempty"`
	PeopleAffected   int     `json:"peopleAffected,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

// SubmitRequest is the inbound payload for a new proposal.
type SubmitRequest struct {
	Capability       autonomy.Capability `json:"capability"`
	ActionType       string              `json:"actionType"`
	Parameters       json.RawMessage     `json:"parameters,omitempty"`
	RiskLevel        RiskLevel           `json:"riskLevel"`
	Confidence       float64             `json:"confidence"`
	AffectedUserIDs  []string            `json:"affectedUserIds,omitempty"`
	Reasoning        string              `json:"reasoning,omitempty"`
	FinancialAmount  float64             `json:"financialAmount,omitempty"`
	EstimatedMinutes int                 `json:"estimatedMinutes,omitempty"`
	PeopleAffected   int                 `json:"peopleAffected,omitempty"`

	// ApprovalTTLSeconds optionally shortens the approval deadline for
	// low-stakes actions. Zero means the configured default.
	ApprovalTTLSeconds int `json:"approvalTtlSeconds,omitempty"`
}

// NewProposal validates a submit request and mints an immutable
// Proposal owned by userID.
func NewProposal(userID string, req SubmitRequest, now time.Time) (*Proposal, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return &Proposal{
		ID:               uuid.NewString(),
		UserID:           userID,
		Capability:       req.Capability,
		ActionType:       req.ActionType,
		Parameters:       req.Parameters,
		RiskLevel:        req.RiskLevel,
		Confidence:       req.Confidence,
		AffectedUserIDs:  req.AffectedUserIDs,
		Reasoning:        req.Reasoning,
		FinancialAmount:  req.FinancialAmount,
		EstimatedMinutes: req.EstimatedMinutes,
		PeopleAffected:   req.PeopleAffected,
		CreatedAt:        now.UTC(),
	}, nil
}

// Validate rejects malformed proposals at ingestion. An out-of-range
// confidence is a producer bug and must surface loudly rather than be
// clamped.
func (r *SubmitRequest) Validate() error {
	if r.Capability == "" {
		return fmt.Errorf("capability is required: %w", domain.ErrValidation)
	}
	if r.ActionType == "" {
		return fmt.Errorf("actionType is required: %w", domain.ErrValidation)
	}
	if !isValidRisk(r.RiskLevel) {
		return fmt.Errorf("invalid riskLevel %q: %w", r.RiskLevel, domain.ErrValidation)
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return fmt.Errorf("confidence %v outside [0,1]: %w", r.Confidence, domain.ErrValidation)
	}
	if r.FinancialAmount < 0 {
		return fmt.Errorf("financialAmount must be >= 0: %w", domain.ErrValidation)
	}
	if r.EstimatedMinutes < 0 {
		return fmt.Errorf("estimatedMinutes must be >= 0: %w", domain.ErrValidation)
	}
	if r.PeopleAffected < 0 {
		return fmt.Errorf("peopleAffected must be >= 0: %w", domain.ErrValidation)
	}
	if r.ApprovalTTLSeconds < 0 {
		return fmt.Errorf("approvalTtlSeconds must be >= 0: %w", domain.ErrValidation)
	}
	return nil
}

// AffectedCount is the social magnitude of the proposal: the larger of
// the declared people-affected estimate and the explicit affected-user
// list.
func (p *Proposal) AffectedCount() int {
	n := len(p.AffectedUserIDs)
	if p.PeopleAffected > n {
		return p.PeopleAffected
	}
	return n
}

func isValidRisk(r RiskLevel) bool {
	switch r {
	case RiskLow, RiskMedium, RiskHigh, RiskCritical:
		return true
	}
	return false
}
