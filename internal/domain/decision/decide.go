package decision

import (
	"fmt"
	"strings"

	"github.com/mirrorloop/aegis/internal/domain/action"
	"github.com/mirrorloop/aegis/internal/domain/autonomy"
)

// RiskBars maps each risk level to the minimum autonomy level required
// for unattended execution. Monotonically increasing: riskier actions
// demand more trust.
type RiskBars struct {
	Low      int `json:"low" yaml:"low"`
	Medium   int `json:"medium" yaml:"medium"`
	High     int `json:"high" yaml:"high"`
	Critical int `json:"critical" yaml:"critical"`
}

// DefaultRiskBars is the starting policy; deployments tune it in config.
func DefaultRiskBars() RiskBars {
	return RiskBars{Low: 20, Medium: 50, High: 75, Critical: 95}
}

// Bar returns the bar for a risk level. Unknown levels get the critical
// bar, the most conservative choice.
func (b RiskBars) Bar(r action.RiskLevel) int {
	switch r {
	case action.RiskLow:
		return b.Low
	case action.RiskMedium:
		return b.Medium
	case action.RiskHigh:
		return b.High
	case action.RiskCritical:
		return b.Critical
	}
	return b.Critical
}

// DefaultConfidenceFloor is the minimum confidence for unattended
// execution.
const DefaultConfidenceFloor = 0.5

// Decision is the evaluator's verdict on one proposal. Exactly one of
// CanExecute or RequiresApproval is true unless the action is hard
// blocked, in which case both are false.
type Decision struct {
	ActionID         string  `json:"actionId"`
	CanExecute       bool    `json:"canExecute"`
	RequiresApproval bool    `json:"requiresApproval"`
	ApprovalReason   string  `json:"approvalReason,omitempty"`
	AutonomyLevel    int     `json:"autonomyLevel"`
	Confidence       float64 `json:"confidence"`
}

// Blocked reports a hard block: the action is refused outright and no
// approval request may be created for it.
func (d Decision) Blocked() bool {
	return !d.CanExecute && !d.RequiresApproval
}

// Decide combines the proposal's risk and confidence, the capability's
// autonomy level, and the threshold verdict into a single decision.
//
// Order matters: an override window is an absolute boundary and wins
// over everything; magnitude thresholds win over trust level; only then
// does the level-vs-bar comparison apply.
func Decide(p *action.Proposal, s *autonomy.Settings, v ThresholdVerdict, bars RiskBars, confidenceFloor float64) Decision {
	level := s.Level(p.Capability)
	d := Decision{
		ActionID:      p.ID,
		AutonomyLevel: level,
		Confidence:    p.Confidence,
	}

	if v.BlockedByOverride {
		return d
	}

	bar := bars.Bar(p.RiskLevel)
	var reasons []string

	if v.ExceedsThreshold {
		reasons = append(reasons, fmt.Sprintf("magnitude threshold exceeded (%s)",
			strings.Join(v.ExceededDimensions, ", ")))
	}
	if level < bar {
		reasons = append(reasons, fmt.Sprintf("autonomy level %d below required %d for %s risk",
			level, bar, p.RiskLevel))
	}
	if p.Confidence < confidenceFloor {
		reasons = append(reasons, fmt.Sprintf("confidence %.2f below required %.2f",
			p.Confidence, confidenceFloor))
	}

	if v.ExceedsThreshold || level < bar || p.Confidence < confidenceFloor {
		d.RequiresApproval = true
		d.ApprovalReason = strings.Join(reasons, "; ")
		return d
	}

	d.CanExecute = true
	return d
}
