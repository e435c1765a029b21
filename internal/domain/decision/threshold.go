// Package decision implements the stateless autonomy policy evaluator:
// threshold and override-window checks, and the final decision that an
// action may run unattended, needs approval, or is blocked.
//
// Everything here is a pure function of its inputs, including the
// current time. Determinism is required both for testability and for
// explaining decisions back to the user.
package decision

import (
	"fmt"
	"time"

	"github.com/mirrorloop/aegis/internal/domain/action"
	"github.com/mirrorloop/aegis/internal/domain/autonomy"
)

// WindowKind identifies a protected override window.
type WindowKind string

const (
	WindowWorkHours  WindowKind = "work_hours"
	WindowFamilyTime WindowKind = "family_time"
	WindowSleepHours WindowKind = "sleep_hours"
)

// Window is a concrete [Start, End) interval of one kind, supplied by
// the user's calendar/profile collaborator for the moment in question.
type Window struct {
	Kind  WindowKind `json:"kind"`
	Start time.Time  `json:"start"`
	End   time.Time  `json:"end"`
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Threshold dimension names used in verdicts, reasons, and risk factors.
const (
	DimFinancial      = "financial"
	DimTimeCommitment = "time_commitment"
	DimPeopleAffected = "people_affected"
)

// ThresholdVerdict is the outcome of magnitude and override-window
// checks for one proposal.
type ThresholdVerdict struct {
	ExceedsThreshold   bool         `json:"exceedsThreshold"`
	ExceededDimensions []string     `json:"exceededDimensions,omitempty"`
	BlockedByOverride  bool         `json:"blockedByOverride"`
	BlockingWindows    []WindowKind `json:"blockingWindows,omitempty"`
}

// EvaluateThresholds checks the proposal's magnitude against the user's
// thresholds and the current moment against enabled override windows.
func EvaluateThresholds(p *action.Proposal, s *autonomy.Settings, now time.Time, windows []Window) ThresholdVerdict {
	var v ThresholdVerdict

	if p.FinancialAmount > s.Thresholds.Financial {
		v.ExceededDimensions = append(v.ExceededDimensions, DimFinancial)
	}
	if p.EstimatedMinutes > s.Thresholds.TimeCommitmentMinutes {
		v.ExceededDimensions = append(v.ExceededDimensions, DimTimeCommitment)
	}
	if p.AffectedCount() > s.Thresholds.PeopleAffected {
		v.ExceededDimensions = append(v.ExceededDimensions, DimPeopleAffected)
	}
	v.ExceedsThreshold = len(v.ExceededDimensions) > 0

	for _, w := range windows {
		if !overrideEnabled(s.Overrides, w.Kind) {
			continue
		}
		if w.Contains(now) {
			v.BlockedByOverride = true
			v.BlockingWindows = append(v.BlockingWindows, w.Kind)
		}
	}
	return v
}

// RiskFactors renders the verdict as human-readable factor strings for
// the approval request's risk assessment.
func (v ThresholdVerdict) RiskFactors(p *action.Proposal, s *autonomy.Settings) []string {
	var factors []string
	for _, dim := range v.ExceededDimensions {
		switch dim {
		case DimFinancial:
			factors = append(factors, fmt.Sprintf("financial amount %.2f exceeds threshold %.2f",
				p.FinancialAmount, s.Thresholds.Financial))
		case DimTimeCommitment:
			factors = append(factors, fmt.Sprintf("time commitment %d min exceeds threshold %d min",
				p.EstimatedMinutes, s.Thresholds.TimeCommitmentMinutes))
		case DimPeopleAffected:
			factors = append(factors, fmt.Sprintf("%d people affected exceeds threshold %d",
				p.AffectedCount(), s.Thresholds.PeopleAffected))
		}
	}
	for _, w := range v.BlockingWindows {
		factors = append(factors, fmt.Sprintf("inside protected %s window", w))
	}
	return factors
}

func overrideEnabled(o autonomy.Overrides, kind WindowKind) bool {
	switch kind {
	case WindowWorkHours:
		return o.WorkHours
	case WindowFamilyTime:
		return o.FamilyTime
	case WindowSleepHours:
		return o.SleepHours
	}
	return false
}
