package autonomy

import (
	"fmt"
	"time"

	"github.com/mirrorloop/aegis/internal/domain"
)

// UpdateRequest is a partial settings update. Absent fields keep their
// current value; present levels are clamped into [MinLevel, MaxLevel].
type UpdateRequest struct {
	Levels     map[Capability]int `json:"levels,omitempty"`
	Overrides  *OverridesPatch    `json:"overrides,omitempty"`
	Thresholds *ThresholdsPatch   `json:"thresholds,omitempty"`
}

// OverridesPatch updates individual override flags.
type OverridesPatch struct {
	WorkHours  *bool `json:"workHoursOverride,omitempty"`
	FamilyTime *bool `json:"familyTimeOverride,omitempty"`
	SleepHours *bool `json:"sleepHoursOverride,omitempty"`
}

// ThresholdsPatch updates individual thresholds. Negative values are
// rejected, never silently corrected.
type ThresholdsPatch struct {
	Financial             *float64 `json:"financialThreshold,omitempty"`
	TimeCommitmentMinutes *int     `json:"timeCommitmentThreshold,omitempty"`
	PeopleAffected        *int     `json:"peopleAffectedThreshold,omitempty"`
}

// Validate checks an update before any of it is applied.
// allowNewCaps permits level entries for capability keys outside the
// known set; otherwise unknown keys are rejected.
func (r *UpdateRequest) Validate(allowNewCaps bool) error {
	if !allowNewCaps {
		known := make(map[Capability]bool, len(Capabilities()))
		for _, c := range Capabilities() {
			known[c] = true
		}
		for c := range r.Levels {
			if !known[c] {
				return fmt.Errorf("unknown capability %q: %w", c, domain.ErrValidation)
			}
		}
	}
	if t := r.Thresholds; t != nil {
		if t.Financial != nil && *t.Financial < 0 {
			return fmt.Errorf("financialThreshold must be >= 0: %w", domain.ErrValidation)
		}
		if t.TimeCommitmentMinutes != nil && *t.TimeCommitmentMinutes < 0 {
			return fmt.Errorf("timeCommitmentThreshold must be >= 0: %w", domain.ErrValidation)
		}
		if t.PeopleAffected != nil && *t.PeopleAffected < 0 {
			return fmt.Errorf("peopleAffectedThreshold must be >= 0: %w", domain.ErrValidation)
		}
	}
	return nil
}

// Apply merges the update over current and returns a new Settings
// value. The receiver is validated first; current is never mutated, so
// concurrent readers holding the old value see a consistent snapshot.
func (r *UpdateRequest) Apply(current *Settings, now time.Time, allowNewCaps bool) (*Settings, error) {
	if err := r.Validate(allowNewCaps); err != nil {
		return nil, err
	}

	next := current.clone()
	for c, lvl := range r.Levels {
		next.Levels[c] = ClampLevel(lvl)
	}
	if o := r.Overrides; o != nil {
		if o.WorkHours != nil {
			next.Overrides.WorkHours = *o.WorkHours
		}
		if o.FamilyTime != nil {
			next.Overrides.FamilyTime = *o.FamilyTime
		}
		if o.SleepHours != nil {
			next.Overrides.SleepHours = *o.SleepHours
		}
	}
	if t := r.Thresholds; t != nil {
		if t.Financial != nil {
			next.Thresholds.Financial = *t.Financial
		}
		if t.TimeCommitmentMinutes != nil {
			next.Thresholds.TimeCommitmentMinutes = *t.TimeCommitmentMinutes
		}
		if t.PeopleAffected != nil {
			next.Thresholds.PeopleAffected = *t.PeopleAffected
		}
	}
	next.UpdatedAt = now.UTC()
	return next, nil
}
