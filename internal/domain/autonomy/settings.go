// Package autonomy defines the per-user autonomy policy model.
// A user's settings assign a 0-100 trust level to each capability,
// enable protected override windows, and cap the financial, time, and
// social blast-radius of unattended actions.
package autonomy

import "time"

// Capability is a named category of autonomous action.
type Capability string

const (
	CapScheduling         Capability = "scheduling"
	CapCommunication      Capability = "communication"
	CapFileManagement     Capability = "fileManagement"
	CapTaskCreation       Capability = "taskCreation"
	CapDataAnalysis       Capability = "dataAnalysis"
	CapCrossModuleActions Capability = "crossModuleActions"
)

// Capabilities lists every known capability key.
func Capabilities() []Capability {
	return []Capability{
		CapScheduling,
		CapCommunication,
		CapFileManagement,
		CapTaskCreation,
		CapDataAnalysis,
		CapCrossModuleActions,
	}
}

// MinLevel and MaxLevel bound autonomy levels. Writes outside the range
// are clamped, not rejected.
const (
	MinLevel = 0
	MaxLevel = 100
)

// Overrides holds the protected-window flags. An enabled window is a
// hard stop for autonomous action while the current time is inside it.
type Overrides struct {
	WorkHours  bool `json:"workHoursOverride"`
	FamilyTime bool `json:"familyTimeOverride"`
	SleepHours bool `json:"sleepHoursOverride"`
}

// Thresholds caps action magnitude. Exceeding any dimension forces
// approval regardless of trust level.
type Thresholds struct {
	Financial             float64 `json:"financialThreshold"`
	TimeCommitmentMinutes int     `json:"timeCommitmentThreshold"`
	PeopleAffected        int     `json:"peopleAffectedThreshold"`
}

// Settings is the complete autonomy policy for one user. It is an
// immutable value: updates produce a new Settings replaced wholesale,
// never an in-place mutation.
type Settings struct {
	UserID     string             `json:"userId"`
	Levels     map[Capability]int `json:"levels"`
	Overrides  Overrides          `json:"overrides"`
	Thresholds Thresholds         `json:"thresholds"`
	UpdatedAt  time.Time          `json:"updatedAt"`
}

// Level returns the autonomy level for a capability. Unknown keys map
// to the minimum level so new capability types degrade safely.
func (s *Settings) Level(c Capability) int {
	if lvl, ok := s.Levels[c]; ok {
		return lvl
	}
	return MinLevel
}

// ClampLevel forces a level into [MinLevel, MaxLevel].
func ClampLevel(lvl int) int {
	if lvl < MinLevel {
		return MinLevel
	}
	if lvl > MaxLevel {
		return MaxLevel
	}
	return lvl
}

// clone returns a deep copy so merged updates never alias the original.
func (s *Settings) clone() *Settings {
	out := *s
	out.Levels = make(map[Capability]int, len(s.Levels))
	for k, v := range s.Levels {
		out.Levels[k] = v
	}
	return &out
}
