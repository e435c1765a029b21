package autonomy

import "time"

// Defaults returns the system default settings handed to a first-time
// user. No row is created until the user makes an explicit update.
func Defaults(userID string) *Settings {
	return &Settings{
		UserID: userID,
		Levels: map[Capability]int{
			CapScheduling:         60,
			CapCommunication:      40,
			CapFileManagement:     50,
			CapTaskCreation:       40,
			CapDataAnalysis:       60,
			CapCrossModuleActions: 20,
		},
		Overrides: Overrides{
			WorkHours:  false,
			FamilyTime: true,
			SleepHours: true,
		},
		Thresholds: Thresholds{
			Financial:             100,
			TimeCommitmentMinutes: 120,
			PeopleAffected:        3,
		},
		UpdatedAt: time.Time{},
	}
}
