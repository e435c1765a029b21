package autonomy

import "time"

// ChangeRecord is one append-only entry in a user's settings change
// history. Kept for audit; never rewritten.
type ChangeRecord struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Previous  Settings  `json:"previous"`
	Updated   Settings  `json:"updated"`
	ActorID   string    `json:"actorId"`
	ChangedAt time.Time `json:"changedAt"`
}
