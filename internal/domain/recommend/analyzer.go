// Package recommend mines historical approval outcomes and proposes
// autonomy-level adjustments per capability. Output is advisory only:
// nothing here, or anywhere downstream, changes a user's policy
// automatically.
package recommend

import (
	"fmt"
	"sort"

	"github.com/mirrorloop/aegis/internal/domain/approval"
	"github.com/mirrorloop/aegis/internal/domain/autonomy"
	"github.com/mirrorloop/aegis/internal/domain/decision"
)

// Type is the direction of a recommendation.
type Type string

const (
	IncreaseAutonomy Type = "increase_autonomy"
	DecreaseAutonomy Type = "decrease_autonomy"
)

// Recommendation is a transient, advisory suggestion for one
// capability. Never persisted as authoritative state.
type Recommendation struct {
	Type           Type                `json:"type"`
	Capability     autonomy.Capability `json:"capability"`
	Reason         string              `json:"reason"`
	CurrentLevel   int                 `json:"currentLevel"`
	SuggestedLevel int                 `json:"suggestedLevel"`
}

// Watermarks tunes the analyzer. Zero values are replaced by defaults.
type Watermarks struct {
	MinSamples     int     `yaml:"min_samples"`
	AcceptanceHigh float64 `yaml:"acceptance_high"`
	RejectionHigh  float64 `yaml:"rejection_high"`
}

// DefaultWatermarks is the starting policy from the design notes.
func DefaultWatermarks() Watermarks {
	return Watermarks{MinSamples: 5, AcceptanceHigh: 0.90, RejectionHigh: 0.30}
}

type tally struct {
	total    int
	accepted int // approved or executed without modification
	rejected int
}

// Analyze computes acceptance and rejection rates per capability over a
// window of settled requests and emits recommendations where a
// watermark is crossed. Requests still pending are ignored; a request
// counts as accepted only when it was approved without modification.
func Analyze(requests []approval.Request, settings *autonomy.Settings, bars decision.RiskBars, wm Watermarks) []Recommendation {
	if wm.MinSamples <= 0 {
		wm = DefaultWatermarks()
	}

	byCap := map[autonomy.Capability]*tally{}
	for i := range requests {
		r := &requests[i]
		if r.Status == approval.StatusPending {
			continue
		}
		t := byCap[r.Proposal.Capability]
		if t == nil {
			t = &tally{}
			byCap[r.Proposal.Capability] = t
		}
		t.total++
		switch r.Status {
		case approval.StatusApproved, approval.StatusExecuted:
			if !r.Modified() {
				t.accepted++
			}
		case approval.StatusRejected:
			t.rejected++
		}
	}

	caps := make([]autonomy.Capability, 0, len(byCap))
	for c := range byCap {
		caps = append(caps, c)
	}
	sort.Slice(caps, func(i, j int) bool { return caps[i] < caps[j] })

	var recs []Recommendation
	for _, c := range caps {
		t := byCap[c]
		if t.total < wm.MinSamples {
			continue
		}
		level := settings.Level(c)
		acceptance := float64(t.accepted) / float64(t.total)
		rejection := float64(t.rejected) / float64(t.total)

		switch {
		case rejection >= wm.RejectionHigh:
			suggested := midpoint(barBelow(level, bars), level)
			if suggested < level {
				recs = append(recs, Recommendation{
					Type:       DecreaseAutonomy,
					Capability: c,
					Reason: fmt.Sprintf("%.0f%% of %d approval requests were rejected",
						rejection*100, t.total),
					CurrentLevel:   level,
					SuggestedLevel: suggested,
				})
			}
		case acceptance >= wm.AcceptanceHigh:
			suggested := midpoint(level, barAbove(level, bars))
			if suggested > level {
				recs = append(recs, Recommendation{
					Type:       IncreaseAutonomy,
					Capability: c,
					Reason: fmt.Sprintf("%.0f%% of %d approval requests were approved without changes",
						acceptance*100, t.total),
					CurrentLevel:   level,
					SuggestedLevel: suggested,
				})
			}
		}
	}
	return recs
}

// barAbove returns the lowest risk bar strictly above level, or the
// maximum level when the user already clears every bar.
func barAbove(level int, bars decision.RiskBars) int {
	for _, b := range []int{bars.Low, bars.Medium, bars.High, bars.Critical} {
		if b > level {
			return b
		}
	}
	return autonomy.MaxLevel
}

// barBelow returns the highest risk bar strictly below level, or the
// minimum level.
func barBelow(level int, bars decision.RiskBars) int {
	out := autonomy.MinLevel
	for _, b := range []int{bars.Low, bars.Medium, bars.High, bars.Critical} {
		if b < level {
			out = b
		}
	}
	return out
}

func midpoint(a, b int) int {
	return (a + b) / 2
}
