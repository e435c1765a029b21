// Package fixedschedule implements the schedule port with daily
// recurring windows from static configuration. It stands in for the
// calendar/profile collaborator when none is wired; every user shares
// the configured boundaries.
package fixedschedule

import (
	"context"
	"fmt"
	"time"

	"github.com/mirrorloop/aegis/internal/config"
	"github.com/mirrorloop/aegis/internal/domain/decision"
)

// Provider resolves daily windows around a moment in a fixed timezone.
type Provider struct {
	loc     *time.Location
	windows []daily
}

type daily struct {
	kind       decision.WindowKind
	start, end clock
}

type clock struct {
	hour, minute int
}

// New parses the configured boundaries. Windows with an empty start or
// end are omitted.
func New(cfg config.Schedule) (*Provider, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("schedule timezone %q: %w", cfg.Timezone, err)
	}

	p := &Provider{loc: loc}
	for _, w := range []struct {
		kind       decision.WindowKind
		start, end string
	}{
		{decision.WindowWorkHours, cfg.WorkStart, cfg.WorkEnd},
		{decision.WindowFamilyTime, cfg.FamilyStart, cfg.FamilyEnd},
		{decision.WindowSleepHours, cfg.SleepStart, cfg.SleepEnd},
	} {
		if w.start == "" || w.end == "" {
			continue
		}
		start, err := parseClock(w.start)
		if err != nil {
			return nil, fmt.Errorf("schedule %s start: %w", w.kind, err)
		}
		end, err := parseClock(w.end)
		if err != nil {
			return nil, fmt.Errorf("schedule %s end: %w", w.kind, err)
		}
		p.windows = append(p.windows, daily{kind: w.kind, start: start, end: end})
	}
	return p, nil
}

// Windows returns the concrete intervals surrounding t. Windows that
// cross midnight (sleep hours) are anchored so the interval containing
// t, if any, is always among the results.
func (p *Provider) Windows(_ context.Context, _ string, t time.Time) ([]decision.Window, error) {
	t = t.In(p.loc)
	out := make([]decision.Window, 0, len(p.windows))
	for _, w := range p.windows {
		start := time.Date(t.Year(), t.Month(), t.Day(), w.start.hour, w.start.minute, 0, 0, p.loc)
		end := time.Date(t.Year(), t.Month(), t.Day(), w.end.hour, w.end.minute, 0, 0, p.loc)
		if !end.After(start) {
			// Crosses midnight. Pick the occurrence whose interval could contain t.
			if t.Before(end) {
				start = start.AddDate(0, 0, -1)
			} else {
				end = end.AddDate(0, 0, 1)
			}
		}
		out = append(out, decision.Window{Kind: w.kind, Start: start, End: end})
	}
	return out, nil
}

func parseClock(s string) (clock, error) {
	var c clock
	if _, err := fmt.Sscanf(s, "%d:%d", &c.hour, &c.minute); err != nil {
		return clock{}, fmt.Errorf("parse %q as HH:MM: %w", s, err)
	}
	if c.hour < 0 || c.hour > 23 || c.minute < 0 || c.minute > 59 {
		return clock{}, fmt.Errorf("clock %q out of range", s)
	}
	return c, nil
}
