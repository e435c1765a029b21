package autonomy

import (
	"errors"
	"testing"
	"time"

	"github.com/mirrorloop/aegis/internal/domain"
)

func TestDefaultsCoverEveryCapability(t *testing.T) {
	s := Defaults("user-1")

	if s.UserID != "user-1" {
		t.Errorf("expected userId user-1, got %s", s.UserID)
	}
	for _, c := range Capabilities() {
		if _, ok := s.Levels[c]; !ok {
			t.Errorf("default settings missing level for %s", c)
		}
	}
	if !s.Overrides.FamilyTime || !s.Overrides.SleepHours {
		t.Error("family and sleep overrides should default on")
	}
	if s.Overrides.WorkHours {
		t.Error("work hours override should default off")
	}
}

func TestLevelUnknownCapability(t *testing.T) {
	s := Defaults("user-1")
	if got := s.Level(Capability("holograms")); got != MinLevel {
		t.Errorf("unknown capability should read min level, got %d", got)
	}
}

func TestClampLevel(t *testing.T) {
	cases := []struct {
		in, want int
	}{
		{-5, 0},
		{0, 0},
		{42, 42},
		{100, 100},
		{150, 100},
	}
	for _, c := range cases {
		if got := ClampLevel(c.in); got != c.want {
			t.Errorf("ClampLevel(%d) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestApplyClampsOutOfRangeLevels(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	current := Defaults("user-1")

	req := UpdateRequest{Levels: map[Capability]int{
		CapScheduling:    150,
		CapCommunication: -10,
	}}
	next, err := req.Apply(current, now, false)
	if err != nil {
		t.Fatal(err)
	}

	// A write of 150 reads back as 100.
	if got := next.Level(CapScheduling); got != MaxLevel {
		t.Errorf("expected scheduling level %d, got %d", MaxLevel, got)
	}
	if got := next.Level(CapCommunication); got != MinLevel {
		t.Errorf("expected communication level %d, got %d", MinLevel, got)
	}
	if !next.UpdatedAt.Equal(now) {
		t.Errorf("expected updatedAt %v, got %v", now, next.UpdatedAt)
	}
}

func TestApplyPartialUpdateKeepsOmittedFields(t *testing.T) {
	now := time.Now().UTC()
	current := Defaults("user-1")

	fin := 250.0
	req := UpdateRequest{
		Levels:     map[Capability]int{CapScheduling: 80},
		Thresholds: &ThresholdsPatch{Financial: &fin},
	}
	next, err := req.Apply(current, now, false)
	if err != nil {
		t.Fatal(err)
	}

	if got := next.Level(CapCommunication); got != current.Level(CapCommunication) {
		t.Errorf("untouched level changed: %d != %d", got, current.Level(CapCommunication))
	}
	if next.Thresholds.Financial != 250 {
		t.Errorf("expected financial threshold 250, got %v", next.Thresholds.Financial)
	}
	if next.Thresholds.PeopleAffected != current.Thresholds.PeopleAffected {
		t.Error("untouched threshold changed")
	}
	if next.Overrides != current.Overrides {
		t.Error("untouched overrides changed")
	}
}

func TestApplyNeverMutatesCurrent(t *testing.T) {
	current := Defaults("user-1")
	before := current.Level(CapScheduling)

	req := UpdateRequest{Levels: map[Capability]int{CapScheduling: 5}}
	if _, err := req.Apply(current, time.Now(), false); err != nil {
		t.Fatal(err)
	}

	if got := current.Level(CapScheduling); got != before {
		t.Errorf("Apply mutated input settings: %d != %d", got, before)
	}
}

func TestValidateUnknownCapability(t *testing.T) {
	req := UpdateRequest{Levels: map[Capability]int{Capability("bogus"): 50}}

	if err := req.Validate(false); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
	if err := req.Validate(true); err != nil {
		t.Errorf("allowNewCaps should accept unknown keys, got %v", err)
	}
}

func TestValidateNegativeThresholds(t *testing.T) {
	neg := -1
	negF := -0.5

	cases := []struct {
		name string
		req  UpdateRequest
	}{
		{"financial", UpdateRequest{Thresholds: &ThresholdsPatch{Financial: &negF}}},
		{"time", UpdateRequest{Thresholds: &ThresholdsPatch{TimeCommitmentMinutes: &neg}}},
		{"people", UpdateRequest{Thresholds: &ThresholdsPatch{PeopleAffected: &neg}}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if err := c.req.Validate(false); !errors.Is(err, domain.ErrValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}
