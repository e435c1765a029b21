package service

import (
	"context"
	"fmt"
	"time"

	"github.com/mirrorloop/aegis/internal/domain/decision"
	"github.com/mirrorloop/aegis/internal/domain/recommend"
	"github.com/mirrorloop/aegis/internal/port/database"
)

// RecommendationService computes advisory autonomy-level suggestions
// from a window of settled approval requests. Nothing it returns is
// ever applied automatically.
type RecommendationService struct {
	store      database.Store
	settings   *SettingsService
	bars       decision.RiskBars
	watermarks recommend.Watermarks
	window     time.Duration
}

// NewRecommendationService creates a RecommendationService.
func NewRecommendationService(
	store database.Store,
	settings *SettingsService,
	bars decision.RiskBars,
	wm recommend.Watermarks,
	window time.Duration,
) *RecommendationService {
	return &RecommendationService{
		store:      store,
		settings:   settings,
		bars:       bars,
		watermarks: wm,
		window:     window,
	}
}

// Get analyzes the user's recent approval history.
func (s *RecommendationService) Get(ctx context.Context, userID string) ([]recommend.Recommendation, error) {
	settings, err := s.settings.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	since := time.Now().UTC().Add(-s.window)
	requests, err := s.store.ListSettledApprovals(ctx, userID, since)
	if err != nil {
		return nil, fmt.Errorf("load approval history for %s: %w", userID, err)
	}

	return recommend.Analyze(requests, settings, s.bars, s.watermarks), nil
}
