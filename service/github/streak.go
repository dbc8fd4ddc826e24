package github

import (
	"context"
	"fmt"
	"net/url"

	"github.com/commitly/commitly/models"
)

// GetStreakStats queries the third-party streak aggregator for a login.
// Streaks are computed externally; we only pass them through for display.
func (s *Service) GetStreakStats(ctx context.Context, login string) (*models.StreakStats, error) {
	var stats models.StreakStats
	if err := s.get(ctx, s.streakURL+"/stats/"+url.PathEscape(login), &stats); err != nil {
		return nil, fmt.Errorf("failed to fetch streak stats for %s: %w", login, err)
	}
	return &stats, nil
}
