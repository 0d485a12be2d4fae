package service

import (
	"context"
	"time"

	"puzzlemarket/internal/cache"
	"puzzlemarket/internal/models"
	"puzzlemarket/internal/observability"
	"puzzlemarket/internal/repository"
)

// StandingService builds the marketplace standing shown on profiles.
type StandingService struct {
	stores *repository.Stores
	ttl    time.Duration
	now    Clock
}

// NewStandingService returns a new StandingService. Cached standings live at
// most ttl; moderation and rating writes invalidate them earlier.
func NewStandingService(stores *repository.Stores, ttl time.Duration, clock Clock) *StandingService {
	return &StandingService{stores: stores, ttl: ttl, now: orSystemClock(clock)}
}

// Standing returns the rating aggregate and moderation flags of a player.
func (s *StandingService) Standing(ctx context.Context, playerID uint) (*models.PlayerMarketplaceStanding, error) {
	if _, err := s.stores.Players.GetByID(ctx, playerID); err != nil {
		return nil, err
	}
	if s.ttl <= 0 {
		return s.compute(ctx, playerID)
	}

	standing, hit, err := cache.Aside(ctx, cache.StandingKey(playerID), s.ttl, func(ctx context.Context) (*models.PlayerMarketplaceStanding, error) {
		return s.compute(ctx, playerID)
	})
	if err != nil {
		return nil, err
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	observability.StandingCacheLookups.WithLabelValues(result).Inc()
	return standing, nil
}

func (s *StandingService) compute(ctx context.Context, playerID uint) (*models.PlayerMarketplaceStanding, error) {
	now := s.now()
	summary, err := s.stores.Ratings.GetSummary(ctx, playerID)
	if err != nil {
		return nil, appError(err)
	}
	mute, err := activeSanction(ctx, s.stores.Moderation, playerID, models.ModerationActionMute, models.ModerationActionLiftMute, now)
	if err != nil {
		return nil, appError(err)
	}
	ban, err := activeSanction(ctx, s.stores.Moderation, playerID, models.ModerationActionBan, models.ModerationActionLiftBan, now)
	if err != nil {
		return nil, appError(err)
	}
	return &models.PlayerMarketplaceStanding{
		PlayerID:      playerID,
		RatingCount:   summary.RatingCount,
		AverageRating: summary.AverageRating,
		IsMuted:       mute != nil,
		IsBanned:      ban != nil,
	}, nil
}
