package service

import (
	"context"
	"log/slog"
	"math"
	"time"

	"puzzlemarket/internal/cache"
	"puzzlemarket/internal/database"
	"puzzlemarket/internal/models"
	"puzzlemarket/internal/observability"
	"puzzlemarket/internal/repository"
	"puzzlemarket/internal/validation"
)

// DefaultRatingWindow is how long after a sale both parties may rate.
const DefaultRatingWindow = 30 * 24 * time.Hour

const maxRatingsPage = 100

// RatingService accepts post-transaction ratings and keeps the per-player
// aggregate in sync.
type RatingService struct {
	stores *repository.Stores
	window time.Duration
	now    Clock
}

// NewRatingService returns a new RatingService. A non-positive window falls
// back to DefaultRatingWindow.
func NewRatingService(stores *repository.Stores, window time.Duration, clock Clock) *RatingService {
	if window <= 0 {
		window = DefaultRatingWindow
	}
	return &RatingService{stores: stores, window: window, now: orSystemClock(clock)}
}

// Rate stores the reviewer's rating of the other party. It fails NotEligible
// outside the window or for strangers and DuplicateRating on a second call.
func (s *RatingService) Rate(ctx context.Context, transactionID, reviewerID uint, stars int, text *string) (*models.Rating, error) {
	if err := validation.Stars(stars); err != nil {
		return nil, validationError(err)
	}
	text, err := validation.ReviewText(text)
	if err != nil {
		return nil, validationError(err)
	}

	sale, err := s.stores.Transactions.GetByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if !s.eligible(sale, reviewerID, now) {
		return nil, models.ErrNotEligible
	}

	rating := &models.Rating{
		TransactionID: sale.ID,
		ReviewerID:    reviewerID,
		Stars:         stars,
		ReviewText:    text,
		RatedAt:       now,
	}
	if reviewerID == sale.SellerID {
		rating.ReviewedPlayerID = *sale.BuyerID
		rating.ReviewerRole = models.ReviewerRoleSeller
	} else {
		rating.ReviewedPlayerID = sale.SellerID
		rating.ReviewerRole = models.ReviewerRoleBuyer
	}

	err = s.stores.WithTx(ctx, func(tx *repository.Stores) error {
		if err := tx.Ratings.Create(ctx, rating); err != nil {
			return err
		}
		return recomputeSummary(ctx, tx, rating.ReviewedPlayerID, now)
	})
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, models.ErrDuplicateRating
		}
		return nil, appError(err)
	}

	cache.InvalidateStanding(ctx, rating.ReviewedPlayerID)
	observability.RatingsSubmitted.WithLabelValues(string(rating.ReviewerRole)).Inc()
	slog.InfoContext(ctx, "rating submitted",
		"rating_id", rating.ID,
		"transaction_id", sale.ID,
		"reviewer_id", reviewerID,
		"stars", stars,
	)
	return rating, nil
}

// eligible requires a registered buyer, a party reviewer and a sale less
// than one window old.
func (s *RatingService) eligible(sale *models.Transaction, reviewerID uint, now time.Time) bool {
	if sale.BuyerID == nil || !sale.IsParty(reviewerID) {
		return false
	}
	return now.Sub(sale.SoldAt) < s.window
}

// recomputeSummary recounts every rating of the player; the aggregate is
// never adjusted incrementally.
func recomputeSummary(ctx context.Context, tx *repository.Stores, playerID uint, now time.Time) error {
	count, total, err := tx.Ratings.Recount(ctx, playerID)
	if err != nil {
		return err
	}
	summary := &models.PlayerRatingSummary{PlayerID: playerID, RatingCount: count, UpdatedAt: now}
	if count > 0 {
		summary.AverageRating = math.Round(float64(total)/float64(count)*100) / 100
	}
	return tx.Ratings.SaveSummary(ctx, summary)
}

// PendingRatingsFor lists transactions the player can still rate, newest
// first.
func (s *RatingService) PendingRatingsFor(ctx context.Context, playerID uint) ([]models.PendingRating, error) {
	now := s.now()
	sales, err := s.stores.Transactions.UnratedSince(ctx, playerID, now.Add(-s.window))
	if err != nil {
		return nil, appError(err)
	}

	counterpartIDs := make([]uint, 0, len(sales))
	for i := range sales {
		counterpartIDs = append(counterpartIDs, counterpartOf(&sales[i], playerID))
	}
	players, err := s.stores.Players.GetByIDs(ctx, counterpartIDs)
	if err != nil {
		return nil, err
	}

	out := make([]models.PendingRating, 0, len(sales))
	for i := range sales {
		sale := &sales[i]
		role := models.ReviewerRoleBuyer
		if sale.SellerID == playerID {
			role = models.ReviewerRoleSeller
		}
		counterpartID := counterpartOf(sale, playerID)
		out = append(out, models.PendingRating{
			TransactionID: sale.ID,
			PuzzleID:      sale.PuzzleID,
			CounterpartID: counterpartID,
			Counterpart:   players[counterpartID],
			Role:          role,
			ListingType:   sale.ListingType,
			SoldAt:        sale.SoldAt,
			ExpiresAt:     sale.SoldAt.Add(s.window),
		})
	}
	return out, nil
}

func counterpartOf(sale *models.Transaction, playerID uint) uint {
	if sale.SellerID == playerID && sale.BuyerID != nil {
		return *sale.BuyerID
	}
	return sale.SellerID
}

// RatingsFor pages the ratings a player received, newest first.
func (s *RatingService) RatingsFor(ctx context.Context, playerID uint, limit, offset int) ([]models.Rating, error) {
	if limit <= 0 || limit > maxRatingsPage {
		limit = maxRatingsPage
	}
	if offset < 0 {
		offset = 0
	}
	ratings, err := s.stores.Ratings.ListFor(ctx, playerID, limit, offset)
	return ratings, appError(err)
}

// Summary returns the stored aggregate for a player.
func (s *RatingService) Summary(ctx context.Context, playerID uint) (*models.PlayerRatingSummary, error) {
	summary, err := s.stores.Ratings.GetSummary(ctx, playerID)
	return summary, appError(err)
}
