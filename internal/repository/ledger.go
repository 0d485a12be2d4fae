package repository

import (
	"context"
	"time"

	"puzzlemarket/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TransactionRepository stores immutable sale snapshots.
type TransactionRepository interface {
	Create(ctx context.Context, tx *models.Transaction) error
	GetByID(ctx context.Context, id uint) (*models.Transaction, error)
	UnratedSince(ctx context.Context, playerID uint, soldAfter time.Time) ([]models.Transaction, error)
}

type transactionRepository struct {
	db *gorm.DB
}

// NewTransactionRepository returns a new TransactionRepository implementation.
func NewTransactionRepository(db *gorm.DB) TransactionRepository {
	return &transactionRepository{db: db}
}

func (r *transactionRepository) Create(ctx context.Context, tx *models.Transaction) error {
	return r.db.WithContext(ctx).Create(tx).Error
}

func (r *transactionRepository) GetByID(ctx context.Context, id uint) (*models.Transaction, error) {
	var tx models.Transaction
	if err := r.db.WithContext(ctx).First(&tx, id).Error; err != nil {
		return nil, mapLookupError(err, "Transaction", id)
	}
	return &tx, nil
}

// UnratedSince lists transactions with a registered buyer where the player
// is a party, sold strictly after soldAfter, that the player has not rated.
func (r *transactionRepository) UnratedSince(ctx context.Context, playerID uint, soldAfter time.Time) ([]models.Transaction, error) {
	var txs []models.Transaction
	err := r.db.WithContext(ctx).
		Where("buyer_id IS NOT NULL").
		Where("(seller_id = ? OR buyer_id = ?)", playerID, playerID).
		Where("sold_at > ?", soldAfter).
		Where("NOT EXISTS (SELECT 1 FROM ratings r WHERE r.transaction_id = transactions.id AND r.reviewer_id = ?)", playerID).
		Order("sold_at DESC").
		Order("id DESC").
		Find(&txs).Error
	return txs, err
}

// RatingRepository stores ratings and the per-player aggregate.
type RatingRepository interface {
	Create(ctx context.Context, rating *models.Rating) error
	Recount(ctx context.Context, playerID uint) (count int64, sum int64, err error)
	SaveSummary(ctx context.Context, summary *models.PlayerRatingSummary) error
	GetSummary(ctx context.Context, playerID uint) (*models.PlayerRatingSummary, error)
	ListFor(ctx context.Context, playerID uint, limit, offset int) ([]models.Rating, error)
}

type ratingRepository struct {
	db *gorm.DB
}

// NewRatingRepository returns a new RatingRepository implementation.
func NewRatingRepository(db *gorm.DB) RatingRepository {
	return &ratingRepository{db: db}
}

func (r *ratingRepository) Create(ctx context.Context, rating *models.Rating) error {
	return r.db.WithContext(ctx).Create(rating).Error
}

// Recount scans every rating of the player; the aggregate is never
// maintained incrementally.
func (r *ratingRepository) Recount(ctx context.Context, playerID uint) (int64, int64, error) {
	var row struct {
		Count int64
		Total int64
	}
	err := r.db.WithContext(ctx).Model(&models.Rating{}).
		Select("COUNT(*) AS count, COALESCE(SUM(stars), 0) AS total").
		Where("reviewed_player_id = ?", playerID).
		Scan(&row).Error
	return row.Count, row.Total, err
}

// SaveSummary upserts the aggregate row keyed by player.
func (r *ratingRepository) SaveSummary(ctx context.Context, summary *models.PlayerRatingSummary) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "player_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"rating_count", "average_rating", "updated_at"}),
	}).Create(summary).Error
}

// GetSummary returns a zero summary for players nobody rated yet.
func (r *ratingRepository) GetSummary(ctx context.Context, playerID uint) (*models.PlayerRatingSummary, error) {
	var rows []models.PlayerRatingSummary
	if err := r.db.WithContext(ctx).Where("player_id = ?", playerID).Limit(1).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return &models.PlayerRatingSummary{PlayerID: playerID}, nil
	}
	return &rows[0], nil
}

func (r *ratingRepository) ListFor(ctx context.Context, playerID uint, limit, offset int) ([]models.Rating, error) {
	var ratings []models.Rating
	err := r.db.WithContext(ctx).
		Preload("Reviewer").
		Where("reviewed_player_id = ?", playerID).
		Order("rated_at DESC").
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&ratings).Error
	return ratings, err
}
