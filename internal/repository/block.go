package repository

import (
	"context"
	"time"

	"puzzlemarket/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BlockRepository stores directional player blocks.
type BlockRepository interface {
	Block(ctx context.Context, blockerID, blockedID uint, at time.Time) error
	Unblock(ctx context.Context, blockerID, blockedID uint) error
	IsBlocked(ctx context.Context, blockerID, blockedID uint) (bool, error)
	Between(ctx context.Context, a, b uint) (aBlocksB, bBlocksA bool, err error)
	ListBlocked(ctx context.Context, blockerID uint) ([]models.PlayerBlock, error)
}

type blockRepository struct {
	db *gorm.DB
}

// NewBlockRepository returns a new BlockRepository implementation.
func NewBlockRepository(db *gorm.DB) BlockRepository {
	return &blockRepository{db: db}
}

// Block is idempotent; blocking twice keeps the original blocked_at.
func (r *blockRepository) Block(ctx context.Context, blockerID, blockedID uint, at time.Time) error {
	block := models.PlayerBlock{BlockerID: blockerID, BlockedID: blockedID, BlockedAt: at}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&block).Error
}

func (r *blockRepository) Unblock(ctx context.Context, blockerID, blockedID uint) error {
	return r.db.WithContext(ctx).
		Where("blocker_id = ? AND blocked_id = ?", blockerID, blockedID).
		Delete(&models.PlayerBlock{}).Error
}

func (r *blockRepository) IsBlocked(ctx context.Context, blockerID, blockedID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.PlayerBlock{}).
		Where("blocker_id = ? AND blocked_id = ?", blockerID, blockedID).
		Count(&count).Error
	return count > 0, err
}

func (r *blockRepository) Between(ctx context.Context, a, b uint) (bool, bool, error) {
	var rows []models.PlayerBlock
	err := r.db.WithContext(ctx).
		Where("(blocker_id = ? AND blocked_id = ?) OR (blocker_id = ? AND blocked_id = ?)", a, b, b, a).
		Find(&rows).Error
	if err != nil {
		return false, false, err
	}
	var aBlocksB, bBlocksA bool
	for _, row := range rows {
		if row.BlockerID == a {
			aBlocksB = true
		} else {
			bBlocksA = true
		}
	}
	return aBlocksB, bBlocksA, nil
}

func (r *blockRepository) ListBlocked(ctx context.Context, blockerID uint) ([]models.PlayerBlock, error) {
	var rows []models.PlayerBlock
	err := r.db.WithContext(ctx).
		Preload("Blocked").
		Where("blocker_id = ?", blockerID).
		Order("blocked_at DESC").
		Find(&rows).Error
	return rows, err
}
