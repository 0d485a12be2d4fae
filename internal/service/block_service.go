package service

import (
	"context"

	"puzzlemarket/internal/models"
	"puzzlemarket/internal/repository"
)

// BlockService manages directional player blocks.
type BlockService struct {
	stores *repository.Stores
	now    Clock
}

// NewBlockService returns a new BlockService.
func NewBlockService(stores *repository.Stores, clock Clock) *BlockService {
	return &BlockService{stores: stores, now: orSystemClock(clock)}
}

// Block makes blockedID invisible to blockerID. Blocking twice is a no-op.
func (s *BlockService) Block(ctx context.Context, blockerID, blockedID uint) error {
	if blockerID == blockedID {
		return models.NewValidationError("You cannot block yourself")
	}
	if _, err := s.stores.Players.GetByID(ctx, blockedID); err != nil {
		return err
	}
	return appError(s.stores.Blocks.Block(ctx, blockerID, blockedID, s.now()))
}

// Unblock removes a block if present.
func (s *BlockService) Unblock(ctx context.Context, blockerID, blockedID uint) error {
	return appError(s.stores.Blocks.Unblock(ctx, blockerID, blockedID))
}

// IsBlocked reports whether blockerID blocks blockedID.
func (s *BlockService) IsBlocked(ctx context.Context, blockerID, blockedID uint) (bool, error) {
	blocked, err := s.stores.Blocks.IsBlocked(ctx, blockerID, blockedID)
	return blocked, appError(err)
}

// ListBlocked returns the players blockerID has blocked.
func (s *BlockService) ListBlocked(ctx context.Context, blockerID uint) ([]models.PlayerBlock, error) {
	blocks, err := s.stores.Blocks.ListBlocked(ctx, blockerID)
	return blocks, appError(err)
}
