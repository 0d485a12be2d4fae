package repository

import (
	"context"

	"puzzlemarket/internal/cache"
	"puzzlemarket/internal/models"

	"gorm.io/gorm"
)

// ListingRepository reads listings and flips their reservation flag.
type ListingRepository interface {
	GetByID(ctx context.Context, id uint) (*models.Listing, error)
	SetReservation(ctx context.Context, id uint, reservedFor *uint) error
	ClearReservation(ctx context.Context, id uint) error
}

type listingRepository struct {
	db *gorm.DB
}

// NewListingRepository returns a new ListingRepository implementation.
func NewListingRepository(db *gorm.DB) ListingRepository {
	return &listingRepository{db: db}
}

func (r *listingRepository) GetByID(ctx context.Context, id uint) (*models.Listing, error) {
	listing, _, err := cache.Aside(ctx, cache.ListingKey(id), cache.ListingTTL, func(ctx context.Context) (*models.Listing, error) {
		var l models.Listing
		if err := r.db.WithContext(ctx).First(&l, id).Error; err != nil {
			return nil, mapLookupError(err, "Listing", id)
		}
		return &l, nil
	})
	if err != nil {
		return nil, err
	}
	return listing, nil
}

func (r *listingRepository) SetReservation(ctx context.Context, id uint, reservedFor *uint) error {
	defer cache.InvalidateListing(ctx, id)
	return r.db.WithContext(ctx).Model(&models.Listing{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"reserved": true, "reserved_for_player_id": reservedFor}).Error
}

func (r *listingRepository) ClearReservation(ctx context.Context, id uint) error {
	defer cache.InvalidateListing(ctx, id)
	return r.db.WithContext(ctx).Model(&models.Listing{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"reserved": false, "reserved_for_player_id": nil}).Error
}
