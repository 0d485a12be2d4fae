package repository

import (
	"context"

	"puzzlemarket/internal/cache"
	"puzzlemarket/internal/models"

	"gorm.io/gorm"
)

// PlayerRepository reads the external player directory.
type PlayerRepository interface {
	GetByID(ctx context.Context, id uint) (*models.Player, error)
	GetByIDs(ctx context.Context, ids []uint) (map[uint]*models.Player, error)
	IsAdmin(ctx context.Context, id uint) (bool, error)
}

type playerRepository struct {
	db *gorm.DB
}

// NewPlayerRepository returns a new PlayerRepository implementation.
func NewPlayerRepository(db *gorm.DB) PlayerRepository {
	return &playerRepository{db: db}
}

func (r *playerRepository) GetByID(ctx context.Context, id uint) (*models.Player, error) {
	player, _, err := cache.Aside(ctx, cache.PlayerKey(id), cache.PlayerTTL, func(ctx context.Context) (*models.Player, error) {
		var p models.Player
		if err := r.db.WithContext(ctx).First(&p, id).Error; err != nil {
			return nil, mapLookupError(err, "Player", id)
		}
		return &p, nil
	})
	if err != nil {
		return nil, err
	}
	return player, nil
}

func (r *playerRepository) GetByIDs(ctx context.Context, ids []uint) (map[uint]*models.Player, error) {
	out := make(map[uint]*models.Player, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var players []models.Player
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&players).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	for i := range players {
		out[players[i].ID] = &players[i]
	}
	return out, nil
}

// IsAdmin is read uncached so revoked rights apply immediately.
func (r *playerRepository) IsAdmin(ctx context.Context, id uint) (bool, error) {
	var admin bool
	err := r.db.WithContext(ctx).Model(&models.Player{}).
		Select("is_admin").
		Where("id = ?", id).
		Scan(&admin).Error
	if err != nil {
		return false, models.NewInternalError(err)
	}
	return admin, nil
}
