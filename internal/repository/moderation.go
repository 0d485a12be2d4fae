package repository

import (
	"context"
	"time"

	"puzzlemarket/internal/models"

	"gorm.io/gorm"
)

// ModerationRepository stores reports and the append-only action log.
type ModerationRepository interface {
	CreateReport(ctx context.Context, report *models.ConversationReport) error
	GetReport(ctx context.Context, id uint) (*models.ConversationReport, error)
	ResolveReport(ctx context.Context, id, adminID uint, note string, at time.Time) (bool, error)
	ListReports(ctx context.Context, status *models.ReportStatus, limit, offset int) ([]models.ConversationReport, error)
	CreateAction(ctx context.Context, action *models.ModerationAction) error
	LatestAction(ctx context.Context, playerID uint, types ...models.ModerationActionType) (*models.ModerationAction, error)
	ActiveAction(ctx context.Context, playerID uint, actionType models.ModerationActionType, now time.Time, after *time.Time) (*models.ModerationAction, error)
	ActionsFor(ctx context.Context, playerID uint) ([]models.ModerationAction, error)
}

type moderationRepository struct {
	db *gorm.DB
}

// NewModerationRepository returns a new ModerationRepository implementation.
func NewModerationRepository(db *gorm.DB) ModerationRepository {
	return &moderationRepository{db: db}
}

func (r *moderationRepository) CreateReport(ctx context.Context, report *models.ConversationReport) error {
	return r.db.WithContext(ctx).Create(report).Error
}

func (r *moderationRepository) GetReport(ctx context.Context, id uint) (*models.ConversationReport, error) {
	var report models.ConversationReport
	err := r.db.WithContext(ctx).
		Preload("Actions", func(db *gorm.DB) *gorm.DB { return db.Order("performed_at ASC") }).
		First(&report, id).Error
	if err != nil {
		return nil, mapLookupError(err, "Report", id)
	}
	return &report, nil
}

// ResolveReport flips a pending report to resolved. It reports false when
// the report was not pending, so concurrent resolves cannot both win.
func (r *moderationRepository) ResolveReport(ctx context.Context, id, adminID uint, note string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.ConversationReport{}).
		Where("id = ? AND status = ?", id, models.ReportStatusPending).
		Updates(map[string]interface{}{
			"status":         models.ReportStatusResolved,
			"resolved_by_id": adminID,
			"resolved_at":    at,
			"admin_note":     note,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *moderationRepository) ListReports(ctx context.Context, status *models.ReportStatus, limit, offset int) ([]models.ConversationReport, error) {
	q := r.db.WithContext(ctx).Model(&models.ConversationReport{})
	if status != nil {
		q = q.Where("status = ?", *status)
	}
	var reports []models.ConversationReport
	err := q.Order("reported_at DESC").Order("id DESC").Limit(limit).Offset(offset).Find(&reports).Error
	return reports, err
}

func (r *moderationRepository) CreateAction(ctx context.Context, action *models.ModerationAction) error {
	return r.db.WithContext(ctx).Create(action).Error
}

// LatestAction returns the newest action of the given types, or nil.
func (r *moderationRepository) LatestAction(ctx context.Context, playerID uint, types ...models.ModerationActionType) (*models.ModerationAction, error) {
	var actions []models.ModerationAction
	err := r.db.WithContext(ctx).
		Where("target_player_id = ? AND action_type IN ?", playerID, types).
		Order("performed_at DESC").
		Order("id DESC").
		Limit(1).
		Find(&actions).Error
	if err != nil || len(actions) == 0 {
		return nil, err
	}
	return &actions[0], nil
}

// ActiveAction returns the newest action of actionType that is unexpired at
// now and, when after is set, performed strictly after it.
func (r *moderationRepository) ActiveAction(ctx context.Context, playerID uint, actionType models.ModerationActionType, now time.Time, after *time.Time) (*models.ModerationAction, error) {
	q := r.db.WithContext(ctx).
		Where("target_player_id = ? AND action_type = ?", playerID, actionType).
		Where("(expires_at IS NULL OR expires_at > ?)", now).
		Where("performed_at <= ?", now)
	if after != nil {
		q = q.Where("performed_at > ?", *after)
	}
	var actions []models.ModerationAction
	if err := q.Order("performed_at DESC").Order("id DESC").Limit(1).Find(&actions).Error; err != nil {
		return nil, err
	}
	if len(actions) == 0 {
		return nil, nil
	}
	return &actions[0], nil
}

func (r *moderationRepository) ActionsFor(ctx context.Context, playerID uint) ([]models.ModerationAction, error) {
	var actions []models.ModerationAction
	err := r.db.WithContext(ctx).
		Where("target_player_id = ?", playerID).
		Order("performed_at DESC").
		Order("id DESC").
		Find(&actions).Error
	return actions, err
}
