package repository

import (
	"context"
	"time"

	"puzzlemarket/internal/models"
	"puzzlemarket/internal/observability"

	"gorm.io/gorm"
)

// ConversationRepository stores conversations and answers visibility queries.
type ConversationRepository interface {
	Create(ctx context.Context, conv *models.Conversation) error
	GetByID(ctx context.Context, id uint) (*models.Conversation, error)
	FindExisting(ctx context.Context, initiatorID, recipientID uint, listingID, puzzleID *uint) (*models.Conversation, error)
	TransitionFromPending(ctx context.Context, id uint, next models.ConversationStatus) (bool, error)
	TouchLastMessage(ctx context.Context, id uint, at time.Time) error
	ListFor(ctx context.Context, playerID uint, status *models.ConversationStatus) ([]models.Conversation, error)
	AcceptedForListing(ctx context.Context, listingID uint) ([]models.Conversation, error)
	PendingRequestCount(ctx context.Context, playerID uint) (int64, error)
}

type conversationRepository struct {
	db *gorm.DB
}

// NewConversationRepository returns a new ConversationRepository implementation.
func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &conversationRepository{db: db}
}

func (r *conversationRepository) Create(ctx context.Context, conv *models.Conversation) error {
	return r.db.WithContext(ctx).Create(conv).Error
}

func (r *conversationRepository) GetByID(ctx context.Context, id uint) (*models.Conversation, error) {
	var conv models.Conversation
	if err := r.db.WithContext(ctx).First(&conv, id).Error; err != nil {
		return nil, mapLookupError(err, "Conversation", id)
	}
	return &conv, nil
}

// FindExisting looks up the conversation on the same uniqueness axis the
// partial unique indexes enforce. Returns nil, nil when there is none.
func (r *conversationRepository) FindExisting(ctx context.Context, initiatorID, recipientID uint, listingID, puzzleID *uint) (*models.Conversation, error) {
	q := r.db.WithContext(ctx).
		Where("initiator_id = ? AND recipient_id = ?", initiatorID, recipientID)
	switch {
	case listingID != nil:
		q = q.Where("listing_id = ?", *listingID)
	case puzzleID != nil:
		q = q.Where("listing_id IS NULL AND puzzle_id = ?", *puzzleID)
	default:
		q = q.Where("listing_id IS NULL AND puzzle_id IS NULL")
	}

	var convs []models.Conversation
	if err := q.Limit(1).Find(&convs).Error; err != nil {
		return nil, err
	}
	if len(convs) == 0 {
		return nil, nil
	}
	return &convs[0], nil
}

// TransitionFromPending moves a pending conversation to next. It reports
// false when the row was no longer pending.
func (r *conversationRepository) TransitionFromPending(ctx context.Context, id uint, next models.ConversationStatus) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Conversation{}).
		Where("id = ? AND status = ?", id, models.ConversationStatusPending).
		Update("status", next)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *conversationRepository) TouchLastMessage(ctx context.Context, id uint, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.Conversation{}).
		Where("id = ?", id).
		Update("last_message_at", at).Error
}

// ListFor returns the player's conversations, hiding those whose
// counterpart the player blocked, newest activity first.
func (r *conversationRepository) ListFor(ctx context.Context, playerID uint, status *models.ConversationStatus) ([]models.Conversation, error) {
	defer observability.TrackQuery("list_for", "conversations")()

	q := r.db.WithContext(ctx).
		Table("conversations AS c").
		Select("c.*").
		Where("(c.initiator_id = ? OR c.recipient_id = ?)", playerID, playerID).
		Where(notBlockedByViewer, playerID, playerID)
	if status != nil {
		q = q.Where("c.status = ?", *status)
	}

	var convs []models.Conversation
	err := q.
		Order("CASE WHEN c.last_message_at IS NULL THEN 1 ELSE 0 END").
		Order("c.last_message_at DESC").
		Order("c.created_at DESC").
		Order("c.id DESC").
		Find(&convs).Error
	return convs, err
}

func (r *conversationRepository) AcceptedForListing(ctx context.Context, listingID uint) ([]models.Conversation, error) {
	var convs []models.Conversation
	err := r.db.WithContext(ctx).
		Where("listing_id = ? AND status = ?", listingID, models.ConversationStatusAccepted).
		Order("id ASC").
		Find(&convs).Error
	return convs, err
}

// PendingRequestCount counts pending requests addressed to the player from
// initiators the player has not blocked.
func (r *conversationRepository) PendingRequestCount(ctx context.Context, playerID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Table("conversations AS c").
		Where("c.recipient_id = ? AND c.status = ?", playerID, models.ConversationStatusPending).
		Where(notBlockedByViewer, playerID, playerID).
		Count(&count).Error
	return count, err
}
