package repository

import (
	"context"
	"time"

	"puzzlemarket/internal/models"

	"gorm.io/gorm"
)

// MessageRepository stores the append-only message log.
type MessageRepository interface {
	Create(ctx context.Context, msg *models.Message) error
	List(ctx context.Context, conversationID uint, limit int, beforeID uint) ([]models.Message, error)
	LatestByConversation(ctx context.Context, conversationIDs []uint) (map[uint]*models.Message, error)
	UnreadByConversation(ctx context.Context, readerID uint, conversationIDs []uint) (map[uint]int64, error)
	MarkRead(ctx context.Context, conversationID, readerID uint, at time.Time) (int64, error)
	UnreadCountFor(ctx context.Context, playerID uint) (int64, error)
}

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository returns a new MessageRepository implementation.
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Create(ctx context.Context, msg *models.Message) error {
	return r.db.WithContext(ctx).Create(msg).Error
}

// List returns up to limit messages older than beforeID (0 = newest),
// in chronological order.
func (r *messageRepository) List(ctx context.Context, conversationID uint, limit int, beforeID uint) ([]models.Message, error) {
	q := r.db.WithContext(ctx).Where("conversation_id = ?", conversationID)
	if beforeID > 0 {
		q = q.Where("id < ?", beforeID)
	}

	var messages []models.Message
	if err := q.Order("sent_at DESC").Order("id DESC").Limit(limit).Find(&messages).Error; err != nil {
		return nil, err
	}

	// Fetched newest first to page from the end; callers read oldest first.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (r *messageRepository) LatestByConversation(ctx context.Context, conversationIDs []uint) (map[uint]*models.Message, error) {
	out := make(map[uint]*models.Message, len(conversationIDs))
	if len(conversationIDs) == 0 {
		return out, nil
	}
	var messages []models.Message
	err := r.db.WithContext(ctx).
		Table("messages AS m").
		Select("m.*").
		Where("m.conversation_id IN ?", conversationIDs).
		Where(`m.id = (SELECT m2.id FROM messages m2 WHERE m2.conversation_id = m.conversation_id
			ORDER BY m2.sent_at DESC, m2.id DESC LIMIT 1)`).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	for i := range messages {
		out[messages[i].ConversationID] = &messages[i]
	}
	return out, nil
}

func (r *messageRepository) UnreadByConversation(ctx context.Context, readerID uint, conversationIDs []uint) (map[uint]int64, error) {
	out := make(map[uint]int64, len(conversationIDs))
	if len(conversationIDs) == 0 {
		return out, nil
	}
	var rows []struct {
		ConversationID uint
		Unread         int64
	}
	err := r.db.WithContext(ctx).Model(&models.Message{}).
		Select("conversation_id, COUNT(*) AS unread").
		Where("conversation_id IN ?", conversationIDs).
		Where("sender_id IS NOT NULL AND sender_id <> ? AND read_at IS NULL", readerID).
		Group("conversation_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ConversationID] = row.Unread
	}
	return out, nil
}

// MarkRead stamps read_at on the counterpart's unread messages. System
// messages have no sender and are never counted as unread.
func (r *messageRepository) MarkRead(ctx context.Context, conversationID, readerID uint, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Message{}).
		Where("conversation_id = ? AND read_at IS NULL", conversationID).
		Where("sender_id IS NOT NULL AND sender_id <> ?", readerID).
		Update("read_at", at)
	return res.RowsAffected, res.Error
}

// UnreadCountFor counts unread messages across the player's accepted
// conversations, ignoring conversations whose counterpart the player blocked.
func (r *messageRepository) UnreadCountFor(ctx context.Context, playerID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Table("messages AS m").
		Joins("JOIN conversations c ON c.id = m.conversation_id").
		Where("c.status = ?", models.ConversationStatusAccepted).
		Where("(c.initiator_id = ? OR c.recipient_id = ?)", playerID, playerID).
		Where("m.sender_id IS NOT NULL AND m.sender_id <> ? AND m.read_at IS NULL", playerID).
		Where(notBlockedByViewer, playerID, playerID).
		Count(&count).Error
	return count, err
}
