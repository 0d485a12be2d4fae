package repository

import (
	"context"
	"fmt"
	"time"

	"puzzlemarket/internal/models"
	"puzzlemarket/internal/observability"

	"gorm.io/gorm"
)

// DigestItem is one unread item that qualifies a player for a digest.
type DigestItem struct {
	PlayerID uint
	ItemAt   time.Time
}

// DigestWatermarkStore reads and appends the per-player digest log.
type DigestWatermarkStore interface {
	LastWatermark(ctx context.Context, playerID uint, category models.DigestCategory) (*time.Time, error)
	Latest(ctx context.Context, playerID uint) (*models.DigestLog, error)
	Append(ctx context.Context, log *models.DigestLog) error
}

// DigestRepository adds the candidate scans used by the sweep.
type DigestRepository interface {
	DigestWatermarkStore
	Candidates(ctx context.Context, category models.DigestCategory, cutoff time.Time) ([]DigestItem, error)
}

type digestRepository struct {
	db *gorm.DB
}

// NewDigestRepository returns a new DigestRepository implementation.
func NewDigestRepository(db *gorm.DB) DigestRepository {
	return &digestRepository{db: db}
}

var watermarkColumns = map[models.DigestCategory]string{
	models.DigestCategoryUnreadMessages:      "oldest_unread_message_at",
	models.DigestCategoryPendingRequests:     "oldest_pending_request_at",
	models.DigestCategoryUnreadNotifications: "oldest_unread_notification_at",
}

// Latest returns the newest log row for the player, or nil if none exists.
func (r *digestRepository) Latest(ctx context.Context, playerID uint) (*models.DigestLog, error) {
	var logs []models.DigestLog
	err := r.db.WithContext(ctx).
		Where("player_id = ?", playerID).
		Order("sent_at DESC").
		Order("id DESC").
		Limit(1).
		Find(&logs).Error
	if err != nil || len(logs) == 0 {
		return nil, err
	}
	return &logs[0], nil
}

// LastWatermark returns nil when the player was never digested for category.
func (r *digestRepository) LastWatermark(ctx context.Context, playerID uint, category models.DigestCategory) (*time.Time, error) {
	if _, ok := watermarkColumns[category]; !ok {
		return nil, models.NewValidationError(fmt.Sprintf("unknown digest category %q", category))
	}
	latest, err := r.Latest(ctx, playerID)
	if err != nil || latest == nil {
		return nil, err
	}
	return latest.Watermark(category), nil
}

func (r *digestRepository) Append(ctx context.Context, log *models.DigestLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

// notCovered filters out items at or before the player's latest watermark
// for column. playerExpr and itemExpr are SQL expressions of the outer row.
func notCovered(column, playerExpr, itemExpr string) string {
	return fmt.Sprintf(`NOT EXISTS (
		SELECT 1 FROM digest_logs d
		WHERE d.id = (SELECT d2.id FROM digest_logs d2 WHERE d2.player_id = %[2]s ORDER BY d2.sent_at DESC, d2.id DESC LIMIT 1)
		AND d.%[1]s IS NOT NULL AND d.%[1]s >= %[3]s)`, column, playerExpr, itemExpr)
}

const messageReceiverExpr = "CASE WHEN c.initiator_id = m.sender_id THEN c.recipient_id ELSE c.initiator_id END"

// Candidates returns every item of category created at or before cutoff
// that is strictly newer than its player's watermark.
func (r *digestRepository) Candidates(ctx context.Context, category models.DigestCategory, cutoff time.Time) ([]DigestItem, error) {
	column, ok := watermarkColumns[category]
	if !ok {
		return nil, models.NewValidationError(fmt.Sprintf("unknown digest category %q", category))
	}

	var query string
	var table string
	switch category {
	case models.DigestCategoryUnreadMessages:
		table = "messages"
		query = `SELECT ` + messageReceiverExpr + ` AS player_id, m.sent_at AS item_at
			FROM messages m
			JOIN conversations c ON c.id = m.conversation_id
			WHERE c.status = 'accepted'
			AND m.sender_id IS NOT NULL
			AND m.read_at IS NULL
			AND m.sent_at <= ?
			AND NOT EXISTS (SELECT 1 FROM player_blocks pb WHERE pb.blocker_id = ` + messageReceiverExpr + ` AND pb.blocked_id = m.sender_id)
			AND ` + notCovered(column, messageReceiverExpr, "m.sent_at")
	case models.DigestCategoryPendingRequests:
		table = "conversations"
		query = `SELECT c.recipient_id AS player_id, c.created_at AS item_at
			FROM conversations c
			WHERE c.status = 'pending'
			AND c.created_at <= ?
			AND NOT EXISTS (SELECT 1 FROM player_blocks pb WHERE pb.blocker_id = c.recipient_id AND pb.blocked_id = c.initiator_id)
			AND ` + notCovered(column, "c.recipient_id", "c.created_at")
	default:
		table = "notifications"
		query = `SELECT n.player_id AS player_id, n.created_at AS item_at
			FROM notifications n
			WHERE n.read_at IS NULL
			AND n.created_at <= ?
			AND ` + notCovered(column, "n.player_id", "n.created_at")
	}

	defer observability.TrackQuery("digest_candidates", table)()

	var items []DigestItem
	if err := r.db.WithContext(ctx).Raw(query+" ORDER BY player_id, item_at", cutoff).Scan(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
