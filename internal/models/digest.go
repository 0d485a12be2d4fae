package models

import "time"

// DigestCategory is one kind of unread activity the digest reports.
type DigestCategory string

const (
	DigestCategoryUnreadMessages      DigestCategory = "unread_messages"
	DigestCategoryPendingRequests     DigestCategory = "pending_requests"
	DigestCategoryUnreadNotifications DigestCategory = "unread_notifications"
)

// DigestCategories lists every category in sweep order.
var DigestCategories = []DigestCategory{
	DigestCategoryUnreadMessages,
	DigestCategoryPendingRequests,
	DigestCategoryUnreadNotifications,
}

// DigestLog is an append-only digest record. The newest row per player holds
// the effective watermark of each category: the newest item timestamp
// already covered by a digest.
type DigestLog struct {
	ID                         uint       `gorm:"primaryKey" json:"id"`
	PlayerID                   uint       `gorm:"not null;index:idx_digest_logs_player_sent,priority:1" json:"player_id"`
	SentAt                     time.Time  `gorm:"not null;index:idx_digest_logs_player_sent,priority:2" json:"sent_at"`
	OldestUnreadMessageAt      *time.Time `gorm:"comment:watermark, newest unread message covered by this digest" json:"oldest_unread_message_at,omitempty"`
	OldestPendingRequestAt     *time.Time `gorm:"comment:watermark, newest pending request covered by this digest" json:"oldest_pending_request_at,omitempty"`
	OldestUnreadNotificationAt *time.Time `gorm:"comment:watermark, newest unread notification covered by this digest" json:"oldest_unread_notification_at,omitempty"`
}

// TableName specifies the table name for GORM.
func (DigestLog) TableName() string {
	return "digest_logs"
}

// Watermark returns the stored timestamp for category.
func (d *DigestLog) Watermark(category DigestCategory) *time.Time {
	switch category {
	case DigestCategoryUnreadMessages:
		return d.OldestUnreadMessageAt
	case DigestCategoryPendingRequests:
		return d.OldestPendingRequestAt
	case DigestCategoryUnreadNotifications:
		return d.OldestUnreadNotificationAt
	}
	return nil
}

// SetWatermark stores ts for category.
func (d *DigestLog) SetWatermark(category DigestCategory, ts *time.Time) {
	switch category {
	case DigestCategoryUnreadMessages:
		d.OldestUnreadMessageAt = ts
	case DigestCategoryPendingRequests:
		d.OldestPendingRequestAt = ts
	case DigestCategoryUnreadNotifications:
		d.OldestUnreadNotificationAt = ts
	}
}
