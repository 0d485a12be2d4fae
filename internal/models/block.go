package models

import "time"

// PlayerBlock is a directional block: BlockerID no longer wants contact
// with BlockedID.
type PlayerBlock struct {
	BlockerID uint      `gorm:"primaryKey;autoIncrement:false" json:"blocker_id"`
	BlockedID uint      `gorm:"primaryKey;autoIncrement:false;index" json:"blocked_id"`
	BlockedAt time.Time `gorm:"not null" json:"blocked_at"`

	Blocked *Player `gorm:"foreignKey:BlockedID" json:"blocked,omitempty"`
}

// TableName specifies the table name for GORM.
func (PlayerBlock) TableName() string {
	return "player_blocks"
}
