// Package models contains data structures for the marketplace domain models.
package models

import "time"

// ConversationStatus represents the lifecycle state of a conversation.
type ConversationStatus string

const (
	// ConversationStatusPending is a request the recipient has not answered.
	ConversationStatusPending ConversationStatus = "pending"
	// ConversationStatusAccepted allows both participants to exchange messages.
	ConversationStatusAccepted ConversationStatus = "accepted"
	// ConversationStatusIgnored is a request the recipient declined.
	ConversationStatusIgnored ConversationStatus = "ignored"
)

// Valid reports whether s is a known status.
func (s ConversationStatus) Valid() bool {
	switch s {
	case ConversationStatusPending, ConversationStatusAccepted, ConversationStatusIgnored:
		return true
	}
	return false
}

// CanTransitionTo reports whether the lifecycle allows moving from s to next.
// Only pending conversations move, and only forward.
func (s ConversationStatus) CanTransitionTo(next ConversationStatus) bool {
	return s == ConversationStatusPending &&
		(next == ConversationStatusAccepted || next == ConversationStatusIgnored)
}

// Conversation is a two-party negotiation thread, optionally anchored to a
// listing or a puzzle.
type Conversation struct {
	ID            uint               `gorm:"primaryKey" json:"id"`
	InitiatorID   uint               `gorm:"not null;index;uniqueIndex:idx_conv_listing;uniqueIndex:idx_conv_puzzle,where:listing_id IS NULL;uniqueIndex:idx_conv_direct,where:listing_id IS NULL AND puzzle_id IS NULL" json:"initiator_id"`
	RecipientID   uint               `gorm:"not null;index;uniqueIndex:idx_conv_listing;uniqueIndex:idx_conv_puzzle,where:listing_id IS NULL;uniqueIndex:idx_conv_direct,where:listing_id IS NULL AND puzzle_id IS NULL" json:"recipient_id"`
	ListingID     *uint              `gorm:"index;uniqueIndex:idx_conv_listing" json:"listing_id,omitempty"`
	PuzzleID      *uint              `gorm:"uniqueIndex:idx_conv_puzzle,where:listing_id IS NULL" json:"puzzle_id,omitempty"`
	Status        ConversationStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	CreatedAt     time.Time          `json:"created_at"`
	LastMessageAt *time.Time         `gorm:"index" json:"last_message_at,omitempty"`
}

// TableName specifies the table name for GORM.
func (Conversation) TableName() string {
	return "conversations"
}

// IsParticipant reports whether playerID is one of the two parties.
func (c *Conversation) IsParticipant(playerID uint) bool {
	return c.InitiatorID == playerID || c.RecipientID == playerID
}

// Counterpart returns the other participant's id for playerID.
func (c *Conversation) Counterpart(playerID uint) uint {
	if c.InitiatorID == playerID {
		return c.RecipientID
	}
	return c.InitiatorID
}

// ConversationSummary is the inbox read model.
type ConversationSummary struct {
	ID                 uint               `json:"id"`
	Status             ConversationStatus `json:"status"`
	ListingID          *uint              `json:"listing_id,omitempty"`
	PuzzleID           *uint              `json:"puzzle_id,omitempty"`
	IsInitiator        bool               `json:"is_initiator"`
	Counterpart        *Player            `json:"counterpart,omitempty"`
	LastMessagePreview string             `json:"last_message_preview,omitempty"`
	LastMessageAt      *time.Time         `json:"last_message_at,omitempty"`
	UnreadCount        int64              `json:"unread_count"`
	CreatedAt          time.Time          `json:"created_at"`
}
