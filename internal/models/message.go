package models

import "time"

// SystemMessageType identifies a system message template. Only the type and
// the target player are persisted; text is rendered per viewer.
type SystemMessageType string

const (
	SystemMessageRequestAccepted    SystemMessageType = "request_accepted"
	SystemMessageListingReserved    SystemMessageType = "listing_reserved"
	SystemMessageReservationRemoved SystemMessageType = "listing_reservation_removed"
	SystemMessageListingSold        SystemMessageType = "listing_sold"
)

// Valid reports whether t is a known system message type.
func (t SystemMessageType) Valid() bool {
	switch t {
	case SystemMessageRequestAccepted, SystemMessageListingReserved,
		SystemMessageReservationRemoved, SystemMessageListingSold:
		return true
	}
	return false
}

// Message is one row of a conversation's append-only log. SenderID is nil
// only for system messages.
type Message struct {
	ID                          uint               `gorm:"primaryKey" json:"id"`
	ConversationID              uint               `gorm:"not null;index:idx_messages_conv_sent,priority:1" json:"conversation_id"`
	SenderID                    *uint              `gorm:"index" json:"sender_id,omitempty"`
	Content                     string             `gorm:"type:text;not null;default:''" json:"content,omitempty"`
	SentAt                      time.Time          `gorm:"not null;index:idx_messages_conv_sent,priority:2" json:"sent_at"`
	ReadAt                      *time.Time         `json:"read_at,omitempty"`
	SystemMessageType           *SystemMessageType `gorm:"type:varchar(40)" json:"system_message_type,omitempty"`
	SystemMessageTargetPlayerID *uint              `json:"system_message_target_player_id,omitempty"`
}

// TableName specifies the table name for GORM.
func (Message) TableName() string {
	return "messages"
}

// MessageBody is the domain view of a message row: either a UserMessage or
// a SystemMessage.
type MessageBody interface {
	isMessageBody()
}

// UserMessage is free text written by a participant.
type UserMessage struct {
	SenderID uint
	Content  string
}

// SystemMessage is a platform event rendered at read time.
type SystemMessage struct {
	Type           SystemMessageType
	TargetPlayerID *uint
}

func (UserMessage) isMessageBody()   {}
func (SystemMessage) isMessageBody() {}

// Body decodes the row into its variant.
func (m *Message) Body() MessageBody {
	if m.SenderID == nil {
		sm := SystemMessage{TargetPlayerID: m.SystemMessageTargetPlayerID}
		if m.SystemMessageType != nil {
			sm.Type = *m.SystemMessageType
		}
		return sm
	}
	return UserMessage{SenderID: *m.SenderID, Content: m.Content}
}

// IsSystem reports whether the message was written by the platform.
func (m *Message) IsSystem() bool {
	return m.SenderID == nil
}

// NewMessage builds a row from a body variant.
func NewMessage(conversationID uint, body MessageBody, sentAt time.Time) *Message {
	msg := &Message{ConversationID: conversationID, SentAt: sentAt}
	switch b := body.(type) {
	case UserMessage:
		sender := b.SenderID
		msg.SenderID = &sender
		msg.Content = b.Content
	case SystemMessage:
		t := b.Type
		msg.SystemMessageType = &t
		msg.SystemMessageTargetPlayerID = b.TargetPlayerID
	}
	return msg
}

// MessageView is a message rendered for one viewer.
type MessageView struct {
	ID             uint               `json:"id"`
	ConversationID uint               `json:"conversation_id"`
	SenderID       *uint              `json:"sender_id,omitempty"`
	IsSystem       bool               `json:"is_system"`
	SystemType     *SystemMessageType `json:"system_type,omitempty"`
	Text           string             `json:"text"`
	SentAt         time.Time          `json:"sent_at"`
	ReadAt         *time.Time         `json:"read_at,omitempty"`
	IsMine         bool               `json:"is_mine"`
}
