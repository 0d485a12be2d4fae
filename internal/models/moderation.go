package models

import "time"

// ReportStatus is the lifecycle of a conversation report.
type ReportStatus string

const (
	ReportStatusPending  ReportStatus = "pending"
	ReportStatusResolved ReportStatus = "resolved"
)

// ConversationReport is a participant's complaint about a conversation.
type ConversationReport struct {
	ID             uint         `gorm:"primaryKey" json:"id"`
	ConversationID uint         `gorm:"not null;index" json:"conversation_id"`
	ReporterID     uint         `gorm:"not null;index" json:"reporter_id"`
	Reason         string       `gorm:"type:text;not null" json:"reason"`
	Status         ReportStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	ReportedAt     time.Time    `gorm:"not null" json:"reported_at"`
	ResolvedByID   *uint        `json:"resolved_by_id,omitempty"`
	ResolvedAt     *time.Time   `json:"resolved_at,omitempty"`
	AdminNote      string       `gorm:"type:text;default:''" json:"admin_note,omitempty"`

	Conversation *Conversation      `gorm:"foreignKey:ConversationID" json:"conversation,omitempty"`
	Actions      []ModerationAction `gorm:"foreignKey:ReportID" json:"actions,omitempty"`
}

// TableName specifies the table name for GORM.
func (ConversationReport) TableName() string {
	return "conversation_reports"
}

// ModerationActionType enumerates admin sanctions. Lift actions supersede
// the latest sanction of the matching kind; rows are never edited.
type ModerationActionType string

const (
	ModerationActionWarn     ModerationActionType = "warn"
	ModerationActionMute     ModerationActionType = "mute"
	ModerationActionBan      ModerationActionType = "ban"
	ModerationActionLiftMute ModerationActionType = "lift_mute"
	ModerationActionLiftBan  ModerationActionType = "lift_ban"
)

// Valid reports whether t is a known action type.
func (t ModerationActionType) Valid() bool {
	switch t {
	case ModerationActionWarn, ModerationActionMute, ModerationActionBan,
		ModerationActionLiftMute, ModerationActionLiftBan:
		return true
	}
	return false
}

// ModerationAction is an append-only record of an admin sanction.
type ModerationAction struct {
	ID             uint                 `gorm:"primaryKey" json:"id"`
	TargetPlayerID uint                 `gorm:"not null;index:idx_mod_actions_target,priority:1" json:"target_player_id"`
	AdminID        uint                 `gorm:"not null;index" json:"admin_id"`
	ActionType     ModerationActionType `gorm:"type:varchar(20);not null;index:idx_mod_actions_target,priority:2" json:"action_type"`
	Reason         string               `gorm:"type:text;default:''" json:"reason,omitempty"`
	PerformedAt    time.Time            `gorm:"not null;index:idx_mod_actions_target,priority:3" json:"performed_at"`
	ExpiresAt      *time.Time           `json:"expires_at,omitempty"`
	ReportID       *uint                `gorm:"index" json:"report_id,omitempty"`
}

// TableName specifies the table name for GORM.
func (ModerationAction) TableName() string {
	return "moderation_actions"
}

// ActiveAt reports whether a mute or ban is in force at now.
func (a *ModerationAction) ActiveAt(now time.Time) bool {
	if a.ActionType != ModerationActionMute && a.ActionType != ModerationActionBan {
		return false
	}
	return a.ExpiresAt == nil || a.ExpiresAt.After(now)
}
