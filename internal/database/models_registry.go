package database

import "puzzlemarket/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.Player{},
		&models.Listing{},
		&models.Notification{},
		&models.Conversation{},
		&models.Message{},
		&models.PlayerBlock{},
		&models.ConversationReport{},
		&models.ModerationAction{},
		&models.Transaction{},
		&models.Rating{},
		&models.PlayerRatingSummary{},
		&models.DigestLog{},
	}
}
