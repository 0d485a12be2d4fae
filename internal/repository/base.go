// Package repository implements the data access layer for the application.
package repository

import (
	"errors"

	"puzzlemarket/internal/models"

	"gorm.io/gorm"
)

// mapLookupError turns a missing row into a NotFound AppError and anything
// else into an internal error.
func mapLookupError(err error, resource string, id interface{}) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NewNotFoundError(resource, id)
	}
	return models.NewInternalError(err)
}

// counterpartExpr yields the participant of conversation alias c that is
// not the player bound to the placeholder.
const counterpartExpr = "CASE WHEN c.initiator_id = ? THEN c.recipient_id ELSE c.initiator_id END"

// notBlockedByViewer hides conversations whose counterpart the viewer blocked.
// It binds the viewer twice.
const notBlockedByViewer = "NOT EXISTS (SELECT 1 FROM player_blocks pb WHERE pb.blocker_id = ? AND pb.blocked_id = " + counterpartExpr + ")"
