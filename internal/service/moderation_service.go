package service

import (
	"context"
	"log/slog"
	"time"

	"puzzlemarket/internal/cache"
	"puzzlemarket/internal/models"
	"puzzlemarket/internal/observability"
	"puzzlemarket/internal/repository"
	"puzzlemarket/internal/validation"
)

// ActionInput describes a sanction an admin applies.
type ActionInput struct {
	Type           models.ModerationActionType `json:"action_type"`
	TargetPlayerID uint                        `json:"target_player_id"`
	Reason         string                      `json:"reason"`
	ExpiresAt      *time.Time                  `json:"expires_at,omitempty"`
}

// PlayerModerationDetail aggregates moderation data for admin views.
type PlayerModerationDetail struct {
	Player     *models.Player            `json:"player"`
	ActiveMute *models.ModerationAction  `json:"active_mute,omitempty"`
	ActiveBan  *models.ModerationAction  `json:"active_ban,omitempty"`
	Actions    []models.ModerationAction `json:"actions"`
	Warnings   []string                  `json:"warnings,omitempty"`
}

// ModerationService provides reporting and admin moderation logic.
type ModerationService struct {
	stores *repository.Stores
	now    Clock
}

// NewModerationService returns a new ModerationService.
func NewModerationService(stores *repository.Stores, clock Clock) *ModerationService {
	return &ModerationService{stores: stores, now: orSystemClock(clock)}
}

// Report files a pending report against a conversation the reporter takes
// part in. Reporting stays possible after blocking the counterpart.
func (s *ModerationService) Report(ctx context.Context, conversationID, reporterID uint, reason string) (*models.ConversationReport, error) {
	reason, err := validation.ReportReason(reason)
	if err != nil {
		return nil, validationError(err)
	}
	conv, err := s.stores.Conversations.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.IsParticipant(reporterID) {
		return nil, models.NewNotFoundError("Conversation", conversationID)
	}

	report := &models.ConversationReport{
		ConversationID: conv.ID,
		ReporterID:     reporterID,
		Reason:         reason,
		Status:         models.ReportStatusPending,
		ReportedAt:     s.now(),
	}
	if err := s.stores.Moderation.CreateReport(ctx, report); err != nil {
		return nil, appError(err)
	}
	slog.InfoContext(ctx, "conversation reported", "report_id", report.ID, "conversation_id", conv.ID, "reporter_id", reporterID)
	return report, nil
}

// Resolve closes a pending report and optionally applies one action that
// references it. A second resolve fails with ErrReportAlreadyResolved.
func (s *ModerationService) Resolve(ctx context.Context, reportID, adminID uint, note string, action *ActionInput) (*models.ConversationReport, error) {
	if err := s.requireAdmin(ctx, adminID); err != nil {
		return nil, err
	}
	note, err := validation.AdminNote(note)
	if err != nil {
		return nil, validationError(err)
	}

	now := s.now()
	var applied *models.ModerationAction
	err = s.stores.WithTx(ctx, func(tx *repository.Stores) error {
		report, err := tx.Moderation.GetReport(ctx, reportID)
		if err != nil {
			return err
		}
		if report.Status != models.ReportStatusPending {
			return models.ErrReportAlreadyResolved
		}
		resolved, err := tx.Moderation.ResolveReport(ctx, reportID, adminID, note, now)
		if err != nil {
			return err
		}
		if !resolved {
			return models.ErrReportAlreadyResolved
		}
		if action == nil {
			return nil
		}
		applied, err = s.buildAction(ctx, tx, adminID, *action, now)
		if err != nil {
			return err
		}
		applied.ReportID = &report.ID
		return tx.Moderation.CreateAction(ctx, applied)
	})
	if err != nil {
		return nil, appError(err)
	}

	if applied != nil {
		s.afterAction(ctx, applied)
	}
	slog.InfoContext(ctx, "report resolved", "report_id", reportID, "admin_id", adminID, "with_action", applied != nil)
	return s.stores.Moderation.GetReport(ctx, reportID)
}

// ApplyAction records a sanction that is not tied to a report.
func (s *ModerationService) ApplyAction(ctx context.Context, adminID uint, in ActionInput) (*models.ModerationAction, error) {
	if err := s.requireAdmin(ctx, adminID); err != nil {
		return nil, err
	}
	action, err := s.buildAction(ctx, s.stores, adminID, in, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.stores.Moderation.CreateAction(ctx, action); err != nil {
		return nil, appError(err)
	}
	s.afterAction(ctx, action)
	return action, nil
}

// ActiveMuteFor returns the mute currently in force, or nil.
func (s *ModerationService) ActiveMuteFor(ctx context.Context, playerID uint) (*models.ModerationAction, error) {
	action, err := activeSanction(ctx, s.stores.Moderation, playerID, models.ModerationActionMute, models.ModerationActionLiftMute, s.now())
	return action, appError(err)
}

// ActiveBanFor returns the ban currently in force, or nil. The listing
// service consults it before accepting new listings.
func (s *ModerationService) ActiveBanFor(ctx context.Context, playerID uint) (*models.ModerationAction, error) {
	action, err := activeSanction(ctx, s.stores.Moderation, playerID, models.ModerationActionBan, models.ModerationActionLiftBan, s.now())
	return action, appError(err)
}

// ListReports pages reports newest first, optionally by status.
func (s *ModerationService) ListReports(ctx context.Context, status *models.ReportStatus, limit, offset int) ([]models.ConversationReport, error) {
	reports, err := s.stores.Moderation.ListReports(ctx, status, limit, offset)
	return reports, appError(err)
}

// ActionsFor returns the full action history of a player, newest first.
func (s *ModerationService) ActionsFor(ctx context.Context, playerID uint) ([]models.ModerationAction, error) {
	actions, err := s.stores.Moderation.ActionsFor(ctx, playerID)
	return actions, appError(err)
}

// PlayerDetail returns the admin view of one player. Secondary lookups that
// fail degrade to warnings instead of failing the whole view.
func (s *ModerationService) PlayerDetail(ctx context.Context, playerID uint) (*PlayerModerationDetail, error) {
	player, err := s.stores.Players.GetByID(ctx, playerID)
	if err != nil {
		return nil, err
	}
	detail := &PlayerModerationDetail{Player: player}

	if detail.Actions, err = s.ActionsFor(ctx, playerID); err != nil {
		slog.WarnContext(ctx, "failed to load moderation history", "player_id", playerID, "err", err)
		detail.Warnings = append(detail.Warnings, "Partial data: moderation history could not be loaded.")
	}
	if detail.ActiveMute, err = s.ActiveMuteFor(ctx, playerID); err != nil {
		slog.WarnContext(ctx, "failed to load active mute", "player_id", playerID, "err", err)
		detail.Warnings = append(detail.Warnings, "Partial data: mute state could not be loaded.")
	}
	if detail.ActiveBan, err = s.ActiveBanFor(ctx, playerID); err != nil {
		slog.WarnContext(ctx, "failed to load active ban", "player_id", playerID, "err", err)
		detail.Warnings = append(detail.Warnings, "Partial data: ban state could not be loaded.")
	}
	return detail, nil
}

func (s *ModerationService) requireAdmin(ctx context.Context, playerID uint) error {
	admin, err := s.stores.Players.IsAdmin(ctx, playerID)
	if err != nil {
		return err
	}
	if !admin {
		return models.NewNotAuthorizedError("Admin rights required")
	}
	return nil
}

func (s *ModerationService) buildAction(ctx context.Context, stores *repository.Stores, adminID uint, in ActionInput, now time.Time) (*models.ModerationAction, error) {
	if !in.Type.Valid() {
		return nil, models.NewValidationError("Unknown moderation action type")
	}
	if in.TargetPlayerID == adminID {
		return nil, models.NewValidationError("You cannot sanction yourself")
	}
	if _, err := stores.Players.GetByID(ctx, in.TargetPlayerID); err != nil {
		return nil, err
	}
	reason, err := validation.ActionReason(in.Reason)
	if err != nil {
		return nil, validationError(err)
	}
	if in.ExpiresAt != nil {
		if in.Type != models.ModerationActionMute {
			return nil, models.NewValidationError("Only mutes can carry an expiry")
		}
		if !in.ExpiresAt.After(now) {
			return nil, models.NewValidationError("Expiry must be in the future")
		}
	}

	var expires *time.Time
	if in.ExpiresAt != nil {
		t := in.ExpiresAt.UTC().Truncate(time.Microsecond)
		expires = &t
	}
	return &models.ModerationAction{
		TargetPlayerID: in.TargetPlayerID,
		AdminID:        adminID,
		ActionType:     in.Type,
		Reason:         reason,
		PerformedAt:    now,
		ExpiresAt:      expires,
	}, nil
}

func (s *ModerationService) afterAction(ctx context.Context, action *models.ModerationAction) {
	cache.InvalidateStanding(ctx, action.TargetPlayerID)
	observability.ModerationActionsApplied.WithLabelValues(string(action.ActionType)).Inc()
	slog.InfoContext(ctx, "moderation action applied",
		"action_id", action.ID,
		"action_type", action.ActionType,
		"target_player_id", action.TargetPlayerID,
		"admin_id", action.AdminID,
	)
}
