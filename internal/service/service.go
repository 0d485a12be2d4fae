// Package service implements the marketplace components: conversations,
// messages, blocks, moderation, the transaction ledger, ratings, player
// standing and the digest sweep.
package service

import (
	"context"
	"errors"
	"time"

	"puzzlemarket/internal/models"
	"puzzlemarket/internal/observability"
	"puzzlemarket/internal/repository"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Clock returns the current time. Services only ever see UTC.
type Clock func() time.Time

// SystemClock is the production clock, truncated to the microsecond
// precision the database keeps.
func SystemClock() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

func orSystemClock(c Clock) Clock {
	if c == nil {
		return SystemClock
	}
	return c
}

// appError passes AppErrors through and hides everything else behind an
// internal error.
func appError(err error) error {
	if err == nil {
		return nil
	}
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return models.NewInternalError(err)
}

func validationError(err error) error {
	if err == nil {
		return nil
	}
	return models.NewValidationError(err.Error())
}

func startSpan(ctx context.Context, component, method string) (context.Context, trace.Span) {
	return observability.GetTraceLayer().TraceServiceCall(ctx, component, method)
}

// finishSpan records err on span before ending it.
func finishSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// visibleConversation loads a conversation the viewer may see. Strangers
// and viewers who blocked the counterpart get NotFound, never a hint that
// the thread exists.
func visibleConversation(ctx context.Context, stores *repository.Stores, conversationID, viewerID uint) (*models.Conversation, error) {
	conv, err := stores.Conversations.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.IsParticipant(viewerID) {
		return nil, models.NewNotFoundError("Conversation", conversationID)
	}
	blocked, err := stores.Blocks.IsBlocked(ctx, viewerID, conv.Counterpart(viewerID))
	if err != nil {
		return nil, appError(err)
	}
	if blocked {
		return nil, models.NewNotFoundError("Conversation", conversationID)
	}
	return conv, nil
}

// activeSanction returns the newest unexpired action of kind that no later
// lift action superseded.
func activeSanction(ctx context.Context, repo repository.ModerationRepository, playerID uint, kind, lift models.ModerationActionType, now time.Time) (*models.ModerationAction, error) {
	lifted, err := repo.LatestAction(ctx, playerID, lift)
	if err != nil {
		return nil, err
	}
	var after *time.Time
	if lifted != nil {
		after = &lifted.PerformedAt
	}
	return repo.ActiveAction(ctx, playerID, kind, now, after)
}

// postSystemMessage appends a system message without the participant
// gates; these are platform events, not speech.
func postSystemMessage(ctx context.Context, stores *repository.Stores, conversationID uint, msgType models.SystemMessageType, target *uint, now time.Time) (*models.Message, error) {
	msg := models.NewMessage(conversationID, models.SystemMessage{Type: msgType, TargetPlayerID: target}, now)
	if err := stores.Messages.Create(ctx, msg); err != nil {
		return nil, err
	}
	if err := stores.Conversations.TouchLastMessage(ctx, conversationID, now); err != nil {
		return nil, err
	}
	observability.MessagesPosted.WithLabelValues(string(msgType)).Inc()
	return msg, nil
}
