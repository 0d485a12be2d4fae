package service

import (
	"context"
	"errors"
	"time"

	"puzzlemarket/internal/locale"
	"puzzlemarket/internal/models"
	"puzzlemarket/internal/observability"
	"puzzlemarket/internal/repository"
	"puzzlemarket/internal/validation"
)

const (
	defaultMessagePage = 50
	maxMessagePage     = 200
)

// MessageService owns the per-conversation message log.
type MessageService struct {
	stores  *repository.Stores
	catalog *locale.Catalog
	now     Clock
}

// NewMessageService returns a new MessageService.
func NewMessageService(stores *repository.Stores, catalog *locale.Catalog, clock Clock) *MessageService {
	return &MessageService{stores: stores, catalog: catalog, now: orSystemClock(clock)}
}

// Post appends a participant message to an accepted conversation.
func (s *MessageService) Post(ctx context.Context, conversationID, senderID uint, content string) (msg *models.Message, err error) {
	ctx, span := startSpan(ctx, "MessageService", "Post")
	span.SetAttributes(observability.ConversationID(conversationID), observability.PlayerID(senderID))
	defer func() {
		if err != nil {
			rejected(err)
		}
		finishSpan(span, err)
	}()

	content, err = validation.MessageContent(content)
	if err != nil {
		return nil, validationError(err)
	}

	err = s.stores.WithTx(ctx, func(tx *repository.Stores) error {
		conv, err := tx.Conversations.GetByID(ctx, conversationID)
		if err != nil {
			return err
		}
		if !conv.IsParticipant(senderID) {
			return models.NewNotFoundError("Conversation", conversationID)
		}
		msg, err = postUserMessage(ctx, tx, conv, senderID, content, s.now())
		return err
	})
	if err != nil {
		return nil, appError(err)
	}
	return msg, nil
}

// postUserMessage enforces every write gate for a participant message and
// stores it. conv must already be loaded inside the caller's transaction.
func postUserMessage(ctx context.Context, tx *repository.Stores, conv *models.Conversation, senderID uint, content string, now time.Time) (*models.Message, error) {
	if conv.Status != models.ConversationStatusAccepted {
		return nil, models.ErrConversationNotAccepted
	}
	if err := checkSenderStanding(ctx, tx, senderID, now); err != nil {
		return nil, err
	}
	senderBlocks, blockedBy, err := tx.Blocks.Between(ctx, senderID, conv.Counterpart(senderID))
	if err != nil {
		return nil, err
	}
	if blockedBy {
		return nil, models.ErrSenderBlocked
	}
	if senderBlocks {
		return nil, models.ErrBlocked
	}

	msg := models.NewMessage(conv.ID, models.UserMessage{SenderID: senderID, Content: content}, now)
	if err := tx.Messages.Create(ctx, msg); err != nil {
		return nil, err
	}
	if err := tx.Conversations.TouchLastMessage(ctx, conv.ID, now); err != nil {
		return nil, err
	}
	observability.MessagesPosted.WithLabelValues("user").Inc()
	return msg, nil
}

// checkSenderStanding refuses banned and muted players.
func checkSenderStanding(ctx context.Context, tx *repository.Stores, playerID uint, now time.Time) error {
	ban, err := activeSanction(ctx, tx.Moderation, playerID, models.ModerationActionBan, models.ModerationActionLiftBan, now)
	if err != nil {
		return err
	}
	if ban != nil {
		return models.ErrPlayerBanned
	}
	mute, err := activeSanction(ctx, tx.Moderation, playerID, models.ModerationActionMute, models.ModerationActionLiftMute, now)
	if err != nil {
		return err
	}
	if mute != nil {
		return models.ErrSenderMuted
	}
	return nil
}

func rejected(err error) {
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		observability.MessagesRejected.WithLabelValues(appErr.Code).Inc()
		return
	}
	observability.MessagesRejected.WithLabelValues(models.CodeInternal).Inc()
}

// MarkRead stamps every unread counterpart message as read. Calling it again
// changes nothing.
func (s *MessageService) MarkRead(ctx context.Context, conversationID, readerID uint) (int64, error) {
	if _, err := visibleConversation(ctx, s.stores, conversationID, readerID); err != nil {
		return 0, err
	}
	n, err := s.stores.Messages.MarkRead(ctx, conversationID, readerID, s.now())
	return n, appError(err)
}

// UnreadCountFor is the inbox badge count.
func (s *MessageService) UnreadCountFor(ctx context.Context, playerID uint) (int64, error) {
	n, err := s.stores.Messages.UnreadCountFor(ctx, playerID)
	return n, appError(err)
}

// List returns one page of messages rendered for the viewer. beforeID pages
// backwards; zero starts from the newest message.
func (s *MessageService) List(ctx context.Context, conversationID, viewerID uint, limit int, beforeID uint, localeCode string) ([]models.MessageView, error) {
	conv, err := visibleConversation(ctx, s.stores, conversationID, viewerID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultMessagePage
	}
	if limit > maxMessagePage {
		limit = maxMessagePage
	}

	messages, err := s.stores.Messages.List(ctx, conv.ID, limit, beforeID)
	if err != nil {
		return nil, appError(err)
	}

	counterpartName := ""
	if counterpart, err := s.stores.Players.GetByID(ctx, conv.Counterpart(viewerID)); err == nil {
		counterpartName = counterpart.DisplayName
	}

	views := make([]models.MessageView, 0, len(messages))
	for i := range messages {
		views = append(views, s.render(&messages[i], conv, viewerID, counterpartName, localeCode))
	}
	return views, nil
}

func (s *MessageService) render(m *models.Message, conv *models.Conversation, viewerID uint, counterpartName, localeCode string) models.MessageView {
	view := models.MessageView{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		SentAt:         m.SentAt,
		ReadAt:         m.ReadAt,
	}
	switch body := m.Body().(type) {
	case models.UserMessage:
		view.Text = body.Content
		view.IsMine = body.SenderID == viewerID
	case models.SystemMessage:
		view.IsSystem = true
		view.SystemType = m.SystemMessageType
		view.Text = renderSystemMessage(s.catalog, localeCode, body, conv, viewerID, counterpartName)
	}
	return view
}

// renderSystemMessage picks the text variant from the viewer's relation to
// the message target. Nothing rendered is ever persisted.
func renderSystemMessage(catalog *locale.Catalog, localeCode string, body models.SystemMessage, conv *models.Conversation, viewerID uint, counterpartName string) string {
	variant := locale.VariantOther
	if body.TargetPlayerID != nil {
		switch target := *body.TargetPlayerID; {
		case target == viewerID:
			variant = locale.VariantTarget
		case target == conv.Counterpart(viewerID):
			variant = locale.VariantCounterpart
		}
	}
	if catalog == nil {
		return string(body.Type)
	}
	return catalog.Render(localeCode, string(body.Type), variant, counterpartName)
}
