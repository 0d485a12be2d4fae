package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"unicode/utf8"

	"puzzlemarket/internal/database"
	"puzzlemarket/internal/featureflags"
	"puzzlemarket/internal/locale"
	"puzzlemarket/internal/models"
	"puzzlemarket/internal/observability"
	"puzzlemarket/internal/repository"
	"puzzlemarket/internal/validation"
)

const previewLength = 120

// StartInput is the input for starting or resuming a conversation.
type StartInput struct {
	InitiatorID uint
	RecipientID uint
	ListingID   *uint
	PuzzleID    *uint
	Message     string
}

// StartResult reports the conversation and whether this call created it.
type StartResult struct {
	Conversation *models.Conversation `json:"conversation"`
	Created      bool                 `json:"created"`
	Message      *models.Message      `json:"message,omitempty"`
}

// ConversationService is the conversation gateway: it creates and dedups
// threads and owns the request lifecycle.
type ConversationService struct {
	stores  *repository.Stores
	flags   *featureflags.Manager
	catalog *locale.Catalog
	now     Clock
}

// NewConversationService returns a new ConversationService.
func NewConversationService(stores *repository.Stores, flags *featureflags.Manager, catalog *locale.Catalog, clock Clock) *ConversationService {
	return &ConversationService{stores: stores, flags: flags, catalog: catalog, now: orSystemClock(clock)}
}

// StartOrGet returns the conversation between the two players in the given
// context, creating a pending one if none exists. An optional first message
// is stored with a new request, posted normally into an accepted thread and
// dropped for pending or ignored ones.
func (s *ConversationService) StartOrGet(ctx context.Context, in StartInput) (res *StartResult, err error) {
	ctx, span := startSpan(ctx, "ConversationService", "StartOrGet")
	span.SetAttributes(observability.PlayerID(in.InitiatorID))
	defer func() {
		if res != nil {
			span.SetAttributes(observability.ConversationID(res.Conversation.ID))
		}
		finishSpan(span, err)
	}()

	if in.InitiatorID == in.RecipientID {
		return nil, models.ErrSelfConversation
	}
	if _, err := s.stores.Players.GetByID(ctx, in.RecipientID); err != nil {
		return nil, err
	}
	if in.ListingID != nil {
		listing, err := s.stores.Listings.GetByID(ctx, *in.ListingID)
		if err != nil {
			return nil, err
		}
		if listing.SellerID != in.InitiatorID && listing.SellerID != in.RecipientID {
			return nil, models.NewValidationError("Listing does not belong to either participant")
		}
		puzzleID := listing.PuzzleID
		in.PuzzleID = &puzzleID
	}

	content := strings.TrimSpace(in.Message)
	if content != "" {
		if content, err = validation.MessageContent(content); err != nil {
			return nil, validationError(err)
		}
	}

	now := s.now()
	// Muted players may still open a request; they just cannot say anything.
	if err := checkSenderStanding(ctx, s.stores, in.InitiatorID, now); err != nil &&
		(content != "" || !errors.Is(err, models.ErrSenderMuted)) {
		return nil, appError(err)
	}
	initiatorBlocks, recipientBlocks, err := s.stores.Blocks.Between(ctx, in.InitiatorID, in.RecipientID)
	if err != nil {
		return nil, appError(err)
	}
	if initiatorBlocks || recipientBlocks {
		return nil, models.ErrBlocked
	}

	res = &StartResult{}
	err = s.stores.WithTx(ctx, func(tx *repository.Stores) error {
		existing, err := tx.Conversations.FindExisting(ctx, in.InitiatorID, in.RecipientID, in.ListingID, in.PuzzleID)
		if err != nil {
			return err
		}
		if existing != nil {
			res.Conversation = existing
			if content != "" && existing.Status == models.ConversationStatusAccepted {
				res.Message, err = postUserMessage(ctx, tx, existing, in.InitiatorID, content, now)
			}
			return err
		}

		conv := &models.Conversation{
			InitiatorID: in.InitiatorID,
			RecipientID: in.RecipientID,
			ListingID:   in.ListingID,
			PuzzleID:    in.PuzzleID,
			Status:      models.ConversationStatusPending,
			CreatedAt:   now,
		}
		if err := tx.Conversations.Create(ctx, conv); err != nil {
			return err
		}
		res.Conversation = conv
		res.Created = true
		if content == "" {
			return nil
		}

		msg := models.NewMessage(conv.ID, models.UserMessage{SenderID: in.InitiatorID, Content: content}, now)
		if err := tx.Messages.Create(ctx, msg); err != nil {
			return err
		}
		if err := tx.Conversations.TouchLastMessage(ctx, conv.ID, now); err != nil {
			return err
		}
		conv.LastMessageAt = &now
		res.Message = msg
		observability.MessagesPosted.WithLabelValues("user").Inc()
		return nil
	})

	if err != nil && database.IsUniqueViolation(err) {
		// A concurrent request created the row first.
		existing, findErr := s.stores.Conversations.FindExisting(ctx, in.InitiatorID, in.RecipientID, in.ListingID, in.PuzzleID)
		if findErr != nil || existing == nil {
			return nil, models.ErrDuplicateConversation
		}
		return &StartResult{Conversation: existing}, nil
	}
	if err != nil {
		return nil, appError(err)
	}

	if res.Created {
		observability.ConversationsStarted.WithLabelValues(conversationContext(in)).Inc()
		slog.InfoContext(ctx, "conversation started",
			"conversation_id", res.Conversation.ID,
			"initiator_id", in.InitiatorID,
			"recipient_id", in.RecipientID,
		)
	}
	return res, nil
}

func conversationContext(in StartInput) string {
	switch {
	case in.ListingID != nil:
		return "listing"
	case in.PuzzleID != nil:
		return "puzzle"
	}
	return "direct"
}

// Respond lets the recipient accept or ignore a pending request. Answered
// requests never change again.
func (s *ConversationService) Respond(ctx context.Context, conversationID, actorID uint, decision models.ConversationStatus) (*models.Conversation, error) {
	if decision != models.ConversationStatusAccepted && decision != models.ConversationStatusIgnored {
		return nil, models.NewValidationError("Decision must be accepted or ignored")
	}
	conv, err := visibleConversation(ctx, s.stores, conversationID, actorID)
	if err != nil {
		return nil, err
	}
	if conv.RecipientID != actorID || !conv.Status.CanTransitionTo(decision) {
		return nil, models.NewNotAuthorizedError("Only the recipient can answer a pending request")
	}

	now := s.now()
	err = s.stores.WithTx(ctx, func(tx *repository.Stores) error {
		moved, err := tx.Conversations.TransitionFromPending(ctx, conv.ID, decision)
		if err != nil {
			return err
		}
		if !moved {
			return models.NewNotAuthorizedError("Only the recipient can answer a pending request")
		}
		if decision == models.ConversationStatusAccepted && s.flags.Enabled(featureflags.ConversationSystemMessages, actorID) {
			initiator := conv.InitiatorID
			_, err = postSystemMessage(ctx, tx, conv.ID, models.SystemMessageRequestAccepted, &initiator, now)
		}
		return err
	})
	if err != nil {
		return nil, appError(err)
	}

	slog.InfoContext(ctx, "conversation request answered", "conversation_id", conv.ID, "decision", decision)
	return s.stores.Conversations.GetByID(ctx, conv.ID)
}

// Get returns one conversation summary for a participant.
func (s *ConversationService) Get(ctx context.Context, conversationID, viewerID uint, localeCode string) (*models.ConversationSummary, error) {
	conv, err := visibleConversation(ctx, s.stores, conversationID, viewerID)
	if err != nil {
		return nil, err
	}
	summaries, err := s.summarize(ctx, []models.Conversation{*conv}, viewerID, localeCode)
	if err != nil {
		return nil, err
	}
	return &summaries[0], nil
}

// ListFor returns the viewer's inbox, newest activity first.
func (s *ConversationService) ListFor(ctx context.Context, playerID uint, status *models.ConversationStatus, localeCode string) ([]models.ConversationSummary, error) {
	if status != nil && !status.Valid() {
		return nil, models.NewValidationError("Unknown conversation status")
	}
	convs, err := s.stores.Conversations.ListFor(ctx, playerID, status)
	if err != nil {
		return nil, appError(err)
	}
	return s.summarize(ctx, convs, playerID, localeCode)
}

// PendingRequestCount is the request badge count.
func (s *ConversationService) PendingRequestCount(ctx context.Context, playerID uint) (int64, error) {
	n, err := s.stores.Conversations.PendingRequestCount(ctx, playerID)
	return n, appError(err)
}

func (s *ConversationService) summarize(ctx context.Context, convs []models.Conversation, viewerID uint, localeCode string) ([]models.ConversationSummary, error) {
	ids := make([]uint, 0, len(convs))
	counterpartIDs := make([]uint, 0, len(convs))
	for i := range convs {
		ids = append(ids, convs[i].ID)
		counterpartIDs = append(counterpartIDs, convs[i].Counterpart(viewerID))
	}

	players, err := s.stores.Players.GetByIDs(ctx, counterpartIDs)
	if err != nil {
		return nil, err
	}
	latest, err := s.stores.Messages.LatestByConversation(ctx, ids)
	if err != nil {
		return nil, appError(err)
	}
	unread, err := s.stores.Messages.UnreadByConversation(ctx, viewerID, ids)
	if err != nil {
		return nil, appError(err)
	}

	out := make([]models.ConversationSummary, 0, len(convs))
	for i := range convs {
		conv := &convs[i]
		counterpart := players[conv.Counterpart(viewerID)]
		summary := models.ConversationSummary{
			ID:            conv.ID,
			Status:        conv.Status,
			ListingID:     conv.ListingID,
			PuzzleID:      conv.PuzzleID,
			IsInitiator:   conv.InitiatorID == viewerID,
			Counterpart:   counterpart,
			LastMessageAt: conv.LastMessageAt,
			UnreadCount:   unread[conv.ID],
			CreatedAt:     conv.CreatedAt,
		}
		if msg, ok := latest[conv.ID]; ok {
			summary.LastMessagePreview = s.preview(msg, conv, viewerID, counterpart, localeCode)
		}
		out = append(out, summary)
	}
	return out, nil
}

func (s *ConversationService) preview(msg *models.Message, conv *models.Conversation, viewerID uint, counterpart *models.Player, localeCode string) string {
	switch body := msg.Body().(type) {
	case models.SystemMessage:
		name := ""
		if counterpart != nil {
			name = counterpart.DisplayName
		}
		return renderSystemMessage(s.catalog, localeCode, body, conv, viewerID, name)
	case models.UserMessage:
		return truncateRunes(body.Content, previewLength)
	}
	return ""
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n-1]) + "…"
}
