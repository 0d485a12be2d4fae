package server

import (
	"puzzlemarket/internal/models"
	"puzzlemarket/internal/service"

	"github.com/gofiber/fiber/v2"
)

// StartConversationRequest opens a listing- or puzzle-anchored thread.
type StartConversationRequest struct {
	RecipientID uint   `json:"recipient_id"`
	ListingID   *uint  `json:"listing_id,omitempty"`
	PuzzleID    *uint  `json:"puzzle_id,omitempty"`
	Message     string `json:"message,omitempty"`
}

// RespondRequest carries the recipient's decision on a pending request.
type RespondRequest struct {
	Decision string `json:"decision"`
}

// StartConversation handles POST /api/conversations
// @Summary Start or resume a conversation
// @Description Returns the existing thread for the same players and listing/puzzle, or creates a pending request.
// @Tags conversations
// @Accept json
// @Produce json
// @Param request body StartConversationRequest true "Conversation request"
// @Success 201 {object} service.StartResult
// @Success 200 {object} service.StartResult
// @Failure 403 {object} models.ErrorResponse
// @Router /conversations [post]
// @Security BearerAuth
func (s *Server) StartConversation(c *fiber.Ctx) error {
	var req StartConversationRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	if req.RecipientID == 0 {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("recipient_id is required"))
	}

	res, err := s.conversationService.StartOrGet(c.UserContext(), service.StartInput{
		InitiatorID: currentPlayer(c),
		RecipientID: req.RecipientID,
		ListingID:   req.ListingID,
		PuzzleID:    req.PuzzleID,
		Message:     req.Message,
	})
	if err != nil {
		return respondError(c, err)
	}

	status := fiber.StatusOK
	if res.Created {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(res)
}

// ListConversations handles GET /api/conversations
// @Summary List my conversations
// @Tags conversations
// @Produce json
// @Param status query string false "pending, accepted or ignored"
// @Success 200 {array} models.ConversationSummary
// @Router /conversations [get]
// @Security BearerAuth
func (s *Server) ListConversations(c *fiber.Ctx) error {
	playerID := currentPlayer(c)

	var filter *models.ConversationStatus
	if raw := c.Query("status"); raw != "" {
		status := models.ConversationStatus(raw)
		filter = &status
	}

	summaries, err := s.conversationService.ListFor(c.UserContext(), playerID, filter, s.viewerLocale(c, playerID))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(summaries)
}

// GetConversation handles GET /api/conversations/:id
func (s *Server) GetConversation(c *fiber.Ctx) error {
	conversationID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	playerID := currentPlayer(c)

	summary, err := s.conversationService.Get(c.UserContext(), conversationID, playerID, s.viewerLocale(c, playerID))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(summary)
}

// RespondToConversation handles POST /api/conversations/:id/respond
// @Summary Accept or ignore a conversation request
// @Tags conversations
// @Accept json
// @Produce json
// @Param id path int true "Conversation ID"
// @Param request body RespondRequest true "accept or ignore"
// @Success 200 {object} models.Conversation
// @Failure 403 {object} models.ErrorResponse
// @Router /conversations/{id}/respond [post]
// @Security BearerAuth
func (s *Server) RespondToConversation(c *fiber.Ctx) error {
	conversationID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req RespondRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	conv, err := s.conversationService.Respond(c.UserContext(), conversationID, currentPlayer(c), decisionStatus(req.Decision))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(conv)
}

// decisionStatus accepts both the verb and the resulting status.
func decisionStatus(raw string) models.ConversationStatus {
	switch raw {
	case "accept":
		return models.ConversationStatusAccepted
	case "ignore":
		return models.ConversationStatusIgnored
	}
	return models.ConversationStatus(raw)
}

// GetBadges handles GET /api/conversations/badges
// @Summary Unread message and pending request counters
// @Tags conversations
// @Produce json
// @Success 200 {object} map[string]int64
// @Router /conversations/badges [get]
// @Security BearerAuth
func (s *Server) GetBadges(c *fiber.Ctx) error {
	ctx := c.UserContext()
	playerID := currentPlayer(c)

	unread, err := s.messageService.UnreadCountFor(ctx, playerID)
	if err != nil {
		return respondError(c, err)
	}
	pending, err := s.conversationService.PendingRequestCount(ctx, playerID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"unread_messages":  unread,
		"pending_requests": pending,
	})
}
