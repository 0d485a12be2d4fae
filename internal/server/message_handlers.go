package server

import "github.com/gofiber/fiber/v2"

// PostMessageRequest is the body of a chat message.
type PostMessageRequest struct {
	Content string `json:"content"`
}

// ReportRequest is the body of a conversation report.
type ReportRequest struct {
	Reason string `json:"reason"`
}

// GetMessages handles GET /api/conversations/:id/messages
// @Summary Page through a conversation
// @Description Newest page first; pass before=<message id> for older pages. System messages are rendered for the viewer.
// @Tags messages
// @Produce json
// @Param id path int true "Conversation ID"
// @Param limit query int false "Page size"
// @Param before query int false "Return messages older than this ID"
// @Success 200 {array} models.MessageView
// @Failure 404 {object} models.ErrorResponse
// @Router /conversations/{id}/messages [get]
// @Security BearerAuth
func (s *Server) GetMessages(c *fiber.Ctx) error {
	conversationID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	playerID := currentPlayer(c)

	before := c.QueryInt("before", 0)
	if before < 0 {
		before = 0
	}

	views, err := s.messageService.List(c.UserContext(), conversationID, playerID,
		c.QueryInt("limit", 0), uint(before), s.viewerLocale(c, playerID))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(views)
}

// PostMessage handles POST /api/conversations/:id/messages
// @Summary Send a message
// @Tags messages
// @Accept json
// @Produce json
// @Param id path int true "Conversation ID"
// @Param request body PostMessageRequest true "Message"
// @Success 201 {object} models.Message
// @Failure 403 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /conversations/{id}/messages [post]
// @Security BearerAuth
func (s *Server) PostMessage(c *fiber.Ctx) error {
	conversationID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req PostMessageRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	msg, err := s.messageService.Post(c.UserContext(), conversationID, currentPlayer(c), req.Content)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(msg)
}

// MarkConversationRead handles POST /api/conversations/:id/read
func (s *Server) MarkConversationRead(c *fiber.Ctx) error {
	conversationID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	updated, err := s.messageService.MarkRead(c.UserContext(), conversationID, currentPlayer(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"marked_read": updated})
}

// ReportConversation handles POST /api/conversations/:id/report
// @Summary Report a conversation to the moderators
// @Tags moderation
// @Accept json
// @Produce json
// @Param id path int true "Conversation ID"
// @Param request body ReportRequest true "Reason"
// @Success 201 {object} models.ConversationReport
// @Router /conversations/{id}/report [post]
// @Security BearerAuth
func (s *Server) ReportConversation(c *fiber.Ctx) error {
	conversationID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req ReportRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	report, err := s.moderationService.Report(c.UserContext(), conversationID, currentPlayer(c), req.Reason)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(report)
}
