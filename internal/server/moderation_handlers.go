package server

import (
	"puzzlemarket/internal/models"
	"puzzlemarket/internal/service"

	"github.com/gofiber/fiber/v2"
)

// ResolveReportRequest closes a report, optionally sanctioning a player.
type ResolveReportRequest struct {
	Note   string               `json:"note"`
	Action *service.ActionInput `json:"action,omitempty"`
}

// GetMyBlocks returns the list of players blocked by the current player.
func (s *Server) GetMyBlocks(c *fiber.Ctx) error {
	blocks, err := s.blockService.ListBlocked(c.UserContext(), currentPlayer(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(blocks)
}

// BlockPlayer blocks the target player for the current player.
func (s *Server) BlockPlayer(c *fiber.Ctx) error {
	targetID, err := s.parseID(c, "playerId")
	if err != nil {
		return nil
	}

	if err := s.blockService.Block(c.UserContext(), currentPlayer(c), targetID); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Player blocked"})
}

// UnblockPlayer removes the block of the target player.
func (s *Server) UnblockPlayer(c *fiber.Ctx) error {
	targetID, err := s.parseID(c, "playerId")
	if err != nil {
		return nil
	}

	if err := s.blockService.Unblock(c.UserContext(), currentPlayer(c), targetID); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Player unblocked"})
}

// GetReports handles GET /api/admin/reports
// @Summary List conversation reports
// @Tags admin
// @Produce json
// @Param status query string false "pending or resolved"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {array} models.ConversationReport
// @Router /admin/reports [get]
// @Security BearerAuth
func (s *Server) GetReports(c *fiber.Ctx) error {
	page := parsePagination(c, 50)

	var status *models.ReportStatus
	if raw := c.Query("status"); raw != "" {
		st := models.ReportStatus(raw)
		status = &st
	}

	reports, err := s.moderationService.ListReports(c.UserContext(), status, page.Limit, page.Offset)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(reports)
}

// GetReport handles GET /api/admin/reports/:id
func (s *Server) GetReport(c *fiber.Ctx) error {
	reportID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	report, err := s.stores.Moderation.GetReport(c.UserContext(), reportID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(report)
}

// ResolveReport handles POST /api/admin/reports/:id/resolve
// @Summary Resolve a report
// @Description Closes a pending report; an optional action is recorded against the report.
// @Tags admin
// @Accept json
// @Produce json
// @Param id path int true "Report ID"
// @Param request body ResolveReportRequest true "Resolution"
// @Success 200 {object} models.ConversationReport
// @Failure 409 {object} models.ErrorResponse
// @Router /admin/reports/{id}/resolve [post]
// @Security BearerAuth
func (s *Server) ResolveReport(c *fiber.Ctx) error {
	reportID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req ResolveReportRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	report, err := s.moderationService.Resolve(c.UserContext(), reportID, currentPlayer(c), req.Note, req.Action)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(report)
}

// ApplyModerationAction handles POST /api/admin/actions
// @Summary Warn, mute, ban or lift a sanction without a report
// @Tags admin
// @Accept json
// @Produce json
// @Param request body service.ActionInput true "Action"
// @Success 201 {object} models.ModerationAction
// @Router /admin/actions [post]
// @Security BearerAuth
func (s *Server) ApplyModerationAction(c *fiber.Ctx) error {
	var req service.ActionInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	action, err := s.moderationService.ApplyAction(c.UserContext(), currentPlayer(c), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(action)
}

// GetPlayerModeration handles GET /api/admin/players/:id
func (s *Server) GetPlayerModeration(c *fiber.Ctx) error {
	playerID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	detail, err := s.moderationService.PlayerDetail(c.UserContext(), playerID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(detail)
}
