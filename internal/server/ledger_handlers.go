package server

import (
	"puzzlemarket/internal/service"

	"github.com/gofiber/fiber/v2"
)

// MarkSoldRequest finalises a listing. A sale to someone off the platform
// carries only buyer_name.
type MarkSoldRequest struct {
	BuyerID    *uint    `json:"buyer_id,omitempty"`
	BuyerName  string   `json:"buyer_name,omitempty"`
	FinalPrice *float64 `json:"final_price,omitempty"`
}

// ReserveRequest names the player a listing is held for.
type ReserveRequest struct {
	ReservedForPlayerID *uint `json:"reserved_for_player_id,omitempty"`
}

// RateRequest is the body of a rating.
type RateRequest struct {
	Stars      int     `json:"stars"`
	ReviewText *string `json:"review_text,omitempty"`
}

// MarkListingSold handles POST /api/listings/:id/sold
// @Summary Record a completed sale or swap
// @Tags ledger
// @Accept json
// @Produce json
// @Param id path int true "Listing ID"
// @Param request body MarkSoldRequest true "Sale"
// @Success 201 {object} models.Transaction
// @Failure 409 {object} models.ErrorResponse
// @Router /listings/{id}/sold [post]
// @Security BearerAuth
func (s *Server) MarkListingSold(c *fiber.Ctx) error {
	listingID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req MarkSoldRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	sale, err := s.ledgerService.RecordSale(c.UserContext(), service.SaleInput{
		ListingID:  listingID,
		SellerID:   currentPlayer(c),
		BuyerID:    req.BuyerID,
		BuyerName:  req.BuyerName,
		FinalPrice: req.FinalPrice,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(sale)
}

// ReserveListing handles PUT /api/listings/:id/reservation
func (s *Server) ReserveListing(c *fiber.Ctx) error {
	listingID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req ReserveRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	if err := s.ledgerService.ListingReserved(c.UserContext(), listingID, currentPlayer(c), req.ReservedForPlayerID); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Listing reserved"})
}

// RemoveReservation handles DELETE /api/listings/:id/reservation
func (s *Server) RemoveReservation(c *fiber.Ctx) error {
	listingID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.ledgerService.ReservationRemoved(c.UserContext(), listingID, currentPlayer(c)); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Reservation removed"})
}

// RateTransaction handles POST /api/transactions/:id/ratings
// @Summary Rate the other party of a transaction
// @Tags ratings
// @Accept json
// @Produce json
// @Param id path int true "Transaction ID"
// @Param request body RateRequest true "Rating"
// @Success 201 {object} models.Rating
// @Failure 409 {object} models.ErrorResponse
// @Router /transactions/{id}/ratings [post]
// @Security BearerAuth
func (s *Server) RateTransaction(c *fiber.Ctx) error {
	transactionID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req RateRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	rating, err := s.ratingService.Rate(c.UserContext(), transactionID, currentPlayer(c), req.Stars, req.ReviewText)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(rating)
}

// GetPendingRatings handles GET /api/ratings/pending
// @Summary Transactions I can still rate
// @Tags ratings
// @Produce json
// @Success 200 {array} models.PendingRating
// @Router /ratings/pending [get]
// @Security BearerAuth
func (s *Server) GetPendingRatings(c *fiber.Ctx) error {
	pending, err := s.ratingService.PendingRatingsFor(c.UserContext(), currentPlayer(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(pending)
}

// GetPlayerRatings handles GET /api/players/:id/ratings
func (s *Server) GetPlayerRatings(c *fiber.Ctx) error {
	playerID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	page := parsePagination(c, 20)

	ratings, err := s.ratingService.RatingsFor(c.UserContext(), playerID, page.Limit, page.Offset)
	if err != nil {
		return respondError(c, err)
	}
	summary, err := s.ratingService.Summary(c.UserContext(), playerID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"summary": summary,
		"ratings": ratings,
	})
}

// GetPlayerStanding handles GET /api/players/:id/standing
// @Summary Marketplace standing of a player
// @Tags ratings
// @Produce json
// @Param id path int true "Player ID"
// @Success 200 {object} models.PlayerMarketplaceStanding
// @Failure 404 {object} models.ErrorResponse
// @Router /players/{id}/standing [get]
// @Security BearerAuth
func (s *Server) GetPlayerStanding(c *fiber.Ctx) error {
	playerID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	standing, err := s.standingService.Standing(c.UserContext(), playerID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(standing)
}
