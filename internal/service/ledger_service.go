package service

import (
	"context"
	"log/slog"
	"time"

	"puzzlemarket/internal/cache"
	"puzzlemarket/internal/database"
	"puzzlemarket/internal/featureflags"
	"puzzlemarket/internal/models"
	"puzzlemarket/internal/observability"
	"puzzlemarket/internal/repository"
	"puzzlemarket/internal/validation"
)

// SaleInput is what the listing service reports when a seller marks a
// listing sold or swapped.
type SaleInput struct {
	ListingID  uint     `json:"listing_id"`
	SellerID   uint     `json:"-"`
	BuyerID    *uint    `json:"buyer_id,omitempty"`
	BuyerName  string   `json:"buyer_name,omitempty"`
	FinalPrice *float64 `json:"final_price,omitempty"`
}

// LedgerService records completed sales and posts listing status notices
// into the listing's conversations.
type LedgerService struct {
	stores *repository.Stores
	flags  *featureflags.Manager
	now    Clock
}

// NewLedgerService returns a new LedgerService.
func NewLedgerService(stores *repository.Stores, flags *featureflags.Manager, clock Clock) *LedgerService {
	return &LedgerService{stores: stores, flags: flags, now: orSystemClock(clock)}
}

// RecordSale snapshots the listing into an immutable transaction. Each
// listing can be sold once.
func (s *LedgerService) RecordSale(ctx context.Context, in SaleInput) (*models.Transaction, error) {
	listing, err := s.ownedListing(ctx, in.ListingID, in.SellerID)
	if err != nil {
		return nil, err
	}
	if in.BuyerID != nil {
		if *in.BuyerID == in.SellerID {
			return nil, models.NewValidationError("The seller cannot be the buyer")
		}
		if _, err := s.stores.Players.GetByID(ctx, *in.BuyerID); err != nil {
			return nil, err
		}
	}
	buyerName, err := validation.BuyerName(in.BuyerName)
	if err != nil {
		return nil, validationError(err)
	}
	price := listing.Price
	if in.FinalPrice != nil {
		if *in.FinalPrice < 0 {
			return nil, models.NewValidationError("Price cannot be negative")
		}
		price = in.FinalPrice
	}

	now := s.now()
	sale := &models.Transaction{
		ListingID:   &listing.ID,
		PuzzleID:    listing.PuzzleID,
		SellerID:    listing.SellerID,
		BuyerID:     in.BuyerID,
		BuyerName:   buyerName,
		ListingType: listing.ListingType,
		Price:       price,
		SoldAt:      now,
	}
	err = s.stores.WithTx(ctx, func(tx *repository.Stores) error {
		if err := tx.Transactions.Create(ctx, sale); err != nil {
			return err
		}
		return s.notifyListingThreads(ctx, tx, listing, models.SystemMessageListingSold, in.BuyerID, now)
	})
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, models.ErrListingAlreadySold
		}
		return nil, appError(err)
	}

	cache.InvalidateListing(ctx, listing.ID)
	slog.InfoContext(ctx, "sale recorded",
		"transaction_id", sale.ID,
		"listing_id", listing.ID,
		"seller_id", sale.SellerID,
		"has_buyer", sale.BuyerID != nil,
	)
	return sale, nil
}

// ListingReserved marks the listing reserved for a player and tells the
// listing's conversations.
func (s *LedgerService) ListingReserved(ctx context.Context, listingID, sellerID uint, reservedFor *uint) error {
	listing, err := s.ownedListing(ctx, listingID, sellerID)
	if err != nil {
		return err
	}
	if reservedFor != nil {
		if _, err := s.stores.Players.GetByID(ctx, *reservedFor); err != nil {
			return err
		}
	}

	now := s.now()
	return appError(s.stores.WithTx(ctx, func(tx *repository.Stores) error {
		if err := tx.Listings.SetReservation(ctx, listing.ID, reservedFor); err != nil {
			return err
		}
		return s.notifyListingThreads(ctx, tx, listing, models.SystemMessageListingReserved, reservedFor, now)
	}))
}

// ReservationRemoved clears a reservation. The previous holder is the
// target of the notice.
func (s *LedgerService) ReservationRemoved(ctx context.Context, listingID, sellerID uint) error {
	listing, err := s.ownedListing(ctx, listingID, sellerID)
	if err != nil {
		return err
	}
	if !listing.Reserved {
		return nil
	}

	now := s.now()
	return appError(s.stores.WithTx(ctx, func(tx *repository.Stores) error {
		if err := tx.Listings.ClearReservation(ctx, listing.ID); err != nil {
			return err
		}
		return s.notifyListingThreads(ctx, tx, listing, models.SystemMessageReservationRemoved, listing.ReservedForPlayerID, now)
	}))
}

func (s *LedgerService) ownedListing(ctx context.Context, listingID, sellerID uint) (*models.Listing, error) {
	observability.Annotate(ctx, observability.ListingIDKey.Int64(int64(listingID)))
	listing, err := s.stores.Listings.GetByID(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if listing.SellerID != sellerID {
		return nil, models.NewNotAuthorizedError("Only the seller can change this listing")
	}
	return listing, nil
}

func (s *LedgerService) notifyListingThreads(ctx context.Context, tx *repository.Stores, listing *models.Listing, msgType models.SystemMessageType, target *uint, now time.Time) error {
	if !s.flags.Enabled(featureflags.ListingStatusMessages, listing.SellerID) {
		return nil
	}
	convs, err := tx.Conversations.AcceptedForListing(ctx, listing.ID)
	if err != nil {
		return err
	}
	for i := range convs {
		if _, err := postSystemMessage(ctx, tx, convs[i].ID, msgType, target, now); err != nil {
			return err
		}
	}
	return nil
}
