package service

import (
	"context"
	"testing"
	"time"

	"puzzlemarket/internal/models"
	"puzzlemarket/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordSale_SnapshotsListing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seller := f.player(t, "Sam")
	buyer := f.player(t, "Xena")
	listing := testutil.CreateListing(t, f.db, seller.ID)

	_, err := f.ledger.RecordSale(ctx, SaleInput{ListingID: listing.ID, SellerID: buyer.ID, BuyerID: &buyer.ID})
	assert.ErrorIs(t, err, models.ErrNotAuthorized)

	final := 19.5
	sale, err := f.ledger.RecordSale(ctx, SaleInput{ListingID: listing.ID, SellerID: seller.ID, BuyerID: &buyer.ID, FinalPrice: &final})
	require.NoError(t, err)
	assert.Equal(t, listing.PuzzleID, sale.PuzzleID)
	assert.Equal(t, models.ListingTypeSell, sale.ListingType)
	require.NotNil(t, sale.Price)
	assert.InDelta(t, 19.5, *sale.Price, 0.001)

	require.NoError(t, f.db.Model(&models.Listing{}).Where("id = ?", listing.ID).Update("listing_type", models.ListingTypeSwap).Error)
	stored, err := f.stores.Transactions.GetByID(ctx, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ListingTypeSell, stored.ListingType)

	_, err = f.ledger.RecordSale(ctx, SaleInput{ListingID: listing.ID, SellerID: seller.ID, BuyerID: &buyer.ID})
	assert.ErrorIs(t, err, models.ErrListingAlreadySold)
}

func TestListingStatusMessages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seller := f.player(t, "Sam")
	winner := f.player(t, "Xena")
	other := f.player(t, "Yuri")
	listing := testutil.CreateListing(t, f.db, seller.ID)

	winnerConv := f.accepted(t, winner.ID, seller.ID, &listing.ID)
	otherConv := f.accepted(t, other.ID, seller.ID, &listing.ID)

	f.clock.Advance(time.Minute)
	require.NoError(t, f.ledger.ListingReserved(ctx, listing.ID, seller.ID, &winner.ID))

	last := func(convID, viewer uint) models.MessageView {
		views, err := f.messages.List(ctx, convID, viewer, 50, 0, "en")
		require.NoError(t, err)
		require.NotEmpty(t, views)
		return views[len(views)-1]
	}
	assert.Equal(t, "This puzzle is now reserved for you.", last(winnerConv.ID, winner.ID).Text)
	assert.Equal(t, "You reserved this puzzle for Xena.", last(winnerConv.ID, seller.ID).Text)
	assert.Equal(t, "This puzzle is now reserved for another collector.", last(otherConv.ID, other.ID).Text)

	f.clock.Advance(time.Minute)
	require.NoError(t, f.ledger.ReservationRemoved(ctx, listing.ID, seller.ID))
	assert.Equal(t, "Your reservation for this puzzle was removed.", last(winnerConv.ID, winner.ID).Text)

	f.clock.Advance(time.Minute)
	_, err := f.ledger.RecordSale(ctx, SaleInput{ListingID: listing.ID, SellerID: seller.ID, BuyerID: &winner.ID})
	require.NoError(t, err)
	assert.Equal(t, "This puzzle was sold to you.", last(winnerConv.ID, winner.ID).Text)
	assert.Equal(t, "This puzzle has been sold.", last(otherConv.ID, other.ID).Text)
}
