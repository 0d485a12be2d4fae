package seed

import (
	"testing"
	"time"

	"puzzlemarket/internal/models"
	"puzzlemarket/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var seedNow = time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return seedNow }

func TestFactory_DryRunAssignsSyntheticIDs(t *testing.T) {
	f := NewFactory(nil, FactoryOptions{DryRun: true, MaxDays: 30, Now: fixedNow})

	seller, err := f.CreatePlayer()
	if err != nil {
		t.Fatalf("CreatePlayer: %v", err)
	}
	buyer, _ := f.CreatePlayer()
	listing, err := f.CreateListing(seller)
	if err != nil {
		t.Fatalf("CreateListing: %v", err)
	}
	if seller.ID == 0 || buyer.ID == 0 || listing.ID == 0 {
		t.Fatalf("expected synthetic ids, got seller=%d buyer=%d listing=%d", seller.ID, buyer.ID, listing.ID)
	}
	if seller.ID == buyer.ID {
		t.Fatalf("synthetic ids must be unique")
	}
	if seedNow.Sub(listing.CreatedAt) > 30*24*time.Hour || listing.CreatedAt.After(seedNow) {
		t.Fatalf("created_at outside window: %v", listing.CreatedAt)
	}
}

func TestFactory_ListingPriceFollowsType(t *testing.T) {
	f := NewFactory(nil, FactoryOptions{DryRun: true, Now: fixedNow})
	seller := &models.Player{ID: 1}

	for i := 0; i < 50; i++ {
		l, err := f.CreateListing(seller)
		require.NoError(t, err)
		if l.ListingType == models.ListingTypeFree {
			assert.Nil(t, l.Price)
			continue
		}
		require.NotNil(t, l.Price)
		assert.GreaterOrEqual(t, *l.Price, 5.0)
		assert.LessOrEqual(t, *l.Price, 80.0)
	}
}

func TestFactory_MessagesMoveLastActivity(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	f := NewFactory(db, FactoryOptions{MaxDays: 10, Now: fixedNow})

	alice, err := f.CreatePlayer()
	require.NoError(t, err)
	bob, err := f.CreatePlayer()
	require.NoError(t, err)
	listing, err := f.CreateListing(bob)
	require.NoError(t, err)
	conv, err := f.CreateConversation(alice, bob, listing, models.ConversationStatusAccepted)
	require.NoError(t, err)
	require.NotNil(t, conv.PuzzleID)
	assert.Equal(t, listing.PuzzleID, *conv.PuzzleID)

	first := conv.CreatedAt.Add(time.Minute)
	second := first.Add(time.Hour)
	_, err = f.CreateMessage(conv, alice, second)
	require.NoError(t, err)
	sys, err := f.CreateSystemMessage(conv, models.SystemMessageRequestAccepted, &alice.ID, first)
	require.NoError(t, err)
	assert.True(t, sys.IsSystem())

	var stored models.Conversation
	require.NoError(t, db.First(&stored, conv.ID).Error)
	require.NotNil(t, stored.LastMessageAt)
	assert.True(t, second.Equal(*stored.LastMessageAt), "older messages must not move last activity back")
}
