package repository

import (
	"context"
	"testing"
	"time"

	"puzzlemarket/internal/models"
	"puzzlemarket/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func uintPtr(v uint) *uint { return &v }

func createConversation(t *testing.T, db *gorm.DB, initiator, recipient uint, status models.ConversationStatus, created time.Time, listingID *uint) *models.Conversation {
	t.Helper()
	conv := &models.Conversation{
		InitiatorID: initiator,
		RecipientID: recipient,
		ListingID:   listingID,
		Status:      status,
		CreatedAt:   created,
	}
	require.NoError(t, db.Create(conv).Error)
	return conv
}

func TestConversationRepository_FindExisting(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewConversationRepository(db)
	ctx := context.Background()

	a := testutil.CreatePlayer(t, db)
	b := testutil.CreatePlayer(t, db)
	listing := testutil.CreateListing(t, db, b.ID)

	conv := createConversation(t, db, a.ID, b.ID, models.ConversationStatusPending, t0, &listing.ID)

	found, err := repo.FindExisting(ctx, a.ID, b.ID, &listing.ID, nil)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, conv.ID, found.ID)

	t.Run("direction matters", func(t *testing.T) {
		found, err := repo.FindExisting(ctx, b.ID, a.ID, &listing.ID, nil)
		require.NoError(t, err)
		assert.Nil(t, found)
	})

	t.Run("puzzle axis is independent", func(t *testing.T) {
		found, err := repo.FindExisting(ctx, a.ID, b.ID, nil, uintPtr(listing.PuzzleID))
		require.NoError(t, err)
		assert.Nil(t, found)
	})

	t.Run("unique index rejects duplicates", func(t *testing.T) {
		err := repo.Create(ctx, &models.Conversation{InitiatorID: a.ID, RecipientID: b.ID, ListingID: &listing.ID, CreatedAt: t0})
		require.Error(t, err)
	})
}

func TestConversationRepository_TransitionFromPending(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewConversationRepository(db)
	ctx := context.Background()

	a := testutil.CreatePlayer(t, db)
	b := testutil.CreatePlayer(t, db)
	conv := createConversation(t, db, a.ID, b.ID, models.ConversationStatusPending, t0, nil)

	ok, err := repo.TransitionFromPending(ctx, conv.ID, models.ConversationStatusAccepted)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.TransitionFromPending(ctx, conv.ID, models.ConversationStatusIgnored)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := repo.GetByID(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ConversationStatusAccepted, got.Status)

	_, err = repo.GetByID(ctx, 9999)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestConversationRepository_ListForOrderingAndBlocks(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewConversationRepository(db)
	blocks := NewBlockRepository(db)
	ctx := context.Background()

	a := testutil.CreatePlayer(t, db)
	b := testutil.CreatePlayer(t, db)
	c := testutil.CreatePlayer(t, db)
	d := testutil.CreatePlayer(t, db)

	silent := createConversation(t, db, a.ID, b.ID, models.ConversationStatusAccepted, t0.Add(3*time.Hour), nil)
	older := createConversation(t, db, c.ID, a.ID, models.ConversationStatusAccepted, t0, nil)
	newer := createConversation(t, db, a.ID, d.ID, models.ConversationStatusPending, t0.Add(time.Hour), nil)
	require.NoError(t, repo.TouchLastMessage(ctx, older.ID, t0.Add(time.Hour)))
	require.NoError(t, repo.TouchLastMessage(ctx, newer.ID, t0.Add(2*time.Hour)))

	convs, err := repo.ListFor(ctx, a.ID, nil)
	require.NoError(t, err)
	require.Len(t, convs, 3)
	assert.Equal(t, []uint{newer.ID, older.ID, silent.ID}, []uint{convs[0].ID, convs[1].ID, convs[2].ID})

	accepted := models.ConversationStatusAccepted
	convs, err = repo.ListFor(ctx, a.ID, &accepted)
	require.NoError(t, err)
	assert.Len(t, convs, 2)

	require.NoError(t, blocks.Block(ctx, a.ID, b.ID, t0))

	convs, err = repo.ListFor(ctx, a.ID, nil)
	require.NoError(t, err)
	assert.Len(t, convs, 2)

	convs, err = repo.ListFor(ctx, b.ID, nil)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, silent.ID, convs[0].ID)
}

func TestConversationRepository_PendingRequestCount(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewConversationRepository(db)
	blocks := NewBlockRepository(db)
	ctx := context.Background()

	a := testutil.CreatePlayer(t, db)
	b := testutil.CreatePlayer(t, db)
	c := testutil.CreatePlayer(t, db)
	createConversation(t, db, b.ID, a.ID, models.ConversationStatusPending, t0, nil)
	createConversation(t, db, c.ID, a.ID, models.ConversationStatusPending, t0, nil)
	createConversation(t, db, a.ID, c.ID, models.ConversationStatusPending, t0, nil)

	count, err := repo.PendingRequestCount(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	require.NoError(t, blocks.Block(ctx, a.ID, c.ID, t0))
	count, err = repo.PendingRequestCount(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestMessageRepository(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewMessageRepository(db)
	ctx := context.Background()

	a := testutil.CreatePlayer(t, db)
	b := testutil.CreatePlayer(t, db)
	conv := createConversation(t, db, a.ID, b.ID, models.ConversationStatusAccepted, t0, nil)

	var ids []uint
	for i := 0; i < 5; i++ {
		sender := a.ID
		if i%2 == 1 {
			sender = b.ID
		}
		msg := models.NewMessage(conv.ID, models.UserMessage{SenderID: sender, Content: "hi"}, t0.Add(time.Duration(i)*time.Minute))
		require.NoError(t, repo.Create(ctx, msg))
		ids = append(ids, msg.ID)
	}
	system := models.NewMessage(conv.ID, models.SystemMessage{Type: models.SystemMessageRequestAccepted}, t0.Add(10*time.Minute))
	require.NoError(t, repo.Create(ctx, system))

	t.Run("List pages backwards in chronological order", func(t *testing.T) {
		page, err := repo.List(ctx, conv.ID, 2, 0)
		require.NoError(t, err)
		require.Len(t, page, 2)
		assert.Equal(t, ids[4], page[0].ID)
		assert.Equal(t, system.ID, page[1].ID)

		page, err = repo.List(ctx, conv.ID, 2, page[0].ID)
		require.NoError(t, err)
		require.Len(t, page, 2)
		assert.Equal(t, []uint{ids[2], ids[3]}, []uint{page[0].ID, page[1].ID})
	})

	t.Run("LatestByConversation", func(t *testing.T) {
		latest, err := repo.LatestByConversation(ctx, []uint{conv.ID})
		require.NoError(t, err)
		require.Contains(t, latest, conv.ID)
		assert.Equal(t, system.ID, latest[conv.ID].ID)
		assert.True(t, latest[conv.ID].IsSystem())
	})

	t.Run("unread excludes own and system messages", func(t *testing.T) {
		unread, err := repo.UnreadByConversation(ctx, a.ID, []uint{conv.ID})
		require.NoError(t, err)
		assert.Equal(t, int64(2), unread[conv.ID])

		total, err := repo.UnreadCountFor(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
	})

	t.Run("MarkRead is idempotent", func(t *testing.T) {
		n, err := repo.MarkRead(ctx, conv.ID, a.ID, t0.Add(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		n, err = repo.MarkRead(ctx, conv.ID, a.ID, t0.Add(2*time.Hour))
		require.NoError(t, err)
		assert.Zero(t, n)

		total, err := repo.UnreadCountFor(ctx, a.ID)
		require.NoError(t, err)
		assert.Zero(t, total)

		var msg models.Message
		require.NoError(t, db.First(&msg, system.ID).Error)
		assert.Nil(t, msg.ReadAt)
	})
}

func TestBlockRepository(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewBlockRepository(db)
	ctx := context.Background()

	a := testutil.CreatePlayer(t, db)
	b := testutil.CreatePlayer(t, db)

	require.NoError(t, repo.Block(ctx, a.ID, b.ID, t0))
	require.NoError(t, repo.Block(ctx, a.ID, b.ID, t0.Add(time.Hour)))

	aBlocksB, bBlocksA, err := repo.Between(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.True(t, aBlocksB)
	assert.False(t, bBlocksA)

	blocked, err := repo.ListBlocked(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, blocked, 1)
	require.NotNil(t, blocked[0].Blocked)
	assert.Equal(t, b.DisplayName, blocked[0].Blocked.DisplayName)

	require.NoError(t, repo.Unblock(ctx, a.ID, b.ID))
	isBlocked, err := repo.IsBlocked(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.False(t, isBlocked)
}

func TestModerationRepository(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewModerationRepository(db)
	ctx := context.Background()

	a := testutil.CreatePlayer(t, db)
	b := testutil.CreatePlayer(t, db)
	admin := testutil.CreatePlayer(t, db, func(p *models.Player) { p.IsAdmin = true })
	conv := createConversation(t, db, a.ID, b.ID, models.ConversationStatusAccepted, t0, nil)

	report := &models.ConversationReport{ConversationID: conv.ID, ReporterID: a.ID, Reason: "spam offers", Status: models.ReportStatusPending, ReportedAt: t0}
	require.NoError(t, repo.CreateReport(ctx, report))

	ok, err := repo.ResolveReport(ctx, report.ID, admin.ID, "handled", t0.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.ResolveReport(ctx, report.ID, admin.ID, "again", t0.Add(2*time.Hour))
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := repo.GetReport(ctx, report.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusResolved, got.Status)
	assert.Equal(t, "handled", got.AdminNote)

	pending := models.ReportStatusPending
	reports, err := repo.ListReports(ctx, &pending, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, reports)

	mute := &models.ModerationAction{TargetPlayerID: b.ID, AdminID: admin.ID, ActionType: models.ModerationActionMute, PerformedAt: t0}
	lift := &models.ModerationAction{TargetPlayerID: b.ID, AdminID: admin.ID, ActionType: models.ModerationActionLiftMute, PerformedAt: t0.Add(time.Hour)}
	warn := &models.ModerationAction{TargetPlayerID: b.ID, AdminID: admin.ID, ActionType: models.ModerationActionWarn, PerformedAt: t0.Add(2 * time.Hour)}
	for _, action := range []*models.ModerationAction{mute, lift, warn} {
		require.NoError(t, repo.CreateAction(ctx, action))
	}

	latest, err := repo.LatestAction(ctx, b.ID, models.ModerationActionMute, models.ModerationActionLiftMute)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, lift.ID, latest.ID)

	latest, err = repo.LatestAction(ctx, a.ID, models.ModerationActionMute)
	require.NoError(t, err)
	assert.Nil(t, latest)

	active, err := repo.ActiveAction(ctx, b.ID, models.ModerationActionMute, t0.Add(30*time.Minute), nil)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, mute.ID, active.ID)

	active, err = repo.ActiveAction(ctx, b.ID, models.ModerationActionMute, t0.Add(3*time.Hour), &lift.PerformedAt)
	require.NoError(t, err)
	assert.Nil(t, active)

	history, err := repo.ActionsFor(ctx, b.ID)
	require.NoError(t, err)
	assert.Len(t, history, 3)
	assert.Equal(t, warn.ID, history[0].ID)
}

func TestTransactionRepository_UnratedSince(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	txs := NewTransactionRepository(db)
	ratings := NewRatingRepository(db)
	ctx := context.Background()

	seller := testutil.CreatePlayer(t, db)
	buyer := testutil.CreatePlayer(t, db)

	recent := &models.Transaction{PuzzleID: 1, SellerID: seller.ID, BuyerID: &buyer.ID, ListingType: models.ListingTypeSell, SoldAt: t0}
	old := &models.Transaction{PuzzleID: 2, SellerID: seller.ID, BuyerID: &buyer.ID, ListingType: models.ListingTypeSell, SoldAt: t0.Add(-40 * 24 * time.Hour)}
	anonymous := &models.Transaction{PuzzleID: 3, SellerID: seller.ID, BuyerName: "market stall", ListingType: models.ListingTypeSell, SoldAt: t0}
	for _, tx := range []*models.Transaction{recent, old, anonymous} {
		require.NoError(t, txs.Create(ctx, tx))
	}

	since := t0.Add(-30 * 24 * time.Hour)
	list, err := txs.UnratedSince(ctx, seller.ID, since)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, recent.ID, list[0].ID)

	require.NoError(t, ratings.Create(ctx, &models.Rating{
		TransactionID: recent.ID, ReviewerID: seller.ID, ReviewedPlayerID: buyer.ID,
		Stars: 4, ReviewerRole: models.ReviewerRoleSeller, RatedAt: t0,
	}))

	list, err = txs.UnratedSince(ctx, seller.ID, since)
	require.NoError(t, err)
	assert.Empty(t, list)

	list, err = txs.UnratedSince(ctx, buyer.ID, since)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestRatingRepository_RecountAndSummary(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	txs := NewTransactionRepository(db)
	repo := NewRatingRepository(db)
	ctx := context.Background()

	seller := testutil.CreatePlayer(t, db)

	summary, err := repo.GetSummary(ctx, seller.ID)
	require.NoError(t, err)
	assert.Zero(t, summary.RatingCount)

	for i, stars := range []int{5, 4, 3} {
		buyer := testutil.CreatePlayer(t, db)
		tx := &models.Transaction{PuzzleID: uint(i + 1), SellerID: seller.ID, BuyerID: &buyer.ID, ListingType: models.ListingTypeSell, SoldAt: t0}
		require.NoError(t, txs.Create(ctx, tx))
		require.NoError(t, repo.Create(ctx, &models.Rating{
			TransactionID: tx.ID, ReviewerID: buyer.ID, ReviewedPlayerID: seller.ID,
			Stars: stars, ReviewerRole: models.ReviewerRoleBuyer, RatedAt: t0.Add(time.Duration(i) * time.Minute),
		}))
	}

	count, total, err := repo.Recount(ctx, seller.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
	assert.Equal(t, int64(12), total)

	require.NoError(t, repo.SaveSummary(ctx, &models.PlayerRatingSummary{PlayerID: seller.ID, RatingCount: 3, AverageRating: 4, UpdatedAt: t0}))
	require.NoError(t, repo.SaveSummary(ctx, &models.PlayerRatingSummary{PlayerID: seller.ID, RatingCount: 3, AverageRating: 4, UpdatedAt: t0.Add(time.Hour)}))

	summary, err = repo.GetSummary(ctx, seller.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), summary.RatingCount)
	assert.InDelta(t, 4.0, summary.AverageRating, 0.001)

	list, err := repo.ListFor(ctx, seller.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, 3, list[0].Stars)
	require.NotNil(t, list[0].Reviewer)
}

func TestDigestRepository_CandidatesRespectWatermark(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewDigestRepository(db)
	ctx := context.Background()

	a := testutil.CreatePlayer(t, db)
	b := testutil.CreatePlayer(t, db)
	conv := createConversation(t, db, a.ID, b.ID, models.ConversationStatusAccepted, t0, nil)
	require.NoError(t, db.Create(models.NewMessage(conv.ID, models.UserMessage{SenderID: a.ID, Content: "still available?"}, t0)).Error)
	require.NoError(t, db.Create(models.NewMessage(conv.ID, models.SystemMessage{Type: models.SystemMessageListingSold}, t0)).Error)

	cutoff := t0.Add(time.Hour)
	items, err := repo.Candidates(ctx, models.DigestCategoryUnreadMessages, cutoff)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, b.ID, items[0].PlayerID)
	assert.True(t, items[0].ItemAt.Equal(t0))

	none, err := repo.LastWatermark(ctx, b.ID, models.DigestCategoryUnreadMessages)
	require.NoError(t, err)
	assert.Nil(t, none)

	watermark := t0
	require.NoError(t, repo.Append(ctx, &models.DigestLog{PlayerID: b.ID, SentAt: cutoff, OldestUnreadMessageAt: &watermark}))

	got, err := repo.LastWatermark(ctx, b.ID, models.DigestCategoryUnreadMessages)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Equal(t0))

	items, err = repo.Candidates(ctx, models.DigestCategoryUnreadMessages, cutoff)
	require.NoError(t, err)
	assert.Empty(t, items)

	later := t0.Add(30 * time.Minute)
	require.NoError(t, db.Create(models.NewMessage(conv.ID, models.UserMessage{SenderID: a.ID, Content: "hello?"}, later)).Error)
	items, err = repo.Candidates(ctx, models.DigestCategoryUnreadMessages, cutoff)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.True(t, items[0].ItemAt.Equal(later))
}

func TestDigestRepository_PendingAndNotifications(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewDigestRepository(db)
	blocks := NewBlockRepository(db)
	ctx := context.Background()

	a := testutil.CreatePlayer(t, db)
	b := testutil.CreatePlayer(t, db)
	createConversation(t, db, a.ID, b.ID, models.ConversationStatusPending, t0, nil)
	require.NoError(t, db.Create(&models.Notification{PlayerID: a.ID, Type: "badge", CreatedAt: t0}).Error)

	cutoff := t0.Add(time.Hour)
	items, err := repo.Candidates(ctx, models.DigestCategoryPendingRequests, cutoff)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, b.ID, items[0].PlayerID)

	require.NoError(t, blocks.Block(ctx, b.ID, a.ID, t0))
	items, err = repo.Candidates(ctx, models.DigestCategoryPendingRequests, cutoff)
	require.NoError(t, err)
	assert.Empty(t, items)

	items, err = repo.Candidates(ctx, models.DigestCategoryUnreadNotifications, cutoff)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, a.ID, items[0].PlayerID)

	items, err = repo.Candidates(ctx, models.DigestCategoryUnreadNotifications, t0.Add(-time.Minute))
	require.NoError(t, err)
	assert.Empty(t, items)

	_, err = repo.Candidates(ctx, models.DigestCategory("bogus"), cutoff)
	assert.ErrorIs(t, err, models.ErrValidation)
}
