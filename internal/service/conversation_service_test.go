package service

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

func TestStartOrGet_IsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seller := f.player(t, "Sam")
	buyer := f.player(t, "Xena")
	listing := testutil.CreateListing(t, f.db, seller.ID)

	first, err := f.conversations.StartOrGet(ctx, StartInput{InitiatorID: buyer.ID, RecipientID: seller.ID, ListingID: &listing.ID})
	require.NoError(t, err)
	assert.True(t, first.Created)
	assert.Equal(t, models.ConversationStatusPending, first.Conversation.Status)
	require.NotNil(t, first.Conversation.PuzzleID)
	assert.Equal(t, listing.PuzzleID, *first.Conversation.PuzzleID)

	second, err := f.conversations.StartOrGet(ctx, StartInput{InitiatorID: buyer.ID, RecipientID: seller.ID, ListingID: &listing.ID})
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.Conversation.ID, second.Conversation.ID)

	var rows int64
	require.NoError(t, f.db.Model(&models.Conversation{}).Count(&rows).Error)
	assert.Equal(t, int64(1), rows)
}

// raceConversationInsert makes the next conversation insert lose to a rival
// request for the same pair. The rival row is written inside the losing
// transaction so the insert hits the real unique index; after that
// transaction rolls back, the rival is committed before the next read when
// committed is true.
func raceConversationInsert(t *testing.T, f *fixture, rival models.Conversation, committed bool) {
	t.Helper()
	armed, pending := true, false
	insert := func(db *gorm.DB) {
		row := rival
		if err := db.Session(&gorm.Session{NewDB: true}).Create(&row).Error; err != nil {
			db.AddError(err)
		}
	}
	require.NoError(t, f.db.Callback().Create().Before("gorm:create").Register("test:rival_insert", func(db *gorm.DB) {
		if !armed || db.Statement.Table != "conversations" {
			return
		}
		armed = false
		insert(db)
		pending = committed
	}))
	require.NoError(t, f.db.Callback().Query().Before("gorm:query").Register("test:rival_commit", func(db *gorm.DB) {
		if !pending || db.Statement.Table != "conversations" {
			return
		}
		pending = false
		insert(db)
	}))
}

func TestStartOrGet_LosesInsertRace(t *testing.T) {
	ctx := context.Background()

	t.Run("returns the rival conversation", func(t *testing.T) {
		f := newFixture(t)
		a := f.player(t, "Ada")
		b := f.player(t, "Bo")
		raceConversationInsert(t, f, models.Conversation{
			InitiatorID: a.ID, RecipientID: b.ID,
			Status: models.ConversationStatusPending, CreatedAt: t0,
		}, true)

		res, err := f.conversations.StartOrGet(ctx, StartInput{InitiatorID: a.ID, RecipientID: b.ID, Message: "Still available?"})
		require.NoError(t, err)
		assert.False(t, res.Created)
		assert.Nil(t, res.Message)

		again, err := f.conversations.StartOrGet(ctx, StartInput{InitiatorID: a.ID, RecipientID: b.ID})
		require.NoError(t, err)
		assert.Equal(t, res.Conversation.ID, again.Conversation.ID)

		var rows, messages int64
		require.NoError(t, f.db.Model(&models.Conversation{}).Count(&rows).Error)
		require.NoError(t, f.db.Model(&models.Message{}).Count(&messages).Error)
		assert.Equal(t, int64(1), rows)
		assert.Zero(t, messages)
	})

	t.Run("rival not visible", func(t *testing.T) {
		f := newFixture(t)
		a := f.player(t, "Ada")
		b := f.player(t, "Bo")
		raceConversationInsert(t, f, models.Conversation{
			InitiatorID: a.ID, RecipientID: b.ID,
			Status: models.ConversationStatusPending, CreatedAt: t0,
		}, false)

		_, err := f.conversations.StartOrGet(ctx, StartInput{InitiatorID: a.ID, RecipientID: b.ID})
		assert.ErrorIs(t, err, models.ErrDuplicateConversation)
	})
}

func TestStartOrGet_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.player(t, "Ada")
	b := f.player(t, "Bo")
	stranger := f.player(t, "Cy")
	listing := testutil.CreateListing(t, f.db, stranger.ID)

	_, err := f.conversations.StartOrGet(ctx, StartInput{InitiatorID: a.ID, RecipientID: a.ID})
	assert.ErrorIs(t, err, models.ErrSelfConversation)

	_, err = f.conversations.StartOrGet(ctx, StartInput{InitiatorID: a.ID, RecipientID: 9999})
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = f.conversations.StartOrGet(ctx, StartInput{InitiatorID: a.ID, RecipientID: b.ID, ListingID: &listing.ID})
	assert.ErrorIs(t, err, models.ErrValidation)

	require.NoError(t, f.blocks.Block(ctx, b.ID, a.ID))
	_, err = f.conversations.StartOrGet(ctx, StartInput{InitiatorID: a.ID, RecipientID: b.ID})
	assert.ErrorIs(t, err, models.ErrBlocked)
	_, err = f.conversations.StartOrGet(ctx, StartInput{InitiatorID: b.ID, RecipientID: a.ID})
	assert.ErrorIs(t, err, models.ErrBlocked)
}

func TestStartOrGet_BannedPlayerCannotStart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.admin(t)
	a := f.player(t, "Ada")
	b := f.player(t, "Bo")

	_, err := f.moderation.ApplyAction(ctx, admin.ID, ActionInput{Type: models.ModerationActionBan, TargetPlayerID: a.ID, Reason: "fraud"})
	require.NoError(t, err)

	_, err = f.conversations.StartOrGet(ctx, StartInput{InitiatorID: a.ID, RecipientID: b.ID})
	assert.ErrorIs(t, err, models.ErrPlayerBanned)
}

func TestStartOrGet_InitialMessage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.player(t, "Ada")
	b := f.player(t, "Bo")

	res, err := f.conversations.StartOrGet(ctx, StartInput{InitiatorID: a.ID, RecipientID: b.ID, Message: "  Is it complete?  "})
	require.NoError(t, err)
	require.NotNil(t, res.Message)
	assert.Equal(t, "Is it complete?", res.Message.Content)
	require.NotNil(t, res.Conversation.LastMessageAt)

	// Pending thread: a repeated request does not append.
	again, err := f.conversations.StartOrGet(ctx, StartInput{InitiatorID: a.ID, RecipientID: b.ID, Message: "hello??"})
	require.NoError(t, err)
	assert.Nil(t, again.Message)

	_, err = f.conversations.Respond(ctx, res.Conversation.ID, b.ID, models.ConversationStatusAccepted)
	require.NoError(t, err)

	f.clock.Advance(time.Minute)
	posted, err := f.conversations.StartOrGet(ctx, StartInput{InitiatorID: a.ID, RecipientID: b.ID, Message: "Still there?"})
	require.NoError(t, err)
	require.NotNil(t, posted.Message)
	assert.Equal(t, res.Conversation.ID, posted.Conversation.ID)
}

func TestRespond_TransitionsOnlyFromPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.player(t, "Ada")
	b := f.player(t, "Bo")

	res, err := f.conversations.StartOrGet(ctx, StartInput{InitiatorID: a.ID, RecipientID: b.ID})
	require.NoError(t, err)
	id := res.Conversation.ID

	_, err = f.conversations.Respond(ctx, id, a.ID, models.ConversationStatusAccepted)
	assert.ErrorIs(t, err, models.ErrNotAuthorized, "initiator cannot answer")

	_, err = f.conversations.Respond(ctx, id, b.ID, models.ConversationStatusPending)
	assert.ErrorIs(t, err, models.ErrValidation)

	conv, err := f.conversations.Respond(ctx, id, b.ID, models.ConversationStatusIgnored)
	require.NoError(t, err)
	assert.Equal(t, models.ConversationStatusIgnored, conv.Status)

	_, err = f.conversations.Respond(ctx, id, b.ID, models.ConversationStatusAccepted)
	assert.ErrorIs(t, err, models.ErrNotAuthorized, "ignored is final")

	stranger := f.player(t, "Cy")
	_, err = f.conversations.Respond(ctx, id, stranger.ID, models.ConversationStatusAccepted)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestRespond_AcceptEmitsSystemMessage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.player(t, "Ada")
	b := f.player(t, "Bo")

	conv := f.accepted(t, a.ID, b.ID, nil)
	assert.Equal(t, models.ConversationStatusAccepted, conv.Status)

	forInitiator, err := f.messages.List(ctx, conv.ID, a.ID, 10, 0, "en")
	require.NoError(t, err)
	require.Len(t, forInitiator, 1)
	assert.True(t, forInitiator[0].IsSystem)
	assert.Equal(t, "Bo accepted your message request.", forInitiator[0].Text)

	forRecipient, err := f.messages.List(ctx, conv.ID, b.ID, 10, 0, "en")
	require.NoError(t, err)
	require.Len(t, forRecipient, 1)
	assert.Equal(t, "You accepted the message request from Ada.", forRecipient[0].Text)

	inCzech, err := f.messages.List(ctx, conv.ID, a.ID, 10, 0, "cs")
	require.NoError(t, err)
	assert.NotEqual(t, forInitiator[0].Text, inCzech[0].Text)
}

func TestListFor_DirectionalBlockVisibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.player(t, "Ada")
	b := f.player(t, "Bo")
	c := f.player(t, "Cy")

	withB := f.accepted(t, a.ID, b.ID, nil)
	f.clock.Advance(time.Minute)
	withC := f.accepted(t, c.ID, a.ID, nil)

	inbox, err := f.conversations.ListFor(ctx, a.ID, nil, "en")
	require.NoError(t, err)
	require.Len(t, inbox, 2)
	assert.Equal(t, withC.ID, inbox[0].ID)
	require.NotNil(t, inbox[0].Counterpart)
	assert.Equal(t, "Cy", inbox[0].Counterpart.DisplayName)
	assert.Equal(t, "You accepted the message request from Cy.", inbox[0].LastMessagePreview)

	require.NoError(t, f.blocks.Block(ctx, a.ID, b.ID))

	inbox, err = f.conversations.ListFor(ctx, a.ID, nil, "en")
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Equal(t, withC.ID, inbox[0].ID)

	inbox, err = f.conversations.ListFor(ctx, b.ID, nil, "en")
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Equal(t, withB.ID, inbox[0].ID)

	_, err = f.conversations.Get(ctx, withB.ID, a.ID, "en")
	assert.ErrorIs(t, err, models.ErrNotFound)

	require.NoError(t, f.blocks.Block(ctx, b.ID, a.ID))
	inbox, err = f.conversations.ListFor(ctx, b.ID, nil, "en")
	require.NoError(t, err)
	assert.Empty(t, inbox)
}

func TestPendingRequestCount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.player(t, "Ada")
	b := f.player(t, "Bo")
	c := f.player(t, "Cy")

	_, err := f.conversations.StartOrGet(ctx, StartInput{InitiatorID: b.ID, RecipientID: a.ID})
	require.NoError(t, err)
	_, err = f.conversations.StartOrGet(ctx, StartInput{InitiatorID: c.ID, RecipientID: a.ID})
	require.NoError(t, err)

	n, err := f.conversations.PendingRequestCount(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	pending := models.ConversationStatusPending
	inbox, err := f.conversations.ListFor(ctx, a.ID, &pending, "en")
	require.NoError(t, err)
	assert.Len(t, inbox, 2)

	bogus := models.ConversationStatus("archived")
	_, err = f.conversations.ListFor(ctx, a.ID, &bogus, "en")
	assert.ErrorIs(t, err, models.ErrValidation)
}
