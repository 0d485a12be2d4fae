package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"puzzlemarket/internal/featureflags"
	"puzzlemarket/internal/locale"
	"puzzlemarket/internal/models"
	"puzzlemarket/internal/notifications"
	"puzzlemarket/internal/repository"
	"puzzlemarket/internal/testutil"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	db     *gorm.DB
	stores *repository.Stores
	clock  *testutil.Clock
	mailer *recordingMailer

	blocks        *BlockService
	conversations *ConversationService
	messages      *MessageService
	moderation    *ModerationService
	ledger        *LedgerService
	ratings       *RatingService
	standing      *StandingService
	digest        *DigestService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	stores := repository.NewStores(db)
	clock := testutil.NewClock(t0)
	flags := featureflags.NewManager("conversation_system_messages,listing_status_messages")
	catalog := locale.MustLoad(locale.DefaultLocale)
	mailer := &recordingMailer{}

	return &fixture{
		db:            db,
		stores:        stores,
		clock:         clock,
		mailer:        mailer,
		blocks:        NewBlockService(stores, clock.Now),
		conversations: NewConversationService(stores, flags, catalog, clock.Now),
		messages:      NewMessageService(stores, catalog, clock.Now),
		moderation:    NewModerationService(stores, clock.Now),
		ledger:        NewLedgerService(stores, flags, clock.Now),
		ratings:       NewRatingService(stores, DefaultRatingWindow, clock.Now),
		standing:      NewStandingService(stores, time.Minute, clock.Now),
		digest:        NewDigestService(stores, mailer, nil, DigestConfig{Threshold: 12 * time.Hour}, clock.Now),
	}
}

func (f *fixture) player(t *testing.T, name string) *models.Player {
	t.Helper()
	return testutil.CreatePlayer(t, f.db, func(p *models.Player) { p.DisplayName = name })
}

func (f *fixture) admin(t *testing.T) *models.Player {
	t.Helper()
	return testutil.CreatePlayer(t, f.db, func(p *models.Player) {
		p.DisplayName = "Moderator"
		p.IsAdmin = true
	})
}

// accepted opens a conversation from initiator and has recipient accept it.
func (f *fixture) accepted(t *testing.T, initiator, recipient uint, listingID *uint) *models.Conversation {
	t.Helper()
	ctx := context.Background()
	res, err := f.conversations.StartOrGet(ctx, StartInput{InitiatorID: initiator, RecipientID: recipient, ListingID: listingID})
	require.NoError(t, err)
	conv, err := f.conversations.Respond(ctx, res.Conversation.ID, recipient, models.ConversationStatusAccepted)
	require.NoError(t, err)
	return conv
}

type recordingMailer struct {
	mu     sync.Mutex
	sent   []notifications.DigestEmail
	failOn map[uint]error
}

func (m *recordingMailer) SendDigest(_ context.Context, email notifications.DigestEmail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failOn[email.PlayerID]; err != nil {
		return err
	}
	m.sent = append(m.sent, email)
	return nil
}

func (m *recordingMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func (m *recordingMailer) last() notifications.DigestEmail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sent[len(m.sent)-1]
}

func strPtr(s string) *string { return &s }
