// Package seed provides helpers to create test and demo data for the
// application database. These helpers are intended for development and
// testing only.
package seed

import (
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"puzzlemarket/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"
)

// FactoryOptions tunes generated data.
type FactoryOptions struct {
	// DryRun assigns synthetic IDs and logs instead of writing.
	DryRun bool
	// MaxDays bounds how far back generated timestamps reach.
	MaxDays int
	// Now anchors generated timestamps. Zero means time.Now.
	Now func() time.Time
}

// Factory builds domain entities and persists them to the database.
// It is a thin helper used by seed presets and tests.
type Factory struct {
	db   *gorm.DB
	opts FactoryOptions
	// synthetic ID counter when running in DryRun mode
	nextID uint
}

// NewFactory creates a new Factory bound to the provided Gorm DB.
func NewFactory(db *gorm.DB, opts FactoryOptions) *Factory {
	if opts.MaxDays <= 0 {
		opts.MaxDays = 90
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) }
	}
	return &Factory{db: db, opts: opts, nextID: 1000}
}

func (f *Factory) now() time.Time {
	return f.opts.Now()
}

// pastTime returns a moment up to maxDays before now.
func (f *Factory) pastTime(maxDays int) time.Time {
	if maxDays <= 0 || maxDays > f.opts.MaxDays {
		maxDays = f.opts.MaxDays
	}
	back := time.Duration(gofakeit.Number(0, maxDays*24*60)) * time.Minute
	return f.now().Add(-back)
}

func (f *Factory) persist(kind string, id *uint, row any, describe string) error {
	if f.opts.DryRun {
		f.nextID++
		if id != nil {
			*id = f.nextID
		}
		log.Printf("[dry-run] Create%s: %s", kind, describe)
		return nil
	}
	return f.db.Create(row).Error
}

// BuildPlayer constructs a player with a fake profile without persisting it.
func (f *Factory) BuildPlayer(overrides ...func(*models.Player)) *models.Player {
	first, last := gofakeit.FirstName(), gofakeit.LastName()
	player := &models.Player{
		DisplayName: first + " " + last,
		Code:        strings.ToLower(first[:1]+last) + gofakeit.DigitN(4),
		Avatar:      fmt.Sprintf("https://i.pravatar.cc/150?u=%s", gofakeit.UUID()),
		Country:     gofakeit.RandomString([]string{"CZ", "SK", "DE", "AT", "PL", "US", "GB"}),
		Email:       strings.ToLower(first+"."+last) + gofakeit.DigitN(3) + "@example.com",
		Locale:      gofakeit.RandomString([]string{"en", "en", "cs"}),
		CreatedAt:   f.pastTime(0),
	}
	for _, override := range overrides {
		override(player)
	}
	return player
}

// CreatePlayer constructs and persists a sample player.
func (f *Factory) CreatePlayer(overrides ...func(*models.Player)) (*models.Player, error) {
	player := f.BuildPlayer(overrides...)
	if err := f.persist("Player", &player.ID, player, fmt.Sprintf("name=%q code=%s", player.DisplayName, player.Code)); err != nil {
		return nil, err
	}
	return player, nil
}

// CreateListing persists a listing owned by seller. Free listings carry no
// price; every other type gets one between 5 and 80.
func (f *Factory) CreateListing(seller *models.Player, overrides ...func(*models.Listing)) (*models.Listing, error) {
	listingType := models.ListingType(gofakeit.RandomString([]string{
		string(models.ListingTypeSell), string(models.ListingTypeSell),
		string(models.ListingTypeSwap), string(models.ListingTypeSellOrSwap), string(models.ListingTypeFree),
	}))
	listing := &models.Listing{
		SellerID:    seller.ID,
		PuzzleID:    uint(gofakeit.Number(1, 50000)),
		ListingType: listingType,
		CreatedAt:   f.pastTime(0),
	}
	if listingType != models.ListingTypeFree {
		price := math.Round(gofakeit.Float64Range(5, 80)*100) / 100
		listing.Price = &price
	}
	for _, override := range overrides {
		override(listing)
	}
	if err := f.persist("Listing", &listing.ID, listing, fmt.Sprintf("seller=%d puzzle=%d type=%s", listing.SellerID, listing.PuzzleID, listing.ListingType)); err != nil {
		return nil, err
	}
	return listing, nil
}

// CreateConversation persists a conversation between initiator and
// recipient, optionally anchored to listing.
func (f *Factory) CreateConversation(initiator, recipient *models.Player, listing *models.Listing, status models.ConversationStatus, overrides ...func(*models.Conversation)) (*models.Conversation, error) {
	conv := &models.Conversation{
		InitiatorID: initiator.ID,
		RecipientID: recipient.ID,
		Status:      status,
		CreatedAt:   f.pastTime(f.opts.MaxDays / 2),
	}
	if listing != nil {
		conv.ListingID = &listing.ID
		puzzleID := listing.PuzzleID
		conv.PuzzleID = &puzzleID
	}
	for _, override := range overrides {
		override(conv)
	}
	if err := f.persist("Conversation", &conv.ID, conv, fmt.Sprintf("%d -> %d status=%s", conv.InitiatorID, conv.RecipientID, conv.Status)); err != nil {
		return nil, err
	}
	return conv, nil
}

// CreateMessage persists a user message in conversation from sender and
// moves the conversation's last activity forward.
func (f *Factory) CreateMessage(conv *models.Conversation, sender *models.Player, sentAt time.Time, overrides ...func(*models.Message)) (*models.Message, error) {
	msg := models.NewMessage(conv.ID, models.UserMessage{SenderID: sender.ID, Content: gofakeit.Sentence(gofakeit.Number(4, 16))}, sentAt)
	for _, override := range overrides {
		override(msg)
	}
	return msg, f.appendMessage(conv, msg)
}

// CreateSystemMessage persists a platform event in conversation.
func (f *Factory) CreateSystemMessage(conv *models.Conversation, msgType models.SystemMessageType, target *uint, sentAt time.Time) (*models.Message, error) {
	msg := models.NewMessage(conv.ID, models.SystemMessage{Type: msgType, TargetPlayerID: target}, sentAt)
	return msg, f.appendMessage(conv, msg)
}

func (f *Factory) appendMessage(conv *models.Conversation, msg *models.Message) error {
	if err := f.persist("Message", &msg.ID, msg, fmt.Sprintf("conversation=%d system=%t", msg.ConversationID, msg.IsSystem())); err != nil {
		return err
	}
	if conv.LastMessageAt != nil && !msg.SentAt.After(*conv.LastMessageAt) {
		return nil
	}
	sentAt := msg.SentAt
	conv.LastMessageAt = &sentAt
	if f.opts.DryRun {
		return nil
	}
	return f.db.Model(conv).Update("last_message_at", sentAt).Error
}

// CreateTransaction records the sale of listing to buyer.
func (f *Factory) CreateTransaction(listing *models.Listing, buyer *models.Player, soldAt time.Time) (*models.Transaction, error) {
	sale := &models.Transaction{
		ListingID:   &listing.ID,
		PuzzleID:    listing.PuzzleID,
		SellerID:    listing.SellerID,
		BuyerID:     &buyer.ID,
		BuyerName:   buyer.DisplayName,
		ListingType: listing.ListingType,
		Price:       listing.Price,
		SoldAt:      soldAt,
	}
	if err := f.persist("Transaction", &sale.ID, sale, fmt.Sprintf("listing=%d buyer=%d", listing.ID, buyer.ID)); err != nil {
		return nil, err
	}
	return sale, nil
}

// CreateBlock persists a directional block.
func (f *Factory) CreateBlock(blocker, blocked *models.Player) (*models.PlayerBlock, error) {
	block := &models.PlayerBlock{BlockerID: blocker.ID, BlockedID: blocked.ID, BlockedAt: f.pastTime(14)}
	if err := f.persist("Block", nil, block, fmt.Sprintf("%d blocks %d", blocker.ID, blocked.ID)); err != nil {
		return nil, err
	}
	return block, nil
}

// ReviewText returns a short fake review, or nil for a stars-only rating.
func ReviewText() *string {
	if gofakeit.Bool() {
		return nil
	}
	text := gofakeit.RandomString([]string{
		"All pieces present, great seller.",
		"Quick handover, puzzle as described.",
		"Friendly and on time.",
		"Box slightly damaged but complete.",
		"Smooth swap, would trade again.",
	})
	return &text
}

// CreateReport files a pending report by reporter on conversation.
func (f *Factory) CreateReport(conv *models.Conversation, reporter *models.Player, reason string) (*models.ConversationReport, error) {
	report := &models.ConversationReport{
		ConversationID: conv.ID,
		ReporterID:     reporter.ID,
		Reason:         reason,
		Status:         models.ReportStatusPending,
		ReportedAt:     f.pastTime(7),
	}
	if err := f.persist("Report", &report.ID, report, fmt.Sprintf("conversation=%d reporter=%d", conv.ID, reporter.ID)); err != nil {
		return nil, err
	}
	return report, nil
}
