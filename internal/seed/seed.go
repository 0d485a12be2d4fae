package seed

import (
	"context"
	"fmt"
	"log"
	"time"

	"puzzlemarket/internal/models"
	"puzzlemarket/internal/repository"
	"puzzlemarket/internal/service"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"
)

// Options configuration for the seeder
type Options struct {
	NumPlayers       int
	NumListings      int
	NumConversations int
	DryRun           bool
	MaxDays          int
	// Now anchors generated timestamps; the rating window is measured
	// against it too.
	Now func() time.Time
}

// Presets are named Options for common setups.
var Presets = map[string]Options{
	"Small": {NumPlayers: 8, NumListings: 12, NumConversations: 15, MaxDays: 30},
	"Demo":  {NumPlayers: 40, NumListings: 80, NumConversations: 120, MaxDays: 60},
	"Busy":  {NumPlayers: 250, NumListings: 600, NumConversations: 1500, MaxDays: 90},
}

// Result counts what a seeding run created.
type Result struct {
	Players       int
	Listings      int
	Conversations int
	Messages      int
	Transactions  int
	Ratings       int
	Blocks        int
	Reports       int
}

func (r Result) String() string {
	return fmt.Sprintf("players=%d listings=%d conversations=%d messages=%d transactions=%d ratings=%d blocks=%d reports=%d",
		r.Players, r.Listings, r.Conversations, r.Messages, r.Transactions, r.Ratings, r.Blocks, r.Reports)
}

// Seeder fills a database with a coherent marketplace: players with
// listings, negotiation threads in every lifecycle state, completed sales
// with ratings and a few blocks and reports for the moderation queue.
type Seeder struct {
	db      *gorm.DB
	opts    Options
	factory *Factory
	ratings *service.RatingService
}

// NewSeeder returns a seeder bound to db.
func NewSeeder(db *gorm.DB, opts Options) *Seeder {
	if opts.NumPlayers < 2 {
		opts.NumPlayers = 2
	}
	factory := NewFactory(db, FactoryOptions{DryRun: opts.DryRun, MaxDays: opts.MaxDays, Now: opts.Now})
	s := &Seeder{db: db, opts: opts, factory: factory}
	if !opts.DryRun {
		s.ratings = service.NewRatingService(repository.NewStores(db), service.DefaultRatingWindow, factory.now)
	}
	return s
}

// ApplyPreset seeds using one of Presets, keeping the seeder's DryRun and
// clock.
func (s *Seeder) ApplyPreset(ctx context.Context, name string) (*Result, error) {
	preset, ok := Presets[name]
	if !ok {
		return nil, fmt.Errorf("unknown preset %q", name)
	}
	preset.DryRun = s.opts.DryRun
	preset.Now = s.opts.Now
	return NewSeeder(s.db, preset).Run(ctx)
}

// ClearAll removes every marketplace row, children first.
func (s *Seeder) ClearAll(ctx context.Context) error {
	if s.opts.DryRun {
		log.Println("[dry-run] ClearAll skipped")
		return nil
	}
	log.Println("🗑️  Clearing existing data...")
	db := s.db.WithContext(ctx)
	if db.Dialector.Name() == "postgres" {
		return db.Exec(`TRUNCATE TABLE ratings, player_rating_summaries, digest_logs, moderation_actions,
			conversation_reports, messages, conversations, player_blocks, transactions, notifications,
			listings, players RESTART IDENTITY CASCADE`).Error
	}
	all := db.Session(&gorm.Session{AllowGlobalUpdate: true})
	for _, model := range []any{
		&models.Rating{}, &models.PlayerRatingSummary{}, &models.DigestLog{}, &models.ModerationAction{},
		&models.ConversationReport{}, &models.Message{}, &models.Conversation{}, &models.PlayerBlock{},
		&models.Transaction{}, &models.Notification{}, &models.Listing{}, &models.Player{},
	} {
		if err := all.Delete(model).Error; err != nil {
			return fmt.Errorf("clear %T: %w", model, err)
		}
	}
	return nil
}

// Run seeds the configured amounts.
func (s *Seeder) Run(ctx context.Context) (*Result, error) {
	log.Printf("🌱 Seeding %d players, %d listings, %d conversations...", s.opts.NumPlayers, s.opts.NumListings, s.opts.NumConversations)
	res := &Result{}

	players, err := s.seedPlayers(res)
	if err != nil {
		return res, fmt.Errorf("failed to create players: %w", err)
	}
	listings, err := s.seedListings(players, res)
	if err != nil {
		return res, fmt.Errorf("failed to create listings: %w", err)
	}
	if err := s.seedConversations(ctx, players, listings, res); err != nil {
		return res, fmt.Errorf("failed to create conversations: %w", err)
	}
	if err := s.seedBlocks(players, res); err != nil {
		return res, fmt.Errorf("failed to create blocks: %w", err)
	}

	log.Printf("✓ %s", res)
	return res, nil
}

// seedPlayers creates the players; the first one is an admin.
func (s *Seeder) seedPlayers(res *Result) ([]*models.Player, error) {
	players := make([]*models.Player, 0, s.opts.NumPlayers)
	for i := 0; i < s.opts.NumPlayers; i++ {
		p, err := s.factory.CreatePlayer(func(p *models.Player) { p.IsAdmin = i == 0 })
		if err != nil {
			return nil, err
		}
		players = append(players, p)
	}
	res.Players = len(players)
	return players, nil
}

func (s *Seeder) seedListings(players []*models.Player, res *Result) ([]*models.Listing, error) {
	listings := make([]*models.Listing, 0, s.opts.NumListings)
	for i := 0; i < s.opts.NumListings; i++ {
		l, err := s.factory.CreateListing(pick(players))
		if err != nil {
			return nil, err
		}
		listings = append(listings, l)
	}
	res.Listings = len(listings)
	return listings, nil
}

type threadKey struct {
	initiator, recipient, listing uint
}

// seedConversations opens threads about random listings. Accepted ones get
// a short exchange; some end in a sale that both parties may rate.
func (s *Seeder) seedConversations(ctx context.Context, players []*models.Player, listings []*models.Listing, res *Result) error {
	if len(listings) == 0 {
		return nil
	}
	byID := make(map[uint]*models.Player, len(players))
	for _, p := range players {
		byID[p.ID] = p
	}
	seen := make(map[threadKey]bool)
	sold := make(map[uint]bool)

	for i := 0; i < s.opts.NumConversations; i++ {
		listing := pick(listings)
		seller := byID[listing.SellerID]
		buyer := pick(players)
		key := threadKey{buyer.ID, seller.ID, listing.ID}
		if buyer.ID == seller.ID || seen[key] {
			continue
		}
		seen[key] = true

		status := models.ConversationStatus(gofakeit.RandomString([]string{
			string(models.ConversationStatusAccepted), string(models.ConversationStatusAccepted),
			string(models.ConversationStatusAccepted), string(models.ConversationStatusPending),
			string(models.ConversationStatusIgnored),
		}))
		conv, err := s.factory.CreateConversation(buyer, seller, listing, status)
		if err != nil {
			return err
		}
		res.Conversations++

		at := conv.CreatedAt
		if _, err := s.factory.CreateMessage(conv, buyer, at); err != nil {
			return err
		}
		res.Messages++
		if status != models.ConversationStatusAccepted {
			continue
		}

		at = s.later(at)
		if _, err := s.factory.CreateSystemMessage(conv, models.SystemMessageRequestAccepted, &buyer.ID, at); err != nil {
			return err
		}
		res.Messages++
		for n, turns := 0, gofakeit.Number(1, 6); n < turns; n++ {
			sender := seller
			if n%2 == 1 {
				sender = buyer
			}
			at = s.later(at)
			if _, err := s.factory.CreateMessage(conv, sender, at); err != nil {
				return err
			}
			res.Messages++
		}

		if sold[listing.ID] || gofakeit.Number(1, 100) > 30 {
			continue
		}
		sold[listing.ID] = true
		if err := s.completeSale(ctx, conv, listing, seller, buyer, s.later(at), res); err != nil {
			return err
		}
	}

	return s.seedReports(byID, res)
}

// completeSale records the transaction and posts the sold notice. Sales
// still inside the rating window get ratings from either party at random.
func (s *Seeder) completeSale(ctx context.Context, conv *models.Conversation, listing *models.Listing, seller, buyer *models.Player, soldAt time.Time, res *Result) error {
	sale, err := s.factory.CreateTransaction(listing, buyer, soldAt)
	if err != nil {
		return err
	}
	res.Transactions++
	if _, err := s.factory.CreateSystemMessage(conv, models.SystemMessageListingSold, &buyer.ID, soldAt); err != nil {
		return err
	}
	res.Messages++

	if s.factory.now().Sub(soldAt) >= service.DefaultRatingWindow {
		return nil
	}
	for _, reviewer := range []*models.Player{buyer, seller} {
		if gofakeit.Number(1, 100) > 70 {
			continue
		}
		if s.ratings == nil {
			log.Printf("[dry-run] Rate: transaction=%d reviewer=%d", sale.ID, reviewer.ID)
			res.Ratings++
			continue
		}
		if _, err := s.ratings.Rate(ctx, sale.ID, reviewer.ID, gofakeit.Number(3, 5), ReviewText()); err != nil {
			return fmt.Errorf("rate transaction %d: %w", sale.ID, err)
		}
		res.Ratings++
	}
	return nil
}

// seedReports files a pending report on a handful of accepted threads so
// the moderation queue is not empty.
func (s *Seeder) seedReports(byID map[uint]*models.Player, res *Result) error {
	if s.opts.DryRun {
		return nil
	}
	var convs []models.Conversation
	if err := s.db.Where("status = ?", models.ConversationStatusAccepted).Order("id").Limit(3).Find(&convs).Error; err != nil {
		return err
	}
	reasons := []string{
		"Asked me to pay outside the platform.",
		"Rude messages after I declined the price.",
		"Never showed up for the handover.",
	}
	for i := range convs {
		reporter := byID[convs[i].RecipientID]
		if reporter == nil {
			continue
		}
		if _, err := s.factory.CreateReport(&convs[i], reporter, reasons[i%len(reasons)]); err != nil {
			return err
		}
		res.Reports++
	}
	return nil
}

// seedBlocks adds one directional block per ten players.
func (s *Seeder) seedBlocks(players []*models.Player, res *Result) error {
	seen := make(map[[2]uint]bool)
	for i := 0; i < len(players)/10; i++ {
		blocker, blocked := pick(players), pick(players)
		key := [2]uint{blocker.ID, blocked.ID}
		if blocker.ID == blocked.ID || seen[key] {
			continue
		}
		seen[key] = true
		if _, err := s.factory.CreateBlock(blocker, blocked); err != nil {
			return err
		}
		res.Blocks++
	}
	return nil
}

// later advances at by a few minutes to a few hours, never past now.
func (s *Seeder) later(at time.Time) time.Time {
	next := at.Add(time.Duration(gofakeit.Number(5, 240)) * time.Minute)
	if now := s.factory.now(); next.After(now) {
		return now
	}
	return next
}

func pick[T any](items []T) T {
	return items[gofakeit.Number(0, len(items)-1)]
}
