package repository

import (
	"context"

	"gorm.io/gorm"
)

// Stores bundles every repository over one database handle so a service can
// run several of them inside a single transaction.
type Stores struct {
	DB            *gorm.DB
	Players       PlayerRepository
	Listings      ListingRepository
	Blocks        BlockRepository
	Conversations ConversationRepository
	Messages      MessageRepository
	Moderation    ModerationRepository
	Transactions  TransactionRepository
	Ratings       RatingRepository
	Digests       DigestRepository
}

// NewStores builds repositories on db.
func NewStores(db *gorm.DB) *Stores {
	return &Stores{
		DB:            db,
		Players:       NewPlayerRepository(db),
		Listings:      NewListingRepository(db),
		Blocks:        NewBlockRepository(db),
		Conversations: NewConversationRepository(db),
		Messages:      NewMessageRepository(db),
		Moderation:    NewModerationRepository(db),
		Transactions:  NewTransactionRepository(db),
		Ratings:       NewRatingRepository(db),
		Digests:       NewDigestRepository(db),
	}
}

// WithTx runs fn with stores bound to one transaction. fn's error rolls
// everything back.
func (s *Stores) WithTx(ctx context.Context, fn func(tx *Stores) error) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewStores(tx))
	})
}
