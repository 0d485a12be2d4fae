package models

import "time"

// Transaction is the immutable snapshot of a completed sale or swap. Later
// listing edits never touch it.
type Transaction struct {
	ID          uint        `gorm:"primaryKey" json:"id"`
	ListingID   *uint       `gorm:"uniqueIndex" json:"listing_id,omitempty"`
	PuzzleID    uint        `gorm:"not null;index" json:"puzzle_id"`
	SellerID    uint        `gorm:"not null;index" json:"seller_id"`
	BuyerID     *uint       `gorm:"index" json:"buyer_id,omitempty"`
	BuyerName   string      `gorm:"size:120;default:''" json:"buyer_name,omitempty"`
	ListingType ListingType `gorm:"type:varchar(20);not null" json:"listing_type"`
	Price       *float64    `gorm:"type:numeric(10,2)" json:"price,omitempty"`
	SoldAt      time.Time   `gorm:"not null;index" json:"sold_at"`
}

// TableName specifies the table name for GORM.
func (Transaction) TableName() string {
	return "transactions"
}

// IsParty reports whether playerID is the seller or the registered buyer.
func (t *Transaction) IsParty(playerID uint) bool {
	return t.SellerID == playerID || (t.BuyerID != nil && *t.BuyerID == playerID)
}

// ReviewerRole says which side of the transaction wrote a rating.
type ReviewerRole string

const (
	ReviewerRoleSeller ReviewerRole = "seller"
	ReviewerRoleBuyer  ReviewerRole = "buyer"
)

// Rating is one participant's review of the other party.
type Rating struct {
	ID               uint         `gorm:"primaryKey" json:"id"`
	TransactionID    uint         `gorm:"not null;uniqueIndex:idx_ratings_tx_reviewer" json:"transaction_id"`
	ReviewerID       uint         `gorm:"not null;uniqueIndex:idx_ratings_tx_reviewer" json:"reviewer_id"`
	ReviewedPlayerID uint         `gorm:"not null;index" json:"reviewed_player_id"`
	Stars            int          `gorm:"not null" json:"stars"`
	ReviewText       *string      `gorm:"type:text" json:"review_text,omitempty"`
	ReviewerRole     ReviewerRole `gorm:"type:varchar(10);not null" json:"reviewer_role"`
	RatedAt          time.Time    `gorm:"not null;index" json:"rated_at"`

	Reviewer *Player `gorm:"foreignKey:ReviewerID" json:"reviewer,omitempty"`
}

// TableName specifies the table name for GORM.
func (Rating) TableName() string {
	return "ratings"
}

// PlayerRatingSummary is the recounted aggregate for one reviewed player.
type PlayerRatingSummary struct {
	PlayerID      uint      `gorm:"primaryKey;autoIncrement:false" json:"player_id"`
	RatingCount   int64     `gorm:"not null;default:0" json:"rating_count"`
	AverageRating float64   `gorm:"type:numeric(3,2);not null;default:0" json:"average_rating"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM.
func (PlayerRatingSummary) TableName() string {
	return "player_rating_summaries"
}

// PendingRating is a transaction the player may still rate.
type PendingRating struct {
	TransactionID uint         `json:"transaction_id"`
	PuzzleID      uint         `json:"puzzle_id"`
	CounterpartID uint         `json:"counterpart_id"`
	Counterpart   *Player      `json:"counterpart,omitempty"`
	Role          ReviewerRole `json:"role"`
	ListingType   ListingType  `json:"listing_type"`
	SoldAt        time.Time    `json:"sold_at"`
	ExpiresAt     time.Time    `json:"expires_at"`
}

// PlayerMarketplaceStanding is the profile read model.
type PlayerMarketplaceStanding struct {
	PlayerID      uint    `json:"player_id"`
	RatingCount   int64   `json:"rating_count"`
	AverageRating float64 `json:"average_rating"`
	IsMuted       bool    `json:"is_muted"`
	IsBanned      bool    `json:"is_banned"`
}
