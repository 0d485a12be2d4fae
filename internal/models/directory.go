package models

import "time"

// Player is the read-only projection of a platform player. Identity and
// profile data are owned elsewhere; this core only reads them.
type Player struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	DisplayName string    `gorm:"size:120;not null" json:"display_name"`
	Code        string    `gorm:"size:32;uniqueIndex" json:"code"`
	Avatar      string    `json:"avatar,omitempty"`
	Country     string    `gorm:"size:2" json:"country,omitempty"`
	Email       string    `json:"-"`
	Locale      string    `gorm:"size:8;default:'en'" json:"locale,omitempty"`
	IsAdmin     bool      `gorm:"default:false" json:"-"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName specifies the table name for GORM.
func (Player) TableName() string {
	return "players"
}

// ListingType describes what the seller offers.
type ListingType string

const (
	ListingTypeSell       ListingType = "sell"
	ListingTypeSwap       ListingType = "swap"
	ListingTypeSellOrSwap ListingType = "sell_or_swap"
	ListingTypeFree       ListingType = "free"
)

// Valid reports whether t is a known listing type.
func (t ListingType) Valid() bool {
	switch t {
	case ListingTypeSell, ListingTypeSwap, ListingTypeSellOrSwap, ListingTypeFree:
		return true
	}
	return false
}

// Listing is a sell/swap offer owned by the external listing service.
type Listing struct {
	ID                  uint        `gorm:"primaryKey" json:"id"`
	SellerID            uint        `gorm:"not null;index" json:"seller_id"`
	PuzzleID            uint        `gorm:"not null;index" json:"puzzle_id"`
	ListingType         ListingType `gorm:"type:varchar(20);not null" json:"listing_type"`
	Price               *float64    `gorm:"type:numeric(10,2)" json:"price,omitempty"`
	Reserved            bool        `gorm:"default:false" json:"reserved"`
	ReservedForPlayerID *uint       `json:"reserved_for_player_id,omitempty"`
	CreatedAt           time.Time   `json:"created_at"`
}

// TableName specifies the table name for GORM.
func (Listing) TableName() string {
	return "listings"
}

// Notification is a platform notification row. The digest only reads
// unread ones.
type Notification struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	PlayerID  uint       `gorm:"not null;index" json:"player_id"`
	Type      string     `gorm:"size:64" json:"type"`
	CreatedAt time.Time  `json:"created_at"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
}

// TableName specifies the table name for GORM.
func (Notification) TableName() string {
	return "notifications"
}
