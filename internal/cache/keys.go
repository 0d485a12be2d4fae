package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	StandingKeyPrefix = "standing:%d"
	PlayerKeyPrefix   = "player:%d"
	ListingKeyPrefix  = "listing:%d"
	DigestLockKey     = "lock:digest-sweep"
)

const (
	PlayerTTL  = 5 * time.Minute
	ListingTTL = 2 * time.Minute
)

func StandingKey(playerID uint) string {
	return fmt.Sprintf(StandingKeyPrefix, playerID)
}

func PlayerKey(playerID uint) string {
	return fmt.Sprintf(PlayerKeyPrefix, playerID)
}

func ListingKey(listingID uint) string {
	return fmt.Sprintf(ListingKeyPrefix, listingID)
}

// Invalidate removes key. Failures are ignored; every cached value has a TTL.
func Invalidate(ctx context.Context, key string) {
	if client != nil {
		client.Del(ctx, key)
	}
}

func InvalidateStanding(ctx context.Context, playerID uint) {
	Invalidate(ctx, StandingKey(playerID))
}

func InvalidateListing(ctx context.Context, listingID uint) {
	Invalidate(ctx, ListingKey(listingID))
}
