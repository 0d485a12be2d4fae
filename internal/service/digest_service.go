package service

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"puzzlemarket/internal/cache"
	"puzzlemarket/internal/models"
	"puzzlemarket/internal/notifications"
	"puzzlemarket/internal/observability"
	"puzzlemarket/internal/repository"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DigestConfig tunes the digest sweep.
type DigestConfig struct {
	// Threshold is how old an item must be before it is digested.
	Threshold time.Duration
	// MinInterval skips players digested more recently than this. Zero
	// disables the check.
	MinInterval time.Duration
	// LockTTL bounds how long a crashed sweep can block the next one.
	LockTTL time.Duration
}

// SweepReport summarizes one sweep.
type SweepReport struct {
	BatchID    string `json:"batch_id"`
	Candidates int    `json:"candidates"`
	Sent       int    `json:"sent"`
	Skipped    int    `json:"skipped"`
	Failed     int    `json:"failed"`
}

// DigestService finds players with old unread activity and sends each one
// digest, never twice for the same items.
type DigestService struct {
	stores *repository.Stores
	mailer notifications.DigestMailer
	redis  *redis.Client
	cfg    DigestConfig
	now    Clock
}

// NewDigestService returns a new DigestService. With a nil Redis client the
// sweep runs unlocked, which is only safe for a single worker.
func NewDigestService(stores *repository.Stores, mailer notifications.DigestMailer, rdb *redis.Client, cfg DigestConfig, clock Clock) *DigestService {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 12 * time.Hour
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 5 * time.Minute
	}
	return &DigestService{stores: stores, mailer: mailer, redis: rdb, cfg: cfg, now: orSystemClock(clock)}
}

// digestCandidate gathers what one player is owed per category.
type digestCandidate struct {
	counts map[models.DigestCategory]int64
	newest map[models.DigestCategory]time.Time
}

// Sweep runs one digest pass. It returns cache.ErrLockHeld when another
// worker is already sweeping.
func (s *DigestService) Sweep(ctx context.Context) (*SweepReport, error) {
	if s.redis != nil {
		lock, err := cache.AcquireLock(ctx, s.redis, cache.DigestLockKey, s.cfg.LockTTL)
		if err != nil {
			return nil, err
		}
		defer func() {
			if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
				slog.WarnContext(ctx, "failed to release digest lock", "err", err)
			}
		}()
	}

	start := time.Now()
	defer observability.ObserveSweep(start)

	ctx, span := startSpan(ctx, "DigestService", "Sweep")
	defer span.End()

	now := s.now()
	report := &SweepReport{BatchID: uuid.NewString()}
	span.SetAttributes(observability.DigestBatchKey.String(report.BatchID))
	candidates, err := s.collect(ctx, now.Add(-s.cfg.Threshold))
	if err != nil {
		span.RecordError(err)
		return nil, appError(err)
	}
	report.Candidates = len(candidates)
	if len(candidates) == 0 {
		return report, nil
	}

	ids := make([]uint, 0, len(candidates))
	for id := range candidates {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	players, err := s.stores.Players.GetByIDs(ctx, ids)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	for _, playerID := range ids {
		outcome := s.dispatch(ctx, report.BatchID, players[playerID], playerID, candidates[playerID], now)
		observability.DigestsSent.WithLabelValues(outcome).Inc()
		switch outcome {
		case "sent":
			report.Sent++
		case "skipped":
			report.Skipped++
		default:
			report.Failed++
		}
	}

	slog.InfoContext(ctx, "digest sweep finished",
		"batch_id", report.BatchID,
		"candidates", report.Candidates,
		"sent", report.Sent,
		"skipped", report.Skipped,
		"failed", report.Failed,
	)
	return report, nil
}

func (s *DigestService) collect(ctx context.Context, cutoff time.Time) (map[uint]*digestCandidate, error) {
	out := make(map[uint]*digestCandidate)
	for _, category := range models.DigestCategories {
		items, err := s.stores.Digests.Candidates(ctx, category, cutoff)
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			c, ok := out[item.PlayerID]
			if !ok {
				c = &digestCandidate{
					counts: make(map[models.DigestCategory]int64),
					newest: make(map[models.DigestCategory]time.Time),
				}
				out[item.PlayerID] = c
			}
			c.counts[category]++
			if item.ItemAt.After(c.newest[category]) {
				c.newest[category] = item.ItemAt.UTC()
			}
		}
	}
	return out, nil
}

// dispatch sends one player's digest and appends the watermark row. Errors
// stay inside this player; the sweep always continues.
func (s *DigestService) dispatch(ctx context.Context, batchID string, player *models.Player, playerID uint, c *digestCandidate, now time.Time) string {
	log := slog.With("batch_id", batchID, "player_id", playerID)
	if player == nil {
		log.WarnContext(ctx, "digest candidate has no player record")
		return "failed"
	}

	latest, err := s.stores.Digests.Latest(ctx, playerID)
	if err != nil {
		log.ErrorContext(ctx, "failed to read digest watermark", "err", err)
		return "failed"
	}
	if s.cfg.MinInterval > 0 && latest != nil && now.Sub(latest.SentAt) < s.cfg.MinInterval {
		return "skipped"
	}

	email := notifications.DigestEmail{
		BatchID:             batchID,
		PlayerID:            playerID,
		Email:               player.Email,
		DisplayName:         player.DisplayName,
		Locale:              player.Locale,
		UnreadMessages:      c.counts[models.DigestCategoryUnreadMessages],
		PendingRequests:     c.counts[models.DigestCategoryPendingRequests],
		UnreadNotifications: c.counts[models.DigestCategoryUnreadNotifications],
		GeneratedAt:         now,
	}
	if email.Empty() {
		return "skipped"
	}
	if err := s.mailer.SendDigest(ctx, email); err != nil {
		log.WarnContext(ctx, "digest dispatch failed", "err", err)
		return "failed"
	}

	entry := &models.DigestLog{PlayerID: playerID, SentAt: now}
	for _, category := range models.DigestCategories {
		if newest, ok := c.newest[category]; ok {
			ts := newest
			entry.SetWatermark(category, &ts)
		} else if latest != nil {
			entry.SetWatermark(category, latest.Watermark(category))
		}
	}
	if err := s.stores.Digests.Append(ctx, entry); err != nil {
		// The mail is already queued; the next sweep may repeat it once.
		log.ErrorContext(ctx, "failed to append digest log", "err", err)
		return "failed"
	}
	return "sent"
}

// LastWatermark exposes the watermark store for diagnostics.
func (s *DigestService) LastWatermark(ctx context.Context, playerID uint, category models.DigestCategory) (*time.Time, error) {
	ts, err := s.stores.Digests.LastWatermark(ctx, playerID, category)
	return ts, appError(err)
}

// IsLockHeld reports whether err means another worker owns the sweep.
func IsLockHeld(err error) bool {
	return errors.Is(err, cache.ErrLockHeld)
}
