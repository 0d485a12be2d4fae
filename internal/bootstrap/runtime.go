// Package bootstrap wires the process-wide dependencies shared by the
// server and the worker commands.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"puzzlemarket/internal/cache"
	"puzzlemarket/internal/config"
	"puzzlemarket/internal/database"
	"puzzlemarket/internal/messaging"
	"puzzlemarket/internal/middleware"
	"puzzlemarket/internal/models"
	"puzzlemarket/internal/seed"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// ConnectNATS dials the message bus. A failed dial is logged and the
	// runtime continues without it.
	ConnectNATS bool
	// SeedPreset fills an empty development database with demo data.
	SeedPreset string
}

// Runtime holds the connections a command needs. Redis and NATS may be nil
// when unreachable.
type Runtime struct {
	DB    *gorm.DB
	Redis *redis.Client
	NATS  *messaging.NATSClient
}

// InitRuntime connects to DB, Redis and optionally NATS, then applies the
// development conveniences.
func InitRuntime(ctx context.Context, cfg *config.Config, opts Options) (*Runtime, error) {
	db, err := database.Connect(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	rt := &Runtime{DB: db}

	rt.Redis = cache.InitRedis(ctx, cfg.RedisURL)

	if opts.ConnectNATS {
		natsCfg := messaging.DefaultNATSConfig()
		natsCfg.URL = cfg.NATSURL
		client, err := messaging.NewNATSClient(natsCfg)
		if err != nil {
			middleware.Logger.Warn("NATS unavailable, continuing without it", slog.String("error", err.Error()))
		} else {
			rt.NATS = client
		}
	}

	if err := ensureDevAdmin(ctx, cfg, db); err != nil {
		rt.Close()
		return nil, fmt.Errorf("failed to bootstrap development admin: %w", err)
	}

	if opts.SeedPreset != "" && isDevelopment(cfg) {
		if err := seedIfEmpty(ctx, db, opts.SeedPreset); err != nil {
			rt.Close()
			return nil, fmt.Errorf("failed to seed demo data: %w", err)
		}
	}

	return rt, nil
}

// Close releases every connection the runtime opened.
func (r *Runtime) Close() {
	if r.NATS != nil {
		r.NATS.Close()
	}
	if r.Redis != nil {
		if err := r.Redis.Close(); err != nil {
			middleware.Logger.Warn("redis close failed", slog.String("error", err.Error()))
		}
	}
	if r.DB != nil {
		if sqlDB, err := r.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}

func isDevelopment(cfg *config.Config) bool {
	return cfg != nil && strings.EqualFold(cfg.Env, "development")
}

// ensureDevAdmin flags DEV_ADMIN_PLAYER_ID as an admin. Players are owned
// by the identity service, so a missing row is only logged.
func ensureDevAdmin(ctx context.Context, cfg *config.Config, db *gorm.DB) error {
	if db == nil || !isDevelopment(cfg) || cfg.DevAdminPlayerID == 0 {
		return nil
	}
	res := db.WithContext(ctx).Model(&models.Player{}).
		Where("id = ?", cfg.DevAdminPlayerID).
		Update("is_admin", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		middleware.Logger.Warn("development admin player not found", slog.Uint64("player_id", uint64(cfg.DevAdminPlayerID)))
		return nil
	}
	middleware.Logger.Info("development admin ensured", slog.Uint64("player_id", uint64(cfg.DevAdminPlayerID)))
	return nil
}

// seedIfEmpty applies preset only when no players exist yet.
func seedIfEmpty(ctx context.Context, db *gorm.DB, preset string) error {
	var players int64
	if err := db.WithContext(ctx).Model(&models.Player{}).Count(&players).Error; err != nil {
		return err
	}
	if players > 0 {
		return nil
	}
	res, err := seed.NewSeeder(db, seed.Options{}).ApplyPreset(ctx, preset)
	if err != nil {
		return err
	}
	middleware.Logger.Info("demo data seeded", slog.String("preset", preset), slog.String("result", res.String()))
	return nil
}
