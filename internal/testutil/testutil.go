// Package testutil provides shared fixtures for package tests: an in-memory
// sqlite schema, a controllable clock and row factories.
package testutil

import (
	"context"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	"puzzlemarket/internal/config"
	"puzzlemarket/internal/database"
	"puzzlemarket/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewSQLiteDB opens a private in-memory database with the full schema.
// The pool is pinned to one connection so every query sees the same memory.
func NewSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(database.PersistentModels()...))
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

// NewPostgresDB connects to DATABASE_URL and applies the SQL migrations
// only, the way production does. The test is skipped when DATABASE_URL is
// unset.
func NewPostgresDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}
	pg, err := pgconn.ParseConfig(dsn)
	require.NoError(t, err)

	cfg := &config.Config{
		Env:                      "test",
		DBHost:                   pg.Host,
		DBPort:                   strconv.Itoa(int(pg.Port)),
		DBUser:                   pg.User,
		DBPassword:               pg.Password,
		DBName:                   pg.Database,
		DBSSLMode:                "disable",
		DBSchemaMode:             database.SchemaModeSQL,
		DBMaxOpenConns:           5,
		DBMaxIdleConns:           2,
		DBConnMaxLifetimeMinutes: 5,
	}
	db, err := database.Connect(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// Clock is a manually advanced clock. Times are UTC at microsecond
// precision so they round-trip through every supported database.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock starts a clock at start.
func NewClock(start time.Time) *Clock {
	return &Clock{now: start.UTC().Truncate(time.Microsecond)}
}

// Now returns the current clock time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set moves the clock to t.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t.UTC().Truncate(time.Microsecond)
}

// CreatePlayer inserts a player with fake profile data.
func CreatePlayer(t *testing.T, db *gorm.DB, mutate ...func(*models.Player)) *models.Player {
	t.Helper()
	p := &models.Player{
		DisplayName: gofakeit.Name(),
		Code:        gofakeit.LetterN(10),
		Country:     gofakeit.CountryAbr(),
		Email:       gofakeit.Email(),
		Locale:      "en",
		CreatedAt:   time.Now().UTC().Truncate(time.Microsecond),
	}
	for _, m := range mutate {
		m(p)
	}
	require.NoError(t, db.Create(p).Error)
	return p
}

// CreateListing inserts a sell listing owned by seller.
func CreateListing(t *testing.T, db *gorm.DB, sellerID uint, mutate ...func(*models.Listing)) *models.Listing {
	t.Helper()
	price := 25.0
	l := &models.Listing{
		SellerID:    sellerID,
		PuzzleID:    uint(gofakeit.Number(1, 100000)),
		ListingType: models.ListingTypeSell,
		Price:       &price,
		CreatedAt:   time.Now().UTC().Truncate(time.Microsecond),
	}
	for _, m := range mutate {
		m(l)
	}
	require.NoError(t, db.Create(l).Error)
	return l
}
