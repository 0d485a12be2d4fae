package database

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"puzzlemarket/internal/middleware"

	"gorm.io/gorm"
)

// migrationLockKey serializes schema changes across processes starting at
// the same time. Postgres only.
const migrationLockKey = 7_020_417

// MigrationLog records one applied migration.
type MigrationLog struct {
	Version   int       `gorm:"primaryKey;autoIncrement:false"`
	Name      string    `gorm:"size:255;not null"`
	AppliedAt time.Time `gorm:"not null;index"`
}

// TableName returns the database table name for MigrationLog.
func (MigrationLog) TableName() string {
	return "migration_logs"
}

// Migrator applies and reverts SQL migrations, tracking them in
// migration_logs.
type Migrator struct {
	db         *gorm.DB
	migrations []Migration
	now        func() time.Time
}

// NewMigrator returns a Migrator for the embedded migrations.
func NewMigrator(db *gorm.DB) (*Migrator, error) {
	set, err := Migrations()
	if err != nil {
		return nil, err
	}
	return newMigrator(db, set), nil
}

func newMigrator(db *gorm.DB, set []Migration) *Migrator {
	return &Migrator{db: db, migrations: set, now: func() time.Time { return time.Now().UTC() }}
}

// Applied lists recorded migrations, oldest first. A database that was
// never migrated has none.
func (m *Migrator) Applied(ctx context.Context) ([]MigrationLog, error) {
	db := m.db.WithContext(ctx)
	if !db.Migrator().HasTable(&MigrationLog{}) {
		return nil, nil
	}
	var logs []MigrationLog
	if err := db.Order("version").Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("read migration_logs: %w", err)
	}
	return logs, nil
}

// Pending lists migrations not applied yet. It fails when the database
// carries versions this build does not know, which means it was migrated by
// a newer build or a deleted branch.
func (m *Migrator) Pending(ctx context.Context) ([]Migration, error) {
	applied, err := m.Applied(ctx)
	if err != nil {
		return nil, err
	}

	done := make(map[int]bool, len(applied))
	for _, log := range applied {
		done[log.Version] = true
	}
	known := make(map[int]bool, len(m.migrations))
	var pending []Migration
	for _, mig := range m.migrations {
		known[mig.Version] = true
		if !done[mig.Version] {
			pending = append(pending, mig)
		}
	}

	var unknown []string
	for _, log := range applied {
		if !known[log.Version] {
			unknown = append(unknown, fmt.Sprintf("%06d_%s", log.Version, log.Name))
		}
	}
	if len(unknown) > 0 {
		return nil, fmt.Errorf("database has migrations this build does not know: %s", strings.Join(unknown, ", "))
	}
	return pending, nil
}

// Up applies every pending migration, each in its own transaction, and
// returns how many ran.
func (m *Migrator) Up(ctx context.Context) (int, error) {
	if err := m.db.WithContext(ctx).Migrator().AutoMigrate(&MigrationLog{}); err != nil {
		return 0, fmt.Errorf("create migration_logs: %w", err)
	}
	pending, err := m.Pending(ctx)
	if err != nil {
		return 0, err
	}

	ran := 0
	for _, mig := range pending {
		applied, err := m.apply(ctx, mig)
		if err != nil {
			return ran, err
		}
		if applied {
			ran++
		}
	}
	return ran, nil
}

// apply runs one migration unless a concurrent migrator got there first.
func (m *Migrator) apply(ctx context.Context, mig Migration) (bool, error) {
	applied := false
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockSchema(tx); err != nil {
			return err
		}
		var count int64
		if err := tx.Model(&MigrationLog{}).Where("version = ?", mig.Version).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}

		middleware.Logger.InfoContext(ctx, "applying migration", slog.String("migration", mig.String()))
		if err := tx.Exec(mig.Up).Error; err != nil {
			return fmt.Errorf("apply %s: %w", mig, err)
		}
		if err := tx.Create(&MigrationLog{Version: mig.Version, Name: mig.Name, AppliedAt: m.now()}).Error; err != nil {
			return fmt.Errorf("record %s: %w", mig, err)
		}
		applied = true
		return nil
	})
	return applied, err
}

// Down reverts the most recently applied migration, which must be version.
func (m *Migrator) Down(ctx context.Context, version int) error {
	applied, err := m.Applied(ctx)
	if err != nil {
		return err
	}
	if len(applied) == 0 {
		return fmt.Errorf("no migrations applied")
	}
	if last := applied[len(applied)-1]; last.Version != version {
		return fmt.Errorf("can only roll back the latest migration %06d_%s", last.Version, last.Name)
	}

	var mig *Migration
	for i := range m.migrations {
		if m.migrations[i].Version == version {
			mig = &m.migrations[i]
		}
	}
	if mig == nil {
		return fmt.Errorf("migration %06d is not part of this build", version)
	}

	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockSchema(tx); err != nil {
			return err
		}
		middleware.Logger.InfoContext(ctx, "rolling back migration", slog.String("migration", mig.String()))
		if err := tx.Exec(mig.Down).Error; err != nil {
			return fmt.Errorf("roll back %s: %w", mig, err)
		}
		return tx.Delete(&MigrationLog{}, "version = ?", version).Error
	})
}

func lockSchema(tx *gorm.DB) error {
	if tx.Dialector.Name() != "postgres" {
		return nil
	}
	return tx.Exec("SELECT pg_advisory_xact_lock(?)", migrationLockKey).Error
}

// RunMigrations applies all pending embedded migrations.
func RunMigrations(ctx context.Context, db *gorm.DB) error {
	m, err := NewMigrator(db)
	if err != nil {
		return err
	}
	n, err := m.Up(ctx)
	if n > 0 {
		middleware.Logger.InfoContext(ctx, "migrations applied", slog.Int("count", n))
	}
	return err
}
