// Command migrate applies, inspects and reverts the marketplace schema.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"time"

	"puzzlemarket/internal/config"
	"puzzlemarket/internal/database"

	"gorm.io/gorm"
)

type command struct {
	usage string
	run   func(ctx context.Context, db *gorm.DB, cfg *config.Config, args []string) error
}

var commands = map[string]command{
	"up":     {"up                 apply pending SQL migrations", up},
	"auto":   {"auto               GORM AutoMigrate (refused in production)", auto},
	"status": {"status             show schema plan, applied and pending migrations", status},
	"down":   {"down <version>     roll back the latest migration", down},
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: go run ./cmd/migrate <command>")
	for _, name := range []string{"up", "auto", "status", "down"} {
		fmt.Fprintln(os.Stderr, "  "+commands[name].usage)
	}
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	cmd, ok := commands[os.Args[1]]
	if !ok {
		usage()
		os.Exit(2)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	db, err := database.Open(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := cmd.run(ctx, db, cfg, os.Args[2:]); err != nil {
		log.Fatalf("%s: %v", os.Args[1], err)
	}
}

func up(ctx context.Context, db *gorm.DB, _ *config.Config, _ []string) error {
	m, err := database.NewMigrator(db)
	if err != nil {
		return err
	}
	n, err := m.Up(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("✅ %d migration(s) applied\n", n)
	return nil
}

func auto(ctx context.Context, db *gorm.DB, cfg *config.Config, _ []string) error {
	cfg.DBSchemaMode = database.SchemaModeAuto
	if err := database.ApplySchema(ctx, db, cfg); err != nil {
		return err
	}
	fmt.Println("✅ AutoMigrate finished")
	return nil
}

func status(ctx context.Context, db *gorm.DB, cfg *config.Config, _ []string) error {
	st, err := database.GetSchemaStatus(ctx, db, cfg)
	if err != nil {
		return err
	}
	fmt.Printf("mode=%s env=%s sql=%t auto=%t\n", st.Mode, st.Environment, st.RunSQL, st.AutoMigrate)
	for _, a := range st.Applied {
		fmt.Printf("  applied  %06d_%s  %s\n", a.Version, a.Name, a.AppliedAt.Format(time.RFC3339))
	}
	for _, p := range st.Pending {
		fmt.Printf("  pending  %s\n", p)
	}
	return nil
}

func down(ctx context.Context, db *gorm.DB, _ *config.Config, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: down <version>")
	}
	version, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid version %q", args[0])
	}
	m, err := database.NewMigrator(db)
	if err != nil {
		return err
	}
	if err := m.Down(ctx, version); err != nil {
		return err
	}
	fmt.Printf("✅ rolled back %06d\n", version)
	return nil
}
