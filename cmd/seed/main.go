// Command seed fills a development database with marketplace demo data.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"slices"
	"strings"

	"puzzlemarket/internal/config"
	"puzzlemarket/internal/database"
	"puzzlemarket/internal/seed"
)

func main() {
	opts := seed.Options{}
	flag.IntVar(&opts.NumPlayers, "players", 40, "players to create")
	flag.IntVar(&opts.NumListings, "listings", 80, "listings to create")
	flag.IntVar(&opts.NumConversations, "conversations", 120, "conversations to attempt")
	flag.IntVar(&opts.MaxDays, "days", 60, "how far back generated activity reaches")
	flag.BoolVar(&opts.DryRun, "dry-run", false, "log what would be created without writing")
	clean := flag.Bool("clean", true, "delete existing marketplace data first")
	preset := flag.String("preset", "", "named preset: "+strings.Join(presetNames(), ", "))
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.IsProduction() {
		log.Fatal("❌ Refusing to seed a production database")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	db, err := database.Connect(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	s := seed.NewSeeder(db, opts)
	if *clean {
		if err := s.ClearAll(ctx); err != nil {
			log.Fatalf("❌ Cleanup failed: %v", err)
		}
	}

	var res *seed.Result
	if *preset != "" {
		log.Printf("🌱 Applying preset %s", *preset)
		res, err = s.ApplyPreset(ctx, *preset)
	} else {
		res, err = s.Run(ctx)
	}
	if err != nil {
		log.Fatalf("❌ Seeding failed: %v", err)
	}
	log.Printf("✨ Seeded %s", res)
}

func presetNames() []string {
	names := make([]string, 0, len(seed.Presets))
	for name := range seed.Presets {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
