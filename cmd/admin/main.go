// Package main provides admin and moderation utilities for the puzzle
// marketplace.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"puzzlemarket/internal/config"
	"puzzlemarket/internal/database"
	"puzzlemarket/internal/models"
	"puzzlemarket/internal/repository"
	"puzzlemarket/internal/service"

	"gorm.io/gorm"
)

func usage() {
	fmt.Println("Usage:")
	fmt.Println("  go run ./cmd/admin promote <player_id>                                  - Promote player to admin")
	fmt.Println("  go run ./cmd/admin demote <player_id>                                   - Demote player from admin")
	fmt.Println("  go run ./cmd/admin list-admins                                          - List all admins")
	fmt.Println("  go run ./cmd/admin reports [pending|resolved]                           - List conversation reports")
	fmt.Println("  go run ./cmd/admin resolve <admin_id> <report_id> <note>                - Resolve a report without action")
	fmt.Println("  go run ./cmd/admin sanction <admin_id> <type> <player_id> <reason> [h]  - Apply warn/mute/ban/lift_mute/lift_ban")
	fmt.Println("  go run ./cmd/admin player <player_id>                                   - Show moderation history")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()
	db, err := database.Connect(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	moderation := service.NewModerationService(repository.NewStores(db), nil)

	args := os.Args[2:]
	switch os.Args[1] {
	case "promote":
		setAdmin(db, arg(args, 0, "promote <player_id>"), true)
	case "demote":
		setAdmin(db, arg(args, 0, "demote <player_id>"), false)
	case "list-admins":
		listAdmins(db)
	case "reports":
		listReports(ctx, moderation, args)
	case "resolve":
		adminID := parseID(arg(args, 0, "resolve <admin_id> <report_id> <note>"))
		reportID := parseID(arg(args, 1, "resolve <admin_id> <report_id> <note>"))
		note := strings.Join(args[2:], " ")
		report, err := moderation.Resolve(ctx, reportID, adminID, note, nil)
		if err != nil {
			log.Fatalf("Failed to resolve report: %v", err)
		}
		fmt.Printf("✅ Report %d resolved at %s\n", report.ID, report.ResolvedAt.Format(time.RFC3339))
	case "sanction":
		sanction(ctx, moderation, args)
	case "player":
		showPlayer(ctx, moderation, parseID(arg(args, 0, "player <player_id>")))
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		usage()
		os.Exit(1)
	}
}

func arg(args []string, i int, form string) string {
	if len(args) <= i {
		fmt.Printf("Usage: go run ./cmd/admin %s\n", form)
		os.Exit(1)
	}
	return args[i]
}

func parseID(raw string) uint {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		log.Fatalf("Invalid id %q", raw)
	}
	return uint(id)
}

func setAdmin(db *gorm.DB, rawID string, admin bool) {
	var player models.Player
	if err := db.First(&player, parseID(rawID)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			fmt.Printf("Player with ID %s not found\n", rawID)
		} else {
			log.Fatalf("Database error: %v", err)
		}
		os.Exit(1)
	}

	if player.IsAdmin == admin {
		fmt.Printf("Player %s (ID: %d) already has is_admin=%t\n", player.DisplayName, player.ID, admin)
		return
	}

	if err := db.Model(&player).Update("is_admin", admin).Error; err != nil {
		log.Fatalf("Failed to update player: %v", err)
	}

	verb := "promoted"
	if !admin {
		verb = "demoted"
	}
	fmt.Printf("✅ Successfully %s %s (ID: %d)\n", verb, player.DisplayName, player.ID)
}

func listAdmins(db *gorm.DB) {
	var admins []models.Player
	if err := db.Where("is_admin = ?", true).Order("id").Find(&admins).Error; err != nil {
		log.Fatalf("Failed to fetch admins: %v", err)
	}

	if len(admins) == 0 {
		fmt.Println("No admins found in the system")
		return
	}

	fmt.Println("\n📋 Current Admins:")
	fmt.Println("─────────────────────────────────────")
	for _, admin := range admins {
		fmt.Printf("ID: %d | Name: %s | Code: %s\n", admin.ID, admin.DisplayName, admin.Code)
	}
	fmt.Println("─────────────────────────────────────")
}

func listReports(ctx context.Context, moderation *service.ModerationService, args []string) {
	var status *models.ReportStatus
	if len(args) > 0 {
		s := models.ReportStatus(args[0])
		status = &s
	}
	reports, err := moderation.ListReports(ctx, status, 100, 0)
	if err != nil {
		log.Fatalf("Failed to list reports: %v", err)
	}
	if len(reports) == 0 {
		fmt.Println("No reports")
		return
	}
	for _, r := range reports {
		fmt.Printf("#%d | %s | conversation %d | reporter %d | %s | %q\n",
			r.ID, r.Status, r.ConversationID, r.ReporterID, r.ReportedAt.Format(time.RFC3339), r.Reason)
	}
}

func sanction(ctx context.Context, moderation *service.ModerationService, args []string) {
	const form = "sanction <admin_id> <type> <player_id> <reason> [hours]"
	in := service.ActionInput{
		Type:           models.ModerationActionType(arg(args, 1, form)),
		TargetPlayerID: parseID(arg(args, 2, form)),
		Reason:         arg(args, 3, form),
	}
	if len(args) > 4 {
		hours, err := strconv.Atoi(args[4])
		if err != nil || hours <= 0 {
			log.Fatalf("Invalid duration %q", args[4])
		}
		expires := time.Now().UTC().Add(time.Duration(hours) * time.Hour)
		in.ExpiresAt = &expires
	}
	action, err := moderation.ApplyAction(ctx, parseID(arg(args, 0, form)), in)
	if err != nil {
		log.Fatalf("Failed to apply %s: %v", in.Type, err)
	}
	fmt.Printf("✅ Recorded %s #%d for player %d\n", action.ActionType, action.ID, action.TargetPlayerID)
}

func showPlayer(ctx context.Context, moderation *service.ModerationService, playerID uint) {
	detail, err := moderation.PlayerDetail(ctx, playerID)
	if err != nil {
		log.Fatalf("Failed to load player: %v", err)
	}
	fmt.Printf("%s (ID: %d) muted=%t banned=%t\n", detail.Player.DisplayName, detail.Player.ID,
		detail.ActiveMute != nil, detail.ActiveBan != nil)
	for _, a := range detail.Actions {
		expires := "never"
		if a.ExpiresAt != nil {
			expires = a.ExpiresAt.Format(time.RFC3339)
		}
		fmt.Printf("  %s | %s by %d | expires %s | %q\n", a.PerformedAt.Format(time.RFC3339), a.ActionType, a.AdminID, expires, a.Reason)
	}
	for _, w := range detail.Warnings {
		fmt.Printf("  ⚠️  %s\n", w)
	}
}
