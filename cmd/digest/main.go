// Command digest runs the periodic email digest sweep.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"puzzlemarket/internal/bootstrap"
	"puzzlemarket/internal/config"
	"puzzlemarket/internal/middleware"
	"puzzlemarket/internal/notifications"
	"puzzlemarket/internal/repository"
	"puzzlemarket/internal/scheduler"
	"puzzlemarket/internal/service"
)

func main() {
	once := flag.Bool("once", false, "Run a single sweep and exit")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := bootstrap.InitRuntime(ctx, cfg, bootstrap.Options{ConnectNATS: true})
	if err != nil {
		log.Fatalf("Failed to initialize runtime: %v", err)
	}
	defer rt.Close()

	var mailer notifications.DigestMailer = notifications.LogDigestMailer{}
	if rt.NATS != nil {
		mailer = notifications.NewNATSDigestMailer(rt.NATS)
	} else if cfg.IsProduction() {
		log.Fatal("NATS is required to deliver digests in production")
	}
	if rt.Redis == nil {
		middleware.Logger.Warn("Redis unavailable; digest sweep runs without the cross-worker lock")
	}

	digests := service.NewDigestService(repository.NewStores(rt.DB), mailer, rt.Redis, service.DigestConfig{
		Threshold:   cfg.DigestThreshold(),
		MinInterval: cfg.DigestMinInterval(),
		LockTTL:     cfg.DigestLockTTL(),
	}, nil)
	logger := middleware.Logger.With(slog.String("component", "digest"))
	job := scheduler.DigestJob(digests, logger)

	if *once {
		if err := job(ctx); err != nil {
			log.Fatalf("Digest sweep failed: %v", err)
		}
		return
	}

	runner := scheduler.NewRunner("digest", cfg.DigestInterval(), job, logger)
	logger.Info("digest worker started", slog.Duration("interval", cfg.DigestInterval()))
	if err := runner.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("Digest worker stopped: %v", err)
	}
	logger.Info("digest worker stopped")
}
