package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"mess/internal/attendance"
	"mess/internal/config"
	"mess/internal/digest"
	"mess/internal/meal"
	"mess/internal/notify"
	"mess/internal/roster"
	"mess/internal/store"
)

// Notifier runs the recurring attendance digest: on each tick it re-reads
// the notification config, aggregates the recent window, and dispatches a
// push notification when there is something to report.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)

	resolver := meal.NewResolver()
	attStore := attendance.NewRepository(db.Client)
	dir := roster.NewRepository(db.Client)
	dig := digest.NewService(attStore, dir, resolver)
	settings := notify.NewRedisSettings(redisClient.Client, "")

	var transport notify.Transport
	if cfg.NotifyTransport == "sns" && cfg.SNSTopicARN != "" {
		snsTransport, err := notify.NewSNSTransport(ctx, cfg.AWSRegion, cfg.SNSTopicARN)
		if err != nil {
			log.Fatalf("sns transport init failed: %v", err)
		}
		transport = snsTransport
		log.Printf("SNS transport configured: %s", cfg.SNSTopicARN)
	} else {
		transport = notify.NewConsoleTransport()
		log.Println("console transport configured (SNS_TOPIC_ARN not set)")
	}

	sched := notify.NewScheduler(dig, settings, transport, nil)

	// Surface a denied permission at startup; the scheduler itself stays
	// gated until permission is granted.
	if ncfg, err := settings.Load(ctx); err == nil && ncfg.Enabled {
		if err := sched.Enable(ctx); err != nil {
			log.Printf("WARNING: notifications enabled in settings but not permitted: %v", err)
		}
	}

	sched.Run(ctx)
}
