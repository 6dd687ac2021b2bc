// Command reclaim releases stale processing claims so crashed attempts do
// not strand messages. It is meant for operators; the worker runs the same
// reclaim on a timer.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"leadchat_backend/internal/config"
	"leadchat_backend/internal/store"
	"leadchat_backend/platform/db"
	"leadchat_backend/platform/logger"
)

func main() {
	after := flag.Duration("after", 0, "release claims older than this (default RECLAIM_AFTER from env)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	olderThan := cfg.ReclaimAfter
	if *after > 0 {
		olderThan = *after
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	released, err := store.NewMessageRepository(pool).ReclaimStale(ctx, olderThan)
	if err != nil {
		log.Error("failed to reclaim stale claims", "error", err)
		os.Exit(1)
	}

	log.Info("reclaimed stale message claims", "count", released, "older_than", olderThan.String())
}
