// Package main is the entry point for the gateway binary. It accepts visit
// uploads, records them, and queues processing for the worker.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/naheedk999/docai/internal/api"
	"github.com/naheedk999/docai/internal/archive"
	"github.com/naheedk999/docai/internal/config"
	"github.com/naheedk999/docai/internal/database"
	"github.com/naheedk999/docai/internal/queue"
	"github.com/naheedk999/docai/internal/repository"
	"github.com/naheedk999/docai/internal/signing"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	defer pool.Close()
	if err := database.EnsureSchema(ctx, pool); err != nil {
		log.Fatalf("ensure schema: %v", err)
	}
	store := repository.NewVisitRepository(pool)

	arch, err := archive.New(cfg)
	if err != nil {
		log.Fatalf("init storage: %v", err)
	}
	if err := arch.EnsureBuckets(ctx); err != nil {
		log.Fatalf("ensure buckets: %v", err)
	}

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer asynqClient.Close()
	enqueuer := queue.NewClient(asynqClient)

	signer := signing.NewSigner(cfg.SigningSecret)
	srv, err := api.New(cfg, store, arch, enqueuer, signer)
	if err != nil {
		log.Fatalf("init server: %v", err)
	}

	log.Printf("gateway listening on %s", cfg.Address)
	if err := srv.Serve(ctx); err != nil {
		log.Printf("server stopped: %v", err)
		os.Exit(1)
	}
}
