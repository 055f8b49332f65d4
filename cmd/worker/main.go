package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/naheedk999/docai/internal/archive"
	"github.com/naheedk999/docai/internal/auth"
	"github.com/naheedk999/docai/internal/config"
	"github.com/naheedk999/docai/internal/database"
	"github.com/naheedk999/docai/internal/repository"
	"github.com/naheedk999/docai/internal/worker"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if cfg.ServiceEmail == "" || cfg.ServicePassword == "" {
		log.Fatal("service credentials are required (DOCAI_SERVICE_EMAIL, DOCAI_SERVICE_PASSWORD)")
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

	tokens := auth.NewTokenCache(auth.NewClient(cfg.CognitoRegion, cfg.CognitoClientID), cfg.ServiceEmail, cfg.ServicePassword)

	server := asynq.NewServer(asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, asynq.Config{
		Concurrency: cfg.ProcessingPool,
	})
	processor := worker.NewProcessor(cfg, store, arch, tokens)

	go func() {
		<-ctx.Done()
		server.Shutdown()
	}()

	if err := server.Run(processor.Handler()); err != nil {
		log.Printf("worker stopped: %v", err)
		os.Exit(1)
	}
}
