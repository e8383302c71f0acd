package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/design2code/internal/cache"
	"github.com/nikhilbhutani/design2code/internal/codegen"
	"github.com/nikhilbhutani/design2code/internal/config"
	"github.com/nikhilbhutani/design2code/internal/database"
	"github.com/nikhilbhutani/design2code/internal/history"
	"github.com/nikhilbhutani/design2code/internal/prompt"
	"github.com/nikhilbhutani/design2code/internal/queue"
	"github.com/nikhilbhutani/design2code/internal/queue/workers"
)

const concurrency = 4

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	var recorder history.Recorder = history.Discard{}
	if cfg.Database.URL != "" {
		db, err := database.NewPool(ctx, cfg.Database)
		if err != nil {
			slog.Warn("database unavailable, running without history", "error", err)
		} else {
			defer db.Close()
			recorder = history.NewStore(db)
		}
	}

	gateway, err := codegen.NewGateway(ctx, cfg.Generation, logger)
	if err != nil {
		slog.Error("failed to create code generator", "error", err)
		os.Exit(1)
	}

	prompts := prompt.NewLibrary()
	if err := prompts.LoadDir(cfg.Generation.PromptsDir); err != nil {
		slog.Error("failed to load prompts", "error", err)
		os.Exit(1)
	}

	rdb := cache.NewClient(cfg.Redis)
	defer rdb.Close()
	jobs := cache.NewJobStore(cache.NewCache(rdb, "d2c:"))

	srv := asynq.NewServer(
		queue.RedisOpt(cfg.Redis),
		asynq.Config{
			Concurrency: concurrency,
			Queues: map[string]int{
				"default": 1,
			},
			Logger: newAsynqLogger(logger),
		},
	)

	registry := queue.NewHandlersRegistry(logger)

	codegenWorker := workers.NewCodegenWorker(gateway, prompts, jobs, recorder, logger)
	registry.Register(queue.TypeCodegenText, asynq.HandlerFunc(codegenWorker.ProcessTask))

	slog.Info("starting worker", "concurrency", concurrency, "providers", gateway.Providers())
	if err := srv.Run(registry.Mux()); err != nil {
		slog.Error("worker error", "error", err)
		os.Exit(1)
	}
}
