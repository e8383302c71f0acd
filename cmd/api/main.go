package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nikhilbhutani/design2code/internal/api"
	"github.com/nikhilbhutani/design2code/internal/api/handlers"
	"github.com/nikhilbhutani/design2code/internal/api/middleware"
	"github.com/nikhilbhutani/design2code/internal/audio"
	"github.com/nikhilbhutani/design2code/internal/broadcast"
	"github.com/nikhilbhutani/design2code/internal/cache"
	"github.com/nikhilbhutani/design2code/internal/codegen"
	"github.com/nikhilbhutani/design2code/internal/config"
	"github.com/nikhilbhutani/design2code/internal/database"
	"github.com/nikhilbhutani/design2code/internal/history"
	"github.com/nikhilbhutani/design2code/internal/prompt"
	"github.com/nikhilbhutani/design2code/internal/queue"
	"github.com/nikhilbhutani/design2code/internal/session"
	"github.com/nikhilbhutani/design2code/internal/stt"
	"github.com/nikhilbhutani/design2code/internal/transcribe"
	"github.com/nikhilbhutani/design2code/internal/upload"
)

const markupCacheTTL = time.Hour

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	checks := map[string]handlers.Pinger{}

	// Database (optional: history is disabled without it)
	var recorder history.Recorder = history.Discard{}
	if cfg.Database.URL != "" {
		db, err := database.NewPool(ctx, cfg.Database)
		if err != nil {
			slog.Warn("database unavailable, running without history", "error", err)
		} else {
			defer db.Close()
			if err := database.RunMigrations(ctx, db, database.MigrationsFS(cfg.Database.MigrationsPath)); err != nil {
				slog.Warn("migrations failed", "error", err)
			}
			recorder = history.NewStore(db)
			checks["postgres"] = db
		}
	}

	// Redis (optional: the markup cache and background jobs need it)
	rdb := cache.NewClient(cfg.Redis)
	defer rdb.Close()
	store := cache.NewCache(rdb, "d2c:")
	redisUp := store.Ping(ctx) == nil
	if !redisUp {
		slog.Warn("redis unavailable, running without cache and jobs", "addr", cfg.Redis.Addr)
	} else {
		checks["redis"] = store
	}

	gateway, err := codegen.NewGateway(ctx, cfg.Generation, logger)
	if err != nil {
		slog.Error("failed to create code generator", "error", err)
		os.Exit(1)
	}
	if len(gateway.Providers()) == 0 {
		slog.Warn("no code generation provider configured")
	}
	var generator codegen.Generator = gateway
	if redisUp {
		generator = codegen.NewCached(gateway, store, markupCacheTTL, logger)
	}

	prompts := prompt.NewLibrary()
	if err := prompts.LoadDir(cfg.Generation.PromptsDir); err != nil {
		slog.Error("failed to load prompts", "error", err)
		os.Exit(1)
	}

	scratch, err := upload.NewScratch(cfg.Server.ScratchDir)
	if err != nil {
		slog.Error("failed to create scratch dir", "error", err)
		os.Exit(1)
	}

	speech, err := stt.New(cfg.STT)
	if err != nil {
		slog.Error("failed to create speech-to-text backend", "error", err)
		os.Exit(1)
	}

	t := cfg.Transcription
	audioCfg := audio.Config{
		SampleRate:    t.SampleRate,
		Channels:      t.Channels,
		BitDepth:      t.BitDepth,
		ChunkDuration: t.ChunkDuration,
		DeviceIndex:   t.DeviceIndex,
	}
	streamer, err := transcribe.NewAWS(ctx, transcribe.AWSConfig{
		Region:          t.AWSRegion,
		AccessKeyID:     t.AWSAccessKeyID,
		SecretAccessKey: t.AWSSecretAccessKey,
		LanguageCode:    t.LanguageCode,
		SampleRate:      t.SampleRate,
		MinChunkBytes:   audioCfg.ChunkBytes(),
	}, logger)
	if err != nil {
		slog.Error("failed to create transcription client", "error", err)
		os.Exit(1)
	}

	hub := broadcast.NewHub(cfg.Server.AllowedOrigins, logger)
	manager := session.NewManager(audio.NewMicrophone(audioCfg, logger), streamer, hub, logger)

	limiter := middleware.NewRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst)
	go limiter.Run(ctx)

	deps := api.Deps{
		Config:    cfg,
		Logger:    logger,
		Sessions:  manager,
		Hub:       hub,
		Generator: generator,
		Prompts:   prompts,
		Scratch:   scratch,
		STT:       speech,
		History:   recorder,
		Checks:    checks,
		Services: map[string]bool{
			"google":    cfg.Generation.GoogleAPIKey != "",
			"aws":       t.AWSAccessKeyID != "",
			"openai":    cfg.Generation.OpenAIKey != "",
			"anthropic": cfg.Generation.AnthropicKey != "",
			"ollama":    cfg.Generation.OllamaURL != "",
		},
		Limiter: limiter,
	}
	if redisUp {
		qc := queue.NewClient(cfg.Redis)
		defer qc.Close()
		deps.Queue = qc
		deps.Jobs = cache.NewJobStore(store)
	}

	srv := &http.Server{
		Addr:        cfg.Addr(),
		Handler:     api.NewRouter(deps).Setup(),
		ReadTimeout: 15 * time.Second,
		// Code generation can take well over a minute.
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("starting API server", "addr", cfg.Addr(), "providers", gateway.Providers())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()

	slog.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := manager.Shutdown(shutdownCtx); err != nil {
		slog.Error("stop transcription", "error", err)
	}
	hub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced shutdown", "error", err)
	}
	slog.Info("server stopped")
}
