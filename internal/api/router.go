package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/nikhilbhutani/design2code/internal/api/handlers"
	"github.com/nikhilbhutani/design2code/internal/api/middleware"
	"github.com/nikhilbhutani/design2code/internal/auth"
	"github.com/nikhilbhutani/design2code/internal/cache"
	"github.com/nikhilbhutani/design2code/internal/codegen"
	"github.com/nikhilbhutani/design2code/internal/config"
	"github.com/nikhilbhutani/design2code/internal/history"
	"github.com/nikhilbhutani/design2code/internal/prompt"
	"github.com/nikhilbhutani/design2code/internal/stt"
	"github.com/nikhilbhutani/design2code/internal/upload"
)

// Sessions is the live transcription session plus its finalized transcript.
type Sessions interface {
	handlers.SessionController
	handlers.TranscriptSource
}

// Deps are the collaborators the routes are built from.
type Deps struct {
	Config    *config.Config
	Logger    *slog.Logger
	Sessions  Sessions
	Hub       http.Handler
	Generator codegen.Generator
	Prompts   *prompt.Library
	Scratch   *upload.Scratch
	STT       stt.Provider
	Queue     handlers.Enqueuer
	Jobs      *cache.JobStore
	History   history.Recorder
	Checks    map[string]handlers.Pinger
	Services  map[string]bool
	Limiter   *middleware.RateLimiter
}

type Router struct {
	mux  *chi.Mux
	deps Deps
}

func NewRouter(deps Deps) *Router {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.History == nil {
		deps.History = history.Discard{}
	}
	return &Router{mux: chi.NewRouter(), deps: deps}
}

func (rt *Router) Setup() http.Handler {
	r := rt.mux
	d := rt.deps
	cfg := d.Config

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(d.Logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.Server.AllowedOrigins))
	if d.Limiter != nil {
		r.Use(d.Limiter.Limit)
	}

	health := handlers.NewHealthHandler(d.Checks, d.Services)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	// Browsers cannot set headers on WebSocket upgrades, so the socket is
	// not behind bearer auth.
	r.Get("/ws", d.Hub.ServeHTTP)
	r.Get("/", d.Hub.ServeHTTP)

	transcription := handlers.NewTranscriptionHandler(d.Sessions, d.Logger)
	codegenH := handlers.NewCodegenHandler(handlers.CodegenDeps{
		Generator:   d.Generator,
		Prompts:     d.Prompts,
		Scratch:     d.Scratch,
		STT:         d.STT,
		Transcripts: d.Sessions,
		History:     d.History,
		MaxUpload:   cfg.Server.MaxUploadBytes,
		Logger:      d.Logger,
	})
	historyH := handlers.NewHistoryHandler(d.History, d.Logger)

	r.Route("/api", func(r chi.Router) {
		r.Get("/test-connection", health.TestConnection)

		r.Group(func(r chi.Router) {
			if cfg.Auth.JWTSecret != "" {
				r.Use(auth.NewJWTMiddleware(cfg.Auth.JWTSecret).Authenticate)
			}

			r.Group(func(r chi.Router) {
				r.Use(auth.RequirePermission(auth.PermTranscribe))
				r.Post("/start-transcription", transcription.Start)
				r.Post("/stop-transcription", transcription.Stop)
				r.Get("/transcription-status", transcription.Status)
				r.Post("/transcribe", codegenH.Transcribe)
			})

			r.Group(func(r chi.Router) {
				r.Use(auth.RequirePermission(auth.PermGenerate))
				r.Post("/image-to-code", codegenH.ImageToCode)
				r.Post("/sketch-to-code", codegenH.SketchToCode)
				r.Post("/text-to-code", codegenH.TextToCode)
				r.Post("/voice-to-code", codegenH.VoiceToCode)
				r.Post("/transcription-to-code", codegenH.TranscriptionToCode)

				if d.Queue != nil && d.Jobs != nil {
					jobsH := handlers.NewJobsHandler(d.Queue, d.Jobs, d.Logger)
					r.Post("/jobs", jobsH.Create)
					r.Get("/jobs/{id}", jobsH.Get)
				}
			})

			r.With(auth.RequirePermission(auth.PermHistoryRead)).Get("/generations", historyH.List)
		})
	})

	return r
}
