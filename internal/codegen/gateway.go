package codegen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/nikhilbhutani/design2code/internal/config"
)

// Generator is what request handlers and workers depend on.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Result, error)
}

// Gateway routes a request to the named or default provider. Each call is a
// single round-trip: no retries and no fallback.
type Gateway struct {
	providers       map[string]Provider
	defaultProvider string
	logger          *slog.Logger
}

// NewGateway registers every provider that has credentials configured.
func NewGateway(ctx context.Context, cfg config.GenerationConfig, logger *slog.Logger) (*Gateway, error) {
	var providers []Provider

	if cfg.GoogleAPIKey != "" {
		p, err := NewGeminiProvider(ctx, cfg.GoogleAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}
	if cfg.OpenAIKey != "" {
		providers = append(providers, NewOpenAIProvider(cfg.OpenAIKey, cfg.OpenAIModel))
	}
	if cfg.AnthropicKey != "" {
		providers = append(providers, NewAnthropicProvider(cfg.AnthropicKey, cfg.AnthropicModel))
	}
	if cfg.OllamaURL != "" {
		providers = append(providers, NewOllamaProvider(cfg.OllamaURL, cfg.OllamaModel))
	}

	return NewGatewayWith(cfg.DefaultProvider, logger, providers...), nil
}

func NewGatewayWith(defaultProvider string, logger *slog.Logger, providers ...Provider) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Gateway{
		providers:       make(map[string]Provider, len(providers)),
		defaultProvider: defaultProvider,
		logger:          logger.With("component", "codegen"),
	}
	for _, p := range providers {
		g.providers[p.Name()] = p
	}
	return g
}

func (g *Gateway) Provider(name string) (Provider, error) {
	p, ok := g.providers[name]
	if !ok {
		return nil, fmt.Errorf("provider %q not configured", name)
	}
	return p, nil
}

// Providers lists configured provider names in sorted order.
func (g *Gateway) Providers() []string {
	names := make([]string, 0, len(g.providers))
	for name := range g.providers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (g *Gateway) Generate(ctx context.Context, req Request) (*Result, error) {
	name := req.Provider
	if name == "" {
		name = g.defaultProvider
	}

	p, err := g.Provider(name)
	if err != nil {
		return nil, &GenerationError{Provider: name, Err: err}
	}
	if req.Model == "" {
		req.Model = p.DefaultModel()
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = defaultMaxTokens
	}

	start := time.Now()
	res, err := p.Generate(ctx, req)
	if err != nil {
		g.logger.Error("generation failed", "provider", name, "model", req.Model, "error", err)
		var genErr *GenerationError
		if errors.As(err, &genErr) {
			return nil, err
		}
		return nil, &GenerationError{Provider: name, Err: err}
	}

	res.Markup = CleanMarkup(res.Raw)
	if res.Provider == "" {
		res.Provider = name
	}
	if res.Model == "" {
		res.Model = req.Model
	}
	if res.LatencyMs == 0 {
		res.LatencyMs = time.Since(start).Milliseconds()
	}
	res.CostUSD = CalculateCost(res.Model, res.InputTokens, res.OutputTokens)

	g.logger.Info("generation completed",
		"provider", res.Provider,
		"model", res.Model,
		"input_tokens", res.InputTokens,
		"output_tokens", res.OutputTokens,
		"latency_ms", res.LatencyMs,
		"with_image", len(req.Image) > 0,
	)
	return res, nil
}
