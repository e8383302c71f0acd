// Package codegen turns a design description, and optionally an image of the
// design, into HTML/CSS markup using a hosted or local model.
package codegen

import (
	"context"
	"errors"
	"fmt"
)

// ErrGenerationFailed matches every error returned by Gateway.Generate.
var ErrGenerationFailed = errors.New("code generation failed")

// GenerationError carries the provider's underlying failure.
type GenerationError struct {
	Provider string
	Err      error
}

func (e *GenerationError) Error() string {
	if e.Provider == "" {
		return fmt.Sprintf("%s: %v", ErrGenerationFailed, e.Err)
	}
	return fmt.Sprintf("%s (%s): %v", ErrGenerationFailed, e.Provider, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

func (e *GenerationError) Is(target error) bool { return target == ErrGenerationFailed }

// Request is the input to one generation call.
type Request struct {
	Prompt        string `json:"prompt"`
	Image         []byte `json:"-"`
	ImageMIMEType string `json:"image_mime_type,omitempty"` // image/png when empty
	Provider      string `json:"provider,omitempty"`
	Model         string `json:"model,omitempty"`
	MaxTokens     int    `json:"max_tokens,omitempty"`
}

func (r Request) mimeType() string {
	if r.ImageMIMEType == "" {
		return "image/png"
	}
	return r.ImageMIMEType
}

// Result is the model output. Markup has code fences removed; Raw is the
// model text as returned.
type Result struct {
	Markup       string  `json:"markup"`
	Raw          string  `json:"-"`
	Provider     string  `json:"provider"`
	Model        string  `json:"model"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	CostUSD      float64 `json:"cost_usd"`
	LatencyMs    int64   `json:"latency_ms"`
}

// Provider abstracts a model backend (Gemini, OpenAI, Anthropic, Ollama).
type Provider interface {
	Generate(ctx context.Context, req Request) (*Result, error)
	Name() string
	DefaultModel() string
}

const defaultMaxTokens = 8192
