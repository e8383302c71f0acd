// Package stt transcribes uploaded audio files.
package stt

import (
	"context"
	"errors"
	"fmt"

	"github.com/nikhilbhutani/design2code/internal/config"
)

// ErrUnintelligible is returned when the audio produced no text.
var ErrUnintelligible = errors.New("could not understand audio")

// Request holds the parameters for one file transcription.
type Request struct {
	FilePath string `json:"file_path"`
	Language string `json:"language,omitempty"`
	Prompt   string `json:"prompt,omitempty"`
}

// Response holds the transcription result.
type Response struct {
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
}

// Provider is the interface for speech-to-text backends.
type Provider interface {
	Transcribe(ctx context.Context, req Request) (*Response, error)
	Name() string
}

// New builds the backend selected by cfg.Backend.
func New(cfg config.STTConfig) (Provider, error) {
	switch cfg.Backend {
	case "", "openai":
		return NewOpenAI(OpenAIConfig{
			APIKey:  cfg.OpenAIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.OpenAIModel,
		}), nil
	case "local":
		return NewLocal(LocalConfig{BaseURL: cfg.LocalBaseURL}), nil
	default:
		return nil, fmt.Errorf("unknown stt backend %q", cfg.Backend)
	}
}
