package codegen

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"
)

type GeminiProvider struct {
	client *genai.Client
	model  string
}

func NewGeminiProvider(ctx context.Context, apiKey, model string) (*GeminiProvider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("genai client: %w", err)
	}
	if model == "" {
		model = "gemini-2.5-flash-preview-04-17"
	}
	return &GeminiProvider{client: client, model: model}, nil
}

func (p *GeminiProvider) Name() string         { return "gemini" }
func (p *GeminiProvider) DefaultModel() string { return p.model }

func (p *GeminiProvider) Generate(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()

	parts := []*genai.Part{genai.NewPartFromText(req.Prompt)}
	if len(req.Image) > 0 {
		parts = append(parts, genai.NewPartFromBytes(req.Image, req.mimeType()))
	}

	resp, err := p.client.Models.GenerateContent(ctx, req.Model, []*genai.Content{
		{Role: "user", Parts: parts},
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("gemini generate: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("gemini generate: no candidates")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}

	res := &Result{
		Raw:       sb.String(),
		Provider:  p.Name(),
		Model:     req.Model,
		LatencyMs: time.Since(start).Milliseconds(),
	}
	if u := resp.UsageMetadata; u != nil {
		res.InputTokens = int(u.PromptTokenCount)
		res.OutputTokens = int(u.CandidatesTokenCount)
	}
	return res, nil
}
