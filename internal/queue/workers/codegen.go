package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/design2code/internal/cache"
	"github.com/nikhilbhutani/design2code/internal/codegen"
	"github.com/nikhilbhutani/design2code/internal/history"
	"github.com/nikhilbhutani/design2code/internal/prompt"
	"github.com/nikhilbhutani/design2code/internal/queue"
)

// CodegenWorker runs queued text and voice generations.
type CodegenWorker struct {
	generator codegen.Generator
	prompts   *prompt.Library
	jobs      *cache.JobStore
	history   history.Recorder
	logger    *slog.Logger
}

func NewCodegenWorker(gen codegen.Generator, prompts *prompt.Library, jobs *cache.JobStore, rec history.Recorder, logger *slog.Logger) *CodegenWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &CodegenWorker{
		generator: gen,
		prompts:   prompts,
		jobs:      jobs,
		history:   rec,
		logger:    logger.With("component", "codegen_worker"),
	}
}

func (w *CodegenWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.CodegenPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w: %w", err, asynq.SkipRetry)
	}
	if payload.JobID == "" || payload.Description == "" {
		return fmt.Errorf("job id and description are required: %w", asynq.SkipRetry)
	}

	logger := w.logger.With("job_id", payload.JobID)
	logger.Info("running codegen job", "source", payload.Source)

	if err := w.jobs.MarkRunning(ctx, payload.JobID); err != nil {
		logger.Warn("mark job running", "error", err)
	}

	source := prompt.Source(payload.Source)
	if source != prompt.SourceVoice {
		source = prompt.SourceText
	}
	fullPrompt, err := w.prompts.Build(source, payload.Prompt, payload.Description)
	if err != nil {
		return w.fail(ctx, payload.JobID, fmt.Errorf("build prompt: %w", err), true)
	}

	res, err := w.generator.Generate(ctx, codegen.Request{
		Prompt:   fullPrompt,
		Provider: payload.Provider,
		Model:    payload.Model,
	})
	if err != nil {
		final := asynqFinalAttempt(ctx)
		return w.fail(ctx, payload.JobID, err, final)
	}

	if err := w.jobs.Put(ctx, cache.JobResult{
		ID:       payload.JobID,
		Status:   cache.JobCompleted,
		Code:     res.Markup,
		Provider: res.Provider,
		Model:    res.Model,
	}); err != nil {
		return fmt.Errorf("store job result: %w", err)
	}

	gen := &history.Generation{
		JobID:        payload.JobID,
		Source:       string(source),
		Provider:     res.Provider,
		Model:        res.Model,
		Prompt:       fullPrompt,
		Markup:       res.Markup,
		InputTokens:  res.InputTokens,
		OutputTokens: res.OutputTokens,
		CostUSD:      res.CostUSD,
		LatencyMs:    res.LatencyMs,
	}
	if source == prompt.SourceVoice {
		gen.Transcription = payload.Description
	}
	if err := w.history.Record(ctx, gen); err != nil {
		logger.Warn("record generation history", "error", err)
	}

	logger.Info("codegen job completed", "provider", res.Provider, "latency_ms", res.LatencyMs)
	return nil
}

// fail stores the failure once no retry will follow and returns err to asynq.
func (w *CodegenWorker) fail(ctx context.Context, jobID string, err error, final bool) error {
	w.logger.Error("codegen job failed", "job_id", jobID, "error", err, "final", final)
	if final {
		if serr := w.jobs.MarkFailed(ctx, jobID, err); serr != nil {
			w.logger.Warn("mark job failed", "job_id", jobID, "error", serr)
		}
		if !errors.Is(err, asynq.SkipRetry) {
			err = fmt.Errorf("%w: %w", err, asynq.SkipRetry)
		}
	}
	return err
}

func asynqFinalAttempt(ctx context.Context) bool {
	retried, ok1 := asynq.GetRetryCount(ctx)
	maxRetry, ok2 := asynq.GetMaxRetry(ctx)
	if !ok1 || !ok2 {
		return true
	}
	return retried >= maxRetry
}
