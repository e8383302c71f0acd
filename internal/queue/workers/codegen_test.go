package workers

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/design2code/internal/cache"
	"github.com/nikhilbhutani/design2code/internal/codegen"
	"github.com/nikhilbhutani/design2code/internal/history"
	"github.com/nikhilbhutani/design2code/internal/prompt"
	"github.com/nikhilbhutani/design2code/internal/queue"
)

type fakeGenerator struct {
	got codegen.Request
	err error
}

func (f *fakeGenerator) Generate(_ context.Context, req codegen.Request) (*codegen.Result, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	return &codegen.Result{Markup: "<nav></nav>", Provider: "gemini", Model: "m", InputTokens: 3}, nil
}

type memStore struct{ data map[string][]byte }

func (m *memStore) Get(_ context.Context, key string, dest any) error {
	raw, ok := m.data[key]
	if !ok {
		return cache.ErrMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memStore) Set(_ context.Context, key string, v any, _ time.Duration) error {
	raw, err := json.Marshal(v)
	m.data[key] = raw
	return err
}

type memHistory struct{ recorded []*history.Generation }

func (m *memHistory) Record(_ context.Context, g *history.Generation) error {
	m.recorded = append(m.recorded, g)
	return nil
}

func (m *memHistory) List(context.Context, int) ([]history.Generation, error) { return nil, nil }

func newWorker(gen codegen.Generator) (*CodegenWorker, *cache.JobStore, *memHistory) {
	jobs := cache.NewJobStore(&memStore{data: map[string][]byte{}})
	hist := &memHistory{}
	return NewCodegenWorker(gen, prompt.NewLibrary(), jobs, hist, nil), jobs, hist
}

func task(t *testing.T, p queue.CodegenPayload) *asynq.Task {
	t.Helper()
	tk, err := queue.NewTask(queue.TypeCodegenText, p)
	if err != nil {
		t.Fatal(err)
	}
	return tk
}

func TestCodegenWorkerSuccess(t *testing.T) {
	gen := &fakeGenerator{}
	w, jobs, hist := newWorker(gen)
	ctx := context.Background()

	err := w.ProcessTask(ctx, task(t, queue.CodegenPayload{JobID: "j1", Source: "voice", Description: "a top navbar", Provider: "ollama"}))
	if err != nil {
		t.Fatalf("ProcessTask: %v", err)
	}

	if !strings.HasSuffix(gen.got.Prompt, "\n\na top navbar") || gen.got.Provider != "ollama" {
		t.Errorf("request = %+v", gen.got)
	}
	res, err := jobs.Get(ctx, "j1")
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != cache.JobCompleted || res.Code != "<nav></nav>" {
		t.Errorf("job = %+v", res)
	}
	if len(hist.recorded) != 1 || hist.recorded[0].Transcription != "a top navbar" || hist.recorded[0].JobID != "j1" {
		t.Errorf("history = %+v", hist.recorded)
	}
}

func TestCodegenWorkerInvalidPayload(t *testing.T) {
	w, _, _ := newWorker(&fakeGenerator{})

	err := w.ProcessTask(context.Background(), asynq.NewTask(queue.TypeCodegenText, []byte("{")))
	if !errors.Is(err, asynq.SkipRetry) {
		t.Errorf("bad json: %v", err)
	}
	err = w.ProcessTask(context.Background(), task(t, queue.CodegenPayload{JobID: "j"}))
	if !errors.Is(err, asynq.SkipRetry) {
		t.Errorf("empty description: %v", err)
	}
}

func TestCodegenWorkerFailureOutsideServer(t *testing.T) {
	cause := &codegen.GenerationError{Provider: "gemini", Err: errors.New("overloaded")}
	w, jobs, hist := newWorker(&fakeGenerator{err: cause})
	ctx := context.Background()

	err := w.ProcessTask(ctx, task(t, queue.CodegenPayload{JobID: "j2", Description: "footer"}))
	if !errors.Is(err, codegen.ErrGenerationFailed) {
		t.Fatalf("err = %v", err)
	}

	res, _ := jobs.Get(ctx, "j2")
	if res == nil || res.Status != cache.JobFailed || !strings.Contains(res.Error, "overloaded") {
		t.Errorf("job = %+v", res)
	}
	if len(hist.recorded) != 0 {
		t.Error("failed job recorded in history")
	}
}
