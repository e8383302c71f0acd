package codegen

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nikhilbhutani/design2code/internal/cache"
)

type mapStore struct {
	data   map[string][]byte
	getErr error
}

func (m *mapStore) Get(_ context.Context, key string, dest any) error {
	if m.getErr != nil {
		return m.getErr
	}
	raw, ok := m.data[key]
	if !ok {
		return cache.ErrMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *mapStore) Set(_ context.Context, key string, value any, _ time.Duration) error {
	raw, _ := json.Marshal(value)
	m.data[key] = raw
	return nil
}

func TestCachedTextRequests(t *testing.T) {
	p := &stubProvider{name: "gemini", res: &Result{Raw: "<p>x</p>"}}
	store := &mapStore{data: map[string][]byte{}}
	c := NewCached(NewGatewayWith("gemini", nil, p), store, time.Hour, nil)
	ctx := context.Background()

	first, err := c.Generate(ctx, Request{Prompt: "a paragraph"})
	if err != nil {
		t.Fatal(err)
	}
	second, err := c.Generate(ctx, Request{Prompt: "a paragraph"})
	if err != nil {
		t.Fatal(err)
	}
	if p.calls != 1 {
		t.Fatalf("provider called %d times, want 1", p.calls)
	}
	if first.Markup != second.Markup || second.Markup != "<p>x</p>" {
		t.Errorf("first=%q second=%q", first.Markup, second.Markup)
	}

	c.Generate(ctx, Request{Prompt: "a different paragraph"})
	if p.calls != 2 {
		t.Errorf("different prompt served from cache")
	}
}

func TestCachedBypassesImages(t *testing.T) {
	p := &stubProvider{name: "gemini", res: &Result{Raw: "<p>x</p>"}}
	c := NewCached(NewGatewayWith("gemini", nil, p), &mapStore{data: map[string][]byte{}}, time.Hour, nil)

	for range 2 {
		if _, err := c.Generate(context.Background(), Request{Prompt: "same", Image: []byte{1}}); err != nil {
			t.Fatal(err)
		}
	}
	if p.calls != 2 {
		t.Fatalf("provider called %d times, want 2", p.calls)
	}
}

func TestCachedReadErrorFallsThrough(t *testing.T) {
	p := &stubProvider{name: "gemini", res: &Result{Raw: "<p>x</p>"}}
	store := &mapStore{data: map[string][]byte{}, getErr: errors.New("redis down")}
	c := NewCached(NewGatewayWith("gemini", nil, p), store, time.Hour, nil)

	res, err := c.Generate(context.Background(), Request{Prompt: "p"})
	if err != nil || res.Markup != "<p>x</p>" {
		t.Fatalf("Generate = %+v, %v", res, err)
	}
}
