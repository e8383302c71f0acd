package codegen

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"

	"github.com/nikhilbhutani/design2code/internal/cache"
)

// Cached memoizes text-only generations. Requests carrying an image always
// reach the model.
type Cached struct {
	next   Generator
	store  cache.Store
	ttl    time.Duration
	logger *slog.Logger
}

func NewCached(next Generator, store cache.Store, ttl time.Duration, logger *slog.Logger) *Cached {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cached{next: next, store: store, ttl: ttl, logger: logger.With("component", "codegen_cache")}
}

func (c *Cached) Generate(ctx context.Context, req Request) (*Result, error) {
	if len(req.Image) > 0 {
		return c.next.Generate(ctx, req)
	}

	key := cacheKey(req)
	var hit Result
	switch err := c.store.Get(ctx, key, &hit); {
	case err == nil:
		c.logger.Debug("markup cache hit", "key", key)
		hit.Raw = hit.Markup
		return &hit, nil
	case !errors.Is(err, cache.ErrMiss):
		c.logger.Warn("markup cache read failed", "error", err)
	}

	res, err := c.next.Generate(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := c.store.Set(ctx, key, res, c.ttl); err != nil {
		c.logger.Warn("markup cache write failed", "error", err)
	}
	return res, nil
}

func cacheKey(req Request) string {
	h := sha256.New()
	for _, part := range []string{req.Provider, req.Model, req.Prompt} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return "markup:" + hex.EncodeToString(h.Sum(nil))
}
