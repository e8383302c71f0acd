package queue

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// HandlersRegistry routes tasks by type and logs every run.
type HandlersRegistry struct {
	mux    *asynq.ServeMux
	logger *slog.Logger
}

func NewHandlersRegistry(logger *slog.Logger) *HandlersRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &HandlersRegistry{
		mux:    asynq.NewServeMux(),
		logger: logger.With("component", "worker"),
	}
	r.mux.Use(r.logTask)
	return r
}

func (r *HandlersRegistry) Register(taskType string, handler asynq.Handler) {
	r.mux.Handle(taskType, handler)
}

func (r *HandlersRegistry) Mux() *asynq.ServeMux {
	return r.mux
}

func (r *HandlersRegistry) logTask(next asynq.Handler) asynq.Handler {
	return asynq.HandlerFunc(func(ctx context.Context, t *asynq.Task) error {
		start := time.Now()
		err := next.ProcessTask(ctx, t)
		attrs := []any{"type", t.Type(), "duration_ms", time.Since(start).Milliseconds()}
		if err != nil {
			r.logger.Warn("task failed", append(attrs, "error", err)...)
			return err
		}
		r.logger.Info("task done", attrs...)
		return nil
	})
}
