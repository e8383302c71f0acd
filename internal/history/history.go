// Package history records completed generations in Postgres.
package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrUnavailable is returned by List when no database is configured.
var ErrUnavailable = errors.New("generation history is not configured")

// Generation is one completed design-to-code call.
type Generation struct {
	ID            uuid.UUID `json:"id"`
	JobID         string    `json:"job_id,omitempty"`
	Source        string    `json:"source"`
	Provider      string    `json:"provider"`
	Model         string    `json:"model"`
	Prompt        string    `json:"prompt"`
	Transcription string    `json:"transcription,omitempty"`
	Markup        string    `json:"markup"`
	InputTokens   int       `json:"input_tokens"`
	OutputTokens  int       `json:"output_tokens"`
	CostUSD       float64   `json:"cost_usd"`
	LatencyMs     int64     `json:"latency_ms"`
	CreatedAt     time.Time `json:"created_at"`
}

type Recorder interface {
	Record(ctx context.Context, g *Generation) error
	List(ctx context.Context, limit int) ([]Generation, error)
}

// DB is the subset of pgxpool.Pool used by Store.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

type Store struct {
	db DB
}

func NewStore(db DB) *Store {
	return &Store{db: db}
}

// Record inserts g, assigning an id and timestamp when unset. A job id that
// was already recorded is ignored so worker retries do not duplicate rows.
func (s *Store) Record(ctx context.Context, g *Generation) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = time.Now().UTC()
	}
	var jobID *string
	if g.JobID != "" {
		jobID = &g.JobID
	}

	_, err := s.db.Exec(ctx,
		`INSERT INTO generations
		   (id, job_id, source, provider, model, prompt, transcription, markup,
		    input_tokens, output_tokens, cost_usd, latency_ms, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 ON CONFLICT DO NOTHING`,
		g.ID, jobID, g.Source, g.Provider, g.Model, g.Prompt, g.Transcription, g.Markup,
		g.InputTokens, g.OutputTokens, g.CostUSD, g.LatencyMs, g.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert generation: %w", err)
	}
	return nil
}

// List returns the most recent generations, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Generation, error) {
	limit = ClampLimit(limit)

	rows, err := s.db.Query(ctx,
		`SELECT id, COALESCE(job_id, ''), source, provider, model, prompt, transcription, markup,
		        input_tokens, output_tokens, cost_usd, latency_ms, created_at
		 FROM generations
		 ORDER BY created_at DESC
		 LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query generations: %w", err)
	}
	defer rows.Close()

	out := make([]Generation, 0, limit)
	for rows.Next() {
		var g Generation
		if err := rows.Scan(&g.ID, &g.JobID, &g.Source, &g.Provider, &g.Model, &g.Prompt,
			&g.Transcription, &g.Markup, &g.InputTokens, &g.OutputTokens, &g.CostUSD,
			&g.LatencyMs, &g.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan generation: %w", err)
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate generations: %w", err)
	}
	return out, nil
}

// ClampLimit maps non-positive limits to DefaultLimit and caps at MaxLimit.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}

// Discard is used when no database is configured.
type Discard struct{}

func (Discard) Record(context.Context, *Generation) error { return nil }

func (Discard) List(context.Context, int) ([]Generation, error) { return nil, ErrUnavailable }
