package history

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type execRecorder struct {
	sql  string
	args []any
	err  error
}

func (e *execRecorder) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	e.sql, e.args = sql, args
	return pgconn.NewCommandTag("INSERT 0 1"), e.err
}

func (e *execRecorder) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func TestRecordAssignsIDAndTimestamp(t *testing.T) {
	db := &execRecorder{}
	s := NewStore(db)

	g := &Generation{Source: "text", Provider: "gemini", Model: "m", Prompt: "p", Markup: "<p></p>"}
	if err := s.Record(context.Background(), g); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if g.ID == uuid.Nil || g.CreatedAt.IsZero() {
		t.Fatalf("generation = %+v", g)
	}
	if !strings.Contains(db.sql, "INSERT INTO generations") || len(db.args) != 13 {
		t.Fatalf("sql = %q args = %d", db.sql, len(db.args))
	}
	if db.args[1].(*string) != nil {
		t.Errorf("job id = %v, want NULL", db.args[1])
	}
}

func TestRecordWithJobID(t *testing.T) {
	db := &execRecorder{}
	g := &Generation{JobID: "job-1"}
	if err := NewStore(db).Record(context.Background(), g); err != nil {
		t.Fatal(err)
	}
	if id := db.args[1].(*string); id == nil || *id != "job-1" {
		t.Errorf("job id arg = %v", db.args[1])
	}
}

func TestRecordError(t *testing.T) {
	db := &execRecorder{err: errors.New("connection refused")}
	err := NewStore(db).Record(context.Background(), &Generation{})
	if err == nil || !strings.Contains(err.Error(), "connection refused") {
		t.Fatalf("err = %v", err)
	}
}

func TestClampLimit(t *testing.T) {
	for in, want := range map[int]int{-1: DefaultLimit, 0: DefaultLimit, 5: 5, 100: 100, 1000: MaxLimit} {
		if got := ClampLimit(in); got != want {
			t.Errorf("ClampLimit(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestDiscard(t *testing.T) {
	var r Recorder = Discard{}
	if err := r.Record(context.Background(), &Generation{}); err != nil {
		t.Errorf("Record = %v", err)
	}
	if _, err := r.List(context.Background(), 10); !errors.Is(err, ErrUnavailable) {
		t.Errorf("List = %v, want ErrUnavailable", err)
	}
}
