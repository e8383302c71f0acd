package queue

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/hibiken/asynq"
)

func TestRegistryRoutesByType(t *testing.T) {
	reg := NewHandlersRegistry(slog.New(slog.DiscardHandler))

	var got string
	reg.Register(TypeCodegenText, asynq.HandlerFunc(func(_ context.Context, t *asynq.Task) error {
		got = string(t.Payload())
		return nil
	}))

	if err := reg.Mux().ProcessTask(context.Background(), asynq.NewTask(TypeCodegenText, []byte(`{"job_id":"1"}`))); err != nil {
		t.Fatalf("ProcessTask: %v", err)
	}
	if got != `{"job_id":"1"}` {
		t.Errorf("payload = %q", got)
	}

	if err := reg.Mux().ProcessTask(context.Background(), asynq.NewTask("unknown", nil)); err == nil {
		t.Error("expected error for unregistered task type")
	}
}

func TestRegistryPassesErrorsThrough(t *testing.T) {
	reg := NewHandlersRegistry(slog.New(slog.DiscardHandler))
	boom := errors.New("boom")
	reg.Register(TypeCodegenText, asynq.HandlerFunc(func(context.Context, *asynq.Task) error { return boom }))

	err := reg.Mux().ProcessTask(context.Background(), asynq.NewTask(TypeCodegenText, nil))
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
}

func TestNewTaskEncodesPayload(t *testing.T) {
	task, err := NewTask(TypeCodegenText, CodegenPayload{JobID: "j1", Description: "a navbar"})
	if err != nil {
		t.Fatal(err)
	}
	if task.Type() != TypeCodegenText {
		t.Errorf("type = %q", task.Type())
	}
	if want := `"job_id":"j1"`; !strings.Contains(string(task.Payload()), want) {
		t.Errorf("payload %s missing %s", task.Payload(), want)
	}
}
