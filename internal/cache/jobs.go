package cache

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrJobNotFound is returned for unknown or expired job ids.
var ErrJobNotFound = errors.New("job not found")

type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// JobResult is the state of an asynchronous generation job.
type JobResult struct {
	ID        string    `json:"id"`
	Status    JobStatus `json:"status"`
	Code      string    `json:"code,omitempty"`
	Provider  string    `json:"provider,omitempty"`
	Model     string    `json:"model,omitempty"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

const defaultJobTTL = 24 * time.Hour

// JobStore keeps job results for a day.
type JobStore struct {
	store Store
	ttl   time.Duration
	now   func() time.Time
}

func NewJobStore(store Store) *JobStore {
	return &JobStore{store: store, ttl: defaultJobTTL, now: time.Now}
}

func jobKey(id string) string { return "job:" + id }

func (j *JobStore) Put(ctx context.Context, res JobResult) error {
	res.UpdatedAt = j.now().UTC()
	if err := j.store.Set(ctx, jobKey(res.ID), res, j.ttl); err != nil {
		return fmt.Errorf("store job %s: %w", res.ID, err)
	}
	return nil
}

func (j *JobStore) Get(ctx context.Context, id string) (*JobResult, error) {
	var res JobResult
	if err := j.store.Get(ctx, jobKey(id), &res); err != nil {
		if errors.Is(err, ErrMiss) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	return &res, nil
}

func (j *JobStore) MarkQueued(ctx context.Context, id string) error {
	return j.Put(ctx, JobResult{ID: id, Status: JobQueued})
}

func (j *JobStore) MarkRunning(ctx context.Context, id string) error {
	return j.Put(ctx, JobResult{ID: id, Status: JobRunning})
}

func (j *JobStore) MarkFailed(ctx context.Context, id string, cause error) error {
	return j.Put(ctx, JobResult{ID: id, Status: JobFailed, Error: cause.Error()})
}
