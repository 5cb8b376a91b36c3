// Package jobs implements the Redis-list-backed asynchronous job queue:
// submit, atomic claim-with-retry-tracking, completion, failure handling
// with retry/dead-letter, and cancellation. The queue/list mechanics
// mirror queue/redis/queue.go's RPush/BLPop/processing-set shape, widened
// here to a claim/retry/DLQ lifecycle with per-job JSON records instead of
// that package's bare action-ID tracking.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"titan-aas/internal/model"
)

const (
	keyPending    = "titan:jobs:pending"
	keyProcessing = "titan:jobs:processing"
	keyDLQ        = "titan:jobs:dlq"
	jobKeyPrefix  = "titan:job:"

	defaultJobTTL    = 24 * time.Hour
	defaultResultTTL = 24 * time.Hour
)

// Config controls job record TTLs and default retry behavior.
type Config struct {
	JobTTL            time.Duration
	ResultTTL         time.Duration
	DefaultMaxRetries int
}

// DefaultConfig returns the queue's default TTLs and retry budget.
func DefaultConfig() Config {
	return Config{JobTTL: defaultJobTTL, ResultTTL: defaultResultTTL, DefaultMaxRetries: 3}
}

// Queue is the Redis-list-backed job queue.
type Queue struct {
	client *redis.Client
	config Config
}

// New builds a Queue bound to client.
func New(client *redis.Client, config Config) *Queue {
	if config.JobTTL <= 0 {
		config.JobTTL = defaultJobTTL
	}
	if config.ResultTTL <= 0 {
		config.ResultTTL = defaultResultTTL
	}
	return &Queue{client: client, config: config}
}

func jobKey(id string) string { return jobKeyPrefix + id }

// Submit stores a new job and enqueues its ID on the pending list,
// returning the generated job ID.
func (q *Queue) Submit(ctx context.Context, task string, payload []byte, priority, maxRetries int) (string, error) {
	if maxRetries <= 0 {
		maxRetries = q.config.DefaultMaxRetries
	}
	job := model.Job{
		ID:         uuid.NewString(),
		Task:       task,
		Payload:    payload,
		Status:     model.JobPending,
		MaxRetries: maxRetries,
		Priority:   priority,
		CreatedAt:  time.Now(),
	}

	if err := q.save(ctx, job); err != nil {
		return "", err
	}
	if err := q.client.LPush(ctx, keyPending, job.ID).Err(); err != nil {
		return "", fmt.Errorf("jobs: enqueue %s: %w", job.ID, err)
	}
	return job.ID, nil
}

// ClaimJobs atomically moves up to batchSize job IDs from the pending list
// to the processing list, marking each one running and incrementing its
// attempt count. The first claim blocks up to timeout for a job to become
// available; subsequent claims within the same batch are non-blocking, so
// a batch never blocks longer than timeout even when fewer than batchSize
// jobs are pending.
func (q *Queue) ClaimJobs(ctx context.Context, batchSize int, timeout time.Duration) ([]model.Job, error) {
	var claimed []model.Job

	for i := 0; i < batchSize; i++ {
		var id string
		var err error
		if i == 0 {
			id, err = q.client.BRPopLPush(ctx, keyPending, keyProcessing, timeout).Result()
		} else {
			id, err = q.client.RPopLPush(ctx, keyPending, keyProcessing).Result()
		}
		if err == redis.Nil {
			break
		}
		if err != nil {
			return claimed, fmt.Errorf("jobs: claim: %w", err)
		}

		job, err := q.load(ctx, id)
		if err != nil {
			continue
		}
		now := time.Now()
		job.Status = model.JobRunning
		job.Attempts++
		job.StartedAt = &now
		if err := q.save(ctx, job); err != nil {
			continue
		}
		claimed = append(claimed, job)
	}
	return claimed, nil
}

// CompleteJob marks a claimed job completed, stores its result, and
// removes it from the processing list.
func (q *Queue) CompleteJob(ctx context.Context, id string, result []byte) error {
	job, err := q.load(ctx, id)
	if err != nil {
		return err
	}
	now := time.Now()
	job.Status = model.JobCompleted
	job.CompletedAt = &now
	job.Result = result

	if err := q.client.Set(ctx, jobKey(id), mustMarshal(job), q.config.ResultTTL).Err(); err != nil {
		return fmt.Errorf("jobs: persist completion for %s: %w", id, err)
	}
	return q.client.LRem(ctx, keyProcessing, 1, id).Err()
}

// FailJob removes a job from the processing list and, when retry is true
// and it has not exhausted MaxRetries, re-enqueues it on pending;
// otherwise it is moved to the dead-letter list with status dead.
func (q *Queue) FailJob(ctx context.Context, id string, failureErr string, retry bool) error {
	job, err := q.load(ctx, id)
	if err != nil {
		return err
	}
	if err := q.client.LRem(ctx, keyProcessing, 1, id).Err(); err != nil {
		return fmt.Errorf("jobs: remove %s from processing: %w", id, err)
	}

	job.Error = failureErr

	if retry && job.Attempts < job.MaxRetries {
		job.Status = model.JobPending
		if err := q.save(ctx, job); err != nil {
			return err
		}
		return q.client.LPush(ctx, keyPending, id).Err()
	}

	job.Status = model.JobDead
	if err := q.save(ctx, job); err != nil {
		return err
	}
	return q.client.LPush(ctx, keyDLQ, id).Err()
}

// CancelJob cancels a job if it is currently pending or running. Jobs
// already completed, failed, or dead are left untouched and an error is
// returned.
func (q *Queue) CancelJob(ctx context.Context, id string) error {
	job, err := q.load(ctx, id)
	if err != nil {
		return err
	}
	if job.Status != model.JobPending && job.Status != model.JobRunning {
		return fmt.Errorf("jobs: cannot cancel job %s in status %s", id, job.Status)
	}

	job.Status = model.JobCancelled
	if err := q.save(ctx, job); err != nil {
		return err
	}

	_ = q.client.LRem(ctx, keyPending, 1, id).Err()
	_ = q.client.LRem(ctx, keyProcessing, 1, id).Err()
	return nil
}

// Get returns the current record for a job ID.
func (q *Queue) Get(ctx context.Context, id string) (model.Job, error) {
	return q.load(ctx, id)
}

// PendingDepth returns the number of jobs currently waiting.
func (q *Queue) PendingDepth(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, keyPending).Result()
}

func (q *Queue) save(ctx context.Context, job model.Job) error {
	if err := q.client.Set(ctx, jobKey(job.ID), mustMarshal(job), q.config.JobTTL).Err(); err != nil {
		return fmt.Errorf("jobs: save %s: %w", job.ID, err)
	}
	return nil
}

func (q *Queue) load(ctx context.Context, id string) (model.Job, error) {
	raw, err := q.client.Get(ctx, jobKey(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return model.Job{}, fmt.Errorf("jobs: job %s not found", id)
		}
		return model.Job{}, fmt.Errorf("jobs: load %s: %w", id, err)
	}
	var job model.Job
	if err := json.Unmarshal(raw, &job); err != nil {
		return model.Job{}, fmt.Errorf("jobs: decode %s: %w", id, err)
	}
	return job, nil
}

func mustMarshal(job model.Job) []byte {
	data, _ := json.Marshal(job)
	return data
}
