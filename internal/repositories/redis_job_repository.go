package repositories

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fathmn/jokari-knowledge-hub/internal/models"
)

const (
	jobKeyPrefix = "job:"
	jobQueueKey  = "jobs:ingestion:queue"
)

// RedisJobRepository implements JobRepository using Redis. The queue is a
// sorted set scored by enqueue time, giving FIFO dequeue order.
type RedisJobRepository struct {
	client *redis.Client
}

func NewRedisJobRepository(client *redis.Client) *RedisJobRepository {
	return &RedisJobRepository{client: client}
}

func (r *RedisJobRepository) Enqueue(ctx context.Context, job *IngestionJob) error {
	if err := job.Validate(); err != nil {
		return err
	}

	now := time.Now()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now
	job.Status = JobStatusQueued

	jobJSON, err := json.Marshal(job)
	if err != nil {
		return storageError("enqueue_job", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, jobKeyPrefix+job.ID, jobJSON, 0)
	pipe.ZAdd(ctx, jobQueueKey, redis.Z{
		Score:  float64(now.UnixNano()),
		Member: job.ID,
	})

	if _, err := pipe.Exec(ctx); err != nil {
		return storageError("enqueue_job", err)
	}
	return nil
}

func (r *RedisJobRepository) Dequeue(ctx context.Context) (*IngestionJob, error) {
	result, err := r.client.ZPopMin(ctx, jobQueueKey, 1).Result()
	if err != nil {
		return nil, storageError("dequeue_job", err)
	}
	if len(result) == 0 {
		return nil, nil
	}

	jobID, ok := result[0].Member.(string)
	if !ok {
		return nil, storageError("dequeue_job", models.NewInternal("invalid job id in queue", nil))
	}

	job, err := r.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	job.Status = JobStatusProcessing
	if job.StartedAt == nil {
		job.StartedAt = &now
	}
	if err := r.Update(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

func (r *RedisJobRepository) Get(ctx context.Context, id string) (*IngestionJob, error) {
	jobJSON, err := r.client.Get(ctx, jobKeyPrefix+id).Result()
	if err == redis.Nil {
		return nil, models.NewNotFound("job", id)
	}
	if err != nil {
		return nil, storageError("get_job", err)
	}

	var job IngestionJob
	if err := json.Unmarshal([]byte(jobJSON), &job); err != nil {
		return nil, storageError("get_job", err)
	}
	return &job, nil
}

func (r *RedisJobRepository) Update(ctx context.Context, job *IngestionJob) error {
	if err := job.Validate(); err != nil {
		return err
	}
	job.UpdatedAt = time.Now()

	jobJSON, err := json.Marshal(job)
	if err != nil {
		return storageError("update_job", err)
	}

	if err := r.client.Set(ctx, jobKeyPrefix+job.ID, jobJSON, 0).Err(); err != nil {
		return storageError("update_job", err)
	}
	return nil
}

func (r *RedisJobRepository) QueueLength(ctx context.Context) (int64, error) {
	length, err := r.client.ZCard(ctx, jobQueueKey).Result()
	if err != nil {
		return 0, storageError("queue_length", err)
	}
	return length, nil
}
