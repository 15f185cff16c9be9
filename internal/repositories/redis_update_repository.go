package repositories

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/fathmn/jokari-knowledge-hub/internal/models"
)

const (
	updateKeyPrefix         = "update:"
	updateRecordIndexPrefix = "updates:record:"
	updateStatusPrefix      = "updates:status:"
)

// RedisUpdateRepository implements UpdateRepository using Redis
type RedisUpdateRepository struct {
	client *redis.Client
}

func NewRedisUpdateRepository(client *redis.Client) *RedisUpdateRepository {
	return &RedisUpdateRepository{client: client}
}

func (r *RedisUpdateRepository) Create(ctx context.Context, update *models.ProposedUpdate) error {
	if err := update.Validate(); err != nil {
		return err
	}

	updateJSON, err := json.Marshal(update)
	if err != nil {
		return storageError("create_update", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, updateKeyPrefix+update.ID, updateJSON, 0)
	pipe.SAdd(ctx, updateRecordIndexPrefix+update.RecordID, update.ID)
	pipe.SAdd(ctx, updateStatusPrefix+string(update.Status), update.ID)

	if _, err := pipe.Exec(ctx); err != nil {
		return storageError("create_update", err)
	}
	return nil
}

func (r *RedisUpdateRepository) Get(ctx context.Context, id string) (*models.ProposedUpdate, error) {
	updateJSON, err := r.client.Get(ctx, updateKeyPrefix+id).Result()
	if err == redis.Nil {
		return nil, models.NewNotFound("proposed update", id)
	}
	if err != nil {
		return nil, storageError("get_update", err)
	}

	var update models.ProposedUpdate
	if err := json.Unmarshal([]byte(updateJSON), &update); err != nil {
		return nil, storageError("get_update", err)
	}
	return &update, nil
}

func (r *RedisUpdateRepository) Update(ctx context.Context, update *models.ProposedUpdate) error {
	if err := update.Validate(); err != nil {
		return err
	}

	existing, err := r.Get(ctx, update.ID)
	if err != nil {
		return err
	}

	updateJSON, err := json.Marshal(update)
	if err != nil {
		return storageError("update_update", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, updateKeyPrefix+update.ID, updateJSON, 0)
	if existing.Status != update.Status {
		pipe.SRem(ctx, updateStatusPrefix+string(existing.Status), update.ID)
		pipe.SAdd(ctx, updateStatusPrefix+string(update.Status), update.ID)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return storageError("update_update", err)
	}
	return nil
}

func (r *RedisUpdateRepository) ListByRecord(ctx context.Context, recordID string) ([]*models.ProposedUpdate, error) {
	ids, err := r.client.SMembers(ctx, updateRecordIndexPrefix+recordID).Result()
	if err != nil {
		return nil, storageError("list_updates", err)
	}
	return r.getBatch(ctx, ids)
}

func (r *RedisUpdateRepository) ListPending(ctx context.Context) ([]*models.ProposedUpdate, error) {
	ids, err := r.client.SMembers(ctx, updateStatusPrefix+string(models.UpdateStatusPending)).Result()
	if err != nil {
		return nil, storageError("list_pending_updates", err)
	}
	return r.getBatch(ctx, ids)
}

// DeleteByRecord removes every proposed update targeting the record, along
// with the record and status index entries.
func (r *RedisUpdateRepository) DeleteByRecord(ctx context.Context, recordID string) error {
	updates, err := r.ListByRecord(ctx, recordID)
	if err != nil {
		return err
	}

	pipe := r.client.TxPipeline()
	for _, update := range updates {
		pipe.Del(ctx, updateKeyPrefix+update.ID)
		pipe.SRem(ctx, updateStatusPrefix+string(update.Status), update.ID)
	}
	pipe.Del(ctx, updateRecordIndexPrefix+recordID)

	if _, err := pipe.Exec(ctx); err != nil {
		return storageError("delete_updates_by_record", err)
	}
	return nil
}

func (r *RedisUpdateRepository) getBatch(ctx context.Context, ids []string) ([]*models.ProposedUpdate, error) {
	if len(ids) == 0 {
		return []*models.ProposedUpdate{}, nil
	}

	pipe := r.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.Get(ctx, updateKeyPrefix+id)
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, storageError("get_updates_batch", err)
	}

	updates := make([]*models.ProposedUpdate, 0, len(ids))
	for _, cmd := range cmds {
		updateJSON, err := cmd.Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, storageError("get_updates_batch", err)
		}
		var update models.ProposedUpdate
		if err := json.Unmarshal([]byte(updateJSON), &update); err != nil {
			return nil, storageError("get_updates_batch", err)
		}
		updates = append(updates, &update)
	}

	sort.Slice(updates, func(i, j int) bool {
		return updates[i].CreatedAt.After(updates[j].CreatedAt)
	})
	return updates, nil
}
