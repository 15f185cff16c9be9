package repositories

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/fathmn/jokari-knowledge-hub/internal/models"
)

const (
	auditKeyPrefix         = "audit:"
	auditRecentKey         = "audit:recent"
	auditEntityIndexPrefix = "audit:entity:"

	// Bounded so the recent-activity feed cannot grow without limit; the
	// per-entity history keeps everything.
	auditRecentMax = 1000
)

// RedisAuditRepository implements AuditRepository using Redis. Entries are
// append-only: there is no update or delete path.
type RedisAuditRepository struct {
	client *redis.Client
}

func NewRedisAuditRepository(client *redis.Client) *RedisAuditRepository {
	return &RedisAuditRepository{client: client}
}

func (r *RedisAuditRepository) Append(ctx context.Context, entry *models.AuditLog) error {
	if err := entry.Validate(); err != nil {
		return err
	}

	entryJSON, err := json.Marshal(entry)
	if err != nil {
		return storageError("append_audit", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, auditKeyPrefix+entry.ID, entryJSON, 0)
	pipe.SAdd(ctx, auditEntityIndexPrefix+entry.EntityID, entry.ID)
	pipe.LPush(ctx, auditRecentKey, entry.ID)
	pipe.LTrim(ctx, auditRecentKey, 0, auditRecentMax-1)

	if _, err := pipe.Exec(ctx); err != nil {
		return storageError("append_audit", err)
	}
	return nil
}

// ListByEntity returns the entity's audit trail, newest first.
func (r *RedisAuditRepository) ListByEntity(ctx context.Context, entityID string) ([]*models.AuditLog, error) {
	ids, err := r.client.SMembers(ctx, auditEntityIndexPrefix+entityID).Result()
	if err != nil {
		return nil, storageError("list_audit", err)
	}

	entries, err := r.getBatch(ctx, ids)
	if err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})
	return entries, nil
}

// ListRecent returns the newest entries across all entities.
func (r *RedisAuditRepository) ListRecent(ctx context.Context, limit int) ([]*models.AuditLog, error) {
	if limit <= 0 || limit > auditRecentMax {
		limit = auditRecentMax
	}

	ids, err := r.client.LRange(ctx, auditRecentKey, 0, int64(limit)-1).Result()
	if err != nil {
		return nil, storageError("list_recent_audit", err)
	}
	// LPush keeps the list newest first already.
	return r.getBatch(ctx, ids)
}

func (r *RedisAuditRepository) getBatch(ctx context.Context, ids []string) ([]*models.AuditLog, error) {
	if len(ids) == 0 {
		return []*models.AuditLog{}, nil
	}

	pipe := r.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.Get(ctx, auditKeyPrefix+id)
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, storageError("get_audit_batch", err)
	}

	entries := make([]*models.AuditLog, 0, len(ids))
	for _, cmd := range cmds {
		entryJSON, err := cmd.Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, storageError("get_audit_batch", err)
		}
		var entry models.AuditLog
		if err := json.Unmarshal([]byte(entryJSON), &entry); err != nil {
			return nil, storageError("get_audit_batch", err)
		}
		entries = append(entries, &entry)
	}
	return entries, nil
}
