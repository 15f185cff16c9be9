package repositories

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"github.com/fathmn/jokari-knowledge-hub/internal/models"
)

const (
	evidenceKeyPrefix         = "evidence:"
	evidenceRecordIndexPrefix = "evidence:record:"
	evidenceChunkIndexPrefix  = "evidence:chunk:"
)

// RedisEvidenceRepository implements EvidenceRepository using Redis
type RedisEvidenceRepository struct {
	client *redis.Client
}

func NewRedisEvidenceRepository(client *redis.Client) *RedisEvidenceRepository {
	return &RedisEvidenceRepository{client: client}
}

func (r *RedisEvidenceRepository) CreateBatch(ctx context.Context, evidence []*models.Evidence) error {
	if len(evidence) == 0 {
		return nil
	}
	for _, ev := range evidence {
		if err := ev.Validate(); err != nil {
			return err
		}
	}

	pipe := r.client.TxPipeline()
	for _, ev := range evidence {
		evJSON, err := json.Marshal(ev)
		if err != nil {
			return storageError("create_evidence", err)
		}
		pipe.Set(ctx, evidenceKeyPrefix+ev.ID, evJSON, 0)
		pipe.SAdd(ctx, evidenceRecordIndexPrefix+ev.RecordID, ev.ID)
		if ev.ChunkID != "" {
			pipe.SAdd(ctx, evidenceChunkIndexPrefix+ev.ChunkID, ev.ID)
		}
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return storageError("create_evidence", err)
	}
	return nil
}

func (r *RedisEvidenceRepository) ListByRecord(ctx context.Context, recordID string) ([]*models.Evidence, error) {
	ids, err := r.client.SMembers(ctx, evidenceRecordIndexPrefix+recordID).Result()
	if err != nil {
		return nil, storageError("list_evidence", err)
	}
	if len(ids) == 0 {
		return []*models.Evidence{}, nil
	}

	pipe := r.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.Get(ctx, evidenceKeyPrefix+id)
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, storageError("list_evidence", err)
	}

	evidence := make([]*models.Evidence, 0, len(ids))
	for _, cmd := range cmds {
		evJSON, err := cmd.Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, storageError("list_evidence", err)
		}
		var ev models.Evidence
		if err := json.Unmarshal([]byte(evJSON), &ev); err != nil {
			return nil, storageError("list_evidence", err)
		}
		evidence = append(evidence, &ev)
	}
	return evidence, nil
}

// NullifyChunks detaches evidence from deleted chunks. The evidence rows and
// their excerpts survive; only the chunk reference is cleared.
func (r *RedisEvidenceRepository) NullifyChunks(ctx context.Context, chunkIDs []string) error {
	for _, chunkID := range chunkIDs {
		ids, err := r.client.SMembers(ctx, evidenceChunkIndexPrefix+chunkID).Result()
		if err != nil {
			return storageError("nullify_evidence_chunks", err)
		}

		pipe := r.client.TxPipeline()
		for _, id := range ids {
			evJSON, err := r.client.Get(ctx, evidenceKeyPrefix+id).Result()
			if err == redis.Nil {
				continue
			}
			if err != nil {
				return storageError("nullify_evidence_chunks", err)
			}
			var ev models.Evidence
			if err := json.Unmarshal([]byte(evJSON), &ev); err != nil {
				return storageError("nullify_evidence_chunks", err)
			}
			ev.ChunkID = ""
			updated, err := json.Marshal(&ev)
			if err != nil {
				return storageError("nullify_evidence_chunks", err)
			}
			pipe.Set(ctx, evidenceKeyPrefix+id, updated, 0)
		}
		pipe.Del(ctx, evidenceChunkIndexPrefix+chunkID)

		if _, err := pipe.Exec(ctx); err != nil {
			return storageError("nullify_evidence_chunks", err)
		}
	}
	return nil
}

func (r *RedisEvidenceRepository) DeleteByRecord(ctx context.Context, recordID string) error {
	evidence, err := r.ListByRecord(ctx, recordID)
	if err != nil {
		return err
	}

	pipe := r.client.TxPipeline()
	for _, ev := range evidence {
		pipe.Del(ctx, evidenceKeyPrefix+ev.ID)
		if ev.ChunkID != "" {
			pipe.SRem(ctx, evidenceChunkIndexPrefix+ev.ChunkID, ev.ID)
		}
	}
	pipe.Del(ctx, evidenceRecordIndexPrefix+recordID)

	if _, err := pipe.Exec(ctx); err != nil {
		return storageError("delete_evidence", err)
	}
	return nil
}
