package repositories

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/fathmn/jokari-knowledge-hub/internal/models"
)

const (
	chunkKeyPrefix      = "chunk:"
	chunkDocIndexPrefix = "chunks:document:"
)

// RedisChunkRepository implements ChunkRepository using Redis
type RedisChunkRepository struct {
	client *redis.Client
}

func NewRedisChunkRepository(client *redis.Client) *RedisChunkRepository {
	return &RedisChunkRepository{client: client}
}

func (r *RedisChunkRepository) CreateBatch(ctx context.Context, chunks []*models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	for _, chunk := range chunks {
		if err := chunk.Validate(); err != nil {
			return err
		}
	}

	pipe := r.client.TxPipeline()
	for _, chunk := range chunks {
		chunkJSON, err := json.Marshal(chunk)
		if err != nil {
			return storageError("create_chunks", err)
		}
		pipe.Set(ctx, chunkKeyPrefix+chunk.ID, chunkJSON, 0)
		pipe.SAdd(ctx, chunkDocIndexPrefix+chunk.DocumentID, chunk.ID)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return storageError("create_chunks", err)
	}
	return nil
}

func (r *RedisChunkRepository) Get(ctx context.Context, id string) (*models.Chunk, error) {
	chunkJSON, err := r.client.Get(ctx, chunkKeyPrefix+id).Result()
	if err == redis.Nil {
		return nil, models.NewNotFound("chunk", id)
	}
	if err != nil {
		return nil, storageError("get_chunk", err)
	}

	var chunk models.Chunk
	if err := json.Unmarshal([]byte(chunkJSON), &chunk); err != nil {
		return nil, storageError("get_chunk", err)
	}
	return &chunk, nil
}

// ListByDocument returns the document's chunks ordered by chunk index.
func (r *RedisChunkRepository) ListByDocument(ctx context.Context, documentID string) ([]*models.Chunk, error) {
	ids, err := r.client.SMembers(ctx, chunkDocIndexPrefix+documentID).Result()
	if err != nil {
		return nil, storageError("list_chunks", err)
	}
	if len(ids) == 0 {
		return []*models.Chunk{}, nil
	}

	pipe := r.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.Get(ctx, chunkKeyPrefix+id)
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, storageError("list_chunks", err)
	}

	chunks := make([]*models.Chunk, 0, len(ids))
	for _, cmd := range cmds {
		chunkJSON, err := cmd.Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, storageError("list_chunks", err)
		}
		var chunk models.Chunk
		if err := json.Unmarshal([]byte(chunkJSON), &chunk); err != nil {
			return nil, storageError("list_chunks", err)
		}
		chunks = append(chunks, &chunk)
	}

	sort.Slice(chunks, func(i, j int) bool {
		return chunks[i].ChunkIndex < chunks[j].ChunkIndex
	})
	return chunks, nil
}

// DeleteByDocument removes all chunks of the document and returns the ids of
// the deleted chunks so callers can detach dependent evidence.
func (r *RedisChunkRepository) DeleteByDocument(ctx context.Context, documentID string) ([]string, error) {
	ids, err := r.client.SMembers(ctx, chunkDocIndexPrefix+documentID).Result()
	if err != nil {
		return nil, storageError("delete_chunks", err)
	}
	if len(ids) == 0 {
		return []string{}, nil
	}

	pipe := r.client.TxPipeline()
	for _, id := range ids {
		pipe.Del(ctx, chunkKeyPrefix+id)
	}
	pipe.Del(ctx, chunkDocIndexPrefix+documentID)

	if _, err := pipe.Exec(ctx); err != nil {
		return nil, storageError("delete_chunks", err)
	}
	return ids, nil
}
