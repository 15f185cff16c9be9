package repositories

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/fathmn/jokari-knowledge-hub/internal/models"
)

const (
	documentKeyPrefix       = "document:"
	documentIndexKey        = "documents:index"
	documentDeptIndexPrefix = "document:department:"
	documentStatusPrefix    = "document:status:"
	documentDocTypePrefix   = "document:doctype:"
)

// RedisDocumentRepository implements DocumentRepository using Redis
type RedisDocumentRepository struct {
	client *redis.Client
}

func NewRedisDocumentRepository(client *redis.Client) *RedisDocumentRepository {
	return &RedisDocumentRepository{client: client}
}

func (r *RedisDocumentRepository) Create(ctx context.Context, doc *models.Document) error {
	if err := doc.Validate(); err != nil {
		return err
	}

	exists, err := r.client.Exists(ctx, documentKeyPrefix+doc.ID).Result()
	if err != nil {
		return storageError("create_document", err)
	}
	if exists > 0 {
		return models.NewConflict("document already exists: %s", doc.ID)
	}

	docJSON, err := json.Marshal(doc)
	if err != nil {
		return storageError("create_document", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, documentKeyPrefix+doc.ID, docJSON, 0)
	pipe.SAdd(ctx, documentIndexKey, doc.ID)
	pipe.SAdd(ctx, documentDeptIndexPrefix+string(doc.Department), doc.ID)
	pipe.SAdd(ctx, documentStatusPrefix+string(doc.Status), doc.ID)
	pipe.SAdd(ctx, documentDocTypePrefix+string(doc.DocType), doc.ID)

	if _, err := pipe.Exec(ctx); err != nil {
		return storageError("create_document", err)
	}
	return nil
}

func (r *RedisDocumentRepository) Get(ctx context.Context, id string) (*models.Document, error) {
	docJSON, err := r.client.Get(ctx, documentKeyPrefix+id).Result()
	if err == redis.Nil {
		return nil, models.NewNotFound("document", id)
	}
	if err != nil {
		return nil, storageError("get_document", err)
	}

	var doc models.Document
	if err := json.Unmarshal([]byte(docJSON), &doc); err != nil {
		return nil, storageError("get_document", err)
	}
	return &doc, nil
}

func (r *RedisDocumentRepository) Update(ctx context.Context, doc *models.Document) error {
	if err := doc.Validate(); err != nil {
		return err
	}

	existing, err := r.Get(ctx, doc.ID)
	if err != nil {
		return err
	}

	docJSON, err := json.Marshal(doc)
	if err != nil {
		return storageError("update_document", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, documentKeyPrefix+doc.ID, docJSON, 0)
	if existing.Status != doc.Status {
		pipe.SRem(ctx, documentStatusPrefix+string(existing.Status), doc.ID)
		pipe.SAdd(ctx, documentStatusPrefix+string(doc.Status), doc.ID)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return storageError("update_document", err)
	}
	return nil
}

func (r *RedisDocumentRepository) UpdateStatus(ctx context.Context, id string, status models.DocumentStatus, errorMessage string) error {
	doc, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	doc.Status = status
	doc.ErrorMessage = errorMessage
	return r.Update(ctx, doc)
}

func (r *RedisDocumentRepository) List(ctx context.Context, filter DocumentFilter) ([]*models.Document, error) {
	// The narrowest available index seeds the candidate set; remaining
	// filters apply in memory.
	indexKey := documentIndexKey
	switch {
	case filter.Department != "":
		indexKey = documentDeptIndexPrefix + string(filter.Department)
	case filter.Status != "":
		indexKey = documentStatusPrefix + string(filter.Status)
	case filter.DocType != "":
		indexKey = documentDocTypePrefix + string(filter.DocType)
	}

	ids, err := r.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, storageError("list_documents", err)
	}

	docs, err := r.getBatch(ctx, ids)
	if err != nil {
		return nil, err
	}

	filtered := docs[:0]
	for _, doc := range docs {
		if filter.Department != "" && doc.Department != filter.Department {
			continue
		}
		if filter.Status != "" && doc.Status != filter.Status {
			continue
		}
		if filter.DocType != "" && doc.DocType != filter.DocType {
			continue
		}
		filtered = append(filtered, doc)
	}

	// Newest uploads first.
	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].UploadedAt.After(filtered[j].UploadedAt)
	})

	return paginate(filtered, filter.Offset, filter.Limit), nil
}

func (r *RedisDocumentRepository) Delete(ctx context.Context, id string) error {
	doc, err := r.Get(ctx, id)
	if err != nil {
		return err
	}

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, documentKeyPrefix+id)
	pipe.SRem(ctx, documentIndexKey, id)
	pipe.SRem(ctx, documentDeptIndexPrefix+string(doc.Department), id)
	pipe.SRem(ctx, documentStatusPrefix+string(doc.Status), id)
	pipe.SRem(ctx, documentDocTypePrefix+string(doc.DocType), id)

	if _, err := pipe.Exec(ctx); err != nil {
		return storageError("delete_document", err)
	}
	return nil
}

func (r *RedisDocumentRepository) getBatch(ctx context.Context, ids []string) ([]*models.Document, error) {
	if len(ids) == 0 {
		return []*models.Document{}, nil
	}

	pipe := r.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.Get(ctx, documentKeyPrefix+id)
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, storageError("get_documents_batch", err)
	}

	docs := make([]*models.Document, 0, len(ids))
	for _, cmd := range cmds {
		docJSON, err := cmd.Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, storageError("get_documents_batch", err)
		}
		var doc models.Document
		if err := json.Unmarshal([]byte(docJSON), &doc); err != nil {
			return nil, storageError("get_documents_batch", err)
		}
		docs = append(docs, &doc)
	}
	return docs, nil
}

// paginate applies offset/limit slicing; limit 0 means everything.
func paginate[T any](items []T, offset, limit int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return []T{}
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
