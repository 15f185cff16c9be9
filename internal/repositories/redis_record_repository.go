package repositories

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/fathmn/jokari-knowledge-hub/internal/models"
)

const (
	recordKeyPrefix       = "record:"
	recordIndexKey        = "records:index"
	recordDocIndexPrefix  = "record:document:"
	recordStatusPrefix    = "record:status:"
	recordSchemaPrefix    = "record:schema:"
	recordDeptIndexPrefix = "record:department:"
	recordPKPrefix        = "record:pk:"
)

// RedisRecordRepository implements RecordRepository using Redis
type RedisRecordRepository struct {
	client *redis.Client
}

func NewRedisRecordRepository(client *redis.Client) *RedisRecordRepository {
	return &RedisRecordRepository{client: client}
}

func (r *RedisRecordRepository) Create(ctx context.Context, record *models.Record) error {
	if err := record.Validate(); err != nil {
		return err
	}

	exists, err := r.client.Exists(ctx, recordKeyPrefix+record.ID).Result()
	if err != nil {
		return storageError("create_record", err)
	}
	if exists > 0 {
		return models.NewConflict("record already exists: %s", record.ID)
	}

	recordJSON, err := json.Marshal(record)
	if err != nil {
		return storageError("create_record", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, recordKeyPrefix+record.ID, recordJSON, 0)
	pipe.SAdd(ctx, recordIndexKey, record.ID)
	pipe.SAdd(ctx, recordDocIndexPrefix+record.DocumentID, record.ID)
	pipe.SAdd(ctx, recordStatusPrefix+string(record.Status), record.ID)
	pipe.SAdd(ctx, recordSchemaPrefix+record.SchemaType, record.ID)
	pipe.SAdd(ctx, recordDeptIndexPrefix+string(record.Department), record.ID)

	if _, err := pipe.Exec(ctx); err != nil {
		return storageError("create_record", err)
	}
	return nil
}

func (r *RedisRecordRepository) Get(ctx context.Context, id string) (*models.Record, error) {
	recordJSON, err := r.client.Get(ctx, recordKeyPrefix+id).Result()
	if err == redis.Nil {
		return nil, models.NewNotFound("record", id)
	}
	if err != nil {
		return nil, storageError("get_record", err)
	}

	var record models.Record
	if err := json.Unmarshal([]byte(recordJSON), &record); err != nil {
		return nil, storageError("get_record", err)
	}
	return &record, nil
}

func (r *RedisRecordRepository) Update(ctx context.Context, record *models.Record) error {
	if err := record.Validate(); err != nil {
		return err
	}

	existing, err := r.Get(ctx, record.ID)
	if err != nil {
		return err
	}

	recordJSON, err := json.Marshal(record)
	if err != nil {
		return storageError("update_record", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, recordKeyPrefix+record.ID, recordJSON, 0)
	if existing.Status != record.Status {
		pipe.SRem(ctx, recordStatusPrefix+string(existing.Status), record.ID)
		pipe.SAdd(ctx, recordStatusPrefix+string(record.Status), record.ID)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return storageError("update_record", err)
	}
	return nil
}

func (r *RedisRecordRepository) List(ctx context.Context, filter RecordFilter) ([]*models.Record, error) {
	indexKey := recordIndexKey
	switch {
	case filter.DocumentID != "":
		indexKey = recordDocIndexPrefix + filter.DocumentID
	case filter.Status != "":
		indexKey = recordStatusPrefix + string(filter.Status)
	case filter.SchemaType != "":
		indexKey = recordSchemaPrefix + filter.SchemaType
	case filter.Department != "":
		indexKey = recordDeptIndexPrefix + string(filter.Department)
	}

	ids, err := r.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, storageError("list_records", err)
	}

	records, err := r.getBatch(ctx, ids)
	if err != nil {
		return nil, err
	}

	filtered := records[:0]
	for _, record := range records {
		if filter.Department != "" && record.Department != filter.Department {
			continue
		}
		if filter.SchemaType != "" && record.SchemaType != filter.SchemaType {
			continue
		}
		if filter.Status != "" && record.Status != filter.Status {
			continue
		}
		if filter.DocumentID != "" && record.DocumentID != filter.DocumentID {
			continue
		}
		filtered = append(filtered, record)
	}

	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].CreatedAt.After(filtered[j].CreatedAt)
	})

	return paginate(filtered, filter.Offset, filter.Limit), nil
}

func (r *RedisRecordRepository) ListByDocument(ctx context.Context, documentID string) ([]*models.Record, error) {
	return r.List(ctx, RecordFilter{DocumentID: documentID})
}

func (r *RedisRecordRepository) ListApprovedBySchema(ctx context.Context, schemaType string) ([]*models.Record, error) {
	return r.List(ctx, RecordFilter{SchemaType: schemaType, Status: models.RecordStatusApproved})
}

// ClaimPrimaryKey reserves the approved-uniqueness slot for the record using
// SETNX semantics. A claim already held by the same record succeeds.
func (r *RedisRecordRepository) ClaimPrimaryKey(ctx context.Context, schemaType, primaryKey, recordID string) (bool, error) {
	key := recordPKPrefix + schemaType + ":" + primaryKey

	claimed, err := r.client.SetNX(ctx, key, recordID, 0).Result()
	if err != nil {
		return false, storageError("claim_primary_key", err)
	}
	if claimed {
		return true, nil
	}

	holder, err := r.client.Get(ctx, key).Result()
	if err != nil && err != redis.Nil {
		return false, storageError("claim_primary_key", err)
	}
	return holder == recordID, nil
}

func (r *RedisRecordRepository) ReleasePrimaryKey(ctx context.Context, schemaType, primaryKey, recordID string) error {
	key := recordPKPrefix + schemaType + ":" + primaryKey

	holder, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return storageError("release_primary_key", err)
	}
	// Only the holder may release its claim.
	if holder != recordID {
		return nil
	}
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return storageError("release_primary_key", err)
	}
	return nil
}

func (r *RedisRecordRepository) Delete(ctx context.Context, id string) error {
	record, err := r.Get(ctx, id)
	if err != nil {
		return err
	}

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, recordKeyPrefix+id)
	pipe.SRem(ctx, recordIndexKey, id)
	pipe.SRem(ctx, recordDocIndexPrefix+record.DocumentID, id)
	pipe.SRem(ctx, recordStatusPrefix+string(record.Status), id)
	pipe.SRem(ctx, recordSchemaPrefix+record.SchemaType, id)
	pipe.SRem(ctx, recordDeptIndexPrefix+string(record.Department), id)

	if _, err := pipe.Exec(ctx); err != nil {
		return storageError("delete_record", err)
	}

	if record.Status == models.RecordStatusApproved {
		return r.ReleasePrimaryKey(ctx, record.SchemaType, record.PrimaryKey, id)
	}
	return nil
}

func (r *RedisRecordRepository) getBatch(ctx context.Context, ids []string) ([]*models.Record, error) {
	if len(ids) == 0 {
		return []*models.Record{}, nil
	}

	pipe := r.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.Get(ctx, recordKeyPrefix+id)
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, storageError("get_records_batch", err)
	}

	records := make([]*models.Record, 0, len(ids))
	for _, cmd := range cmds {
		recordJSON, err := cmd.Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, storageError("get_records_batch", err)
		}
		var record models.Record
		if err := json.Unmarshal([]byte(recordJSON), &record); err != nil {
			return nil, storageError("get_records_batch", err)
		}
		records = append(records, &record)
	}
	return records, nil
}
