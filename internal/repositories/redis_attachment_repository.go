package repositories

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/fathmn/jokari-knowledge-hub/internal/models"
)

const (
	attachmentKeyPrefix         = "attachment:"
	attachmentRecordIndexPrefix = "attachments:record:"
)

// RedisAttachmentRepository implements AttachmentRepository using Redis
type RedisAttachmentRepository struct {
	client *redis.Client
}

func NewRedisAttachmentRepository(client *redis.Client) *RedisAttachmentRepository {
	return &RedisAttachmentRepository{client: client}
}

func (r *RedisAttachmentRepository) Create(ctx context.Context, attachment *models.RecordAttachment) error {
	if err := attachment.Validate(); err != nil {
		return err
	}

	attachmentJSON, err := json.Marshal(attachment)
	if err != nil {
		return storageError("create_attachment", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, attachmentKeyPrefix+attachment.ID, attachmentJSON, 0)
	pipe.SAdd(ctx, attachmentRecordIndexPrefix+attachment.RecordID, attachment.ID)

	if _, err := pipe.Exec(ctx); err != nil {
		return storageError("create_attachment", err)
	}
	return nil
}

func (r *RedisAttachmentRepository) Get(ctx context.Context, id string) (*models.RecordAttachment, error) {
	attachmentJSON, err := r.client.Get(ctx, attachmentKeyPrefix+id).Result()
	if err == redis.Nil {
		return nil, models.NewNotFound("attachment", id)
	}
	if err != nil {
		return nil, storageError("get_attachment", err)
	}

	var attachment models.RecordAttachment
	if err := json.Unmarshal([]byte(attachmentJSON), &attachment); err != nil {
		return nil, storageError("get_attachment", err)
	}
	return &attachment, nil
}

func (r *RedisAttachmentRepository) ListByRecord(ctx context.Context, recordID string) ([]*models.RecordAttachment, error) {
	ids, err := r.client.SMembers(ctx, attachmentRecordIndexPrefix+recordID).Result()
	if err != nil {
		return nil, storageError("list_attachments", err)
	}
	if len(ids) == 0 {
		return []*models.RecordAttachment{}, nil
	}

	pipe := r.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.Get(ctx, attachmentKeyPrefix+id)
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, storageError("list_attachments", err)
	}

	attachments := make([]*models.RecordAttachment, 0, len(ids))
	for _, cmd := range cmds {
		attachmentJSON, err := cmd.Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, storageError("list_attachments", err)
		}
		var attachment models.RecordAttachment
		if err := json.Unmarshal([]byte(attachmentJSON), &attachment); err != nil {
			return nil, storageError("list_attachments", err)
		}
		attachments = append(attachments, &attachment)
	}

	sort.Slice(attachments, func(i, j int) bool {
		return attachments[i].CreatedAt.Before(attachments[j].CreatedAt)
	})
	return attachments, nil
}

func (r *RedisAttachmentRepository) Delete(ctx context.Context, id string) error {
	attachment, err := r.Get(ctx, id)
	if err != nil {
		return err
	}

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, attachmentKeyPrefix+id)
	pipe.SRem(ctx, attachmentRecordIndexPrefix+attachment.RecordID, id)

	if _, err := pipe.Exec(ctx); err != nil {
		return storageError("delete_attachment", err)
	}
	return nil
}
