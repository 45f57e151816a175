package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/library-backend/pkg/db/models"
	"github.com/angelmondragon/library-backend/pkg/pagination"
)

// Repository persists direct messages. Each message lives in its recipient's
// inbox; a conversation is the union of both inboxes filtered by sender.
type Repository interface {
	Create(ctx context.Context, message *models.Message) (*models.Message, error)
	ListConversation(ctx context.Context, a, b uuid.UUID) ([]models.Message, error)
	ListInbox(ctx context.Context, params InboxQuery) ([]models.Message, error)
	MarkRead(ctx context.Context, recipientID, messageID uuid.UUID, now time.Time) (bool, error)
}

// InboxQuery selects one page of a recipient's inbox, newest first. Limit
// already includes the lookahead row.
type InboxQuery struct {
	RecipientID uuid.UUID
	Limit       int
	Cursor      *pagination.Cursor
	UnreadOnly  bool
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository returns a notifications repository bound to the provided database.
func NewRepository(conn *gorm.DB) Repository {
	return &gormRepository{db: conn}
}

func (r *gormRepository) Create(ctx context.Context, message *models.Message) (*models.Message, error) {
	if err := r.db.WithContext(ctx).Create(message).Error; err != nil {
		return nil, err
	}
	return message, nil
}

func (r *gormRepository) ListConversation(ctx context.Context, a, b uuid.UUID) ([]models.Message, error) {
	var out []models.Message
	err := r.db.WithContext(ctx).
		Where("(sender_id = ? AND recipient_id = ?) OR (sender_id = ? AND recipient_id = ?)", a, b, b, a).
		Order("created_at ASC").
		Order("id ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *gormRepository) ListInbox(ctx context.Context, params InboxQuery) ([]models.Message, error) {
	query := r.db.WithContext(ctx).Model(&models.Message{}).Where("recipient_id = ?", params.RecipientID)
	if params.UnreadOnly {
		query = query.Where("read_at IS NULL")
	}
	if params.Cursor != nil {
		query = query.Where("created_at < ? OR (created_at = ? AND id < ?)",
			params.Cursor.CreatedAt, params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var out []models.Message
	if err := query.Order("created_at DESC").Order("id DESC").Limit(params.Limit).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// MarkRead stamps read_at once and reports whether the message exists in the
// recipient's inbox.
func (r *gormRepository) MarkRead(ctx context.Context, recipientID, messageID uuid.UUID, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("id = ? AND recipient_id = ? AND read_at IS NULL", messageID, recipientID).
		UpdateColumn("read_at", now)
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected > 0 {
		return true, nil
	}

	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("id = ? AND recipient_id = ?", messageID, recipientID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
