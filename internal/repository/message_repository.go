package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"support_chat/internal/models"
	"support_chat/internal/storage"
)

// Cursor 分頁邊界：排序鍵 (created_at, id) 中上一頁最舊的一筆
type Cursor struct {
	CreatedAt time.Time
	ID        uint
}

type MessageRepository interface {
	// Create 寫入訊息並把房間的 updated_at 推進到訊息時間
	Create(ctx context.Context, message *models.Message) error
	FindByID(ctx context.Context, id uint) (*models.Message, error)
	// ListBefore 依 (created_at DESC, id DESC) 回傳 cursor 之後（更舊）的最多 limit 筆
	ListBefore(ctx context.Context, roomID uint, cursor *Cursor, limit int) ([]models.Message, error)
	FindByRoomID(ctx context.Context, roomID uint) ([]models.Message, error)
	Delete(ctx context.Context, id uint) error
}

type messageRepository struct {
	baseRepository
}

func NewMessageRepository(db *storage.Database) MessageRepository {
	return &messageRepository{baseRepository{db: db}}
}

func (r *messageRepository) Create(ctx context.Context, message *models.Message) error {
	err := r.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(message).Error; err != nil {
			return err
		}
		res := tx.Model(&models.Room{}).
			Where("id = ?", message.RoomID).
			UpdateColumn("updated_at", message.CreatedAt)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	return translate(err, "create message")
}

func (r *messageRepository) FindByID(ctx context.Context, id uint) (*models.Message, error) {
	var message models.Message
	if err := r.conn(ctx).Preload("Sender").First(&message, id).Error; err != nil {
		return nil, translate(err, "find message")
	}
	return &message, nil
}

func (r *messageRepository) ListBefore(ctx context.Context, roomID uint, cursor *Cursor, limit int) ([]models.Message, error) {
	q := r.conn(ctx).Preload("Sender").Where("room_id = ?", roomID)
	if cursor != nil {
		q = q.Where("(created_at < ? OR (created_at = ? AND id < ?))",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var messages []models.Message
	err := q.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&messages).Error
	return messages, translate(err, "list messages")
}

// FindByRoomID 回傳房間的完整歷史，依時間升冪
func (r *messageRepository) FindByRoomID(ctx context.Context, roomID uint) ([]models.Message, error) {
	var messages []models.Message
	err := r.conn(ctx).Preload("Sender").
		Where("room_id = ?", roomID).
		Order("created_at ASC").Order("id ASC").
		Find(&messages).Error
	return messages, translate(err, "list room history")
}

// Delete 實體刪除，只作用在主表
func (r *messageRepository) Delete(ctx context.Context, id uint) error {
	res := r.conn(ctx).Delete(&models.Message{}, id)
	if res.Error != nil {
		return translate(res.Error, "delete message")
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
