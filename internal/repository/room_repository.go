package repository

import (
	"context"

	"gorm.io/gorm/clause"

	"support_chat/internal/models"
	"support_chat/internal/storage"
)

// RoomSummary 房間列表需要的最後一則訊息與訊息總數
type RoomSummary struct {
	LastMessage  *models.Message
	MessageCount int64
}

type RoomRepository interface {
	FindByID(ctx context.Context, id uint) (*models.Room, error)
	FindByUserID(ctx context.Context, userID uint) (*models.Room, error)
	// CreateIfAbsent 在 user_id 尚無房間時建立；重複建立的競爭會被靜默忽略
	CreateIfAbsent(ctx context.Context, userID uint) error
	FindAll(ctx context.Context) ([]models.Room, error)
	SetResolved(ctx context.Context, id uint, resolved bool) (*models.Room, error)
	Summaries(ctx context.Context, roomIDs []uint) (map[uint]RoomSummary, error)
}

type roomRepository struct {
	baseRepository
}

func NewRoomRepository(db *storage.Database) RoomRepository {
	return &roomRepository{baseRepository{db: db}}
}

func (r *roomRepository) FindByID(ctx context.Context, id uint) (*models.Room, error) {
	var room models.Room
	if err := r.conn(ctx).Preload("Owner").First(&room, id).Error; err != nil {
		return nil, translate(err, "find room")
	}
	return &room, nil
}

func (r *roomRepository) FindByUserID(ctx context.Context, userID uint) (*models.Room, error) {
	var room models.Room
	err := r.conn(ctx).Preload("Owner").Where("user_id = ?", userID).First(&room).Error
	if err != nil {
		return nil, translate(err, "find room by user")
	}
	return &room, nil
}

func (r *roomRepository) CreateIfAbsent(ctx context.Context, userID uint) error {
	room := models.Room{UserID: userID}
	err := r.conn(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(&room).Error
	return translate(err, "create room")
}

// FindAll 依最後更新時間排序，最新的在前
func (r *roomRepository) FindAll(ctx context.Context) ([]models.Room, error) {
	var rooms []models.Room
	err := r.conn(ctx).Preload("Owner").Order("updated_at DESC").Order("id DESC").Find(&rooms).Error
	return rooms, translate(err, "list rooms")
}

// SetResolved 只改 resolved 欄位，不影響 updated_at 的排序
func (r *roomRepository) SetResolved(ctx context.Context, id uint, resolved bool) (*models.Room, error) {
	res := r.conn(ctx).Model(&models.Room{}).Where("id = ?", id).UpdateColumn("resolved", resolved)
	if res.Error != nil {
		return nil, translate(res.Error, "set resolved")
	}
	return r.FindByID(ctx, id)
}

func (r *roomRepository) Summaries(ctx context.Context, roomIDs []uint) (map[uint]RoomSummary, error) {
	summaries := make(map[uint]RoomSummary, len(roomIDs))
	if len(roomIDs) == 0 {
		return summaries, nil
	}

	var counts []struct {
		RoomID uint
		Count  int64
	}
	err := r.conn(ctx).Model(&models.Message{}).
		Select("room_id, COUNT(*) AS count").
		Where("room_id IN ?", roomIDs).
		Group("room_id").
		Scan(&counts).Error
	if err != nil {
		return nil, translate(err, "count messages")
	}

	// 每個房間依 (created_at, id) 取最新一則
	var lastIDs []uint
	err = r.conn(ctx).Raw(`
		SELECT id FROM (
			SELECT id, ROW_NUMBER() OVER (PARTITION BY room_id ORDER BY created_at DESC, id DESC) AS rn
			FROM messages
			WHERE room_id IN ?
		) ranked
		WHERE rn = 1`, roomIDs).Scan(&lastIDs).Error
	if err != nil {
		return nil, translate(err, "latest messages")
	}

	var last []models.Message
	if len(lastIDs) > 0 {
		if err := r.conn(ctx).Where("id IN ?", lastIDs).Find(&last).Error; err != nil {
			return nil, translate(err, "load latest messages")
		}
	}

	for _, c := range counts {
		s := summaries[c.RoomID]
		s.MessageCount = c.Count
		summaries[c.RoomID] = s
	}
	for i := range last {
		s := summaries[last[i].RoomID]
		s.LastMessage = &last[i]
		summaries[last[i].RoomID] = s
	}
	return summaries, nil
}
