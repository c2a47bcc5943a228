package models

import (
	"time"
)

// Room 表示一個用戶的客服對話，每個用戶最多一個
type Room struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"uniqueIndex;not null" json:"user_id"`
	Resolved  bool      `gorm:"not null;default:false" json:"resolved"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `gorm:"index" json:"updated_at"` // 每則新訊息都會更新
	Owner     User      `gorm:"foreignKey:UserID" json:"-"`
}
