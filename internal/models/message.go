package models

import (
	"time"
)

// Message 表示房間內的一則訊息，文字與圖片至少一項
type Message struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	RoomID    uint      `gorm:"not null;index:idx_messages_room_created,priority:1" json:"room_id"`
	SenderID  uint      `gorm:"not null" json:"sender_id"`
	Text      *string   `gorm:"type:text" json:"text"`
	Image     *string   `gorm:"type:text" json:"image"`
	CreatedAt time.Time `gorm:"index:idx_messages_room_created,priority:2" json:"created_at"`
	Sender    User      `gorm:"foreignKey:SenderID" json:"-"`
}

// ArchivedMessage 保存超過保留期限後被搬離的訊息
// 由外部排程寫入，這裡只讀取
type ArchivedMessage struct {
	ID         uint      `gorm:"primaryKey;autoIncrement:false" json:"id"`
	RoomID     uint      `gorm:"not null;index" json:"room_id"`
	SenderID   uint      `gorm:"not null" json:"sender_id"`
	Text       *string   `gorm:"type:text" json:"text"`
	Image      *string   `gorm:"type:text" json:"image"`
	CreatedAt  time.Time `gorm:"autoCreateTime:false" json:"created_at"`
	ArchivedAt time.Time `json:"archived_at"`
}

func (ArchivedMessage) TableName() string {
	return "message_archives"
}

// MessageRetention 訊息在主表保留的時間
const MessageRetention = 90 * 24 * time.Hour
