// Package chatclient 是客服聊天的客戶端：HTTP/WebSocket API 包裝，
// 以及供 UI 綁定的會話控制器（拉取與推送的合併、輸入狀態）。
package chatclient

import (
	"encoding/json"
	"time"
)

type Sender struct {
	ID       uint   `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

type Message struct {
	ID        uint      `json:"id"`
	RoomID    uint      `json:"room_id"`
	SenderID  uint      `json:"sender_id"`
	Text      *string   `json:"text"`
	Image     *string   `json:"image"`
	CreatedAt time.Time `json:"created_at"`
	Sender    Sender    `json:"sender"`
	Archived  bool      `json:"archived,omitempty"`
}

type Owner struct {
	ID       uint   `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type LastMessage struct {
	ID        uint      `json:"id"`
	Text      *string   `json:"text"`
	Image     *string   `json:"image"`
	CreatedAt time.Time `json:"created_at"`
	SenderID  uint      `json:"sender_id"`
}

type Room struct {
	ID           uint         `json:"id"`
	UserID       uint         `json:"user_id"`
	Resolved     bool         `json:"resolved"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
	Owner        *Owner       `json:"owner,omitempty"`
	LastMessage  *LastMessage `json:"last_message"`
	MessageCount int64        `json:"message_count"`
	UnreadCount  int          `json:"unread_count"`
}

// Page 時間升冪的一頁訊息；NextCursor 為 nil 表示沒有更舊的資料
type Page struct {
	Messages   []Message `json:"messages"`
	NextCursor *uint     `json:"next_cursor"`
}

type EventType string

const (
	EventMessageCreated EventType = "message-created"
	EventMessageDeleted EventType = "message-deleted"
	EventTypingState    EventType = "typing-state"
)

// Event 即時頻道上的事件
type Event struct {
	Type   EventType       `json:"type"`
	RoomID uint            `json:"room_id"`
	Data   json.RawMessage `json:"data,omitempty"`
}

type TypingState struct {
	SenderID uint `json:"sender_id"`
	IsTyping bool `json:"is_typing"`
}

type MessageDeleted struct {
	MessageID uint `json:"message_id"`
}
