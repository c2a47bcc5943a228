package models

import (
	"encoding/json"
)

// EventType 即時推送事件類型
type EventType string

const (
	EventMessageCreated EventType = "message-created"
	EventMessageDeleted EventType = "message-deleted"
	EventTypingState    EventType = "typing-state"
)

// Event 是 WebSocket 與 pub/sub 共用的事件封包
type Event struct {
	Type   EventType       `json:"type"`
	RoomID uint            `json:"room_id"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// TypingState typing-state 事件的內容
type TypingState struct {
	SenderID uint `json:"sender_id"`
	IsTyping bool `json:"is_typing"`
}

// MessageDeleted message-deleted 事件的內容
type MessageDeleted struct {
	MessageID uint `json:"message_id"`
}

// NewEvent 將 payload 編碼為事件
func NewEvent(eventType EventType, roomID uint, payload interface{}) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{Type: eventType, RoomID: roomID, Data: data}, nil
}
