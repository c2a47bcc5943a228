package service

import (
	"time"

	"support_chat/internal/models"
)

// OwnerSummary 房間擁有者的摘要
type OwnerSummary struct {
	ID       uint   `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// SenderSummary 訊息發送者的摘要，讀取時才組合，不寫入訊息表
type SenderSummary struct {
	ID       uint            `json:"id"`
	Name     string          `json:"name"`
	Username string          `json:"username"`
	Role     models.UserRole `json:"role"`
}

type MessageView struct {
	ID        uint          `json:"id"`
	RoomID    uint          `json:"room_id"`
	SenderID  uint          `json:"sender_id"`
	Text      *string       `json:"text"`
	Image     *string       `json:"image"`
	CreatedAt time.Time     `json:"created_at"`
	Sender    SenderSummary `json:"sender"`
	Archived  bool          `json:"archived,omitempty"`
}

type LastMessage struct {
	ID        uint      `json:"id"`
	Text      *string   `json:"text"`
	Image     *string   `json:"image"`
	CreatedAt time.Time `json:"created_at"`
	SenderID  uint      `json:"sender_id"`
}

type RoomView struct {
	ID           uint          `json:"id"`
	UserID       uint          `json:"user_id"`
	Resolved     bool          `json:"resolved"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
	Owner        *OwnerSummary `json:"owner,omitempty"`
	LastMessage  *LastMessage  `json:"last_message"`
	MessageCount int64         `json:"message_count"`
	// UnreadCount 保留欄位，目前沒有已讀追蹤，永遠為 0
	UnreadCount int           `json:"unread_count"`
	Messages    []MessageView `json:"messages,omitempty"`
}

// Page 一頁訊息（時間升冪）與下一頁的 cursor
type Page struct {
	Messages   []MessageView `json:"messages"`
	NextCursor *uint         `json:"next_cursor"`
}

func toSenderSummary(u *models.User) SenderSummary {
	return SenderSummary{
		ID:       u.ID,
		Name:     u.Name(),
		Username: u.Username,
		Role:     u.Role,
	}
}

func toMessageView(m *models.Message) MessageView {
	return MessageView{
		ID:        m.ID,
		RoomID:    m.RoomID,
		SenderID:  m.SenderID,
		Text:      m.Text,
		Image:     m.Image,
		CreatedAt: m.CreatedAt,
		Sender:    toSenderSummary(&m.Sender),
	}
}

func toMessageViews(messages []models.Message) []MessageView {
	views := make([]MessageView, len(messages))
	for i := range messages {
		views[i] = toMessageView(&messages[i])
	}
	return views
}

func toRoomView(room *models.Room) *RoomView {
	view := &RoomView{
		ID:        room.ID,
		UserID:    room.UserID,
		Resolved:  room.Resolved,
		CreatedAt: room.CreatedAt,
		UpdatedAt: room.UpdatedAt,
	}
	if room.Owner.ID != 0 {
		view.Owner = &OwnerSummary{
			ID:       room.Owner.ID,
			Name:     room.Owner.Name(),
			Username: room.Owner.Username,
			Email:    room.Owner.Email,
		}
	}
	return view
}

func toLastMessage(m *models.Message) *LastMessage {
	if m == nil {
		return nil
	}
	return &LastMessage{
		ID:        m.ID,
		Text:      m.Text,
		Image:     m.Image,
		CreatedAt: m.CreatedAt,
		SenderID:  m.SenderID,
	}
}
