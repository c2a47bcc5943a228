package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"support_chat/internal/metrics"
	"support_chat/internal/models"
	"support_chat/internal/repository"
)

const (
	DefaultPageSize = 100
	MaxPageSize     = 200

	defaultPublishTimeout = 3 * time.Second
)

// PageQuery 訊息分頁參數；Cursor 為上一頁最舊一則的 id
type PageQuery struct {
	Limit  int
	Cursor *uint
}

// ParsePageQuery 解析 query string。limit 超過上限時截為上限，非數字或小於 1 視為錯誤。
func ParsePageQuery(limit, cursor string) (PageQuery, error) {
	q := PageQuery{Limit: DefaultPageSize}

	if limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 1 {
			return q, invalidInput("limit must be a positive integer")
		}
		if n > MaxPageSize {
			n = MaxPageSize
		}
		q.Limit = n
	}

	if cursor != "" {
		id, err := strconv.ParseUint(cursor, 10, 64)
		if err != nil || id == 0 {
			return q, invalidInput("invalid cursor")
		}
		c := uint(id)
		q.Cursor = &c
	}
	return q, nil
}

// MessageInput 發送訊息的內容，文字與圖片至少一項
type MessageInput struct {
	Text  string `json:"text"`
	Image string `json:"image"`
}

// normalize 去除文字前後空白；只有空白的文字視為沒有文字
func (in MessageInput) normalize() (text, image *string, err error) {
	if t := strings.TrimSpace(in.Text); t != "" {
		text = &t
	}
	if i := strings.TrimSpace(in.Image); i != "" {
		image = &i
	}
	if text == nil && image == nil {
		return nil, nil, invalidInput("text or image required")
	}
	return text, image, nil
}

type MessageService struct {
	messageRepo    repository.MessageRepository
	archiveRepo    repository.ArchiveRepository
	rooms          *RoomService
	gate           *gate
	publisher      Publisher
	publishTimeout time.Duration
	log            zerolog.Logger
}

func NewMessageService(
	messageRepo repository.MessageRepository,
	archiveRepo repository.ArchiveRepository,
	rooms *RoomService,
	publisher Publisher,
	publishTimeout time.Duration,
	log zerolog.Logger,
) *MessageService {
	if publishTimeout <= 0 {
		publishTimeout = defaultPublishTimeout
	}
	return &MessageService{
		messageRepo:    messageRepo,
		archiveRepo:    archiveRepo,
		rooms:          rooms,
		gate:           rooms.gate,
		publisher:      publisher,
		publishTimeout: publishTimeout,
		log:            log.With().Str("component", "messages").Logger(),
	}
}

// ListMessages 由新到舊取 limit+1 筆判斷是否還有下一頁，再反轉成時間升冪回傳
func (s *MessageService) ListMessages(ctx context.Context, caller Caller, roomID uint, q PageQuery) (*Page, error) {
	if _, err := s.gate.authorizeRoom(ctx, caller, roomID); err != nil {
		return nil, err
	}

	if q.Limit < 1 {
		q.Limit = DefaultPageSize
	}
	if q.Limit > MaxPageSize {
		q.Limit = MaxPageSize
	}

	var cursor *repository.Cursor
	if q.Cursor != nil {
		c, err := s.resolveCursor(ctx, roomID, *q.Cursor)
		if err != nil {
			return nil, err
		}
		cursor = c
	}

	var rows []models.Message
	err := retryRead(ctx, func() error {
		var err error
		rows, err = s.messageRepo.ListBefore(ctx, roomID, cursor, q.Limit+1)
		return err
	})
	if err != nil {
		return nil, err
	}

	page := &Page{}
	if len(rows) > q.Limit {
		rows = rows[:q.Limit]
		next := rows[len(rows)-1].ID
		page.NextCursor = &next
	}

	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	page.Messages = toMessageViews(rows)
	return page, nil
}

// resolveCursor 先查主表，找不到再查封存表。屬於其他房間時視為無效 cursor；
// 兩邊都找不到時回傳 ErrCursorNotFound
func (s *MessageService) resolveCursor(ctx context.Context, roomID, id uint) (*repository.Cursor, error) {
	var (
		cursor *repository.Cursor
		found  bool
	)
	err := retryRead(ctx, func() error {
		m, err := s.messageRepo.FindByID(ctx, id)
		if err == nil {
			found = true
			if m.RoomID == roomID {
				cursor = &repository.Cursor{CreatedAt: m.CreatedAt, ID: m.ID}
			}
			return nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return err
		}

		a, err := s.archiveRepo.FindByID(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		if a.RoomID == roomID {
			cursor = &repository.Cursor{CreatedAt: a.CreatedAt, ID: a.ID}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrCursorNotFound
	}
	if cursor == nil {
		return nil, invalidInput("invalid cursor")
	}
	return cursor, nil
}

// CreateMessage 寫入訊息後推送 message-created；推送失敗不影響結果
func (s *MessageService) CreateMessage(ctx context.Context, caller Caller, roomID uint, in MessageInput) (*MessageView, error) {
	if _, err := s.gate.authorizeRoom(ctx, caller, roomID); err != nil {
		return nil, err
	}

	text, image, err := in.normalize()
	if err != nil {
		return nil, err
	}

	message := &models.Message{
		RoomID:   roomID,
		SenderID: caller.UserID,
		Text:     text,
		Image:    image,
	}
	if err := s.messageRepo.Create(ctx, message); err != nil {
		return nil, err
	}

	// 重新載入以取得發送者資訊
	stored, err := s.messageRepo.FindByID(ctx, message.ID)
	if err != nil {
		return nil, err
	}
	view := toMessageView(stored)

	metrics.MessagesCreated.WithLabelValues(string(caller.Role)).Inc()
	s.publish(roomID, models.EventMessageCreated, view)
	return &view, nil
}

// SendToOwnRoom 用戶第一次發訊息時才建立房間
func (s *MessageService) SendToOwnRoom(ctx context.Context, caller Caller, in MessageInput) (*MessageView, error) {
	if err := caller.authenticated(); err != nil {
		return nil, err
	}
	if _, _, err := in.normalize(); err != nil {
		return nil, err
	}

	room, err := s.rooms.findOrCreate(ctx, caller)
	if err != nil {
		return nil, err
	}
	return s.CreateMessage(ctx, caller, room.ID, in)
}

// GetMessage 先讀主表，找不到時讀封存表
func (s *MessageService) GetMessage(ctx context.Context, caller Caller, messageID uint) (*MessageView, error) {
	if err := caller.authenticated(); err != nil {
		return nil, err
	}

	var view *MessageView
	err := retryRead(ctx, func() error {
		m, err := s.messageRepo.FindByID(ctx, messageID)
		if err == nil {
			v := toMessageView(m)
			view = &v
			return nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return err
		}

		a, err := s.archiveRepo.FindByID(ctx, messageID)
		if err != nil {
			return err
		}
		view = &MessageView{
			ID:        a.ID,
			RoomID:    a.RoomID,
			SenderID:  a.SenderID,
			Text:      a.Text,
			Image:     a.Image,
			CreatedAt: a.CreatedAt,
			Sender:    SenderSummary{ID: a.SenderID},
			Archived:  true,
		}
		return nil
	})
	if errors.Is(err, repository.ErrNotFound) {
		if caller.IsStaff() {
			return nil, ErrNotFound
		}
		return nil, ErrForbidden
	}
	if err != nil {
		return nil, err
	}

	if _, err := s.gate.authorizeRoom(ctx, caller, view.RoomID); err != nil {
		return nil, err
	}
	return view, nil
}

// DeleteMessage 僅限客服，只刪除主表中的訊息，不查封存表
func (s *MessageService) DeleteMessage(ctx context.Context, caller Caller, messageID uint) error {
	if err := requireStaff(caller); err != nil {
		return err
	}

	m, err := s.messageRepo.FindByID(ctx, messageID)
	if err != nil {
		return err
	}
	if err := s.messageRepo.Delete(ctx, messageID); err != nil {
		return err
	}

	metrics.MessagesDeleted.Inc()
	s.log.Info().Uint("message_id", messageID).Uint("room_id", m.RoomID).Uint("by", caller.UserID).Msg("message deleted")
	s.publish(m.RoomID, models.EventMessageDeleted, models.MessageDeleted{MessageID: messageID})
	return nil
}

// SetTyping 推送輸入狀態，不做任何儲存
func (s *MessageService) SetTyping(ctx context.Context, caller Caller, roomID uint, isTyping bool) error {
	if _, err := s.gate.authorizeRoom(ctx, caller, roomID); err != nil {
		return err
	}
	s.publish(roomID, models.EventTypingState, models.TypingState{SenderID: caller.UserID, IsTyping: isTyping})
	return nil
}

// publish 在限定時間內推送事件，與請求的取消無關；錯誤只記錄
func (s *MessageService) publish(roomID uint, eventType models.EventType, payload interface{}) {
	event, err := models.NewEvent(eventType, roomID, payload)
	if err != nil {
		s.log.Error().Err(err).Str("event", string(eventType)).Msg("encode event")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.publishTimeout)
	defer cancel()

	if err := s.publisher.Publish(ctx, roomID, event); err != nil {
		metrics.FanoutFailures.WithLabelValues(string(eventType)).Inc()
		s.log.Warn().Err(err).Uint("room_id", roomID).Str("event", string(eventType)).Msg("realtime publish failed")
	}
}
