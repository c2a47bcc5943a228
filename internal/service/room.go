package service

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"support_chat/internal/models"
	"support_chat/internal/repository"
)

type RoomService struct {
	roomRepo    repository.RoomRepository
	messageRepo repository.MessageRepository
	gate        *gate
	log         zerolog.Logger
}

func NewRoomService(roomRepo repository.RoomRepository, messageRepo repository.MessageRepository, log zerolog.Logger) *RoomService {
	return &RoomService{
		roomRepo:    roomRepo,
		messageRepo: messageRepo,
		gate:        &gate{rooms: roomRepo},
		log:         log.With().Str("component", "rooms").Logger(),
	}
}

// FindOrCreateForUser 回傳呼叫者自己的房間，不存在時建立。
// 同一用戶同時首次建立時，唯一索引會讓其中一方的 insert 落空，之後重新查詢即可取得同一間。
func (s *RoomService) FindOrCreateForUser(ctx context.Context, caller Caller) (*RoomView, error) {
	room, err := s.findOrCreate(ctx, caller)
	if err != nil {
		return nil, err
	}
	return toRoomView(room), nil
}

func (s *RoomService) findOrCreate(ctx context.Context, caller Caller) (*models.Room, error) {
	if err := caller.authenticated(); err != nil {
		return nil, err
	}

	room, err := s.roomRepo.FindByUserID(ctx, caller.UserID)
	if err == nil {
		return room, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	if err := s.roomRepo.CreateIfAbsent(ctx, caller.UserID); err != nil {
		return nil, err
	}
	room, err = s.roomRepo.FindByUserID(ctx, caller.UserID)
	if err != nil {
		return nil, err
	}

	s.log.Info().Uint("room_id", room.ID).Uint("user_id", caller.UserID).Msg("room ready")
	return room, nil
}

// ListRooms 客服看到所有房間（最近更新在前），一般用戶只看到自己的房間
func (s *RoomService) ListRooms(ctx context.Context, caller Caller) ([]RoomView, error) {
	if err := caller.authenticated(); err != nil {
		return nil, err
	}

	var rooms []models.Room
	err := retryRead(ctx, func() error {
		if caller.IsStaff() {
			var err error
			rooms, err = s.roomRepo.FindAll(ctx)
			return err
		}
		room, err := s.roomRepo.FindByUserID(ctx, caller.UserID)
		if errors.Is(err, repository.ErrNotFound) {
			rooms = nil
			return nil
		}
		if err != nil {
			return err
		}
		rooms = []models.Room{*room}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ids := make([]uint, len(rooms))
	for i := range rooms {
		ids[i] = rooms[i].ID
	}

	var summaries map[uint]repository.RoomSummary
	err = retryRead(ctx, func() error {
		var err error
		summaries, err = s.roomRepo.Summaries(ctx, ids)
		return err
	})
	if err != nil {
		return nil, err
	}

	views := make([]RoomView, 0, len(rooms))
	for i := range rooms {
		view := toRoomView(&rooms[i])
		summary := summaries[rooms[i].ID]
		view.LastMessage = toLastMessage(summary.LastMessage)
		view.MessageCount = summary.MessageCount
		views = append(views, *view)
	}
	return views, nil
}

// GetRoom 回傳房間與擁有者資訊；withMessages 時附上完整歷史（時間升冪）
func (s *RoomService) GetRoom(ctx context.Context, caller Caller, roomID uint, withMessages bool) (*RoomView, error) {
	room, err := s.gate.authorizeRoom(ctx, caller, roomID)
	if err != nil {
		return nil, err
	}

	view := toRoomView(room)
	if !withMessages {
		return view, nil
	}

	var messages []models.Message
	err = retryRead(ctx, func() error {
		var err error
		messages, err = s.messageRepo.FindByRoomID(ctx, roomID)
		return err
	})
	if err != nil {
		return nil, err
	}
	view.Messages = toMessageViews(messages)
	view.MessageCount = int64(len(messages))
	if n := len(messages); n > 0 {
		view.LastMessage = toLastMessage(&messages[n-1])
	}
	return view, nil
}

// SetResolved 僅限客服；重複設定相同值不會出錯
func (s *RoomService) SetResolved(ctx context.Context, caller Caller, roomID uint, resolved bool) (*RoomView, error) {
	if err := requireStaff(caller); err != nil {
		return nil, err
	}

	room, err := s.roomRepo.SetResolved(ctx, roomID, resolved)
	if err != nil {
		return nil, err
	}

	s.log.Info().Uint("room_id", roomID).Bool("resolved", resolved).Uint("by", caller.UserID).Msg("room resolution changed")
	return toRoomView(room), nil
}
