package service

import (
	"context"

	"github.com/pkg/errors"

	"support_chat/internal/models"
	"support_chat/internal/repository"
)

// Caller 是已通過身分驗證的呼叫者
type Caller struct {
	UserID uint
	Role   models.UserRole
}

func (c Caller) IsStaff() bool {
	return c.Role.IsStaff()
}

func (c Caller) authenticated() error {
	if c.UserID == 0 {
		return ErrUnauthenticated
	}
	return nil
}

// CanAccessRoom 客服可以存取所有房間，其他人只能存取自己的房間
func CanAccessRoom(caller Caller, room *models.Room) bool {
	if caller.UserID == 0 || room == nil {
		return false
	}
	return caller.IsStaff() || room.UserID == caller.UserID
}

// gate 集中處理房間層級的授權
type gate struct {
	rooms repository.RoomRepository
}

// authorizeRoom 載入房間並檢查權限。
// 非客服的呼叫者對不存在或不屬於自己的房間一律得到 ErrForbidden，不洩漏房間是否存在。
func (g *gate) authorizeRoom(ctx context.Context, caller Caller, roomID uint) (*models.Room, error) {
	if err := caller.authenticated(); err != nil {
		return nil, err
	}

	var room *models.Room
	err := retryRead(ctx, func() error {
		var err error
		room, err = g.rooms.FindByID(ctx, roomID)
		return err
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

	if !CanAccessRoom(caller, room) {
		return nil, ErrForbidden
	}
	return room, nil
}

func requireStaff(caller Caller) error {
	if err := caller.authenticated(); err != nil {
		return err
	}
	if !caller.IsStaff() {
		return ErrForbidden
	}
	return nil
}
