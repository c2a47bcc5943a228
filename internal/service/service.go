package service

import (
	"time"

	"github.com/rs/zerolog"

	"support_chat/internal/repository"
)

type Services struct {
	User    *UserService
	Room    *RoomService
	Message *MessageService
	Hub     *Hub
}

// NewServices 組裝所有服務；publisher 為 nil 時不做即時推送
func NewServices(repos *repository.Repositories, hub *Hub, publisher Publisher, publishTimeout time.Duration, log zerolog.Logger) *Services {
	if publisher == nil {
		publisher = NewNoopPublisher(log)
	}

	roomService := NewRoomService(repos.Room, repos.Message, log)
	messageService := NewMessageService(repos.Message, repos.Archive, roomService, publisher, publishTimeout, log)

	return &Services{
		User:    NewUserService(repos.User),
		Room:    roomService,
		Message: messageService,
		Hub:     hub,
	}
}
