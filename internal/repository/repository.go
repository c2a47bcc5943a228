package repository

import "support_chat/internal/storage"

type Repositories struct {
	User    UserRepository
	Room    RoomRepository
	Message MessageRepository
	Archive ArchiveRepository
}

func NewRepositories(db *storage.Database) *Repositories {
	return &Repositories{
		User:    NewUserRepository(db),
		Room:    NewRoomRepository(db),
		Message: NewMessageRepository(db),
		Archive: NewArchiveRepository(db),
	}
}
