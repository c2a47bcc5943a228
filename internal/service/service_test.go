package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"support_chat/internal/models"
	"support_chat/internal/repository"
	"support_chat/internal/storage"
	"support_chat/internal/storage/storagetest"
)

// recordingPublisher 記錄所有推送的事件，可設定回傳錯誤或阻塞
type recordingPublisher struct {
	mu     sync.Mutex
	events []models.Event
	err    error
	block  bool
}

func (p *recordingPublisher) Publish(ctx context.Context, roomID uint, event models.Event) error {
	if p.block {
		<-ctx.Done()
		return ctx.Err()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) Events() []models.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.Event(nil), p.events...)
}

type fixture struct {
	db        *storage.Database
	services  *Services
	publisher *recordingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := storagetest.NewDB(t)
	publisher := &recordingPublisher{}
	services := NewServices(repository.NewRepositories(db), NewHub(zerolog.Nop()), publisher, 50*time.Millisecond, zerolog.Nop())
	return &fixture{db: db, services: services, publisher: publisher}
}

func (f *fixture) user(t *testing.T) (*models.User, Caller) {
	u := storagetest.CreateUser(t, f.db, models.RoleUser)
	return u, Caller{UserID: u.ID, Role: u.Role}
}

func (f *fixture) staff(t *testing.T) (*models.User, Caller) {
	u := storagetest.CreateUser(t, f.db, models.RoleAdmin)
	return u, Caller{UserID: u.ID, Role: u.Role}
}

func (f *fixture) room(t *testing.T, caller Caller) *RoomView {
	room, err := f.services.Room.FindOrCreateForUser(context.Background(), caller)
	require.NoError(t, err)
	return room
}

func strPtr(s string) *string { return &s }
