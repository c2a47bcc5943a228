package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"support_chat/internal/models"
)

func TestCanAccessRoom(t *testing.T) {
	room := &models.Room{ID: 1, UserID: 10}

	tests := []struct {
		name   string
		caller Caller
		want   bool
	}{
		{"owner", Caller{UserID: 10, Role: models.RoleUser}, true},
		{"other user", Caller{UserID: 11, Role: models.RoleUser}, false},
		{"staff", Caller{UserID: 99, Role: models.RoleAdmin}, true},
		{"anonymous", Caller{}, false},
		{"anonymous with staff role", Caller{Role: models.RoleAdmin}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanAccessRoom(tt.caller, room))
		})
	}
	assert.False(t, CanAccessRoom(Caller{UserID: 10, Role: models.RoleAdmin}, nil))
}

func TestFindOrCreateForUserConcurrent(t *testing.T) {
	f := newFixture(t)
	_, caller := f.user(t)

	var wg sync.WaitGroup
	ids := make(chan uint, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			room, err := f.services.Room.FindOrCreateForUser(context.Background(), caller)
			if assert.NoError(t, err) {
				ids <- room.ID
			}
		}()
	}
	wg.Wait()
	close(ids)

	var first uint
	for id := range ids {
		if first == 0 {
			first = id
		}
		assert.Equal(t, first, id)
	}
	assert.NotZero(t, first)
}

func TestFindOrCreateRequiresAuthentication(t *testing.T) {
	f := newFixture(t)

	_, err := f.services.Room.FindOrCreateForUser(context.Background(), Caller{})
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = f.services.Room.ListRooms(context.Background(), Caller{})
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestListRoomsByRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, alice := f.user(t)
	_, bob := f.user(t)
	_, carol := f.user(t)
	_, staff := f.staff(t)

	aliceRoom := f.room(t, alice)
	f.room(t, bob)

	_, err := f.services.Message.CreateMessage(ctx, alice, aliceRoom.ID, MessageInput{Text: "first"})
	require.NoError(t, err)
	_, err = f.services.Message.CreateMessage(ctx, staff, aliceRoom.ID, MessageInput{Image: "https://img/x.png"})
	require.NoError(t, err)

	all, err := f.services.Room.ListRooms(ctx, staff)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, aliceRoom.ID, all[0].ID, "most recently updated first")
	assert.Equal(t, int64(2), all[0].MessageCount)
	require.NotNil(t, all[0].LastMessage)
	assert.Nil(t, all[0].LastMessage.Text)
	assert.Equal(t, "https://img/x.png", *all[0].LastMessage.Image)
	assert.Equal(t, staff.UserID, all[0].LastMessage.SenderID)
	assert.Zero(t, all[0].UnreadCount)
	assert.Nil(t, all[1].LastMessage)

	own, err := f.services.Room.ListRooms(ctx, alice)
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, aliceRoom.ID, own[0].ID)

	none, err := f.services.Room.ListRooms(ctx, carol)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestGetRoomAccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	aliceUser, alice := f.user(t)
	_, bob := f.user(t)
	_, staff := f.staff(t)
	room := f.room(t, alice)

	_, err := f.services.Message.CreateMessage(ctx, alice, room.ID, MessageInput{Text: "a"})
	require.NoError(t, err)
	_, err = f.services.Message.CreateMessage(ctx, staff, room.ID, MessageInput{Text: "b"})
	require.NoError(t, err)

	_, err = f.services.Room.GetRoom(ctx, bob, room.ID, false)
	assert.ErrorIs(t, err, ErrForbidden)

	detail, err := f.services.Room.GetRoom(ctx, staff, room.ID, true)
	require.NoError(t, err)
	require.NotNil(t, detail.Owner)
	assert.Equal(t, aliceUser.Username, detail.Owner.Username)
	assert.Equal(t, aliceUser.Email, detail.Owner.Email)
	require.Len(t, detail.Messages, 2)
	assert.Equal(t, "a", *detail.Messages[0].Text)
	assert.Equal(t, models.RoleAdmin, detail.Messages[1].Sender.Role)

	own, err := f.services.Room.GetRoom(ctx, alice, room.ID, false)
	require.NoError(t, err)
	assert.Empty(t, own.Messages)

	_, err = f.services.Room.GetRoom(ctx, staff, 9999, false)
	assert.ErrorIs(t, err, ErrNotFound)

	// 不洩漏房間是否存在
	_, err = f.services.Room.GetRoom(ctx, bob, 9999, false)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestSetResolvedToggle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, alice := f.user(t)
	_, staff := f.staff(t)
	room := f.room(t, alice)

	msg, err := f.services.Message.CreateMessage(ctx, alice, room.ID, MessageInput{Text: "help"})
	require.NoError(t, err)

	updated, err := f.services.Room.SetResolved(ctx, staff, room.ID, true)
	require.NoError(t, err)
	assert.True(t, updated.Resolved)

	updated, err = f.services.Room.SetResolved(ctx, staff, room.ID, true)
	require.NoError(t, err)
	assert.True(t, updated.Resolved)

	updated, err = f.services.Room.SetResolved(ctx, staff, room.ID, false)
	require.NoError(t, err)
	assert.False(t, updated.Resolved)

	page, err := f.services.Message.ListMessages(ctx, staff, room.ID, PageQuery{})
	require.NoError(t, err)
	require.Len(t, page.Messages, 1)
	assert.Equal(t, msg.ID, page.Messages[0].ID)
	assert.Equal(t, "help", *page.Messages[0].Text)
}

func TestSetResolvedStaffOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, alice := f.user(t)
	_, staff := f.staff(t)
	room := f.room(t, alice)

	_, err := f.services.Room.SetResolved(ctx, alice, room.ID, true)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.services.Room.SetResolved(ctx, Caller{}, room.ID, true)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = f.services.Room.SetResolved(ctx, staff, 4242, true)
	assert.ErrorIs(t, err, ErrNotFound)
}
