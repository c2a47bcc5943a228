// Package storagetest 提供測試用的記憶體資料庫與資料建立工具
package storagetest

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"support_chat/internal/models"
	"support_chat/internal/storage"
)

var userSeq atomic.Int64

// NewDB 建立已完成遷移的 sqlite 記憶體資料庫，測試結束時關閉
func NewDB(t *testing.T) *storage.Database {
	t.Helper()

	db, err := storage.NewSQLiteDB(":memory:")
	require.NoError(t, err)
	require.NoError(t, storage.Migrate(db))

	t.Cleanup(func() { _ = db.Close() })
	return db
}

// CreateUser 建立指定角色的用戶
func CreateUser(t *testing.T, db *storage.Database, role models.UserRole) *models.User {
	t.Helper()

	n := userSeq.Add(1)
	user := &models.User{
		Username:    fmt.Sprintf("%s-%d", role, n),
		DisplayName: fmt.Sprintf("%s %d", role, n),
		Email:       fmt.Sprintf("%s-%d@example.com", role, n),
		Password:    "x",
		Role:        role,
	}
	require.NoError(t, db.WithContext(context.Background()).Create(user).Error)
	return user
}

// CreateRoom 直接建立房間
func CreateRoom(t *testing.T, db *storage.Database, owner *models.User) *models.Room {
	t.Helper()

	room := &models.Room{UserID: owner.ID}
	require.NoError(t, db.Omit("Owner").Create(room).Error)
	return room
}

// InsertMessages 以固定間隔的時間戳寫入 n 則文字訊息，回傳依寫入順序排列的訊息
func InsertMessages(t *testing.T, db *storage.Database, room *models.Room, sender *models.User, n int, start time.Time, step time.Duration) []models.Message {
	t.Helper()

	messages := make([]models.Message, 0, n)
	for i := 0; i < n; i++ {
		text := fmt.Sprintf("message %d", i)
		m := models.Message{
			RoomID:    room.ID,
			SenderID:  sender.ID,
			Text:      &text,
			CreatedAt: start.Add(time.Duration(i) * step).UTC(),
		}
		require.NoError(t, db.Omit("Sender").Create(&m).Error)
		messages = append(messages, m)
	}
	return messages
}
