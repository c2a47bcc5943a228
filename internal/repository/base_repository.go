package repository

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"support_chat/internal/storage"
)

// ErrNotFound 查無資料（主表中不存在）
var ErrNotFound = errors.New("record not found")

// baseRepository 提供各 repository 共用的連線與錯誤轉換
type baseRepository struct {
	db *storage.Database
}

func (r *baseRepository) conn(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx)
}

// translate 將 gorm 的 ErrRecordNotFound 轉為 ErrNotFound，其餘錯誤附上操作名稱
func translate(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return errors.Wrap(err, op)
}
