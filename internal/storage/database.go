package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"support_chat/internal/models"
	"support_chat/pkg/config"
)

// Database 包裝 *gorm.DB，讓 repository 不需要知道底層驅動
type Database struct {
	*gorm.DB
}

// Now 是資料庫層統一使用的時鐘：UTC 並截到微秒，
// 與 postgres timestamptz 精度一致，寫入後讀回的時間可直接比較
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// Open 依設定選擇驅動，連線失敗時以指數退避重試
func Open(ctx context.Context, cfg config.DBConfig, log zerolog.Logger) (*Database, error) {
	switch cfg.Driver {
	case "", "postgres":
		dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable TimeZone=UTC",
			cfg.Host, cfg.User, cfg.Password, cfg.Name, cfg.Port)
		return openWithRetry(ctx, postgres.Open(dsn), log)
	case "sqlite":
		if dir := filepath.Dir(cfg.Path); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, errors.Wrap(err, "create sqlite directory")
			}
		}
		return NewSQLiteDB(cfg.Path)
	default:
		return nil, errors.Errorf("unsupported db driver %q", cfg.Driver)
	}
}

func openWithRetry(ctx context.Context, dialector gorm.Dialector, log zerolog.Logger) (*Database, error) {
	// postgres 在容器中可能還沒準備好
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 8), ctx)

	var db *gorm.DB
	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		var err error
		db, err = gorm.Open(dialector, newGormConfig())
		if err != nil {
			log.Warn().Err(err).Int("attempt", attempt).Msg("database connect failed")
			return err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return backoff.Permanent(err)
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			log.Warn().Err(err).Int("attempt", attempt).Msg("database ping failed")
			return err
		}
		return nil
	}, policy)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to database")
	}

	log.Info().Int("attempt", attempt).Msg("database connected")
	return &Database{DB: db}, nil
}

// NewSQLiteDB 開啟 sqlite 資料庫，path 可為 ":memory:"
func NewSQLiteDB(path string) (*Database, error) {
	db, err := gorm.Open(sqlite.Open(path+"?_foreign_keys=on&_busy_timeout=5000"), newGormConfig())
	if err != nil {
		return nil, errors.Wrap(err, "failed to open sqlite")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// sqlite 僅允許單一寫入者；記憶體資料庫也需要共用同一條連線
	sqlDB.SetMaxOpenConns(1)

	return &Database{DB: db}, nil
}

func newGormConfig() *gorm.Config {
	return &gorm.Config{
		NowFunc: Now,
		Logger:  logger.Default.LogMode(logger.Silent),
	}
}

func (db *Database) Close() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// AutoMigrate 自動遷移資料庫結構
func (db *Database) AutoMigrate(models ...interface{}) error {
	return db.DB.AutoMigrate(models...)
}

// Migrate 建立或更新所有資料表
func Migrate(db *Database) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Room{},
		&models.Message{},
		&models.ArchivedMessage{},
	)
}
