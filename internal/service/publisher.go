package service

import (
	"context"

	"github.com/rs/zerolog"

	"support_chat/internal/models"
)

// Publisher 將事件推送給房間頻道的所有訂閱者。
// 推送是盡力而為：失敗只記錄，不影響已寫入的資料。
type Publisher interface {
	Publish(ctx context.Context, roomID uint, event models.Event) error
}

// NoopPublisher 未設定即時推送時使用
type NoopPublisher struct {
	log zerolog.Logger
}

func NewNoopPublisher(log zerolog.Logger) *NoopPublisher {
	return &NoopPublisher{log: log}
}

func (p *NoopPublisher) Publish(_ context.Context, roomID uint, event models.Event) error {
	p.log.Debug().Uint("room_id", roomID).Str("event", string(event.Type)).Msg("realtime disabled, event dropped")
	return nil
}
