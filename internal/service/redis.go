package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"support_chat/internal/models"
)

const roomChannelPattern = "support:room:*"

// RoomChannel 每個房間在 pub/sub 上的頻道名稱
func RoomChannel(roomID uint) string {
	return fmt.Sprintf("support:room:%d", roomID)
}

// RedisPublisher 透過 redis pub/sub 發佈事件，讓所有實例的 Relay 轉送給本機連線
type RedisPublisher struct {
	client *redis.Client
}

func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

func (p *RedisPublisher) Publish(ctx context.Context, roomID uint, event models.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return errors.Wrap(p.client.Publish(ctx, RoomChannel(roomID), data).Err(), "redis publish")
}

// Relay 訂閱所有房間頻道，把收到的事件交給本機 Hub
type Relay struct {
	client *redis.Client
	hub    *Hub
	log    zerolog.Logger
}

func NewRelay(client *redis.Client, hub *Hub, log zerolog.Logger) *Relay {
	return &Relay{
		client: client,
		hub:    hub,
		log:    log.With().Str("component", "relay").Logger(),
	}
}

// Run 阻塞直到 ctx 結束，訂閱中斷時以指數退避重新訂閱。
// 中斷期間的事件不會重送，客戶端重連後須重新拉取。
func (r *Relay) Run(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 0
	b.MaxInterval = 30 * time.Second

	for {
		err := r.subscribe(ctx, b.Reset)
		if ctx.Err() != nil {
			return nil
		}

		wait := b.NextBackOff()
		r.log.Warn().Err(err).Dur("retry_in", wait).Msg("relay subscription lost")
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}

// subscribe 訂閱成功後呼叫 onReady，直到連線中斷或 ctx 結束
func (r *Relay) subscribe(ctx context.Context, onReady func()) error {
	sub := r.client.PSubscribe(ctx, roomChannelPattern)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return errors.Wrap(err, "subscribe room channels")
	}
	onReady()
	r.log.Info().Str("pattern", roomChannelPattern).Msg("relay subscribed")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return errors.New("subscription channel closed")
			}
			r.dispatch(msg.Payload)
		}
	}
}

func (r *Relay) dispatch(payload string) {
	var event models.Event
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		r.log.Warn().Err(err).Msg("drop malformed event")
		return
	}
	if event.RoomID == 0 {
		return
	}
	r.hub.Broadcast(event.RoomID, []byte(payload))
}
