package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/magicalmoments/internal/model"
)

// envelope はRedisチャネル上のメッセージ形式。
// Originは送信元プロセスを識別し、自分が送ったメッセージの二重配信を防ぐ。
type envelope struct {
	Origin string          `json:"origin"`
	Event  model.AuthEvent `json:"event"`
}

// RedisBroadcaster は認証イベントをRedis Pub/Sub経由で全レプリカへ配信する。
// ローカルのHubへは同期的に配信し、他プロセスからのメッセージはHubへ中継する。
type RedisBroadcaster struct {
	client  *redis.Client
	channel string
	origin  string
	local   *Hub
	logger  *slog.Logger

	mu     sync.Mutex
	pubsub *redis.PubSub
	done   chan struct{}
}

// NewRedisBroadcaster はRedisBroadcasterを生成する。
func NewRedisBroadcaster(client *redis.Client, channel string, local *Hub, logger *slog.Logger) *RedisBroadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisBroadcaster{
		client:  client,
		channel: channel,
		origin:  uuid.New().String(),
		local:   local,
		logger:  logger,
	}
}

// Publish はローカルHubへ配信した後、Redisチャネルへ送信する。
// Redisへの送信に失敗してもローカル配信は完了している。
func (b *RedisBroadcaster) Publish(ctx context.Context, event model.AuthEvent) error {
	if err := b.local.Publish(ctx, event); err != nil {
		return err
	}

	data, err := json.Marshal(envelope{Origin: b.origin, Event: event})
	if err != nil {
		return fmt.Errorf("failed to encode auth event: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish auth event: %w", err)
	}
	return nil
}

// Start はRedisチャネルを購読し、受信したイベントをHubへ中継するgoroutineを起動する。
// 購読の確立を待ってから返る。
func (b *RedisBroadcaster) Start(ctx context.Context) error {
	pubsub := b.client.Subscribe(ctx, b.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return fmt.Errorf("failed to subscribe %s: %w", b.channel, err)
	}

	b.mu.Lock()
	b.pubsub = pubsub
	b.done = make(chan struct{})
	done := b.done
	b.mu.Unlock()

	go func() {
		defer close(done)
		for msg := range pubsub.Channel() {
			b.relay(ctx, msg.Payload)
		}
	}()

	b.logger.Info("auth event relay started", slog.String("channel", b.channel))
	return nil
}

// relay はRedisから受信したメッセージをデコードしてHubへ配信する。
func (b *RedisBroadcaster) relay(ctx context.Context, payload string) {
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		b.logger.Warn("discarding malformed auth event",
			slog.String("channel", b.channel),
			slog.String("error", err.Error()),
		)
		return
	}
	if env.Origin == b.origin {
		return
	}
	if err := b.local.Publish(ctx, env.Event); err != nil {
		b.logger.Warn("failed to relay auth event", slog.String("error", err.Error()))
	}
}

// Close は購読を解除し、中継goroutineの終了を待つ。
func (b *RedisBroadcaster) Close() error {
	b.mu.Lock()
	pubsub, done := b.pubsub, b.done
	b.pubsub = nil
	b.mu.Unlock()

	if pubsub == nil {
		return nil
	}
	err := pubsub.Close()
	<-done
	return err
}

// compile-time interface check
var (
	_ Publisher = (*Hub)(nil)
	_ Publisher = (*RedisBroadcaster)(nil)
)
