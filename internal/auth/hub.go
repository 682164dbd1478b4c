package auth

import (
	"context"
	"sync"

	"github.com/hitoshi/magicalmoments/internal/model"
)

// Listener は認証状態遷移を受け取るコールバック。
// Publish内で同期的に呼ばれるため、ブロックしてはならない。
type Listener func(event model.AuthEvent)

// Publisher は認証状態遷移を購読者へ配信する。
type Publisher interface {
	Publish(ctx context.Context, event model.AuthEvent) error
}

// Subscription は購読の解除ハンドル。
type Subscription struct {
	once   sync.Once
	cancel func()
}

// Cancel は購読を解除する。複数回呼んでも安全。
func (s *Subscription) Cancel() {
	if s == nil {
		return
	}
	s.once.Do(s.cancel)
}

// Hub はプロセス内の認証イベント配信ハブ。
type Hub struct {
	mu        sync.RWMutex
	nextID    int
	listeners map[int]Listener
}

// NewHub はHubを生成する。
func NewHub() *Hub {
	return &Hub{listeners: make(map[int]Listener)}
}

// Subscribe はリスナーを登録する。
func (h *Hub) Subscribe(fn Listener) *Subscription {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.listeners[id] = fn
	h.mu.Unlock()

	return &Subscription{cancel: func() {
		h.mu.Lock()
		delete(h.listeners, id)
		h.mu.Unlock()
	}}
}

// Publish は登録済みの全リスナーへイベントを同期的に配信する。
func (h *Hub) Publish(_ context.Context, event model.AuthEvent) error {
	h.mu.RLock()
	listeners := make([]Listener, 0, len(h.listeners))
	for _, fn := range h.listeners {
		listeners = append(listeners, fn)
	}
	h.mu.RUnlock()

	for _, fn := range listeners {
		fn(event)
	}
	return nil
}

// Len は登録中のリスナー数を返す。
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.listeners)
}
