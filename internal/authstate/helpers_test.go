package authstate

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hitoshi/magicalmoments/internal/auth"
	"github.com/hitoshi/magicalmoments/internal/model"
)

// --- モック定義 ---

type fakeProfiles struct {
	mu    sync.Mutex
	roles map[string]model.Role
	errs  map[string]error
	gates map[string]chan struct{}
	calls int
}

func newFakeProfiles() *fakeProfiles {
	return &fakeProfiles{
		roles: make(map[string]model.Role),
		errs:  make(map[string]error),
		gates: make(map[string]chan struct{}),
	}
}

func (f *fakeProfiles) FindByUserID(ctx context.Context, userID string) (*model.Profile, error) {
	f.mu.Lock()
	f.calls++
	gate := f.gates[userID]
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs[userID]; err != nil {
		return nil, err
	}
	role, ok := f.roles[userID]
	if !ok {
		return nil, nil
	}
	return &model.Profile{UserID: userID, Role: role}, nil
}

func (f *fakeProfiles) set(userID string, role model.Role) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.roles[userID] = role
}

func (f *fakeProfiles) fail(userID string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[userID] = err
}

// block は指定ユーザーの検索をreleaseが呼ばれるまで止める。
func (f *fakeProfiles) block(userID string) (release func()) {
	gate := make(chan struct{})
	f.mu.Lock()
	f.gates[userID] = gate
	f.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.gates, userID)
			f.mu.Unlock()
			close(gate)
		})
	}
}

func (f *fakeProfiles) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeAuth struct {
	hub   *auth.Hub
	getFn func(ctx context.Context, sessionID string) (*model.Session, error)
	calls atomic.Int32
}

func newFakeAuth() *fakeAuth {
	return &fakeAuth{hub: auth.NewHub()}
}

func (f *fakeAuth) GetCurrentSession(ctx context.Context, sessionID string) (*model.Session, error) {
	f.calls.Add(1)
	if f.getFn != nil {
		return f.getFn(ctx, sessionID)
	}
	return nil, nil
}

func (f *fakeAuth) Subscribe(fn auth.Listener) *auth.Subscription {
	return f.hub.Subscribe(fn)
}

func (f *fakeAuth) publish(event model.AuthEvent) {
	_ = f.hub.Publish(context.Background(), event)
}

type countingRecorder struct {
	mu          sync.Mutex
	resolutions map[string]int
	stale       atomic.Int32
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{resolutions: make(map[string]int)}
}

func (r *countingRecorder) RecordRoleResolution(source string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resolutions[source]++
}

func (r *countingRecorder) RecordStaleLookup() {
	r.stale.Add(1)
}

func (r *countingRecorder) count(source string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resolutions[source]
}

// fakeClock はテスト用の時計。
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// --- compile-time interface checks ---
var _ ProfileFinder = (*fakeProfiles)(nil)
var _ AuthSource = (*fakeAuth)(nil)
var _ AuthSource = (*auth.Service)(nil)
var _ Recorder = (*countingRecorder)(nil)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func newSession(id, userID string, expiresAt time.Time) *model.Session {
	return &model.Session{
		ID:        id,
		UserID:    userID,
		Email:     userID + "@example.com",
		ExpiresAt: expiresAt,
	}
}

// waitFor は条件が満たされるまで最大2秒待つ。
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
