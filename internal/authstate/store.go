package authstate

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/hitoshi/magicalmoments/internal/auth"
	"github.com/hitoshi/magicalmoments/internal/model"
)

// ErrStoreClosed はClose後にStartが呼ばれた場合のエラー。
var ErrStoreClosed = errors.New("session store closed")

// AuthSource はStoreが購読する認証サービス。
type AuthSource interface {
	GetCurrentSession(ctx context.Context, sessionID string) (*model.Session, error)
	Subscribe(fn auth.Listener) *auth.Subscription
}

// State はあるセッショントークンに対する現在の認証状態。
// Sessionがnilの場合は未認証で、Roleは常に空になる。
type State struct {
	Session  *model.Session
	Role     model.Role
	Resolved bool
}

// Authenticated はセッションが存在するかどうかを返す。
func (s State) Authenticated() bool {
	return s.Session != nil
}

// UserID はセッションのユーザーIDを返す。未認証の場合は空文字列。
func (s State) UserID() string {
	if s.Session == nil {
		return ""
	}
	return s.Session.UserID
}

// StoreConfig はStoreの設定。ゼロ値の項目はデフォルト値を使う。
type StoreConfig struct {
	WaitTimeout   time.Duration // Currentが進行中のロール検索を待つ上限
	LookupTimeout time.Duration // 1回のプロフィール検索・セッション取得の上限
	RoleTTL       time.Duration // 解決済みロールを再検索するまでの間隔
	RetryInterval time.Duration // 未解決ロールを再検索するまでの間隔
	PruneInterval time.Duration
	TombstoneTTL  time.Duration // サインアウト済みトークンを記憶する期間
}

func (c StoreConfig) withDefaults() StoreConfig {
	if c.WaitTimeout <= 0 {
		c.WaitTimeout = 2 * time.Second
	}
	if c.LookupTimeout <= 0 {
		c.LookupTimeout = 5 * time.Second
	}
	if c.RoleTTL <= 0 {
		c.RoleTTL = 5 * time.Minute
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = 15 * time.Second
	}
	if c.PruneInterval <= 0 {
		c.PruneInterval = time.Minute
	}
	if c.TombstoneTTL <= 0 {
		c.TombstoneTTL = 10 * time.Minute
	}
	return c
}

// entry はトークンごとのキャッシュ。genは最後に開始したロール検索の世代。
type entry struct {
	session   *model.Session
	role      model.Role
	resolved  bool
	gen       uint64
	settled   chan struct{}
	settledAt time.Time
}

func (e *entry) state() State {
	return State{Session: e.session, Role: e.role, Resolved: e.resolved}
}

// Store はプロセス全体で共有する認証状態ストア。
// 認証サービスへの購読を1つだけ保持し、セッショントークンごとにロールをキャッシュする。
type Store struct {
	source   AuthSource
	resolver *Resolver
	logger   *slog.Logger
	recorder Recorder
	config   StoreConfig
	now      func() time.Time

	baseCtx context.Context
	cancel  context.CancelFunc
	group   singleflight.Group
	wg      sync.WaitGroup
	ready   atomic.Bool

	mu         sync.Mutex
	entries    map[string]*entry
	tombstones map[string]time.Time
	gen        uint64
	sub        *auth.Subscription
	closed     bool
}

// NewStore はStoreを生成する。購読はStartで開始する。
func NewStore(source AuthSource, resolver *Resolver, config StoreConfig, logger *slog.Logger, recorder Recorder) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Store{
		source:     source,
		resolver:   resolver,
		logger:     logger,
		recorder:   recorder,
		config:     config.withDefaults(),
		now:        time.Now,
		baseCtx:    ctx,
		cancel:     cancel,
		entries:    make(map[string]*entry),
		tombstones: make(map[string]time.Time),
	}
}

// Start は認証状態の購読を登録し、期限切れエントリの定期削除を開始する。
// 購読の登録が完了した時点でReadyがtrueになる。
func (s *Store) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrStoreClosed
	}
	if s.sub != nil {
		s.mu.Unlock()
		return nil
	}
	s.sub = s.source.Subscribe(s.handle)
	s.mu.Unlock()

	s.ready.Store(true)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.config.PruneInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.baseCtx.Done():
				return
			case <-ticker.C:
				if n := s.Prune(s.now()); n > 0 {
					s.logger.Debug("pruned session entries", slog.Int("count", n))
				}
			}
		}
	}()

	s.logger.Info("session store started")
	return nil
}

// Ready は購読が登録済みかどうかを返す。
func (s *Store) Ready() bool {
	return s.ready.Load()
}

// Close は購読を解除し、進行中の検索結果を破棄する。
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	sub := s.sub
	s.entries = make(map[string]*entry)
	s.mu.Unlock()

	s.ready.Store(false)
	sub.Cancel()
	s.cancel()
	s.wg.Wait()
}

// Current はトークンに対する現在の認証状態を返す。
// 未知のトークンは認証サービスから1回だけ取得する。同じトークンの同時取得は1回にまとめる。
// ロールが未解決で検索が進行中の場合はWaitTimeoutまたはctxの終了まで待ち、
// それでも決まらなければロール未解決の状態を返す。
// 解決済みのロールは再検索中でも待たずに返す。
func (s *Store) Current(ctx context.Context, token string) State {
	if token == "" {
		return State{}
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.WaitTimeout)
	defer cancel()

	s.mu.Lock()
	e, ok := s.entries[token]
	s.mu.Unlock()

	if !ok {
		if !s.fetch(ctx, token) {
			return State{}
		}
	}

	for {
		s.mu.Lock()
		e, ok = s.entries[token]
		if !ok {
			s.mu.Unlock()
			return State{}
		}
		now := s.now()
		if e.session.Expired(now) {
			delete(s.entries, token)
			s.mu.Unlock()
			return State{}
		}
		if s.roleStaleLocked(e, now) {
			s.startLookupLocked(token, e)
		}
		st := e.state()
		settled := e.settled
		s.mu.Unlock()

		if st.Resolved {
			return st
		}

		select {
		case <-settled:
			s.mu.Lock()
			cur, ok := s.entries[token]
			if ok && cur == e && cur.settled == settled {
				st = cur.state()
				s.mu.Unlock()
				return st
			}
			s.mu.Unlock()
		case <-ctx.Done():
			return st
		}
	}
}

// roleStaleLocked はロールの再検索が必要かどうかを返す。
// 解決済みはRoleTTL、未解決はRetryIntervalを過ぎたら再検索する。
func (s *Store) roleStaleLocked(e *entry, now time.Time) bool {
	select {
	case <-e.settled:
	default:
		return false
	}
	ttl := s.config.RetryInterval
	if e.resolved {
		ttl = s.config.RoleTTL
	}
	return now.Sub(e.settledAt) >= ttl
}

// fetch は未知のトークンのセッションを認証サービスから取得し、エントリを作成する。
// セッションが存在する場合はtrueを返す。
func (s *Store) fetch(ctx context.Context, token string) bool {
	ch := s.group.DoChan(token, func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(s.baseCtx, s.config.LookupTimeout)
		defer cancel()
		return s.source.GetCurrentSession(fetchCtx, token)
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return false
	}
	if res.Err != nil {
		s.logger.Warn("failed to fetch session",
			slog.String("error", res.Err.Error()),
		)
		return false
	}

	session, _ := res.Val.(*model.Session)
	if session == nil {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	if _, signedOut := s.tombstones[token]; signedOut {
		return false
	}
	if session.Expired(s.now()) {
		return false
	}
	if _, ok := s.entries[token]; ok {
		// 取得中に到着した状態遷移を優先する
		return true
	}

	e := &entry{session: session}
	s.entries[token] = e
	s.startLookupLocked(token, e)
	return true
}

// handle は認証サービスからの状態遷移を反映する。
// Publishから同期的に呼ばれるため、ロール検索は別goroutineで行う。
func (s *Store) handle(event model.AuthEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	switch event.Type {
	case model.AuthEventSignedOut:
		delete(s.entries, event.SessionID)
		s.tombstones[event.SessionID] = s.now()

	case model.AuthEventSignedIn, model.AuthEventTokenRefreshed:
		if event.Session == nil {
			return
		}
		token := event.Session.ID
		if _, signedOut := s.tombstones[token]; signedOut {
			return
		}
		if event.Session.Expired(s.now()) {
			delete(s.entries, token)
			return
		}

		e, ok := s.entries[token]
		if !ok {
			e = &entry{}
			s.entries[token] = e
		}
		sameUser := e.session != nil && e.session.UserID == event.Session.UserID
		e.session = event.Session
		if !sameUser {
			e.role = ""
			e.resolved = false
		}
		s.startLookupLocked(token, e)

	default:
		s.logger.Warn("unknown auth event", slog.String("type", string(event.Type)))
	}
}

// startLookupLocked は新しい世代のロール検索を開始する。s.muを保持して呼ぶこと。
func (s *Store) startLookupLocked(token string, e *entry) {
	s.gen++
	gen := s.gen
	settled := make(chan struct{})
	e.gen = gen
	e.settled = settled
	userID := e.session.UserID

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(settled)

		ctx, cancel := context.WithTimeout(s.baseCtx, s.config.LookupTimeout)
		defer cancel()
		role, found, _ := s.resolver.lookup(ctx, userID)

		s.mu.Lock()
		defer s.mu.Unlock()

		cur, ok := s.entries[token]
		if s.closed || !ok || cur.gen != gen {
			s.recorder.RecordStaleLookup()
			s.logger.Debug("discarded stale role lookup", slog.String("user_id", userID))
			return
		}

		// 検索エラーは未登録と同じく未解決として扱う
		cur.settledAt = s.now()
		if found {
			cur.role, cur.resolved = role, true
		} else {
			cur.role, cur.resolved = "", false
		}
	}()
}

// Prune は期限切れのエントリと古いトゥームストーンを削除し、削除件数を返す。
func (s *Store) Prune(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for token, e := range s.entries {
		if e.session.Expired(now) {
			delete(s.entries, token)
			removed++
		}
	}
	for token, at := range s.tombstones {
		if now.Sub(at) >= s.config.TombstoneTTL {
			delete(s.tombstones, token)
			removed++
		}
	}
	return removed
}

// Len はキャッシュ中のセッション数を返す。
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
