package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/magicalmoments/internal/auth"
	"github.com/hitoshi/magicalmoments/internal/authstate"
	"github.com/hitoshi/magicalmoments/internal/event"
	"github.com/hitoshi/magicalmoments/internal/middleware"
	"github.com/hitoshi/magicalmoments/internal/model"
)

// --- モック定義 ---

type mockAuthService struct {
	signUpFn  func(ctx context.Context, in auth.SignUpInput) (*model.User, error)
	signInFn  func(ctx context.Context, email, password string) (*model.Session, error)
	signOutFn func(ctx context.Context, sessionID string) error
	refreshFn func(ctx context.Context, sessionID string) (*model.Session, error)
}

func (m *mockAuthService) SignUp(ctx context.Context, in auth.SignUpInput) (*model.User, error) {
	if m.signUpFn != nil {
		return m.signUpFn(ctx, in)
	}
	return &model.User{ID: "new-user"}, nil
}

func (m *mockAuthService) SignIn(ctx context.Context, email, password string) (*model.Session, error) {
	if m.signInFn != nil {
		return m.signInFn(ctx, email, password)
	}
	return nil, model.NewInvalidCredentialsError()
}

func (m *mockAuthService) SignOut(ctx context.Context, sessionID string) error {
	if m.signOutFn != nil {
		return m.signOutFn(ctx, sessionID)
	}
	return nil
}

func (m *mockAuthService) Refresh(ctx context.Context, sessionID string) (*model.Session, error) {
	if m.refreshFn != nil {
		return m.refreshFn(ctx, sessionID)
	}
	return nil, model.NewSessionMissingError()
}

type mockDispatcher struct {
	destination string
	sessions    []*model.Session
}

func (m *mockDispatcher) Dispatch(ctx context.Context, session *model.Session) string {
	m.sessions = append(m.sessions, session)
	return m.destination
}

type mockEventService struct {
	listFn            func(ctx context.Context, category, search string) ([]*model.Event, error)
	countFn           func(ctx context.Context) (int, error)
	getFn             func(ctx context.Context, id string) (*model.Event, error)
	listByOrganizerFn func(ctx context.Context, organizerID string) ([]*model.Event, error)
	createFn          func(ctx context.Context, organizer *model.Session, in event.Input) (*model.Event, error)
	updateFn          func(ctx context.Context, organizer *model.Session, id string, in event.Input) (*model.Event, error)
	deleteFn          func(ctx context.Context, organizer *model.Session, id string) error
}

func (m *mockEventService) List(ctx context.Context, category, search string) ([]*model.Event, error) {
	if m.listFn != nil {
		return m.listFn(ctx, category, search)
	}
	return []*model.Event{}, nil
}

func (m *mockEventService) Count(ctx context.Context) (int, error) {
	if m.countFn != nil {
		return m.countFn(ctx)
	}
	return 0, nil
}

func (m *mockEventService) Get(ctx context.Context, id string) (*model.Event, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, model.NewEventNotFoundError(id)
}

func (m *mockEventService) ListByOrganizer(ctx context.Context, organizerID string) ([]*model.Event, error) {
	if m.listByOrganizerFn != nil {
		return m.listByOrganizerFn(ctx, organizerID)
	}
	return []*model.Event{}, nil
}

func (m *mockEventService) Create(ctx context.Context, organizer *model.Session, in event.Input) (*model.Event, error) {
	if m.createFn != nil {
		return m.createFn(ctx, organizer, in)
	}
	return &model.Event{ID: "e1", Title: in.Title, OrganizerID: organizer.UserID}, nil
}

func (m *mockEventService) Update(ctx context.Context, organizer *model.Session, id string, in event.Input) (*model.Event, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, organizer, id, in)
	}
	return &model.Event{ID: id, Title: in.Title, OrganizerID: organizer.UserID}, nil
}

func (m *mockEventService) Delete(ctx context.Context, organizer *model.Session, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, organizer, id)
	}
	return nil
}

type mockRoleCounter struct {
	counts map[model.Role]int
	err    error
}

func (m *mockRoleCounter) CountByRole(ctx context.Context) (map[model.Role]int, error) {
	return m.counts, m.err
}

// fakeStore はトークンごとの認証状態を返すSessionStoreのモック。
type fakeStore struct {
	ready  bool
	states map[string]authstate.State
}

func (f *fakeStore) Current(ctx context.Context, token string) authstate.State {
	return f.states[token]
}

func (f *fakeStore) Ready() bool { return f.ready }

type mockHealth struct{ err error }

func (m *mockHealth) PingContext(ctx context.Context) error { return m.err }

type signInLog struct{ results []string }

func (s *signInLog) RecordSignIn(result string) { s.results = append(s.results, result) }

// --- ヘルパー ---

func stateFor(userID string, role model.Role) authstate.State {
	return authstate.State{
		Session: &model.Session{
			ID:        "tok-" + userID,
			UserID:    userID,
			Email:     userID + "@example.com",
			ExpiresAt: time.Now().Add(time.Hour),
		},
		Role:     role,
		Resolved: role != "",
	}
}

// withState はリクエストコンテキストに認証状態を注入する。
func withState(r *http.Request, state authstate.State) *http.Request {
	return r.WithContext(middleware.ContextWithState(r.Context(), state))
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v\nraw: %s", err, w.Body.String())
	}
	return body
}
