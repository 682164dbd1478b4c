package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/magicalmoments/internal/event"
	"github.com/hitoshi/magicalmoments/internal/middleware"
	"github.com/hitoshi/magicalmoments/internal/model"
)

// EventServiceInterface はイベント関連ハンドラーが必要とするサービスインターフェース。
type EventServiceInterface interface {
	List(ctx context.Context, category, search string) ([]*model.Event, error)
	Count(ctx context.Context) (int, error)
	Get(ctx context.Context, id string) (*model.Event, error)
	ListByOrganizer(ctx context.Context, organizerID string) ([]*model.Event, error)
	Create(ctx context.Context, organizer *model.Session, in event.Input) (*model.Event, error)
	Update(ctx context.Context, organizer *model.Session, id string, in event.Input) (*model.Event, error)
	Delete(ctx context.Context, organizer *model.Session, id string) error
}

// homeTabs はホーム画面のカテゴリタブ。
var homeTabs = []string{event.CategoryToday, "Music", "This Food & Drink", "Tech", event.CategoryAll}

type browseCategory struct {
	Title string `json:"title"`
	Path  string `json:"path"`
}

// browseCategories はホーム画面のカテゴリ一覧。/events?category=<path> に遷移する。
var browseCategories = []browseCategory{
	{Title: "Business", Path: "business"},
	{Title: "Conference", Path: "conference"},
	{Title: "Exhibitions", Path: "exhibitions"},
	{Title: "Music", Path: "music"},
	{Title: "Party", Path: "party"},
}

// EventHandler はイベントの閲覧画面のHTTPハンドラー。
type EventHandler struct {
	service EventServiceInterface
}

// NewEventHandler はEventHandlerを生成する。
func NewEventHandler(service EventServiceInterface) *EventHandler {
	return &EventHandler{service: service}
}

// Home はホーム画面を返す。タブと検索語による絞り込みに対応する。
// GET /?category=Today&search=jazz
func (h *EventHandler) Home(w http.ResponseWriter, r *http.Request) {
	category, search := listQuery(r)
	if category == "" {
		category = event.CategoryAll
	}

	events, err := h.service.List(r.Context(), category, search)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeView(w, "home", map[string]interface{}{
		"viewer":            toViewerResponse(middleware.StateFromContext(r.Context())),
		"tabs":              homeTabs,
		"selected_category": category,
		"search":            search,
		"browse_categories": browseCategories,
		"events":            toEventResponses(events),
	})
}

// Events はイベント一覧画面を返す。
// GET /events?category=music&search=night
func (h *EventHandler) Events(w http.ResponseWriter, r *http.Request) {
	category, search := listQuery(r)

	events, err := h.service.List(r.Context(), category, search)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeView(w, "events", map[string]interface{}{
		"viewer":   toViewerResponse(middleware.StateFromContext(r.Context())),
		"category": category,
		"search":   search,
		"events":   toEventResponses(events),
	})
}

// Detail はイベント詳細画面を返す。
// GET /event/{eventId}
func (h *EventHandler) Detail(w http.ResponseWriter, r *http.Request) {
	e, err := h.service.Get(r.Context(), chi.URLParam(r, "eventId"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeView(w, "event_detail", map[string]interface{}{
		"viewer": toViewerResponse(middleware.StateFromContext(r.Context())),
		"event":  toEventResponse(e),
	})
}

func listQuery(r *http.Request) (category, search string) {
	q := r.URL.Query()
	return q.Get("category"), q.Get("search")
}
