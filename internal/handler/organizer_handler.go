package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/magicalmoments/internal/event"
	"github.com/hitoshi/magicalmoments/internal/middleware"
	"github.com/hitoshi/magicalmoments/internal/model"
)

// OrganizerHandler は主催者パネルのHTTPハンドラー。
// organizerガードの内側に配置し、操作対象は常にセッションの主催者自身のイベントに限る。
type OrganizerHandler struct {
	service EventServiceInterface
}

// NewOrganizerHandler はOrganizerHandlerを生成する。
func NewOrganizerHandler(service EventServiceInterface) *OrganizerHandler {
	return &OrganizerHandler{service: service}
}

// Panel は主催者自身のイベント一覧を返す。
// GET /organizer-panel
func (h *OrganizerHandler) Panel(w http.ResponseWriter, r *http.Request) {
	state := middleware.StateFromContext(r.Context())

	events, err := h.service.ListByOrganizer(r.Context(), state.UserID())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeView(w, "organizer_panel", map[string]interface{}{
		"viewer":     toViewerResponse(state),
		"categories": model.EventCategories,
		"events":     toEventResponses(events),
	})
}

// CreateEvent はイベントを登録する。
// POST /organizer-panel/events
func (h *OrganizerHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeEventInput(w, r)
	if !ok {
		return
	}

	e, err := h.service.Create(r.Context(), middleware.StateFromContext(r.Context()).Session, in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Event created successfully!",
		"event":   toEventResponse(e),
	})
}

// UpdateEvent はイベントを更新する。
// PUT /organizer-panel/events/{eventId}
func (h *OrganizerHandler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeEventInput(w, r)
	if !ok {
		return
	}

	e, err := h.service.Update(r.Context(), middleware.StateFromContext(r.Context()).Session, chi.URLParam(r, "eventId"), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Event updated successfully!",
		"event":   toEventResponse(e),
	})
}

// DeleteEvent はイベントを削除する。
// DELETE /organizer-panel/events/{eventId}
func (h *OrganizerHandler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	err := h.service.Delete(r.Context(), middleware.StateFromContext(r.Context()).Session, chi.URLParam(r, "eventId"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Event deleted successfully!",
	})
}

func decodeEventInput(w http.ResponseWriter, r *http.Request) (event.Input, bool) {
	var in event.Input
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidEventError("request body must be a JSON event"))
		return in, false
	}
	return in, true
}
