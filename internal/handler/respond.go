package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/magicalmoments/internal/authstate"
	"github.com/hitoshi/magicalmoments/internal/middleware"
	"github.com/hitoshi/magicalmoments/internal/model"
	"github.com/hitoshi/magicalmoments/internal/repository"
)

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// writeView はビュー名と追加フィールドをまとめたJSONを200で書き込む。
func writeView(w http.ResponseWriter, view string, fields map[string]interface{}) {
	body := map[string]interface{}{"view": view}
	for k, v := range fields {
		body[k] = v
	}
	writeJSON(w, http.StatusOK, body)
}

// writeServiceError はサービス層のエラーをHTTPステータスと統一フォーマットに変換する。
// 認証エラーとストアの拒否はメッセージをそのまま返し、それ以外の詳細はログのみに残す。
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var authErr *model.AuthError
	if errors.As(err, &authErr) {
		middleware.WriteAuthError(w, authErrorStatus(authErr), authErr)
		return
	}

	var mutErr *model.MutationError
	if errors.As(err, &mutErr) {
		middleware.WriteMutationError(w, mutationErrorStatus(mutErr), mutErr)
		return
	}

	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, apiErrorStatus(apiErr), apiErr)
		return
	}

	slog.Error("request failed",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	middleware.WriteInternalServerError(w)
}

func authErrorStatus(err *model.AuthError) int {
	switch err.Code {
	case model.ErrCodeUserAlreadyExists:
		return http.StatusConflict
	case model.ErrCodeInvalidSignUp:
		return http.StatusBadRequest
	default:
		return http.StatusUnauthorized
	}
}

func mutationErrorStatus(err *model.MutationError) int {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, repository.ErrDuplicate):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func apiErrorStatus(err *model.APIError) int {
	switch err.Code {
	case model.ErrCodeEventNotFound:
		return http.StatusNotFound
	case model.ErrCodeInvalidEvent, model.ErrCodeInvalidImageURL:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// viewerResponse はナビゲーションに表示する閲覧者情報。
type viewerResponse struct {
	Authenticated bool   `json:"authenticated"`
	UserID        string `json:"user_id,omitempty"`
	Email         string `json:"email,omitempty"`
	DisplayName   string `json:"display_name,omitempty"`
	Role          string `json:"role,omitempty"`
	RoleResolved  bool   `json:"role_resolved"`
	Links         []link `json:"links"`
}

type link struct {
	Label string `json:"label"`
	Path  string `json:"path"`
}

// toViewerResponse は認証状態からナビゲーション情報を組み立てる。
// ロール専用のリンクは解決済みロールがある場合のみ表示する。
func toViewerResponse(state authstate.State) viewerResponse {
	v := viewerResponse{
		Links: []link{{Label: "Events", Path: "/events"}},
	}
	if !state.Authenticated() {
		v.Links = append(v.Links, link{Label: "Sign In", Path: "/auth"})
		return v
	}

	v.Authenticated = true
	v.UserID = state.Session.UserID
	v.Email = state.Session.Email
	v.DisplayName = state.Session.DisplayName()
	v.RoleResolved = state.Resolved
	if state.Resolved {
		v.Role = string(state.Role)
		switch state.Role {
		case model.RoleOrganizer:
			v.Links = append(v.Links, link{Label: "Organizer Panel", Path: "/organizer-panel"})
		case model.RoleAdmin:
			v.Links = append(v.Links, link{Label: "Admin Dashboard", Path: "/admin-dashboard"})
		}
	}
	return v
}

// eventResponse はイベントのAPIレスポンス。
type eventResponse struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Category      string    `json:"category"`
	Date          string    `json:"date"`
	Time          string    `json:"time,omitempty"`
	Location      string    `json:"location"`
	Price         float64   `json:"price"`
	Capacity      int       `json:"capacity"`
	ImageURL      string    `json:"image_url,omitempty"`
	OrganizerID   string    `json:"organizer_id"`
	OrganizerName string    `json:"organizer_name"`
	Features      []string  `json:"features"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func toEventResponse(e *model.Event) eventResponse {
	return eventResponse{
		ID:            e.ID,
		Title:         e.Title,
		Description:   e.Description,
		Category:      e.Category,
		Date:          e.Date,
		Time:          e.Time,
		Location:      e.Location,
		Price:         e.Price,
		Capacity:      e.Capacity,
		ImageURL:      e.ImageURL,
		OrganizerID:   e.OrganizerID,
		OrganizerName: e.OrganizerName,
		Features:      e.FeatureList(),
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
	}
}

func toEventResponses(events []*model.Event) []eventResponse {
	out := make([]eventResponse, len(events))
	for i, e := range events {
		out[i] = toEventResponse(e)
	}
	return out
}
