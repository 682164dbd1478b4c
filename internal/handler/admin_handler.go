package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/magicalmoments/internal/middleware"
	"github.com/hitoshi/magicalmoments/internal/model"
)

// RoleCounter はロールごとのプロフィール数を返す。
type RoleCounter interface {
	CountByRole(ctx context.Context) (map[model.Role]int, error)
}

// AdminHandler は管理画面のHTTPハンドラー。
type AdminHandler struct {
	events EventServiceInterface
	roles  RoleCounter
}

// NewAdminHandler はAdminHandlerを生成する。
func NewAdminHandler(events EventServiceInterface, roles RoleCounter) *AdminHandler {
	return &AdminHandler{events: events, roles: roles}
}

// Dashboard はイベント総数とロール別のプロフィール数を返す。
// GET /admin-dashboard
func (h *AdminHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	eventCount, err := h.events.Count(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	counts, err := h.roles.CountByRole(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	roleCounts := make(map[string]int, len(model.AllRoles))
	for _, role := range model.AllRoles {
		roleCounts[string(role)] = counts[role]
	}

	writeView(w, "admin_dashboard", map[string]interface{}{
		"viewer":      toViewerResponse(middleware.StateFromContext(r.Context())),
		"event_count": eventCount,
		"role_counts": roleCounts,
	})
}
