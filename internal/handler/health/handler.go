package health

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/z-companion/backend/pkg/utils"
)

// Handler 健康检查处理器
type Handler struct {
	aiEnabled bool
}

// New 创建健康检查处理器，aiEnabled 表示是否配置了大模型凭证。
func New(aiEnabled bool) *Handler {
	return &Handler{aiEnabled: aiEnabled}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", h.handleLiveness)
}

func (h *Handler) handleLiveness(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"ai":     h.aiEnabled,
	})
}
