package user

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/z-companion/backend/internal/logger"
	"github.com/zhouzirui/z-companion/backend/internal/middleware"
	"github.com/zhouzirui/z-companion/backend/internal/model/user"
	userService "github.com/zhouzirui/z-companion/backend/internal/service/user"
	"github.com/zhouzirui/z-companion/backend/internal/session"
	"github.com/zhouzirui/z-companion/backend/pkg/utils"
)

// Handler 用户相关的HTTP处理器
type Handler struct {
	users    *userService.Service
	sessions *session.Manager
	log      *logger.Logger
}

// New 创建用户处理器
func New(users *userService.Service, sessions *session.Manager, log *logger.Logger) *Handler {
	return &Handler{
		users:    users,
		sessions: sessions,
		log:      log.With("component", "user-handler"),
	}
}

// RegisterRoutes 注册用户相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/users", h.handleCreateUser)

	r.Group(func(authed chi.Router) {
		authed.Use(middleware.RequireUser(h.sessions))
		authed.Get("/users/current", h.handleCurrentUser)
		authed.Patch("/users/theme", h.handleUpdateTheme)
	})
}

// handleCreateUser 创建用户并写入会话 cookie
func (h *Handler) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var payload user.CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "Invalid user data")
		return
	}
	if err := payload.Validate(); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "Invalid user data")
		return
	}

	created, err := h.users.Create(r.Context(), payload.ToUser())
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "Invalid user data")
		return
	}

	if err := h.sessions.Issue(w, created.ID); err != nil {
		h.log.Error("failed to issue session", "user", created.ID, "error", err)
		utils.RespondError(w, http.StatusInternalServerError, "Failed to start session")
		return
	}

	h.log.Info("user created", "user", created.ID, "character", created.CharacterType, "theme", created.Theme)
	utils.RespondJSON(w, http.StatusOK, created)
}

// handleCurrentUser 返回当前会话对应的用户
func (h *Handler) handleCurrentUser(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())

	current, err := h.users.Get(r.Context(), userID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, current)
}

// handleUpdateTheme 更新当前用户的主题
func (h *Handler) handleUpdateTheme(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())

	var payload user.UpdateThemeRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "Invalid theme")
		return
	}
	if err := payload.Validate(); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "Invalid theme")
		return
	}

	updated, err := h.users.UpdateTheme(r.Context(), userID, payload.Theme)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, updated)
}

func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, userService.ErrUserNotFound):
		utils.RespondError(w, http.StatusNotFound, "User not found")
	case errors.Is(err, userService.ErrInvalidTheme):
		utils.RespondError(w, http.StatusBadRequest, "Invalid theme")
	default:
		h.log.Error("user request failed", "error", err)
		utils.RespondError(w, http.StatusInternalServerError, "Internal server error")
	}
}
