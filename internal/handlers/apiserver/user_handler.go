package apiserver

import (
	"net/http"

	"zeechat/internal/middleware"
	"zeechat/internal/services"
)

// UserHandler 封装了联系人相关的 HTTP 处理器方法。
type UserHandler struct {
	userService *services.UserService
}

// NewUserHandler 创建一个新的 UserHandler 实例。
func NewUserHandler(userService *services.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// Follow 处理 POST /users/follow/{userId}：关注目标用户。
func (h *UserHandler) Follow(w http.ResponseWriter, r *http.Request) {
	followerID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "用户未认证", http.StatusUnauthorized)
		return
	}
	followeeID, ok := pathID(r, "userId")
	if !ok {
		writeJSONError(w, "目标用户ID无效", http.StatusBadRequest)
		return
	}

	if err := h.userService.Follow(r.Context(), followerID, followeeID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]string{"message": "关注成功"})
}

// Unfollow 处理 DELETE /users/follow/{userId}：取消关注。
func (h *UserHandler) Unfollow(w http.ResponseWriter, r *http.Request) {
	followerID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "用户未认证", http.StatusUnauthorized)
		return
	}
	followeeID, ok := pathID(r, "userId")
	if !ok {
		writeJSONError(w, "目标用户ID无效", http.StatusBadRequest)
		return
	}

	if err := h.userService.Unfollow(r.Context(), followerID, followeeID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]string{"message": "已取消关注"})
}

// ListUsers 处理 GET /users：返回除自己外的所有用户，供联系人选择。
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "用户未认证", http.StatusUnauthorized)
		return
	}

	users, err := h.userService.ListOthers(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, users)
}
