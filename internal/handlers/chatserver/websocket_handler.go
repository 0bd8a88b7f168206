package chatserver

import (
	"log"
	"net/http"

	"zeechat/internal/auth"
	"zeechat/internal/chat"
	"zeechat/internal/config"
)

// WebSocketHandler 负责处理 WebSocket 连接请求。
// 连接必须携带有效令牌；注册表以用户身份为键，匿名连接没有意义。
type WebSocketHandler struct {
	hub       *chat.Hub
	router    *chat.Router
	blacklist auth.TokenBlacklist
	cfg       config.Config
}

// NewWebSocketHandler 创建一个新的 WebSocketHandler 实例。
func NewWebSocketHandler(hub *chat.Hub, router *chat.Router, blacklist auth.TokenBlacklist, cfg config.Config) *WebSocketHandler {
	return &WebSocketHandler{
		hub:       hub,
		router:    router,
		blacklist: blacklist,
		cfg:       cfg,
	}
}

// ServeWS 处理传入的 WebSocket 请求：认证通过后升级连接并注册到 hub。
// 认证失败在升级前拒绝。
func (h *WebSocketHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "缺少认证令牌", http.StatusUnauthorized)
		return
	}

	claims, err := auth.ValidateToken(r.Context(), token, h.cfg.Auth.JWTSecretKey, h.blacklist)
	if err != nil {
		log.Printf("WebSocket 连接尝试失败：令牌无效: %v", err)
		http.Error(w, "令牌无效", http.StatusUnauthorized)
		return
	}
	log.Printf("用户 %s (ID: %d) 尝试连接 WebSocket", claims.UserName, claims.UserID)

	chat.ServeConn(h.hub, h.router, claims.UserID, w, r, h.cfg.WebSocket)
}
