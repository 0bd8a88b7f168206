package middleware

import (
	"context"
	"net/http"
	"strings"

	"zeechat/internal/auth"
	"zeechat/internal/config"
)

// contextKey 是用于在 context.Context 中存储值的自定义类型，以避免键冲突。
type contextKey string

// UserIDKey 是用于在上下文中存储用户ID的键。
const UserIDKey contextKey = "userID"

// UserNameKey 是用于在上下文中存储用户名的键。
const UserNameKey contextKey = "userName"

// ClaimsKey 是用于在上下文中存储完整 JWT 声明的键（登出需要 JTI 和过期时间）。
const ClaimsKey contextKey = "claims"

// AuthMiddleware 验证 Bearer 令牌并把已认证身份写入请求上下文。
// blacklist 可为 nil，此时不检查令牌吊销。
func AuthMiddleware(next http.Handler, authCfg config.AuthConfig, blacklist auth.TokenBlacklist) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "请求未包含授权令牌", http.StatusUnauthorized)
			return
		}

		headerParts := strings.Split(authHeader, " ")
		if len(headerParts) != 2 || strings.ToLower(headerParts[0]) != "bearer" {
			http.Error(w, "授权头部格式无效", http.StatusUnauthorized)
			return
		}

		claims, err := auth.ValidateToken(r.Context(), headerParts[1], authCfg.JWTSecretKey, blacklist)
		if err != nil {
			http.Error(w, "令牌无效", http.StatusUnauthorized)
			return
		}

		// 将用户信息存入请求上下文
		ctx := context.WithValue(r.Context(), UserIDKey, claims.UserID)
		ctx = context.WithValue(ctx, UserNameKey, claims.UserName)
		ctx = context.WithValue(ctx, ClaimsKey, claims)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetUserIDFromContext 从上下文中获取用户ID。
func GetUserIDFromContext(ctx context.Context) (uint, bool) {
	userID, ok := ctx.Value(UserIDKey).(uint)
	return userID, ok
}

// GetUserNameFromContext 从上下文中获取用户名。
func GetUserNameFromContext(ctx context.Context) (string, bool) {
	userName, ok := ctx.Value(UserNameKey).(string)
	return userName, ok
}

// GetClaimsFromContext 从上下文中获取完整的 JWT 声明。
func GetClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(ClaimsKey).(*auth.Claims)
	return claims, ok
}
