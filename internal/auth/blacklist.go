package auth

import (
	"context"
	"time"
)

// TokenBlacklist 记录已吊销令牌的 JTI。登出把 JTI 写入黑名单，
// ValidateToken 对每个带 JTI 的令牌查询一次。
type TokenBlacklist interface {
	// Add 吊销给定的 jti。条目在令牌原本的过期时间点之后即可被存储层回收，
	// 因为过期令牌无论如何都会被签名校验拒绝。
	Add(ctx context.Context, jti string, originalTokenExpTime time.Time) error
	// IsBlacklisted 报告 jti 是否已被吊销。
	IsBlacklisted(ctx context.Context, jti string) (bool, error)
}
