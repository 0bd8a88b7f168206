package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const presenceKeyPrefix = "presence:user:"

// PresenceMirror 把用户在线状态镜像到 Redis，供其它实例低成本地查询
// "谁在线"。键带 TTL，实例崩溃后过期自动清理，不会留下幽灵在线用户。
type PresenceMirror struct {
	client *redis.Client
	ttl    time.Duration
}

// NewPresenceMirror 创建一个新的 PresenceMirror。
// ttl 应大于一个心跳周期，通常取其 2~3 倍。
func NewPresenceMirror(client *redis.Client, ttl time.Duration) *PresenceMirror {
	return &PresenceMirror{client: client, ttl: ttl}
}

func presenceKey(userID uint) string {
	return presenceKeyPrefix + strconv.FormatUint(uint64(userID), 10)
}

// SetOnline 标记用户在线。
func (p *PresenceMirror) SetOnline(ctx context.Context, userID uint) error {
	return p.client.Set(ctx, presenceKey(userID), "1", p.ttl).Err()
}

// Refresh 延长在线键的存活时间，由心跳周期性调用。
func (p *PresenceMirror) Refresh(ctx context.Context, userID uint) error {
	return p.client.Expire(ctx, presenceKey(userID), p.ttl).Err()
}

// SetOffline 标记用户离线。
func (p *PresenceMirror) SetOffline(ctx context.Context, userID uint) error {
	return p.client.Del(ctx, presenceKey(userID)).Err()
}

// IsOnline 查询用户是否在任一实例上在线。
func (p *PresenceMirror) IsOnline(ctx context.Context, userID uint) (bool, error) {
	n, err := p.client.Exists(ctx, presenceKey(userID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
