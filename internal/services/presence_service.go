package services

import (
	"context"
	"fmt"
	"log"

	"zeechat/internal/redis"
	"zeechat/internal/storage"
)

// PresenceService 把连接生命周期产生的在线/离线转换镜像到两个地方：
// users.is_online 列（持久，供联系人列表查询）和 Redis 的 TTL 键
// （易失，供跨实例查询，崩溃后自动过期）。
type PresenceService struct {
	userRepo storage.UserRepository
	mirror   *redis.PresenceMirror
}

// NewPresenceService creates a PresenceService. mirror 可为 nil（无 Redis 部署）。
func NewPresenceService(userRepo storage.UserRepository, mirror *redis.PresenceMirror) *PresenceService {
	return &PresenceService{userRepo: userRepo, mirror: mirror}
}

// MarkOnline records the user as online in both stores.
func (s *PresenceService) MarkOnline(ctx context.Context, userID uint) error {
	if err := s.userRepo.UpdateOnlineStatus(ctx, userID, true); err != nil {
		return fmt.Errorf("更新用户 %d 在线状态失败: %w", userID, err)
	}
	if s.mirror != nil {
		if err := s.mirror.SetOnline(ctx, userID); err != nil {
			// Redis 镜像失败不影响连接生命周期
			log.Printf("写入用户 %d 的 Redis 在线镜像失败: %v", userID, err)
		}
	}
	return nil
}

// Touch 续期 Redis 镜像键的 TTL，由心跳对幸存连接周期性调用。
// 持久的 is_online 列不带 TTL，无需续期。
func (s *PresenceService) Touch(ctx context.Context, userID uint) error {
	if s.mirror == nil {
		return nil
	}
	return s.mirror.Refresh(ctx, userID)
}

// MarkOffline records the user as offline in both stores.
func (s *PresenceService) MarkOffline(ctx context.Context, userID uint) error {
	if err := s.userRepo.UpdateOnlineStatus(ctx, userID, false); err != nil {
		return fmt.Errorf("更新用户 %d 离线状态失败: %w", userID, err)
	}
	if s.mirror != nil {
		if err := s.mirror.SetOffline(ctx, userID); err != nil {
			log.Printf("清除用户 %d 的 Redis 在线镜像失败: %v", userID, err)
		}
	}
	return nil
}
