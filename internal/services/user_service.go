package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"zeechat/internal/models"
	"zeechat/internal/storage"
)

// UserService 承载联系人相关的外围操作：关注/取关和用户列表。
// 关注边是消息创建路径上"互相关注"判定的数据来源。
type UserService struct {
	userRepo   storage.UserRepository
	followRepo storage.FollowRepository
}

// NewUserService creates a UserService.
func NewUserService(userRepo storage.UserRepository, followRepo storage.FollowRepository) *UserService {
	return &UserService{userRepo: userRepo, followRepo: followRepo}
}

// Follow 建立 follower -> followee 的关注边，已存在时幂等。
func (s *UserService) Follow(ctx context.Context, followerID, followeeID uint) error {
	if followerID == followeeID {
		return fmt.Errorf("%w: 不能关注自己", ErrInvalidInput)
	}
	if _, err := s.userRepo.GetByID(ctx, followeeID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: 目标用户不存在", ErrNotFound)
		}
		return fmt.Errorf("查询目标用户失败: %w", err)
	}
	return s.followRepo.Create(ctx, &models.Follow{FollowerID: followerID, FolloweeID: followeeID})
}

// Unfollow 移除关注边，不存在时幂等。
func (s *UserService) Unfollow(ctx context.Context, followerID, followeeID uint) error {
	return s.followRepo.Delete(ctx, followerID, followeeID)
}

// ListOthers 返回除当前用户外的所有用户，供联系人选择。
func (s *UserService) ListOthers(ctx context.Context, currentUserID uint) ([]models.User, error) {
	return s.userRepo.ListOthers(ctx, currentUserID)
}

// GetBasicInfo 返回用户的公开展示属性。
func (s *UserService) GetBasicInfo(ctx context.Context, userID uint) (*models.UserBasicInfo, error) {
	info, err := s.userRepo.GetBasicInfoByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: 用户不存在", ErrNotFound)
		}
		return nil, fmt.Errorf("查询用户失败: %w", err)
	}
	return info, nil
}
