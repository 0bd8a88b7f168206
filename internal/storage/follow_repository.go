package storage

import (
	"context"

	"gorm.io/gorm"

	"zeechat/internal/models"
)

// FollowRepository defines the interface for follow-edge data operations.
// AreMutualFollowers 是消息创建路径消费的"互相关注"判定。
type FollowRepository interface {
	Create(ctx context.Context, follow *models.Follow) error
	Delete(ctx context.Context, followerID, followeeID uint) error
	Exists(ctx context.Context, followerID, followeeID uint) (bool, error)
	AreMutualFollowers(ctx context.Context, userID1, userID2 uint) (bool, error)
	GetFollowingIDs(ctx context.Context, userID uint) ([]uint, error)
}

type gormFollowRepository struct {
	db *gorm.DB
}

// NewGormFollowRepository creates a new GORM-based FollowRepository.
func NewGormFollowRepository(db *gorm.DB) FollowRepository {
	return &gormFollowRepository{db: db}
}

// Create inserts a follow edge. 已存在的边视为成功。
func (r *gormFollowRepository) Create(ctx context.Context, follow *models.Follow) error {
	exists, err := r.Exists(ctx, follow.FollowerID, follow.FolloweeID)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return r.db.WithContext(ctx).Create(follow).Error
}

// Delete removes a follow edge if present.
func (r *gormFollowRepository) Delete(ctx context.Context, followerID, followeeID uint) error {
	return r.db.WithContext(ctx).
		Where("follower_id = ? AND followee_id = ?", followerID, followeeID).
		Delete(&models.Follow{}).Error
}

// Exists reports whether follower follows followee.
func (r *gormFollowRepository) Exists(ctx context.Context, followerID, followeeID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Follow{}).
		Where("follower_id = ? AND followee_id = ?", followerID, followeeID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// AreMutualFollowers reports whether both directed edges exist.
func (r *gormFollowRepository) AreMutualFollowers(ctx context.Context, userID1, userID2 uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Follow{}).
		Where("(follower_id = ? AND followee_id = ?) OR (follower_id = ? AND followee_id = ?)",
			userID1, userID2, userID2, userID1).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count == 2, nil
}

// GetFollowingIDs retrieves the IDs the given user follows.
func (r *gormFollowRepository) GetFollowingIDs(ctx context.Context, userID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.Follow{}).
		Where("follower_id = ?", userID).
		Pluck("followee_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}
