package storage

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"zeechat/internal/models"
)

// ConversationRepository 定义了会话数据操作的接口。
type ConversationRepository interface {
	// FindByParticipants 查找无序用户对之间的会话；不存在时返回 (nil, nil)。
	FindByParticipants(ctx context.Context, userID1, userID2 uint) (*models.Conversation, error)
	// FindOrCreateWithTx 在事务中查找或创建用户对之间的会话。
	FindOrCreateWithTx(ctx context.Context, tx *gorm.DB, userID1, userID2 uint) (*models.Conversation, error)
	// UpdateLastMessageWithTx 在事务中更新会话的最后一条消息指针。
	UpdateLastMessageWithTx(ctx context.Context, tx *gorm.DB, conversationID uint, messageID uint) error
	// ListByUser 返回用户参与的所有会话，按更新时间倒序，预加载最后一条消息。
	ListByUser(ctx context.Context, userID uint) ([]*models.Conversation, error)
}

// gormConversationRepository 使用 GORM 实现 ConversationRepository。
type gormConversationRepository struct {
	db *gorm.DB
}

// NewGormConversationRepository 创建一个新的基于 GORM 的 ConversationRepository。
func NewGormConversationRepository(db *gorm.DB) ConversationRepository {
	return &gormConversationRepository{db: db}
}

// FindByParticipants 查找两个用户之间的会话。
func (r *gormConversationRepository) FindByParticipants(ctx context.Context, userID1, userID2 uint) (*models.Conversation, error) {
	u1, u2 := userID1, userID2
	if u1 > u2 {
		u1, u2 = u2, u1 // 规范化顺序，保证查找确定性
	}

	var conversation models.Conversation
	err := r.db.WithContext(ctx).
		Where("user_id1 = ? AND user_id2 = ?", u1, u2).
		First(&conversation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil // 不存在不是应用层错误
		}
		return nil, err
	}
	return &conversation, nil
}

// FindOrCreateWithTx 在提供的事务中查找或创建会话。
// 使用行锁保证并发首次发消息时会话唯一。
func (r *gormConversationRepository) FindOrCreateWithTx(ctx context.Context, tx *gorm.DB, userID1, userID2 uint) (*models.Conversation, error) {
	u1, u2 := userID1, userID2
	if u1 > u2 {
		u1, u2 = u2, u1
	}

	var conversation models.Conversation
	err := tx.WithContext(ctx).
		Set("gorm:query_option", "FOR UPDATE").
		Where("user_id1 = ? AND user_id2 = ?", u1, u2).
		First(&conversation).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("查找会话失败: %w", err)
		}

		newConversation := &models.Conversation{UserID1: u1, UserID2: u2}
		newConversation.EnsureCanonicalOrder()
		if err := tx.WithContext(ctx).Create(newConversation).Error; err != nil {
			return nil, fmt.Errorf("创建新会话失败: %w", err)
		}
		return newConversation, nil
	}

	return &conversation, nil
}

// UpdateLastMessageWithTx 更新会话的 last_message_id。
func (r *gormConversationRepository) UpdateLastMessageWithTx(ctx context.Context, tx *gorm.DB, conversationID uint, messageID uint) error {
	return tx.WithContext(ctx).Model(&models.Conversation{}).
		Where("id = ?", conversationID).
		Update("last_message_id", messageID).Error
}

// ListByUser 返回用户参与的所有会话。
func (r *gormConversationRepository) ListByUser(ctx context.Context, userID uint) ([]*models.Conversation, error) {
	var conversations []*models.Conversation
	err := r.db.WithContext(ctx).
		Where("user_id1 = ? OR user_id2 = ?", userID, userID).
		Order("updated_at DESC").
		Preload("LastMessage").
		Find(&conversations).Error
	if err != nil {
		return nil, err
	}
	return conversations, nil
}
