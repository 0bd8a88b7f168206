package storage

import (
	"context"

	"gorm.io/gorm"

	"zeechat/internal/models"
)

// MessageRepository 定义了消息数据操作的接口。
// 消息创建后内容不直接更新；Update 仅用于表情回应和软删除字段。
type MessageRepository interface {
	CreateWithTx(ctx context.Context, tx *gorm.DB, message *models.Message) error
	GetByID(ctx context.Context, id uint) (*models.Message, error)
	Update(ctx context.Context, message *models.Message) error
	// GetByConversationID 按插入顺序（即时间顺序）返回会话内的消息。
	GetByConversationID(ctx context.Context, conversationID uint) ([]*models.Message, error)
}

// gormMessageRepository 使用 GORM 实现 MessageRepository。
type gormMessageRepository struct {
	db *gorm.DB
}

// NewGormMessageRepository 创建一个新的基于 GORM 的 MessageRepository。
func NewGormMessageRepository(db *gorm.DB) MessageRepository {
	return &gormMessageRepository{db: db}
}

// CreateWithTx 在事务中创建一条新的消息记录。
func (r *gormMessageRepository) CreateWithTx(ctx context.Context, tx *gorm.DB, message *models.Message) error {
	return tx.WithContext(ctx).Create(message).Error
}

// GetByID 通过ID检索消息。
func (r *gormMessageRepository) GetByID(ctx context.Context, id uint) (*models.Message, error) {
	var message models.Message
	err := r.db.WithContext(ctx).First(&message, id).Error
	if err != nil {
		return nil, err
	}
	return &message, nil
}

// Update 保存消息的可变字段（reactions / deleted_for / 墓碑）。
func (r *gormMessageRepository) Update(ctx context.Context, message *models.Message) error {
	return r.db.WithContext(ctx).Save(message).Error
}

// GetByConversationID 返回会话内全部消息，按插入顺序排列。
func (r *gormMessageRepository) GetByConversationID(ctx context.Context, conversationID uint) ([]*models.Message, error) {
	var messages []*models.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("id ASC").
		Preload("Sender").
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}
