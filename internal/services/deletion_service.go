package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"zeechat/internal/chat"
	"zeechat/internal/models"
	"zeechat/internal/storage"
)

// DeletionService 承载两种删除语义：
// "为我删除"只把消息对发起者隐藏，任一参与者可用且幂等；
// "为所有人删除"是仅限发送者的墓碑化，清空内容且不可逆。
type DeletionService struct {
	messageRepo storage.MessageRepository
	deliverer   LiveDeliverer
}

// NewDeletionService creates a DeletionService. deliverer 可为 nil。
func NewDeletionService(messageRepo storage.MessageRepository, deliverer LiveDeliverer) *DeletionService {
	return &DeletionService{messageRepo: messageRepo, deliverer: deliverer}
}

func (s *DeletionService) load(ctx context.Context, messageID uint, actorID uint) (*models.Message, error) {
	message, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: 消息不存在", ErrNotFound)
		}
		return nil, fmt.Errorf("查询消息失败: %w", err)
	}
	if message.SenderID != actorID && message.ReceiverID != actorID {
		return nil, fmt.Errorf("%w: 不是会话参与者", ErrNotAuthorized)
	}
	return message, nil
}

// DeleteForViewer 把消息对发起者隐藏。重复调用是空操作。
func (s *DeletionService) DeleteForViewer(ctx context.Context, messageID uint, viewerID uint) error {
	message, err := s.load(ctx, messageID, viewerID)
	if err != nil {
		return err
	}

	for _, id := range message.DeletedFor() {
		if id == viewerID {
			return nil // 已隐藏，幂等
		}
	}
	if err := message.SetDeletedFor(append(message.DeletedFor(), viewerID)); err != nil {
		return fmt.Errorf("更新隐藏集合失败: %w", err)
	}
	if err := s.messageRepo.Update(ctx, message); err != nil {
		return fmt.Errorf("保存消息失败: %w", err)
	}
	return nil
}

// DeleteForEveryone 把消息墓碑化：仅发送者可执行，内容清空后对双方可见的
// 是同一个占位记录。成功后通知在线的接收方。
func (s *DeletionService) DeleteForEveryone(ctx context.Context, messageID uint, actorID uint) (*models.Message, error) {
	message, err := s.load(ctx, messageID, actorID)
	if err != nil {
		return nil, err
	}
	if message.SenderID != actorID {
		return nil, fmt.Errorf("%w: 只有发送者可以为所有人删除", ErrNotAuthorized)
	}
	if message.IsDeleted {
		return message, nil // 已是墓碑，幂等
	}

	message.Tombstone()
	if err := s.messageRepo.Update(ctx, message); err != nil {
		return nil, fmt.Errorf("保存消息失败: %w", err)
	}

	if s.deliverer != nil {
		s.deliverer.DeliverTo(message.ReceiverID, chat.MessageDeleted(message.IDString(), "everyone", actorID))
	}
	return message, nil
}
