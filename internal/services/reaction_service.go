package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"gorm.io/gorm"

	"zeechat/internal/chat"
	"zeechat/internal/models"
	"zeechat/internal/storage"
)

// ReactionService 维护消息上的权威表情状态。
// 不变量：每条消息上每个用户至多一个表情。重复同款表情是取消，
// 换一款表情是替换。所有变更在服务内串行化，并发回应不会互相覆盖。
type ReactionService struct {
	messageRepo storage.MessageRepository
	deliverer   LiveDeliverer

	// 读改写 JSONB 的回应列表必须串行；单实例部署用进程内互斥即可
	mu sync.Mutex
}

// NewReactionService creates a ReactionService. deliverer 可为 nil。
func NewReactionService(messageRepo storage.MessageRepository, deliverer LiveDeliverer) *ReactionService {
	return &ReactionService{messageRepo: messageRepo, deliverer: deliverer}
}

// SetReaction 切换 reactor 在消息上的表情并返回更新后的消息。
// 消息不存在返回 ErrNotFound；墓碑消息或空表情返回 ErrInvalidInput；
// 非会话参与者返回 ErrNotAuthorized。
func (s *ReactionService) SetReaction(ctx context.Context, messageID uint, reactorID uint, emoji string) (*models.Message, error) {
	if strings.TrimSpace(emoji) == "" {
		return nil, fmt.Errorf("%w: 表情不能为空", ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	message, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: 消息不存在", ErrNotFound)
		}
		return nil, fmt.Errorf("查询消息失败: %w", err)
	}
	if message.SenderID != reactorID && message.ReceiverID != reactorID {
		return nil, fmt.Errorf("%w: 不是会话参与者", ErrNotAuthorized)
	}
	if message.IsDeleted {
		return nil, fmt.Errorf("%w: 消息已删除", ErrInvalidInput)
	}

	reactions := message.Reactions()
	updated := make([]models.Reaction, 0, len(reactions)+1)
	removed := false
	for _, r := range reactions {
		if r.UserID != reactorID {
			updated = append(updated, r)
			continue
		}
		if r.Emoji == emoji {
			// 同款表情：取消回应
			removed = true
			continue
		}
		// 换款表情：丢弃旧的，稍后追加新的
	}
	if !removed {
		updated = append(updated, models.Reaction{Emoji: emoji, UserID: reactorID})
	}

	if err := message.SetReactions(updated); err != nil {
		return nil, fmt.Errorf("编码表情回应失败: %w", err)
	}
	if err := s.messageRepo.Update(ctx, message); err != nil {
		return nil, fmt.Errorf("保存消息失败: %w", err)
	}

	// 通知消息的对端参与者（回应者自己通过响应得知结果）。
	// 取消回应不发提示：message_reacted 载荷只携带一个 emoji，
	// 对端无法区分添加和移除，宁可让其通过重新拉取看到移除。
	if s.deliverer != nil && !removed {
		counterpart := message.SenderID
		if counterpart == reactorID {
			counterpart = message.ReceiverID
		}
		s.deliverer.DeliverTo(counterpart, chat.MessageReacted(message.IDString(), emoji, reactorID))
	}

	return message, nil
}
