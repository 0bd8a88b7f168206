package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"gorm.io/gorm"

	"zeechat/internal/chat"
	"zeechat/internal/models"
	"zeechat/internal/storage"
)

// LiveDeliverer 把事件投递到接收者的活动连接。接收者不在线时返回 false，
// 投递失败从不导致同步操作失败。
type LiveDeliverer interface {
	DeliverTo(userID uint, ev chat.Envelope) bool
}

// CreateMessageInput 是权威消息创建路径的入参。
type CreateMessageInput struct {
	SenderID   uint
	ReceiverID uint
	Body       string
	Kind       models.MessageKind
	MediaURL   string
	Caption    string
}

// FullMessage 是对外返回的消息视图，附带双方的展示属性。
type FullMessage struct {
	*models.Message
	SenderInfo   *models.UserBasicInfo `json:"senderInfo,omitempty"`
	ReceiverInfo *models.UserBasicInfo `json:"receiverInfo,omitempty"`
}

// ConversationPreview 是会话列表的单项：对端身份加最后一条消息。
type ConversationPreview struct {
	ConversationID uint                  `json:"conversationId"`
	Counterpart    *models.UserBasicInfo `json:"counterpart"`
	LastMessage    *models.Message       `json:"lastMessage,omitempty"`
}

// MessageService 承载消息生命周期的权威路径：落库创建、历史读取、
// 按观看者清空。创建成功后尽力向在线的接收者扇出 receive_message。
type MessageService struct {
	messageRepo      storage.MessageRepository
	conversationRepo storage.ConversationRepository
	userRepo         storage.UserRepository
	followRepo       storage.FollowRepository
	txManager        storage.TxManager
	deliverer        LiveDeliverer
}

// NewMessageService creates a MessageService. deliverer 可为 nil（纯 REST 部署）。
func NewMessageService(
	messageRepo storage.MessageRepository,
	conversationRepo storage.ConversationRepository,
	userRepo storage.UserRepository,
	followRepo storage.FollowRepository,
	txManager storage.TxManager,
	deliverer LiveDeliverer,
) *MessageService {
	return &MessageService{
		messageRepo:      messageRepo,
		conversationRepo: conversationRepo,
		userRepo:         userRepo,
		followRepo:       followRepo,
		txManager:        txManager,
		deliverer:        deliverer,
	}
}

// CreateMessage 持久化一条消息并更新会话的最后消息指针，两者在同一事务内提交。
// 前置条件：双方用户存在且互相关注。成功后尽力投递给在线的接收者。
func (s *MessageService) CreateMessage(ctx context.Context, input CreateMessageInput) (*FullMessage, error) {
	if input.SenderID == input.ReceiverID {
		return nil, fmt.Errorf("%w: 不能给自己发消息", ErrInvalidInput)
	}
	if strings.TrimSpace(input.Body) == "" && input.MediaURL == "" {
		return nil, fmt.Errorf("%w: 消息内容不能为空", ErrInvalidInput)
	}
	kind := input.Kind
	if kind == "" {
		kind = models.TextMessage
	}

	if _, err := s.userRepo.GetByID(ctx, input.SenderID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: 发送者不存在", ErrNotFound)
		}
		return nil, fmt.Errorf("查询发送者失败: %w", err)
	}
	if _, err := s.userRepo.GetByID(ctx, input.ReceiverID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: 接收者不存在", ErrNotFound)
		}
		return nil, fmt.Errorf("查询接收者失败: %w", err)
	}

	mutual, err := s.followRepo.AreMutualFollowers(ctx, input.SenderID, input.ReceiverID)
	if err != nil {
		return nil, fmt.Errorf("查询关注关系失败: %w", err)
	}
	if !mutual {
		return nil, fmt.Errorf("%w: 双方未互相关注", ErrNotAuthorized)
	}

	message := &models.Message{
		SenderID:   input.SenderID,
		ReceiverID: input.ReceiverID,
		Kind:       kind,
		Body:       input.Body,
		MediaURL:   input.MediaURL,
		Caption:    input.Caption,
	}

	// 追加消息和推进 last_message 指针是一个原子单元
	err = s.txManager.WithinTransaction(ctx, func(tx *gorm.DB) error {
		conversation, err := s.conversationRepo.FindOrCreateWithTx(ctx, tx, input.SenderID, input.ReceiverID)
		if err != nil {
			return err
		}
		message.ConversationID = conversation.ID
		if err := s.messageRepo.CreateWithTx(ctx, tx, message); err != nil {
			return fmt.Errorf("创建消息失败: %w", err)
		}
		return s.conversationRepo.UpdateLastMessageWithTx(ctx, tx, conversation.ID, message.ID)
	})
	if err != nil {
		return nil, err
	}

	full := &FullMessage{Message: message}
	if info, err := s.userRepo.GetBasicInfoByID(ctx, input.SenderID); err == nil {
		full.SenderInfo = info
	}
	if info, err := s.userRepo.GetBasicInfoByID(ctx, input.ReceiverID); err == nil {
		full.ReceiverInfo = info
	}

	// 实时扇出是尽力而为：接收者离线或投递失败不影响已提交的创建
	if s.deliverer != nil {
		if !s.deliverer.DeliverTo(input.ReceiverID, chat.ReceiveMessage(full)) {
			log.Printf("接收者 %d 不在线，消息 %d 仅落库", input.ReceiverID, message.ID)
		}
	}

	return full, nil
}

// GetConversationMessages 返回观看者与对端之间的消息历史，
// 按时间顺序排列，并滤掉对观看者隐藏的消息。没有会话时返回空列表。
func (s *MessageService) GetConversationMessages(ctx context.Context, viewerID, counterpartID uint) ([]*models.Message, error) {
	conversation, err := s.conversationRepo.FindByParticipants(ctx, viewerID, counterpartID)
	if err != nil {
		return nil, fmt.Errorf("查询会话失败: %w", err)
	}
	if conversation == nil {
		return []*models.Message{}, nil
	}

	messages, err := s.messageRepo.GetByConversationID(ctx, conversation.ID)
	if err != nil {
		return nil, fmt.Errorf("查询会话消息失败: %w", err)
	}

	visible := make([]*models.Message, 0, len(messages))
	for _, m := range messages {
		if m.HiddenFor(viewerID) {
			continue
		}
		visible = append(visible, m)
	}
	return visible, nil
}

// ListConversationsWithLastMessage 返回用户的会话列表，按更新时间倒序，
// 每项附带对端的展示属性和最后一条消息。
func (s *MessageService) ListConversationsWithLastMessage(ctx context.Context, userID uint) ([]*ConversationPreview, error) {
	conversations, err := s.conversationRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("查询会话列表失败: %w", err)
	}

	previews := make([]*ConversationPreview, 0, len(conversations))
	for _, c := range conversations {
		preview := &ConversationPreview{ConversationID: c.ID, LastMessage: c.LastMessage}
		if info, err := s.userRepo.GetBasicInfoByID(ctx, c.OtherParticipant(userID)); err == nil {
			preview.Counterpart = info
		}
		previews = append(previews, preview)
	}
	return previews, nil
}

// ClearChatForViewer 把观看者与对端会话内的所有消息对观看者隐藏。
// 只影响发起者的视图，对端不受影响；没有会话时是幂等的空操作。
func (s *MessageService) ClearChatForViewer(ctx context.Context, viewerID, counterpartID uint) error {
	conversation, err := s.conversationRepo.FindByParticipants(ctx, viewerID, counterpartID)
	if err != nil {
		return fmt.Errorf("查询会话失败: %w", err)
	}
	if conversation == nil {
		return nil
	}

	messages, err := s.messageRepo.GetByConversationID(ctx, conversation.ID)
	if err != nil {
		return fmt.Errorf("查询会话消息失败: %w", err)
	}

	for _, m := range messages {
		if m.HiddenFor(viewerID) {
			continue
		}
		if err := m.SetDeletedFor(append(m.DeletedFor(), viewerID)); err != nil {
			return fmt.Errorf("更新消息 %d 的隐藏集合失败: %w", m.ID, err)
		}
		if err := s.messageRepo.Update(ctx, m); err != nil {
			return fmt.Errorf("保存消息 %d 失败: %w", m.ID, err)
		}
	}
	return nil
}
