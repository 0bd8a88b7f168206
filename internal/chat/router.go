package chat

import (
	"log"
	"time"

	"github.com/google/uuid"
)

// Router 是活动连接上入站帧的唯一入口。
// 这里处理的都是仅限在线的事件：转发和回显，不触碰持久层；
// 权威的消息/表情/删除变更走同步接口，由那边自行完成扇出。
type Router struct {
	hub *Hub
}

// NewRouter creates a Router delivering through the given hub.
func NewRouter(hub *Hub) *Router {
	return &Router{hub: hub}
}

// Handle decodes one inbound frame and dispatches it.
// 未知类型只会给发送者本人回一个 error 帧，绝不广播。
func (r *Router) Handle(sender Conn, data []byte) {
	ev, err := DecodeInbound(data)
	if err != nil {
		log.Printf("来自用户 %d 的帧无效: %v", sender.UserID(), err)
		sender.TrySend(ErrorEvent(err.Error()))
		return
	}

	switch ev := ev.(type) {
	case SendMessageEvent:
		r.handleSendMessage(sender, ev)
	case TypingEvent:
		r.hub.DeliverTo(ev.To, UserTyping(sender.UserID()))
	case StopTypingEvent:
		r.hub.DeliverTo(ev.To, StopTypingNotice(sender.UserID()))
	case ReactMessageEvent:
		// 仅作提示转发给对端；权威的表情状态由同步接口维护
		r.hub.DeliverTo(ev.To, MessageReacted(ev.MessageID, ev.Emoji, sender.UserID()))
	case SeenMessageEvent:
		// 已读回执发给原消息的发送者
		r.hub.DeliverTo(ev.To, MessageSeen(ev.MessageID, sender.UserID()))
	case DeleteMessageEvent:
		r.handleDeleteMessage(sender, ev)
	case ClearChatEvent:
		sender.TrySend(ChatCleared(sender.UserID()))
	}
}

// handleSendMessage 构造一条临时消息信封：全新生成的 id、认证过的发送者身份。
// 目标在线则转发，并且无论对方是否在线都把同一信封回显给发送者。
// 此路径不落库。
func (r *Router) handleSendMessage(sender Conn, ev SendMessageEvent) {
	kind := "text"
	if ev.MediaURL != "" {
		kind = "media"
	}

	msg := LiveMessage{
		ID:        uuid.NewString(),
		Sender:    LiveSender{ID: sender.UserID()},
		Message:   ev.Content,
		MediaURL:  ev.MediaURL,
		MediaType: ev.MediaType,
		Type:      kind,
		CreatedAt: time.Now().UTC(),
		ReplyTo:   ev.ReplyTo,
	}
	envelope := ReceiveMessage(msg)

	r.hub.DeliverTo(ev.To, envelope)
	sender.TrySend(envelope)
}

// handleDeleteMessage 按删除范围转发通知：
// for_everyone 发给接收者并回显发送者；me 只回显发送者。
func (r *Router) handleDeleteMessage(sender Conn, ev DeleteMessageEvent) {
	deleteType := "me"
	if ev.Scope == DeleteScopeEveryone {
		deleteType = "everyone"
	}
	notice := MessageDeleted(ev.MessageID, deleteType, sender.UserID())

	if ev.Scope == DeleteScopeEveryone {
		r.hub.DeliverTo(ev.To, notice)
	}
	sender.TrySend(notice)
}
