package chat

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// 出站帧类型名，与客户端协议保持一致。
const (
	EventReceiveMessage = "receive_message"
	EventUserTyping     = "user_typing"
	EventStopTyping     = "stop_typing"
	EventMessageReacted = "message_reacted"
	EventMessageSeen    = "message_seen"
	EventMessageDeleted = "message_deleted"
	EventChatCleared    = "chat_cleared"
	EventUserOnline     = "user_online"
	EventUserOffline    = "user_offline"
	EventError          = "error"
)

// 删除范围，对应 delete_message 帧的 type 字段。
const (
	DeleteScopeEveryone = "for_everyone"
	DeleteScopeMe       = "me"
)

// Envelope is the wire frame {type, payload} exchanged over a connection.
type Envelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type userPayload struct {
	UserID uint `json:"userId"`
}

type messagePayload struct {
	Message any `json:"message"`
}

type reactedPayload struct {
	MessageID string `json:"messageId"`
	Emoji     string `json:"emoji"`
	UserID    uint   `json:"userId"`
}

type seenPayload struct {
	MessageID string `json:"messageId"`
	SeenBy    uint   `json:"seenBy"`
}

type deletedPayload struct {
	MessageID  string `json:"messageId"`
	DeleteType string `json:"deleteType"`
	UserID     uint   `json:"userId"`
}

// ReceiveMessage wraps a materialized or live message for delivery.
func ReceiveMessage(message any) Envelope {
	return Envelope{Type: EventReceiveMessage, Payload: messagePayload{Message: message}}
}

// UserTyping notifies the counterpart that userID is typing.
func UserTyping(userID uint) Envelope {
	return Envelope{Type: EventUserTyping, Payload: userPayload{UserID: userID}}
}

// StopTypingNotice notifies the counterpart that userID stopped typing.
func StopTypingNotice(userID uint) Envelope {
	return Envelope{Type: EventStopTyping, Payload: userPayload{UserID: userID}}
}

// MessageReacted is the live reaction hint forwarded to the counterpart.
func MessageReacted(messageID, emoji string, userID uint) Envelope {
	return Envelope{Type: EventMessageReacted, Payload: reactedPayload{MessageID: messageID, Emoji: emoji, UserID: userID}}
}

// MessageSeen is the read receipt delivered to the original sender.
func MessageSeen(messageID string, seenBy uint) Envelope {
	return Envelope{Type: EventMessageSeen, Payload: seenPayload{MessageID: messageID, SeenBy: seenBy}}
}

// MessageDeleted notifies about a deletion; deleteType is "everyone" or "me".
func MessageDeleted(messageID, deleteType string, userID uint) Envelope {
	return Envelope{Type: EventMessageDeleted, Payload: deletedPayload{MessageID: messageID, DeleteType: deleteType, UserID: userID}}
}

// ChatCleared echoes a chat-cleared notification back to the clearer.
func ChatCleared(userID uint) Envelope {
	return Envelope{Type: EventChatCleared, Payload: userPayload{UserID: userID}}
}

// UserOnline is broadcast to everyone except the subject when a connection registers.
func UserOnline(userID uint) Envelope {
	return Envelope{Type: EventUserOnline, Payload: userPayload{UserID: userID}}
}

// UserOffline is broadcast to everyone except the subject when a connection goes away.
func UserOffline(userID uint) Envelope {
	return Envelope{Type: EventUserOffline, Payload: userPayload{UserID: userID}}
}

// ErrorEvent is echoed to the sender only. Payload 是纯字符串，与客户端协议一致。
func ErrorEvent(message string) Envelope {
	return Envelope{Type: EventError, Payload: message}
}

// LiveMessage is the ephemeral message envelope built by the live-only send path.
// 它从不落库；权威的持久化消息由同步的创建接口产生，走同一个 receive_message 信封。
type LiveMessage struct {
	ID        string     `json:"id"`
	Sender    LiveSender `json:"sender"`
	Message   string     `json:"message"`
	MediaURL  string     `json:"mediaUrl,omitempty"`
	MediaType string     `json:"mediaType,omitempty"`
	Type      string     `json:"type"`
	CreatedAt time.Time  `json:"createdAt"`
	ReplyTo   string     `json:"replyTo,omitempty"`
}

// LiveSender carries the authenticated sender identity of a live message.
type LiveSender struct {
	ID uint `json:"id"`
}

// Inbound 是客户端可以发送的帧的封闭集合。
// 在边界处解码一次，路由器对其做穷尽匹配；新增帧类型是编译期检查的改动。
type Inbound interface {
	isInbound()
}

// SendMessageEvent 请求向目标用户投递一条仅限在线的消息。
type SendMessageEvent struct {
	To        uint   `json:"to"`
	Content   string `json:"content"`
	MediaURL  string `json:"mediaUrl,omitempty"`
	MediaType string `json:"mediaType,omitempty"`
	ReplyTo   string `json:"replyTo,omitempty"`
}

// TypingEvent 通知目标用户发送者正在输入。
type TypingEvent struct {
	To uint `json:"to"`
}

// StopTypingEvent 通知目标用户发送者停止输入。
type StopTypingEvent struct {
	To uint `json:"to"`
}

// ReactMessageEvent 是发给对端的表情回应提示；权威状态走同步接口。
type ReactMessageEvent struct {
	To        uint   `json:"to"`
	MessageID string `json:"messageId"`
	Emoji     string `json:"emoji"`
}

// SeenMessageEvent 把已读回执转发给原消息的发送者。
type SeenMessageEvent struct {
	To        uint   `json:"to"`
	MessageID string `json:"messageId"`
}

// DeleteMessageEvent 转发删除通知；Scope 为 for_everyone 或 me。
type DeleteMessageEvent struct {
	To        uint   `json:"to"`
	MessageID string `json:"messageId"`
	Scope     string `json:"type"`
}

// ClearChatEvent 把清空聊天的通知回显给发送者。
type ClearChatEvent struct {
	UserID uint `json:"userId"`
}

func (SendMessageEvent) isInbound()   {}
func (TypingEvent) isInbound()        {}
func (StopTypingEvent) isInbound()    {}
func (ReactMessageEvent) isInbound()  {}
func (SeenMessageEvent) isInbound()   {}
func (DeleteMessageEvent) isInbound() {}
func (ClearChatEvent) isInbound()     {}

// ErrUnknownEventType 表示帧的 type 字段不在封闭集合内。
var ErrUnknownEventType = errors.New("未知的事件类型")

// rawFrame mirrors the wire shape before the payload is typed.
type rawFrame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// DecodeInbound 把一个原始帧解码成类型化的入站事件。
func DecodeInbound(data []byte) (Inbound, error) {
	var frame rawFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, fmt.Errorf("无法解析帧: %w", err)
	}

	decode := func(v Inbound) (Inbound, error) {
		if len(frame.Payload) == 0 {
			return nil, fmt.Errorf("帧 %s 缺少 payload", frame.Type)
		}
		if err := json.Unmarshal(frame.Payload, v); err != nil {
			return nil, fmt.Errorf("无法解析 %s 的 payload: %w", frame.Type, err)
		}
		return v, nil
	}

	switch frame.Type {
	case "send_message":
		ev, err := decode(&SendMessageEvent{})
		if err != nil {
			return nil, err
		}
		return *ev.(*SendMessageEvent), nil
	case "typing":
		ev, err := decode(&TypingEvent{})
		if err != nil {
			return nil, err
		}
		return *ev.(*TypingEvent), nil
	case "stop_typing":
		ev, err := decode(&StopTypingEvent{})
		if err != nil {
			return nil, err
		}
		return *ev.(*StopTypingEvent), nil
	case "react_message":
		ev, err := decode(&ReactMessageEvent{})
		if err != nil {
			return nil, err
		}
		return *ev.(*ReactMessageEvent), nil
	case "seen_message":
		ev, err := decode(&SeenMessageEvent{})
		if err != nil {
			return nil, err
		}
		return *ev.(*SeenMessageEvent), nil
	case "delete_message":
		ev, err := decode(&DeleteMessageEvent{})
		if err != nil {
			return nil, err
		}
		return *ev.(*DeleteMessageEvent), nil
	case "clear_chat":
		ev, err := decode(&ClearChatEvent{})
		if err != nil {
			return nil, err
		}
		return *ev.(*ClearChatEvent), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, frame.Type)
	}
}
