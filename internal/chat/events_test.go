package chat

import (
	"errors"
	"testing"
)

func TestDecodeInboundSendMessage(t *testing.T) {
	ev, err := DecodeInbound([]byte(`{"type":"send_message","payload":{"to":5,"content":"你好","replyTo":"abc"}}`))
	if err != nil {
		t.Fatalf("解码失败: %v", err)
	}
	send, ok := ev.(SendMessageEvent)
	if !ok {
		t.Fatalf("类型不符: %T", ev)
	}
	if send.To != 5 || send.Content != "你好" || send.ReplyTo != "abc" {
		t.Fatalf("字段不符: %+v", send)
	}
}

func TestDecodeInboundDeleteMessage(t *testing.T) {
	ev, err := DecodeInbound([]byte(`{"type":"delete_message","payload":{"to":3,"messageId":"m9","type":"for_everyone"}}`))
	if err != nil {
		t.Fatalf("解码失败: %v", err)
	}
	del := ev.(DeleteMessageEvent)
	if del.Scope != DeleteScopeEveryone || del.MessageID != "m9" {
		t.Fatalf("字段不符: %+v", del)
	}
}

func TestDecodeInboundUnknownType(t *testing.T) {
	_, err := DecodeInbound([]byte(`{"type":"no_such_event","payload":{}}`))
	if !errors.Is(err, ErrUnknownEventType) {
		t.Fatalf("应返回 ErrUnknownEventType，得到 %v", err)
	}
}

func TestDecodeInboundMissingPayload(t *testing.T) {
	if _, err := DecodeInbound([]byte(`{"type":"typing"}`)); err == nil {
		t.Fatalf("缺少 payload 应报错")
	}
}

func TestDecodeInboundMalformed(t *testing.T) {
	if _, err := DecodeInbound([]byte(`{{`)); err == nil {
		t.Fatalf("非法 JSON 应报错")
	}
}
