package services

import (
	"context"
	"errors"
	"testing"

	"zeechat/internal/chat"
	"zeechat/internal/models"
)

type messageFixture struct {
	service   *MessageService
	users     *fakeUserRepo
	follows   *fakeFollowRepo
	convs     *fakeConversationRepo
	messages  *fakeMessageRepo
	deliverer *fakeDeliverer
	alice     *models.User
	bob       *models.User
}

func newMessageFixture(t *testing.T, onlineUsers ...uint) *messageFixture {
	t.Helper()
	users := newFakeUserRepo()
	follows := newFakeFollowRepo()
	convs := newFakeConversationRepo()
	messages := newFakeMessageRepo()
	deliverer := newFakeDeliverer(onlineUsers...)

	f := &messageFixture{
		users:     users,
		follows:   follows,
		convs:     convs,
		messages:  messages,
		deliverer: deliverer,
		alice:     users.addUser("alice"),
		bob:       users.addUser("bob"),
	}
	follows.addMutual(f.alice.ID, f.bob.ID)
	f.service = NewMessageService(messages, convs, users, follows, fakeTxManager{}, deliverer)
	return f
}

func TestCreateMessagePersistsAndFansOut(t *testing.T) {
	f := newMessageFixture(t, 2) // bob 在线
	ctx := context.Background()

	full, err := f.service.CreateMessage(ctx, CreateMessageInput{
		SenderID:   f.alice.ID,
		ReceiverID: f.bob.ID,
		Body:       "你好 bob",
	})
	if err != nil {
		t.Fatalf("创建消息失败: %v", err)
	}
	if full.ID == 0 || full.Kind != models.TextMessage {
		t.Fatalf("消息未正确落库: %+v", full.Message)
	}
	if full.SenderInfo == nil || full.SenderInfo.UserName != "alice" {
		t.Fatalf("应附带发送者展示属性: %+v", full.SenderInfo)
	}

	// 会话已创建且参与者按规范顺序存储
	conv, err := f.convs.FindByParticipants(ctx, f.bob.ID, f.alice.ID)
	if err != nil || conv == nil {
		t.Fatalf("会话应已创建")
	}
	if conv.UserID1 >= conv.UserID2 {
		t.Fatalf("参与者对应按规范顺序存储: (%d, %d)", conv.UserID1, conv.UserID2)
	}
	if conv.LastMessageID == nil || *conv.LastMessageID != full.ID {
		t.Fatalf("last_message 指针应指向新消息")
	}

	// 在线接收者收到 receive_message
	events := f.deliverer.deliveredTo(f.bob.ID)
	if len(events) != 1 || events[0].Type != chat.EventReceiveMessage {
		t.Fatalf("接收者应收到一条 receive_message，得到 %v", events)
	}
}

func TestCreateMessageOfflineReceiverStillPersists(t *testing.T) {
	f := newMessageFixture(t) // 无人在线
	ctx := context.Background()

	full, err := f.service.CreateMessage(ctx, CreateMessageInput{
		SenderID:   f.alice.ID,
		ReceiverID: f.bob.ID,
		Body:       "离线也要到",
	})
	if err != nil {
		t.Fatalf("接收者离线不应导致创建失败: %v", err)
	}
	if _, err := f.messages.GetByID(ctx, full.ID); err != nil {
		t.Fatalf("消息应已落库: %v", err)
	}
}

func TestCreateMessageRequiresMutualFollow(t *testing.T) {
	f := newMessageFixture(t)
	carol := f.users.addUser("carol")
	// alice 单方面关注 carol
	f.follows.Create(context.Background(), &models.Follow{FollowerID: f.alice.ID, FolloweeID: carol.ID})

	_, err := f.service.CreateMessage(context.Background(), CreateMessageInput{
		SenderID:   f.alice.ID,
		ReceiverID: carol.ID,
		Body:       "不该送达",
	})
	if !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("未互相关注应返回 ErrNotAuthorized，得到 %v", err)
	}
}

func TestCreateMessageValidation(t *testing.T) {
	f := newMessageFixture(t)
	ctx := context.Background()

	if _, err := f.service.CreateMessage(ctx, CreateMessageInput{
		SenderID: f.alice.ID, ReceiverID: f.alice.ID, Body: "自言自语",
	}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("给自己发消息应返回 ErrInvalidInput，得到 %v", err)
	}

	if _, err := f.service.CreateMessage(ctx, CreateMessageInput{
		SenderID: f.alice.ID, ReceiverID: f.bob.ID, Body: "   ",
	}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("空内容应返回 ErrInvalidInput，得到 %v", err)
	}

	if _, err := f.service.CreateMessage(ctx, CreateMessageInput{
		SenderID: f.alice.ID, ReceiverID: 999, Body: "查无此人",
	}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("接收者不存在应返回 ErrNotFound，得到 %v", err)
	}

	// 发送者不存在同样是 NotFound，而不是落到关注判定的 NotAuthorized
	if _, err := f.service.CreateMessage(ctx, CreateMessageInput{
		SenderID: 999, ReceiverID: f.bob.ID, Body: "幽灵发送者",
	}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("发送者不存在应返回 ErrNotFound，得到 %v", err)
	}
}

func TestGetConversationMessagesFiltersHidden(t *testing.T) {
	f := newMessageFixture(t)
	ctx := context.Background()

	first, _ := f.service.CreateMessage(ctx, CreateMessageInput{SenderID: f.alice.ID, ReceiverID: f.bob.ID, Body: "一"})
	second, _ := f.service.CreateMessage(ctx, CreateMessageInput{SenderID: f.bob.ID, ReceiverID: f.alice.ID, Body: "二"})

	// alice 为自己删除第一条
	deletion := NewDeletionService(f.messages, f.deliverer)
	if err := deletion.DeleteForViewer(ctx, first.ID, f.alice.ID); err != nil {
		t.Fatalf("为我删除失败: %v", err)
	}

	aliceView, err := f.service.GetConversationMessages(ctx, f.alice.ID, f.bob.ID)
	if err != nil {
		t.Fatalf("读取历史失败: %v", err)
	}
	if len(aliceView) != 1 || aliceView[0].ID != second.ID {
		t.Fatalf("alice 应只看到第二条消息，得到 %d 条", len(aliceView))
	}

	bobView, _ := f.service.GetConversationMessages(ctx, f.bob.ID, f.alice.ID)
	if len(bobView) != 2 {
		t.Fatalf("bob 的视图不应受影响，得到 %d 条", len(bobView))
	}
}

func TestGetConversationMessagesNoConversation(t *testing.T) {
	f := newMessageFixture(t)

	messages, err := f.service.GetConversationMessages(context.Background(), f.alice.ID, f.bob.ID)
	if err != nil {
		t.Fatalf("无会话时不应报错: %v", err)
	}
	if len(messages) != 0 {
		t.Fatalf("无会话时应返回空列表")
	}
}

func TestClearChatForViewerHidesAllAndIsIdempotent(t *testing.T) {
	f := newMessageFixture(t)
	ctx := context.Background()

	f.service.CreateMessage(ctx, CreateMessageInput{SenderID: f.alice.ID, ReceiverID: f.bob.ID, Body: "一"})
	f.service.CreateMessage(ctx, CreateMessageInput{SenderID: f.bob.ID, ReceiverID: f.alice.ID, Body: "二"})

	if err := f.service.ClearChatForViewer(ctx, f.alice.ID, f.bob.ID); err != nil {
		t.Fatalf("清空聊天失败: %v", err)
	}
	if err := f.service.ClearChatForViewer(ctx, f.alice.ID, f.bob.ID); err != nil {
		t.Fatalf("重复清空应幂等: %v", err)
	}

	aliceView, _ := f.service.GetConversationMessages(ctx, f.alice.ID, f.bob.ID)
	if len(aliceView) != 0 {
		t.Fatalf("清空后 alice 不应看到任何消息，得到 %d 条", len(aliceView))
	}
	bobView, _ := f.service.GetConversationMessages(ctx, f.bob.ID, f.alice.ID)
	if len(bobView) != 2 {
		t.Fatalf("对端视图不应受影响，得到 %d 条", len(bobView))
	}
}

func TestListConversationsWithLastMessage(t *testing.T) {
	f := newMessageFixture(t)
	ctx := context.Background()

	f.service.CreateMessage(ctx, CreateMessageInput{SenderID: f.alice.ID, ReceiverID: f.bob.ID, Body: "最后一条"})

	previews, err := f.service.ListConversationsWithLastMessage(ctx, f.alice.ID)
	if err != nil {
		t.Fatalf("读取会话列表失败: %v", err)
	}
	if len(previews) != 1 {
		t.Fatalf("应有一个会话，得到 %d", len(previews))
	}
	if previews[0].Counterpart == nil || previews[0].Counterpart.ID != f.bob.ID {
		t.Fatalf("会话项应附带对端身份: %+v", previews[0].Counterpart)
	}
}

// 端到端：真实的注册表 + hub，同步创建路径把消息送到在线接收者的连接上。
func TestCreateMessageDeliversThroughRealHub(t *testing.T) {
	users := newFakeUserRepo()
	follows := newFakeFollowRepo()
	alice := users.addUser("alice")
	bob := users.addUser("bob")
	follows.addMutual(alice.ID, bob.ID)

	hub := chat.NewHub(NewPresenceService(users, nil))
	bobConn := newFakeChatConn(bob.ID)
	hub.Register(context.Background(), bobConn)

	service := NewMessageService(newFakeMessageRepo(), newFakeConversationRepo(), users, follows, fakeTxManager{}, hub)

	_, err := service.CreateMessage(context.Background(), CreateMessageInput{
		SenderID:   alice.ID,
		ReceiverID: bob.ID,
		Body:       "hi",
	})
	if err != nil {
		t.Fatalf("创建消息失败: %v", err)
	}

	var received []chat.Envelope
	for _, ev := range bobConn.sentEvents() {
		if ev.Type == chat.EventReceiveMessage {
			received = append(received, ev)
		}
	}
	if len(received) != 1 {
		t.Fatalf("bob 的连接应恰好收到一条 receive_message，得到 %d", len(received))
	}
}
