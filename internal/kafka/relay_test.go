package kafka

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	ckafka "github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"zeechat/internal/chat"
	"zeechat/internal/config"
)

func consumedMessage(payload []byte) *ckafka.Message {
	topic := "outgoing-events"
	return &ckafka.Message{
		TopicPartition: ckafka.TopicPartition{Topic: &topic},
		Value:          payload,
	}
}

type nopPresenceStore struct{}

func (nopPresenceStore) MarkOnline(ctx context.Context, userID uint) error  { return nil }
func (nopPresenceStore) MarkOffline(ctx context.Context, userID uint) error { return nil }
func (nopPresenceStore) Touch(ctx context.Context, userID uint) error       { return nil }

type fakeProducer struct {
	mu   sync.Mutex
	sent []sentRecord
}

type sentRecord struct {
	topic   string
	key     string
	payload []byte
}

func (p *fakeProducer) SendMessage(ctx context.Context, topic string, key []byte, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, sentRecord{topic: topic, key: string(key), payload: payload})
	return nil
}

func (p *fakeProducer) Close() {}

func (p *fakeProducer) sentRecords() []sentRecord {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]sentRecord, len(p.sent))
	copy(out, p.sent)
	return out
}

type fakePresenceChecker struct {
	online map[uint]bool
}

func (c *fakePresenceChecker) IsOnline(ctx context.Context, userID uint) (bool, error) {
	return c.online[userID], nil
}

type recordingConn struct {
	userID uint
	mu     sync.Mutex
	alive  bool
	sent   []chat.Envelope
}

func (c *recordingConn) UserID() uint { return c.userID }

func (c *recordingConn) Alive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.alive
}

func (c *recordingConn) SetAlive(alive bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.alive = alive
}

func (c *recordingConn) TrySend(ev chat.Envelope) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, ev)
	return true
}

func (c *recordingConn) Ping() error { return nil }
func (c *recordingConn) Close()      {}

func relayConfig() config.KafkaConfig {
	return config.KafkaConfig{OutgoingEventsTopic: "outgoing-events"}
}

func TestRelayDelivererLocalDeliveryShortCircuits(t *testing.T) {
	hub := chat.NewHub(nopPresenceStore{})
	conn := &recordingConn{userID: 1, alive: true}
	hub.Register(context.Background(), conn)

	producer := &fakeProducer{}
	d := NewRelayDeliverer(hub, producer, nil, relayConfig())

	if !d.DeliverTo(1, chat.UserTyping(2)) {
		t.Fatalf("本地在线用户的投递应成功")
	}
	if len(producer.sentRecords()) != 0 {
		t.Fatalf("本地投递成功时不应发布到 Kafka")
	}
}

func TestRelayDelivererPublishesForRemoteUser(t *testing.T) {
	hub := chat.NewHub(nopPresenceStore{})
	producer := &fakeProducer{}
	checker := &fakePresenceChecker{online: map[uint]bool{7: true}}
	d := NewRelayDeliverer(hub, producer, checker, relayConfig())

	// 用户 7 不在本实例，但镜像显示其在别处在线
	if d.DeliverTo(7, chat.UserTyping(1)) {
		t.Fatalf("发布到中继不等于投递成功")
	}

	records := producer.sentRecords()
	if len(records) != 1 {
		t.Fatalf("应发布一条中继事件，得到 %d", len(records))
	}
	if records[0].topic != "outgoing-events" || records[0].key != "7" {
		t.Fatalf("中继事件应以接收者为键发布到出站 topic: %+v", records[0])
	}

	var relayed relayEvent
	if err := json.Unmarshal(records[0].payload, &relayed); err != nil {
		t.Fatalf("中继载荷应可解析: %v", err)
	}
	if relayed.UserID != 7 || relayed.Event.Type != chat.EventUserTyping {
		t.Fatalf("中继载荷不符: %+v", relayed)
	}
}

func TestRelayDelivererSkipsGloballyOfflineUser(t *testing.T) {
	hub := chat.NewHub(nopPresenceStore{})
	producer := &fakeProducer{}
	checker := &fakePresenceChecker{online: map[uint]bool{}}
	d := NewRelayDeliverer(hub, producer, checker, relayConfig())

	if d.DeliverTo(9, chat.UserTyping(1)) {
		t.Fatalf("全局离线用户的投递应返回 false")
	}
	if len(producer.sentRecords()) != 0 {
		t.Fatalf("镜像显示全局离线时不应发布事件")
	}
}

func TestRelayHandlerReplaysIntoHub(t *testing.T) {
	hub := chat.NewHub(nopPresenceStore{})
	conn := &recordingConn{userID: 3, alive: true}
	hub.Register(context.Background(), conn)

	payload, _ := json.Marshal(relayEvent{UserID: 3, Event: chat.UserOnline(5)})
	handler := NewRelayHandler(hub)

	msg := consumedMessage(payload)
	if err := handler(context.Background(), msg); err != nil {
		t.Fatalf("重放中继事件失败: %v", err)
	}

	conn.mu.Lock()
	defer conn.mu.Unlock()
	if len(conn.sent) != 1 || conn.sent[0].Type != chat.EventUserOnline {
		t.Fatalf("本地连接应收到重放的事件，得到 %v", conn.sent)
	}
}

func TestRelayHandlerRejectsMalformedPayload(t *testing.T) {
	handler := NewRelayHandler(chat.NewHub(nopPresenceStore{}))
	if err := handler(context.Background(), consumedMessage([]byte("{not json"))); err == nil {
		t.Fatalf("非法载荷应报错")
	}
}
