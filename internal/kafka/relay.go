package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"

	ckafka "github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"zeechat/internal/chat"
	"zeechat/internal/config"
)

// relayEvent 是跨实例中继的载荷：目标用户加原始出站信封。
// 以接收者 ID 作为分区键，保证同一用户的事件有序。
type relayEvent struct {
	UserID uint          `json:"userId"`
	Event  chat.Envelope `json:"event"`
}

// PresenceChecker 回答用户是否在任一实例上在线，
// 由 Redis 在线镜像实现。
type PresenceChecker interface {
	IsOnline(ctx context.Context, userID uint) (bool, error)
}

// RelayDeliverer 在多实例部署下扩展 Hub 的投递范围：本实例投递不到的
// 接收者，事件发布到出站 topic，由持有该用户连接的实例消费后投递。
// 对同步路径而言它是普通的 LiveDeliverer，投递失败从不上抛。
type RelayDeliverer struct {
	hub      *chat.Hub
	producer EventProducer
	presence PresenceChecker
	topic    string
}

// NewRelayDeliverer creates a RelayDeliverer over the hub and producer.
// presence 可为 nil，此时本实例投递不到的事件一律发布。
func NewRelayDeliverer(hub *chat.Hub, producer EventProducer, presence PresenceChecker, cfg config.KafkaConfig) *RelayDeliverer {
	return &RelayDeliverer{hub: hub, producer: producer, presence: presence, topic: cfg.OutgoingEventsTopic}
}

// DeliverTo delivers locally when possible and otherwise publishes the
// event for whichever instance holds the user's connection.
// 镜像显示用户全局离线时不发布，省掉注定无人消费的事件。
func (d *RelayDeliverer) DeliverTo(userID uint, ev chat.Envelope) bool {
	if d.hub.DeliverTo(userID, ev) {
		return true
	}

	if d.presence != nil {
		online, err := d.presence.IsOnline(context.Background(), userID)
		if err != nil {
			// 查询失败时照常发布，宁可多发不可漏发
			log.Printf("查询用户 %d 的在线镜像失败: %v", userID, err)
		} else if !online {
			return false
		}
	}

	payload, err := json.Marshal(relayEvent{UserID: userID, Event: ev})
	if err != nil {
		log.Printf("序列化中继事件 %s 失败: %v", ev.Type, err)
		return false
	}
	key := []byte(strconv.FormatUint(uint64(userID), 10))
	if err := d.producer.SendMessage(context.Background(), d.topic, key, payload); err != nil {
		log.Printf("发布中继事件 %s 给用户 %d 失败: %v", ev.Type, userID, err)
		return false
	}
	// 已发布，不代表任何实例最终投递成功
	return false
}

// NewRelayHandler returns the consume handler that replays relayed events
// into the local hub. 目标用户不在本实例时静默忽略。
func NewRelayHandler(hub *chat.Hub) MessageHandler {
	return func(ctx context.Context, msg *ckafka.Message) error {
		var relayed relayEvent
		if err := json.Unmarshal(msg.Value, &relayed); err != nil {
			return fmt.Errorf("解析中继事件失败: %w", err)
		}
		hub.DeliverTo(relayed.UserID, relayed.Event)
		return nil
	}
}
