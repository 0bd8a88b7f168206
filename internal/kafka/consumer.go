package kafka

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"zeechat/internal/config"
)

// MessageHandler processes one consumed Kafka message.
type MessageHandler func(ctx context.Context, msg *kafka.Message) error

// EventConsumer consumes outbound-event payloads from Kafka topics.
type EventConsumer interface {
	Consume(ctx context.Context, topics []string, groupID string, handler MessageHandler) error
	Close()
}

// confluentKafkaConsumer implements EventConsumer using confluent-kafka-go.
type confluentKafkaConsumer struct {
	consumer *kafka.Consumer
	cfg      config.KafkaConfig
	groupID  string
}

// NewConfluentKafkaConsumer creates a new Kafka consumer instance.
// 消费者在 Consume 调用时才真正建立连接。
func NewConfluentKafkaConsumer(cfg config.KafkaConfig) (EventConsumer, error) {
	return &confluentKafkaConsumer{cfg: cfg}, nil
}

// Consume blocks, polling the topics until the context is canceled or a
// fatal error occurs. 每条消息处理成功后手动提交偏移量。
func (c *confluentKafkaConsumer) Consume(ctx context.Context, topics []string, groupID string, handler MessageHandler) error {
	if len(topics) == 0 {
		return fmt.Errorf("kafka 消费者未指定 topic")
	}
	c.groupID = groupID

	configMap := &kafka.ConfigMap{
		"bootstrap.servers":  strings.Join(c.cfg.Brokers, ","),
		"group.id":           c.groupID,
		"auto.offset.reset":  "latest", // 中继只关心新事件，错过的事件重放没有意义
		"enable.auto.commit": "false",
		"security.protocol":  c.cfg.Protocol,
	}
	if c.cfg.ClientID != "" {
		_ = configMap.SetKey("client.id", c.cfg.ClientID)
	}

	consumer, err := kafka.NewConsumer(configMap)
	if err != nil {
		return fmt.Errorf("创建 Kafka 消费者失败 (group %s): %w", groupID, err)
	}
	c.consumer = consumer

	if err := c.consumer.SubscribeTopics(topics, nil); err != nil {
		_ = c.consumer.Close()
		return fmt.Errorf("订阅 topics %v 失败 (group %s): %w", topics, groupID, err)
	}

	log.Printf("Kafka 消费者已启动，GroupID: %s, Topics: %v", groupID, topics)

	run := true
	for run {
		select {
		case <-ctx.Done():
			log.Printf("消费者组 %s 的上下文已取消，退出。", groupID)
			run = false
		default:
			ev := c.consumer.Poll(1000)
			if ev == nil {
				continue
			}

			switch e := ev.(type) {
			case *kafka.Message:
				if err := handler(ctx, e); err != nil {
					log.Printf("处理 Kafka 消息失败 (group %s, topic %s, offset %v): %v",
						groupID, *e.TopicPartition.Topic, e.TopicPartition.Offset, err)
				} else {
					if _, err := c.consumer.CommitMessage(e); err != nil {
						log.Printf("提交偏移量失败 (group %s, topic %s, offset %v): %v",
							groupID, *e.TopicPartition.Topic, e.TopicPartition.Offset, err)
					}
				}
			case kafka.Error:
				log.Printf("Kafka 消费者错误 (group %s): %v (Fatal: %t)", groupID, e, e.IsFatal())
				if e.IsFatal() {
					return e
				}
			case kafka.AssignedPartitions:
				c.consumer.Assign(e.Partitions)
			case kafka.RevokedPartitions:
				c.consumer.Unassign()
			}
		}
	}
	log.Printf("消费者组 %s 的消费循环结束。", groupID)
	return nil
}

// Close closes the Kafka consumer.
func (c *confluentKafkaConsumer) Close() {
	if c.consumer == nil {
		return
	}
	if err := c.consumer.Close(); err != nil {
		log.Printf("关闭 Kafka 消费者失败 (group %s): %v", c.groupID, err)
	}
	c.consumer = nil
}
