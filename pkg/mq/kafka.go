// Package mq 提供 Kafka producer/consumer 通用实现，支持重试与死信队列
package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/wyfcoding/optionpricer/pkg/logger"
)

// KafkaConfig Kafka 配置
type KafkaConfig struct {
	Brokers        []string
	GroupID        string
	SessionTimeout int
	MaxRetries     int
	RetryBackoff   int
}

// MessageWriter kafka.Writer 的最小接口
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// MessageReader kafka.Reader 的最小接口
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaProducer Kafka 生产者
type KafkaProducer struct {
	writer MessageWriter
}

// NewProducer 创建 Kafka 生产者
func NewProducer(cfg KafkaConfig) *KafkaProducer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		Compression:            kafka.Gzip,
		RequiredAcks:           kafka.RequireAll, // 等待所有副本确认
		MaxAttempts:            cfg.MaxRetries,
		WriteBackoffMin:        time.Duration(cfg.RetryBackoff) * time.Millisecond,
		WriteBackoffMax:        time.Duration(cfg.RetryBackoff*10) * time.Millisecond,
	}

	logger.Info(context.Background(), "Kafka producer created successfully", "brokers", cfg.Brokers)
	return NewProducerWithWriter(writer)
}

// NewProducerWithWriter 使用指定 writer 创建生产者
func NewProducerWithWriter(w MessageWriter) *KafkaProducer {
	return &KafkaProducer{writer: w}
}

// SendMessage 发送单条 JSON 消息
func (kp *KafkaProducer) SendMessage(ctx context.Context, topic string, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: data,
		Time:  time.Now(),
	}

	if err := kp.writer.WriteMessages(ctx, msg); err != nil {
		logger.Error(ctx, "Failed to send Kafka message",
			"topic", topic,
			"key", key,
			"error", err,
		)
		return err
	}

	logger.Debug(ctx, "Kafka message sent",
		"topic", topic,
		"key", key,
	)
	return nil
}

// Close 关闭生产者
func (kp *KafkaProducer) Close() error {
	return kp.writer.Close()
}

// Message Kafka 消息结构
type Message struct {
	Topic     string
	Partition int
	Offset    int64
	Key       string
	Value     []byte
	Time      time.Time

	raw kafka.Message
}

// UnmarshalPayload 将消息值解析为 JSON
func (m *Message) UnmarshalPayload(dest any) error {
	return json.Unmarshal(m.Value, dest)
}

// Handler 消息处理函数
type Handler func(ctx context.Context, msg *Message) error

// KafkaConsumer Kafka 消费者
type KafkaConsumer struct {
	reader MessageReader
	topic  string
}

// NewConsumer 创建 Kafka 消费者
func NewConsumer(cfg KafkaConfig, topic string) *KafkaConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          topic,
		GroupID:        cfg.GroupID,
		SessionTimeout: time.Duration(cfg.SessionTimeout) * time.Second,
		StartOffset:    kafka.LastOffset,
		MaxBytes:       10e6, // 10MB
	})

	logger.Info(context.Background(), "Kafka consumer created successfully",
		"brokers", cfg.Brokers,
		"topic", topic,
		"group_id", cfg.GroupID,
	)
	return NewConsumerWithReader(reader, topic)
}

// NewConsumerWithReader 使用指定 reader 创建消费者
func NewConsumerWithReader(r MessageReader, topic string) *KafkaConsumer {
	return &KafkaConsumer{reader: r, topic: topic}
}

// Consume 循环读取并处理消息，直到 ctx 结束或读取失败
// 处理失败的消息写入死信队列（dlq 可为 nil），然后提交偏移量
func (kc *KafkaConsumer) Consume(ctx context.Context, handle Handler, dlq *DeadLetterQueue) error {
	for {
		raw, err := kc.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Error(ctx, "Failed to fetch Kafka message", "topic", kc.topic, "error", err)
			return err
		}

		msg := &Message{
			Topic:     raw.Topic,
			Partition: raw.Partition,
			Offset:    raw.Offset,
			Key:       string(raw.Key),
			Value:     raw.Value,
			Time:      raw.Time,
			raw:       raw,
		}

		if herr := handle(ctx, msg); herr != nil {
			logger.Warn(ctx, "Kafka message handling failed",
				"topic", msg.Topic,
				"offset", msg.Offset,
				"error", herr,
			)
			if dlq != nil {
				if derr := dlq.Send(ctx, msg, "handler_failed", herr); derr != nil {
					return fmt.Errorf("dead letter send failed: %w", errors.Join(herr, derr))
				}
			}
		}

		if err := kc.reader.CommitMessages(ctx, msg.raw); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Error(ctx, "Failed to commit Kafka message", "offset", msg.Offset, "error", err)
			return err
		}
	}
}

// Close 关闭消费者
func (kc *KafkaConsumer) Close() error {
	return kc.reader.Close()
}

// DeadLetterQueue 死信队列
type DeadLetterQueue struct {
	producer *KafkaProducer
	topic    string
}

// NewDeadLetterQueue 创建死信队列
func NewDeadLetterQueue(producer *KafkaProducer, topic string) *DeadLetterQueue {
	return &DeadLetterQueue{
		producer: producer,
		topic:    topic,
	}
}

// Send 发送消息到死信队列
func (dlq *DeadLetterQueue) Send(ctx context.Context, originalMessage *Message, reason string, err error) error {
	deadLetterMsg := map[string]any{
		"original_topic":    originalMessage.Topic,
		"original_key":      originalMessage.Key,
		"original_value":    string(originalMessage.Value),
		"original_offset":   originalMessage.Offset,
		"original_time":     originalMessage.Time,
		"failure_reason":    reason,
		"failure_error":     err.Error(),
		"failure_timestamp": time.Now(),
	}

	return dlq.producer.SendMessage(ctx, dlq.topic, originalMessage.Key, deadLetterMsg)
}
