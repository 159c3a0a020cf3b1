package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/apache/rocketmq-client-go/v2"
	c "github.com/apache/rocketmq-client-go/v2/consumer"
	"github.com/apache/rocketmq-client-go/v2/primitive"
	"github.com/apache/rocketmq-client-go/v2/producer"
	"github.com/apache/rocketmq-client-go/v2/rlog"
	"github.com/avast/retry-go/v4"
)

const (
	TopicSessionSummary = "topic_session_summary"
	TagSummarize        = "tag_summarize"

	consumeGroupSessionSummary = "cg_session_summary"

	sendMessageAttempts  = 3
	maxReconsumeTimes    = 5
	consumeGoroutineNums = 10
)

var (
	// 全局生产者
	producerInstance rocketmq.Producer

	// 会话摘要消费者
	consumerSessionSummary rocketmq.PushConsumer

	// 消息处理器表
	handlers = make(map[string]MessageHandler)
)

type MessageHandler func(context.Context, *primitive.MessageExt) error

type Message struct {
	Topic   string
	Tag     string
	Payload any
}

// SummaryMessage 会话结束后投递的摘要任务
type SummaryMessage struct {
	SessionID string `json:"session_id"`
}

// Init 创建生产者和消费者，需在 Run 和 SendMessage 之前调用
func Init(nameServer string) error {
	// 设置RocketMQ客户端（使用rlog）的日志级别
	rlog.SetLogLevel("warn")

	var err error
	consumerSessionSummary, err = rocketmq.NewPushConsumer(
		c.WithNameServer([]string{nameServer}),
		c.WithGroupName(consumeGroupSessionSummary),
		c.WithConsumerModel(c.Clustering),
		c.WithConsumeFromWhere(c.ConsumeFromLastOffset),
		c.WithMaxReconsumeTimes(maxReconsumeTimes),
		c.WithConsumeGoroutineNums(consumeGoroutineNums),
	)
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	producerInstance, err = rocketmq.NewProducer(
		producer.WithNameServer([]string{nameServer}),
		producer.WithRetry(2),
	)
	if err != nil {
		return fmt.Errorf("failed to create producer: %w", err)
	}
	return nil
}

// Run 注册摘要消息处理器并启动生产者和消费者
func Run(summaryHandler MessageHandler) error {
	if err := registerHandler(consumerSessionSummary, TopicSessionSummary, TagSummarize, summaryHandler); err != nil {
		return fmt.Errorf("failed to register handler, topic: %s, tag: %s, err: %w", TopicSessionSummary, TagSummarize, err)
	}

	if err := producerInstance.Start(); err != nil {
		return fmt.Errorf("failed to start producer: %w", err)
	}

	if err := consumerSessionSummary.Start(); err != nil {
		return fmt.Errorf("failed to start consumer: %w", err)
	}
	return nil
}

// registerHandler 注册消息处理器
func registerHandler(consumer rocketmq.PushConsumer, topic string, tag string, handler MessageHandler) error {
	handlers[topic] = handler

	selector := c.MessageSelector{}
	if tag != "" {
		selector = c.MessageSelector{
			Type:       c.TAG,
			Expression: tag,
		}
	}

	err := consumer.Subscribe(topic, selector, func(ctx context.Context, messages ...*primitive.MessageExt) (c.ConsumeResult, error) {
		return dispatchMessages(ctx, messages)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to topic %s: %w", topic, err)
	}

	return nil
}

func dispatchMessages(ctx context.Context, messages []*primitive.MessageExt) (c.ConsumeResult, error) {
	for _, msg := range messages {
		h := handlers[msg.Topic]
		if h == nil {
			slog.Warn("No message handler found for topic", "topic", msg.Topic)
			continue
		}

		if err := h(ctx, msg); err != nil {
			slog.Error("Failed to process message",
				"topic", msg.Topic,
				"msg_id", msg.MsgId,
				"reconsume_times", msg.ReconsumeTimes,
				"err", err)
			return c.ConsumeRetryLater, err
		}
	}
	return c.ConsumeSuccess, nil
}

// SendMessage 向MQ发送消息
func SendMessage(ctx context.Context, message *Message) error {
	payloadJSON, err := json.Marshal(message.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	msg := primitive.NewMessage(message.Topic, payloadJSON)
	if message.Tag != "" {
		msg = msg.WithTag(message.Tag)
	}

	err = retry.Do(
		func() error {
			_, err := producerInstance.SendSync(ctx, msg)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(sendMessageAttempts),
		retry.DelayType(retry.BackOffDelay),
		retry.OnRetry(func(n uint, err error) {
			slog.Warn("Retrying to send message",
				"attempt", n+1,
				"topic", msg.Topic,
				"err", err)
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to send message to topic %s after retries: %w", msg.Topic, err)
	}

	return nil
}

// SummaryDispatcher 通过 MQ 投递摘要任务，多实例部署时使用
type SummaryDispatcher struct{}

func (SummaryDispatcher) Dispatch(ctx context.Context, sessionID string) error {
	return SendMessage(ctx, &Message{
		Topic:   TopicSessionSummary,
		Tag:     TagSummarize,
		Payload: SummaryMessage{SessionID: sessionID},
	})
}

// Shutdown 关闭MQ服务
func Shutdown() {
	if producerInstance != nil {
		producerInstance.Shutdown()
	}
	if consumerSessionSummary != nil {
		consumerSessionSummary.Shutdown()
	}
}
