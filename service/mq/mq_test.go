package mq

import (
	"context"
	"errors"
	"testing"

	c "github.com/apache/rocketmq-client-go/v2/consumer"
	"github.com/apache/rocketmq-client-go/v2/primitive"
	"github.com/stretchr/testify/assert"
)

func TestDispatchMessages(t *testing.T) {
	var handled []string
	handlers[TopicSessionSummary] = func(ctx context.Context, msg *primitive.MessageExt) error {
		handled = append(handled, string(msg.Body))
		if string(msg.Body) == "fail" {
			return errors.New("db down")
		}
		return nil
	}
	t.Cleanup(func() { delete(handlers, TopicSessionSummary) })

	msg := func(topic, body string) *primitive.MessageExt {
		return &primitive.MessageExt{Message: primitive.Message{Topic: topic, Body: []byte(body)}}
	}

	result, err := dispatchMessages(context.Background(), []*primitive.MessageExt{
		msg(TopicSessionSummary, "a"),
		msg("unknown_topic", "ignored"),
		msg(TopicSessionSummary, "b"),
	})
	assert.NoError(t, err)
	assert.Equal(t, c.ConsumeSuccess, result)
	assert.Equal(t, []string{"a", "b"}, handled)

	result, err = dispatchMessages(context.Background(), []*primitive.MessageExt{
		msg(TopicSessionSummary, "fail"),
	})
	assert.Error(t, err)
	assert.Equal(t, c.ConsumeRetryLater, result)
}
