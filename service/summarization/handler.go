package summarization

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"math-tutor-backend/service/mq"

	"github.com/apache/rocketmq-client-go/v2/primitive"
)

// HandleSummaryMessage 消费 MQ 中的摘要任务
// 模型失败或会话状态不符时放弃该任务，只有数据库等基础设施错误才重新投递
func (s *Summarizer) HandleSummaryMessage(ctx context.Context, msg *primitive.MessageExt) error {
	var summaryMessage mq.SummaryMessage
	if err := json.Unmarshal(msg.Body, &summaryMessage); err != nil {
		slog.Error("Failed to unmarshal summary message", "msg_id", msg.MsgId, "err", err)
		return nil
	}

	err := s.Summarize(ctx, summaryMessage.SessionID)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrAnalysisFailed),
		errors.Is(err, ErrSessionOpen),
		errors.Is(err, ErrSessionNotFound):
		slog.Warn("Summary task abandoned",
			"session_id", summaryMessage.SessionID,
			"err", err,
		)
		return nil
	default:
		return fmt.Errorf("failed to summarize session %s: %w", summaryMessage.SessionID, err)
	}
}
