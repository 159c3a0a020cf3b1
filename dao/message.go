package dao

import (
	"context"
	"errors"
	"time"

	"math-tutor-backend/model"

	"gorm.io/gorm"
)

// 消息时间戳精度，与 MySQL datetime(3) 一致
const timestampPrecision = time.Millisecond

// AppendMessage 追加一条消息，时间戳在会话内严格递增
func AppendMessage(ctx context.Context, msg *model.Message) error {
	return DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var last model.Message
		err := tx.Select("timestamp").
			Where("session_id = ?", msg.SessionID).
			Order("timestamp DESC").
			First(&last).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		ts := time.Now().UTC().Truncate(timestampPrecision)
		if err == nil && !ts.After(last.Timestamp) {
			ts = last.Timestamp.Add(timestampPrecision)
		}
		msg.Timestamp = ts

		return tx.Create(msg).Error
	})
}

func GetMessagesBySessionID(ctx context.Context, sessionID string) ([]model.Message, error) {
	var messages []model.Message
	if err := DB.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("timestamp ASC, id ASC").
		Find(&messages).Error; err != nil {
		return nil, err
	}
	return messages, nil
}

// CountMessages 统计每个会话的消息数
func CountMessages(ctx context.Context, sessionIDs []string) (map[string]int, error) {
	counts := make(map[string]int, len(sessionIDs))
	if len(sessionIDs) == 0 {
		return counts, nil
	}

	var rows []struct {
		SessionID string
		Total     int
	}
	if err := DB.WithContext(ctx).
		Model(&model.Message{}).
		Select("session_id, COUNT(*) AS total").
		Where("session_id IN ?", sessionIDs).
		Group("session_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	for _, row := range rows {
		counts[row.SessionID] = row.Total
	}
	return counts, nil
}
