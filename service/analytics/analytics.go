package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"math-tutor-backend/dao"
	"math-tutor-backend/model"
)

// StudentStats 一名学生在一组会话上的汇总
type StudentStats struct {
	StudentID string `json:"student_id"`

	Attempts          int `json:"attempts"`
	CompletedSessions int `json:"completed_sessions"`
	MessageCount      int `json:"message_count"`

	// 只统计已结束的会话
	TotalDuration time.Duration `json:"-"`

	Errors      model.ErrorCounts           `json:"errors"`
	Percentages map[model.ErrorKind]float64 `json:"percentages"`

	LastActivity *time.Time `json:"last_activity"`
}

func (s *StudentStats) TotalDurationSeconds() int64 {
	return int64(s.TotalDuration / time.Second)
}

// Aggregate 汇总会话的错误统计、时长与消息数
func Aggregate(studentID string, sessions []model.Session, messageCounts map[string]int) StudentStats {
	stats := StudentStats{
		StudentID: studentID,
		Errors:    model.ErrorCounts{},
	}

	for i := range sessions {
		session := &sessions[i]
		stats.Attempts++
		stats.MessageCount += messageCounts[session.SessionID]

		if session.Ended() {
			stats.CompletedSessions++
			stats.TotalDuration += session.Duration()
		}

		activity := session.StartTime
		if session.EndTime != nil && session.EndTime.After(activity) {
			activity = *session.EndTime
		}
		if stats.LastActivity == nil || activity.After(*stats.LastActivity) {
			stats.LastActivity = &activity
		}

		summary, err := session.Summary()
		if err != nil {
			slog.Warn("Skipping unreadable summary",
				"session_id", session.SessionID,
				"err", err,
			)
			continue
		}
		if summary != nil {
			stats.Errors.Add(summary.ErrorAnalysis)
		}
	}

	stats.Percentages = stats.Errors.Percentages()
	return stats
}

// ForStudent 统计单个学生，exerciseID 非空时只统计该练习
func ForStudent(ctx context.Context, studentID string, exerciseID *uint) (*StudentStats, error) {
	sessions, err := dao.ListSessions(ctx, dao.SessionFilter{
		StudentIDs: []string{studentID},
		ExerciseID: exerciseID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	counts, err := dao.CountMessages(ctx, sessionIDs(sessions))
	if err != nil {
		return nil, fmt.Errorf("failed to count messages: %w", err)
	}

	stats := Aggregate(studentID, sessions, counts)
	return &stats, nil
}

type ClassStats struct {
	Students []StudentStats `json:"students"`

	// 全班合计
	Total StudentStats `json:"total"`
}

// ForClass 按名单统计每个学生及全班合计，名单中没有会话的学生也会出现
func ForClass(ctx context.Context, roster []string, exerciseID *uint) (*ClassStats, error) {
	result := &ClassStats{
		Students: make([]StudentStats, 0, len(roster)),
	}
	if len(roster) == 0 {
		result.Total = Aggregate("", nil, nil)
		return result, nil
	}

	sessions, err := dao.ListSessions(ctx, dao.SessionFilter{
		StudentIDs: roster,
		ExerciseID: exerciseID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	counts, err := dao.CountMessages(ctx, sessionIDs(sessions))
	if err != nil {
		return nil, fmt.Errorf("failed to count messages: %w", err)
	}

	byStudent := make(map[string][]model.Session, len(roster))
	for _, session := range sessions {
		byStudent[session.StudentID] = append(byStudent[session.StudentID], session)
	}

	seen := make(map[string]bool, len(roster))
	for _, studentID := range roster {
		if seen[studentID] {
			continue
		}
		seen[studentID] = true
		result.Students = append(result.Students, Aggregate(studentID, byStudent[studentID], counts))
	}

	result.Total = Aggregate("", sessions, counts)
	return result, nil
}

func sessionIDs(sessions []model.Session) []string {
	ids := make([]string, 0, len(sessions))
	for _, s := range sessions {
		ids = append(ids, s.SessionID)
	}
	return ids
}
