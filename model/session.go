package model

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

type SessionStatus string

const (
	SessionStatusInProgress SessionStatus = "in_progress"
	SessionStatusCompleted  SessionStatus = "completed"
)

// Session 一次学生与练习之间的辅导会话
// end_time 为空表示会话进行中
type Session struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	SessionID string    `gorm:"not null;uniqueIndex;size:36" json:"session_id"`
	StudentID string    `gorm:"not null;index;size:64" json:"student_id"`

	// 基于图片创建的会话可能没有对应练习
	ExerciseID *uint `gorm:"index" json:"exercise_id"`

	QuestionContext string     `gorm:"type:text" json:"question_context"`
	SolutionContext string     `gorm:"type:text" json:"solution_context"`
	StartTime       time.Time  `gorm:"not null" json:"start_time"`
	EndTime         *time.Time `json:"end_time"`

	WhiteboardState datatypes.JSON    `json:"whiteboard_state"`
	SummaryData     datatypes.JSON    `json:"summary_data"`
	TeacherAnalysis datatypes.JSONMap `json:"teacher_analysis"`

	Exercise *Exercise `gorm:"foreignKey:ExerciseID;constraint:OnDelete:SET NULL" json:"exercise,omitempty"`
}

func (Session) TableName() string {
	return "chat_session"
}

func (s *Session) Ended() bool {
	return s.EndTime != nil
}

func (s *Session) Status() SessionStatus {
	if s.Ended() {
		return SessionStatusCompleted
	}
	return SessionStatusInProgress
}

// Duration 已结束会话的时长，进行中的会话计为 0
func (s *Session) Duration() time.Duration {
	if s.EndTime == nil {
		return 0
	}
	return s.EndTime.Sub(s.StartTime)
}

func (s *Session) HasSummary() bool {
	return len(s.SummaryData) > 0 && string(s.SummaryData) != "null"
}

// Summary 解析自动生成的摘要，未生成时返回 nil
func (s *Session) Summary() (*SummaryData, error) {
	if !s.HasSummary() {
		return nil, nil
	}
	var summary SummaryData
	if err := json.Unmarshal(s.SummaryData, &summary); err != nil {
		return nil, fmt.Errorf("failed to unmarshal summary data: %w", err)
	}
	return &summary, nil
}

// SummaryData 会话结束后由摘要任务写入，只写一次
type SummaryData struct {
	ErrorAnalysis ErrorCounts `json:"error_analysis"`
	SummaryText   string      `json:"summary_text"`
}
