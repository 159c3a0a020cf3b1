package response

import (
	"encoding/json"
	"time"

	"math-tutor-backend/model"
)

type SessionResponse struct {
	SessionID       string              `json:"session_id"`
	StudentID       string              `json:"student_id"`
	ExerciseID      *uint               `json:"exercise_id"`
	ExerciseTitle   string              `json:"exercise_title,omitempty"`
	QuestionContext string              `json:"question_context"`
	SolutionContext string              `json:"solution_context"`
	Status          model.SessionStatus `json:"status"`
	StartTime       time.Time           `json:"start_time"`
	EndTime         *time.Time          `json:"end_time"`
	HasSummary      bool                `json:"has_summary"`
}

func NewSessionResponse(s *model.Session) SessionResponse {
	resp := SessionResponse{
		SessionID:       s.SessionID,
		StudentID:       s.StudentID,
		ExerciseID:      s.ExerciseID,
		QuestionContext: s.QuestionContext,
		SolutionContext: s.SolutionContext,
		Status:          s.Status(),
		StartTime:       s.StartTime,
		EndTime:         s.EndTime,
		HasSummary:      s.HasSummary(),
	}
	if s.Exercise != nil {
		resp.ExerciseTitle = s.Exercise.Title
	}
	return resp
}

type MessageResponse struct {
	Role      model.Role    `json:"role"`
	Content   model.Content `json:"content"`
	Timestamp time.Time     `json:"timestamp"`
}

// NewMessageResponse 旧格式的内容在这里统一转换为分段结构
func NewMessageResponse(m *model.Message) (MessageResponse, error) {
	content, err := m.Parts()
	if err != nil {
		return MessageResponse{}, err
	}
	return MessageResponse{
		Role:      m.Role,
		Content:   content,
		Timestamp: m.Timestamp,
	}, nil
}

func NewMessagesResponse(messages []model.Message) ([]MessageResponse, error) {
	resp := make([]MessageResponse, 0, len(messages))
	for i := range messages {
		msg, err := NewMessageResponse(&messages[i])
		if err != nil {
			return nil, err
		}
		resp = append(resp, msg)
	}
	return resp, nil
}

type CreateSessionResponse struct {
	Session SessionResponse  `json:"session"`
	Welcome *MessageResponse `json:"welcome"`
}

type GetSessionsResponse struct {
	Sessions []SessionResponse `json:"sessions"`
}

type ResumeSessionResponse struct {
	Session         SessionResponse   `json:"session"`
	Messages        []MessageResponse `json:"messages"`
	WhiteboardState json.RawMessage   `json:"whiteboard_state"`
	DocumentURL     string            `json:"document_url,omitempty"`
}

type InteractResponse struct {
	Reply model.Content `json:"reply"`
}

type TerminateResponse struct {
	Redirect string `json:"redirect"`
}

// SummaryStatusResponse ready 时附带完整摘要
type SummaryStatusResponse struct {
	Status        string            `json:"status"`
	ErrorAnalysis model.ErrorCounts `json:"error_analysis,omitempty"`
	SummaryText   string            `json:"summary_text,omitempty"`
}

type SessionDetailResponse struct {
	Session         SessionResponse   `json:"session"`
	Messages        []MessageResponse `json:"messages"`
	WhiteboardState json.RawMessage   `json:"whiteboard_state"`
	SummaryData     json.RawMessage   `json:"summary_data"`
	TeacherAnalysis map[string]any    `json:"teacher_analysis"`
}

type LogbookEntryResponse struct {
	Session         SessionResponse `json:"session"`
	TeacherAnalysis map[string]any  `json:"teacher_analysis"`
}

type GetLogbooksResponse struct {
	Entries []LogbookEntryResponse `json:"entries"`
}

type TeacherAnalysisResponse struct {
	TeacherAnalysis map[string]any `json:"teacher_analysis"`
}
