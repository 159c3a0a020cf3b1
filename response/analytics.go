package response

import (
	"time"

	"math-tutor-backend/model"
	"math-tutor-backend/service/analytics"
)

type StudentStatsResponse struct {
	StudentID            string                      `json:"student_id"`
	Attempts             int                         `json:"attempts"`
	CompletedSessions    int                         `json:"completed_sessions"`
	MessageCount         int                         `json:"message_count"`
	TotalDurationSeconds int64                       `json:"total_duration_seconds"`
	Errors               model.ErrorCounts           `json:"errors"`
	Percentages          map[model.ErrorKind]float64 `json:"percentages"`
	LastActivity         *time.Time                  `json:"last_activity"`
}

func NewStudentStatsResponse(s *analytics.StudentStats) StudentStatsResponse {
	return StudentStatsResponse{
		StudentID:            s.StudentID,
		Attempts:             s.Attempts,
		CompletedSessions:    s.CompletedSessions,
		MessageCount:         s.MessageCount,
		TotalDurationSeconds: s.TotalDurationSeconds(),
		Errors:               s.Errors,
		Percentages:          s.Percentages,
		LastActivity:         s.LastActivity,
	}
}

type ClassStatsResponse struct {
	Students []StudentStatsResponse `json:"students"`
	Total    StudentStatsResponse   `json:"total"`
}

func NewClassStatsResponse(c *analytics.ClassStats) ClassStatsResponse {
	resp := ClassStatsResponse{
		Students: make([]StudentStatsResponse, 0, len(c.Students)),
		Total:    NewStudentStatsResponse(&c.Total),
	}
	for i := range c.Students {
		resp.Students = append(resp.Students, NewStudentStatsResponse(&c.Students[i]))
	}
	return resp
}
