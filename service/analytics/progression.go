package analytics

import (
	"context"
	"fmt"
	"sort"
	"time"

	"math-tutor-backend/dao"
	"math-tutor-backend/model"
)

const (
	pointsPerSession = 10

	seriousLearnerSessions = 10
	marathonDuration       = time.Hour
	explorerExercises      = 5
)

type Badge struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

var (
	BadgeFirstStep = Badge{
		Code:        "first_step",
		Name:        "First Step",
		Description: "Completed a first session.",
	}
	BadgeSeriousLearner = Badge{
		Code:        "serious_learner",
		Name:        "Serious Learner",
		Description: "Completed 10 sessions.",
	}
	BadgeMarathoner = Badge{
		Code:        "marathoner",
		Name:        "Marathoner",
		Description: "Spent more than one hour learning.",
	}
	BadgeExplorer = Badge{
		Code:        "explorer",
		Name:        "Explorer",
		Description: "Worked on 5 different exercises.",
	}
)

// WeeklyErrors 以周一为起点的一周内的错误统计
type WeeklyErrors struct {
	WeekStart time.Time         `json:"week_start"`
	Errors    model.ErrorCounts `json:"errors"`
}

// Progression 学生个人看板
type Progression struct {
	TotalSessions int               `json:"total_sessions"`
	TotalMinutes  int               `json:"total_minutes"`
	TotalMessages int               `json:"total_messages"`
	Errors        model.ErrorCounts `json:"errors"`
	Evolution     []WeeklyErrors    `json:"evolution"`
	Badges        []Badge           `json:"badges"`
	Points        int               `json:"points"`
}

func ForProgression(ctx context.Context, studentID string) (*Progression, error) {
	sessions, err := dao.ListSessions(ctx, dao.SessionFilter{
		StudentIDs: []string{studentID},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	counts, err := dao.CountMessages(ctx, sessionIDs(sessions))
	if err != nil {
		return nil, fmt.Errorf("failed to count messages: %w", err)
	}

	progression := BuildProgression(sessions, counts)
	return &progression, nil
}

// BuildProgression 汇总总量、每周错误变化、徽章和积分
func BuildProgression(sessions []model.Session, messageCounts map[string]int) Progression {
	stats := Aggregate("", sessions, messageCounts)
	totalMinutes := int(stats.TotalDuration / time.Minute)

	weekly := make(map[time.Time]model.ErrorCounts)
	exercises := make(map[uint]struct{})
	for i := range sessions {
		session := &sessions[i]
		if session.ExerciseID != nil {
			exercises[*session.ExerciseID] = struct{}{}
		}

		summary, err := session.Summary()
		if err != nil || summary == nil || len(summary.ErrorAnalysis) == 0 {
			continue
		}
		week := weekStart(session.StartTime)
		if weekly[week] == nil {
			weekly[week] = model.ErrorCounts{}
		}
		weekly[week].Add(summary.ErrorAnalysis)
	}

	evolution := make([]WeeklyErrors, 0, len(weekly))
	for week, errs := range weekly {
		evolution = append(evolution, WeeklyErrors{WeekStart: week, Errors: errs})
	}
	sort.Slice(evolution, func(i, j int) bool {
		return evolution[i].WeekStart.Before(evolution[j].WeekStart)
	})

	badges := make([]Badge, 0, 4)
	if stats.Attempts >= 1 {
		badges = append(badges, BadgeFirstStep)
	}
	if stats.Attempts >= seriousLearnerSessions {
		badges = append(badges, BadgeSeriousLearner)
	}
	if stats.TotalDuration >= marathonDuration {
		badges = append(badges, BadgeMarathoner)
	}
	if len(exercises) >= explorerExercises {
		badges = append(badges, BadgeExplorer)
	}

	return Progression{
		TotalSessions: stats.Attempts,
		TotalMinutes:  totalMinutes,
		TotalMessages: stats.MessageCount,
		Errors:        stats.Errors,
		Evolution:     evolution,
		Badges:        badges,
		Points:        stats.Attempts*pointsPerSession + totalMinutes,
	}
}

func weekStart(t time.Time) time.Time {
	t = t.UTC()
	offset := (int(t.Weekday()) + 6) % 7
	return time.Date(t.Year(), t.Month(), t.Day()-offset, 0, 0, 0, 0, time.UTC)
}
