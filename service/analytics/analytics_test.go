package analytics

import (
	"context"
	"fmt"
	"testing"
	"time"

	"math-tutor-backend/dao"
	"math-tutor-backend/dao/daotest"
	"math-tutor-backend/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

var base = time.Date(2025, 3, 5, 9, 0, 0, 0, time.UTC) // 周三

func session(id, student string, start time.Time, duration time.Duration, summary string) model.Session {
	s := model.Session{
		SessionID: id,
		StudentID: student,
		StartTime: start,
	}
	if duration > 0 {
		end := start.Add(duration)
		s.EndTime = &end
	}
	if summary != "" {
		s.SummaryData = datatypes.JSON(summary)
	}
	return s
}

func TestAggregateDurationExcludesOpenSessions(t *testing.T) {
	sessions := []model.Session{
		session("a", "alice", base, 600*time.Second, ""),
		session("b", "alice", base.Add(time.Hour), 900*time.Second, ""),
		session("c", "alice", base.Add(2*time.Hour), 0, ""),
	}

	stats := Aggregate("alice", sessions, map[string]int{"a": 4, "c": 2})
	assert.Equal(t, 1500*time.Second, stats.TotalDuration)
	assert.EqualValues(t, 1500, stats.TotalDurationSeconds())
	assert.Equal(t, 3, stats.Attempts)
	assert.Equal(t, 2, stats.CompletedSessions)
	assert.Equal(t, 6, stats.MessageCount)
	require.NotNil(t, stats.LastActivity)
	assert.Equal(t, base.Add(2*time.Hour), *stats.LastActivity)
}

func TestAggregateErrorPercentages(t *testing.T) {
	sessions := []model.Session{
		session("a", "alice", base, time.Minute, `{"error_analysis":{"computation":2},"summary_text":""}`),
		session("b", "alice", base, time.Minute, `{"error_analysis":{"computation":1,"Erreurs conceptuelles":1},"summary_text":""}`),
	}

	stats := Aggregate("alice", sessions, nil)
	assert.Equal(t, model.ErrorCounts{
		model.ErrorKindComputation: 3,
		model.ErrorKindConceptual:  1,
	}, stats.Errors)
	assert.Equal(t, map[model.ErrorKind]float64{
		model.ErrorKindComputation: 75.0,
		model.ErrorKindConceptual:  25.0,
	}, stats.Percentages)
}

func TestAggregateEmpty(t *testing.T) {
	stats := Aggregate("alice", nil, nil)
	assert.Empty(t, stats.Errors)
	assert.NotNil(t, stats.Percentages)
	assert.Empty(t, stats.Percentages)
	assert.Nil(t, stats.LastActivity)
}

func TestForClass(t *testing.T) {
	daotest.Setup(t)
	ctx := context.Background()

	exerciseID := uint(7)
	other := uint(8)
	seed := []model.Session{
		session("a1", "alice", base, 10*time.Minute, `{"error_analysis":{"procedural":2},"summary_text":""}`),
		session("a2", "alice", base, 5*time.Minute, `{"error_analysis":{"computation":2},"summary_text":""}`),
		session("b1", "bob", base, 20*time.Minute, `{"error_analysis":{"computation":4},"summary_text":""}`),
		session("z1", "zoe", base, 30*time.Minute, `{"error_analysis":{"computation":9},"summary_text":""}`),
	}
	seed[0].ExerciseID = &exerciseID
	seed[1].ExerciseID = &other
	seed[2].ExerciseID = &exerciseID
	for i := range seed {
		require.NoError(t, dao.CreateSession(ctx, &seed[i]))
	}

	class, err := ForClass(ctx, []string{"alice", "bob", "carol"}, nil)
	require.NoError(t, err)
	require.Len(t, class.Students, 3)
	assert.Equal(t, "alice", class.Students[0].StudentID)
	assert.Equal(t, 2, class.Students[0].Attempts)
	assert.Equal(t, 0, class.Students[2].Attempts)
	assert.Equal(t, 35*time.Minute, class.Total.TotalDuration)
	assert.Equal(t, model.ErrorCounts{
		model.ErrorKindComputation: 6,
		model.ErrorKindProcedural:  2,
	}, class.Total.Errors)

	filtered, err := ForClass(ctx, []string{"alice", "bob"}, &exerciseID)
	require.NoError(t, err)
	assert.Equal(t, 1, filtered.Students[0].Attempts)
	assert.Equal(t, model.ErrorCounts{
		model.ErrorKindComputation: 4,
		model.ErrorKindProcedural:  2,
	}, filtered.Total.Errors)

	single, err := ForStudent(ctx, "alice", &other)
	require.NoError(t, err)
	assert.Equal(t, 1, single.Attempts)
	assert.Equal(t, 5*time.Minute, single.TotalDuration)
}

func TestBuildProgression(t *testing.T) {
	var sessions []model.Session
	for i := 0; i < 10; i++ {
		s := session(fmt.Sprintf("s%d", i), "alice", base.AddDate(0, 0, i), 7*time.Minute, "")
		exerciseID := uint(i % 5)
		s.ExerciseID = &exerciseID
		sessions = append(sessions, s)
	}
	sessions[0].SummaryData = datatypes.JSON(`{"error_analysis":{"computation":1},"summary_text":""}`)
	sessions[1].SummaryData = datatypes.JSON(`{"error_analysis":{"computation":2},"summary_text":""}`)
	sessions[6].SummaryData = datatypes.JSON(`{"error_analysis":{"substitution":1},"summary_text":""}`)

	p := BuildProgression(sessions, map[string]int{"s0": 3})
	assert.Equal(t, 10, p.TotalSessions)
	assert.Equal(t, 70, p.TotalMinutes)
	assert.Equal(t, 3, p.TotalMessages)
	assert.Equal(t, 10*10+70, p.Points)
	assert.Equal(t, []Badge{BadgeFirstStep, BadgeSeriousLearner, BadgeMarathoner, BadgeExplorer}, p.Badges)

	// 3/5 与 3/6 属于同一周，3/11 属于下一周
	require.Len(t, p.Evolution, 2)
	assert.Equal(t, time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC), p.Evolution[0].WeekStart)
	assert.Equal(t, model.ErrorCounts{model.ErrorKindComputation: 3}, p.Evolution[0].Errors)
	assert.Equal(t, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), p.Evolution[1].WeekStart)
	assert.Equal(t, model.ErrorCounts{model.ErrorKindSubstitution: 1}, p.Evolution[1].Errors)
}

func TestBuildProgressionNewStudent(t *testing.T) {
	p := BuildProgression(nil, nil)
	assert.Zero(t, p.Points)
	assert.Empty(t, p.Badges)
	assert.Empty(t, p.Evolution)
}

func TestWeekStart(t *testing.T) {
	sunday := time.Date(2025, 3, 9, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC), weekStart(sunday))
	monday := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, monday, weekStart(monday))
}
