package dao

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"math-tutor-backend/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, Migrate(db))
	DB = db
}

func createSession(t *testing.T, sessionID, studentID string) *model.Session {
	t.Helper()
	session := &model.Session{
		SessionID:       sessionID,
		StudentID:       studentID,
		QuestionContext: "Solve 2x=4",
		SolutionContext: "x=2",
		StartTime:       time.Now().UTC(),
	}
	require.NoError(t, CreateSession(context.Background(), session))
	return session
}

func TestGetSession(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()
	createSession(t, "s1", "alice")

	session, err := GetSession(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, "alice", session.StudentID)
	assert.False(t, session.HasSummary())

	missing, err := GetSession(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	other, err := GetStudentSession(ctx, "bob", "s1")
	require.NoError(t, err)
	assert.Nil(t, other)
}

func TestSetEndTimeOnlyOnce(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()
	createSession(t, "s1", "alice")

	first := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	changed, err := SetEndTime(ctx, "s1", first)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = SetEndTime(ctx, "s1", first.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, changed)

	session, err := GetSession(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, session.EndTime)
	assert.True(t, first.Equal(*session.EndTime))

	require.NoError(t, ClearEndTime(ctx, "s1"))
	session, err = GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, session.EndTime)
}

func TestSaveSummaryOnce(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()
	createSession(t, "s1", "alice")

	first := datatypes.JSON(`{"error_analysis":{"computation":1},"summary_text":"first"}`)

	// 会话未结束时不允许写入
	saved, err := SaveSummaryOnce(ctx, "s1", first)
	require.NoError(t, err)
	assert.False(t, saved)

	_, err = SetEndTime(ctx, "s1", time.Now().UTC())
	require.NoError(t, err)

	saved, err = SaveSummaryOnce(ctx, "s1", first)
	require.NoError(t, err)
	assert.True(t, saved)

	saved, err = SaveSummaryOnce(ctx, "s1", datatypes.JSON(`{"error_analysis":{},"summary_text":"second"}`))
	require.NoError(t, err)
	assert.False(t, saved)

	session, err := GetSession(ctx, "s1")
	require.NoError(t, err)
	summary, err := session.Summary()
	require.NoError(t, err)
	assert.Equal(t, "first", summary.SummaryText)
}

func TestAppendMessageMonotonicTimestamps(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()
	createSession(t, "s1", "alice")

	for i := 0; i < 5; i++ {
		content, err := model.Content{model.TextPart(fmt.Sprintf("turn %d", i))}.JSON()
		require.NoError(t, err)
		require.NoError(t, AppendMessage(ctx, &model.Message{
			SessionID: "s1",
			Role:      model.RoleStudent,
			Content:   content,
		}))
	}

	messages, err := GetMessagesBySessionID(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, messages, 5)
	for i := 1; i < len(messages); i++ {
		assert.True(t, messages[i].Timestamp.After(messages[i-1].Timestamp))
	}

	parts, err := messages[0].Parts()
	require.NoError(t, err)
	assert.Equal(t, "turn 0", parts.Text())

	counts, err := CountMessages(ctx, []string{"s1", "s2"})
	require.NoError(t, err)
	assert.Equal(t, 5, counts["s1"])
	assert.Equal(t, 0, counts["s2"])
}

func TestDeleteSessionCascadesMessages(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()
	createSession(t, "s1", "alice")

	content, err := model.Content{model.TextPart("hello")}.JSON()
	require.NoError(t, err)
	require.NoError(t, AppendMessage(ctx, &model.Message{SessionID: "s1", Role: model.RoleTutor, Content: content}))

	deleted, err := DeleteSession(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, deleted)

	messages, err := GetMessagesBySessionID(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, messages)

	deleted, err = DeleteSession(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestListSessions(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()
	createSession(t, "s1", "alice")
	createSession(t, "s2", "bob")
	createSession(t, "s3", "carol")

	require.NoError(t, UpdateTeacherAnalysis(ctx, "s2", datatypes.JSONMap{"general_notes": "x"}))

	sessions, err := ListSessions(ctx, SessionFilter{StudentIDs: []string{"alice", "bob"}})
	require.NoError(t, err)
	assert.Len(t, sessions, 2)

	sessions, err = ListSessions(ctx, SessionFilter{WithTeacherAnalysis: true})
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "s2", sessions[0].SessionID)
}
