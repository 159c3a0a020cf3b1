package summarization

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"math-tutor-backend/dao"
	"math-tutor-backend/dao/daotest"
	"math-tutor-backend/model"
	"math-tutor-backend/service/gateway"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGateway struct {
	reply string
	err   error

	calls  atomic.Int32
	mu     sync.Mutex
	system string
	opts   gateway.Options
}

func (f *fakeGateway) Complete(ctx context.Context, systemInstruction string, history []gateway.Turn, opts gateway.Options) (string, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.system = systemInstruction
	f.opts = opts
	f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

const validReply = `{"error_analysis":{"computation":2,"conceptual":1,"other":4,"procedural":0},"summary_text":"The student struggled with signs."}`

func seedSession(t *testing.T, sessionID string, ended bool) {
	t.Helper()
	ctx := context.Background()

	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	session := &model.Session{
		SessionID:       sessionID,
		StudentID:       "alice",
		QuestionContext: "Solve 2x+3=7",
		SolutionContext: "x=2",
		StartTime:       start,
	}
	if ended {
		end := start.Add(20 * time.Minute)
		session.EndTime = &end
	}
	require.NoError(t, dao.CreateSession(ctx, session))

	for _, m := range []struct {
		role    model.Role
		content model.Content
	}{
		{model.RoleTutor, model.Content{model.TextPart("Hello! Ready?")}},
		{model.RoleStudent, model.Content{model.TextPart("x = 5"), model.ImagePart("https://cdn/a.png")}},
		{model.RoleTutor, model.Content{model.TextPart("Check 2*5+3.")}},
	} {
		data, err := m.content.JSON()
		require.NoError(t, err)
		require.NoError(t, dao.AppendMessage(ctx, &model.Message{
			SessionID: sessionID,
			Role:      m.role,
			Content:   data,
		}))
	}
}

func TestSummarize(t *testing.T) {
	daotest.Setup(t)
	ctx := context.Background()
	seedSession(t, "s1", true)

	gw := &fakeGateway{reply: validReply}
	s := NewSummarizer(gw, WithModel("summary-model"), WithLanguage("English"))

	require.NoError(t, s.Summarize(ctx, "s1"))

	assert.Contains(t, gw.system, "Student: x = 5\n")
	assert.Contains(t, gw.system, "Tutor: Check 2*5+3.\n")
	assert.NotContains(t, gw.system, "cdn/a.png")
	assert.Contains(t, gw.system, "English")
	assert.True(t, gw.opts.StructuredOutput)
	assert.Equal(t, "summary-model", gw.opts.Model)

	result, err := s.Status(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, StatusReady, result.Status)
	require.NotNil(t, result.Summary)
	assert.Equal(t, model.ErrorCounts{
		model.ErrorKindComputation: 2,
		model.ErrorKindConceptual:  1,
	}, result.Summary.ErrorAnalysis)
	assert.Equal(t, "The student struggled with signs.", result.Summary.SummaryText)
}

func TestSummarizeIsIdempotent(t *testing.T) {
	daotest.Setup(t)
	ctx := context.Background()
	seedSession(t, "s1", true)

	gw := &fakeGateway{reply: validReply}
	s := NewSummarizer(gw)

	require.NoError(t, s.Summarize(ctx, "s1"))
	require.NoError(t, s.Summarize(ctx, "s1"))
	assert.EqualValues(t, 1, gw.calls.Load())
}

func TestSummarizeOpenSession(t *testing.T) {
	daotest.Setup(t)
	ctx := context.Background()
	seedSession(t, "s1", false)

	gw := &fakeGateway{reply: validReply}
	s := NewSummarizer(gw)

	err := s.Summarize(ctx, "s1")
	assert.ErrorIs(t, err, ErrSessionOpen)
	assert.Zero(t, gw.calls.Load())

	result, err := s.Status(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, StatusNotEnded, result.Status)

	assert.ErrorIs(t, s.Summarize(ctx, "missing"), ErrSessionNotFound)
}

func TestSummarizeFailureLeavesSummaryEmpty(t *testing.T) {
	daotest.Setup(t)
	ctx := context.Background()
	seedSession(t, "s1", true)

	cases := map[string]*fakeGateway{
		"upstream":  {err: errors.New("503")},
		"malformed": {reply: "Here is the summary!"},
	}
	for name, gw := range cases {
		t.Run(name, func(t *testing.T) {
			s := NewSummarizer(gw)
			assert.ErrorIs(t, s.Summarize(ctx, "s1"), ErrAnalysisFailed)

			result, err := s.Status(ctx, "s1")
			require.NoError(t, err)
			assert.Equal(t, StatusProcessing, result.Status)
		})
	}
}

func TestSummarizeRejectsIncompleteReply(t *testing.T) {
	daotest.Setup(t)
	ctx := context.Background()
	seedSession(t, "s1", true)

	for _, reply := range []string{
		`{}`,
		`{"foo":"bar"}`,
		`{"error_analysis":{"computation":1}}`,
		`{"error_analysis":null,"summary_text":"Fine."}`,
		`{"error_analysis":{},"summary_text":"   "}`,
	} {
		s := NewSummarizer(&fakeGateway{reply: reply})
		assert.ErrorIs(t, s.Summarize(ctx, "s1"), ErrAnalysisFailed, reply)

		session, err := dao.GetSession(ctx, "s1")
		require.NoError(t, err)
		assert.False(t, session.HasSummary(), reply)
	}

	s := NewSummarizer(&fakeGateway{reply: validReply})
	require.NoError(t, s.Summarize(ctx, "s1"))

	result, err := s.Status(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, StatusReady, result.Status)
	assert.Equal(t, "The student struggled with signs.", result.Summary.SummaryText)
}

func TestSummarizeAcceptsEmptyErrorAnalysis(t *testing.T) {
	daotest.Setup(t)
	ctx := context.Background()
	seedSession(t, "s1", true)

	s := NewSummarizer(&fakeGateway{reply: `{"error_analysis":{},"summary_text":"No mistakes."}`})
	require.NoError(t, s.Summarize(ctx, "s1"))

	result, err := s.Status(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, StatusReady, result.Status)
	assert.Empty(t, result.Summary.ErrorAnalysis)
}

func TestRenderTranscriptLegacyRoles(t *testing.T) {
	messages := []model.Message{
		{Role: "user", Content: []byte(`"2x = 10"`)},
		{Role: "assistant", Content: []byte(`[{"type":"text","text":"Divide both sides."}]`)},
	}
	assert.Equal(t, "Student: 2x = 10\nTutor: Divide both sides.\n", renderTranscript(messages))
}

func TestSummarizeSkipsWhenLocked(t *testing.T) {
	daotest.Setup(t)
	ctx := context.Background()
	seedSession(t, "s1", true)

	locker := NewLocalLocker()
	release, ok, err := locker.TryLock(ctx, "s1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	gw := &fakeGateway{reply: validReply}
	s := NewSummarizer(gw, WithLocker(locker, time.Minute))
	require.NoError(t, s.Summarize(ctx, "s1"))
	assert.Zero(t, gw.calls.Load())

	release()
	require.NoError(t, s.Summarize(ctx, "s1"))
	assert.EqualValues(t, 1, gw.calls.Load())
}

func TestLocalLockerExpires(t *testing.T) {
	locker := NewLocalLocker()
	ctx := context.Background()

	_, ok, err := locker.TryLock(ctx, "k", 10*time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, _ = locker.TryLock(ctx, "k", time.Minute)
	assert.False(t, ok)

	time.Sleep(20 * time.Millisecond)
	_, ok, _ = locker.TryLock(ctx, "k", time.Minute)
	assert.True(t, ok)
}

func TestWorkersProcessDispatchedSessions(t *testing.T) {
	daotest.Setup(t)
	seedSession(t, "s1", true)

	gw := &fakeGateway{reply: validReply}
	s := NewSummarizer(gw, WithWorkers(2, 4))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	require.NoError(t, s.Dispatch(context.Background(), "s1"))
	require.NoError(t, s.Dispatch(context.Background(), "s1"))

	assert.Eventually(t, func() bool {
		result, err := s.Status(context.Background(), "s1")
		return err == nil && result.Status == StatusReady
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-done
	assert.LessOrEqual(t, gw.calls.Load(), int32(2))
}

func TestDispatchDropsWhenQueueFull(t *testing.T) {
	s := NewSummarizer(&fakeGateway{}, WithWorkers(1, 1))

	require.NoError(t, s.Dispatch(context.Background(), "a"))
	assert.ErrorIs(t, s.Dispatch(context.Background(), "b"), ErrQueueFull)
}
