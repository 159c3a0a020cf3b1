package summarization

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"text/template"
	"time"

	"math-tutor-backend/dao"
	"math-tutor-backend/model"
	"math-tutor-backend/service/gateway"
)

const (
	defaultWorkerNum    = 4
	defaultTaskChanSize = 100
	defaultLockTTL      = 5 * time.Minute
)

var (
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionOpen 会话未结束，不生成摘要
	ErrSessionOpen = errors.New("session has not ended")

	// ErrAnalysisFailed 模型调用失败或返回无法解析，本次摘要放弃
	ErrAnalysisFailed = errors.New("summary analysis failed")

	ErrQueueFull = errors.New("summary queue is full")
)

//go:embed prompts/summarization.txt
var summaryPrompt string

var summaryTmpl = template.Must(template.New("summarization").Parse(summaryPrompt))

type Status string

const (
	StatusReady      Status = "ready"
	StatusProcessing Status = "processing"
	StatusNotEnded   Status = "not_ended"
)

// Summarizer 为已结束的会话生成错误分析与摘要
type Summarizer struct {
	gateway  gateway.Gateway
	model    string
	language string
	locker   Locker
	lockTTL  time.Duration

	taskChan  chan string
	workerNum int
}

// SummarizerInstance 由 cmd/server 在启动时初始化
var SummarizerInstance *Summarizer

type Option func(*Summarizer)

// WithModel 指定摘要使用的模型，为空时使用网关默认模型
func WithModel(name string) Option {
	return func(s *Summarizer) {
		s.model = name
	}
}

func WithLanguage(language string) Option {
	return func(s *Summarizer) {
		if language != "" {
			s.language = language
		}
	}
}

func WithLocker(locker Locker, ttl time.Duration) Option {
	return func(s *Summarizer) {
		s.locker = locker
		if ttl > 0 {
			s.lockTTL = ttl
		}
	}
}

func WithWorkers(workerNum, queueSize int) Option {
	return func(s *Summarizer) {
		if workerNum > 0 {
			s.workerNum = workerNum
		}
		if queueSize > 0 {
			s.taskChan = make(chan string, queueSize)
		}
	}
}

func NewSummarizer(gw gateway.Gateway, opts ...Option) *Summarizer {
	s := &Summarizer{
		gateway:   gw,
		language:  "French",
		locker:    NewLocalLocker(),
		lockTTL:   defaultLockTTL,
		taskChan:  make(chan string, defaultTaskChanSize),
		workerNum: defaultWorkerNum,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dispatch 将会话放入本地队列，队列已满时直接返回错误，不阻塞调用方
func (s *Summarizer) Dispatch(ctx context.Context, sessionID string) error {
	select {
	case s.taskChan <- sessionID:
		return nil
	default:
		return fmt.Errorf("%w: session %s dropped", ErrQueueFull, sessionID)
	}
}

// Run 启动 worker 并阻塞到 ctx 取消
func (s *Summarizer) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 1; i <= s.workerNum; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			s.executeSummarization(ctx, id)
		}(i)
	}
	wg.Wait()
}

func (s *Summarizer) executeSummarization(ctx context.Context, id int) {
	slog.Info("Starting summary worker", "worker_id", id)
	defer slog.Info("Summary worker exit", "worker_id", id)

	for {
		select {
		case <-ctx.Done():
			return
		case sessionID := <-s.taskChan:
			if err := s.Summarize(ctx, sessionID); err != nil {
				slog.Error("Failed to summarize session",
					"worker_id", id,
					"session_id", sessionID,
					"err", err,
				)
			}
		}
	}
}

// summaryReply 两个字段都必须出现，指针用于区分缺失与空值
type summaryReply struct {
	ErrorAnalysis *model.ErrorCounts `json:"error_analysis"`
	SummaryText   *string            `json:"summary_text"`
}

// Summarize 生成并保存会话摘要，可重复调用
// 摘要已存在时直接返回，会话未结束时返回 ErrSessionOpen
func (s *Summarizer) Summarize(ctx context.Context, sessionID string) error {
	session, err := dao.GetSession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to get session: %w", err)
	}
	if session == nil {
		return ErrSessionNotFound
	}
	if session.HasSummary() {
		return nil
	}
	if !session.Ended() {
		return ErrSessionOpen
	}

	release, ok, err := s.locker.TryLock(ctx, sessionID, s.lockTTL)
	if err != nil {
		// 锁服务不可用时仍继续，重复写入由条件更新拦截
		slog.Warn("Failed to acquire summary lock",
			"session_id", sessionID,
			"err", err,
		)
	} else if !ok {
		slog.Info("Summary already in progress", "session_id", sessionID)
		return nil
	} else {
		defer release()
	}

	messages, err := dao.GetMessagesBySessionID(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to get session messages: %w", err)
	}

	summary, err := s.analyze(ctx, session, messages)
	if err != nil {
		return err
	}

	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}

	saved, err := dao.SaveSummaryOnce(ctx, sessionID, data)
	if err != nil {
		return fmt.Errorf("failed to save summary: %w", err)
	}
	if !saved {
		slog.Info("Summary skipped, already written or session reopened", "session_id", sessionID)
		return nil
	}

	slog.Info("Session summary saved",
		"session_id", sessionID,
		"errors_total", summary.ErrorAnalysis.Total(),
	)
	return nil
}

func (s *Summarizer) analyze(ctx context.Context, session *model.Session, messages []model.Message) (*model.SummaryData, error) {
	var buf bytes.Buffer
	err := summaryTmpl.Execute(&buf, struct {
		Question   string
		Solution   string
		Transcript string
		Language   string
	}{
		Question:   session.QuestionContext,
		Solution:   session.SolutionContext,
		Transcript: renderTranscript(messages),
		Language:   s.language,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to execute summarization template: %w", err)
	}

	var reply summaryReply
	err = gateway.CompleteJSON(ctx, s.gateway, buf.String(), nil, gateway.Options{Model: s.model}, &reply)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAnalysisFailed, err)
	}
	if reply.ErrorAnalysis == nil {
		return nil, fmt.Errorf("%w: missing error_analysis", ErrAnalysisFailed)
	}
	if reply.SummaryText == nil || strings.TrimSpace(*reply.SummaryText) == "" {
		return nil, fmt.Errorf("%w: missing summary_text", ErrAnalysisFailed)
	}

	// 自动分析只统计四类错误
	counts := make(model.ErrorCounts)
	for kind, n := range *reply.ErrorAnalysis {
		if kind.Automated() && n > 0 {
			counts[kind] = n
		}
	}

	return &model.SummaryData{
		ErrorAnalysis: counts,
		SummaryText:   strings.TrimSpace(*reply.SummaryText),
	}, nil
}

// renderTranscript 每条消息一行，只保留文本部分
func renderTranscript(messages []model.Message) string {
	var sb strings.Builder
	for _, msg := range messages {
		speaker := "Student"
		if msg.NormalizedRole() == model.RoleTutor {
			speaker = "Tutor"
		}

		var text string
		if content, err := msg.Parts(); err == nil {
			text = content.Text()
		}
		fmt.Fprintf(&sb, "%s: %s\n", speaker, strings.TrimSpace(text))
	}
	return sb.String()
}

type StatusResult struct {
	Status  Status
	Summary *model.SummaryData
}

// Status 查询会话摘要的生成状态
func (s *Summarizer) Status(ctx context.Context, sessionID string) (*StatusResult, error) {
	session, err := dao.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	if session.HasSummary() {
		summary, err := session.Summary()
		if err != nil {
			return nil, err
		}
		return &StatusResult{Status: StatusReady, Summary: summary}, nil
	}
	if !session.Ended() {
		return &StatusResult{Status: StatusNotEnded}, nil
	}
	return &StatusResult{Status: StatusProcessing}, nil
}
