package tutor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"math-tutor-backend/dao"
	"math-tutor-backend/model"
	"math-tutor-backend/service/gateway"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	// 结束会话后前端跳转的页面
	DashboardRedirect = "/dashboard"

	welcomeTemperature  = 0.5
	interactTemperature = 0.4
	interactMaxTokens   = 1000

	dispatchTimeout = 30 * time.Second
)

// SummaryDispatcher 会话结束后投递摘要任务，实现方不应阻塞调用方
type SummaryDispatcher interface {
	Dispatch(ctx context.Context, sessionID string) error
}

// DocumentLinker 为练习文档生成临时下载链接
type DocumentLinker interface {
	PresignedURL(ctx context.Context, objectName string) (string, error)
}

// Service 辅导会话的生命周期：创建、恢复、对话、保存白板、结束
type Service struct {
	gateway    gateway.Gateway
	dispatcher SummaryDispatcher
	documents  DocumentLinker
	language   string
	now        func() time.Time
}

// ServiceInstance 由 cmd/server 在启动时初始化
var ServiceInstance *Service

type Option func(*Service)

func WithDocumentLinker(linker DocumentLinker) Option {
	return func(s *Service) {
		s.documents = linker
	}
}

func WithLanguage(language string) Option {
	return func(s *Service) {
		if language != "" {
			s.language = language
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func NewService(gw gateway.Gateway, dispatcher SummaryDispatcher, opts ...Option) *Service {
	s := &Service{
		gateway:    gw,
		dispatcher: dispatcher,
		language:   "French",
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type CreateResult struct {
	Session *model.Session

	// 开场消息生成失败时为 nil
	Welcome *model.Message
}

// Create 基于已收录的练习创建会话
func (s *Service) Create(ctx context.Context, studentID string, exerciseID uint) (*CreateResult, error) {
	exercise, err := dao.GetExerciseByID(ctx, exerciseID)
	if err != nil {
		return nil, fmt.Errorf("failed to get exercise: %w", err)
	}
	if exercise == nil {
		return nil, fmt.Errorf("exercise %d: %w", exerciseID, ErrNotFound)
	}

	return s.startSession(ctx, studentID, &exercise.ID, exercise.QuestionContext(), exercise.SolutionContext())
}

type extraction struct {
	Question string `json:"question"`
	Solution string `json:"solution"`
}

// CreateFromImage 通过视觉模型识别图片中的题目和答案后创建会话
// 两者都识别成功才会创建会话
func (s *Service) CreateFromImage(ctx context.Context, studentID, image string, exerciseID *uint) (*CreateResult, error) {
	imageURL := normalizeImage(image)
	if imageURL == "" {
		return nil, ErrEmptyImage
	}

	systemInstruction, err := renderPrompt(extractionTmpl, promptData{Language: s.language})
	if err != nil {
		return nil, err
	}

	history := []gateway.Turn{{
		Role: model.RoleStudent,
		Content: model.Content{
			model.TextPart(extractionRequest),
			model.ImagePart(imageURL),
		},
	}}

	var result extraction
	err = gateway.CompleteJSON(ctx, s.gateway, systemInstruction, history, gateway.Options{Vision: true}, &result)
	if err != nil {
		if errors.Is(err, gateway.ErrMalformedResponse) || errors.Is(err, gateway.ErrEmptyReply) {
			return nil, fmt.Errorf("%w: %v", ErrExtractionFailure, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrUpstreamFailure, err)
	}

	question := strings.TrimSpace(result.Question)
	solution := strings.TrimSpace(result.Solution)
	if question == "" || solution == "" {
		return nil, ErrExtractionFailure
	}

	if exerciseID != nil {
		exercise, err := dao.GetExerciseByID(ctx, *exerciseID)
		if err != nil {
			return nil, fmt.Errorf("failed to get exercise: %w", err)
		}
		// 图片可能来自未收录的练习，找不到时不关联
		if exercise == nil {
			exerciseID = nil
		}
	}

	return s.startSession(ctx, studentID, exerciseID, question, solution)
}

func (s *Service) startSession(ctx context.Context, studentID string, exerciseID *uint, question, solution string) (*CreateResult, error) {
	session := &model.Session{
		SessionID:       uuid.New().String(),
		StudentID:       studentID,
		ExerciseID:      exerciseID,
		QuestionContext: question,
		SolutionContext: solution,
		StartTime:       s.now().UTC(),
	}
	if err := dao.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	// 开场消息生成失败不影响会话创建
	welcome, err := s.welcome(ctx, session.SessionID)
	if err != nil {
		slog.Warn("Failed to generate welcome message",
			"session_id", session.SessionID,
			"err", err,
		)
	}

	return &CreateResult{
		Session: session,
		Welcome: welcome,
	}, nil
}

func (s *Service) welcome(ctx context.Context, sessionID string) (*model.Message, error) {
	systemInstruction, err := renderPrompt(welcomeTmpl, promptData{Language: s.language})
	if err != nil {
		return nil, err
	}

	history := []gateway.Turn{{
		Role:    model.RoleStudent,
		Content: model.Content{model.TextPart(welcomeKickoff)},
	}}

	reply, err := s.gateway.Complete(ctx, systemInstruction, history, gateway.Options{
		Temperature: welcomeTemperature,
	})
	if err != nil {
		return nil, err
	}

	return s.appendMessage(ctx, sessionID, model.RoleTutor, model.Content{model.TextPart(reply)})
}

type ResumeResult struct {
	Session  *model.Session
	Messages []model.Message

	// 练习文档的临时下载链接，没有练习或生成失败时为空
	DocumentURL string
}

// Resume 重新打开会话：已结束的会话会清空结束时间
func (s *Service) Resume(ctx context.Context, studentID, sessionID string) (*ResumeResult, error) {
	session, err := dao.GetStudentSession(ctx, studentID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if session == nil {
		return nil, ErrNotFound
	}

	if session.Ended() {
		if err := dao.ClearEndTime(ctx, sessionID); err != nil {
			return nil, fmt.Errorf("failed to reopen session: %w", err)
		}
		session.EndTime = nil
	}

	messages, err := dao.GetMessagesBySessionID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session messages: %w", err)
	}

	result := &ResumeResult{
		Session:  session,
		Messages: messages,
	}

	if s.documents != nil && session.Exercise != nil && session.Exercise.ObjectName != "" {
		url, err := s.documents.PresignedURL(ctx, session.Exercise.ObjectName)
		if err != nil {
			slog.Warn("Failed to presign exercise document",
				"session_id", sessionID,
				"object_name", session.Exercise.ObjectName,
				"err", err,
			)
		} else {
			result.DocumentURL = url
		}
	}

	return result, nil
}

// Interact 追加学生消息，调用模型并追加导师回复
// 模型调用失败时学生消息仍然保留
func (s *Service) Interact(ctx context.Context, studentID, sessionID string, content model.Content) (model.Content, error) {
	session, err := dao.GetStudentSession(ctx, studentID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if session == nil || session.Ended() {
		return nil, ErrInvalidState
	}

	if _, err := s.appendMessage(ctx, sessionID, model.RoleStudent, content); err != nil {
		return nil, err
	}

	messages, err := dao.GetMessagesBySessionID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session messages: %w", err)
	}
	history, err := toTurns(messages)
	if err != nil {
		return nil, err
	}

	systemInstruction, err := renderPrompt(tutorSystemTmpl, promptData{
		Language: s.language,
		Question: session.QuestionContext,
		Solution: session.SolutionContext,
	})
	if err != nil {
		return nil, err
	}

	reply, err := s.gateway.Complete(ctx, systemInstruction, history, gateway.Options{
		Vision:      gateway.HasImage(history),
		Temperature: interactTemperature,
		MaxTokens:   interactMaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamFailure, err)
	}

	replyContent := model.Content{model.TextPart(reply)}
	if _, err := s.appendMessage(ctx, sessionID, model.RoleTutor, replyContent); err != nil {
		return nil, err
	}
	return replyContent, nil
}

// SaveWhiteboard 覆盖白板状态，不检查会话是否已结束
func (s *Service) SaveWhiteboard(ctx context.Context, studentID, sessionID string, state json.RawMessage) error {
	session, err := dao.GetStudentSession(ctx, studentID, sessionID)
	if err != nil {
		return fmt.Errorf("failed to get session: %w", err)
	}
	if session == nil {
		return ErrNotFound
	}

	if err := dao.UpdateWhiteboardState(ctx, sessionID, datatypes.JSON(state)); err != nil {
		return fmt.Errorf("failed to save whiteboard: %w", err)
	}
	return nil
}

// Terminate 结束会话并异步投递摘要任务，重复调用不产生副作用
func (s *Service) Terminate(ctx context.Context, studentID, sessionID string) (string, error) {
	session, err := dao.GetStudentSession(ctx, studentID, sessionID)
	if err != nil {
		return "", fmt.Errorf("failed to get session: %w", err)
	}
	if session == nil {
		return "", ErrNotFound
	}
	if session.Ended() {
		return DashboardRedirect, nil
	}

	changed, err := dao.SetEndTime(ctx, sessionID, s.now().UTC())
	if err != nil {
		return "", fmt.Errorf("failed to end session: %w", err)
	}
	if changed {
		s.dispatchSummary(ctx, sessionID)
	}

	return DashboardRedirect, nil
}

// RequestSummary 手动重新投递摘要任务，用于自动摘要失败后的补救
// 已有摘要时不投递
func (s *Service) RequestSummary(ctx context.Context, sessionID string) error {
	session, err := dao.GetSession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to get session: %w", err)
	}
	if session == nil {
		return ErrNotFound
	}
	if !session.Ended() {
		return ErrInvalidState
	}
	if session.HasSummary() || s.dispatcher == nil {
		return nil
	}

	if err := s.dispatcher.Dispatch(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to dispatch summary task: %w", err)
	}
	return nil
}

func (s *Service) dispatchSummary(ctx context.Context, sessionID string) {
	if s.dispatcher == nil {
		return
	}

	// 调用方不等待摘要任务，请求结束后投递仍需继续
	dispatchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), dispatchTimeout)
	go func() {
		defer cancel()
		if err := s.dispatcher.Dispatch(dispatchCtx, sessionID); err != nil {
			slog.Error("Failed to dispatch summary task",
				"session_id", sessionID,
				"err", err,
			)
		}
	}()
}

func (s *Service) appendMessage(ctx context.Context, sessionID string, role model.Role, content model.Content) (*model.Message, error) {
	data, err := content.JSON()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message content: %w", err)
	}

	msg := &model.Message{
		SessionID: sessionID,
		Role:      role,
		Content:   data,
	}
	if err := dao.AppendMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to append %s message: %w", role, err)
	}
	return msg, nil
}

func toTurns(messages []model.Message) ([]gateway.Turn, error) {
	turns := make([]gateway.Turn, 0, len(messages))
	for _, msg := range messages {
		content, err := msg.Parts()
		if err != nil {
			return nil, fmt.Errorf("failed to parse message %d: %w", msg.ID, err)
		}
		turns = append(turns, gateway.Turn{
			Role:    msg.NormalizedRole(),
			Content: content,
		})
	}
	return turns, nil
}

// normalizeImage 裸 base64 数据补全为 data URL
func normalizeImage(image string) string {
	image = strings.TrimSpace(image)
	if image == "" {
		return ""
	}
	if strings.HasPrefix(image, "data:") ||
		strings.HasPrefix(image, "http://") ||
		strings.HasPrefix(image, "https://") {
		return image
	}
	return "data:image/png;base64," + image
}
