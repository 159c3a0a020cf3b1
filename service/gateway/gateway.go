package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"math-tutor-backend/config"
	"math-tutor-backend/model"
	"math-tutor-backend/utils"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

var (
	ErrEmptyReply        = errors.New("model returned an empty reply")
	ErrMalformedResponse = errors.New("model returned a malformed structured response")
)

// Turn 发送给模型的一轮对话
type Turn struct {
	Role    model.Role
	Content model.Content
}

type Options struct {
	// 要求模型返回严格的 JSON 对象
	StructuredOutput bool

	// 请求中包含图片时使用视觉模型
	Vision bool

	Temperature float64
	MaxTokens   int

	// 覆盖默认模型名
	Model string
}

// Gateway 文本/视觉模型的无状态适配器
type Gateway interface {
	Complete(ctx context.Context, systemInstruction string, history []Turn, opts Options) (string, error)
}

// LLMGateway 基于 langchaingo 的 OpenAI 兼容实现
type LLMGateway struct {
	llm         llms.Model
	chatModel   string
	visionModel string
	timeout     time.Duration
}

var _ Gateway = &LLMGateway{}

func New(cfg config.ModelConfig) (*LLMGateway, error) {
	llm, err := openai.New(
		openai.WithModel(cfg.ChatModel),
		openai.WithToken(cfg.APIKey),
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithHTTPClient(utils.NewHTTPClient(
			utils.WithTimeout(cfg.Timeout),
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create llm client: %w", err)
	}
	return NewWithModel(llm, cfg), nil
}

func NewWithModel(llm llms.Model, cfg config.ModelConfig) *LLMGateway {
	return &LLMGateway{
		llm:         llm,
		chatModel:   cfg.ChatModel,
		visionModel: cfg.VisionModel,
		timeout:     cfg.Timeout,
	}
}

func (g *LLMGateway) Complete(ctx context.Context, systemInstruction string, history []Turn, opts Options) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	messages := make([]llms.MessageContent, 0, len(history)+1)
	if systemInstruction != "" {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, systemInstruction))
	}
	for _, turn := range history {
		messages = append(messages, toMessageContent(turn))
	}

	resp, err := g.llm.GenerateContent(ctx, messages, g.callOptions(opts)...)
	if err != nil {
		return "", fmt.Errorf("llm call error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyReply
	}

	reply := strings.TrimSpace(resp.Choices[0].Content)
	if reply == "" {
		return "", ErrEmptyReply
	}
	return reply, nil
}

func (g *LLMGateway) callOptions(opts Options) []llms.CallOption {
	modelName := g.chatModel
	if opts.Vision && g.visionModel != "" {
		modelName = g.visionModel
	}
	if opts.Model != "" {
		modelName = opts.Model
	}

	var callOpts []llms.CallOption
	if modelName != "" {
		callOpts = append(callOpts, llms.WithModel(modelName))
	}
	if opts.StructuredOutput {
		callOpts = append(callOpts, llms.WithJSONMode())
	}
	if opts.Temperature > 0 {
		callOpts = append(callOpts, llms.WithTemperature(opts.Temperature))
	}
	if opts.MaxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(opts.MaxTokens))
	}
	return callOpts
}

func toMessageContent(turn Turn) llms.MessageContent {
	role := llms.ChatMessageTypeHuman
	if turn.Role == model.RoleTutor {
		role = llms.ChatMessageTypeAI
	}

	parts := make([]llms.ContentPart, 0, len(turn.Content))
	for _, part := range turn.Content {
		switch part.Type {
		case model.PartTypeText:
			parts = append(parts, llms.TextContent{Text: part.Text})
		case model.PartTypeImage:
			parts = append(parts, llms.ImageURLContent{URL: part.URL})
		}
	}
	return llms.MessageContent{Role: role, Parts: parts}
}

// CompleteJSON 以结构化模式调用模型并将结果解析到 out
func CompleteJSON(ctx context.Context, g Gateway, systemInstruction string, history []Turn, opts Options, out any) error {
	opts.StructuredOutput = true
	reply, err := g.Complete(ctx, systemInstruction, history, opts)
	if err != nil {
		return err
	}

	if err := json.Unmarshal([]byte(stripCodeFence(reply)), out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}

// 部分模型在 JSON 模式下仍会包裹 ```json 代码块
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// HasImage 判断对话中是否包含图片
func HasImage(history []Turn) bool {
	for _, turn := range history {
		for _, part := range turn.Content {
			if part.Type == model.PartTypeImage {
				return true
			}
		}
	}
	return false
}
