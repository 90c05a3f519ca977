package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/bizdesk/bizdesk-go/internal/client"
	"github.com/bizdesk/bizdesk-go/internal/model"
	"github.com/bizdesk/bizdesk-go/internal/tools"
	"go.uber.org/zap"
)

// LLM 聊天补全接口（由 client.DashScopeClient 实现）
type LLM interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string, params client.Params) (*client.Completion, error)
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string, params client.Params, out interface{}) (*client.Completion, error)
}

// IntentClassifier AI 意图分类，返回 nil 表示不可用
type IntentClassifier interface {
	Classify(ctx context.Context, message string, cctx ClassifyContext) *model.Intent
}

// ClassifyContext 分类上下文
type ClassifyContext struct {
	ChatType string
	History  []model.ChatMessage
}

// ClassifierService 基于 LLM 的意图分类
type ClassifierService struct {
	llm      LLM
	registry *tools.Registry
	timeout  time.Duration
	logger   *zap.Logger
}

// NewClassifierService 创建分类服务
func NewClassifierService(llm LLM, registry *tools.Registry, timeout time.Duration, logger *zap.Logger) *ClassifierService {
	return &ClassifierService{
		llm:      llm,
		registry: registry,
		timeout:  timeout,
		logger:   logger,
	}
}

// aiClassification 模型返回的结构
type aiClassification struct {
	Type       string                 `json:"type"`
	Action     string                 `json:"action"`
	Confidence float64                `json:"confidence"`
	Entities   map[string]interface{} `json:"entities"`
}

// Classify 调用 LLM 分类；任何失败（超时、HTTP 错误、输出不可解析）都返回 nil，不重试
func (s *ClassifierService) Classify(ctx context.Context, message string, cctx ClassifyContext) *model.Intent {
	if s == nil || s.llm == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var out aiClassification
	_, err := s.llm.CompleteJSON(ctx, s.systemPrompt(), buildClassifyPrompt(message, cctx), client.Params{
		Temperature: 0.1,
		MaxTokens:   400,
	}, &out)
	if err != nil {
		s.logger.Warn("AI 意图分类不可用",
			zap.String("reason", failureReason(err)),
			zap.Error(err))
		return nil
	}

	intent, err := out.toIntent()
	if err != nil {
		s.logger.Warn("AI 意图分类结果无效", zap.Error(err))
		return nil
	}

	s.logger.Debug("AI 意图分类完成",
		zap.String("intent", intent.Key()),
		zap.Float64("confidence", intent.Confidence))
	return &intent
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, client.ErrHTTPStatus):
		return "http_status"
	case errors.Is(err, client.ErrUnusableOutput):
		return "unusable_output"
	case errors.Is(err, client.ErrTransport):
		return "transport"
	default:
		return "unknown"
	}
}

func (c aiClassification) toIntent() (model.Intent, error) {
	t := model.IntentType(strings.ToLower(strings.TrimSpace(c.Type)))
	if !t.Valid() {
		return model.Intent{}, fmt.Errorf("unknown intent type %q", c.Type)
	}
	a := model.Action(strings.ToLower(strings.TrimSpace(c.Action)))
	if a == "" {
		a = model.ActionNone
	}
	if !a.Valid() {
		return model.Intent{}, fmt.Errorf("unknown action %q", c.Action)
	}
	if math.IsNaN(c.Confidence) || math.IsInf(c.Confidence, 0) {
		return model.Intent{}, fmt.Errorf("invalid confidence %v", c.Confidence)
	}

	data := make(map[string]string, len(c.Entities))
	for k, v := range c.Entities {
		switch val := v.(type) {
		case string:
			if s := strings.TrimSpace(val); s != "" {
				data[k] = s
			}
		case float64:
			data[k] = strconv.FormatFloat(val, 'f', -1, 64)
		}
	}

	return model.Intent{
		Type:       t,
		Action:     a,
		Confidence: c.Confidence,
		Data:       data,
		Source:     "ai",
	}.Normalize(), nil
}

func (s *ClassifierService) systemPrompt() string {
	var b strings.Builder
	b.WriteString(`You classify messages sent to the assistant of a business-management platform for freelancers and agencies.
Return ONLY a JSON object of the form:
{"type": "client|project|task|proposal|general", "action": "create|read|update|list|none", "confidence": 0.0-1.0, "entities": {"field": "value"}}

Rules:
- Use type "general" with action "none" for greetings, questions and anything that is not a request to manage a record.
- Only use entity field names declared by the matching command below; omit fields the user did not state.
- For read and update, put the client's name or email in "name".
`)
	if s.registry != nil {
		if defs, err := json.Marshal(s.registry.GetFunctionDefs()); err == nil {
			b.WriteString("\nCommands:\n")
			b.Write(defs)
			b.WriteString("\n")
		}
	}
	return b.String()
}

// buildClassifyPrompt 构建分类提示词
func buildClassifyPrompt(message string, cctx ClassifyContext) string {
	var b strings.Builder
	if cctx.ChatType != "" {
		fmt.Fprintf(&b, "Chat type: %s\n\n", cctx.ChatType)
	}
	if len(cctx.History) > 0 {
		b.WriteString("Conversation so far:\n")
		for _, m := range cctx.History {
			fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Message to classify:\n%s\n", message)
	return b.String()
}
