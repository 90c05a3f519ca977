package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bizdesk/bizdesk-go/internal/model"
	"go.uber.org/zap"
)

// ChatService 消息处理入口：意图识别 → 补全 / 执行 / 通用回复
type ChatService struct {
	sessions        *SessionService
	intents         *IntentService
	executor        *CommandExecutor
	fallback        *FallbackResponder
	contexts        *ContextService
	acceptThreshold float64
	highConfidence  float64
	logger          *zap.Logger
}

// ChatServiceDeps ChatService 依赖
type ChatServiceDeps struct {
	Sessions        *SessionService
	Intents         *IntentService
	Executor        *CommandExecutor
	Fallback        *FallbackResponder
	Contexts        *ContextService
	AcceptThreshold float64
	HighConfidence  float64
}

// NewChatService 创建聊天服务
func NewChatService(deps ChatServiceDeps, logger *zap.Logger) *ChatService {
	return &ChatService{
		sessions:        deps.Sessions,
		intents:         deps.Intents,
		executor:        deps.Executor,
		fallback:        deps.Fallback,
		contexts:        deps.Contexts,
		acceptThreshold: deps.AcceptThreshold,
		highConfidence:  deps.HighConfidence,
		logger:          logger,
	}
}

// ProcessMessage 处理一条用户消息
//
// AI 不可用、校验失败、未找到都以自然语言回复，Success 为 true；
// 只有会话存储失败才返回 error。
func (s *ChatService) ProcessMessage(ctx context.Context, session *model.ChatSession, text string) (*model.ChatResponse, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, NewValidationError("content", "message cannot be empty")
	}

	s.logger.Info("处理用户消息",
		zap.String("userId", session.UserID),
		zap.String("sessionId", session.ID),
		zap.Bool("pending", session.Pending != nil))

	history, err := s.sessions.History(ctx, session.ID)
	if err != nil {
		s.logger.Warn("读取历史消息失败，不带上下文继续", zap.String("sessionId", session.ID), zap.Error(err))
		history = nil
	}

	if _, err := s.sessions.AppendMessage(ctx, session.ID, model.RoleUser, text, nil); err != nil {
		return nil, fmt.Errorf("保存用户消息失败: %w", err)
	}

	resp := s.respond(ctx, session, text, history)

	if err := s.sessions.SaveSession(ctx, session); err != nil {
		return nil, fmt.Errorf("保存会话失败: %w", err)
	}
	if _, err := s.sessions.AppendMessage(ctx, session.ID, model.RoleAssistant, resp.Response, resp.Metadata); err != nil {
		return nil, fmt.Errorf("保存回复失败: %w", err)
	}
	return resp, nil
}

func (s *ChatService) respond(ctx context.Context, session *model.ChatSession, text string, history []model.ChatMessage) *model.ChatResponse {
	if session.Pending.Awaiting() != "" {
		if restated, ok := s.restatesPending(session.Pending, text); ok {
			return s.mergeRestatement(ctx, session, restated)
		}
		if !s.switchesTopic(session.Pending, text) {
			return s.continueSlotFilling(ctx, session, text)
		}
		s.logger.Info("用户切换话题，放弃待补全意图",
			zap.String("sessionId", session.ID),
			zap.String("pending", model.CommandKey(session.Pending.Type, session.Pending.Action)))
	}
	session.ClearPending()

	intent := s.intents.Detect(ctx, text, ClassifyContext{ChatType: session.Type, History: history})

	switch {
	case intent.IsGeneral() || intent.Confidence < s.acceptThreshold:
		return s.respondGeneral(ctx, session, text, intent)
	case len(intent.Missing) > 0:
		state, step := BeginSlotFilling(intent)
		session.Pending = state.Pending
		return slotResponse(intent, session.Type, step)
	default:
		return s.execute(ctx, session, intent)
	}
}

// switchesTopic 等待补全时，高置信度的不同命令视为换话题（只看规则结果）
func (s *ChatService) switchesTopic(pending *model.PendingIntent, text string) bool {
	if IsCancel(text) {
		return false
	}
	candidate := s.intents.MatchRules(text)
	if candidate.IsGeneral() || candidate.Confidence < s.highConfidence {
		return false
	}
	return candidate.Type != pending.Type || candidate.Action != pending.Action
}

// restatesPending 等待补全时用户重述了同一命令，返回规则提取并校验后的字段
func (s *ChatService) restatesPending(pending *model.PendingIntent, text string) (model.Intent, bool) {
	if IsCancel(text) {
		return model.Intent{}, false
	}
	candidate := s.intents.MatchRules(text)
	if candidate.IsGeneral() || candidate.Confidence < s.highConfidence || !candidate.SameCommand(pending.Intent()) {
		return model.Intent{}, false
	}
	candidate = s.intents.Sanitize(candidate)
	if len(candidate.Data) == 0 {
		return model.Intent{}, false
	}
	return candidate, true
}

func (s *ChatService) mergeRestatement(ctx context.Context, session *model.ChatSession, restated model.Intent) *model.ChatResponse {
	pendingIntent := session.Pending.Intent()
	state, step := MergeSlots(SlotState{Pending: session.Pending}, restated.Data)
	session.Pending = state.Pending

	s.logger.Info("用户重述了待补全命令，合并字段",
		zap.String("sessionId", session.ID),
		zap.String("command", model.CommandKey(pendingIntent.Type, pendingIntent.Action)),
		zap.Int("fields", len(restated.Data)))

	if step.Kind == StepExecute {
		return s.execute(ctx, session, step.Intent)
	}
	return slotResponse(pendingIntent, session.Type, step)
}

func (s *ChatService) continueSlotFilling(ctx context.Context, session *model.ChatSession, text string) *model.ChatResponse {
	pendingIntent := session.Pending.Intent()
	state, step := FillSlot(SlotState{Pending: session.Pending}, text)
	session.Pending = state.Pending

	if step.Kind == StepExecute {
		return s.execute(ctx, session, step.Intent)
	}
	return slotResponse(pendingIntent, session.Type, step)
}

func (s *ChatService) execute(ctx context.Context, session *model.ChatSession, intent model.Intent) *model.ChatResponse {
	result := s.executor.Execute(ctx, session.UserID, session.Type, intent)
	meta := result.Metadata
	meta["command_success"] = result.Success
	if result.ResultData != nil {
		meta["result"] = result.ResultData
	}
	return &model.ChatResponse{Success: true, Response: result.Message, Metadata: meta}
}

func (s *ChatService) respondGeneral(ctx context.Context, session *model.ChatSession, text string, intent model.Intent) *model.ChatResponse {
	platform := s.contexts.GetPlatformContext()
	user := s.contexts.GetUserContext(ctx, session)
	reply := s.fallback.Respond(ctx, text, platform, user)
	return &model.ChatResponse{
		Success:  true,
		Response: reply.Text,
		Metadata: replyMetadata(reply, intent, session.Type),
	}
}

func slotResponse(intent model.Intent, chatType string, step SlotStep) *model.ChatResponse {
	meta := IntentMetadata(intent, chatType)
	switch step.Kind {
	case StepCancelled:
		meta["cancelled"] = true
	default:
		meta["awaiting_field"] = step.Field
	}
	return &model.ChatResponse{Success: true, Response: step.Prompt, Metadata: meta}
}

// GetIntentDetectionStats 意图识别统计
func (s *ChatService) GetIntentDetectionStats() model.IntentStats {
	return s.intents.Stats()
}

// GetChatTypeSuggestions 聊天类型的示例问题
func (s *ChatService) GetChatTypeSuggestions(chatType string) []string {
	return GetChatTypeSuggestions(chatType)
}
