package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/bizdesk/bizdesk-go/internal/model"
	"github.com/bizdesk/bizdesk-go/internal/tools"
	"go.uber.org/zap"
)

// ExecutionResult 命令执行结果
type ExecutionResult struct {
	Success    bool                   `json:"success"`
	Message    string                 `json:"message"`
	ResultData interface{}            `json:"result_data,omitempty"`
	Metadata   map[string]interface{} `json:"metadata"`
}

// CommandExecutor 把完整的意图分发给注册的命令
type CommandExecutor struct {
	registry *tools.Registry
	logger   *zap.Logger
}

// NewCommandExecutor 创建命令执行器
func NewCommandExecutor(registry *tools.Registry, logger *zap.Logger) *CommandExecutor {
	return &CommandExecutor{registry: registry, logger: logger}
}

// Execute 执行意图；所有失败都转换为用户可读的消息
func (e *CommandExecutor) Execute(ctx context.Context, userID, chatType string, intent model.Intent) ExecutionResult {
	meta := IntentMetadata(intent, chatType)

	params := make(map[string]string, len(intent.Data))
	for k, v := range intent.Data {
		params[k] = v
	}

	if _, err := e.registry.Get(intent.Key()); err != nil {
		e.logger.Warn("未知命令", zap.String("command", intent.Key()))
		return ExecutionResult{
			Message:  fmt.Sprintf("I'm not able to %s %ss from the chat yet.", intent.Action, intent.Type),
			Metadata: meta,
		}
	}

	result, err := e.registry.Execute(ctx, intent.Key(), tools.Request{UserID: userID, Params: params})
	switch {
	case errors.Is(err, tools.ErrNotImplemented):
		return ExecutionResult{
			Message: fmt.Sprintf("I understood that you want to %s a %s, but managing %ss from the chat isn't available yet.",
				intent.Action, intent.Type, intent.Type),
			Metadata: meta,
		}
	case err != nil:
		e.logger.Error("命令执行异常",
			zap.String("command", intent.Key()),
			zap.String("userId", userID),
			zap.Error(err))
		return ExecutionResult{
			Message:  fmt.Sprintf("Sorry, something went wrong while trying to %s the %s. Please try again.", intent.Action, intent.Type),
			Metadata: meta,
		}
	}

	return ExecutionResult{
		Success:    result.Success,
		Message:    result.Message,
		ResultData: result.Data,
		Metadata:   meta,
	}
}

// IntentMetadata 回复中携带的意图信息
func IntentMetadata(intent model.Intent, chatType string) map[string]interface{} {
	meta := map[string]interface{}{
		"client_intent_detected": intent.Type == model.IntentClient && !intent.IsGeneral(),
		"client_action":          nil,
		"chat_type":              chatType,
		"intent_type":            string(intent.Type),
		"intent_action":          string(intent.Action),
		"intent_confidence":      intent.Confidence,
	}
	if intent.Type == model.IntentClient && intent.Action != model.ActionNone {
		meta["client_action"] = string(intent.Action)
	}
	return meta
}
