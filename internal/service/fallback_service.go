package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bizdesk/bizdesk-go/internal/client"
	"github.com/bizdesk/bizdesk-go/internal/model"
	"go.uber.org/zap"
)

// FallbackApology LLM 不可用时的回复
const FallbackApology = "I'm sorry, I'm having trouble answering right now. Please try again in a moment."

// FallbackReply 通用回复
type FallbackReply struct {
	Text     string  `json:"text"`
	Degraded bool    `json:"degraded"`
	Tokens   int     `json:"tokens"`
	Cost     float64 `json:"cost"`
}

// HelpSource 帮助中心检索
type HelpSource interface {
	Relevant(ctx context.Context, query string) string
}

// FallbackResponder 非命令消息的通用回复
type FallbackResponder struct {
	llm     LLM
	help    HelpSource
	timeout time.Duration
	logger  *zap.Logger
}

// NewFallbackResponder 创建通用回复服务，llm 为 nil 时总是返回致歉文本
func NewFallbackResponder(llm LLM, timeout time.Duration, logger *zap.Logger) *FallbackResponder {
	return &FallbackResponder{llm: llm, timeout: timeout, logger: logger}
}

// WithHelp 设置帮助中心检索，命中的片段会附加到提示词
func (r *FallbackResponder) WithHelp(help HelpSource) *FallbackResponder {
	r.help = help
	return r
}

// Respond 生成回复，永不失败
func (r *FallbackResponder) Respond(ctx context.Context, message string, platform PlatformContext, user UserContext) FallbackReply {
	if r.llm == nil {
		return FallbackReply{Text: FallbackApology, Degraded: true}
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var help string
	if r.help != nil {
		help = r.help.Relevant(ctx, message)
	}

	completion, err := r.llm.Complete(ctx, buildFallbackPrompt(platform, user, help), message, client.Params{})
	if err != nil {
		r.logger.Warn("通用回复失败，返回致歉文本",
			zap.String("userId", user.UserID),
			zap.String("reason", failureReason(err)),
			zap.Error(err))
		return FallbackReply{Text: FallbackApology, Degraded: true}
	}

	return FallbackReply{
		Text:   strings.TrimSpace(completion.Text),
		Tokens: completion.Usage.TotalTokens,
		Cost:   completion.Cost,
	}
}

// buildFallbackPrompt 系统提示词：平台能力、用户概况与帮助片段
func buildFallbackPrompt(platform PlatformContext, user UserContext, help string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are the assistant built into %s, a business-management platform for freelancers and agencies.\n", platform.Name)
	b.WriteString("What the platform can do:\n")
	for _, c := range platform.Capabilities {
		fmt.Fprintf(&b, "- %s\n", c)
	}

	b.WriteString("\nAbout this user:\n")
	fmt.Fprintf(&b, "- Clients on file: %d\n", user.ClientCount)
	fmt.Fprintf(&b, "- Chat sessions: %d\n", user.SessionCount)
	if user.ChatType != "" {
		fmt.Fprintf(&b, "- Current chat: %s\n", user.ChatType)
	}
	if len(user.Permissions) > 0 {
		fmt.Fprintf(&b, "- Commands available from chat: %s\n", strings.Join(user.Permissions, ", "))
	}

	if help != "" {
		b.WriteString("\nRelevant help articles:\n")
		b.WriteString(help)
		b.WriteString("\n")
	}

	b.WriteString("\nAnswer briefly and in a friendly tone. ")
	b.WriteString("If the user seems to want to manage a record, tell them what to type, for example \"Create a new client named Jane Doe with email jane@example.com\". ")
	b.WriteString("Never claim to have created or changed anything.")
	return b.String()
}

// replyMetadata 通用回复的元数据
func replyMetadata(reply FallbackReply, intent model.Intent, chatType string) map[string]interface{} {
	meta := IntentMetadata(intent, chatType)
	// 低置信度的命令没有执行，不标记为已识别
	meta["client_intent_detected"] = false
	meta["client_action"] = nil
	meta["fallback"] = true
	meta["degraded"] = reply.Degraded
	meta["tokens"] = reply.Tokens
	meta["cost"] = reply.Cost
	return meta
}
