package service

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/bizdesk/bizdesk-go/internal/model"
)

// StepKind 补全状态机的下一步
type StepKind int

const (
	// StepAsk 询问下一个缺失字段
	StepAsk StepKind = iota
	// StepReask 回答无效，重新询问同一字段
	StepReask
	// StepExecute 字段已齐，执行命令
	StepExecute
	// StepCancelled 用户放弃
	StepCancelled
)

// SlotState 会话的补全状态：Pending 为 nil 表示空闲
type SlotState struct {
	Pending *model.PendingIntent
}

// Idle 是否空闲
func (s SlotState) Idle() bool {
	return s.Pending == nil || len(s.Pending.Missing) == 0
}

// SlotStep 状态机输出
type SlotStep struct {
	Kind   StepKind
	Field  string       // 正在询问的字段
	Prompt string       // 回复给用户的文本
	Intent model.Intent // StepExecute 时为完整意图
}

var cancelRe = regexp.MustCompile(`(?i)^\s*(?:cancel|never\s*mind|nevermind|stop|abort|forget\s+it)\b`)

// IsCancel 是否为放弃补全的回复
func IsCancel(reply string) bool {
	return cancelRe.MatchString(reply)
}

// BeginSlotFilling 从缺字段的意图进入等待状态
func BeginSlotFilling(intent model.Intent) (SlotState, SlotStep) {
	pending := &model.PendingIntent{
		Type:       intent.Type,
		Action:     intent.Action,
		Confidence: intent.Confidence,
		Data:       make(map[string]string, len(intent.Data)),
		Missing:    append([]string(nil), intent.Missing...),
	}
	for k, v := range intent.Data {
		pending.Data[k] = v
	}

	field := pending.Awaiting()
	prompt := FieldQuestion(intent.Type, intent.Action, field)
	if intent.Action == model.ActionCreate {
		prompt = fmt.Sprintf("Let's create a new %s. %s", intent.Type, prompt)
	}
	return SlotState{Pending: pending}, SlotStep{Kind: StepAsk, Field: field, Prompt: prompt}
}

// FillSlot 把用户回复作为当前等待字段的值
func FillSlot(state SlotState, reply string) (SlotState, SlotStep) {
	if state.Idle() {
		return SlotState{}, SlotStep{Kind: StepCancelled}
	}
	p := state.Pending
	field := p.Awaiting()

	if IsCancel(reply) {
		return SlotState{}, SlotStep{
			Kind:   StepCancelled,
			Field:  field,
			Prompt: fmt.Sprintf("Okay, I've cancelled that %s %s request.", p.Type, p.Action),
		}
	}

	value, problem := slotValue(field, reply)
	if problem != "" {
		return state, SlotStep{
			Kind:   StepReask,
			Field:  field,
			Prompt: problem + " " + FieldQuestion(p.Type, p.Action, field),
		}
	}

	return advance(p, map[string]string{field: value}, field)
}

// MergeSlots 合并同一命令重述时提取到的字段，未提供的字段继续等待
func MergeSlots(state SlotState, data map[string]string) (SlotState, SlotStep) {
	if state.Idle() {
		return SlotState{}, SlotStep{Kind: StepCancelled}
	}
	return advance(state.Pending, data, state.Pending.Awaiting())
}

// advance 写入新值并重新计算缺失字段
func advance(p *model.PendingIntent, updates map[string]string, field string) (SlotState, SlotStep) {
	next := &model.PendingIntent{
		Type:       p.Type,
		Action:     p.Action,
		Confidence: p.Confidence,
		Data:       make(map[string]string, len(p.Data)+len(updates)),
	}
	for k, v := range p.Data {
		next.Data[k] = v
	}
	for k, v := range updates {
		if v != "" {
			next.Data[k] = v
		}
	}
	for _, f := range p.Missing {
		if next.Data[f] == "" {
			next.Missing = append(next.Missing, f)
		}
	}

	if len(next.Missing) == 0 {
		intent := next.Intent()
		intent.Missing = nil
		return SlotState{}, SlotStep{Kind: StepExecute, Field: field, Intent: intent}
	}

	nextField := next.Awaiting()
	return SlotState{Pending: next}, SlotStep{
		Kind:   StepAsk,
		Field:  nextField,
		Prompt: "Got it. " + FieldQuestion(next.Type, next.Action, nextField),
	}
}

// slotValue 校验回复，返回值或问题描述
func slotValue(field, reply string) (string, string) {
	value := strings.TrimSpace(reply)
	if value == "" {
		return "", "I didn't catch that."
	}
	if field == "email" {
		if model.IsEmail(value) {
			return value, ""
		}
		if email := extractEmail(value); email != "" {
			return email, ""
		}
		return "", fmt.Sprintf("%q doesn't look like a valid email address.", value)
	}
	return value, ""
}

var fieldQuestions = map[string]string{
	"client.first_name": "What's the client's first name?",
	"client.last_name":  "What's their last name?",
	"client.email":      "What's their email address?",
	"client.phone":      "What's their phone number?",
	"client.company":    "Which company do they work for?",
	"client.name":       "Which client do you mean? You can give me their name or email address.",
	"project.name":      "What should the project be called?",
	"task.title":        "What's the title of the task?",
	"proposal.title":    "What's the title of the proposal?",
}

// FieldQuestion 询问某个字段的问题
func FieldQuestion(t model.IntentType, a model.Action, field string) string {
	if q, ok := fieldQuestions[string(t)+"."+field]; ok {
		if a != model.ActionCreate && (field == "name" || field == "title") && t != model.IntentClient {
			return fmt.Sprintf("Which %s do you mean?", t)
		}
		return q
	}
	return fmt.Sprintf("What's the %s of the %s?", model.FieldLabel(field), t)
}
