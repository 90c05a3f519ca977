package model

import "strings"

// IntentType 意图对应的业务实体
type IntentType string

const (
	IntentClient   IntentType = "client"
	IntentProject  IntentType = "project"
	IntentTask     IntentType = "task"
	IntentProposal IntentType = "proposal"
	IntentGeneral  IntentType = "general"
)

// IntentTypes 所有支持的意图类型（声明顺序即规则匹配的优先顺序）
var IntentTypes = []IntentType{IntentClient, IntentProject, IntentTask, IntentProposal, IntentGeneral}

// Valid 是否为已知类型
func (t IntentType) Valid() bool {
	for _, it := range IntentTypes {
		if it == t {
			return true
		}
	}
	return false
}

// Action 意图动作
type Action string

const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionList   Action = "list"
	ActionNone   Action = "none"
)

// Valid 是否为已知动作
func (a Action) Valid() bool {
	switch a {
	case ActionCreate, ActionRead, ActionUpdate, ActionList, ActionNone:
		return true
	}
	return false
}

// Intent 结构化的意图识别结果
type Intent struct {
	Type       IntentType        `json:"type"`
	Action     Action            `json:"action"`
	Confidence float64           `json:"confidence"`
	Data       map[string]string `json:"data,omitempty"`
	Missing    []string          `json:"missing_required_fields,omitempty"`
	Source     string            `json:"source,omitempty"` // rules, ai, merged
}

// GeneralIntent 无可执行意图
func GeneralIntent() Intent {
	return Intent{Type: IntentGeneral, Action: ActionNone, Confidence: 0, Data: map[string]string{}}
}

// Key 命令名，例如 client.create
func (i Intent) Key() string {
	return CommandKey(i.Type, i.Action)
}

// CommandKey 拼接命令名
func CommandKey(t IntentType, a Action) string {
	return string(t) + "." + string(a)
}

// IsGeneral 是否为通用对话
func (i Intent) IsGeneral() bool {
	return i.Type == IntentGeneral || i.Type == "" || i.Action == ActionNone || i.Action == ""
}

// SameCommand 类型与动作是否一致
func (i Intent) SameCommand(other Intent) bool {
	return i.Type == other.Type && i.Action == other.Action
}

// Actionable 是否可以直接执行
func (i Intent) Actionable(threshold float64) bool {
	return !i.IsGeneral() && i.Confidence >= threshold && len(i.Missing) == 0
}

// Normalize 保证不变量：置信度在 [0,1]，general 意味着 none
func (i Intent) Normalize() Intent {
	if i.Confidence < 0 {
		i.Confidence = 0
	}
	if i.Confidence > 1 {
		i.Confidence = 1
	}
	if i.Type == IntentGeneral || i.Type == "" {
		i.Type = IntentGeneral
		i.Action = ActionNone
	}
	if i.Action == "" {
		i.Action = ActionNone
	}
	if i.Data == nil {
		i.Data = map[string]string{}
	}
	return i
}

// Clone 深拷贝
func (i Intent) Clone() Intent {
	out := i
	out.Data = make(map[string]string, len(i.Data))
	for k, v := range i.Data {
		out.Data[k] = v
	}
	out.Missing = append([]string(nil), i.Missing...)
	return out
}

// FieldLabel 字段的可读名称，例如 first_name -> first name
func FieldLabel(field string) string {
	return strings.ReplaceAll(field, "_", " ")
}
