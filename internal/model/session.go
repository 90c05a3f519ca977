package model

import "time"

// ChatSession 聊天会话
type ChatSession struct {
	ID           string         `json:"id"`
	UserID       string         `json:"user_id"`
	Type         string         `json:"type"` // clients, projects, tasks, proposals, general
	Title        string         `json:"title"`
	LastActivity time.Time      `json:"last_activity"`
	CreatedAt    time.Time      `json:"created_at"`
	Pending      *PendingIntent `json:"pending_intent,omitempty"`
}

// PendingIntent 多轮补全中的意图（每个会话最多一个）
type PendingIntent struct {
	Type       IntentType        `json:"type"`
	Action     Action            `json:"action"`
	Confidence float64           `json:"confidence"`
	Data       map[string]string `json:"data"`
	Missing    []string          `json:"missing"`
}

// Awaiting 当前等待用户补充的字段
func (p *PendingIntent) Awaiting() string {
	if p == nil || len(p.Missing) == 0 {
		return ""
	}
	return p.Missing[0]
}

// Intent 转换为意图
func (p *PendingIntent) Intent() Intent {
	in := Intent{
		Type:       p.Type,
		Action:     p.Action,
		Confidence: p.Confidence,
		Data:       make(map[string]string, len(p.Data)),
		Missing:    append([]string(nil), p.Missing...),
		Source:     "slot_filling",
	}
	for k, v := range p.Data {
		in.Data[k] = v
	}
	return in
}

// Touch 刷新最后活跃时间
func (s *ChatSession) Touch(now time.Time) {
	s.LastActivity = now
}

// ClearPending 清空待补全意图
func (s *ChatSession) ClearPending() {
	s.Pending = nil
}
