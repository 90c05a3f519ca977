package model

import "time"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage 聊天消息（只追加，不修改）
type ChatMessage struct {
	MessageID string                 `json:"messageId"`
	SessionID string                 `json:"sessionId"`
	Role      string                 `json:"role"` // user, assistant
	Content   string                 `json:"content"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// ChatResponse 处理结果
type ChatResponse struct {
	Success  bool                   `json:"success"`
	Response string                 `json:"response"`
	Metadata map[string]interface{} `json:"metadata"`
}

// SendMessageRequest 发送消息请求
type SendMessageRequest struct {
	Content  string `json:"content" binding:"required"`
	ChatType string `json:"chatType"`
}

// CreateSessionRequest 创建会话请求
type CreateSessionRequest struct {
	Type  string `json:"type"`
	Title string `json:"title"`
}

// WSMessage WebSocket 消息
type WSMessage struct {
	MessageID string        `json:"messageId,omitempty"`
	Type      string        `json:"type"` // CHAT, HEARTBEAT, AI_RESPONSE, ERROR
	SessionID string        `json:"sessionId,omitempty"`
	ChatType  string        `json:"chatType,omitempty"`
	Content   string        `json:"content,omitempty"`
	Reply     *ChatResponse `json:"reply,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// IntentStats 意图识别统计
type IntentStats struct {
	TotalDetections      int64    `json:"total_detections"`
	AISuccessRate        float64  `json:"ai_success_rate"`
	FallbackRate         float64  `json:"fallback_rate"`
	AverageConfidence    float64  `json:"average_confidence"`
	SupportedIntentTypes []string `json:"supported_intent_types"`
}
