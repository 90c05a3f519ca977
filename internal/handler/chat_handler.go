package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/bizdesk/bizdesk-go/internal/middleware"
	"github.com/bizdesk/bizdesk-go/internal/model"
	"github.com/bizdesk/bizdesk-go/internal/service"
	"github.com/bizdesk/bizdesk-go/internal/store"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const defaultMessageLimit = 50

// ChatProcessor 消息处理（由 service.ChatService 实现）
type ChatProcessor interface {
	ProcessMessage(ctx context.Context, session *model.ChatSession, text string) (*model.ChatResponse, error)
	GetIntentDetectionStats() model.IntentStats
	GetChatTypeSuggestions(chatType string) []string
}

// SessionManager 会话管理（由 service.SessionService 实现）
type SessionManager interface {
	CreateSession(ctx context.Context, userID, chatType, title string) (*model.ChatSession, error)
	GetSession(ctx context.Context, sessionID, userID string) (*model.ChatSession, error)
	OpenSession(ctx context.Context, sessionID, userID, chatType string) (*model.ChatSession, error)
	Messages(ctx context.Context, sessionID string, limit int) ([]model.ChatMessage, error)
}

// ChatHandler 聊天接口
type ChatHandler struct {
	chat     ChatProcessor
	sessions SessionManager
	logger   *zap.Logger
}

// NewChatHandler 创建聊天处理器
func NewChatHandler(chat ChatProcessor, sessions SessionManager, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{chat: chat, sessions: sessions, logger: logger}
}

// RegisterRoutes 注册路由
func (h *ChatHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/sessions", h.CreateSession)
	rg.POST("/sessions/:id/messages", h.SendMessage)
	rg.GET("/sessions/:id/messages", h.ListMessages)
	rg.GET("/suggestions", h.Suggestions)
	rg.GET("/stats", h.Stats)
}

// CreateSession 新建会话
func (h *ChatHandler) CreateSession(c *gin.Context) {
	var req model.CreateSessionRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request"})
			return
		}
	}

	session, err := h.sessions.CreateSession(c.Request.Context(), middleware.UserID(c), req.Type, req.Title)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": session})
}

// SendMessage 发送消息并返回助手回复
func (h *ChatHandler) SendMessage(c *gin.Context) {
	var req model.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "content is required"})
		return
	}

	ctx := c.Request.Context()
	// 未知会话 ID 在首条消息时创建
	session, err := h.sessions.OpenSession(ctx, c.Param("id"), middleware.UserID(c), req.ChatType)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if req.ChatType != "" && service.ValidChatType(req.ChatType) {
		session.Type = req.ChatType
	}

	resp, err := h.chat.ProcessMessage(ctx, session, req.Content)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ListMessages 会话的消息记录
func (h *ChatHandler) ListMessages(c *gin.Context) {
	limit := defaultMessageLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid limit"})
			return
		}
		limit = n
	}

	ctx := c.Request.Context()
	session, err := h.sessions.GetSession(ctx, c.Param("id"), middleware.UserID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}

	messages, err := h.sessions.Messages(ctx, session.ID, limit)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": messages, "count": len(messages)})
}

// Suggestions 聊天类型的示例问题
func (h *ChatHandler) Suggestions(c *gin.Context) {
	chatType := c.DefaultQuery("type", "general")
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"type":        chatType,
		"suggestions": h.chat.GetChatTypeSuggestions(chatType),
	})
}

// Stats 意图识别统计
func (h *ChatHandler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": h.chat.GetIntentDetectionStats()})
}

func (h *ChatHandler) writeError(c *gin.Context, err error) {
	var ve *service.ValidationError
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": ve.Message, "field": ve.Field})
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "session not found"})
	case errors.Is(err, service.ErrSessionForbidden):
		c.JSON(http.StatusForbidden, gin.H{"success": false, "error": "session belongs to another user"})
	default:
		h.logger.Error("请求处理失败",
			zap.String("path", c.FullPath()),
			zap.String("userId", middleware.UserID(c)),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"success":  false,
			"response": "Sorry, something went wrong on our side. Please try again.",
		})
	}
}
