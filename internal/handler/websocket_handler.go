package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/bizdesk/bizdesk-go/internal/middleware"
	"github.com/bizdesk/bizdesk-go/internal/model"
	"github.com/bizdesk/bizdesk-go/internal/service"
	"github.com/bizdesk/bizdesk-go/internal/store"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WebSocket 消息类型
const (
	WSTypeChat       = "CHAT"
	WSTypeHeartbeat  = "HEARTBEAT"
	WSTypeAck        = "ACK"
	WSTypeAIResponse = "AI_RESPONSE"
	WSTypeError      = "ERROR"
)

// WebSocketHandler WebSocket 处理器
type WebSocketHandler struct {
	upgrader    websocket.Upgrader
	connections *service.ConnectionService
	sessions    SessionManager
	chat        ChatProcessor
	logger      *zap.Logger
}

// NewWebSocketHandler 创建 WebSocket 处理器
func NewWebSocketHandler(connections *service.ConnectionService, sessions SessionManager, chat ChatProcessor, logger *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		upgrader:    websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		connections: connections,
		sessions:    sessions,
		chat:        chat,
		logger:      logger,
	}
}

// WithAllowedOrigins 只接受来自这些 Origin 的连接，为空时不限制
func (h *WebSocketHandler) WithAllowedOrigins(origins ...string) *WebSocketHandler {
	if len(origins) == 0 {
		return h
	}
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "*" {
			return h
		}
		allowed[o] = struct{}{}
	}
	h.upgrader.CheckOrigin = func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := allowed[origin]
		return ok
	}
	return h
}

// HandleWebSocket WebSocket 连接入口：/ws/chat?uid=&session=&type=
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	userID := middleware.UserID(c)

	session, err := h.sessions.OpenSession(c.Request.Context(), c.Query("session"), userID, c.Query("type"))
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "session not found"})
		return
	case errors.Is(err, service.ErrSessionForbidden):
		c.JSON(http.StatusForbidden, gin.H{"success": false, "error": "session belongs to another user"})
		return
	case service.IsValidationError(err):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	case err != nil:
		h.logger.Error("打开会话失败", zap.String("userId", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "session unavailable"})
		return
	}

	// 升级为 WebSocket 连接
	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("WebSocket 升级失败", zap.Error(err))
		return
	}
	defer ws.Close()

	conn := &model.Connection{
		ConnID:        uuid.New().String(),
		UserID:        userID,
		ChatSessionID: session.ID,
		Conn:          ws,
		ClientIP:      c.ClientIP(),
	}
	h.connections.Register(conn)
	defer h.connections.Remove(conn.ConnID)

	h.logger.Info("WebSocket 连接建立",
		zap.String("userId", userID),
		zap.String("sessionId", session.ID))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 同一会话的消息按顺序处理
	jobs := make(chan model.WSMessage, 16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range jobs {
			h.processChat(ctx, conn, session, msg)
		}
	}()

	h.send(conn, model.WSMessage{Type: WSTypeAck, SessionID: session.ID, ChatType: session.Type})

	// 消息循环
	for {
		var msg model.WSMessage
		if err := ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Error("WebSocket 读取错误", zap.Error(err))
			}
			break
		}
		h.handleMessage(conn, jobs, msg)
	}

	// 已收到的消息处理完再退出
	close(jobs)
	<-done
	h.logger.Info("WebSocket 连接断开", zap.String("userId", userID))
}

// handleMessage 处理客户端消息
func (h *WebSocketHandler) handleMessage(conn *model.Connection, jobs chan<- model.WSMessage, msg model.WSMessage) {
	switch msg.Type {
	case WSTypeChat:
		if msg.MessageID == "" {
			msg.MessageID = uuid.New().String()
		}
		// 先确认再入队，保证 ACK 先于回复到达
		h.send(conn, model.WSMessage{Type: WSTypeAck, MessageID: msg.MessageID, SessionID: conn.ChatSessionID})
		select {
		case jobs <- msg:
		default:
			h.send(conn, model.WSMessage{
				Type:      WSTypeError,
				MessageID: msg.MessageID,
				Content:   "Too many messages in flight. Please wait for a reply.",
			})
		}

	case WSTypeHeartbeat:
		h.connections.UpdateHeartbeat(conn.ConnID)
		h.send(conn, model.WSMessage{Type: WSTypeHeartbeat})

	default:
		h.logger.Warn("未知消息类型",
			zap.String("userId", conn.UserID),
			zap.String("type", msg.Type))
	}
}

func (h *WebSocketHandler) processChat(ctx context.Context, conn *model.Connection, session *model.ChatSession, msg model.WSMessage) {
	if msg.ChatType != "" && service.ValidChatType(msg.ChatType) {
		session.Type = msg.ChatType
	}

	resp, err := h.chat.ProcessMessage(ctx, session, msg.Content)
	if err != nil {
		text := "Sorry, something went wrong on our side. Please try again."
		if service.IsValidationError(err) {
			text = "Please type a message first."
		} else {
			h.logger.Error("消息处理失败",
				zap.String("userId", conn.UserID),
				zap.String("sessionId", session.ID),
				zap.Error(err))
		}
		h.send(conn, model.WSMessage{Type: WSTypeError, MessageID: msg.MessageID, SessionID: session.ID, Content: text})
		return
	}

	h.send(conn, model.WSMessage{
		Type:      WSTypeAIResponse,
		MessageID: msg.MessageID,
		SessionID: session.ID,
		ChatType:  session.Type,
		Content:   resp.Response,
		Reply:     resp,
	})
}

func (h *WebSocketHandler) send(conn *model.Connection, msg model.WSMessage) {
	msg.Timestamp = time.Now()
	_ = h.connections.Send(conn.ConnID, msg)
}
