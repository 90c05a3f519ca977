package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bizdesk/bizdesk-go/internal/middleware"
	"github.com/bizdesk/bizdesk-go/internal/model"
	"github.com/bizdesk/bizdesk-go/internal/service"
	"github.com/bizdesk/bizdesk-go/internal/store"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeChat struct {
	mu       sync.Mutex
	err      error
	received []string
}

func (f *fakeChat) ProcessMessage(_ context.Context, session *model.ChatSession, text string) (*model.ChatResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.received = append(f.received, text)
	return &model.ChatResponse{
		Success:  true,
		Response: "echo: " + text,
		Metadata: map[string]interface{}{"chat_type": session.Type},
	}, nil
}

func (f *fakeChat) GetIntentDetectionStats() model.IntentStats {
	return model.IntentStats{TotalDetections: 3, SupportedIntentTypes: []string{"client"}}
}

func (f *fakeChat) GetChatTypeSuggestions(chatType string) []string {
	return []string{"suggestion for " + chatType}
}

type fakeSessions struct {
	mu       sync.Mutex
	sessions map[string]*model.ChatSession
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{sessions: map[string]*model.ChatSession{
		"s1": {ID: "s1", UserID: "u1", Type: "clients"},
	}}
}

func (f *fakeSessions) CreateSession(ctx context.Context, userID, chatType, title string) (*model.ChatSession, error) {
	return f.create(ctx, "new", userID, chatType, title)
}

func (f *fakeSessions) create(_ context.Context, id, userID, chatType, title string) (*model.ChatSession, error) {
	if chatType == "" {
		chatType = "general"
	}
	if !service.ValidChatType(chatType) {
		return nil, service.NewValidationError("type", "unsupported chat type")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	s := &model.ChatSession{ID: id, UserID: userID, Type: chatType, Title: title}
	f.sessions[s.ID] = s
	return s, nil
}

func (f *fakeSessions) GetSession(_ context.Context, sessionID, userID string) (*model.ChatSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[sessionID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if s.UserID != userID {
		return nil, service.ErrSessionForbidden
	}
	copied := *s
	return &copied, nil
}

func (f *fakeSessions) OpenSession(ctx context.Context, sessionID, userID, chatType string) (*model.ChatSession, error) {
	if sessionID == "" {
		return f.CreateSession(ctx, userID, chatType, "")
	}
	s, err := f.GetSession(ctx, sessionID, userID)
	if errors.Is(err, store.ErrNotFound) {
		return f.create(ctx, sessionID, userID, chatType, "")
	}
	return s, err
}

func (f *fakeSessions) Messages(context.Context, string, int) ([]model.ChatMessage, error) {
	return []model.ChatMessage{{Role: model.RoleUser, Content: "hi"}}, nil
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func newTestServer(chat *fakeChat, deps map[string]Pinger) *gin.Engine {
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()
	sessions := newFakeSessions()
	connections := service.NewConnectionService(logger)

	r := gin.New()
	r.GET("/api/health", NewAPIHandler("bizdesk", deps, connections, logger).Health)
	api := r.Group("/api/chat", middleware.Identity())
	NewChatHandler(chat, sessions, logger).RegisterRoutes(api)
	r.GET("/ws/chat", middleware.Identity(), NewWebSocketHandler(connections, sessions, chat, logger).HandleWebSocket)
	return r
}

func doJSON(r http.Handler, method, path, uid, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if uid != "" {
		req.Header.Set(middleware.UserIDHeader, uid)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestChatHandler_SendMessage(t *testing.T) {
	chat := &fakeChat{}
	r := newTestServer(chat, nil)

	w := doJSON(r, http.MethodPost, "/api/chat/sessions/s1/messages", "u1", `{"content":"List all clients","chatType":"general"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp model.ChatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "echo: List all clients", resp.Response)
	assert.Equal(t, "general", resp.Metadata["chat_type"])
}

func TestChatHandler_SendMessageCreatesUnknownSession(t *testing.T) {
	chat := &fakeChat{}
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()
	sessions := newFakeSessions()
	r := gin.New()
	NewChatHandler(chat, sessions, logger).RegisterRoutes(r.Group("/api/chat", middleware.Identity()))

	w := doJSON(r, http.MethodPost, "/api/chat/sessions/brand-new/messages", "u1", `{"content":"List all clients","chatType":"clients"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "echo: List all clients")

	created, err := sessions.GetSession(context.Background(), "brand-new", "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", created.UserID)
	assert.Equal(t, "clients", created.Type)

	// 之后其他用户不能使用该会话
	w = doJSON(r, http.MethodPost, "/api/chat/sessions/brand-new/messages", "u2", `{"content":"hi"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestChatHandler_SendMessageErrors(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		uid     string
		body    string
		chatErr error
		code    int
	}{
		{name: "no user", path: "/api/chat/sessions/s1/messages", body: `{"content":"hi"}`, code: http.StatusUnauthorized},
		{name: "missing content", path: "/api/chat/sessions/s1/messages", uid: "u1", body: `{}`, code: http.StatusBadRequest},
		{name: "unsupported chat type for new session", path: "/api/chat/sessions/nope/messages", uid: "u1",
			body: `{"content":"hi","chatType":"invoices"}`, code: http.StatusBadRequest},
		{name: "other user", path: "/api/chat/sessions/s1/messages", uid: "u2", body: `{"content":"hi"}`, code: http.StatusForbidden},
		{name: "storage failure", path: "/api/chat/sessions/s1/messages", uid: "u1", body: `{"content":"hi"}`,
			chatErr: errors.New("redis down"), code: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestServer(&fakeChat{err: tt.chatErr}, nil)
			w := doJSON(r, http.MethodPost, tt.path, tt.uid, tt.body)
			assert.Equal(t, tt.code, w.Code)
			assert.NotContains(t, w.Body.String(), "redis down")
		})
	}
}

func TestChatHandler_CreateSession(t *testing.T) {
	r := newTestServer(&fakeChat{}, nil)

	w := doJSON(r, http.MethodPost, "/api/chat/sessions", "u1", `{"type":"clients","title":"Clients"}`)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"type":"clients"`)

	w = doJSON(r, http.MethodPost, "/api/chat/sessions", "u1", "")
	assert.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(r, http.MethodPost, "/api/chat/sessions", "u1", `{"type":"invoices"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"field":"type"`)
}

func TestChatHandler_ReadEndpoints(t *testing.T) {
	r := newTestServer(&fakeChat{}, nil)

	w := doJSON(r, http.MethodGet, "/api/chat/sessions/s1/messages?limit=10", "u1", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":1`)

	w = doJSON(r, http.MethodGet, "/api/chat/sessions/s1/messages?limit=abc", "u1", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, http.MethodGet, "/api/chat/suggestions?type=tasks", "u1", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "suggestion for tasks")

	w = doJSON(r, http.MethodGet, "/api/chat/stats", "u1", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total_detections":3`)
}

func TestAPIHandler_Health(t *testing.T) {
	r := newTestServer(&fakeChat{}, map[string]Pinger{"redis": fakePinger{}, "sqlite": fakePinger{}})
	w := doJSON(r, http.MethodGet, "/api/health", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"UP"`)

	r = newTestServer(&fakeChat{}, map[string]Pinger{"redis": fakePinger{err: errors.New("down")}})
	w = doJSON(r, http.MethodGet, "/api/health", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"redis":"DOWN"`)
}

func TestWebSocketHandler_Chat(t *testing.T) {
	chat := &fakeChat{}
	srv := httptest.NewServer(newTestServer(chat, nil))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/chat?uid=u1&session=s1"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer ws.Close()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(5*time.Second)))

	var hello model.WSMessage
	require.NoError(t, ws.ReadJSON(&hello))
	assert.Equal(t, WSTypeAck, hello.Type)
	assert.Equal(t, "s1", hello.SessionID)

	require.NoError(t, ws.WriteJSON(model.WSMessage{Type: WSTypeChat, MessageID: "m1", Content: "hello"}))

	var ack, reply model.WSMessage
	require.NoError(t, ws.ReadJSON(&ack))
	assert.Equal(t, WSTypeAck, ack.Type)
	assert.Equal(t, "m1", ack.MessageID)

	require.NoError(t, ws.ReadJSON(&reply))
	assert.Equal(t, WSTypeAIResponse, reply.Type)
	assert.Equal(t, "echo: hello", reply.Content)
	require.NotNil(t, reply.Reply)
	assert.True(t, reply.Reply.Success)

	require.NoError(t, ws.WriteJSON(model.WSMessage{Type: WSTypeHeartbeat}))
	var beat model.WSMessage
	require.NoError(t, ws.ReadJSON(&beat))
	assert.Equal(t, WSTypeHeartbeat, beat.Type)
}

func TestWebSocketHandler_Forbidden(t *testing.T) {
	srv := httptest.NewServer(newTestServer(&fakeChat{}, nil))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/chat?uid=u2&session=s1"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestWebSocketHandler_AllowedOrigins(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()
	chat := &fakeChat{}
	ws := NewWebSocketHandler(service.NewConnectionService(logger), newFakeSessions(), chat, logger).
		WithAllowedOrigins("https://app.bizdesk.io")
	r := gin.New()
	r.GET("/ws/chat", middleware.Identity(), ws.HandleWebSocket)
	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/chat?uid=u1&session=s1"

	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://evil.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://app.bizdesk.io"}})
	require.NoError(t, err)
	conn.Close()
}
