package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/bizdesk/bizdesk-go/internal/model"
	"github.com/bizdesk/bizdesk-go/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrSessionForbidden 会话属于其他用户
	ErrSessionForbidden = errors.New("session belongs to another user")

	sessionIDRe = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)
)

// ChatTypes 支持的聊天类型
var ChatTypes = []string{"general", "clients", "projects", "tasks", "proposals"}

// ValidChatType 是否为支持的聊天类型
func ValidChatType(t string) bool {
	for _, ct := range ChatTypes {
		if ct == t {
			return true
		}
	}
	return false
}

// SessionService 聊天会话与消息记录
type SessionService struct {
	store       store.SessionStore
	historySize int
	now         func() time.Time
	logger      *zap.Logger
}

// NewSessionService 创建会话服务
func NewSessionService(sessions store.SessionStore, historySize int, logger *zap.Logger) *SessionService {
	return &SessionService{
		store:       sessions,
		historySize: historySize,
		now:         time.Now,
		logger:      logger,
	}
}

// CreateSession 新建会话
func (s *SessionService) CreateSession(ctx context.Context, userID, chatType, title string) (*model.ChatSession, error) {
	return s.createSession(ctx, uuid.New().String(), userID, chatType, title)
}

func (s *SessionService) createSession(ctx context.Context, sessionID, userID, chatType, title string) (*model.ChatSession, error) {
	if chatType == "" {
		chatType = "general"
	}
	if !ValidChatType(chatType) {
		return nil, NewValidationError("type", fmt.Sprintf("unsupported chat type %q", chatType))
	}
	if title == "" {
		title = "New conversation"
	}

	now := s.now()
	session := &model.ChatSession{
		ID:           sessionID,
		UserID:       userID,
		Type:         chatType,
		Title:        title,
		CreatedAt:    now,
		LastActivity: now,
	}
	if err := s.store.SaveSession(ctx, session); err != nil {
		return nil, err
	}

	s.logger.Info("会话已创建",
		zap.String("userId", userID),
		zap.String("sessionId", session.ID),
		zap.String("type", chatType))
	return session, nil
}

// GetSession 读取会话并校验所属用户
func (s *SessionService) GetSession(ctx context.Context, sessionID, userID string) (*model.ChatSession, error) {
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.UserID != userID {
		return nil, ErrSessionForbidden
	}
	return session, nil
}

// OpenSession 读取会话；sessionID 为空时新建，不存在时以该 ID 新建并归属 userID
func (s *SessionService) OpenSession(ctx context.Context, sessionID, userID, chatType string) (*model.ChatSession, error) {
	if sessionID == "" {
		return s.CreateSession(ctx, userID, chatType, "")
	}
	if !sessionIDRe.MatchString(sessionID) {
		return nil, NewValidationError("session", "invalid session id")
	}

	session, err := s.GetSession(ctx, sessionID, userID)
	if errors.Is(err, store.ErrNotFound) {
		return s.createSession(ctx, sessionID, userID, chatType, "")
	}
	return session, err
}

// SaveSession 更新活跃时间后保存
func (s *SessionService) SaveSession(ctx context.Context, session *model.ChatSession) error {
	session.Touch(s.now())
	return s.store.SaveSession(ctx, session)
}

// AppendMessage 追加一条消息
func (s *SessionService) AppendMessage(ctx context.Context, sessionID, role, content string, metadata map[string]interface{}) (model.ChatMessage, error) {
	msg := model.ChatMessage{
		MessageID: uuid.New().String(),
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		Metadata:  metadata,
		Timestamp: s.now(),
	}
	if err := s.store.AppendMessage(ctx, msg); err != nil {
		return model.ChatMessage{}, err
	}
	return msg, nil
}

// History 最近的若干条消息，用作分类上下文
func (s *SessionService) History(ctx context.Context, sessionID string) ([]model.ChatMessage, error) {
	if s.historySize <= 0 {
		return nil, nil
	}
	return s.store.RecentMessages(ctx, sessionID, s.historySize)
}

// Messages 会话的消息记录
func (s *SessionService) Messages(ctx context.Context, sessionID string, limit int) ([]model.ChatMessage, error) {
	return s.store.RecentMessages(ctx, sessionID, limit)
}
