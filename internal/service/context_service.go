package service

import (
	"context"

	"github.com/bizdesk/bizdesk-go/internal/model"
	"github.com/bizdesk/bizdesk-go/internal/store"
	"github.com/bizdesk/bizdesk-go/internal/tools"
	"go.uber.org/zap"
)

// PlatformContext 平台信息，用于通用回复
type PlatformContext struct {
	Name         string   `json:"name"`
	Capabilities []string `json:"capabilities"`
}

// UserContext 用户信息，用于通用回复
type UserContext struct {
	UserID       string   `json:"user_id"`
	ChatType     string   `json:"chat_type"`
	ClientCount  int64    `json:"client_count"`
	SessionCount int64    `json:"session_count"`
	Permissions  []string `json:"permissions"`
}

// ContextService 组装平台与用户上下文
type ContextService struct {
	name     string
	clients  store.ClientRepository
	sessions store.SessionStore
	registry *tools.Registry
	logger   *zap.Logger
}

// NewContextService 创建上下文服务
func NewContextService(name string, clients store.ClientRepository, sessions store.SessionStore, registry *tools.Registry, logger *zap.Logger) *ContextService {
	return &ContextService{
		name:     name,
		clients:  clients,
		sessions: sessions,
		registry: registry,
		logger:   logger,
	}
}

// GetPlatformContext 平台能力说明
func (s *ContextService) GetPlatformContext() PlatformContext {
	return PlatformContext{
		Name: s.name,
		Capabilities: []string{
			"Manage clients: create, look up, list and update client records",
			"Track projects, tasks and proposals for each client",
			"Answer questions about running a freelance or agency business",
		},
	}
}

// GetUserContext 用户上下文；计数查询失败只记日志
func (s *ContextService) GetUserContext(ctx context.Context, session *model.ChatSession) UserContext {
	uc := UserContext{UserID: session.UserID, ChatType: session.Type}

	if n, err := s.clients.CountClients(ctx, session.UserID); err != nil {
		s.logger.Warn("统计客户数量失败", zap.String("userId", session.UserID), zap.Error(err))
	} else {
		uc.ClientCount = n
	}
	if n, err := s.sessions.CountUserSessions(ctx, session.UserID); err != nil {
		s.logger.Warn("统计会话数量失败", zap.String("userId", session.UserID), zap.Error(err))
	} else {
		uc.SessionCount = n
	}

	for _, tool := range s.registry.List() {
		if tool.Handler != nil {
			uc.Permissions = append(uc.Permissions, tool.Name)
		}
	}
	return uc
}
