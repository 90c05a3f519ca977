// Package store provides persistence for clients (SQLite) and chat sessions (Redis).
package store

import (
	"context"
	"errors"

	"github.com/bizdesk/bizdesk-go/internal/model"
)

var (
	// ErrNotFound 记录不存在
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate 唯一约束冲突
	ErrDuplicate = errors.New("record already exists")
)

// ClientRepository 客户数据访问，所有查询按所属用户隔离
type ClientRepository interface {
	CreateClient(ctx context.Context, c *model.Client) error
	GetClientByEmail(ctx context.Context, userID, email string) (*model.Client, error)
	FindClientsByName(ctx context.Context, userID, name string) ([]model.Client, error)
	ListClients(ctx context.Context, userID, filter string) ([]model.Client, error)
	UpdateClient(ctx context.Context, c *model.Client) error
	CountClients(ctx context.Context, userID string) (int64, error)
	Ping(ctx context.Context) error
	Close() error
}

// SessionStore 聊天会话存储
//
// 同一会话的并发写入采用最后写入生效，不做跨请求加锁。
type SessionStore interface {
	GetSession(ctx context.Context, sessionID string) (*model.ChatSession, error)
	SaveSession(ctx context.Context, session *model.ChatSession) error
	AppendMessage(ctx context.Context, msg model.ChatMessage) error
	RecentMessages(ctx context.Context, sessionID string, n int) ([]model.ChatMessage, error)
	CountUserSessions(ctx context.Context, userID string) (int64, error)
	Ping(ctx context.Context) error
}
