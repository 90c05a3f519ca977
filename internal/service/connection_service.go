package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bizdesk/bizdesk-go/internal/model"
	"go.uber.org/zap"
)

var (
	ErrConnectionClosed = fmt.Errorf("连接已断开")
)

const (
	heartbeatInterval = 30 * time.Second
	heartbeatTimeout  = 60 * time.Second
	maxMissedBeats    = 3
)

// ConnectionService WebSocket 连接管理
type ConnectionService struct {
	conns  map[string]*model.Connection // connId -> connection
	mu     sync.RWMutex
	logger *zap.Logger
}

// NewConnectionService 创建连接管理服务
func NewConnectionService(logger *zap.Logger) *ConnectionService {
	return &ConnectionService{
		conns:  make(map[string]*model.Connection),
		logger: logger,
	}
}

// Register 注册连接
func (s *ConnectionService) Register(conn *model.Connection) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conn.UpdateHeartbeat(time.Now())
	s.conns[conn.ConnID] = conn

	s.logger.Info("连接注册成功",
		zap.String("userId", conn.UserID),
		zap.String("connId", conn.ConnID),
		zap.String("sessionId", conn.ChatSessionID))
}

// Send 向指定连接发送消息
func (s *ConnectionService) Send(connID string, message interface{}) error {
	s.mu.RLock()
	conn, ok := s.conns[connID]
	s.mu.RUnlock()

	if !ok {
		s.logger.Warn("连接不存在，消息发送失败", zap.String("connId", connID))
		return ErrConnectionClosed
	}

	if err := conn.WriteMessage(message); err != nil {
		s.logger.Error("消息发送失败",
			zap.String("connId", connID),
			zap.Error(err))
		go s.Remove(connID)
		return err
	}
	return nil
}

// UpdateHeartbeat 更新心跳时间
func (s *ConnectionService) UpdateHeartbeat(connID string) bool {
	s.mu.RLock()
	conn, ok := s.conns[connID]
	s.mu.RUnlock()

	if !ok {
		return false
	}
	conn.UpdateHeartbeat(time.Now())
	return true
}

// Remove 移除连接
func (s *ConnectionService) Remove(connID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if conn, ok := s.conns[connID]; ok {
		delete(s.conns, connID)
		s.logger.Info("连接已移除",
			zap.String("userId", conn.UserID),
			zap.String("connId", connID))
	}
}

// OnlineCount 在线连接数
func (s *ConnectionService) OnlineCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conns)
}

// Run 心跳检测，ctx 取消后退出
func (s *ConnectionService) Run(ctx context.Context) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.sweep(now)
		}
	}
}

// sweep 清理连续丢失心跳的连接
func (s *ConnectionService) sweep(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for connID, conn := range s.conns {
		missed, expired := conn.CheckHeartbeat(now, heartbeatTimeout, maxMissedBeats)
		switch {
		case expired:
			s.logger.Info("清理无效连接",
				zap.String("userId", conn.UserID),
				zap.Int("missedBeats", missed))
			if conn.Conn != nil {
				conn.Conn.Close()
			}
			delete(s.conns, connID)
		case missed > 0:
			s.logger.Warn("连接心跳丢失",
				zap.String("userId", conn.UserID),
				zap.Int("missedBeats", missed))
		}
	}
}
