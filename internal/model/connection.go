package model

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Connection 一个 WebSocket 连接（同一用户可以有多个标签页）
type Connection struct {
	ConnID        string
	UserID        string
	ChatSessionID string
	Conn          *websocket.Conn
	ClientIP      string
	LastHeartbeat time.Time
	MissedBeats   int
	mu            sync.Mutex
}

// UpdateHeartbeat 更新心跳时间
func (c *Connection) UpdateHeartbeat(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.LastHeartbeat = now
	c.MissedBeats = 0
}

// CheckHeartbeat 超过 timeout 未收到心跳时累加丢失次数，返回是否应该清理
func (c *Connection) CheckHeartbeat(now time.Time, timeout time.Duration, maxMissed int) (missed int, expired bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if now.Sub(c.LastHeartbeat) <= timeout {
		return c.MissedBeats, false
	}
	c.MissedBeats++
	return c.MissedBeats, c.MissedBeats >= maxMissed
}

// WriteMessage 向 WebSocket 写入消息（线程安全）
func (c *Connection) WriteMessage(message interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Conn.WriteJSON(message)
}
