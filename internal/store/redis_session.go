package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bizdesk/bizdesk-go/internal/model"
	"github.com/redis/go-redis/v9"
)

// RedisSessionStore 基于 Redis 的会话存储
//
// chat_session:{id}   会话 JSON（含 pending_intent）
// chat_messages:{id}  消息列表（RPUSH 追加）
// user_sessions:{uid} 用户的会话集合
type RedisSessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSessionStore 创建会话存储，ttl <= 0 表示不过期
func NewRedisSessionStore(client *redis.Client, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{client: client, ttl: ttl}
}

func sessionKey(id string) string { return fmt.Sprintf("chat_session:%s", id) }
func messagesKey(id string) string { return fmt.Sprintf("chat_messages:%s", id) }
func userSessionsKey(uid string) string { return fmt.Sprintf("user_sessions:%s", uid) }

// GetSession 读取会话，不存在返回 ErrNotFound
func (s *RedisSessionStore) GetSession(ctx context.Context, sessionID string) (*model.ChatSession, error) {
	raw, err := s.client.Get(ctx, sessionKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("读取会话失败: %w", err)
	}

	var session model.ChatSession
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("解析会话失败: %w", err)
	}
	return &session, nil
}

// SaveSession 保存会话（整体覆盖，最后写入生效）
func (s *RedisSessionStore) SaveSession(ctx context.Context, session *model.ChatSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("序列化会话失败: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, sessionKey(session.ID), data, s.ttl)
	if session.UserID != "" {
		pipe.SAdd(ctx, userSessionsKey(session.UserID), session.ID)
		if s.ttl > 0 {
			pipe.Expire(ctx, userSessionsKey(session.UserID), s.ttl)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("保存会话失败: %w", err)
	}
	return nil
}

// AppendMessage 追加消息
func (s *RedisSessionStore) AppendMessage(ctx context.Context, msg model.ChatMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("序列化消息失败: %w", err)
	}

	key := messagesKey(msg.SessionID)
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key, data)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("保存消息失败: %w", err)
	}
	return nil
}

// RecentMessages 最近 n 条消息（按时间顺序），n <= 0 返回全部
func (s *RedisSessionStore) RecentMessages(ctx context.Context, sessionID string, n int) ([]model.ChatMessage, error) {
	start := int64(0)
	if n > 0 {
		start = int64(-n)
	}

	items, err := s.client.LRange(ctx, messagesKey(sessionID), start, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("读取消息失败: %w", err)
	}

	messages := make([]model.ChatMessage, 0, len(items))
	for _, item := range items {
		var msg model.ChatMessage
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			return nil, fmt.Errorf("解析消息失败: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// CountUserSessions 用户的会话数量
func (s *RedisSessionStore) CountUserSessions(ctx context.Context, userID string) (int64, error) {
	n, err := s.client.SCard(ctx, userSessionsKey(userID)).Result()
	if err != nil {
		return 0, fmt.Errorf("统计会话失败: %w", err)
	}
	return n, nil
}

// Ping 检查 Redis 连接
func (s *RedisSessionStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
