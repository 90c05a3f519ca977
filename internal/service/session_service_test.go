package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bizdesk/bizdesk-go/internal/store"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestSessionService(t *testing.T) *SessionService {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewSessionService(store.NewRedisSessionStore(rdb, time.Hour), 2, zap.NewNop())
}

func TestSessionService_OpenSession(t *testing.T) {
	svc := newTestSessionService(t)
	ctx := context.Background()

	created, err := svc.OpenSession(ctx, "", "u1", "")
	require.NoError(t, err)
	assert.Equal(t, "general", created.Type)
	assert.Equal(t, "New conversation", created.Title)

	got, err := svc.OpenSession(ctx, created.ID, "u1", "clients")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "general", got.Type)

	_, err = svc.OpenSession(ctx, created.ID, "u2", "")
	assert.ErrorIs(t, err, ErrSessionForbidden)

}

func TestSessionService_OpenSessionCreatesUnknownID(t *testing.T) {
	svc := newTestSessionService(t)
	ctx := context.Background()

	created, err := svc.OpenSession(ctx, "brand-new", "u1", "clients")
	require.NoError(t, err)
	assert.Equal(t, "brand-new", created.ID)
	assert.Equal(t, "u1", created.UserID)
	assert.Equal(t, "clients", created.Type)

	stored, err := svc.GetSession(ctx, "brand-new", "u1")
	require.NoError(t, err)
	assert.Equal(t, "clients", stored.Type)

	// 已存在的会话不会被其他用户接管
	_, err = svc.OpenSession(ctx, "brand-new", "u2", "")
	assert.ErrorIs(t, err, ErrSessionForbidden)

	_, err = svc.OpenSession(ctx, "bad id!", "u1", "")
	assert.True(t, IsValidationError(err))

	_, err = svc.OpenSession(ctx, "typed", "u1", "invoices")
	assert.True(t, IsValidationError(err))
	_, err = svc.GetSession(ctx, "typed", "u1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSessionService_InvalidChatType(t *testing.T) {
	_, err := newTestSessionService(t).CreateSession(context.Background(), "u1", "invoices", "")
	assert.True(t, IsValidationError(err))
}

func TestSessionService_History(t *testing.T) {
	svc := newTestSessionService(t)
	ctx := context.Background()
	s, err := svc.CreateSession(ctx, "u1", "clients", "Clients")
	require.NoError(t, err)

	for _, text := range []string{"one", "two", "three"} {
		_, err := svc.AppendMessage(ctx, s.ID, "user", text, nil)
		require.NoError(t, err)
	}

	history, err := svc.History(ctx, s.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "two", history[0].Content)
	assert.Equal(t, "three", history[1].Content)

	all, err := svc.Messages(ctx, s.ID, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
