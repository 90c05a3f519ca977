package handler

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/bizdesk/bizdesk-go/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Pinger 可做健康检查的依赖
type Pinger interface {
	Ping(ctx context.Context) error
}

// APIHandler 健康检查等通用接口
type APIHandler struct {
	serviceName string
	deps        map[string]Pinger
	connections *service.ConnectionService
	logger      *zap.Logger
}

// NewAPIHandler 创建 API 处理器
func NewAPIHandler(serviceName string, deps map[string]Pinger, connections *service.ConnectionService, logger *zap.Logger) *APIHandler {
	return &APIHandler{
		serviceName: serviceName,
		deps:        deps,
		connections: connections,
		logger:      logger,
	}
}

// Health 健康检查，任一依赖不可用时返回 503
func (h *APIHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.deps))
	for name := range h.deps {
		names = append(names, name)
	}
	sort.Strings(names)

	status := "UP"
	checks := gin.H{}
	for _, name := range names {
		if err := h.deps[name].Ping(ctx); err != nil {
			h.logger.Warn("依赖不可用", zap.String("dependency", name), zap.Error(err))
			checks[name] = "DOWN"
			status = "DOWN"
			continue
		}
		checks[name] = "UP"
	}

	code := http.StatusOK
	if status != "UP" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":       status,
		"service":      h.serviceName,
		"checks":       checks,
		"online_users": h.connections.OnlineCount(),
	})
}
