package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bizdesk/bizdesk-go/internal/client"
	"github.com/bizdesk/bizdesk-go/internal/config"
	"github.com/bizdesk/bizdesk-go/internal/handler"
	"github.com/bizdesk/bizdesk-go/internal/middleware"
	"github.com/bizdesk/bizdesk-go/internal/service"
	"github.com/bizdesk/bizdesk-go/internal/store"
	"github.com/bizdesk/bizdesk-go/internal/tools"
	"github.com/bizdesk/bizdesk-go/internal/vectorstore"
	"github.com/bizdesk/bizdesk-go/pkg/logger"
	"github.com/bizdesk/bizdesk-go/pkg/redis"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "configs/assistant.yaml", "配置文件路径")
	flag.Parse()

	// 加载配置
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	// 初始化日志
	zapLogger, err := logger.NewLogger(cfg.Log.Level)
	if err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("assistant 服务启动中...")

	// 初始化存储
	redisClient, err := redis.NewRedisClient(context.Background(), cfg.Redis)
	if err != nil {
		zapLogger.Fatal("初始化 Redis 失败", zap.Error(err))
	}
	defer redisClient.Close()
	sessionStore := store.NewRedisSessionStore(redisClient, cfg.Redis.SessionTTL)

	db, err := store.NewSQLite(cfg.Database.Path)
	if err != nil {
		zapLogger.Fatal("初始化数据库失败", zap.Error(err))
	}
	defer db.Close()

	// 初始化 LLM 客户端（未配置 API Key 时只使用规则识别）
	var llm service.LLM
	if cfg.LLMConfigured() {
		llm = client.NewDashScopeClient(client.Options{
			APIKey:          cfg.DashScope.APIKey,
			Model:           cfg.DashScope.Model,
			BaseURL:         cfg.DashScope.BaseURL,
			Temperature:     cfg.DashScope.Temperature,
			MaxTokens:       cfg.DashScope.MaxTokens,
			CostPer1KTokens: cfg.DashScope.CostPer1KTokens,
		}, zapLogger)
	} else {
		zapLogger.Warn("未配置 DashScope API Key，AI 分类与通用回复不可用")
	}

	// 初始化命令注册中心
	clientService := service.NewClientService(db, zapLogger)
	registry := tools.NewRegistry(zapLogger)
	if err := tools.RegisterBuiltinTools(registry, clientService, zapLogger); err != nil {
		zapLogger.Fatal("注册命令失败", zap.Error(err))
	}

	// 初始化业务服务
	var classifier service.IntentClassifier
	if llm != nil && cfg.Intent.AIEnabled {
		classifier = service.NewClassifierService(llm, registry, cfg.Intent.ClassifyTimeout, zapLogger)
	}
	intentService := service.NewIntentService(
		service.NewRuleMatcher(),
		classifier,
		registry,
		service.NewIntentStatsRecorder(),
		cfg.Intent.HighConfidence,
		zapLogger,
	)
	fallback := service.NewFallbackResponder(llm, cfg.Intent.FallbackTimeout, zapLogger)
	if llm != nil && cfg.Knowledge.Enabled {
		knowledge := service.NewKnowledgeService(
			client.NewEmbeddingClient(client.EmbeddingOptions{
				APIKey:  cfg.DashScope.APIKey,
				Model:   cfg.Knowledge.EmbeddingModel,
				BaseURL: cfg.DashScope.BaseURL,
			}, zapLogger),
			vectorstore.NewMemoryStore(),
			cfg.Knowledge.TopK,
			cfg.Knowledge.MinScore,
			zapLogger,
		)
		loadCtx, cancelLoad := context.WithTimeout(context.Background(), cfg.Intent.FallbackTimeout)
		if err := knowledge.LoadArticles(loadCtx, service.DefaultHelpArticles()); err != nil {
			zapLogger.Warn("加载帮助文章失败，通用回复不附带帮助内容", zap.Error(err))
		} else {
			fallback.WithHelp(knowledge)
		}
		cancelLoad()
	}

	sessionService := service.NewSessionService(sessionStore, cfg.Intent.HistorySize, zapLogger)
	chatService := service.NewChatService(service.ChatServiceDeps{
		Sessions:        sessionService,
		Intents:         intentService,
		Executor:        service.NewCommandExecutor(registry, zapLogger),
		Fallback:        fallback,
		Contexts:        service.NewContextService(cfg.Server.Name, db, sessionStore, registry, zapLogger),
		AcceptThreshold: cfg.Intent.AcceptThreshold,
		HighConfidence:  cfg.Intent.HighConfidence,
	}, zapLogger)
	connectionService := service.NewConnectionService(zapLogger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go connectionService.Run(ctx)

	// 初始化处理器
	chatHandler := handler.NewChatHandler(chatService, sessionService, zapLogger)
	wsHandler := handler.NewWebSocketHandler(connectionService, sessionService, chatService, zapLogger).
		WithAllowedOrigins(cfg.Server.AllowedOrigins...)
	apiHandler := handler.NewAPIHandler(cfg.Server.Name, map[string]handler.Pinger{
		"redis":  sessionStore,
		"sqlite": db,
	}, connectionService, zapLogger)

	// 初始化路由
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.CORS(cfg.Server.AllowedOrigins...))

	r.GET("/api/health", apiHandler.Health)

	api := r.Group("/api/chat", middleware.Identity(), middleware.RateLimit(cfg.RateLimit, zapLogger))
	chatHandler.RegisterRoutes(api)

	r.GET("/ws/chat", middleware.Identity(), wsHandler.HandleWebSocket)

	// 启动服务
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		zapLogger.Info("assistant 服务启动成功",
			zap.Int("port", cfg.Server.Port),
			zap.Int("commands", registry.Count()),
			zap.Bool("ai", classifier != nil))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("服务启动失败", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zapLogger.Info("正在关闭服务...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("服务关闭失败", zap.Error(err))
	}
	zapLogger.Info("服务已关闭")
}
