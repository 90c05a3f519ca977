package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config 应用配置
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Redis     RedisConfig     `yaml:"redis"`
	Database  DatabaseConfig  `yaml:"database"`
	DashScope DashScopeConfig `yaml:"dashscope"`
	Intent    IntentConfig    `yaml:"intent"`
	Knowledge KnowledgeConfig `yaml:"knowledge"`
	RateLimit RateLimitConfig `yaml:"rateLimit"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port int    `yaml:"port"`
	Name string `yaml:"name"`
	Mode string `yaml:"mode"` // debug, release, test

	AllowedOrigins []string `yaml:"allowedOrigins"` // 为空时放行任意来源
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Host       string        `yaml:"host"`
	Port       int           `yaml:"port"`
	Password   string        `yaml:"password"`
	DB         int           `yaml:"db"`
	SessionTTL time.Duration `yaml:"sessionTTL"` // 会话与消息记录的过期时间

	PoolSize    int           `yaml:"poolSize"`
	DialTimeout time.Duration `yaml:"dialTimeout"`
}

// DatabaseConfig SQLite 配置
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// DashScopeConfig 通义千问配置
type DashScopeConfig struct {
	APIKey          string  `yaml:"apiKey"`
	Model           string  `yaml:"model"`
	BaseURL         string  `yaml:"baseURL"`
	Temperature     float64 `yaml:"temperature"`
	MaxTokens       int     `yaml:"maxTokens"`
	CostPer1KTokens float64 `yaml:"costPer1kTokens"`
}

// IntentConfig 意图识别配置
type IntentConfig struct {
	AcceptThreshold float64       `yaml:"acceptThreshold"` // 可执行意图的最低置信度
	HighConfidence  float64       `yaml:"highConfidence"`  // 规则结果优先于 AI 结果的阈值
	AIEnabled       bool          `yaml:"aiEnabled"`
	ClassifyTimeout time.Duration `yaml:"classifyTimeout"`
	FallbackTimeout time.Duration `yaml:"fallbackTimeout"`
	HistorySize     int           `yaml:"historySize"`
}

// KnowledgeConfig 帮助中心检索配置
type KnowledgeConfig struct {
	Enabled        bool    `yaml:"enabled"`
	EmbeddingModel string  `yaml:"embeddingModel"`
	TopK           int     `yaml:"topK"`
	MinScore       float64 `yaml:"minScore"`
}

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requestsPerSecond"`
	Burst             int     `yaml:"burst"`
}

// Enabled 是否启用限流
func (c RateLimitConfig) Enabled() bool {
	return c.RequestsPerSecond > 0 && c.Burst > 0
}

// LogConfig 日志配置
type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// LoadConfig 加载配置文件
//
// 配置文件中的 ${VAR} 会用环境变量替换，.env 文件（如存在）会先被加载。
func LoadConfig(path string) (*Config, error) {
	// .env 不存在时忽略
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	return Parse(data)
}

// Parse 解析 YAML 配置内容
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("配置校验失败: %w", err)
	}

	return cfg, nil
}

// Default 默认配置
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 8080,
			Name: "bizdesk-assistant",
			Mode: "release",
		},
		Redis: RedisConfig{
			Host:        "localhost",
			Port:        6379,
			SessionTTL:  7 * 24 * time.Hour,
			PoolSize:    10,
			DialTimeout: 5 * time.Second,
		},
		Database: DatabaseConfig{
			Path: "./data/bizdesk.db",
		},
		DashScope: DashScopeConfig{
			Model:       "qwen-plus",
			BaseURL:     "https://dashscope.aliyuncs.com",
			Temperature: 0.7,
			MaxTokens:   2000,
		},
		Intent: IntentConfig{
			AcceptThreshold: 0.6,
			HighConfidence:  0.8,
			AIEnabled:       true,
			ClassifyTimeout: 10 * time.Second,
			FallbackTimeout: 30 * time.Second,
			HistorySize:     5,
		},
		Knowledge: KnowledgeConfig{
			Enabled:        true,
			EmbeddingModel: "text-embedding-v2",
			TopK:           3,
			MinScore:       0.5,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 2,
			Burst:             5,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Validate 校验配置
func (c *Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("server.mode must be debug, release or test, got %q", c.Server.Mode)
	}
	if c.Redis.SessionTTL <= 0 {
		return fmt.Errorf("redis.sessionTTL must be > 0")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path cannot be empty")
	}
	if c.Intent.AcceptThreshold < 0 || c.Intent.AcceptThreshold > 1 {
		return fmt.Errorf("intent.acceptThreshold must be within [0,1], got %v", c.Intent.AcceptThreshold)
	}
	if c.Intent.HighConfidence < 0 || c.Intent.HighConfidence > 1 {
		return fmt.Errorf("intent.highConfidence must be within [0,1], got %v", c.Intent.HighConfidence)
	}
	if c.Intent.ClassifyTimeout <= 0 || c.Intent.FallbackTimeout <= 0 {
		return fmt.Errorf("intent timeouts must be > 0")
	}
	if c.Intent.HistorySize < 0 {
		return fmt.Errorf("intent.historySize must be >= 0")
	}
	if c.Knowledge.TopK < 0 {
		return fmt.Errorf("knowledge.topK must be >= 0")
	}
	if c.Knowledge.MinScore < -1 || c.Knowledge.MinScore > 1 {
		return fmt.Errorf("knowledge.minScore must be within [-1,1], got %v", c.Knowledge.MinScore)
	}
	return nil
}

// LLMConfigured 是否配置了 LLM
func (c *Config) LLMConfigured() bool {
	return c.DashScope.APIKey != ""
}
