// intent-probe 从命令行或标准输入读取消息，打印识别出的意图，用于调试识别规则。
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/bizdesk/bizdesk-go/internal/client"
	"github.com/bizdesk/bizdesk-go/internal/config"
	"github.com/bizdesk/bizdesk-go/internal/model"
	"github.com/bizdesk/bizdesk-go/internal/service"
	"github.com/bizdesk/bizdesk-go/internal/tools"
	"github.com/bizdesk/bizdesk-go/pkg/logger"
	"go.uber.org/zap"
)

type probeResult struct {
	Message  string       `json:"message"`
	Intent   model.Intent `json:"intent"`
	Rule     model.Intent `json:"rule"`
	Accepted bool         `json:"accepted"`
}

func main() {
	configPath := flag.String("config", "configs/assistant.yaml", "配置文件路径")
	chatType := flag.String("type", "general", "会话类型")
	message := flag.String("m", "", "要识别的消息，为空时逐行读取标准输入")
	useAI := flag.Bool("ai", false, "同时调用 AI 分类")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	zapLogger, err := logger.NewLogger(cfg.Log.Level)
	if err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}
	defer zapLogger.Sync()

	registry := tools.NewRegistry(zapLogger)
	if err := tools.RegisterBuiltinTools(registry, nil, zapLogger); err != nil {
		zapLogger.Fatal("注册命令失败", zap.Error(err))
	}

	var classifier service.IntentClassifier
	if *useAI {
		if !cfg.LLMConfigured() {
			zapLogger.Fatal("未配置 DashScope API Key，无法使用 -ai")
		}
		llm := client.NewDashScopeClient(client.Options{
			APIKey:  cfg.DashScope.APIKey,
			Model:   cfg.DashScope.Model,
			BaseURL: cfg.DashScope.BaseURL,
		}, zapLogger)
		classifier = service.NewClassifierService(llm, registry, cfg.Intent.ClassifyTimeout, zapLogger)
	}

	stats := service.NewIntentStatsRecorder()
	intents := service.NewIntentService(service.NewRuleMatcher(), classifier, registry, stats, cfg.Intent.HighConfidence, zapLogger)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	probe := func(text string) {
		text = strings.TrimSpace(text)
		if text == "" {
			return
		}
		intent := intents.Detect(context.Background(), text, service.ClassifyContext{ChatType: *chatType})
		result := probeResult{
			Message:  text,
			Intent:   intent,
			Rule:     intents.MatchRules(text),
			Accepted: !intent.IsGeneral() && intent.Confidence >= cfg.Intent.AcceptThreshold,
		}
		if err := enc.Encode(result); err != nil {
			zapLogger.Error("输出结果失败", zap.Error(err))
		}
	}

	if *message != "" {
		probe(*message)
		return
	}

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		probe(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		zapLogger.Fatal("读取标准输入失败", zap.Error(err))
	}

	snap := stats.Snapshot()
	fmt.Fprintf(os.Stderr, "detections=%d avg_confidence=%.2f ai_success=%.2f\n",
		snap.TotalDetections, snap.AverageConfidence, snap.AISuccessRate)
}
