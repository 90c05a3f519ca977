package service

import (
	"context"
	"strings"

	"github.com/bizdesk/bizdesk-go/internal/model"
	"github.com/bizdesk/bizdesk-go/internal/tools"
	"go.uber.org/zap"
)

// IntentService 意图识别：规则匹配与 AI 分类并行，结果合并后补齐缺失字段
type IntentService struct {
	rules          *RuleMatcher
	classifier     IntentClassifier
	registry       *tools.Registry
	stats          *IntentStatsRecorder
	highConfidence float64
	logger         *zap.Logger
}

// NewIntentService 创建意图识别服务，classifier 为 nil 时只使用规则
func NewIntentService(
	rules *RuleMatcher,
	classifier IntentClassifier,
	registry *tools.Registry,
	stats *IntentStatsRecorder,
	highConfidence float64,
	logger *zap.Logger,
) *IntentService {
	return &IntentService{
		rules:          rules,
		classifier:     classifier,
		registry:       registry,
		stats:          stats,
		highConfidence: highConfidence,
		logger:         logger,
	}
}

// MatchRules 只做规则匹配（不计入统计）
func (s *IntentService) MatchRules(message string) model.Intent {
	return s.finish(s.rules.Match(message))
}

// Detect 识别意图，永不失败
func (s *IntentService) Detect(ctx context.Context, message string, cctx ClassifyContext) model.Intent {
	aiCh := make(chan *model.Intent, 1)
	if s.classifier != nil {
		go func() {
			aiCh <- s.classifier.Classify(ctx, message, cctx)
		}()
	} else {
		aiCh <- nil
	}

	rule := s.rules.Match(message)

	var ai *model.Intent
	select {
	case ai = <-aiCh:
	case <-ctx.Done():
		s.logger.Warn("意图识别被取消，只使用规则结果", zap.Error(ctx.Err()))
	}

	intent := s.Reconcile(rule, ai)
	s.logger.Info("意图识别完成",
		zap.String("intent", intent.Key()),
		zap.Float64("confidence", intent.Confidence),
		zap.String("source", intent.Source),
		zap.Strings("missing", intent.Missing))
	return intent
}

// Reconcile 合并两路结果并记录统计
func (s *IntentService) Reconcile(rule model.Intent, ai *model.Intent) model.Intent {
	intent := s.finish(ReconcileIntents(rule, ai, s.highConfidence))
	if s.stats != nil {
		s.stats.Record(intent.Confidence, ai != nil)
	}
	return intent
}

// Stats 统计快照
func (s *IntentService) Stats() model.IntentStats {
	return s.stats.Snapshot()
}

// ReconcileIntents 合并规则与 AI 的结果
//
// AI 不可用时取规则结果；类型动作一致时合并字段（AI 优先）并取较高置信度；
// 不一致时规则置信度 >= high 取规则，否则取 AI。
func ReconcileIntents(rule model.Intent, ai *model.Intent, high float64) model.Intent {
	rule = rule.Normalize()
	if ai == nil {
		return rule.Clone()
	}
	other := ai.Normalize()

	if rule.SameCommand(other) {
		merged := rule.Clone()
		for k, v := range other.Data {
			merged.Data[k] = v
		}
		if other.Confidence > merged.Confidence {
			merged.Confidence = other.Confidence
		}
		merged.Source = "merged"
		return merged
	}

	if rule.Confidence >= high {
		return rule.Clone()
	}
	return other.Clone()
}

// finish 按命令参数过滤字段并计算缺失的必填字段
func (s *IntentService) finish(intent model.Intent) model.Intent {
	intent = s.Sanitize(intent)
	intent.Missing = s.MissingFields(intent)
	return intent
}

// Sanitize 只保留命令声明的字段，丢弃空值和格式错误的邮箱
func (s *IntentService) Sanitize(intent model.Intent) model.Intent {
	intent = intent.Normalize().Clone()
	if intent.IsGeneral() {
		intent.Data = map[string]string{}
		return intent
	}

	tool, err := s.registry.Get(intent.Key())
	if err != nil {
		intent.Data = map[string]string{}
		return intent
	}
	for k, v := range intent.Data {
		prop, ok := tool.Parameters.Properties[k]
		v = strings.TrimSpace(v)
		switch {
		case !ok, v == "":
			delete(intent.Data, k)
		case prop.Format == "email" && !model.IsEmail(v):
			delete(intent.Data, k)
		default:
			intent.Data[k] = v
		}
	}
	return intent
}

// MissingFields 按声明顺序列出缺失的必填字段
func (s *IntentService) MissingFields(intent model.Intent) []string {
	if intent.IsGeneral() {
		return nil
	}
	var missing []string
	for _, field := range s.registry.Required(intent.Key()) {
		if strings.TrimSpace(intent.Data[field]) == "" {
			missing = append(missing, field)
		}
	}
	return missing
}
