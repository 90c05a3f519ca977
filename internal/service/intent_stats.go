package service

import (
	"sync/atomic"

	"github.com/bizdesk/bizdesk-go/internal/model"
)

// IntentStatsRecorder 意图识别计数器（并发安全，进程重启清零）
type IntentStatsRecorder struct {
	total            atomic.Int64
	aiSuccess        atomic.Int64
	fallback         atomic.Int64
	confidenceMicros atomic.Int64 // 置信度之和 * 1e6
}

// NewIntentStatsRecorder 创建计数器
func NewIntentStatsRecorder() *IntentStatsRecorder {
	return &IntentStatsRecorder{}
}

// Record 记录一次识别
func (r *IntentStatsRecorder) Record(confidence float64, aiAvailable bool) {
	r.total.Add(1)
	if aiAvailable {
		r.aiSuccess.Add(1)
	} else {
		r.fallback.Add(1)
	}
	r.confidenceMicros.Add(int64(confidence * 1e6))
}

// Reset 清零
func (r *IntentStatsRecorder) Reset() {
	r.total.Store(0)
	r.aiSuccess.Store(0)
	r.fallback.Store(0)
	r.confidenceMicros.Store(0)
}

// Snapshot 统计快照
func (r *IntentStatsRecorder) Snapshot() model.IntentStats {
	total := r.total.Load()
	stats := model.IntentStats{TotalDetections: total}
	for _, t := range model.IntentTypes {
		stats.SupportedIntentTypes = append(stats.SupportedIntentTypes, string(t))
	}
	if total == 0 {
		return stats
	}

	n := float64(total)
	stats.AISuccessRate = float64(r.aiSuccess.Load()) / n
	stats.FallbackRate = float64(r.fallback.Load()) / n
	stats.AverageConfidence = float64(r.confidenceMicros.Load()) / 1e6 / n
	return stats
}
