package service

import (
	"context"
	"testing"

	"github.com/bizdesk/bizdesk-go/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestIntentService(t *testing.T, classifier IntentClassifier) (*IntentService, *IntentStatsRecorder) {
	t.Helper()
	stats := NewIntentStatsRecorder()
	svc := NewIntentService(NewRuleMatcher(), classifier, newTestRegistry(t, nil), stats, 0.8, zap.NewNop())
	return svc, stats
}

func TestReconcileIntents(t *testing.T) {
	rule := model.Intent{
		Type:       model.IntentClient,
		Action:     model.ActionCreate,
		Confidence: 0.85,
		Data:       map[string]string{"first_name": "John", "email": "john@rules.com"},
	}

	t.Run("ai unavailable", func(t *testing.T) {
		got := ReconcileIntents(rule, nil, 0.8)
		assert.Equal(t, rule.Data, got.Data)
		assert.Equal(t, 0.85, got.Confidence)
	})

	t.Run("agreement merges with ai precedence", func(t *testing.T) {
		ai := &model.Intent{
			Type:       model.IntentClient,
			Action:     model.ActionCreate,
			Confidence: 0.7,
			Data:       map[string]string{"last_name": "Doe", "email": "john@ai.com"},
		}
		got := ReconcileIntents(rule, ai, 0.8)
		assert.Equal(t, map[string]string{
			"first_name": "John",
			"last_name":  "Doe",
			"email":      "john@ai.com",
		}, got.Data)
		assert.Equal(t, 0.85, got.Confidence)
		assert.Equal(t, "merged", got.Source)
	})

	t.Run("disagreement with confident rules", func(t *testing.T) {
		ai := &model.Intent{Type: model.IntentProject, Action: model.ActionCreate, Confidence: 0.99}
		got := ReconcileIntents(rule, ai, 0.8)
		assert.Equal(t, model.IntentClient, got.Type)
	})

	t.Run("disagreement with weak rules", func(t *testing.T) {
		weak := rule.Clone()
		weak.Confidence = 0.6
		ai := &model.Intent{Type: model.IntentProject, Action: model.ActionCreate, Confidence: 0.5}
		got := ReconcileIntents(weak, ai, 0.8)
		assert.Equal(t, model.IntentProject, got.Type)
		assert.Equal(t, 0.5, got.Confidence)
	})

	t.Run("inputs are not mutated", func(t *testing.T) {
		ai := &model.Intent{Type: model.IntentClient, Action: model.ActionCreate, Confidence: 0.9,
			Data: map[string]string{"phone": "555"}}
		ReconcileIntents(rule, ai, 0.8)
		assert.NotContains(t, rule.Data, "phone")
	})
}

func TestReconcileIntents_AgreementTakesMaxConfidence(t *testing.T) {
	confidences := []float64{0, 0.1, 0.3, 0.5, 0.6, 0.79, 0.8, 0.95, 1}
	for _, rc := range confidences {
		for _, ac := range confidences {
			rule := model.Intent{Type: model.IntentTask, Action: model.ActionList, Confidence: rc}
			ai := &model.Intent{Type: model.IntentTask, Action: model.ActionList, Confidence: ac}
			got := ReconcileIntents(rule, ai, 0.8)
			want := rc
			if ac > want {
				want = ac
			}
			assert.Equal(t, want, got.Confidence, "rule=%v ai=%v", rc, ac)
		}
	}
}

func TestIntentService_DetectRulesOnly(t *testing.T) {
	svc, stats := newTestIntentService(t, nil)

	intent := svc.Detect(context.Background(), "Create a new client named John", ClassifyContext{})
	assert.Equal(t, model.IntentClient, intent.Type)
	assert.Equal(t, model.ActionCreate, intent.Action)
	assert.Equal(t, []string{"last_name", "email"}, intent.Missing)

	snap := stats.Snapshot()
	assert.Equal(t, int64(1), snap.TotalDetections)
	assert.Equal(t, 1.0, snap.FallbackRate)
	assert.Equal(t, 0.0, snap.AISuccessRate)
}

func TestIntentService_DetectIdempotentWithoutAI(t *testing.T) {
	svc, _ := newTestIntentService(t, &fakeClassifier{})
	msg := "Update client Jane Smith's company to Globex"

	first := svc.Detect(context.Background(), msg, ClassifyContext{})
	second := svc.Detect(context.Background(), msg, ClassifyContext{})
	assert.Equal(t, first, second)
}

func TestIntentService_DetectWithAI(t *testing.T) {
	classifier := &fakeClassifier{intent: &model.Intent{
		Type:       model.IntentClient,
		Action:     model.ActionCreate,
		Confidence: 0.92,
		Data: map[string]string{
			"last_name": "Doe",
			"email":     "not-an-email",
			"shoe_size": "44",
		},
		Source: "ai",
	}}
	svc, stats := newTestIntentService(t, classifier)

	intent := svc.Detect(context.Background(), "Create a new client named John", ClassifyContext{})

	assert.Equal(t, int32(1), classifier.calls.Load())
	assert.Equal(t, "merged", intent.Source)
	assert.Equal(t, 0.92, intent.Confidence)
	assert.Equal(t, map[string]string{"first_name": "John", "last_name": "Doe"}, intent.Data)
	assert.Equal(t, []string{"email"}, intent.Missing)
	assert.Equal(t, 1.0, stats.Snapshot().AISuccessRate)
}

func TestIntentService_Sanitize(t *testing.T) {
	svc, _ := newTestIntentService(t, nil)

	general := svc.Sanitize(model.Intent{Type: model.IntentGeneral, Data: map[string]string{"email": "a@b.co"}})
	assert.Empty(t, general.Data)
	assert.Equal(t, model.ActionNone, general.Action)

	list := svc.Sanitize(model.Intent{
		Type:   model.IntentClient,
		Action: model.ActionList,
		Data:   map[string]string{"filter": "  Acme ", "name": "x"},
	})
	assert.Equal(t, map[string]string{"filter": "Acme"}, list.Data)
}

func TestIntentStatsRecorder(t *testing.T) {
	stats := NewIntentStatsRecorder()
	empty := stats.Snapshot()
	assert.Zero(t, empty.TotalDetections)
	assert.Zero(t, empty.AverageConfidence)
	assert.Equal(t, []string{"client", "project", "task", "proposal", "general"}, empty.SupportedIntentTypes)

	stats.Record(0.9, true)
	stats.Record(0.5, false)
	stats.Record(0.4, true)

	snap := stats.Snapshot()
	require.Equal(t, int64(3), snap.TotalDetections)
	assert.InDelta(t, 2.0/3.0, snap.AISuccessRate, 1e-9)
	assert.InDelta(t, 1.0/3.0, snap.FallbackRate, 1e-9)
	assert.InDelta(t, 0.6, snap.AverageConfidence, 1e-6)

	stats.Reset()
	assert.Zero(t, stats.Snapshot().TotalDetections)
}
