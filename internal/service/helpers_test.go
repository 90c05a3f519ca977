package service

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/bizdesk/bizdesk-go/internal/client"
	"github.com/bizdesk/bizdesk-go/internal/model"
	"github.com/bizdesk/bizdesk-go/internal/tools"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRegistry(t *testing.T, clients tools.ClientOperations) *tools.Registry {
	t.Helper()
	registry := tools.NewRegistry(zap.NewNop())
	require.NoError(t, tools.RegisterBuiltinTools(registry, clients, zap.NewNop()))
	return registry
}

// fakeLLM 可编排的 LLM
type fakeLLM struct {
	mu       sync.Mutex
	text     string      // Complete 返回的文本
	json     interface{} // CompleteJSON 解码的对象
	err      error
	block    bool // 阻塞直到 ctx 结束
	calls    int
	prompts  []string
	lastUser string
}

func (f *fakeLLM) record(system, user string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.prompts = append(f.prompts, system)
	f.lastUser = user
}

func (f *fakeLLM) Complete(ctx context.Context, system, user string, _ client.Params) (*client.Completion, error) {
	f.record(system, user)
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	return &client.Completion{
		Text:  f.text,
		Usage: client.Usage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15},
		Cost:  0.0003,
	}, nil
}

func (f *fakeLLM) CompleteJSON(ctx context.Context, system, user string, _ client.Params, out interface{}) (*client.Completion, error) {
	f.record(system, user)
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	raw, err := json.Marshal(f.json)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return nil, err
	}
	return &client.Completion{Text: string(raw)}, nil
}

// fakeClassifier 返回固定结果
type fakeClassifier struct {
	intent *model.Intent
	calls  atomic.Int32
}

func (f *fakeClassifier) Classify(context.Context, string, ClassifyContext) *model.Intent {
	f.calls.Add(1)
	if f.intent == nil {
		return nil
	}
	out := f.intent.Clone()
	return &out
}
