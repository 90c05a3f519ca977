package tools

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Registry 命令注册中心
type Registry struct {
	tools  map[string]*Tool
	mu     sync.RWMutex
	logger *zap.Logger
}

// NewRegistry 创建命令注册中心
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		tools:  make(map[string]*Tool),
		logger: logger,
	}
}

// Register 注册命令
func (r *Registry) Register(tool *Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if tool.Name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}

	if _, exists := r.tools[tool.Name]; exists {
		return fmt.Errorf("tool already registered: %s", tool.Name)
	}

	for _, field := range tool.Parameters.Required {
		if _, ok := tool.Parameters.Properties[field]; !ok {
			return fmt.Errorf("tool %s: required field %q has no property", tool.Name, field)
		}
	}

	r.tools[tool.Name] = tool
	r.logger.Debug("命令已注册", zap.String("name", tool.Name))
	return nil
}

// Get 获取命令
func (r *Registry) Get(name string) (*Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tool, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("tool not found: %s", name)
	}
	return tool, nil
}

// List 列出所有命令（按名称排序）
func (r *Registry) List() []*Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]*Tool, 0, len(r.tools))
	for _, tool := range r.tools {
		tools = append(tools, tool)
	}
	sort.Slice(tools, func(i, j int) bool { return tools[i].Name < tools[j].Name })
	return tools
}

// GetFunctionDefs 获取所有命令的 Function 定义（用于 LLM）
func (r *Registry) GetFunctionDefs() []map[string]interface{} {
	tools := r.List()
	defs := make([]map[string]interface{}, len(tools))
	for i, tool := range tools {
		defs[i] = tool.ToFunctionDef()
	}
	return defs
}

// Required 命令的必填字段（有序），未注册返回 nil
func (r *Registry) Required(name string) []string {
	tool, err := r.Get(name)
	if err != nil {
		return nil
	}
	return append([]string(nil), tool.Parameters.Required...)
}

// Execute 执行命令
func (r *Registry) Execute(ctx context.Context, name string, req Request) (*Result, error) {
	r.logger.Info("执行命令",
		zap.String("tool", name),
		zap.String("userId", req.UserID))

	tool, err := r.Get(name)
	if err != nil {
		return nil, err
	}

	result, err := tool.Execute(ctx, req)
	if err != nil {
		r.logger.Error("命令执行失败",
			zap.String("tool", name),
			zap.Error(err))
		return nil, err
	}

	r.logger.Info("命令执行完成",
		zap.String("tool", name),
		zap.Bool("success", result.Success))

	return result, nil
}

// Count 获取注册的命令数量
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}
