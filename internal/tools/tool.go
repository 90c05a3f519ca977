package tools

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotImplemented 命令已声明但没有处理函数
var ErrNotImplemented = errors.New("command handler not implemented")

// Tool 聊天命令定义（类似 OpenAI Function Calling），名称为 type.action
type Tool struct {
	Name        string          `json:"name"`        // 命令名，例如 client.create
	Description string          `json:"description"` // 命令描述
	Parameters  ParameterSchema `json:"parameters"`  // 参数定义，Required 即必填字段
	Handler     ToolHandler     `json:"-"`           // 处理函数（不序列化）
}

// ParameterSchema JSON Schema 格式的参数定义
type ParameterSchema struct {
	Type       string              `json:"type"`       // "object"
	Properties map[string]Property `json:"properties"` // 参数属性
	Required   []string            `json:"required"`   // 必需参数（有序）
}

// Property 参数属性
type Property struct {
	Type        string   `json:"type"`             // string, number, boolean
	Description string   `json:"description"`      // 参数描述
	Format      string   `json:"format,omitempty"` // email 等
	Enum        []string `json:"enum,omitempty"`   // 枚举值
}

// Request 命令调用
type Request struct {
	UserID string
	Params map[string]string
}

// Result 命令执行结果
type Result struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ToolHandler 命令处理函数
//
// 预期内的失败（未找到、校验失败）通过 Result.Success=false 返回，error 只用于意外错误。
type ToolHandler func(ctx context.Context, req Request) (*Result, error)

// Execute 执行命令
func (t *Tool) Execute(ctx context.Context, req Request) (*Result, error) {
	if t.Handler == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotImplemented, t.Name)
	}
	return t.Handler(ctx, req)
}

// HasField 是否声明了该参数
func (t *Tool) HasField(name string) bool {
	_, ok := t.Parameters.Properties[name]
	return ok
}

// ToFunctionDef 转换为 LLM Function 定义格式
func (t *Tool) ToFunctionDef() map[string]interface{} {
	return map[string]interface{}{
		"name":        t.Name,
		"description": t.Description,
		"parameters":  t.Parameters,
	}
}
