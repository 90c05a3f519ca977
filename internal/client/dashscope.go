package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

const generationPath = "/api/v1/services/aigc/text-generation/generation"

var (
	// ErrTransport 网络错误、超时等
	ErrTransport = errors.New("llm transport error")

	// ErrHTTPStatus API 返回非 200
	ErrHTTPStatus = errors.New("llm http error")

	// ErrUnusableOutput 模型返回内容无法使用
	ErrUnusableOutput = errors.New("llm returned unusable output")
)

// StatusError API 返回的 HTTP 错误
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API 返回错误: %d, body: %s", e.StatusCode, e.Body)
}

// Is 使 errors.Is(err, ErrHTTPStatus) 成立
func (e *StatusError) Is(target error) bool {
	return target == ErrHTTPStatus
}

// DashScopeClient 通义千问客户端
type DashScopeClient struct {
	apiKey          string
	model           string
	baseURL         string
	defaults        Params
	costPer1KTokens float64
	httpClient      *http.Client
	logger          *zap.Logger
}

// Options 客户端选项
type Options struct {
	APIKey          string
	Model           string
	BaseURL         string
	Temperature     float64
	MaxTokens       int
	CostPer1KTokens float64
	HTTPClient      *http.Client
}

// NewDashScopeClient 创建通义千问客户端
func NewDashScopeClient(opts Options, logger *zap.Logger) *DashScopeClient {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://dashscope.aliyuncs.com"
	}
	return &DashScopeClient{
		apiKey:  opts.APIKey,
		model:   opts.Model,
		baseURL: baseURL,
		defaults: Params{
			Temperature: opts.Temperature,
			MaxTokens:   opts.MaxTokens,
		},
		costPer1KTokens: opts.CostPer1KTokens,
		httpClient:      httpClient,
		logger:          logger,
	}
}

// Message 消息
type Message struct {
	Role    string `json:"role"` // system, user, assistant
	Content string `json:"content"`
}

// ChatRequest 聊天请求
type ChatRequest struct {
	Model      string     `json:"model"`
	Input      Input      `json:"input"`
	Parameters Parameters `json:"parameters,omitempty"`
}

// Input 输入
type Input struct {
	Messages []Message `json:"messages"`
}

// Parameters 参数
type Parameters struct {
	Temperature float64 `json:"temperature,omitempty"`
	TopP        float64 `json:"top_p,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
}

// ChatResponse 聊天响应
type ChatResponse struct {
	Output struct {
		Text         string `json:"text"`
		FinishReason string `json:"finish_reason"`
	} `json:"output"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	RequestID string `json:"request_id"`
}

// Params 单次调用参数，零值使用客户端默认值
type Params struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// Usage token 用量
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Completion 调用结果
type Completion struct {
	Text      string  `json:"text"`
	Usage     Usage   `json:"usage"`
	Cost      float64 `json:"cost"`
	RequestID string  `json:"request_id"`
}

// Chat 调用通义千问聊天接口
func (c *DashScopeClient) Chat(ctx context.Context, messages []Message, params Params) (*Completion, error) {
	params = c.withDefaults(params)
	reqBody := ChatRequest{
		Model: params.Model,
		Input: Input{
			Messages: messages,
		},
		Parameters: Parameters{
			Temperature: params.Temperature,
			MaxTokens:   params.MaxTokens,
		},
	}

	var chatResp ChatResponse
	if err := postJSON(ctx, c.httpClient, c.baseURL+generationPath, c.apiKey, reqBody, &chatResp); err != nil {
		return nil, err
	}

	usage := Usage{
		InputTokens:  chatResp.Usage.InputTokens,
		OutputTokens: chatResp.Usage.OutputTokens,
		TotalTokens:  chatResp.Usage.InputTokens + chatResp.Usage.OutputTokens,
	}

	c.logger.Debug("LLM 调用完成",
		zap.String("model", params.Model),
		zap.String("requestId", chatResp.RequestID),
		zap.Int("tokens", usage.TotalTokens))

	return &Completion{
		Text:      chatResp.Output.Text,
		Usage:     usage,
		Cost:      float64(usage.TotalTokens) / 1000 * c.costPer1KTokens,
		RequestID: chatResp.RequestID,
	}, nil
}

// Complete 单轮对话
func (c *DashScopeClient) Complete(ctx context.Context, systemPrompt, userPrompt string, params Params) (*Completion, error) {
	messages := []Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: userPrompt},
	}
	completion, err := c.Chat(ctx, messages, params)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(completion.Text) == "" {
		return nil, fmt.Errorf("%w: 空回复", ErrUnusableOutput)
	}
	return completion, nil
}

// CompleteJSON 单轮对话并把回复解析为 JSON 写入 out
func (c *DashScopeClient) CompleteJSON(ctx context.Context, systemPrompt, userPrompt string, params Params, out interface{}) (*Completion, error) {
	completion, err := c.Complete(ctx, systemPrompt, userPrompt, params)
	if err != nil {
		return nil, err
	}

	raw := ExtractJSON(completion.Text)
	if raw == "" {
		return completion, fmt.Errorf("%w: 回复中没有 JSON 对象", ErrUnusableOutput)
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return completion, fmt.Errorf("%w: %v", ErrUnusableOutput, err)
	}
	return completion, nil
}

// ExtractJSON 从模型回复中截取第一个 '{' 到最后一个 '}'（兼容 ```json 代码块）
func ExtractJSON(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return ""
	}
	return text[start : end+1]
}

func (c *DashScopeClient) withDefaults(p Params) Params {
	if p.Model == "" {
		p.Model = c.model
	}
	if p.Temperature == 0 {
		p.Temperature = c.defaults.Temperature
	}
	if p.MaxTokens == 0 {
		p.MaxTokens = c.defaults.MaxTokens
	}
	return p
}

// postJSON 发送 JSON 请求并解析响应，错误归类为 ErrTransport / StatusError / ErrUnusableOutput
func postJSON(ctx context.Context, httpClient *http.Client, url, apiKey string, reqBody, out interface{}) error {
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("序列化请求失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("创建请求失败: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: 请求失败: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: 读取响应失败: %w", ErrTransport, err)
	}

	if resp.StatusCode != http.StatusOK {
		return &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(body), 512)}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: 解析响应失败: %v", ErrUnusableOutput, err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
