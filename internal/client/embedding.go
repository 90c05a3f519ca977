package client

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

const embeddingPath = "/api/v1/services/embeddings/text-embedding/text-embedding"

// 向量化的文本类型
const (
	TextTypeDocument = "document"
	TextTypeQuery    = "query"
)

// EmbeddingClient 通义千问 Embedding 客户端
type EmbeddingClient struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// EmbeddingOptions 客户端选项
type EmbeddingOptions struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
}

// EmbeddingRequest 请求结构
type EmbeddingRequest struct {
	Model      string                 `json:"model"`
	Input      EmbeddingInput         `json:"input"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
}

// EmbeddingInput 输入结构
type EmbeddingInput struct {
	Texts []string `json:"texts"`
}

// EmbeddingResponse 响应结构
type EmbeddingResponse struct {
	Output struct {
		Embeddings []struct {
			TextIndex int       `json:"text_index"`
			Embedding []float64 `json:"embedding"`
		} `json:"embeddings"`
	} `json:"output"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
	RequestID string `json:"request_id"`
}

// NewEmbeddingClient 创建 Embedding 客户端
func NewEmbeddingClient(opts EmbeddingOptions, logger *zap.Logger) *EmbeddingClient {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://dashscope.aliyuncs.com"
	}
	model := opts.Model
	if model == "" {
		model = "text-embedding-v2"
	}
	return &EmbeddingClient{
		apiKey:     opts.APIKey,
		model:      model,
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Embed 批量获取文本向量，结果与 texts 一一对应
func (c *EmbeddingClient) Embed(ctx context.Context, texts []string, textType string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	reqBody := EmbeddingRequest{
		Model: c.model,
		Input: EmbeddingInput{Texts: texts},
		Parameters: map[string]interface{}{
			"text_type": textType,
		},
	}

	var embResp EmbeddingResponse
	if err := postJSON(ctx, c.httpClient, c.baseURL+embeddingPath, c.apiKey, reqBody, &embResp); err != nil {
		return nil, err
	}

	embeddings := make([][]float64, len(texts))
	for _, emb := range embResp.Output.Embeddings {
		if emb.TextIndex < 0 || emb.TextIndex >= len(texts) {
			return nil, fmt.Errorf("%w: text_index %d 越界", ErrUnusableOutput, emb.TextIndex)
		}
		embeddings[emb.TextIndex] = emb.Embedding
	}
	for i, emb := range embeddings {
		if len(emb) == 0 {
			return nil, fmt.Errorf("%w: 第 %d 条文本没有向量", ErrUnusableOutput, i)
		}
	}

	c.logger.Debug("向量获取成功",
		zap.Int("count", len(embeddings)),
		zap.Int("dimension", len(embeddings[0])),
		zap.Int("tokens", embResp.Usage.TotalTokens))

	return embeddings, nil
}

// EmbedQuery 获取查询文本的向量
func (c *EmbeddingClient) EmbedQuery(ctx context.Context, query string) ([]float64, error) {
	embeddings, err := c.Embed(ctx, []string{query}, TextTypeQuery)
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}
