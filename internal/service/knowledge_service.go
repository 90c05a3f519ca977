package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bizdesk/bizdesk-go/internal/client"
	"github.com/bizdesk/bizdesk-go/internal/vectorstore"
	"go.uber.org/zap"
)

// Embedder 文本向量化
type Embedder interface {
	Embed(ctx context.Context, texts []string, textType string) ([][]float64, error)
	EmbedQuery(ctx context.Context, query string) ([]float64, error)
}

// Article 帮助中心文章
type Article struct {
	ID    string
	Title string
	Topic string // 对应会话类型
	Body  string
}

// KnowledgeService 帮助中心检索，为通用回复补充平台说明
type KnowledgeService struct {
	embedder Embedder
	store    *vectorstore.MemoryStore
	topK     int
	minScore float64
	logger   *zap.Logger
}

// NewKnowledgeService 创建帮助中心检索服务
func NewKnowledgeService(embedder Embedder, store *vectorstore.MemoryStore, topK int, minScore float64, logger *zap.Logger) *KnowledgeService {
	if topK <= 0 {
		topK = 3
	}
	return &KnowledgeService{
		embedder: embedder,
		store:    store,
		topK:     topK,
		minScore: minScore,
		logger:   logger,
	}
}

// LoadArticles 向量化并写入文章
func (s *KnowledgeService) LoadArticles(ctx context.Context, articles []Article) error {
	if len(articles) == 0 {
		return nil
	}

	texts := make([]string, len(articles))
	for i, a := range articles {
		texts[i] = a.Title + "\n" + a.Body
	}

	vectors, err := s.embedder.Embed(ctx, texts, client.TextTypeDocument)
	if err != nil {
		return fmt.Errorf("向量化帮助文章失败: %w", err)
	}
	if len(vectors) != len(articles) {
		return fmt.Errorf("向量数量 %d 与文章数量 %d 不一致", len(vectors), len(articles))
	}

	docs := make([]vectorstore.Document, len(articles))
	for i, a := range articles {
		docs[i] = vectorstore.Document{
			ID:       a.ID,
			Content:  a.Body,
			Vector:   vectors[i],
			Metadata: map[string]string{"title": a.Title, "topic": a.Topic},
		}
	}
	if err := s.store.Add(docs...); err != nil {
		return fmt.Errorf("写入帮助文章失败: %w", err)
	}

	s.logger.Info("帮助文章已加载", zap.Int("count", len(docs)), zap.Int("total", s.store.Count()))
	return nil
}

// Relevant 返回与问题相关的帮助片段，检索失败或无结果时返回空串
func (s *KnowledgeService) Relevant(ctx context.Context, query string) string {
	if s.store.Count() == 0 || strings.TrimSpace(query) == "" {
		return ""
	}

	vector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		s.logger.Warn("帮助检索失败", zap.String("reason", failureReason(err)), zap.Error(err))
		return ""
	}

	results, err := s.store.Search(vector, s.topK, s.minScore)
	if err != nil {
		s.logger.Warn("帮助检索失败", zap.Error(err))
		return ""
	}
	if len(results) == 0 {
		return ""
	}

	var b strings.Builder
	for _, r := range results {
		fmt.Fprintf(&b, "- %s: %s\n", r.Document.Metadata["title"], r.Document.Content)
	}
	s.logger.Debug("命中帮助文章", zap.Int("count", len(results)), zap.Float64("topScore", results[0].Score))
	return strings.TrimRight(b.String(), "\n")
}

// DefaultHelpArticles 内置帮助文章
func DefaultHelpArticles() []Article {
	return []Article{
		{
			ID: "clients-create", Title: "Adding a client", Topic: "clients",
			Body: `Type something like "Create a new client named Jane Doe with email jane@example.com". First name, last name and email are required. Phone and company are optional.`,
		},
		{
			ID: "clients-find", Title: "Finding and updating clients", Topic: "clients",
			Body: `Ask "Show client jane@example.com" to look someone up, or "List all clients" to see everyone. To change details say "Update client Jane Doe's phone to 555-0100".`,
		},
		{
			ID: "projects", Title: "Projects", Topic: "projects",
			Body: "Projects group work for a client. Managing projects from the chat is coming soon. Until then use the Projects page.",
		},
		{
			ID: "tasks", Title: "Tasks", Topic: "tasks",
			Body: "Tasks track to-dos with an optional due date. Managing tasks from the chat is coming soon. Until then use the Tasks page.",
		},
		{
			ID: "proposals", Title: "Proposals", Topic: "proposals",
			Body: "Proposals are quotes you send to clients. Drafting proposals from the chat is coming soon. Until then use the Proposals page.",
		},
		{
			ID: "chat-cancel", Title: "Changing your mind", Topic: "general",
			Body: `When the assistant asks a follow-up question you can reply "cancel" or "never mind" to drop the request, or just ask for something else.`,
		},
	}
}
