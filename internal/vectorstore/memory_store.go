// Package vectorstore keeps embedded help articles in memory for similarity search.
package vectorstore

import (
	"fmt"
	"math"
	"sort"
	"sync"
)

// Document 一段已向量化的文本
type Document struct {
	ID       string
	Content  string
	Vector   []float64
	Metadata map[string]string // title, topic 等
}

// SearchResult 搜索结果
type SearchResult struct {
	Document Document
	Score    float64 // 余弦相似度，越高越相似
}

// MemoryStore 内存向量存储
type MemoryStore struct {
	documents map[string]Document
	dimension int
	mu        sync.RWMutex
}

// NewMemoryStore 创建内存向量存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{documents: make(map[string]Document)}
}

// Add 添加或覆盖文档，所有文档的向量维度必须一致
func (s *MemoryStore) Add(docs ...Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, doc := range docs {
		if doc.ID == "" {
			return fmt.Errorf("document ID cannot be empty")
		}
		if len(doc.Vector) == 0 {
			return fmt.Errorf("document %s: vector cannot be empty", doc.ID)
		}
		if s.dimension == 0 {
			s.dimension = len(doc.Vector)
		}
		if len(doc.Vector) != s.dimension {
			return fmt.Errorf("document %s: dimension %d, want %d", doc.ID, len(doc.Vector), s.dimension)
		}
		s.documents[doc.ID] = doc
	}
	return nil
}

// Search 返回相似度 >= minScore 的前 topK 个文档（降序，得分相同按 ID）
func (s *MemoryStore) Search(query []float64, topK int, minScore float64) ([]SearchResult, error) {
	if len(query) == 0 {
		return nil, fmt.Errorf("query vector cannot be empty")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.dimension != 0 && len(query) != s.dimension {
		return nil, fmt.Errorf("query dimension %d, want %d", len(query), s.dimension)
	}

	results := make([]SearchResult, 0, len(s.documents))
	for _, doc := range s.documents {
		score := cosineSimilarity(query, doc.Vector)
		if score >= minScore {
			results = append(results, SearchResult{Document: doc, Score: score})
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Document.ID < results[j].Document.ID
	})

	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// Count 文档数量
func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.documents)
}

// cosineSimilarity 余弦相似度
func cosineSimilarity(a, b []float64) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
