package rag

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/BaSui01/docflow/types"
	"go.uber.org/zap"
)

// SearchHit 稠密检索的单条命中。
type SearchHit struct {
	ChunkID    string    `json:"chunk_id"`
	DocumentID string    `json:"document_id"`
	ChunkIndex int       `json:"chunk_index"`
	Content    string    `json:"content"`
	Score      float64   `json:"score"` // 余弦相似度，[0, 1]
	UpdatedAt  time.Time `json:"updated_at,omitempty"`
}

// VectorStore 向量检索接口。检索按集合（知识库）分区；
// DocFlow 的查询路径是只读的，写路径由独立的索引服务负责。
type VectorStore interface {
	// Search 在指定集合内做稠密向量检索，返回按相似度降序的 topK 命中。
	// 集合为空或无命中时返回空切片；索引不可达时返回
	// RETRIEVAL_UNAVAILABLE 错误。
	Search(ctx context.Context, collection string, queryVector []float64, topK int) ([]SearchHit, error)
}

// StoredChunk 内存存储中的一条已索引分块。
type StoredChunk struct {
	ChunkID    string
	DocumentID string
	ChunkIndex int
	Content    string
	Embedding  []float64
	UpdatedAt  time.Time
}

// ====== 内存向量存储（测试与小规模场景）======

// InMemoryVectorStore 以集合为键的内存向量存储。
type InMemoryVectorStore struct {
	mu          sync.RWMutex
	collections map[string][]StoredChunk
	logger      *zap.Logger
}

// NewInMemoryVectorStore 创建内存向量存储。
func NewInMemoryVectorStore(logger *zap.Logger) *InMemoryVectorStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InMemoryVectorStore{
		collections: make(map[string][]StoredChunk),
		logger:      logger.With(zap.String("component", "memory_vector_store")),
	}
}

// Add 向集合追加分块。
func (s *InMemoryVectorStore) Add(collection string, chunks ...StoredChunk) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collections[collection] = append(s.collections[collection], chunks...)
}

// Count 返回集合内分块数。
func (s *InMemoryVectorStore) Count(collection string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.collections[collection])
}

// Search 实现 VectorStore。
func (s *InMemoryVectorStore) Search(ctx context.Context, collection string, queryVector []float64, topK int) ([]SearchHit, error) {
	if err := ctx.Err(); err != nil {
		return nil, types.NewError(types.ErrRequestCancelled, "search cancelled").WithCause(err)
	}
	if topK <= 0 {
		return []SearchHit{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	chunks := s.collections[collection]
	if len(chunks) == 0 {
		return []SearchHit{}, nil
	}

	hits := make([]SearchHit, 0, len(chunks))
	for _, c := range chunks {
		if len(c.Embedding) == 0 {
			continue
		}
		hits = append(hits, SearchHit{
			ChunkID:    c.ChunkID,
			DocumentID: c.DocumentID,
			ChunkIndex: c.ChunkIndex,
			Content:    c.Content,
			Score:      cosineSimilarity(queryVector, c.Embedding),
			UpdatedAt:  c.UpdatedAt,
		})
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })

	if topK > len(hits) {
		topK = len(hits)
	}
	return hits[:topK], nil
}

// cosineSimilarity 计算余弦相似度，维度不匹配或零向量返回 0。
func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0.0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0.0
	}
	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
