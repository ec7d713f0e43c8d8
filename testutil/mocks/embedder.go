package mocks

import (
	"context"
	"hash/fnv"
	"math"
	"sync"
	"time"

	"github.com/BaSui01/docflow/llm/embedding"
)

// MockEmbedder 是 embedding.Provider 的模拟实现。
// 默认对文本做确定性哈希嵌入：同一文本始终得到同一向量，
// 共享词项的文本向量更接近，便于在测试中构造可预期的相似度。
type MockEmbedder struct {
	mu sync.Mutex

	dims    int
	fixed   map[string][]float64 // 按文本预设的向量
	embErr  error
	calls   int
	queries []string
}

// NewMockEmbedder 创建 MockEmbedder。
func NewMockEmbedder() *MockEmbedder {
	return &MockEmbedder{
		dims:  8,
		fixed: make(map[string][]float64),
	}
}

// WithDimensions 设置向量维度。
func (m *MockEmbedder) WithDimensions(dims int) *MockEmbedder {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dims = dims
	return m
}

// WithVector 为特定文本预设向量。
func (m *MockEmbedder) WithVector(text string, vec []float64) *MockEmbedder {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fixed[text] = append([]float64{}, vec...)
	return m
}

// WithError 设置嵌入错误。
func (m *MockEmbedder) WithError(err error) *MockEmbedder {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.embErr = err
	return m
}

// Calls 返回嵌入调用次数。
func (m *MockEmbedder) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// HashVector 返回文本的确定性哈希向量（已归一化）。
// 导出供测试直接对文档内容生成一致的存储向量。
func (m *MockEmbedder) HashVector(text string) []float64 {
	m.mu.Lock()
	dims := m.dims
	m.mu.Unlock()
	return hashEmbed(text, dims)
}

func hashEmbed(text string, dims int) []float64 {
	vec := make([]float64, dims)
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum64()
	for i := range vec {
		seed = seed*6364136223846793005 + 1442695040888963407
		vec[i] = float64(int64(seed>>33))/float64(1<<30) - 1.0
	}
	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return vec
	}
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}

// Embed 实现 embedding.Provider。
func (m *MockEmbedder) Embed(ctx context.Context, req *embedding.EmbeddingRequest) (*embedding.EmbeddingResponse, error) {
	m.mu.Lock()
	m.calls++
	err := m.embErr
	dims := m.dims
	fixed := m.fixed
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}

	out := make([]embedding.EmbeddingData, len(req.Input))
	for i, text := range req.Input {
		vec, ok := fixed[text]
		if !ok {
			vec = hashEmbed(text, dims)
		}
		out[i] = embedding.EmbeddingData{Index: i, Embedding: vec}
	}
	return &embedding.EmbeddingResponse{
		Provider:   "mock-embedding",
		Model:      "mock-embed-model",
		Embeddings: out,
		CreatedAt:  time.Now(),
	}, nil
}

// EmbedQuery 实现 embedding.Provider。
func (m *MockEmbedder) EmbedQuery(ctx context.Context, query string) ([]float64, error) {
	m.mu.Lock()
	m.queries = append(m.queries, query)
	m.mu.Unlock()

	resp, err := m.Embed(ctx, &embedding.EmbeddingRequest{
		Input:     []string{query},
		InputType: embedding.InputTypeQuery,
	})
	if err != nil {
		return nil, err
	}
	return resp.Embeddings[0].Embedding, nil
}

// Name 实现 embedding.Provider。
func (m *MockEmbedder) Name() string { return "mock-embedding" }

// Dimensions 实现 embedding.Provider。
func (m *MockEmbedder) Dimensions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dims
}
