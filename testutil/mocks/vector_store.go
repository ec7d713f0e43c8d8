package mocks

import (
	"context"
	"sync"

	"github.com/BaSui01/docflow/rag"
	"github.com/BaSui01/docflow/types"
)

// FailingVectorStore 是总是失败的 rag.VectorStore，模拟索引不可达。
type FailingVectorStore struct {
	mu    sync.Mutex
	err   error
	calls int
}

// NewFailingVectorStore 创建默认返回 RETRIEVAL_UNAVAILABLE 的存储。
func NewFailingVectorStore() *FailingVectorStore {
	return &FailingVectorStore{
		err: types.NewError(types.ErrRetrievalUnavailable, "vector index unreachable"),
	}
}

// WithError 覆盖返回的错误。
func (s *FailingVectorStore) WithError(err error) *FailingVectorStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
	return s
}

// Calls 返回 Search 调用次数。
func (s *FailingVectorStore) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Search 实现 rag.VectorStore。
func (s *FailingVectorStore) Search(ctx context.Context, collection string, queryVector []float64, topK int) ([]rag.SearchHit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return nil, s.err
}
