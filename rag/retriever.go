package rag

import (
	"context"
	"sort"
	"time"

	"github.com/BaSui01/docflow/llm/embedding"
	"github.com/BaSui01/docflow/types"
	"go.uber.org/zap"
)

// RetrieverConfig 配置混合检索管线。
type RetrieverConfig struct {
	// TopK 是最终返回的证据条数上限。
	TopK int `json:"top_k" yaml:"top_k"`

	// CandidateMultiplier 决定稠密候选的拉取倍数（候选数 = TopK × 倍数）。
	CandidateMultiplier int `json:"candidate_multiplier" yaml:"candidate_multiplier"`

	// ScoreThreshold 过滤低于该稠密相似度的候选。
	ScoreThreshold float64 `json:"score_threshold" yaml:"score_threshold"`

	// DenseWeight / LexicalWeight 是融合权重。两者非法时回退默认值。
	DenseWeight   float64 `json:"dense_weight" yaml:"dense_weight"`
	LexicalWeight float64 `json:"lexical_weight" yaml:"lexical_weight"`

	// Compression 为 nil 时跳过压缩阶段。
	Compression *CompressorConfig `json:"compression,omitempty" yaml:"compression,omitempty"`
}

// DefaultRetrieverConfig 返回默认检索配置。
func DefaultRetrieverConfig() RetrieverConfig {
	return RetrieverConfig{
		TopK:                5,
		CandidateMultiplier: 4,
		ScoreThreshold:      0.65,
		DenseWeight:         0.7,
		LexicalWeight:       0.3,
	}
}

// HybridRetriever 实现稠密 + 词法的混合检索管线：
// embed → 稠密候选（TopK×倍数）→ 阈值过滤 → 词法评分 → 加权融合 →
// 确定性排序 → 压缩 → (document, chunk) 去重 → 截断 TopK。
type HybridRetriever struct {
	cfg        RetrieverConfig
	store      VectorStore
	embedder   embedding.Provider
	compressor *Compressor
	logger     *zap.Logger
}

// NewHybridRetriever 创建混合检索器。
func NewHybridRetriever(cfg RetrieverConfig, store VectorStore, embedder embedding.Provider, logger *zap.Logger) *HybridRetriever {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	if cfg.CandidateMultiplier <= 0 {
		cfg.CandidateMultiplier = 4
	}
	if cfg.DenseWeight <= 0 && cfg.LexicalWeight <= 0 {
		cfg.DenseWeight = 0.7
		cfg.LexicalWeight = 0.3
	}

	r := &HybridRetriever{
		cfg:      cfg,
		store:    store,
		embedder: embedder,
		logger:   logger.With(zap.String("component", "hybrid_retriever")),
	}
	if cfg.Compression != nil {
		counter, err := NewTiktokenCounter("gpt-4o", logger)
		if err != nil {
			logger.Warn("tiktoken unavailable, using character estimate for compression budget",
				zap.Error(err))
			r.compressor = NewCompressor(*cfg.Compression, EstimateCounter{}, logger)
		} else {
			r.compressor = NewCompressor(*cfg.Compression, counter, logger)
		}
	}
	return r
}

// Retrieve 对查询执行混合检索，返回按融合分数降序的证据集。
// 零命中返回空集（合法结果）；索引不可达返回 RETRIEVAL_UNAVAILABLE。
func (r *HybridRetriever) Retrieve(ctx context.Context, query, collection string, topK int) (*types.EvidenceSet, error) {
	if topK <= 0 {
		topK = r.cfg.TopK
	}
	start := time.Now()

	vector, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, types.NewError(types.ErrEmbeddingFailed, "query embedding failed").WithCause(err)
	}

	candidateK := topK * r.cfg.CandidateMultiplier
	hits, err := r.store.Search(ctx, collection, vector, candidateK)
	if err != nil {
		if types.GetErrorCode(err) == types.ErrRequestCancelled {
			return nil, err
		}
		return nil, types.NewError(types.ErrRetrievalUnavailable, "vector search failed").WithCause(err)
	}

	// 阈值过滤在融合之前，弱相关候选不参与词法补偿
	filtered := hits[:0]
	for _, h := range hits {
		if h.Score >= r.cfg.ScoreThreshold {
			filtered = append(filtered, h)
		}
	}

	queryTerms := termSet(query)
	items := make([]types.EvidenceItem, 0, len(filtered))
	for _, h := range filtered {
		lexical := termOverlap(queryTerms, h.Content)
		items = append(items, types.EvidenceItem{
			ChunkID:      h.ChunkID,
			DocumentID:   h.DocumentID,
			ChunkIndex:   h.ChunkIndex,
			Content:      h.Content,
			DenseScore:   h.Score,
			LexicalScore: lexical,
			FusedScore:   r.cfg.DenseWeight*h.Score + r.cfg.LexicalWeight*lexical,
			UpdatedAt:    h.UpdatedAt,
		})
	}

	sortEvidence(items)

	if r.compressor != nil {
		for i := range items {
			items[i].Content = r.compressor.Compress(query, items[i].Content)
		}
	}

	items = dedupeEvidence(items)
	if len(items) > topK {
		items = items[:topK]
	}

	r.logger.Debug("hybrid retrieval completed",
		zap.String("collection", collection),
		zap.Int("candidates", len(hits)),
		zap.Int("returned", len(items)),
		zap.Duration("elapsed", time.Since(start)))

	return &types.EvidenceSet{Items: items}, nil
}

// sortEvidence 按融合分数降序排序；平分时文档更新时间新者优先，
// 仍相同则按 chunk id 升序。同样的输入必须产出同样的顺序。
func sortEvidence(items []types.EvidenceItem) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].FusedScore != items[j].FusedScore {
			return items[i].FusedScore > items[j].FusedScore
		}
		if !items[i].UpdatedAt.Equal(items[j].UpdatedAt) {
			return items[i].UpdatedAt.After(items[j].UpdatedAt)
		}
		return items[i].ChunkID < items[j].ChunkID
	})
}

// dedupeEvidence 保留每个 (document, chunk) 的首个（即排名最高的）条目。
func dedupeEvidence(items []types.EvidenceItem) []types.EvidenceItem {
	type key struct {
		doc   string
		chunk int
	}
	seen := make(map[key]struct{}, len(items))
	out := items[:0]
	for _, it := range items {
		k := key{doc: it.DocumentID, chunk: it.ChunkIndex}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, it)
	}
	return out
}
