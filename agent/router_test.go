package agent

import (
	"context"
	"testing"
	"time"

	"github.com/BaSui01/docflow/types"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubClassifier 返回固定结果并记录调用次数。
type stubClassifier struct {
	decision *types.RouteDecision
	err      error
	calls    int
}

func (s *stubClassifier) Classify(ctx context.Context, query string, history []types.Turn) (*types.RouteDecision, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.decision, nil
}

func TestRouteOverrideFastPath(t *testing.T) {
	classifier := &stubClassifier{
		decision: &types.RouteDecision{Mode: types.ModeResearch, Confidence: 0.9},
	}
	r := NewRouter(DefaultRouterConfig(), classifier, nil, nil)

	decision := r.Route(context.Background(), &types.Query{
		Text:         "summarise the report",
		ModeOverride: types.ModeSummarise,
	})

	assert.Equal(t, types.ModeSummarise, decision.Mode)
	assert.True(t, decision.Overridden)
	assert.Equal(t, 0, classifier.calls, "override path must not invoke the classifier")
}

func TestRouteClassifierDecision(t *testing.T) {
	classifier := &stubClassifier{
		decision: &types.RouteDecision{Mode: types.ModeAnalyse, Confidence: 0.8, Reasoning: "comparison"},
	}
	r := NewRouter(DefaultRouterConfig(), classifier, nil, nil)

	decision := r.Route(context.Background(), &types.Query{Text: "compare the two reports"})
	assert.Equal(t, types.ModeAnalyse, decision.Mode)
	assert.False(t, decision.Overridden)
	assert.Equal(t, 1, classifier.calls)
}

func TestRouteFallbackOnClassifierError(t *testing.T) {
	classifier := &stubClassifier{
		err: types.NewError(types.ErrClassificationFailed, "bad output"),
	}
	r := NewRouter(DefaultRouterConfig(), classifier, nil, nil)

	decision := r.Route(context.Background(), &types.Query{Text: "anything"})
	assert.Equal(t, types.ModeQA, decision.Mode)
	assert.False(t, decision.Overridden)
	assert.Zero(t, decision.Confidence)
}

func TestRouteFallbackOnLowConfidence(t *testing.T) {
	classifier := &stubClassifier{
		decision: &types.RouteDecision{Mode: types.ModeResearch, Confidence: 0.2},
	}
	r := NewRouter(DefaultRouterConfig(), classifier, nil, nil)

	decision := r.Route(context.Background(), &types.Query{Text: "vague"})
	assert.Equal(t, types.ModeQA, decision.Mode)
}

func newMiniredisCache(t *testing.T) (*RouteCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRouteCacheWithClient(client, time.Minute, nil), mr
}

func TestRouteCacheRoundTrip(t *testing.T) {
	cache, _ := newMiniredisCache(t)
	defer cache.Close()

	ctx := context.Background()
	_, ok := cache.Get(ctx, "what is docflow")
	assert.False(t, ok)

	want := &types.RouteDecision{Mode: types.ModeResearch, Confidence: 0.9, Reasoning: "multi-source"}
	cache.Set(ctx, "what is docflow", want)

	got, ok := cache.Get(ctx, "what is docflow")
	require.True(t, ok)
	assert.Equal(t, want.Mode, got.Mode)
	assert.Equal(t, want.Confidence, got.Confidence)

	// 不同查询文本不命中
	_, ok = cache.Get(ctx, "different query")
	assert.False(t, ok)
}

func TestRouteCacheExpiry(t *testing.T) {
	cache, mr := newMiniredisCache(t)
	defer cache.Close()

	ctx := context.Background()
	cache.Set(ctx, "q", &types.RouteDecision{Mode: types.ModeQA, Confidence: 0.9})

	mr.FastForward(2 * time.Minute)
	_, ok := cache.Get(ctx, "q")
	assert.False(t, ok)
}

func TestRouteCacheCorruptEntry(t *testing.T) {
	cache, mr := newMiniredisCache(t)
	defer cache.Close()

	require.NoError(t, mr.Set(routeCacheKey("q"), "not-json"))
	_, ok := cache.Get(context.Background(), "q")
	assert.False(t, ok)
}

func TestRouterUsesCache(t *testing.T) {
	cache, _ := newMiniredisCache(t)
	defer cache.Close()

	classifier := &stubClassifier{
		decision: &types.RouteDecision{Mode: types.ModeSummarise, Confidence: 0.9},
	}
	r := NewRouter(DefaultRouterConfig(), classifier, cache, nil)
	q := &types.Query{Text: "summarise chapter 3"}

	first := r.Route(context.Background(), q)
	second := r.Route(context.Background(), q)

	assert.Equal(t, types.ModeSummarise, first.Mode)
	assert.Equal(t, types.ModeSummarise, second.Mode)
	assert.Equal(t, 1, classifier.calls, "second route must be served from cache")
}

type stubCacheStats struct {
	hits, misses int
}

func (s *stubCacheStats) RecordRouteCacheHit()  { s.hits++ }
func (s *stubCacheStats) RecordRouteCacheMiss() { s.misses++ }

func TestRouterReportsCacheStats(t *testing.T) {
	cache, _ := newMiniredisCache(t)
	defer cache.Close()

	classifier := &stubClassifier{
		decision: &types.RouteDecision{Mode: types.ModeQA, Confidence: 0.9},
	}
	stats := &stubCacheStats{}
	r := NewRouter(DefaultRouterConfig(), classifier, cache, nil).WithCacheStats(stats)
	q := &types.Query{Text: "cached query"}

	r.Route(context.Background(), q)
	r.Route(context.Background(), q)

	assert.Equal(t, 1, stats.misses)
	assert.Equal(t, 1, stats.hits)

	// 覆盖快路径不触缓存，也不计入统计
	r.Route(context.Background(), &types.Query{Text: "x", ModeOverride: types.ModeAnalyse})
	assert.Equal(t, 1, stats.misses)
	assert.Equal(t, 1, stats.hits)
}

func TestRouterCacheSkipsFallback(t *testing.T) {
	cache, _ := newMiniredisCache(t)
	defer cache.Close()

	classifier := &stubClassifier{
		err: types.NewError(types.ErrClassificationFailed, "down"),
	}
	r := NewRouter(DefaultRouterConfig(), classifier, cache, nil)
	q := &types.Query{Text: "anything"}

	r.Route(context.Background(), q)
	r.Route(context.Background(), q)

	// 兜底决定不写缓存，每次都会再尝试分类
	assert.Equal(t, 2, classifier.calls)
}
