package agent

import (
	"context"

	"github.com/BaSui01/docflow/types"
	"go.uber.org/zap"
)

// RouterConfig 配置路由器。
type RouterConfig struct {
	// MinConfidence 以下的分类结果回退到 qa。
	MinConfidence float64 `json:"min_confidence" yaml:"min_confidence"`
}

// DefaultRouterConfig 返回默认路由配置。
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{MinConfidence: 0.5}
}

// CacheStats 接收路由缓存的命中统计。由指标收集器实现。
type CacheStats interface {
	RecordRouteCacheHit()
	RecordRouteCacheMiss()
}

// Router 决定查询走哪个专家。Route 从不失败：
// 显式覆盖走快路径（不调用分类器）；分类失败或置信度不足回退 qa。
type Router struct {
	cfg        RouterConfig
	classifier Classifier
	cache      *RouteCache // 可为 nil
	stats      CacheStats  // 可为 nil
	logger     *zap.Logger
}

// NewRouter 创建路由器。cache 为 nil 时不做决定缓存。
func NewRouter(cfg RouterConfig, classifier Classifier, cache *RouteCache, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MinConfidence <= 0 {
		cfg.MinConfidence = 0.5
	}
	return &Router{
		cfg:        cfg,
		classifier: classifier,
		cache:      cache,
		logger:     logger.With(zap.String("component", "router")),
	}
}

// WithCacheStats 挂接缓存命中统计。
func (r *Router) WithCacheStats(stats CacheStats) *Router {
	r.stats = stats
	return r
}

// fallbackDecision 是分类不可用时的保守默认。
func fallbackDecision(reasoning string) *types.RouteDecision {
	return &types.RouteDecision{
		Mode:       types.ModeQA,
		Confidence: 0,
		Reasoning:  reasoning,
	}
}

// Route 对已验证的查询产生一次性路由决定。
func (r *Router) Route(ctx context.Context, q *types.Query) *types.RouteDecision {
	// 显式覆盖：零次分类器调用
	if q.ModeOverride != "" {
		return &types.RouteDecision{
			Mode:       q.ModeOverride,
			Confidence: 1.0,
			Reasoning:  "explicit agent_mode override",
			Overridden: true,
		}
	}

	if r.cache != nil {
		if cached, ok := r.cache.Get(ctx, q.Text); ok {
			r.logger.Debug("route cache hit", zap.String("mode", string(cached.Mode)))
			if r.stats != nil {
				r.stats.RecordRouteCacheHit()
			}
			return cached
		}
		if r.stats != nil {
			r.stats.RecordRouteCacheMiss()
		}
	}

	decision, err := r.classifier.Classify(ctx, q.Text, q.History)
	if err != nil {
		r.logger.Warn("classification failed, falling back to qa", zap.Error(err))
		return fallbackDecision("classification failed")
	}
	if decision.Confidence < r.cfg.MinConfidence {
		r.logger.Debug("classification confidence below threshold, falling back to qa",
			zap.Float64("confidence", decision.Confidence),
			zap.Float64("threshold", r.cfg.MinConfidence))
		return fallbackDecision("classification confidence below threshold")
	}

	if r.cache != nil {
		r.cache.Set(ctx, q.Text, decision)
	}
	return decision
}
