package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/BaSui01/docflow/agent"
	"github.com/BaSui01/docflow/config"
	"github.com/BaSui01/docflow/internal/metrics"
	"github.com/BaSui01/docflow/internal/server"
	"github.com/BaSui01/docflow/llm/factory"
	"github.com/BaSui01/docflow/llm/retry"
	"github.com/BaSui01/docflow/rag"
	"github.com/BaSui01/docflow/types"
)

// =============================================================================
// 🧩 应用组装
// =============================================================================

// App 持有组装完成的服务与需要释放的资源。
type App struct {
	manager *server.Manager
	cache   *agent.RouteCache
	logger  *zap.Logger
}

// buildApp 按配置组装全部组件：
// provider/embedder → qdrant 存储 → 混合检索器 → 分类器/路由器（可选缓存）
// → 专家集合 → 图工厂 → websocket 接入层 → HTTP 服务器。
func buildApp(cfg *config.Config, logger *zap.Logger) (*App, error) {
	// 生成 Provider，Completion 带有界重试
	rawProvider, err := factory.NewProviderFromConfig(cfg.LLM.Provider, providerConfig(cfg.LLM), logger)
	if err != nil {
		return nil, fmt.Errorf("build llm provider: %w", err)
	}
	policy := retry.DefaultPolicy()
	policy.MaxRetries = cfg.LLM.MaxRetries
	provider := retry.WrapProvider(rawProvider, policy, logger)

	// 向量化 Provider
	embedder, err := factory.NewEmbedderFromConfig(cfg.Embedding.Provider, embedderConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("build embedder: %w", err)
	}

	// 检索管线
	store := rag.NewQdrantStore(rag.QdrantConfig{
		Host:    cfg.Qdrant.Host,
		Port:    cfg.Qdrant.Port,
		APIKey:  cfg.Qdrant.APIKey,
		Timeout: cfg.Qdrant.Timeout,
	}, logger)

	retrieverCfg := rag.RetrieverConfig{
		TopK:                cfg.Retrieval.TopK,
		CandidateMultiplier: cfg.Retrieval.CandidateMultiplier,
		ScoreThreshold:      cfg.Retrieval.ScoreThreshold,
		DenseWeight:         cfg.Retrieval.DenseWeight,
		LexicalWeight:       cfg.Retrieval.LexicalWeight,
	}
	if cfg.Retrieval.CompressionBudget > 0 {
		retrieverCfg.Compression = &rag.CompressorConfig{
			TokenBudget:  cfg.Retrieval.CompressionBudget,
			MinSentences: cfg.Retrieval.MinSentences,
		}
	}
	var retriever agent.Retriever = rag.NewHybridRetriever(retrieverCfg, store, embedder, logger)
	retriever = &scopedRetriever{inner: retriever, collection: cfg.Qdrant.Collection}

	// 路由：分类器 + 可选 Redis 缓存
	classifier := agent.NewPromptClassifier(provider, cfg.LLM.Model, logger)

	var cache *agent.RouteCache
	if cfg.Redis.Enabled {
		cache, err = agent.NewRouteCache(agent.RouteCacheConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Redis.RouteTTL,
			PoolSize: cfg.Redis.PoolSize,
		}, logger)
		if err != nil {
			logger.Warn("route cache unavailable, continuing without it", zap.Error(err))
			cache = nil
		}
	}

	collector := metrics.NewCollector("docflow", nil, logger)

	router := agent.NewRouter(agent.RouterConfig{MinConfidence: cfg.Router.MinConfidence}, classifier, cache, logger).
		WithCacheStats(collector)
	specialists := agent.NewSpecialists(provider, cfg.LLM.Model, logger)

	graphCfg := agent.DefaultGraphConfig()
	graphCfg.DefaultTopK = cfg.Retrieval.TopK
	newGraph := func() *agent.Graph {
		return agent.NewGraph(graphCfg, router, retriever, specialists, logger)
	}

	// 接入层与 HTTP 服务器
	handler := server.NewHandler(server.HandlerConfig{
		MaxConcurrentStreams: int64(cfg.Server.MaxConcurrentStreams),
		RateLimitRPS:         cfg.Server.RateLimitRPS,
		RateLimitBurst:       cfg.Server.RateLimitBurst,
	}, newGraph, collector, logger)

	manager := server.NewManager(server.NewMux(handler, nil), server.Config{
		Addr:            fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, logger)

	return &App{manager: manager, cache: cache, logger: logger}, nil
}

// Start 启动 HTTP 服务器（非阻塞）。
func (a *App) Start() error {
	return a.manager.Start()
}

// WaitForShutdown 阻塞等待关闭信号并优雅退出。
func (a *App) WaitForShutdown() {
	a.manager.WaitForShutdown()
}

// Close 释放外部资源。
func (a *App) Close() {
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Warn("route cache close failed", zap.Error(err))
		}
	}
}

// providerConfig 把配置文件的 LLM 段映射为工厂入参。
func providerConfig(c config.LLMConfig) factory.ProviderConfig {
	pc := factory.ProviderConfig{
		APIKey:  c.APIKey,
		BaseURL: c.BaseURL,
		Model:   c.Model,
		Timeout: c.Timeout,
	}
	if c.Deployment != "" || c.APIVersion != "" {
		pc.Extra = map[string]any{}
		if c.Deployment != "" {
			pc.Extra["deployment"] = c.Deployment
		}
		if c.APIVersion != "" {
			pc.Extra["api_version"] = c.APIVersion
		}
	}
	return pc
}

// embedderConfig 把配置文件的 Embedding 段映射为工厂入参。
// API Key 为空时复用 LLM 的 key。
func embedderConfig(cfg *config.Config) factory.ProviderConfig {
	c := cfg.Embedding
	apiKey := c.APIKey
	if apiKey == "" {
		apiKey = cfg.LLM.APIKey
	}
	pc := factory.ProviderConfig{
		APIKey:  apiKey,
		BaseURL: c.BaseURL,
		Model:   c.Model,
		Timeout: c.Timeout,
	}
	extra := map[string]any{}
	if c.Deployment != "" {
		extra["deployment"] = c.Deployment
	}
	if c.APIVersion != "" {
		extra["api_version"] = c.APIVersion
	}
	if c.Dimensions > 0 {
		extra["dimensions"] = c.Dimensions
	}
	if len(extra) > 0 {
		pc.Extra = extra
	}
	return pc
}

// scopedRetriever 在请求未指定集合时落到配置的默认集合。
type scopedRetriever struct {
	inner      agent.Retriever
	collection string
}

func (r *scopedRetriever) Retrieve(ctx context.Context, query, collection string, topK int) (*types.EvidenceSet, error) {
	if collection == "" {
		collection = r.collection
	}
	return r.inner.Retrieve(ctx, query, collection, topK)
}
