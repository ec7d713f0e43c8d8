package agent

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/BaSui01/docflow/types"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RouteCacheConfig 配置 Redis 路由决定缓存。
type RouteCacheConfig struct {
	Addr     string        `json:"addr" yaml:"addr"`
	Password string        `json:"password" yaml:"password"`
	DB       int           `json:"db" yaml:"db"`
	TTL      time.Duration `json:"ttl" yaml:"ttl"`
	PoolSize int           `json:"pool_size" yaml:"pool_size"`
}

// DefaultRouteCacheConfig 返回默认缓存配置。
func DefaultRouteCacheConfig() RouteCacheConfig {
	return RouteCacheConfig{
		Addr: "localhost:6379",
		TTL:  10 * time.Minute,
	}
}

// RouteCache 按查询文本缓存分类结果，避免重复的 LLM 分类调用。
// 缓存只存储成功的分类；覆盖快路径与兜底决定不写缓存。
// 缓存故障静默降级为未命中。
type RouteCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRouteCache 创建路由缓存并验证连接。
func NewRouteCache(cfg RouteCacheConfig, logger *zap.Logger) (*RouteCache, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Minute
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RouteCache{
		client: client,
		ttl:    cfg.TTL,
		logger: logger.With(zap.String("component", "route_cache")),
	}, nil
}

// NewRouteCacheWithClient 用现成客户端创建缓存（测试用）。
func NewRouteCacheWithClient(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RouteCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RouteCache{
		client: client,
		ttl:    ttl,
		logger: logger.With(zap.String("component", "route_cache")),
	}
}

func routeCacheKey(queryText string) string {
	sum := sha256.Sum256([]byte(queryText))
	return "docflow:route:" + hex.EncodeToString(sum[:])
}

// Get 返回缓存的决定；未命中或缓存故障返回 false。
func (c *RouteCache) Get(ctx context.Context, queryText string) (*types.RouteDecision, bool) {
	val, err := c.client.Get(ctx, routeCacheKey(queryText)).Result()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.logger.Warn("route cache get failed", zap.Error(err))
		return nil, false
	}

	var decision types.RouteDecision
	if err := json.Unmarshal([]byte(val), &decision); err != nil {
		c.logger.Warn("route cache entry corrupt", zap.Error(err))
		return nil, false
	}
	return &decision, true
}

// Set 写入缓存，失败仅记日志。
func (c *RouteCache) Set(ctx context.Context, queryText string, decision *types.RouteDecision) {
	data, err := json.Marshal(decision)
	if err != nil {
		c.logger.Warn("route cache marshal failed", zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, routeCacheKey(queryText), data, c.ttl).Err(); err != nil {
		c.logger.Warn("route cache set failed", zap.Error(err))
	}
}

// Close 关闭底层客户端。
func (c *RouteCache) Close() error {
	return c.client.Close()
}
