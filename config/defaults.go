// =============================================================================
// 📦 DocFlow 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server:    DefaultServerConfig(),
		LLM:       DefaultLLMConfig(),
		Embedding: DefaultEmbeddingConfig(),
		Qdrant:    DefaultQdrantConfig(),
		Redis:     DefaultRedisConfig(),
		Retrieval: DefaultRetrievalConfig(),
		Router:    DefaultRouterConfig(),
		Log:       DefaultLogConfig(),
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:             8080,
		ReadTimeout:          30 * time.Second,
		WriteTimeout:         30 * time.Second,
		ShutdownTimeout:      15 * time.Second,
		MaxConcurrentStreams: 64,
		RateLimitRPS:         2,
		RateLimitBurst:       5,
	}
}

// DefaultLLMConfig 返回默认生成模型配置
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		Provider:   "openai",
		Model:      "gpt-4o",
		Timeout:    2 * time.Minute,
		MaxRetries: 3,
	}
}

// DefaultEmbeddingConfig 返回默认向量化配置
func DefaultEmbeddingConfig() EmbeddingConfig {
	return EmbeddingConfig{
		Provider: "openai",
		Model:    "text-embedding-3-small",
		Timeout:  30 * time.Second,
	}
}

// DefaultQdrantConfig 返回默认 Qdrant 配置
func DefaultQdrantConfig() QdrantConfig {
	return QdrantConfig{
		Host:       "localhost",
		Port:       6333,
		Collection: "docflow_chunks",
		Timeout:    10 * time.Second,
	}
}

// DefaultRedisConfig 返回默认 Redis 配置
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Enabled:  false,
		Addr:     "localhost:6379",
		DB:       0,
		PoolSize: 10,
		RouteTTL: 10 * time.Minute,
	}
}

// DefaultRetrievalConfig 返回默认检索配置
func DefaultRetrievalConfig() RetrievalConfig {
	return RetrievalConfig{
		TopK:                5,
		CandidateMultiplier: 4,
		ScoreThreshold:      0.65,
		DenseWeight:         0.7,
		LexicalWeight:       0.3,
		CompressionBudget:   512,
		MinSentences:        1,
	}
}

// DefaultRouterConfig 返回默认路由器配置
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		MinConfidence: 0.5,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}
