// Package deepseek 实现 DeepSeek LLM 提供者。
// DeepSeek 使用 OpenAI 兼容的 API 格式。
package deepseek

import (
	"github.com/BaSui01/docflow/llm/providers"
	"github.com/BaSui01/docflow/llm/providers/openaicompat"
	"go.uber.org/zap"
)

// Provider 实现 DeepSeek LLM 提供者。
type Provider struct {
	*openaicompat.Provider
}

// New 创建新的 DeepSeek 提供者实例。
func New(cfg providers.BaseProviderConfig, logger *zap.Logger) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.deepseek.com"
	}

	return &Provider{
		Provider: openaicompat.New(openaicompat.Config{
			ProviderName:  "deepseek",
			APIKey:        cfg.APIKey,
			BaseURL:       cfg.BaseURL,
			DefaultModel:  cfg.Model,
			FallbackModel: "deepseek-chat",
			Timeout:       cfg.Timeout,
			EndpointPath:  "/chat/completions",
		}, logger),
	}
}
