// Package openai 实现 OpenAI LLM 提供者。
package openai

import (
	"github.com/BaSui01/docflow/llm/providers"
	"github.com/BaSui01/docflow/llm/providers/openaicompat"
	"go.uber.org/zap"
)

// Provider 实现 OpenAI LLM 提供者。
type Provider struct {
	*openaicompat.Provider
}

// New 创建新的 OpenAI 提供者实例。
func New(cfg providers.BaseProviderConfig, logger *zap.Logger) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com"
	}

	return &Provider{
		Provider: openaicompat.New(openaicompat.Config{
			ProviderName:  "openai",
			APIKey:        cfg.APIKey,
			BaseURL:       cfg.BaseURL,
			DefaultModel:  cfg.Model,
			FallbackModel: "gpt-4o-mini",
			Timeout:       cfg.Timeout,
		}, logger),
	}
}
