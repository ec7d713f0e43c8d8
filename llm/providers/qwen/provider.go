// Package qwen 实现阿里云通义千问提供者（OpenAI 兼容模式）。
package qwen

import (
	"github.com/BaSui01/docflow/llm/providers"
	"github.com/BaSui01/docflow/llm/providers/openaicompat"
	"go.uber.org/zap"
)

// Provider 实现 Qwen LLM 提供者。
type Provider struct {
	*openaicompat.Provider
}

// New 创建新的 Qwen 提供者实例。
func New(cfg providers.BaseProviderConfig, logger *zap.Logger) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://dashscope.aliyuncs.com/compatible-mode"
	}

	return &Provider{
		Provider: openaicompat.New(openaicompat.Config{
			ProviderName:  "qwen",
			APIKey:        cfg.APIKey,
			BaseURL:       cfg.BaseURL,
			DefaultModel:  cfg.Model,
			FallbackModel: "qwen-plus",
			Timeout:       cfg.Timeout,
			EndpointPath:  "/v1/chat/completions",
		}, logger),
	}
}
