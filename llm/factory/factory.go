// Package factory provides a centralized factory for creating LLM Provider
// and embedding Provider instances by name. It imports all provider
// sub-packages and maps string names to their constructors, breaking the
// import cycle that would occur if this logic lived in the llm package.
package factory

import (
	"fmt"
	"time"

	"github.com/BaSui01/docflow/llm"
	"github.com/BaSui01/docflow/llm/embedding"
	"github.com/BaSui01/docflow/llm/providers"
	"github.com/BaSui01/docflow/llm/providers/anthropic"
	"github.com/BaSui01/docflow/llm/providers/azure"
	"github.com/BaSui01/docflow/llm/providers/deepseek"
	"github.com/BaSui01/docflow/llm/providers/openai"
	"github.com/BaSui01/docflow/llm/providers/qwen"
	"go.uber.org/zap"
)

// ProviderConfig is the generic configuration accepted by the factory.
// It uses a flat structure with an Extra map for provider-specific fields.
type ProviderConfig struct {
	APIKey  string         `json:"api_key" yaml:"api_key"`
	BaseURL string         `json:"base_url" yaml:"base_url"`
	Model   string         `json:"model,omitempty" yaml:"model,omitempty"`
	Timeout time.Duration  `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	Extra   map[string]any `json:"extra,omitempty" yaml:"extra,omitempty"`
}

// NewProviderFromConfig creates a Provider instance based on the provider name
// and a generic ProviderConfig.
//
// Supported names: openai, azure_openai, anthropic, claude, deepseek, qwen.
func NewProviderFromConfig(name string, cfg ProviderConfig, logger *zap.Logger) (llm.Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	base := providers.BaseProviderConfig{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		Timeout: cfg.Timeout,
	}

	switch name {
	case "openai":
		return openai.New(base, logger), nil

	case "azure_openai":
		ac := azure.Config{BaseProviderConfig: base}
		if cfg.Extra != nil {
			if v, ok := cfg.Extra["deployment"].(string); ok {
				ac.Deployment = v
			}
			if v, ok := cfg.Extra["api_version"].(string); ok {
				ac.APIVersion = v
			}
		}
		return azure.New(ac, logger), nil

	case "anthropic", "claude":
		return anthropic.New(base, logger), nil

	case "deepseek":
		return deepseek.New(base, logger), nil

	case "qwen":
		return qwen.New(base, logger), nil

	default:
		return nil, fmt.Errorf("unknown provider: %s (supported: openai, azure_openai, anthropic, deepseek, qwen)", name)
	}
}

// NewEmbedderFromConfig creates an embedding Provider by name.
//
// Supported names: openai, azure_openai.
func NewEmbedderFromConfig(name string, cfg ProviderConfig) (embedding.Provider, error) {
	switch name {
	case "openai", "azure_openai":
		ec := embedding.OpenAIConfig{
			BaseURL: cfg.BaseURL,
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		}
		if cfg.Extra != nil {
			if v, ok := cfg.Extra["deployment"].(string); ok {
				ec.Deployment = v
			}
			if v, ok := cfg.Extra["api_version"].(string); ok {
				ec.APIVersion = v
			}
			if v, ok := cfg.Extra["dimensions"].(int); ok {
				ec.Dimensions = v
			}
		}
		return embedding.NewOpenAIProvider(ec), nil

	default:
		return nil, fmt.Errorf("unknown embedding provider: %s (supported: openai, azure_openai)", name)
	}
}
