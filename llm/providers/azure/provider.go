// Package azure 实现 Azure OpenAI 提供者。
// Azure 使用 OpenAI 兼容的线格式，但以部署名寻址模型并用 api-key 头认证。
package azure

import (
	"fmt"
	"net/http"

	"github.com/BaSui01/docflow/llm/providers"
	"github.com/BaSui01/docflow/llm/providers/openaicompat"
	"go.uber.org/zap"
)

// Config 扩展基础配置以包含 Azure 特有字段。
type Config struct {
	providers.BaseProviderConfig

	// Deployment 是 Azure 上的模型部署名。
	Deployment string `json:"deployment" yaml:"deployment"`

	// APIVersion 是 Azure OpenAI API 版本，默认 "2024-06-01"。
	APIVersion string `json:"api_version,omitempty" yaml:"api_version,omitempty"`
}

// Provider 实现 Azure OpenAI 提供者。
type Provider struct {
	*openaicompat.Provider
}

// New 创建新的 Azure OpenAI 提供者实例。
func New(cfg Config, logger *zap.Logger) *Provider {
	if cfg.APIVersion == "" {
		cfg.APIVersion = "2024-06-01"
	}

	return &Provider{
		Provider: openaicompat.New(openaicompat.Config{
			ProviderName: "azure_openai",
			APIKey:       cfg.APIKey,
			BaseURL:      cfg.BaseURL,
			DefaultModel: cfg.Model,
			Timeout:      cfg.Timeout,
			EndpointPath: fmt.Sprintf("/openai/deployments/%s/chat/completions?api-version=%s",
				cfg.Deployment, cfg.APIVersion),
			ModelsEndpoint: fmt.Sprintf("/openai/models?api-version=%s", cfg.APIVersion),
			BuildHeaders: func(req *http.Request, apiKey string) {
				req.Header.Set("api-key", apiKey)
				req.Header.Set("Content-Type", "application/json")
			},
		}, logger),
	}
}
