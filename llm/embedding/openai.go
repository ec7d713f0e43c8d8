package embedding

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// OpenAIConfig 配置 OpenAI / Azure OpenAI 嵌入提供者。
type OpenAIConfig struct {
	BaseURL    string        `json:"base_url" yaml:"base_url"`
	APIKey     string        `json:"api_key" yaml:"api_key"`
	Model      string        `json:"model,omitempty" yaml:"model,omitempty"`
	Dimensions int           `json:"dimensions,omitempty" yaml:"dimensions,omitempty"`
	Timeout    time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	// Azure 部署模式。设置 Deployment 后走 Azure 的路径与 api-key 认证。
	Deployment string `json:"deployment,omitempty" yaml:"deployment,omitempty"`
	APIVersion string `json:"api_version,omitempty" yaml:"api_version,omitempty"`
}

// OpenAIProvider implements embedding using OpenAI's API (or an Azure deployment).
type OpenAIProvider struct {
	*BaseProvider
	cfg OpenAIConfig
}

// NewOpenAIProvider creates a new OpenAI embedding provider.
func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com"
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-large"
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = 3072
	}
	if cfg.Deployment != "" && cfg.APIVersion == "" {
		cfg.APIVersion = "2024-06-01"
	}

	name := "openai-embedding"
	if cfg.Deployment != "" {
		name = "azure-openai-embedding"
	}

	return &OpenAIProvider{
		BaseProvider: NewBaseProvider(BaseConfig{
			Name:       name,
			BaseURL:    cfg.BaseURL,
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			Timeout:    cfg.Timeout,
		}),
		cfg: cfg,
	}
}

type openAIEmbedRequest struct {
	Input      any    `json:"input"`
	Model      string `json:"model,omitempty"`
	Dimensions int    `json:"dimensions,omitempty"`
}

type openAIEmbedResponse struct {
	Object string `json:"object"`
	Data   []struct {
		Object    string    `json:"object"`
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
	Model string `json:"model"`
	Usage struct {
		PromptTokens int `json:"prompt_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
}

func (p *OpenAIProvider) endpoint() (string, map[string]string) {
	if p.cfg.Deployment != "" {
		return fmt.Sprintf("/openai/deployments/%s/embeddings?api-version=%s", p.cfg.Deployment, p.cfg.APIVersion),
			map[string]string{"api-key": p.cfg.APIKey}
	}
	return "/v1/embeddings", map[string]string{"Authorization": "Bearer " + p.cfg.APIKey}
}

// Embed generates embeddings for the given inputs.
func (p *OpenAIProvider) Embed(ctx context.Context, req *EmbeddingRequest) (*EmbeddingResponse, error) {
	model := req.Model
	if model == "" {
		model = p.cfg.Model
	}
	dims := req.Dimensions
	if dims == 0 {
		dims = p.cfg.Dimensions
	}

	body := openAIEmbedRequest{
		Input:      req.Input,
		Model:      model,
		Dimensions: dims,
	}
	if p.cfg.Deployment != "" {
		// Azure 以部署名决定模型
		body.Model = ""
	}

	path, headers := p.endpoint()
	respBody, err := p.DoRequest(ctx, http.MethodPost, path, body, headers)
	if err != nil {
		return nil, err
	}

	var oaResp openAIEmbedResponse
	if err := json.Unmarshal(respBody, &oaResp); err != nil {
		return nil, err
	}

	embeddings := make([]EmbeddingData, len(oaResp.Data))
	for i, d := range oaResp.Data {
		embeddings[i] = EmbeddingData{
			Index:     d.Index,
			Embedding: d.Embedding,
		}
	}

	return &EmbeddingResponse{
		Provider:   p.Name(),
		Model:      oaResp.Model,
		Embeddings: embeddings,
		Usage: EmbeddingUsage{
			PromptTokens: oaResp.Usage.PromptTokens,
			TotalTokens:  oaResp.Usage.TotalTokens,
		},
		CreatedAt: time.Now(),
	}, nil
}

// EmbedQuery embeds a single query.
func (p *OpenAIProvider) EmbedQuery(ctx context.Context, query string) ([]float64, error) {
	return p.BaseProvider.EmbedQuery(ctx, query, p.Embed)
}
