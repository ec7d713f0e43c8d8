package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/BaSui01/docflow/llm"
	"github.com/BaSui01/docflow/llm/providers"
)

// BaseProvider 为嵌入提供者提供了共同的功能.
type BaseProvider struct {
	name       string
	client     *http.Client
	baseURL    string
	apiKey     string
	model      string
	dimensions int
}

// BaseConfig 持有基础提供者的共同配置.
type BaseConfig struct {
	Name       string
	BaseURL    string
	APIKey     string
	Model      string
	Dimensions int
	Timeout    time.Duration
}

// NewBaseProvider 创建一个新的基础提供者.
func NewBaseProvider(cfg BaseConfig) *BaseProvider {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &BaseProvider{
		name:       cfg.Name,
		client:     &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
	}
}

func (p *BaseProvider) Name() string    { return p.name }
func (p *BaseProvider) Dimensions() int { return p.dimensions }

// EmbedQuery 嵌入单个查询字符串.
func (p *BaseProvider) EmbedQuery(ctx context.Context, query string, embedFn func(context.Context, *EmbeddingRequest) (*EmbeddingResponse, error)) ([]float64, error) {
	resp, err := embedFn(ctx, &EmbeddingRequest{
		Input:     []string{query},
		InputType: InputTypeQuery,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings) == 0 {
		return nil, fmt.Errorf("no embeddings returned")
	}
	return resp.Embeddings[0].Embedding, nil
}

// DoRequest 执行 HTTP 请求, 并进行统一错误映射。
func (p *BaseProvider) DoRequest(ctx context.Context, method, endpoint string, body any, headers map[string]string) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, p.baseURL+endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, &llm.Error{
			Code: llm.ErrUpstreamError, Message: err.Error(),
			HTTPStatus: http.StatusBadGateway, Retryable: true, Provider: p.name,
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg := providers.ReadErrorMessage(resp.Body)
		return nil, providers.MapHTTPError(resp.StatusCode, msg, p.name)
	}

	return io.ReadAll(resp.Body)
}
