// Package anthropic 实现 Anthropic Claude 的 LLM Provider。
// Claude API 与 OpenAI 有显著差异：
// 1. 认证使用 x-api-key 请求头而非 Bearer Token
// 2. 请求格式不同（system 消息单独传递）
// 3. 流式响应使用 SSE 格式但事件结构不同
package anthropic

import (
	"bufio"
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
	"go.uber.org/zap"
)

// Provider 实现 Claude Provider。
type Provider struct {
	cfg    providers.BaseProviderConfig
	client *http.Client
	logger *zap.Logger
}

// New 创建 Claude Provider。
func New(cfg providers.BaseProviderConfig, logger *zap.Logger) *Provider {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second // Claude 响应可能较慢
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.anthropic.com"
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Provider{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		logger: logger.With(zap.String("provider", "anthropic")),
	}
}

func (p *Provider) Name() string { return "anthropic" }

// HealthCheck 验证提供者可达。
func (p *Provider) HealthCheck(ctx context.Context) (*llm.HealthStatus, error) {
	start := time.Now()
	endpoint := fmt.Sprintf("%s/v1/models", strings.TrimRight(p.cfg.BaseURL, "/"))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	p.buildHeaders(httpReq)

	resp, err := p.client.Do(httpReq)
	latency := time.Since(start)
	if err != nil {
		return &llm.HealthStatus{Healthy: false, Latency: latency}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg := readClaudeErrMsg(resp.Body)
		return &llm.HealthStatus{Healthy: false, Latency: latency},
			fmt.Errorf("anthropic health check failed: status=%d msg=%s", resp.StatusCode, msg)
	}
	return &llm.HealthStatus{Healthy: true, Latency: latency}, nil
}

// Claude 的消息结构与 OpenAI 不同
type claudeMessage struct {
	Role    string          `json:"role"` // user 或 assistant
	Content []claudeContent `json:"content"`
}

type claudeContent struct {
	Type string `json:"type"` // text
	Text string `json:"text,omitempty"`
}

type claudeRequest struct {
	Model       string          `json:"model"`
	Messages    []claudeMessage `json:"messages"`
	System      string          `json:"system,omitempty"` // system 消息单独传递
	MaxTokens   int             `json:"max_tokens"`
	Temperature float32         `json:"temperature,omitempty"`
	TopP        float32         `json:"top_p,omitempty"`
	StopSeq     []string        `json:"stop_sequences,omitempty"`
	Stream      bool            `json:"stream,omitempty"`
}

type claudeUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type claudeResponse struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Role       string          `json:"role"`
	Content    []claudeContent `json:"content"`
	Model      string          `json:"model"`
	StopReason string          `json:"stop_reason"`
	Usage      *claudeUsage    `json:"usage,omitempty"`
}

// 流式响应的事件类型
type claudeStreamEvent struct {
	Type    string          `json:"type"` // message_start, content_block_delta, message_delta, message_stop
	Index   int             `json:"index,omitempty"`
	Delta   *claudeDelta    `json:"delta,omitempty"`
	Message *claudeResponse `json:"message,omitempty"`
	Usage   *claudeUsage    `json:"usage,omitempty"`
}

type claudeDelta struct {
	Type       string `json:"type"` // text_delta
	Text       string `json:"text,omitempty"`
	StopReason string `json:"stop_reason,omitempty"`
}

type claudeErrorResp struct {
	Type  string `json:"type"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (p *Provider) buildHeaders(req *http.Request) {
	// Claude 使用 x-api-key 认证
	req.Header.Set("x-api-key", p.cfg.APIKey)
	req.Header.Set("anthropic-version", "2023-06-01")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
}

// convertMessages 将统一格式转换为 Claude 格式。
// system 消息需要单独提取到 system 字段。
func convertMessages(msgs []llm.Message) (string, []claudeMessage) {
	var system string
	var out []claudeMessage

	for _, m := range msgs {
		if m.Role == llm.RoleSystem {
			system = m.Content
			continue
		}
		if m.Content == "" {
			continue
		}
		out = append(out, claudeMessage{
			Role:    string(m.Role),
			Content: []claudeContent{{Type: "text", Text: m.Content}},
		})
	}

	return system, out
}

func (p *Provider) buildBody(req *llm.ChatRequest, stream bool) claudeRequest {
	system, messages := convertMessages(req.Messages)
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096 // Claude 要求显式 max_tokens
	}
	return claudeRequest{
		Model:       providers.ChooseModel(req, p.cfg.Model, "claude-sonnet-4-20250514"),
		Messages:    messages,
		System:      system,
		MaxTokens:   maxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		StopSeq:     req.Stop,
		Stream:      stream,
	}
}

// Completion 发起同步请求。
func (p *Provider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	payload, err := json.Marshal(p.buildBody(req, false))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	endpoint := fmt.Sprintf("%s/v1/messages", strings.TrimRight(p.cfg.BaseURL, "/"))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	p.buildHeaders(httpReq)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, &llm.Error{
			Code: llm.ErrUpstreamError, Message: err.Error(),
			HTTPStatus: http.StatusBadGateway, Retryable: true, Provider: p.Name(),
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg := readClaudeErrMsg(resp.Body)
		return nil, providers.MapHTTPError(resp.StatusCode, msg, p.Name())
	}

	var claudeResp claudeResponse
	if err := json.NewDecoder(resp.Body).Decode(&claudeResp); err != nil {
		return nil, &llm.Error{
			Code: llm.ErrUpstreamError, Message: err.Error(),
			HTTPStatus: http.StatusBadGateway, Retryable: true, Provider: p.Name(),
		}
	}

	return toChatResponse(claudeResp, p.Name()), nil
}

// Stream 发起流式请求并解析 Claude 的 SSE 事件。
func (p *Provider) Stream(ctx context.Context, req *llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	payload, err := json.Marshal(p.buildBody(req, true))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	endpoint := fmt.Sprintf("%s/v1/messages", strings.TrimRight(p.cfg.BaseURL, "/"))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	p.buildHeaders(httpReq)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, &llm.Error{
			Code: llm.ErrUpstreamError, Message: err.Error(),
			HTTPStatus: http.StatusBadGateway, Retryable: true, Provider: p.Name(),
		}
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		msg := readClaudeErrMsg(resp.Body)
		return nil, providers.MapHTTPError(resp.StatusCode, msg, p.Name())
	}

	ch := make(chan llm.StreamChunk)
	go func() {
		defer resp.Body.Close()
		defer close(ch)
		reader := bufio.NewReader(resp.Body)

		var currentID, currentModel string

		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				if err != io.EOF {
					select {
					case <-ctx.Done():
					case ch <- llm.StreamChunk{Err: &llm.Error{
						Code: llm.ErrUpstreamError, Message: err.Error(),
						HTTPStatus: http.StatusBadGateway, Retryable: true, Provider: p.Name(),
					}}:
					}
				}
				return
			}

			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "event:") {
				// Claude SSE 格式：event: <type>\ndata: <json>；类型从 data 里取
				continue
			}
			if !strings.HasPrefix(line, "data:") {
				continue
			}

			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))

			var event claudeStreamEvent
			if err := json.Unmarshal([]byte(data), &event); err != nil {
				select {
				case <-ctx.Done():
				case ch <- llm.StreamChunk{Err: &llm.Error{
					Code: llm.ErrUpstreamError, Message: err.Error(),
					HTTPStatus: http.StatusBadGateway, Retryable: true, Provider: p.Name(),
				}}:
				}
				return
			}

			switch event.Type {
			case "message_start":
				if event.Message != nil {
					currentID = event.Message.ID
					currentModel = event.Message.Model
				}

			case "content_block_delta":
				if event.Delta == nil || event.Delta.Text == "" {
					continue
				}
				chunk := llm.StreamChunk{
					ID:       currentID,
					Provider: p.Name(),
					Model:    currentModel,
					Delta: llm.Message{
						Role:    llm.RoleAssistant,
						Content: event.Delta.Text,
					},
				}
				select {
				case <-ctx.Done():
					return
				case ch <- chunk:
				}

			case "message_delta":
				if event.Delta != nil && event.Delta.StopReason != "" {
					chunk := llm.StreamChunk{
						ID:           currentID,
						Provider:     p.Name(),
						Model:        currentModel,
						FinishReason: event.Delta.StopReason,
						Delta:        llm.Message{Role: llm.RoleAssistant},
					}
					if event.Usage != nil {
						chunk.Usage = &llm.ChatUsage{
							CompletionTokens: event.Usage.OutputTokens,
							TotalTokens:      event.Usage.InputTokens + event.Usage.OutputTokens,
						}
					}
					select {
					case <-ctx.Done():
						return
					case ch <- chunk:
					}
				}

			case "message_stop":
				return
			}
		}
	}()
	return ch, nil
}

func toChatResponse(resp claudeResponse, provider string) *llm.ChatResponse {
	var text strings.Builder
	for _, c := range resp.Content {
		if c.Type == "text" {
			text.WriteString(c.Text)
		}
	}

	out := &llm.ChatResponse{
		ID:       resp.ID,
		Provider: provider,
		Model:    resp.Model,
		Choices: []llm.ChatChoice{{
			FinishReason: resp.StopReason,
			Message: llm.Message{
				Role:    llm.RoleAssistant,
				Content: text.String(),
			},
		}},
		CreatedAt: time.Now(),
	}
	if resp.Usage != nil {
		out.Usage = llm.ChatUsage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		}
	}
	return out
}

func readClaudeErrMsg(body io.Reader) string {
	data, err := io.ReadAll(body)
	if err != nil {
		return "failed to read error response"
	}
	var errResp claudeErrorResp
	if err := json.Unmarshal(data, &errResp); err == nil && errResp.Error.Message != "" {
		return fmt.Sprintf("%s (type: %s)", errResp.Error.Message, errResp.Error.Type)
	}
	return string(data)
}
