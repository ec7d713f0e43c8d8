// MockProvider 的 LLM 提供商测试模拟实现。
//
// 支持固定响应、按脚本流式输出与中途错误注入场景。
package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/BaSui01/docflow/llm"
)

// MockProvider 是 llm.Provider 的模拟实现。
type MockProvider struct {
	mu sync.Mutex

	name string

	// 固定响应
	completionText string
	streamTokens   []string

	// 错误注入
	completionErr error
	streamErr     *llm.Error // 注入为流中的错误 chunk
	errAfter      int        // 发出 errAfter 个 token 后注入 streamErr（0 表示立即）
	openErr       error      // Stream 打开即失败

	// 调用记录
	completionCalls int
	streamCalls     int
	lastRequest     *llm.ChatRequest
}

// NewMockProvider 创建 MockProvider。
func NewMockProvider() *MockProvider {
	return &MockProvider{
		name:           "mock",
		completionText: "mock response",
		streamTokens:   []string{"mock ", "response"},
	}
}

// WithName 设置提供者名。
func (m *MockProvider) WithName(name string) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.name = name
	return m
}

// WithCompletionText 设置 Completion 返回的文本。
func (m *MockProvider) WithCompletionText(text string) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completionText = text
	return m
}

// WithStreamTokens 设置 Stream 按序发出的 token。
func (m *MockProvider) WithStreamTokens(tokens ...string) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.streamTokens = append([]string{}, tokens...)
	return m
}

// WithCompletionError 设置 Completion 的错误。
func (m *MockProvider) WithCompletionError(err error) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completionErr = err
	return m
}

// WithStreamError 在发出 after 个 token 后注入错误 chunk，之后流关闭。
func (m *MockProvider) WithStreamError(err *llm.Error, after int) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.streamErr = err
	m.errAfter = after
	return m
}

// WithStreamOpenError 使 Stream 调用本身失败。
func (m *MockProvider) WithStreamOpenError(err error) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.openErr = err
	return m
}

// CompletionCalls 返回 Completion 的调用次数。
func (m *MockProvider) CompletionCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.completionCalls
}

// StreamCalls 返回 Stream 的调用次数。
func (m *MockProvider) StreamCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.streamCalls
}

// LastRequest 返回最近一次请求。
func (m *MockProvider) LastRequest() *llm.ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastRequest
}

// Name 实现 llm.Provider。
func (m *MockProvider) Name() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.name
}

// Completion 实现 llm.Provider。
func (m *MockProvider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	m.mu.Lock()
	m.completionCalls++
	m.lastRequest = req
	text := m.completionText
	err := m.completionErr
	name := m.name
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return &llm.ChatResponse{
		ID:       "mock-completion",
		Provider: name,
		Model:    "mock-model",
		Choices: []llm.ChatChoice{{
			FinishReason: "stop",
			Message:      llm.Message{Role: llm.RoleAssistant, Content: text},
		}},
		CreatedAt: time.Now(),
	}, nil
}

// Stream 实现 llm.Provider。
func (m *MockProvider) Stream(ctx context.Context, req *llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	m.mu.Lock()
	m.streamCalls++
	m.lastRequest = req
	tokens := append([]string{}, m.streamTokens...)
	streamErr := m.streamErr
	errAfter := m.errAfter
	openErr := m.openErr
	name := m.name
	m.mu.Unlock()

	if openErr != nil {
		return nil, openErr
	}

	ch := make(chan llm.StreamChunk)
	go func() {
		defer close(ch)
		for i, tok := range tokens {
			if streamErr != nil && i == errAfter {
				select {
				case <-ctx.Done():
				case ch <- llm.StreamChunk{Provider: name, Err: streamErr}:
				}
				return
			}
			chunk := llm.StreamChunk{
				ID:       "mock-stream",
				Provider: name,
				Delta:    llm.Message{Role: llm.RoleAssistant, Content: tok},
			}
			select {
			case <-ctx.Done():
				return
			case ch <- chunk:
			}
		}
		if streamErr != nil && errAfter >= len(tokens) {
			select {
			case <-ctx.Done():
			case ch <- llm.StreamChunk{Provider: name, Err: streamErr}:
			}
			return
		}
		final := llm.StreamChunk{ID: "mock-stream", Provider: name, FinishReason: "stop",
			Delta: llm.Message{Role: llm.RoleAssistant}}
		select {
		case <-ctx.Done():
		case ch <- final:
		}
	}()
	return ch, nil
}

// HealthCheck 实现 llm.Provider。
func (m *MockProvider) HealthCheck(ctx context.Context) (*llm.HealthStatus, error) {
	return &llm.HealthStatus{Healthy: true, Latency: time.Millisecond}, nil
}
