package llm

import (
	"context"
	"time"
)

// 统一的 LLM 错误码，用于对齐 HTTP 状态、可重试性与降级策略。
type ErrorCode string

const (
	ErrInvalidRequest      ErrorCode = "LLM_INVALID_REQUEST"      // 参数/格式错误
	ErrUnauthorized        ErrorCode = "LLM_UNAUTHORIZED"         // 未授权或密钥失效
	ErrForbidden           ErrorCode = "LLM_FORBIDDEN"            // 权限或内容策略拒绝
	ErrRateLimited         ErrorCode = "LLM_RATE_LIMITED"         // 上游或本地限流
	ErrQuotaExceeded       ErrorCode = "LLM_QUOTA_EXCEEDED"       // 额度/配额用尽
	ErrModelOverloaded     ErrorCode = "LLM_MODEL_OVERLOADED"     // 模型过载
	ErrUpstreamTimeout     ErrorCode = "LLM_UPSTREAM_TIMEOUT"     // 上游超时
	ErrUpstreamError       ErrorCode = "LLM_UPSTREAM_ERROR"       // 上游 5xx/网络错误
	ErrProviderUnavailable ErrorCode = "LLM_PROVIDER_UNAVAILABLE" // Provider 不可用
)

type Error struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"http_status"`
	Retryable  bool      `json:"retryable"`
	Provider   string    `json:"provider,omitempty"`
}

func (e *Error) Error() string { return e.Message }

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content,omitempty"`
}

type ChatRequest struct {
	Model       string        `json:"model"`
	Messages    []Message     `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float32       `json:"temperature,omitempty"`
	TopP        float32       `json:"top_p,omitempty"`
	Stop        []string      `json:"stop,omitempty"`
	Timeout     time.Duration `json:"timeout,omitempty"`
}

type ChatUsage struct {
	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens,omitempty"`
}

type ChatChoice struct {
	Index        int     `json:"index"`
	FinishReason string  `json:"finish_reason,omitempty"`
	Message      Message `json:"message"`
}

type ChatResponse struct {
	ID        string       `json:"id,omitempty"`
	Provider  string       `json:"provider,omitempty"`
	Model     string       `json:"model"`
	Choices   []ChatChoice `json:"choices"`
	Usage     ChatUsage    `json:"usage,omitempty"`
	CreatedAt time.Time    `json:"created_at,omitempty"`
}

// Text returns the content of the first choice, or "".
func (r *ChatResponse) Text() string {
	if r == nil || len(r.Choices) == 0 {
		return ""
	}
	return r.Choices[0].Message.Content
}

type StreamChunk struct {
	ID           string     `json:"id,omitempty"`
	Provider     string     `json:"provider,omitempty"`
	Model        string     `json:"model,omitempty"`
	Index        int        `json:"index,omitempty"`
	Delta        Message    `json:"delta"`
	FinishReason string     `json:"finish_reason,omitempty"`
	Usage        *ChatUsage `json:"usage,omitempty"` // 最终 chunk 可带 usage
	Err          *Error     `json:"error,omitempty"`
}

// HealthStatus 表示 Provider 健康检查结果。
type HealthStatus struct {
	Healthy bool          `json:"healthy"`
	Latency time.Duration `json:"latency"`
}

// Provider 定义了统一的文本生成适配接口。
type Provider interface {
	// Completion 发起同步聊天请求，返回完整响应
	Completion(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// Stream 发起流式聊天请求，返回增量响应通道。
	// 通道在生成结束或 ctx 取消后关闭；上游错误作为带 Err 的 chunk 发出。
	Stream(ctx context.Context, req *ChatRequest) (<-chan StreamChunk, error)

	// HealthCheck 执行轻量级健康检查，返回延迟与可用性信息。
	HealthCheck(ctx context.Context) (*HealthStatus, error)

	// Name 返回 Provider 的唯一标识
	Name() string
}
