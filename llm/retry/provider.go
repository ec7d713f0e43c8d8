package retry

import (
	"context"

	"github.com/BaSui01/docflow/llm"
	"go.uber.org/zap"
)

// RetryingProvider 包装 Provider，对同步 Completion 做有界退避重试。
// Stream 不重试：token 一旦外流，半途重启会产生重复输出，
// 流中断由编排图按生成失败处理。
type RetryingProvider struct {
	inner   llm.Provider
	retryer Retryer
}

// WrapProvider 用给定策略包装 Provider。policy 为 nil 时使用默认策略。
func WrapProvider(p llm.Provider, policy *Policy, logger *zap.Logger) *RetryingProvider {
	return &RetryingProvider{
		inner:   p,
		retryer: NewBackoffRetryer(policy, logger),
	}
}

// Completion 重试可重试的上游错误，其余立即返回。
func (p *RetryingProvider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	var resp *llm.ChatResponse
	err := p.retryer.Do(ctx, func() error {
		var callErr error
		resp, callErr = p.inner.Completion(ctx, req)
		return callErr
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// Stream 直接透传。
func (p *RetryingProvider) Stream(ctx context.Context, req *llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	return p.inner.Stream(ctx, req)
}

// HealthCheck 直接透传。
func (p *RetryingProvider) HealthCheck(ctx context.Context) (*llm.HealthStatus, error) {
	return p.inner.HealthCheck(ctx)
}

// Name 返回被包装 Provider 的标识。
func (p *RetryingProvider) Name() string {
	return p.inner.Name()
}
