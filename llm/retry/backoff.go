// Package retry 为网关内部的瞬态上游错误提供有界指数退避重试。
// 重试只发生在 Provider / 向量客户端内部；编排图从不跨节点自动重试。
package retry

import (
	"context"
	"math/rand"
	"time"

	"github.com/BaSui01/docflow/llm"
	"go.uber.org/zap"
)

// Policy 定义重试策略配置
type Policy struct {
	MaxRetries   int           // 最大重试次数（0 表示不重试）
	InitialDelay time.Duration // 初始延迟时间
	MaxDelay     time.Duration // 最大延迟时间
	Multiplier   float64       // 延迟时间倍增因子（指数退避）
	Jitter       bool          // 是否添加随机抖动
}

// DefaultPolicy 返回默认的重试策略
// 适用于大部分 LLM API 调用场景
func DefaultPolicy() *Policy {
	return &Policy{
		MaxRetries:   3,
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

// Retryer 重试器接口
type Retryer interface {
	// Do 执行函数，失败时根据策略重试
	Do(ctx context.Context, fn func() error) error
}

// backoffRetryer 基于指数退避的重试器实现
type backoffRetryer struct {
	policy *Policy
	logger *zap.Logger
}

// NewBackoffRetryer 创建指数退避重试器
func NewBackoffRetryer(policy *Policy, logger *zap.Logger) Retryer {
	if policy == nil {
		policy = DefaultPolicy()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	// 参数校验
	if policy.MaxRetries < 0 {
		policy.MaxRetries = 0
	}
	if policy.InitialDelay <= 0 {
		policy.InitialDelay = 1 * time.Second
	}
	if policy.MaxDelay <= 0 {
		policy.MaxDelay = 30 * time.Second
	}
	if policy.Multiplier < 1.0 {
		policy.Multiplier = 2.0
	}

	return &backoffRetryer{
		policy: policy,
		logger: logger.With(zap.String("component", "retryer")),
	}
}

// Do 实现 Retryer.Do
func (r *backoffRetryer) Do(ctx context.Context, fn func() error) error {
	var lastErr error
	delay := r.policy.InitialDelay

	for attempt := 0; attempt <= r.policy.MaxRetries; attempt++ {
		if attempt > 0 {
			wait := delay
			if r.policy.Jitter {
				// 抖动范围 [delay/2, delay)
				wait = delay/2 + time.Duration(rand.Int63n(int64(delay/2)))
			}

			r.logger.Debug("retrying after delay",
				zap.Int("attempt", attempt),
				zap.Duration("delay", wait),
				zap.Error(lastErr))

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}

			delay = time.Duration(float64(delay) * r.policy.Multiplier)
			if delay > r.policy.MaxDelay {
				delay = r.policy.MaxDelay
			}
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !Retryable(lastErr) {
			return lastErr
		}
	}

	return lastErr
}

// Retryable 判断错误是否可重试。
// 只有上游显式标记为可重试的错误才会触发退避。
func Retryable(err error) bool {
	if e, ok := err.(*llm.Error); ok {
		return e.Retryable
	}
	return false
}
