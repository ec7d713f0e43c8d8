// Package providers 持有各 LLM 提供者实现共享的配置、错误映射与
// OpenAI 兼容线格式。具体提供者位于各自的子包中。
package providers
