// Package llm 定义统一的 LLM 提供者网关。
//
// 编排图与专家策略只依赖 Provider 能力接口，从不依赖具体提供者类型；
// 提供者在构造期由 factory 按配置选定，单个请求生命周期内保持不变。
// 所有上游错误（认证、配额、超时）统一映射为 *llm.Error，
// 使编排图的错误处理与提供者无关。
package llm
