// Package openaicompat 提供 OpenAI 兼容提供者的共享基础实现。
// 具体提供者（openai、azure、deepseek、qwen）嵌入 Provider 并只覆盖差异部分。
package openaicompat
