// Package config 提供 DocFlow 的统一配置加载。
//
// 配置来源按优先级合并：默认值 → YAML 文件 → 环境变量（前缀 DOCFLOW）。
// 环境变量键由嵌套 env tag 拼接而成，例如 DOCFLOW_RETRIEVAL_TOP_K。
package config
