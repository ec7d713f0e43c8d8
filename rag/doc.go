// Package rag 实现 DocFlow 的混合检索管线。
//
// 核心组件：
//   - VectorStore：按集合分区的稠密向量检索接口（Qdrant / 内存实现）
//   - HybridRetriever：embed → 稠密候选 → 词法评分 → 加权融合 → 压缩 → 去重
//   - Compressor：基于 tiktoken 预算的句子窗口压缩
//
// 检索失败语义：
//   - 索引不可达 → RETRIEVAL_UNAVAILABLE（终止错误）
//   - 零命中 → 合法的空证据集（不是错误）
package rag
