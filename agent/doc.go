// Package agent 实现 DocFlow 的查询编排：
//
//   - Router：显式覆盖快路径 + LLM 分类 + qa 兜底
//   - Specialist：qa / research / summarise / analyse 四种专家策略，
//     流式生成并从答案中回收 [Source N] 引用
//   - Graph：START → ROUTING → RETRIEVING → GENERATING → DONE 状态机，
//     ERROR 为吸收态；每个请求一个实例，不可重入
//
// 事件契约：stream_start → sources（恰好一次）→ token* →
// 恰好一个终端事件（stream_end 或 error）。
package agent
