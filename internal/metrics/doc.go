/*
包 metrics 提供基于 Prometheus 的指标采集能力，覆盖流式问答
请求、编排阶段、检索与路由缓存四个维度。

# 概述

本包通过 Collector 统一注册和记录 Prometheus 指标，使用 promauto
工厂注册到调用方提供的 Registerer（默认 registry 亦可）。所有指标
按 namespace 隔离，支持多维度 label 分组，便于 Grafana 等工具进行
可视化与告警。

# 主要能力

  - 请求指标：请求总数与端到端耗时，按 mode/status 分组。
  - 阶段指标：routing / retrieving / generating 各阶段耗时直方图。
  - 流式指标：已流出 token 总数、在途流数量 Gauge。
  - 检索指标：单次检索返回的证据条数分布。
  - 路由缓存指标：命中与未命中计数。
*/
package metrics
