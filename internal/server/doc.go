/*
包 server 提供 DocFlow 的 websocket 接入层与 HTTP 服务器生命周期管理。

# 概述

Handler 将升级后的 websocket 连接作为流式问答通道：客户端发送 JSON
请求帧 {message, collection_id?, agent_mode?, history?}，服务端为每条
请求创建一次性的编排图实例，并把图发出的事件按 JSON 文本帧原样下发。
入口校验（未知 agent_mode、空 message、限流）在图创建之前完成，
被拒绝的请求只收到单个 error 帧，不产生 stream_start。

Manager 封装 net/http.Server，统一管理监听、服务、优雅关闭与
SIGINT/SIGTERM 信号处理。

# 主要能力

  - 并发上限：semaphore 限制全进程在途流数量，超限请求排队等待。
  - 单连接限流：token bucket 限制每个连接的请求速率。
  - 串行写出：websocket 不支持并发写，所有事件帧经 mutex 串行化。
  - 下行断开传播：写失败时取消请求上下文，让编排图尽快终止。
  - 路由组装：NewMux 暴露 /ws、/healthz 与 Prometheus /metrics。
*/
package server
