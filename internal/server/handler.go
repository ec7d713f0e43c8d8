package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/BaSui01/docflow/agent"
	"github.com/BaSui01/docflow/internal/metrics"
	"github.com/BaSui01/docflow/types"
)

// =============================================================================
// 🔌 WebSocket 接入层
// =============================================================================

// ChatRequest 是客户端发来的单条请求帧。
type ChatRequest struct {
	Message      string       `json:"message"`
	CollectionID string       `json:"collection_id,omitempty"`
	AgentMode    string       `json:"agent_mode,omitempty"`
	History      []types.Turn `json:"history,omitempty"`
}

// GraphFactory 为每个请求构造一个新的编排图实例。
// 图实例一次性使用，不能跨请求复用。
type GraphFactory func() *agent.Graph

// HandlerConfig 配置接入层的限流与并发上限。
type HandlerConfig struct {
	// 全进程同时执行的流式请求上限
	MaxConcurrentStreams int64 `json:"max_concurrent_streams" yaml:"max_concurrent_streams"`
	// 单连接限流（请求/秒）
	RateLimitRPS float64 `json:"rate_limit_rps" yaml:"rate_limit_rps"`
	// 单连接限流突发量
	RateLimitBurst int `json:"rate_limit_burst" yaml:"rate_limit_burst"`
}

// DefaultHandlerConfig 返回默认接入层配置。
func DefaultHandlerConfig() HandlerConfig {
	return HandlerConfig{
		MaxConcurrentStreams: 64,
		RateLimitRPS:         2,
		RateLimitBurst:       5,
	}
}

// Handler 处理 websocket 连接上的流式问答请求。
// 同一连接上的请求顺序执行；事件以 JSON 文本帧下发。
type Handler struct {
	cfg       HandlerConfig
	newGraph  GraphFactory
	sem       *semaphore.Weighted
	collector *metrics.Collector
	logger    *zap.Logger
}

// NewHandler 创建接入层处理器。collector 可为 nil。
func NewHandler(cfg HandlerConfig, newGraph GraphFactory, collector *metrics.Collector, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxConcurrentStreams <= 0 {
		cfg.MaxConcurrentStreams = DefaultHandlerConfig().MaxConcurrentStreams
	}
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = DefaultHandlerConfig().RateLimitRPS
	}
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = DefaultHandlerConfig().RateLimitBurst
	}
	return &Handler{
		cfg:       cfg,
		newGraph:  newGraph,
		sem:       semaphore.NewWeighted(cfg.MaxConcurrentStreams),
		collector: collector,
		logger:    logger.With(zap.String("component", "ws_handler")),
	}
}

// ServeHTTP 升级连接并循环处理请求帧，直到客户端断开。
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.CloseNow()

	writer := &eventWriter{conn: conn}
	limiter := rate.NewLimiter(rate.Limit(h.cfg.RateLimitRPS), h.cfg.RateLimitBurst)
	ctx := r.Context()

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			// 客户端关闭或网络错误，正常结束
			return
		}
		if err := h.handleRequest(ctx, writer, limiter, data); err != nil {
			return
		}
	}
}

// handleRequest 处理一条请求帧。入口校验失败只下发单个 error 帧，
// 不创建图、不发 stream_start。返回非 nil 表示连接不可继续使用。
func (h *Handler) handleRequest(ctx context.Context, writer *eventWriter, limiter *rate.Limiter, data []byte) error {
	var req ChatRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return writer.write(ctx, types.ErrorEvent(types.ErrInvalidRequest, "malformed request frame"))
	}

	if !limiter.Allow() {
		return writer.write(ctx, types.ErrorEvent(types.ErrRateLimited, "too many requests on this connection"))
	}

	query := &types.Query{
		Text:         req.Message,
		CollectionID: req.CollectionID,
		History:      req.History,
	}
	if req.AgentMode != "" {
		mode, err := types.ParseAgentMode(req.AgentMode)
		if err != nil {
			return writer.write(ctx, types.ErrorEvent(types.ErrInvalidRequest, err.Error()))
		}
		query.ModeOverride = mode
	}
	if err := query.Validate(); err != nil {
		code := types.GetErrorCode(err)
		if code == "" {
			code = types.ErrInvalidRequest
		}
		return writer.write(ctx, types.ErrorEvent(code, err.Error()))
	}

	if err := h.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer h.sem.Release(1)

	h.runGraph(ctx, writer, query)
	return writer.err()
}

// runGraph 在当前连接上执行一次编排并转发全部事件。
func (h *Handler) runGraph(ctx context.Context, writer *eventWriter, query *types.Query) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if h.collector != nil {
		h.collector.StreamStarted()
		defer h.collector.StreamFinished()
	}

	g := h.newGraph()
	state, err := g.Run(runCtx, query, func(e types.StreamEvent) {
		if writeErr := writer.write(runCtx, e); writeErr != nil {
			// 下行已断，取消上下文让图尽快终止
			cancel()
		}
	})
	if err != nil {
		h.logger.Warn("request failed",
			zap.String("code", string(types.GetErrorCode(err))),
			zap.Error(err))
	}

	h.record(state, err)
}

// record 上报单次请求的指标。
func (h *Handler) record(state *agent.State, err error) {
	if h.collector == nil || state == nil {
		return
	}

	mode := "unknown"
	if state.Decision != nil {
		mode = string(state.Decision.Mode)
	}
	status := "ok"
	if err != nil {
		status = "error"
	}

	h.collector.RecordRequest(mode, status, state.Elapsed())
	h.collector.RecordStage("routing", state.PhaseDuration(agent.PhaseRouting))
	h.collector.RecordStage("retrieving", state.PhaseDuration(agent.PhaseRetrieving))
	h.collector.RecordStage("generating", state.PhaseDuration(agent.PhaseGenerating))
	h.collector.RecordTokens(state.TokensEmitted)
	if state.Evidence != nil {
		h.collector.RecordEvidence(state.Evidence.Len())
	}
}

// =============================================================================
// ✍️ 事件写出
// =============================================================================

// eventWriter 把事件序列化为 JSON 文本帧写入连接。
// websocket 不支持并发写，所有写操作经 mutex 串行化。
type eventWriter struct {
	conn     *websocket.Conn
	mu       sync.Mutex
	writeErr error
}

func (w *eventWriter) write(ctx context.Context, e types.StreamEvent) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.writeErr != nil {
		return w.writeErr
	}

	data, err := json.Marshal(e)
	if err != nil {
		w.writeErr = err
		return err
	}
	if err := w.conn.Write(ctx, websocket.MessageText, data); err != nil {
		w.writeErr = err
		return err
	}
	return nil
}

func (w *eventWriter) err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.writeErr
}

// =============================================================================
// 🗺️ 路由
// =============================================================================

// NewMux 组装服务路由：/ws 接入、/healthz 健康检查、/metrics 指标。
// gatherer 为 nil 时使用默认 registry。
func NewMux(h *Handler, gatherer prometheus.Gatherer) *http.ServeMux {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	mux := http.NewServeMux()
	mux.Handle("/ws", h)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return mux
}
