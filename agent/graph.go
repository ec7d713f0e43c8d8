package agent

import (
	"context"
	"sync/atomic"

	"github.com/BaSui01/docflow/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Retriever 是图对检索管线的依赖。
type Retriever interface {
	Retrieve(ctx context.Context, query, collection string, topK int) (*types.EvidenceSet, error)
}

// GraphConfig 配置编排图。
type GraphConfig struct {
	// SourcePreviewLen 是 sources 事件中内容预览的字节上限。
	SourcePreviewLen int `json:"source_preview_len" yaml:"source_preview_len"`

	// DefaultTopK 在路由决定未覆盖时使用。
	DefaultTopK int `json:"default_top_k" yaml:"default_top_k"`
}

// DefaultGraphConfig 返回默认图配置。
func DefaultGraphConfig() GraphConfig {
	return GraphConfig{
		SourcePreviewLen: 300,
		DefaultTopK:      5,
	}
}

// Graph 为单个请求执行编排状态机。
// 一个实例只能 Run 一次；重入返回错误且不发事件。
type Graph struct {
	cfg         GraphConfig
	router      *Router
	retriever   Retriever
	specialists map[types.AgentMode]*Specialist
	logger      *zap.Logger

	ran atomic.Bool
}

// NewGraph 创建编排图实例。
func NewGraph(cfg GraphConfig, router *Router, retriever Retriever, specialists map[types.AgentMode]*Specialist, logger *zap.Logger) *Graph {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SourcePreviewLen <= 0 {
		cfg.SourcePreviewLen = 300
	}
	if cfg.DefaultTopK <= 0 {
		cfg.DefaultTopK = 5
	}
	return &Graph{
		cfg:         cfg,
		router:      router,
		retriever:   retriever,
		specialists: specialists,
		logger:      logger.With(zap.String("component", "graph")),
	}
}

// Run 驱动一次完整的请求编排并把事件交给 emit。
// 事件序列保证：stream_start 先行，sources 恰好一次（错误提前终止除外），
// 终端事件（stream_end 或 error）恰好一次。返回的 State 含各阶段耗时。
//
// 查询无效时不发任何事件直接返回错误（入口校验的兜底）。
func (g *Graph) Run(ctx context.Context, query *types.Query, emit EmitFunc) (*State, error) {
	if !g.ran.CompareAndSwap(false, true) {
		return nil, types.NewError(types.ErrInternalError, "graph instance already consumed")
	}
	if err := query.Validate(); err != nil {
		return nil, err
	}

	conversationID := uuid.NewString()
	state := NewState(conversationID, query)
	emit(types.StartEvent(conversationID))

	logger := g.logger.With(zap.String("conversation_id", conversationID))

	// ROUTING：Route 从不失败（覆盖快路径或 qa 兜底）
	state.transition(PhaseRouting)
	state.Decision = g.router.Route(ctx, query)
	logger.Info("query routed",
		zap.String("mode", string(state.Decision.Mode)),
		zap.Bool("overridden", state.Decision.Overridden))

	if err := ctx.Err(); err != nil {
		return g.abort(state, emit, types.NewError(types.ErrRequestCancelled, "request cancelled").WithCause(err))
	}

	// RETRIEVING：索引不可达是终端错误，零命中是合法空集
	state.transition(PhaseRetrieving)
	topK := state.Decision.TopK
	if topK <= 0 {
		topK = g.cfg.DefaultTopK
	}
	evidence, err := g.retriever.Retrieve(ctx, query.Text, query.CollectionID, topK)
	if err != nil {
		logger.Error("retrieval failed", zap.Error(err))
		return g.abort(state, emit, err)
	}
	state.Evidence = evidence
	emit(types.SourcesEvent(evidence, g.cfg.SourcePreviewLen))
	logger.Info("evidence retrieved", zap.Int("count", evidence.Len()))

	// GENERATING：中途失败保留已发出的 token，以 error 终止
	state.transition(PhaseGenerating)
	specialist, ok := g.specialists[state.Decision.Mode]
	if !ok {
		return g.abort(state, emit, types.NewError(types.ErrInternalError,
			"no specialist registered for mode "+string(state.Decision.Mode)))
	}
	citations, err := specialist.Run(ctx, state, emit)
	if err != nil {
		logger.Error("generation failed",
			zap.Int("tokens_emitted", state.TokensEmitted),
			zap.Error(err))
		return g.abort(state, emit, err)
	}
	state.Citations = citations

	state.transition(PhaseDone)
	model := specialist.model
	if model == "" {
		model = specialist.provider.Name()
	}
	emit(types.EndEvent(citations, model, state.Elapsed().Milliseconds()))
	logger.Info("request completed",
		zap.Int("tokens", state.TokensEmitted),
		zap.Int64("latency_ms", state.Elapsed().Milliseconds()))
	return state, nil
}

// abort 进入 ERROR 吸收态并发出唯一的终端 error 事件。
func (g *Graph) abort(state *State, emit EmitFunc, err error) (*State, error) {
	state.fail(err)

	code := types.GetErrorCode(err)
	if code == "" {
		code = types.ErrInternalError
	}
	emit(types.ErrorEvent(code, err.Error()))
	return state, err
}
