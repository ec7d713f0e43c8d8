package agent

import (
	"context"
	"testing"

	"github.com/BaSui01/docflow/llm"
	"github.com/BaSui01/docflow/rag"
	"github.com/BaSui01/docflow/testutil/mocks"
	"github.com/BaSui01/docflow/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubRetriever 返回固定证据集或错误。
type stubRetriever struct {
	evidence *types.EvidenceSet
	err      error
	calls    int
}

func (s *stubRetriever) Retrieve(ctx context.Context, query, collection string, topK int) (*types.EvidenceSet, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.evidence, nil
}

type eventLog struct {
	events []types.StreamEvent
}

func (l *eventLog) emit(e types.StreamEvent) { l.events = append(l.events, e) }

func (l *eventLog) types() []types.EventType {
	out := make([]types.EventType, len(l.events))
	for i, e := range l.events {
		out[i] = e.Type
	}
	return out
}

func (l *eventLog) terminalCount() int {
	n := 0
	for _, e := range l.events {
		if e.Terminal() {
			n++
		}
	}
	return n
}

func newTestGraph(provider *mocks.MockProvider, retriever Retriever, classifier Classifier) *Graph {
	if classifier == nil {
		classifier = &stubClassifier{
			decision: &types.RouteDecision{Mode: types.ModeQA, Confidence: 0.9},
		}
	}
	router := NewRouter(DefaultRouterConfig(), classifier, nil, nil)
	specialists := NewSpecialists(provider, "test-model", nil)
	return NewGraph(DefaultGraphConfig(), router, retriever, specialists, nil)
}

// 场景 A：事实问题路由到 qa，相关 chunk 排名第一并被引用。
func TestScenarioFactualQuestion(t *testing.T) {
	embedder := mocks.NewMockEmbedder().WithDimensions(2).
		WithVector("What is the refund period?", []float64{1, 0})

	store := rag.NewInMemoryVectorStore(nil)
	store.Add("kb-policies",
		rag.StoredChunk{ChunkID: "c-refund", DocumentID: "policy-doc", ChunkIndex: 1,
			Content: "The refund period is 30 days.", Embedding: []float64{1, 0}},
		rag.StoredChunk{ChunkID: "c-other", DocumentID: "policy-doc", ChunkIndex: 9,
			Content: "Shipping takes five days.", Embedding: []float64{0.7, 0.71414284285}},
	)
	retriever := rag.NewHybridRetriever(rag.DefaultRetrieverConfig(), store, embedder, nil)

	provider := mocks.NewMockProvider().
		WithStreamTokens("The refund period is 30 days ", "[Source 1].")
	classifier := &stubClassifier{
		decision: &types.RouteDecision{Mode: types.ModeQA, Confidence: 0.95, Reasoning: "factual"},
	}
	g := newTestGraph(provider, retriever, classifier)

	log := &eventLog{}
	state, err := g.Run(context.Background(), &types.Query{
		Text:         "What is the refund period?",
		CollectionID: "kb-policies",
	}, log.emit)
	require.NoError(t, err)

	assert.Equal(t, PhaseDone, state.Phase())
	assert.Equal(t, types.ModeQA, state.Decision.Mode)

	// 相关 chunk 排名第一
	require.False(t, state.Evidence.Empty())
	assert.Equal(t, "c-refund", state.Evidence.Items[0].ChunkID)

	// 事件序列：stream_start → sources → token* → stream_end
	evTypes := log.types()
	assert.Equal(t, types.EventStreamStart, evTypes[0])
	assert.Equal(t, types.EventSources, evTypes[1])
	assert.Equal(t, types.EventStreamEnd, evTypes[len(evTypes)-1])
	assert.Equal(t, 1, log.terminalCount())

	// 引用指向排名第一的证据
	end := log.events[len(log.events)-1]
	require.Len(t, end.Citations, 1)
	assert.Equal(t, "c-refund", end.Citations[0].ChunkID)
	assert.GreaterOrEqual(t, end.LatencyMS, int64(0))
}

// 场景 B：空集合走正常路径，空引用，正常 stream_end。
func TestScenarioEmptyCollection(t *testing.T) {
	provider := mocks.NewMockProvider().
		WithStreamTokens("The provided documents do not contain this information.")
	retriever := &stubRetriever{evidence: &types.EvidenceSet{}}
	g := newTestGraph(provider, retriever, nil)

	log := &eventLog{}
	state, err := g.Run(context.Background(), &types.Query{Text: "anything", CollectionID: "empty"}, log.emit)
	require.NoError(t, err)

	assert.Equal(t, PhaseDone, state.Phase())

	evTypes := log.types()
	assert.Equal(t, []types.EventType{
		types.EventStreamStart, types.EventSources, types.EventToken, types.EventStreamEnd,
	}, evTypes)

	sources := log.events[1]
	assert.Empty(t, sources.Sources)

	end := log.events[len(log.events)-1]
	assert.NotNil(t, end.Citations)
	assert.Empty(t, end.Citations)
}

// 场景 C：索引不可达 → stream_start 后直接 error，无 token。
func TestScenarioRetrievalUnavailable(t *testing.T) {
	provider := mocks.NewMockProvider()
	retriever := &stubRetriever{
		err: types.NewError(types.ErrRetrievalUnavailable, "vector index unreachable"),
	}
	g := newTestGraph(provider, retriever, nil)

	log := &eventLog{}
	state, err := g.Run(context.Background(), &types.Query{Text: "anything", CollectionID: "kb"}, log.emit)
	require.Error(t, err)

	assert.Equal(t, PhaseError, state.Phase())
	assert.Equal(t, []types.EventType{types.EventStreamStart, types.EventError}, log.types())
	assert.Equal(t, types.ErrRetrievalUnavailable, log.events[1].Code)
	assert.Equal(t, 0, provider.StreamCalls(), "no generation after retrieval failure")
}

// 场景 D：第 3 个 token 后上游断流 → 3 个 token 保留，error 终端，无 stream_end。
func TestScenarioMidStreamProviderFailure(t *testing.T) {
	provider := mocks.NewMockProvider().
		WithStreamTokens("t1 ", "t2 ", "t3 ", "t4 ", "t5 ").
		WithStreamError(&llm.Error{Code: llm.ErrUpstreamError, Message: "connection reset"}, 3)
	retriever := &stubRetriever{evidence: evidenceFixture()}
	g := newTestGraph(provider, retriever, nil)

	log := &eventLog{}
	state, err := g.Run(context.Background(), &types.Query{Text: "anything", CollectionID: "kb"}, log.emit)
	require.Error(t, err)

	assert.Equal(t, PhaseError, state.Phase())

	evTypes := log.types()
	assert.Equal(t, []types.EventType{
		types.EventStreamStart, types.EventSources,
		types.EventToken, types.EventToken, types.EventToken,
		types.EventError,
	}, evTypes)
	assert.Equal(t, 1, log.terminalCount())
	assert.Equal(t, types.ErrGenerationFailed, log.events[len(log.events)-1].Code)
	assert.Equal(t, "t1 t2 t3 ", state.Answer())
}

func TestGraphOverrideSkipsClassifier(t *testing.T) {
	classifier := &stubClassifier{
		decision: &types.RouteDecision{Mode: types.ModeQA, Confidence: 0.9},
	}
	provider := mocks.NewMockProvider().WithStreamTokens("summary text")
	g := newTestGraph(provider, &stubRetriever{evidence: evidenceFixture()}, classifier)

	log := &eventLog{}
	state, err := g.Run(context.Background(), &types.Query{
		Text:         "summarise this",
		ModeOverride: types.ModeSummarise,
	}, log.emit)
	require.NoError(t, err)

	assert.Equal(t, 0, classifier.calls)
	assert.Equal(t, types.ModeSummarise, state.Decision.Mode)
	assert.True(t, state.Decision.Overridden)
}

func TestGraphNoReentry(t *testing.T) {
	provider := mocks.NewMockProvider().WithStreamTokens("x")
	g := newTestGraph(provider, &stubRetriever{evidence: &types.EvidenceSet{}}, nil)

	log := &eventLog{}
	_, err := g.Run(context.Background(), &types.Query{Text: "first"}, log.emit)
	require.NoError(t, err)
	firstLen := len(log.events)

	_, err = g.Run(context.Background(), &types.Query{Text: "second"}, log.emit)
	require.Error(t, err)
	assert.Equal(t, firstLen, len(log.events), "re-entry must not emit events")
}

func TestGraphInvalidQueryNoEvents(t *testing.T) {
	provider := mocks.NewMockProvider()
	g := newTestGraph(provider, &stubRetriever{evidence: &types.EvidenceSet{}}, nil)

	log := &eventLog{}
	_, err := g.Run(context.Background(), &types.Query{Text: ""}, log.emit)
	require.Error(t, err)
	assert.Equal(t, types.ErrInvalidRequest, types.GetErrorCode(err))
	assert.Empty(t, log.events)
}

func TestGraphSourcePreviewTruncation(t *testing.T) {
	long := make([]byte, 500)
	for i := range long {
		long[i] = 'x'
	}
	retriever := &stubRetriever{evidence: &types.EvidenceSet{Items: []types.EvidenceItem{
		{ChunkID: "c1", DocumentID: "d1", Content: string(long), FusedScore: 0.9},
	}}}
	provider := mocks.NewMockProvider().WithStreamTokens("ok")
	g := newTestGraph(provider, retriever, nil)

	log := &eventLog{}
	_, err := g.Run(context.Background(), &types.Query{Text: "q", CollectionID: "kb"}, log.emit)
	require.NoError(t, err)

	sources := log.events[1]
	require.Len(t, sources.Sources, 1)
	assert.Len(t, sources.Sources[0].Content, 300)
}

func TestGraphConversationIDAssigned(t *testing.T) {
	provider := mocks.NewMockProvider().WithStreamTokens("ok")
	g := newTestGraph(provider, &stubRetriever{evidence: &types.EvidenceSet{}}, nil)

	log := &eventLog{}
	state, err := g.Run(context.Background(), &types.Query{Text: "q"}, log.emit)
	require.NoError(t, err)

	assert.NotEmpty(t, state.ConversationID)
	assert.Equal(t, state.ConversationID, log.events[0].ConversationID)
}

func TestGraphCancelledBeforeRetrieval(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	provider := mocks.NewMockProvider()
	retriever := &stubRetriever{evidence: &types.EvidenceSet{}}
	g := newTestGraph(provider, retriever, nil)

	log := &eventLog{}
	state, err := g.Run(ctx, &types.Query{Text: "q", ModeOverride: types.ModeQA}, log.emit)
	require.Error(t, err)

	assert.Equal(t, PhaseError, state.Phase())
	assert.Equal(t, types.ErrRequestCancelled, types.GetErrorCode(err))
	assert.Equal(t, 1, log.terminalCount())
	assert.Equal(t, 0, retriever.calls)
}
