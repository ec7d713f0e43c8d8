package agent

import (
	"context"
	"strings"
	"testing"

	"github.com/BaSui01/docflow/llm"
	"github.com/BaSui01/docflow/testutil/mocks"
	"github.com/BaSui01/docflow/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func evidenceFixture() *types.EvidenceSet {
	return &types.EvidenceSet{Items: []types.EvidenceItem{
		{ChunkID: "c1", DocumentID: "doc-alpha-123", ChunkIndex: 0, Content: "First chunk.", FusedScore: 0.9},
		{ChunkID: "c2", DocumentID: "doc-beta-456", ChunkIndex: 2, Content: "Second chunk.", FusedScore: 0.8},
	}}
}

func TestFormatEvidence(t *testing.T) {
	out := formatEvidence(evidenceFixture())
	assert.Contains(t, out, "[Source 1] (doc: doc-alph)")
	assert.Contains(t, out, "[Source 2] (doc: doc-beta)")
	assert.Contains(t, out, "First chunk.")
	assert.Contains(t, out, "\n\n---\n\n")

	assert.Equal(t, "No documents available.", formatEvidence(nil))
	assert.Equal(t, "No documents available.", formatEvidence(&types.EvidenceSet{}))
}

func TestExtractCitations(t *testing.T) {
	ev := evidenceFixture()

	tests := []struct {
		name   string
		answer string
		want   []string // ChunkIDs
	}{
		{"single", "Per [Source 1], yes.", []string{"c1"}},
		{"both in order of appearance", "See [Source 2] and [Source 1].", []string{"c2", "c1"}},
		{"repeated counted once", "[Source 1] ... again [Source 1].", []string{"c1"}},
		{"out of range dropped", "Allegedly [Source 7] says so.", nil},
		{"zero dropped", "[Source 0] is invalid.", nil},
		{"no markers", "No citations at all.", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractCitations(tt.answer, ev)
			ids := make([]string, 0, len(got))
			for _, c := range got {
				ids = append(ids, c.ChunkID)
			}
			if len(tt.want) == 0 {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, ids)

			// 引用必须落在证据集内
			for _, c := range got {
				assert.True(t, ev.Contains(c.ChunkID))
			}
		})
	}
}

func TestExtractCitationsEmptyEvidence(t *testing.T) {
	got := ExtractCitations("Cites [Source 1] anyway.", &types.EvidenceSet{})
	assert.Empty(t, got)
	assert.NotNil(t, got)
}

func TestSpecialistRunStreamsTokens(t *testing.T) {
	provider := mocks.NewMockProvider().
		WithStreamTokens("The answer ", "is 42 ", "[Source 1].")

	s, err := NewSpecialist(types.ModeQA, provider, "test-model", nil)
	require.NoError(t, err)

	state := NewState("conv-1", &types.Query{Text: "what is the answer?"})
	state.Evidence = evidenceFixture()

	var events []types.StreamEvent
	citations, err := s.Run(context.Background(), state, func(e types.StreamEvent) {
		events = append(events, e)
	})
	require.NoError(t, err)

	require.Len(t, events, 3)
	for _, e := range events {
		assert.Equal(t, types.EventToken, e.Type)
	}
	assert.Equal(t, "The answer is 42 [Source 1].", state.Answer())
	assert.Equal(t, 3, state.TokensEmitted)

	require.Len(t, citations, 1)
	assert.Equal(t, "c1", citations[0].ChunkID)
	assert.Equal(t, "[Source 1]", citations[0].Marker)
}

func TestSpecialistRunMidStreamFailure(t *testing.T) {
	provider := mocks.NewMockProvider().
		WithStreamTokens("a", "b", "c", "d", "e").
		WithStreamError(&llm.Error{Code: llm.ErrUpstreamError, Message: "connection reset"}, 3)

	s, err := NewSpecialist(types.ModeResearch, provider, "", nil)
	require.NoError(t, err)

	state := NewState("conv-2", &types.Query{Text: "research this"})
	state.Evidence = evidenceFixture()

	var tokens int
	_, err = s.Run(context.Background(), state, func(e types.StreamEvent) {
		if e.Type == types.EventToken {
			tokens++
		}
	})
	require.Error(t, err)
	assert.Equal(t, types.ErrGenerationFailed, types.GetErrorCode(err))

	// 已发出的 token 保持已发出
	assert.Equal(t, 3, tokens)
	assert.Equal(t, "abc", state.Answer())
}

func TestSpecialistBuildMessages(t *testing.T) {
	provider := mocks.NewMockProvider()
	s, err := NewSpecialist(types.ModeQA, provider, "", nil)
	require.NoError(t, err)

	history := make([]types.Turn, 0, 14)
	for i := 0; i < 7; i++ {
		history = append(history,
			types.Turn{Role: types.RoleUser, Content: "q"},
			types.Turn{Role: types.RoleAssistant, Content: "a"},
		)
	}
	state := NewState("conv-3", &types.Query{Text: "current question", History: history})
	state.Evidence = evidenceFixture()

	messages := s.buildMessages(state)

	// system + 最近 10 轮 + 当前查询
	require.Len(t, messages, 12)
	assert.Equal(t, llm.RoleSystem, messages[0].Role)
	assert.Contains(t, messages[0].Content, "[Source 1]")
	assert.Equal(t, "current question", messages[len(messages)-1].Content)

	// 历史窗口取最近的轮次
	for i := 1; i < len(messages)-1; i++ {
		assert.NotEqual(t, llm.RoleSystem, messages[i].Role)
	}
}

func TestSpecialistEmptyEvidencePrompt(t *testing.T) {
	provider := mocks.NewMockProvider().
		WithStreamTokens("The provided documents do not contain this information.")

	s, err := NewSpecialist(types.ModeQA, provider, "", nil)
	require.NoError(t, err)

	state := NewState("conv-4", &types.Query{Text: "unanswerable"})
	state.Evidence = &types.EvidenceSet{}

	citations, err := s.Run(context.Background(), state, func(types.StreamEvent) {})
	require.NoError(t, err)
	assert.Empty(t, citations)

	req := provider.LastRequest()
	require.NotNil(t, req)
	assert.True(t, strings.Contains(req.Messages[0].Content, "No documents available."))
}

func TestNewSpecialistUnknownMode(t *testing.T) {
	_, err := NewSpecialist(types.AgentMode("chitchat"), mocks.NewMockProvider(), "", nil)
	require.Error(t, err)
}

func TestNewSpecialistsCoversAllModes(t *testing.T) {
	specialists := NewSpecialists(mocks.NewMockProvider(), "m", nil)
	require.Len(t, specialists, len(types.AgentModes))
	for _, mode := range types.AgentModes {
		require.NotNil(t, specialists[mode])
		assert.Equal(t, mode, specialists[mode].Mode())
	}
}
