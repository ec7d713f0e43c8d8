package agent

import (
	"context"
	"testing"

	"github.com/BaSui01/docflow/testutil/mocks"
	"github.com/BaSui01/docflow/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClassification(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		wantMode types.AgentMode
		wantErr  bool
	}{
		{
			name:     "clean json",
			in:       `{"mode": "research", "confidence": 0.9, "reasoning": "multi-faceted"}`,
			wantMode: types.ModeResearch,
		},
		{
			name:     "json wrapped in prose",
			in:       "Sure! Here is my decision:\n```json\n{\"mode\": \"summarise\", \"confidence\": 0.8}\n```\nHope this helps.",
			wantMode: types.ModeSummarise,
		},
		{
			name:    "unknown mode",
			in:      `{"mode": "chitchat", "confidence": 0.9}`,
			wantErr: true,
		},
		{
			name:    "no json object",
			in:      "I think this is a question about documents.",
			wantErr: true,
		},
		{
			name:    "malformed json",
			in:      `{"mode": "qa", "confidence":}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision, err := parseClassification(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, types.ErrClassificationFailed, types.GetErrorCode(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantMode, decision.Mode)
		})
	}
}

func TestParseClassificationTopK(t *testing.T) {
	decision, err := parseClassification(
		`{"mode": "research", "confidence": 0.9, "top_k": 8}`)
	require.NoError(t, err)
	assert.Equal(t, 8, decision.TopK)

	// 缺省与非法值都回到 0，由编排图落到默认条数
	decision, err = parseClassification(`{"mode": "qa", "confidence": 0.9}`)
	require.NoError(t, err)
	assert.Zero(t, decision.TopK)

	decision, err = parseClassification(`{"mode": "qa", "confidence": 0.9, "top_k": -3}`)
	require.NoError(t, err)
	assert.Zero(t, decision.TopK)
}

func TestPromptClassifier(t *testing.T) {
	provider := mocks.NewMockProvider().
		WithCompletionText(`{"mode": "analyse", "confidence": 0.85, "reasoning": "comparison request"}`)

	c := NewPromptClassifier(provider, "test-model", nil)
	decision, err := c.Classify(context.Background(), "compare Q1 and Q2 revenue", nil)
	require.NoError(t, err)
	assert.Equal(t, types.ModeAnalyse, decision.Mode)
	assert.InDelta(t, 0.85, decision.Confidence, 1e-9)
	assert.Equal(t, 1, provider.CompletionCalls())

	// 分类请求使用确定性采样
	req := provider.LastRequest()
	require.NotNil(t, req)
	assert.Zero(t, req.Temperature)
}

func TestPromptClassifierProviderFailure(t *testing.T) {
	provider := mocks.NewMockProvider().
		WithCompletionError(types.NewError(types.ErrInternalError, "upstream down"))

	c := NewPromptClassifier(provider, "", nil)
	_, err := c.Classify(context.Background(), "anything", nil)
	require.Error(t, err)
	assert.Equal(t, types.ErrClassificationFailed, types.GetErrorCode(err))
}

func TestPromptClassifierIncludesHistoryHint(t *testing.T) {
	provider := mocks.NewMockProvider().
		WithCompletionText(`{"mode": "qa", "confidence": 0.9}`)

	c := NewPromptClassifier(provider, "", nil)
	_, err := c.Classify(context.Background(), "what about the second one?", []types.Turn{
		{Role: types.RoleUser, Content: "list the contracts"},
		{Role: types.RoleAssistant, Content: "There are two contracts: A and B."},
	})
	require.NoError(t, err)

	req := provider.LastRequest()
	require.NotNil(t, req)
	require.Len(t, req.Messages, 1)
	assert.Contains(t, req.Messages[0].Content, "There are two contracts")
}
