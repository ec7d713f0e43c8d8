package rag

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressNoBudgetPassthrough(t *testing.T) {
	c := NewCompressor(CompressorConfig{}, EstimateCounter{}, nil)
	content := "First sentence. Second sentence. Third sentence."
	assert.Equal(t, content, c.Compress("query", content))
}

func TestCompressUnderBudgetPassthrough(t *testing.T) {
	c := NewCompressor(CompressorConfig{TokenBudget: 1000}, EstimateCounter{}, nil)
	content := "Short content."
	assert.Equal(t, content, c.Compress("query", content))
}

func TestCompressKeepsQueryRelevantSentences(t *testing.T) {
	c := NewCompressor(CompressorConfig{TokenBudget: 12}, EstimateCounter{}, nil)

	content := "The weather today is cloudy with rain expected. " +
		"DocFlow retrieval fuses dense and lexical scores. " +
		"Unrelated filler sentence about gardening and plants here. " +
		"More filler about cooking recipes and kitchen equipment today."

	out := c.Compress("docflow retrieval dense lexical", content)
	assert.Contains(t, out, "DocFlow retrieval fuses dense and lexical scores.")
	assert.Less(t, len(out), len(content))
}

func TestCompressPreservesSentenceOrder(t *testing.T) {
	c := NewCompressor(CompressorConfig{TokenBudget: 20, MinSentences: 2}, EstimateCounter{}, nil)

	content := "Alpha topic appears first in the document text. " +
		"Filler sentence with nothing relevant whatsoever inside it. " +
		"Alpha topic appears again later in the document body."

	out := c.Compress("alpha topic document", content)
	first := strings.Index(out, "first")
	later := strings.Index(out, "later")
	if first >= 0 && later >= 0 {
		assert.Less(t, first, later, "compressed output must keep original sentence order")
	}
	require.NotEmpty(t, out)
}

func TestEstimateCounter(t *testing.T) {
	ec := EstimateCounter{}
	assert.Equal(t, 0, ec.CountTokens(""))
	assert.Equal(t, 1, ec.CountTokens("ab"))       // 不足 4 字符向上取 1
	assert.Equal(t, 2, ec.CountTokens("abcdefgh")) // 8 ASCII ≈ 2 token
	assert.Equal(t, 4, ec.CountTokens("混合检索"))     // CJK 按字计
}

func TestSplitSentences(t *testing.T) {
	got := splitSentences("One. Two! Three? 四。")
	assert.Equal(t, []string{"One.", "Two!", "Three?", "四。"}, got)

	got = splitSentences("no terminal punctuation")
	assert.Equal(t, []string{"no terminal punctuation"}, got)

	assert.Empty(t, splitSentences(""))
}
