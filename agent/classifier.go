package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/BaSui01/docflow/llm"
	"github.com/BaSui01/docflow/types"
	"go.uber.org/zap"
)

// Classifier 把查询归类到某个专家模式。
type Classifier interface {
	Classify(ctx context.Context, query string, history []types.Turn) (*types.RouteDecision, error)
}

const classifyPrompt = `You are a query router for a document question-answering system.
Classify the user query into exactly one of these modes:

- qa: direct factual questions answerable from a short passage
- research: open questions needing synthesis across multiple sources
- summarise: requests to condense or outline document content
- analyse: requests to compare, contrast, or evaluate

Query: %s
%s
Respond in JSON format:
{
  "mode": "qa|research|summarise|analyse",
  "confidence": 0.0-1.0,
  "reasoning": "brief explanation",
  "top_k": optional integer, only when the query clearly needs more or fewer passages than usual
}`

// PromptClassifier 用 LLM 做分类，解析 JSON 响应。
type PromptClassifier struct {
	provider llm.Provider
	model    string
	logger   *zap.Logger
}

// NewPromptClassifier 创建 LLM 分类器。model 为空时用 provider 默认模型。
func NewPromptClassifier(provider llm.Provider, model string, logger *zap.Logger) *PromptClassifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PromptClassifier{
		provider: provider,
		model:    model,
		logger:   logger.With(zap.String("component", "prompt_classifier")),
	}
}

// Classify 实现 Classifier。
func (c *PromptClassifier) Classify(ctx context.Context, query string, history []types.Turn) (*types.RouteDecision, error) {
	var historyHint string
	if len(history) > 0 {
		last := history[len(history)-1]
		historyHint = fmt.Sprintf("Previous turn (%s): %s\n", last.Role, last.Content)
	}

	resp, err := c.provider.Completion(ctx, &llm.ChatRequest{
		Model: c.model,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: fmt.Sprintf(classifyPrompt, query, historyHint)},
		},
		Temperature: 0,
		MaxTokens:   200,
	})
	if err != nil {
		return nil, types.NewError(types.ErrClassificationFailed, "classifier call failed").WithCause(err)
	}

	decision, err := parseClassification(resp.Text())
	if err != nil {
		return nil, err
	}

	c.logger.Debug("query classified",
		zap.String("mode", string(decision.Mode)),
		zap.Float64("confidence", decision.Confidence))

	return decision, nil
}

// parseClassification 从 LLM 输出中提取 JSON 决定。
// 模型常把 JSON 包在解释文字里，取首个 { 到末个 } 之间的片段解析。
func parseClassification(text string) (*types.RouteDecision, error) {
	text = strings.TrimSpace(text)
	startIdx := strings.Index(text, "{")
	endIdx := strings.LastIndex(text, "}")
	if startIdx < 0 || endIdx <= startIdx {
		return nil, types.NewError(types.ErrClassificationFailed, "no JSON object in classifier output")
	}
	text = text[startIdx : endIdx+1]

	var out struct {
		Mode       string  `json:"mode"`
		Confidence float64 `json:"confidence"`
		Reasoning  string  `json:"reasoning"`
		TopK       int     `json:"top_k"`
	}
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return nil, types.NewError(types.ErrClassificationFailed, "failed to parse classifier output").WithCause(err)
	}

	mode, err := types.ParseAgentMode(out.Mode)
	if err != nil {
		return nil, types.NewError(types.ErrClassificationFailed,
			fmt.Sprintf("classifier returned unknown mode %q", out.Mode))
	}

	if out.TopK < 0 {
		out.TopK = 0
	}

	return &types.RouteDecision{
		Mode:       mode,
		Confidence: out.Confidence,
		Reasoning:  out.Reasoning,
		TopK:       out.TopK,
	}, nil
}
