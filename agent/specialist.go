package agent

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/BaSui01/docflow/llm"
	"github.com/BaSui01/docflow/types"
	"go.uber.org/zap"
)

// EmitFunc 接收编排过程中产生的流式事件。
type EmitFunc func(types.StreamEvent)

// historyWindow 是注入提示的最大历史轮次数。
const historyWindow = 10

// modeSpec 定义一种专家策略的提示与采样参数。
type modeSpec struct {
	systemPrompt string
	temperature  float32
	maxTokens    int
}

var modeSpecs = map[types.AgentMode]modeSpec{
	types.ModeQA: {
		temperature: 0.1,
		systemPrompt: `You are a precise question-answering assistant.
Answer the user's question based ONLY on the provided context.
If the context doesn't contain the answer, say so clearly.
Cite specific sources using [Source N] notation.

Context:
%s`,
	},
	types.ModeResearch: {
		temperature: 0.2,
		maxTokens:   8192,
		systemPrompt: `You are a thorough research analyst.
Synthesise information from multiple sources to provide comprehensive analysis.
Structure your response with clear sections and cite sources using [Source N].
Identify patterns, contradictions, and gaps in the available information.

Context:
%s`,
	},
	types.ModeSummarise: {
		temperature: 0.1,
		maxTokens:   4096,
		systemPrompt: `You are an expert summariser.
Provide a clear, well-structured summary of the provided documents.
Use bullet points for key findings and maintain the original meaning.
Include section headers for different topics.
Cite sources using [Source N] notation.

Context:
%s`,
	},
	types.ModeAnalyse: {
		temperature: 0.1,
		maxTokens:   8192,
		systemPrompt: `You are a data analyst specialising in document analysis.
Compare, contrast, and extract insights from the provided documents.
Use structured formats (tables, lists) when comparing information.
Highlight trends, anomalies, and actionable insights.
Cite sources using [Source N] notation.

Context:
%s`,
	},
}

// Specialist 按模式化的提示流式生成答案，并回收证据引用。
type Specialist struct {
	mode     types.AgentMode
	spec     modeSpec
	provider llm.Provider
	model    string
	logger   *zap.Logger
}

// NewSpecialist 创建指定模式的专家。
func NewSpecialist(mode types.AgentMode, provider llm.Provider, model string, logger *zap.Logger) (*Specialist, error) {
	spec, ok := modeSpecs[mode]
	if !ok {
		return nil, types.NewError(types.ErrInvalidRequest, fmt.Sprintf("no specialist for mode %q", mode))
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Specialist{
		mode:     mode,
		spec:     spec,
		provider: provider,
		model:    model,
		logger:   logger.With(zap.String("component", "specialist"), zap.String("mode", string(mode))),
	}, nil
}

// NewSpecialists 为全部模式创建专家集合。
func NewSpecialists(provider llm.Provider, model string, logger *zap.Logger) map[types.AgentMode]*Specialist {
	out := make(map[types.AgentMode]*Specialist, len(types.AgentModes))
	for _, mode := range types.AgentModes {
		s, _ := NewSpecialist(mode, provider, model, logger)
		out[mode] = s
	}
	return out
}

// Mode 返回专家的模式。
func (s *Specialist) Mode() types.AgentMode { return s.mode }

// Run 流式生成答案：token 经 emit 逐个发出并累积到 state，
// 返回从最终文本回收的引用（只含证据集内的条目）。
// 上游中途失败返回 GENERATION_FAILED；已发出的 token 保持已发出。
func (s *Specialist) Run(ctx context.Context, state *State, emit EmitFunc) ([]types.Citation, error) {
	messages := s.buildMessages(state)

	ch, err := s.provider.Stream(ctx, &llm.ChatRequest{
		Model:       s.model,
		Messages:    messages,
		Temperature: s.spec.temperature,
		MaxTokens:   s.spec.maxTokens,
	})
	if err != nil {
		return nil, types.NewError(types.ErrGenerationFailed, "failed to open generation stream").WithCause(err)
	}

	for chunk := range ch {
		if chunk.Err != nil {
			return nil, types.NewError(types.ErrGenerationFailed, "generation failed mid-stream").WithCause(chunk.Err)
		}
		if chunk.Delta.Content == "" {
			continue
		}
		state.AppendToken(chunk.Delta.Content)
		emit(types.TokenEvent(chunk.Delta.Content))
	}
	if err := ctx.Err(); err != nil {
		return nil, types.NewError(types.ErrRequestCancelled, "generation cancelled").WithCause(err)
	}

	citations := ExtractCitations(state.Answer(), state.Evidence)
	s.logger.Debug("generation completed",
		zap.Int("tokens", state.TokensEmitted),
		zap.Int("citations", len(citations)))
	return citations, nil
}

// buildMessages 组装 system（含证据块）+ 历史窗口 + 当前查询。
func (s *Specialist) buildMessages(state *State) []llm.Message {
	messages := make([]llm.Message, 0, historyWindow+2)
	messages = append(messages, llm.Message{
		Role:    llm.RoleSystem,
		Content: fmt.Sprintf(s.spec.systemPrompt, formatEvidence(state.Evidence)),
	})

	history := state.Query.History
	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}
	for _, turn := range history {
		role := llm.RoleUser
		if turn.Role == types.RoleAssistant {
			role = llm.RoleAssistant
		}
		messages = append(messages, llm.Message{Role: role, Content: turn.Content})
	}

	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: state.Query.Text})
	return messages
}

// formatEvidence 把证据集渲染为编号上下文块。
// 空集渲染为显式的"无文档"声明，专家据此给出证据不足的答案。
func formatEvidence(evidence *types.EvidenceSet) string {
	if evidence == nil || evidence.Empty() {
		return "No documents available."
	}

	parts := make([]string, 0, evidence.Len())
	for i := range evidence.Items {
		it := evidence.Items[i]
		docID := it.DocumentID
		if len(docID) > 8 {
			docID = docID[:8]
		}
		parts = append(parts, fmt.Sprintf("[Source %d] (doc: %s)\n%s", i+1, docID, it.Content))
	}
	return strings.Join(parts, "\n\n---\n\n")
}

var citationPattern = regexp.MustCompile(`\[Source (\d+)\]`)

// ExtractCitations 从生成文本中提取 [Source N] 标记并解析到证据集。
// 超出证据范围的标记被丢弃；每个标记只计一次，按首次出现顺序返回。
func ExtractCitations(answer string, evidence *types.EvidenceSet) []types.Citation {
	citations := []types.Citation{}
	if evidence == nil || evidence.Empty() {
		return citations
	}

	seen := make(map[int]bool)
	for _, m := range citationPattern.FindAllStringSubmatch(answer, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 || n > evidence.Len() {
			continue
		}
		if seen[n] {
			continue
		}
		seen[n] = true

		it := evidence.Items[n-1]
		citations = append(citations, types.Citation{
			ChunkID:    it.ChunkID,
			DocumentID: it.DocumentID,
			Marker:     fmt.Sprintf("[Source %d]", n),
		})
	}
	return citations
}
