package types

import "fmt"

// AgentMode 表示查询意图对应的专家策略。
type AgentMode string

const (
	ModeQA        AgentMode = "qa"        // 简短事实问答
	ModeResearch  AgentMode = "research"  // 多来源综合研究
	ModeSummarise AgentMode = "summarise" // 结构化摘要
	ModeAnalyse   AgentMode = "analyse"   // 对比分析
)

// AgentModes 列出全部合法模式，顺序固定。
var AgentModes = []AgentMode{ModeQA, ModeResearch, ModeSummarise, ModeAnalyse}

// ParseAgentMode 校验模式字符串。未知值在入口处拒绝，不进入路由器。
func ParseAgentMode(s string) (AgentMode, error) {
	switch AgentMode(s) {
	case ModeQA, ModeResearch, ModeSummarise, ModeAnalyse:
		return AgentMode(s), nil
	}
	return "", NewError(ErrInvalidRequest, fmt.Sprintf("unknown agent_mode %q", s))
}

// Role 表示对话轮次的角色。
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn 是调用方提供的一条历史对话轮次，只读输入。
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Query 是进入编排图的请求。接收后不可变。
type Query struct {
	Text         string    `json:"text"`
	CollectionID string    `json:"collection_id,omitempty"`
	ModeOverride AgentMode `json:"agent_mode,omitempty"` // 显式模式覆盖，空表示交给分类器
	History      []Turn    `json:"history,omitempty"`    // 有序历史轮次
}

// Validate 检查查询是否可以进入编排图。
func (q *Query) Validate() error {
	if q.Text == "" {
		return NewError(ErrInvalidRequest, "query text is required")
	}
	if q.ModeOverride != "" {
		if _, err := ParseAgentMode(string(q.ModeOverride)); err != nil {
			return err
		}
	}
	return nil
}

// RouteDecision 是路由器对单个查询产生的一次性决定。
type RouteDecision struct {
	Mode       AgentMode `json:"mode"`
	Confidence float64   `json:"confidence"`
	Reasoning  string    `json:"reasoning,omitempty"`
	Overridden bool      `json:"overridden"`       // 显式覆盖命中快路径
	TopK       int       `json:"top_k,omitempty"` // 分类器可选给出的检索条数覆盖，0 表示用默认值
}
