package agent

import (
	"strings"
	"time"

	"github.com/BaSui01/docflow/types"
)

// Phase 是编排图的执行阶段。
type Phase string

const (
	PhaseStart      Phase = "START"
	PhaseRouting    Phase = "ROUTING"
	PhaseRetrieving Phase = "RETRIEVING"
	PhaseGenerating Phase = "GENERATING"
	PhaseDone       Phase = "DONE"
	PhaseError      Phase = "ERROR" // 吸收态，不再离开
)

// State 是单次请求在图内累积的快照。
// 由 Graph 单协程驱动，不做并发保护。
type State struct {
	ConversationID string
	Query          *types.Query
	Decision       *types.RouteDecision
	Evidence       *types.EvidenceSet
	Citations      []types.Citation

	answer        strings.Builder
	TokensEmitted int

	phase      Phase
	startedAt  time.Time
	phaseTimes map[Phase]time.Duration
	phaseEnter time.Time

	Err error // ERROR 态的原因
}

// NewState 创建初始 START 态的状态。
func NewState(conversationID string, query *types.Query) *State {
	now := time.Now()
	return &State{
		ConversationID: conversationID,
		Query:          query,
		phase:          PhaseStart,
		startedAt:      now,
		phaseEnter:     now,
		phaseTimes:     make(map[Phase]time.Duration),
	}
}

// Phase 返回当前阶段。
func (s *State) Phase() Phase { return s.phase }

// transition 记录上一阶段耗时并进入新阶段。
// ERROR 是吸收态：一旦进入不再转移。
func (s *State) transition(next Phase) {
	if s.phase == PhaseError {
		return
	}
	s.phaseTimes[s.phase] += time.Since(s.phaseEnter)
	s.phase = next
	s.phaseEnter = time.Now()
}

// fail 进入 ERROR 吸收态。
func (s *State) fail(err error) {
	if s.phase == PhaseError {
		return
	}
	s.transition(PhaseError)
	s.Err = err
}

// AppendToken 累积一个已发出的 token。
func (s *State) AppendToken(content string) {
	s.answer.WriteString(content)
	s.TokensEmitted++
}

// Answer 返回目前累积的生成文本。
func (s *State) Answer() string { return s.answer.String() }

// PhaseDuration 返回某阶段累计耗时。
func (s *State) PhaseDuration(p Phase) time.Duration { return s.phaseTimes[p] }

// Elapsed 返回自请求开始的总耗时。
func (s *State) Elapsed() time.Duration { return time.Since(s.startedAt) }
