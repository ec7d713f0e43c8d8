package types

// EventType 标识流式事件的变体。
type EventType string

const (
	EventStreamStart EventType = "stream_start"
	EventToken       EventType = "token"
	EventSources     EventType = "sources"
	EventError       EventType = "error"
	EventStreamEnd   EventType = "stream_end"
)

// SourceRef 是 sources 事件中对一条证据的引用摘要。
// Content 截断为预览长度，完整文本不上行。
type SourceRef struct {
	ChunkID    string  `json:"chunk_id"`
	DocumentID string  `json:"document_id"`
	ChunkIndex int     `json:"chunk_index"`
	Content    string  `json:"content"`
	Score      float64 `json:"score"`
}

// StreamEvent 是编排图对外发出的带标签事件。
// 每个请求的事件序列满足：stream_start → (token | sources)* → stream_end | error，
// 其中 sources 恰好出现一次，终端事件恰好出现一次。
type StreamEvent struct {
	Type EventType `json:"type"`

	// stream_start
	ConversationID string `json:"conversation_id,omitempty"`

	// token
	Content string `json:"content,omitempty"`

	// sources
	Sources []SourceRef `json:"sources,omitempty"`

	// error
	Code    ErrorCode `json:"code,omitempty"`
	Message string    `json:"message,omitempty"`

	// stream_end
	Citations []Citation `json:"citations,omitempty"`
	Model     string     `json:"model,omitempty"`
	LatencyMS int64      `json:"latency_ms,omitempty"`
}

// StartEvent builds a stream_start event.
func StartEvent(conversationID string) StreamEvent {
	return StreamEvent{Type: EventStreamStart, ConversationID: conversationID}
}

// TokenEvent builds a token event.
func TokenEvent(content string) StreamEvent {
	return StreamEvent{Type: EventToken, Content: content}
}

// SourcesEvent builds a sources event from an evidence set.
// previewLen bounds the content preview in runes; 0 means no preview truncation.
func SourcesEvent(evidence *EvidenceSet, previewLen int) StreamEvent {
	refs := make([]SourceRef, 0, evidence.Len())
	for i := range evidence.Items {
		it := evidence.Items[i]
		content := truncateRunes(it.Content, previewLen)
		refs = append(refs, SourceRef{
			ChunkID:    it.ChunkID,
			DocumentID: it.DocumentID,
			ChunkIndex: it.ChunkIndex,
			Content:    content,
			Score:      it.FusedScore,
		})
	}
	return StreamEvent{Type: EventSources, Sources: refs}
}

// truncateRunes 在 rune 边界截断，预览里不能出现被劈开的多字节字符。
func truncateRunes(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}

// ErrorEvent builds a terminal error event.
func ErrorEvent(code ErrorCode, message string) StreamEvent {
	return StreamEvent{Type: EventError, Code: code, Message: message}
}

// EndEvent builds a terminal stream_end event.
func EndEvent(citations []Citation, model string, latencyMS int64) StreamEvent {
	if citations == nil {
		citations = []Citation{}
	}
	return StreamEvent{Type: EventStreamEnd, Citations: citations, Model: model, LatencyMS: latencyMS}
}

// Terminal reports whether the event ends the stream.
func (e StreamEvent) Terminal() bool {
	return e.Type == EventStreamEnd || e.Type == EventError
}
