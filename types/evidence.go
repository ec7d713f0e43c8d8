package types

import "time"

// EvidenceItem 是混合检索产出的一条证据。
type EvidenceItem struct {
	ChunkID      string    `json:"chunk_id"`
	DocumentID   string    `json:"document_id"`
	ChunkIndex   int       `json:"chunk_index"`
	Content      string    `json:"content"`
	DenseScore   float64   `json:"dense_score"`
	LexicalScore float64   `json:"lexical_score"`
	FusedScore   float64   `json:"fused_score"`
	UpdatedAt    time.Time `json:"updated_at,omitempty"` // 文档更新时间，用于确定性的平分处理
}

// EvidenceSet 是按融合分数降序排列的有界证据序列。
// 顺序即检索契约：下游不得重排。
type EvidenceSet struct {
	Items []EvidenceItem `json:"items"`
}

// Empty reports whether the set has no evidence. An empty set is a valid
// zero-hit result, distinct from retrieval being unavailable.
func (s *EvidenceSet) Empty() bool {
	return len(s.Items) == 0
}

// Len returns the number of evidence items.
func (s *EvidenceSet) Len() int {
	return len(s.Items)
}

// Contains reports whether a chunk id is part of the set. Specialists use
// this to reject citations that reference chunks outside their evidence.
func (s *EvidenceSet) Contains(chunkID string) bool {
	for i := range s.Items {
		if s.Items[i].ChunkID == chunkID {
			return true
		}
	}
	return false
}

// DocumentIDs returns the distinct document ids in rank order.
func (s *EvidenceSet) DocumentIDs() []string {
	seen := make(map[string]struct{}, len(s.Items))
	out := make([]string, 0, len(s.Items))
	for i := range s.Items {
		id := s.Items[i].DocumentID
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// Citation 是生成文本对一条证据的引用。
type Citation struct {
	ChunkID    string `json:"chunk_id"`
	DocumentID string `json:"document_id"`
	Marker     string `json:"marker"` // 生成文本中的标记，如 "[Source 2]"
}
