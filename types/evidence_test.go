package types

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestEvidenceSet_Contains(t *testing.T) {
	t.Parallel()

	set := EvidenceSet{Items: []EvidenceItem{
		{ChunkID: "c1", DocumentID: "d1"},
		{ChunkID: "c2", DocumentID: "d1"},
	}}

	if !set.Contains("c1") || !set.Contains("c2") {
		t.Fatal("expected both chunks to be present")
	}
	if set.Contains("c3") {
		t.Fatal("c3 must not be present")
	}
}

func TestEvidenceSet_DocumentIDs(t *testing.T) {
	t.Parallel()

	set := EvidenceSet{Items: []EvidenceItem{
		{ChunkID: "c1", DocumentID: "d2"},
		{ChunkID: "c2", DocumentID: "d1"},
		{ChunkID: "c3", DocumentID: "d2"},
	}}

	ids := set.DocumentIDs()
	if len(ids) != 2 || ids[0] != "d2" || ids[1] != "d1" {
		t.Fatalf("DocumentIDs() = %v, want [d2 d1] in rank order", ids)
	}
}

func TestSourcesEvent_PreviewTruncation(t *testing.T) {
	t.Parallel()

	set := &EvidenceSet{Items: []EvidenceItem{
		{ChunkID: "c1", DocumentID: "d1", Content: "abcdefghij", FusedScore: 0.9},
	}}

	ev := SourcesEvent(set, 4)
	if len(ev.Sources) != 1 {
		t.Fatalf("expected 1 source, got %d", len(ev.Sources))
	}
	if ev.Sources[0].Content != "abcd" {
		t.Fatalf("preview = %q, want abcd", ev.Sources[0].Content)
	}
	if ev.Sources[0].Score != 0.9 {
		t.Fatalf("score = %v", ev.Sources[0].Score)
	}
}

func TestSourcesEvent_PreviewMultibyte(t *testing.T) {
	t.Parallel()

	// 1 个单字节前缀让 300 字节落在汉字中间
	content := "a" + strings.Repeat("合同条款", 40)
	set := &EvidenceSet{Items: []EvidenceItem{
		{ChunkID: "c1", DocumentID: "d1", Content: content, FusedScore: 0.8},
	}}

	ev := SourcesEvent(set, 300)
	preview := ev.Sources[0].Content
	if !utf8.ValidString(preview) {
		t.Fatalf("preview is not valid UTF-8: %q", preview[len(preview)-6:])
	}
	if got := utf8.RuneCountInString(preview); got != 300 {
		t.Fatalf("preview rune count = %d, want 300", got)
	}
	if !strings.HasPrefix(content, preview) {
		t.Fatal("preview must be a prefix of the content")
	}
}

func TestSourcesEvent_PreviewShortContentUntouched(t *testing.T) {
	t.Parallel()

	set := &EvidenceSet{Items: []EvidenceItem{
		{ChunkID: "c1", DocumentID: "d1", Content: "短文本", FusedScore: 0.5},
	}}
	if got := SourcesEvent(set, 300).Sources[0].Content; got != "短文本" {
		t.Fatalf("preview = %q, want untouched content", got)
	}
}

func TestStreamEvent_Terminal(t *testing.T) {
	t.Parallel()

	if !EndEvent(nil, "m", 1).Terminal() {
		t.Fatal("stream_end must be terminal")
	}
	if !ErrorEvent(ErrGenerationFailed, "boom").Terminal() {
		t.Fatal("error must be terminal")
	}
	if TokenEvent("x").Terminal() || StartEvent("id").Terminal() {
		t.Fatal("token/stream_start must not be terminal")
	}
	if ev := EndEvent(nil, "m", 1); ev.Citations == nil {
		t.Fatal("stream_end citations must serialize as empty list, not null")
	}
}
