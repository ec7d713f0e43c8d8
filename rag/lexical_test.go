package rag

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"english", "What is DocFlow?", []string{"what", "is", "docflow"}},
		{"punctuation", "a,b;c.d", []string{"a", "b", "c", "d"}},
		{"digits", "版本 v2.1", []string{"版", "本", "v2", "1"}},
		{"cjk per rune", "混合检索", []string{"混", "合", "检", "索"}},
		{"empty", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tokenize(tt.in))
		})
	}
}

func TestTermOverlap(t *testing.T) {
	query := termSet("alpha beta gamma")

	assert.InDelta(t, 1.0, termOverlap(query, "alpha beta gamma delta"), 1e-9)
	assert.InDelta(t, 2.0/3.0, termOverlap(query, "alpha beta only"), 1e-9)
	assert.InDelta(t, 0.0, termOverlap(query, "nothing matches here"), 1e-9)
	assert.InDelta(t, 0.0, termOverlap(termSet(""), "any text"), 1e-9)
}

func TestTermOverlapCaseInsensitive(t *testing.T) {
	query := termSet("Alpha BETA")
	assert.InDelta(t, 1.0, termOverlap(query, "alpha beta"), 1e-9)
}
