package rag

import (
	"strings"
	"unicode"
)

// tokenize 把文本切为小写词项。ASCII 按字母数字连续段切分，
// CJK 逐字成项（无空格分词的语言按字匹配）。
func tokenize(text string) []string {
	var out []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			out = append(out, cur.String())
			cur.Reset()
		}
	}
	for _, r := range strings.ToLower(text) {
		switch {
		case r < 128 && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			cur.WriteRune(r)
		case unicode.Is(unicode.Han, r) || unicode.Is(unicode.Hiragana, r) ||
			unicode.Is(unicode.Katakana, r) || unicode.Is(unicode.Hangul, r):
			flush()
			out = append(out, string(r))
		default:
			flush()
		}
	}
	flush()
	return out
}

// termSet 返回文本的去重词项集合。
func termSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, t := range tokenize(text) {
		set[t] = struct{}{}
	}
	return set
}

// termOverlap 计算查询词项在文本中的覆盖率，[0, 1]。
// 查询为空时返回 0。
func termOverlap(queryTerms map[string]struct{}, text string) float64 {
	if len(queryTerms) == 0 {
		return 0.0
	}
	textTerms := termSet(text)
	matched := 0
	for t := range queryTerms {
		if _, ok := textTerms[t]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(queryTerms))
}
