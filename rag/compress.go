package rag

import (
	"strings"

	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"
)

// Tokenizer 计算文本的 token 数，用于压缩预算。
type Tokenizer interface {
	CountTokens(text string) int
}

// TiktokenCounter 基于 tiktoken 编码计数。
type TiktokenCounter struct {
	enc    *tiktoken.Tiktoken
	logger *zap.Logger
}

// NewTiktokenCounter 创建 tiktoken 计数器。
// model 指定编码模型（如 "gpt-4o"）；编码数据缺失时返回错误。
func NewTiktokenCounter(model string, logger *zap.Logger) (*TiktokenCounter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		return nil, err
	}
	return &TiktokenCounter{enc: enc, logger: logger}, nil
}

// CountTokens 返回文本的 token 数。
func (c *TiktokenCounter) CountTokens(text string) int {
	return len(c.enc.Encode(text, nil, nil))
}

// EstimateCounter 字符估算回退（CJK 按字计，其余按 4 字符 1 token）。
// 在 tiktoken 编码数据不可用（如离线环境）时使用。
type EstimateCounter struct{}

func (EstimateCounter) CountTokens(text string) int {
	ascii, other := 0, 0
	for _, r := range text {
		if r < 128 {
			ascii++
		} else {
			other++
		}
	}
	n := ascii/4 + other
	if n == 0 && len(text) > 0 {
		n = 1
	}
	return n
}

// CompressorConfig 配置句子窗口压缩。
type CompressorConfig struct {
	// TokenBudget 是单条证据压缩后的 token 上限。0 表示不压缩。
	TokenBudget int `json:"token_budget" yaml:"token_budget"`

	// MinSentences 是无论预算如何都至少保留的句子数。
	MinSentences int `json:"min_sentences" yaml:"min_sentences"`
}

// Compressor 把证据内容压缩到 token 预算内。
// 策略：按句切分，优先保留与查询词面重叠度高的句子窗口，
// 输出保持原文句序。不调用 LLM。
type Compressor struct {
	cfg     CompressorConfig
	counter Tokenizer
	logger  *zap.Logger
}

// NewCompressor 创建压缩器。counter 为 nil 时使用字符估算。
func NewCompressor(cfg CompressorConfig, counter Tokenizer, logger *zap.Logger) *Compressor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if counter == nil {
		counter = EstimateCounter{}
	}
	if cfg.MinSentences <= 0 {
		cfg.MinSentences = 1
	}
	return &Compressor{
		cfg:     cfg,
		counter: counter,
		logger:  logger.With(zap.String("component", "compressor")),
	}
}

// Compress 返回预算内的内容。已在预算内或未配置预算时原样返回。
func (c *Compressor) Compress(query, content string) string {
	if c.cfg.TokenBudget <= 0 {
		return content
	}
	if c.counter.CountTokens(content) <= c.cfg.TokenBudget {
		return content
	}

	sentences := splitSentences(content)
	if len(sentences) <= c.cfg.MinSentences {
		return content
	}

	// 对每句打词面重叠分
	queryTerms := termSet(query)
	type scored struct {
		idx   int
		score float64
	}
	ranked := make([]scored, len(sentences))
	for i, s := range sentences {
		ranked[i] = scored{idx: i, score: termOverlap(queryTerms, s)}
	}
	// 稳定排序：分数相同保持原文顺序
	for i := 1; i < len(ranked); i++ {
		for j := i; j > 0 && ranked[j].score > ranked[j-1].score; j-- {
			ranked[j], ranked[j-1] = ranked[j-1], ranked[j]
		}
	}

	// 贪心选句直到触达预算，至少保留 MinSentences 句
	budget := c.cfg.TokenBudget
	keep := make(map[int]bool)
	used := 0
	for _, r := range ranked {
		cost := c.counter.CountTokens(sentences[r.idx])
		if len(keep) >= c.cfg.MinSentences && used+cost > budget {
			continue
		}
		keep[r.idx] = true
		used += cost
		if used >= budget {
			break
		}
	}

	// 按原文顺序重组
	var b strings.Builder
	for i, s := range sentences {
		if !keep[i] {
			continue
		}
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		b.WriteString(s)
	}

	out := b.String()
	if out == "" {
		return content
	}
	return out
}

// splitSentences 按终止标点粗切句子，保留标点。
func splitSentences(text string) []string {
	var out []string
	var cur strings.Builder
	for _, r := range text {
		cur.WriteRune(r)
		switch r {
		case '.', '!', '?', '。', '！', '？', '\n':
			s := strings.TrimSpace(cur.String())
			if s != "" {
				out = append(out, s)
			}
			cur.Reset()
		}
	}
	if s := strings.TrimSpace(cur.String()); s != "" {
		out = append(out, s)
	}
	return out
}
