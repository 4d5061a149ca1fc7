package tokens

import (
	"strings"
	"sync"

	"todoagent/internal/chat"

	tiktoken "github.com/pkoukk/tiktoken-go"
)

// Counter 精确 token 计数器，支持 tiktoken 和启发式回退
// Counter provides token counting with tiktoken and a heuristic fallback
type Counter struct {
	encoder      *tiktoken.Tiktoken
	encodingName string
	fallback     bool
	mu           sync.Mutex
}

var (
	encoderCache   = map[string]*tiktoken.Tiktoken{}
	encoderCacheMu sync.Mutex
)

// NewCounter 创建计数器；BPE 数据不可用时回退到启发式
// NewCounter creates a counter and falls back to the heuristic when BPE data is unavailable
func NewCounter(encodingName string) *Counter {
	c := &Counter{encodingName: encodingName}
	enc, err := loadEncoding(encodingName)
	if err != nil {
		c.fallback = true
		return c
	}
	c.encoder = enc
	return c
}

// NewCounterForModel 根据模型名自动选择编码
// NewCounterForModel picks the encoding from the model name
func NewCounterForModel(model string) *Counter {
	return NewCounter(modelToEncoding(model))
}

func loadEncoding(name string) (*tiktoken.Tiktoken, error) {
	encoderCacheMu.Lock()
	defer encoderCacheMu.Unlock()
	if enc, ok := encoderCache[name]; ok {
		return enc, nil
	}
	enc, err := tiktoken.GetEncoding(name)
	if err != nil {
		return nil, err
	}
	encoderCache[name] = enc
	return enc, nil
}

// Count 计算消息列表的总 token 数
// Count returns the total token count for a message list
func (c *Counter) Count(messages []chat.Message) int {
	total := 0
	for _, msg := range messages {
		// 每条消息约 4 token 的结构开销 / ~4 tokens of framing per message
		total += 4 + c.CountText(msg.Role) + c.CountText(msg.Content)
	}
	if len(messages) > 0 {
		// 回复引导 / reply priming
		total += 3
	}
	return total
}

// CountText 计算单个文本的 token 数
// CountText counts tokens for a single string
func (c *Counter) CountText(text string) int {
	if text == "" {
		return 0
	}
	if c.fallback || c.encoder == nil {
		return heuristicTokenCount(text)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.encoder.Encode(text, nil, nil))
}

// IsPrecise 零值 Counter 使用启发式
// IsPrecise is false for the zero Counter, which uses the heuristic
func (c *Counter) IsPrecise() bool {
	return !c.fallback && c.encoder != nil
}

func (c *Counter) EncodingName() string {
	return c.encodingName
}

// Stats 上下文占用情况
// Stats describes how much of the context window a log uses
type Stats struct {
	Tokens  int
	Limit   int
	Percent float64
	Precise bool
}

// Measure 统计消息占用的上下文比例
// Measure reports token usage of messages against limit
func (c *Counter) Measure(messages []chat.Message, limit int) Stats {
	s := Stats{Tokens: c.Count(messages), Limit: limit, Precise: c.IsPrecise()}
	if limit > 0 {
		s.Percent = float64(s.Tokens) * 100 / float64(limit)
	}
	return s
}

// heuristicTokenCount: CJK ~1.5 token/字, 其他 ~4 chars/token
// heuristicTokenCount estimates CJK at ~1.5 tokens per rune and other text at ~4 chars per token
func heuristicTokenCount(text string) int {
	if text == "" {
		return 0
	}
	cjkCount := 0
	otherCount := 0
	for _, r := range text {
		if isCJK(r) {
			cjkCount++
		} else {
			otherCount++
		}
	}
	estimate := int(float64(cjkCount)*1.5 + float64(otherCount)*0.25)
	if estimate < 1 {
		estimate = 1
	}
	return estimate
}

func isCJK(r rune) bool {
	return (r >= 0x4E00 && r <= 0x9FFF) || // CJK Unified
		(r >= 0x3400 && r <= 0x4DBF) || // CJK Extension A
		(r >= 0x3000 && r <= 0x303F) || // CJK Symbols
		(r >= 0xFF00 && r <= 0xFFEF) || // Fullwidth Forms
		(r >= 0xAC00 && r <= 0xD7AF) // Korean Hangul
}

// modelToEncoding 根据模型名推断编码
// modelToEncoding maps a model name to an encoding name
func modelToEncoding(model string) string {
	m := strings.ToLower(strings.TrimSpace(model))
	switch {
	case strings.HasPrefix(m, "o1"), strings.HasPrefix(m, "o3"), strings.HasPrefix(m, "o4"):
		return "o200k_base"
	case strings.HasPrefix(m, "gpt-4o"), strings.HasPrefix(m, "chatgpt-4o"), strings.HasPrefix(m, "gpt-4.1"), strings.HasPrefix(m, "gpt-5"):
		return "o200k_base"
	default:
		return "cl100k_base"
	}
}

// ContextLimit 返回模型的上下文窗口大小（估计值）
// ContextLimit returns the approximate context window for a model
func ContextLimit(model string) int {
	m := strings.ToLower(strings.TrimSpace(model))
	switch {
	case strings.HasPrefix(m, "gpt-3.5-turbo-instruct"):
		return 4096
	case strings.HasPrefix(m, "gpt-3.5"):
		return 16385
	case strings.HasPrefix(m, "gpt-4.1"):
		return 1047576
	case strings.HasPrefix(m, "gpt-4o"), strings.HasPrefix(m, "gpt-4-turbo"), strings.HasPrefix(m, "o1"), strings.HasPrefix(m, "o3"), strings.HasPrefix(m, "o4"):
		return 128000
	case strings.HasPrefix(m, "gpt-4-32k"):
		return 32768
	case strings.HasPrefix(m, "gpt-4"):
		return 8192
	default:
		return 16385
	}
}
