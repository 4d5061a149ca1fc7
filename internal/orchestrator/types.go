package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"

	"todoagent/internal/chat"
	"todoagent/internal/provider"
	"todoagent/internal/tokens"
)

// ErrMaxSteps 单轮内模型步数耗尽仍未给出 output
// ErrMaxSteps means the model did not produce an output within the step budget
var ErrMaxSteps = errors.New("max steps reached without output")

const defaultMaxSteps = 16

// ToolEventFunc 工具执行事件回调（用于 REPL/TUI）
// ToolEventFunc is the tool execution event callback for REPL/TUI frontends.
// done=false 表示工具开始，done=true 表示工具结束。
type ToolEventFunc = func(name, summary string, done bool)

// PlanFunc 模型给出 plan 时回调
// PlanFunc is called when the model replies with a plan
type PlanFunc = func(text string)

// OnContextUpdate 上下文 token 使用更新回调
// OnContextUpdate is called after every model step with the current context usage
type OnContextUpdate = func(stats ContextStats)

// Renderer 把协议消息写到终端
// Renderer writes protocol messages to a terminal
type Renderer interface {
	Plan(w io.Writer, text string)
	ToolStart(w io.Writer, function string, input json.RawMessage)
	ToolResult(w io.Writer, function string, observation string)
	Output(w io.Writer, text string)
}

// TranscriptStore 持久化会话消息
// TranscriptStore persists the conversation log of a session
type TranscriptStore interface {
	AppendMessages(ctx context.Context, sessionID string, startSeq int, messages []chat.Message) error
}

type Options struct {
	MaxSteps     int
	SystemPrompt string

	// ObservationRole 是 observation 消息使用的角色，默认 developer
	// ObservationRole is the role observation messages are sent with; defaults to developer
	ObservationRole string
	Store           TranscriptStore
	SessionID       string
	Renderer        Renderer
	Logger          *slog.Logger

	// Counter 和 ContextLimit 为空时跟随当前模型；NewCounter 默认 tokens.NewCounterForModel
	// Counter and ContextLimit follow the current model when unset; NewCounter defaults to tokens.NewCounterForModel
	Counter      *tokens.Counter
	NewCounter   func(model string) *tokens.Counter
	ContextLimit int
}

type ContextStats struct {
	EstimatedTokens int
	ContextLimit    int
	UsagePercent    float64
	MessageCount    int
	Precise         bool
	Encoding        string
	LastUsage       provider.Usage
}
