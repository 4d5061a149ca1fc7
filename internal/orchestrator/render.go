package orchestrator

import (
	"encoding/json"
	"fmt"
	"io"
)

// PlainRenderer 只打印最终回答，与最早的命令行行为一致
// PlainRenderer prints only the final answer as "🤖: <output>"
type PlainRenderer struct{}

func (PlainRenderer) Plan(io.Writer, string) {}

func (PlainRenderer) ToolStart(io.Writer, string, json.RawMessage) {}

func (PlainRenderer) ToolResult(io.Writer, string, string) {}

func (PlainRenderer) Output(w io.Writer, text string) {
	_, _ = fmt.Fprintf(w, "🤖: %s\n", text)
}
