package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Terminal 把协议消息写到终端
// Terminal writes protocol messages to a terminal
type Terminal struct {
	Theme Theme
	// Verbose 打印 plan 和工具调用 / Verbose prints plans and tool calls
	Verbose bool
	// Markdown 用 glamour 渲染回答 / Markdown renders answers with glamour
	Markdown bool
	Width    int
}

func NewTerminal(verbose, markdown bool) *Terminal {
	return &Terminal{Theme: DefaultTheme(), Verbose: verbose, Markdown: markdown, Width: 80}
}

func (t *Terminal) Plan(w io.Writer, text string) {
	if !t.Verbose || strings.TrimSpace(text) == "" {
		return
	}
	_, _ = fmt.Fprintln(w, t.Theme.PlanStyle.Render("… "+text))
}

func (t *Terminal) ToolStart(w io.Writer, function string, input json.RawMessage) {
	if !t.Verbose {
		return
	}
	call := function + "()"
	if len(input) > 0 {
		call = function + "(" + string(input) + ")"
	}
	_, _ = fmt.Fprintln(w, t.Theme.ToolStyle.Render("* "+call))
}

func (t *Terminal) ToolResult(w io.Writer, function string, observation string) {
	if !t.Verbose {
		return
	}
	_, _ = fmt.Fprintln(w, t.Theme.ObservationStyle.Render("  → "+observation))
}

func (t *Terminal) Output(w io.Writer, text string) {
	body := text
	if t.Markdown {
		if rendered := RenderMarkdown(text, t.Width, UseColor()); rendered != "" {
			body = strings.TrimSpace(rendered)
		}
	}
	_, _ = fmt.Fprintln(w, t.Theme.AssistantStyle.Render("🤖: "+body))
}

// Error 打印错误行
// Error prints an error line
func (t *Terminal) Error(w io.Writer, err error) {
	if err == nil {
		return
	}
	_, _ = fmt.Fprintln(w, t.Theme.ErrorStyle.Render("error: "+err.Error()))
}
