package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"todoagent/internal/orchestrator"
	"todoagent/internal/render"
	"todoagent/internal/storage"
)

// Agent 是 TUI 需要的编排器能力
// Agent is what the TUI needs from the orchestrator
type Agent interface {
	RunInput(ctx context.Context, input string, out io.Writer) (string, error)
	CurrentContextStats() orchestrator.ContextStats
	CurrentModel() string
}

// Hooks 让编排器把进度事件推给界面
// Hooks lets the orchestrator push progress events to the UI
type Hooks interface {
	SetToolEventCallback(fn orchestrator.ToolEventFunc)
	SetPlanCallback(fn orchestrator.PlanFunc)
	SetContextUpdateCallback(fn orchestrator.OnContextUpdate)
}

// TodoLister 供 /todos 直接读取数据库
// TodoLister lets /todos read the store without the model
type TodoLister interface {
	ListTodos(ctx context.Context) ([]storage.Todo, error)
}

// --- 消息类型 / Message types ---

// ToolStartMsg 工具开始执行
// ToolStartMsg signals tool execution start
type ToolStartMsg struct {
	Name    string
	Summary string
}

// ToolDoneMsg 工具执行完成
// ToolDoneMsg signals tool execution end
type ToolDoneMsg struct {
	Name    string
	Summary string
}

// PlanMsg 模型给出的计划
// PlanMsg carries a plan reply from the model
type PlanMsg struct {
	Text string
}

// TurnDoneMsg 一轮对话完成
// TurnDoneMsg signals the end of a turn
type TurnDoneMsg struct {
	Reply string
	Err   error
}

// ContextUpdateMsg 上下文使用更新
// ContextUpdateMsg updates context usage info
type ContextUpdateMsg struct {
	Tokens  int
	Limit   int
	Percent float64
}

// TodosMsg /todos 的查询结果
// TodosMsg carries the result of /todos
type TodosMsg struct {
	Todos []storage.Todo
	Err   error
}

// Options 配置 TUI
type Options struct {
	SessionID string
	Todos     TodoLister
	Theme     render.Theme
	Markdown  bool
	Logger    *slog.Logger
}

// App 是 Bubble Tea 主模型
// App is the main Bubble Tea model
type App struct {
	width  int
	height int

	chatView viewport.Model
	input    textarea.Model
	spinner  spinner.Model

	agent     Agent
	todos     TodoLister
	ctx       context.Context
	cancel    context.CancelFunc
	modelName string
	sessionID string

	tokens     int
	tokenLimit int
	tokenPct   float64

	chatContent *strings.Builder
	busy        bool
	lastError   string
	fatal       error
	markdown    bool

	theme  render.Theme
	keys   KeyMap
	logger *slog.Logger
}

// NewApp 创建 TUI 应用
// NewApp creates the TUI application
func NewApp(ctx context.Context, agent Agent, opts Options) App {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	ta := textarea.New()
	ta.Placeholder = "Ask about your todos… (enter to send)"
	ta.CharLimit = 4096
	ta.ShowLineNumbers = false
	ta.SetHeight(2)
	ta.Focus()

	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	sp.Style = opts.Theme.ToolStyle

	a := App{
		chatView:    viewport.New(80, 20),
		input:       ta,
		spinner:     sp,
		agent:       agent,
		todos:       opts.Todos,
		ctx:         ctx,
		sessionID:   opts.SessionID,
		chatContent: &strings.Builder{},
		markdown:    opts.Markdown,
		theme:       opts.Theme,
		keys:        DefaultKeyMap(),
		logger:      logger,
	}
	if agent != nil {
		a.modelName = agent.CurrentModel()
		stats := agent.CurrentContextStats()
		a.tokens, a.tokenLimit, a.tokenPct = stats.EstimatedTokens, stats.ContextLimit, stats.UsagePercent
	}
	return a
}

func (a App) Init() tea.Cmd {
	return textarea.Blink
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, a.keys.Quit):
			if a.cancel != nil {
				a.cancel()
			}
			return a, tea.Quit

		case key.Matches(msg, a.keys.Cancel):
			if a.busy && a.cancel != nil {
				a.cancel()
				a.appendLine(a.theme.MutedStyle.Render("  interrupting…"))
			}
			return a, nil

		case key.Matches(msg, a.keys.ClearScreen):
			a.chatContent.Reset()
			a.chatView.SetContent("")
			return a, nil

		case key.Matches(msg, a.keys.PageUp), key.Matches(msg, a.keys.PageDown):
			var cmd tea.Cmd
			a.chatView, cmd = a.chatView.Update(msg)
			return a, cmd

		case key.Matches(msg, a.keys.Submit):
			if a.busy {
				return a, nil
			}
			text := strings.TrimSpace(a.input.Value())
			a.input.Reset()
			if text == "" {
				return a, nil
			}
			return a.submit(text)
		}

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.relayout()
		return a, nil

	case spinner.TickMsg:
		if !a.busy {
			return a, nil
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case PlanMsg:
		a.appendLine(a.theme.PlanStyle.Render("  … " + msg.Text))
		return a, nil

	case ToolStartMsg:
		a.appendLine(a.theme.ToolStyle.Render("  🔧 " + msg.Summary))
		return a, nil

	case ToolDoneMsg:
		a.appendLine(a.theme.ObservationStyle.Render("  ✓ " + msg.Summary))
		return a, nil

	case ContextUpdateMsg:
		a.tokens = msg.Tokens
		a.tokenLimit = msg.Limit
		a.tokenPct = msg.Percent
		return a, nil

	case TodosMsg:
		if msg.Err != nil {
			a.lastError = msg.Err.Error()
			a.appendLine(a.theme.ErrorStyle.Render("error: " + msg.Err.Error()))
			return a, nil
		}
		a.appendLine(render.TodoTable(msg.Todos, a.theme))
		return a, nil

	case TurnDoneMsg:
		a.busy = false
		if a.cancel != nil {
			a.cancel()
			a.cancel = nil
		}
		if msg.Err != nil {
			if errors.Is(msg.Err, context.Canceled) {
				a.appendLine(a.theme.MutedStyle.Render("  interrupted"))
				return a, nil
			}
			// 与 REPL 一致：一轮失败即结束会话 / like the REPL, a failed turn ends the session
			a.lastError = msg.Err.Error()
			a.fatal = msg.Err
			a.logger.Error("turn failed", "err", msg.Err)
			return a, tea.Quit
		}
		a.appendLine(a.renderReply(msg.Reply))
		return a, nil
	}

	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	cmds = append(cmds, cmd)
	return a, tea.Batch(cmds...)
}

// submit 处理斜杠命令，或者启动新一轮对话
// submit handles a slash command or starts a new turn
func (a App) submit(text string) (tea.Model, tea.Cmd) {
	if strings.HasPrefix(text, "/") {
		switch strings.ToLower(strings.Fields(text)[0]) {
		case "/exit", "/quit":
			return a, tea.Quit
		case "/clear":
			a.chatContent.Reset()
			a.chatView.SetContent("")
			return a, nil
		case "/todos":
			return a, a.listTodosCmd()
		default:
			a.appendLine(a.theme.ErrorStyle.Render("error: unknown command " + text + " (try /todos, /clear, /exit)"))
			return a, nil
		}
	}

	a.appendLine("\n" + a.theme.UserStyle.Render("👤 "+text))
	a.lastError = ""
	a.busy = true
	ctx, cancel := context.WithCancel(a.ctx)
	a.cancel = cancel
	return a, tea.Batch(a.runTurnCmd(ctx, text), a.spinner.Tick)
}

// runTurnCmd 在后台运行一轮对话
// runTurnCmd runs one turn off the UI goroutine
func (a App) runTurnCmd(ctx context.Context, text string) tea.Cmd {
	agent := a.agent
	return func() tea.Msg {
		if agent == nil {
			return TurnDoneMsg{Err: fmt.Errorf("agent unavailable")}
		}
		reply, err := agent.RunInput(ctx, text, io.Discard)
		return TurnDoneMsg{Reply: reply, Err: err}
	}
}

func (a App) listTodosCmd() tea.Cmd {
	todos, ctx := a.todos, a.ctx
	return func() tea.Msg {
		if todos == nil {
			return TodosMsg{Err: fmt.Errorf("todo store unavailable")}
		}
		list, err := todos.ListTodos(ctx)
		return TodosMsg{Todos: list, Err: err}
	}
}

func (a App) renderReply(reply string) string {
	body := reply
	if a.markdown {
		if rendered := render.RenderMarkdown(reply, a.chatView.Width-4, render.UseColor()); rendered != "" {
			body = strings.TrimSpace(rendered)
		}
	}
	return a.theme.AssistantStyle.Render("🤖: " + body)
}

// Err 返回导致退出的错误
// Err returns the error that ended the session, if any
func (a App) Err() error {
	return a.fatal
}

func (a App) View() string {
	if a.width == 0 || a.height == 0 {
		return "Initializing..."
	}
	header := a.theme.HeaderStyle.Render(" todoagent") + a.theme.MutedStyle.Render("  "+a.sessionID)
	inputBox := a.theme.InputStyle.Width(a.width).Render(a.input.View())
	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		a.chatView.View(),
		inputBox,
		a.theme.MutedStyle.Render(" "+a.keys.HelpLine()),
		a.renderStatusBar(a.width),
	)
}

// --- 内部方法 / Internal methods ---

func (a *App) relayout() {
	// header 1 + input 2 + border 1 + help 1 + status 1
	panelHeight := a.height - 6
	if panelHeight < 3 {
		panelHeight = 3
	}
	a.chatView = viewport.New(a.width, panelHeight)
	a.chatView.SetContent(a.chatContent.String())
	a.chatView.GotoBottom()
	a.input.SetWidth(a.width - 2)
}

func (a *App) appendLine(text string) {
	a.chatContent.WriteString(text + "\n")
	a.chatView.SetContent(a.chatContent.String())
	a.chatView.GotoBottom()
}

func (a App) renderStatusBar(width int) string {
	status := "ready"
	if a.busy {
		status = a.spinner.View() + " thinking"
	}
	if a.lastError != "" {
		status = "error: " + a.lastError
	}
	left := " " + joinDots([]string{a.modelName, status})
	right := fmt.Sprintf("%d / %d tokens (%.1f%%)  ", a.tokens, a.tokenLimit, a.tokenPct)

	gap := width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 0 {
		gap = 0
	}
	return a.theme.StatusBarStyle.Width(width).Render(left + strings.Repeat(" ", gap) + right)
}

func joinDots(parts []string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " · ")
}

// Run 启动 Bubble Tea TUI，并把编排器事件接到界面
// Run starts the Bubble Tea TUI and wires orchestrator events into it
func Run(ctx context.Context, agent Agent, opts Options) error {
	app := NewApp(ctx, agent, opts)
	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx))

	if hooks, ok := agent.(Hooks); ok {
		hooks.SetToolEventCallback(func(name, summary string, done bool) {
			if done {
				p.Send(ToolDoneMsg{Name: name, Summary: summary})
				return
			}
			p.Send(ToolStartMsg{Name: name, Summary: summary})
		})
		hooks.SetPlanCallback(func(text string) {
			p.Send(PlanMsg{Text: text})
		})
		hooks.SetContextUpdateCallback(func(s orchestrator.ContextStats) {
			p.Send(ContextUpdateMsg{Tokens: s.EstimatedTokens, Limit: s.ContextLimit, Percent: s.UsagePercent})
		})
	}

	final, err := p.Run()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	if m, ok := final.(App); ok && m.Err() != nil {
		return m.Err()
	}
	return nil
}
