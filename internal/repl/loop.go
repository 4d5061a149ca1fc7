package repl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/chzyer/readline"

	"todoagent/internal/orchestrator"
	"todoagent/internal/provider"
	"todoagent/internal/render"
	"todoagent/internal/storage"
)

// Agent 是 REPL 需要的编排器能力
// Agent is what the REPL needs from the orchestrator
type Agent interface {
	RunInput(ctx context.Context, input string, out io.Writer) (string, error)
	CurrentContextStats() orchestrator.ContextStats
	CurrentModel() string
	SetModel(model string) error
	ListModels(ctx context.Context) ([]provider.ModelInfo, error)
	ProviderName() string
	ToolNames() []string
}

// TodoLister 供 /todos 直接读取数据库
// TodoLister lets /todos read the store without the model
type TodoLister interface {
	ListTodos(ctx context.Context) ([]storage.Todo, error)
}

// Loop 持有 REPL 状态
// Loop holds REPL state
type Loop struct {
	Agent  Agent
	Todos  TodoLister
	Input  LineReader
	Out    io.Writer
	Prompt string
	Term   *render.Terminal
	Logger *slog.Logger
	// PersistModel 在 /model 切换后保存到项目配置，可为空
	// PersistModel saves a /model switch to the project config; optional
	PersistModel func(model string) error
}

var errExit = errors.New("exit")

// Run 读取输入直到 EOF 或 /exit；一轮对话返回错误时结束循环
// Run reads input until EOF or /exit; an error from a turn ends the loop
func (l *Loop) Run(ctx context.Context) error {
	if l.Agent == nil || l.Input == nil {
		return fmt.Errorf("repl is not configured")
	}
	if l.Out == nil {
		l.Out = io.Discard
	}
	if l.Logger == nil {
		l.Logger = slog.Default()
	}
	if l.Term == nil {
		l.Term = &render.Terminal{Theme: render.PlainTheme()}
	}
	prompt := l.Prompt
	if prompt == "" {
		prompt = ">> "
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		line, err := l.Input.ReadLine(prompt)
		if err != nil {
			switch {
			case errors.Is(err, readline.ErrInterrupt):
				// Ctrl+C 在提示符处只清空当前行 / Ctrl+C at the prompt starts a new line
				continue
			case errors.Is(err, io.EOF):
				return nil
			default:
				return fmt.Errorf("read input: %w", err)
			}
		}

		text := strings.TrimSpace(line)
		if text == "" {
			continue
		}
		if cmd, args, ok := parseSlashCommand(text); ok {
			if err := l.runSlashCommand(ctx, cmd, args); err != nil {
				if errors.Is(err, errExit) {
					return nil
				}
				l.Term.Error(l.Out, err)
			}
			continue
		}

		l.Logger.Debug("user input", "chars", len(text))
		if err := l.runTurn(ctx, line); err != nil {
			return err
		}
	}
}

// runTurn 运行一轮对话；Ctrl+C 只取消这一轮，回到提示符
// runTurn runs one turn; Ctrl+C cancels just that turn and returns to the prompt
func (l *Loop) runTurn(ctx context.Context, line string) error {
	turnCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	_, err := l.Agent.RunInput(turnCtx, line, l.Out)
	if err != nil && errors.Is(err, context.Canceled) && ctx.Err() == nil {
		_, _ = fmt.Fprintln(l.Out, l.Term.Theme.MutedStyle.Render("interrupted"))
		return nil
	}
	return err
}
