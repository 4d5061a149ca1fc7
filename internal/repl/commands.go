package repl

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"todoagent/internal/render"
)

type slashCommand struct {
	name    string
	usage   string
	summary string
}

var slashCommands = []slashCommand{
	{"help", "/help", "show commands"},
	{"todos", "/todos", "list todos straight from the database"},
	{"tokens", "/tokens", "show context usage"},
	{"model", "/model [name]", "show the model and available models, or switch"},
	{"exit", "/exit", "quit (also /quit, Ctrl+D)"},
}

func parseSlashCommand(input string) (string, []string, bool) {
	if !strings.HasPrefix(input, "/") {
		return "", nil, false
	}
	fields := strings.Fields(strings.TrimPrefix(input, "/"))
	if len(fields) == 0 {
		return "", nil, false
	}
	return strings.ToLower(fields[0]), fields[1:], true
}

func (l *Loop) runSlashCommand(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "help":
		l.printHelp()
	case "todos":
		if l.Todos == nil {
			return fmt.Errorf("todo store unavailable")
		}
		todos, err := l.Todos.ListTodos(ctx)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(l.Out, render.TodoTable(todos, l.Term.Theme))
	case "tokens":
		s := l.Agent.CurrentContextStats()
		approx := "~"
		if s.Precise {
			approx = ""
		}
		_, _ = fmt.Fprintf(l.Out, "context: %s%d / %d tokens (%.1f%%) · %d messages\n",
			approx, s.EstimatedTokens, s.ContextLimit, s.UsagePercent, s.MessageCount)
		if s.Encoding != "" {
			_, _ = fmt.Fprintf(l.Out, "encoding: %s\n", s.Encoding)
		}
		if s.LastUsage.TotalTokens > 0 {
			_, _ = fmt.Fprintf(l.Out, "last call: %d prompt + %d completion tokens\n",
				s.LastUsage.PromptTokens, s.LastUsage.CompletionTokens)
		}
	case "model":
		if len(args) == 0 {
			l.printModels(ctx)
			return nil
		}
		if err := l.Agent.SetModel(args[0]); err != nil {
			return err
		}
		if l.PersistModel != nil {
			if err := l.PersistModel(args[0]); err != nil {
				l.Logger.Warn("model not saved", "model", args[0], "err", err)
			}
		}
		_, _ = fmt.Fprintf(l.Out, "model set to %s\n", l.Agent.CurrentModel())
	case "exit", "quit":
		return errExit
	default:
		return fmt.Errorf("unknown command /%s (try /help)", cmd)
	}
	return nil
}

func (l *Loop) printHelp() {
	_, _ = fmt.Fprintln(l.Out, l.Term.Theme.TitleStyle.Render("commands:"))
	for _, c := range slashCommands {
		_, _ = fmt.Fprintf(l.Out, "  %-14s %s\n", c.usage, c.summary)
	}
	if names := l.Agent.ToolNames(); len(names) > 0 {
		_, _ = fmt.Fprintf(l.Out, "tools: %s\n", strings.Join(names, ", "))
	}
}

// printModels 打印当前模型；后端能列出模型时一并列出
// printModels prints the current model and, when the backend answers, the models it offers
func (l *Loop) printModels(ctx context.Context) {
	_, _ = fmt.Fprintf(l.Out, "model: %s (%s)\n", l.Agent.CurrentModel(), l.Agent.ProviderName())
	models, err := l.Agent.ListModels(ctx)
	if err != nil {
		l.Logger.Warn("list models failed", "err", err)
		return
	}
	if len(models) == 0 {
		return
	}
	ids := make([]string, 0, len(models))
	for _, m := range models {
		ids = append(ids, m.ID)
	}
	sort.Strings(ids)
	_, _ = fmt.Fprintf(l.Out, "available: %s\n", strings.Join(ids, ", "))
}
