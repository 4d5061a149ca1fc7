package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
)

// CLI 命令行结构 / CLI is the command-line structure
type CLI struct {
	Config   string `help:"Path to config JSON/JSONC" type:"path"`
	DB       string `help:"SQLite database path (overrides config)" name:"db"`
	Model    string `help:"Model to chat with" short:"m"`
	BaseURL  string `help:"OpenAI-compatible API base URL" name:"base-url"`
	LogLevel string `help:"Log level" default:"warn" enum:"debug,info,warn,error" name:"log-level"`

	// Chat 是默认命令 / Chat is the default command
	Chat     ChatCmd     `cmd:"" default:"withargs" help:"Chat about your todos (default)"`
	TUI      TUICmd      `cmd:"" name:"tui" help:"Full-screen chat"`
	List     ListCmd     `cmd:"" help:"List all todos"`
	Add      AddCmd      `cmd:"" help:"Create a todo"`
	Search   SearchCmd   `cmd:"" help:"Search todos (case-insensitive substring)"`
	Delete   DeleteCmd   `cmd:"" help:"Delete a todo by id"`
	Sessions SessionsCmd `cmd:"" help:"List saved chat sessions"`
	Init     InitCmd     `cmd:"" help:"Write a project config to ./.todoagent/config.json"`
}

func newParser(ctx context.Context, cli *CLI, out io.Writer) (*kong.Kong, error) {
	return kong.New(cli,
		kong.Name("todoagent"),
		kong.Description("Manage todos by chatting with an LLM"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
		kong.BindTo(ctx, (*context.Context)(nil)),
		kong.BindTo(out, (*io.Writer)(nil)),
	)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	var cli CLI
	parser, err := newParser(ctx, &cli, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init cli failed: %v\n", err)
		os.Exit(1)
	}
	kctx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)

	if err := kctx.Run(&cli); err != nil {
		newCLILogger(cli.LogLevel).Error("todoagent failed", "err", err)
		os.Exit(1)
	}
}
