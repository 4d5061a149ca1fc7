package main

import (
	"context"
	"fmt"
	"io"

	"todoagent/internal/render"
	"todoagent/internal/repl"
	"todoagent/internal/tui"
)

// ChatCmd 交互式对话（默认命令）
// ChatCmd is the interactive chat loop and the default command
type ChatCmd struct {
	Resume  string `short:"r" help:"Resume a saved session by id"`
	Verbose bool   `short:"v" help:"Show plans and tool calls"`
}

func (c *ChatCmd) Run(ctx context.Context, cli *CLI, out io.Writer) error {
	logger := newCLILogger(cli.LogLevel)
	cfg, store, err := cli.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	term := render.NewTerminal(cfg.UI.Verbose || c.Verbose, cfg.UI.Markdown)
	sess, err := startSession(ctx, cfg, store, term, logger, c.Resume)
	if err != nil {
		return err
	}
	logger.Debug("store opened", "path", store.Path(), "session", sess.id)
	if c.Resume != "" {
		_, _ = fmt.Fprintf(out, "resumed session %s (%d messages)\n", sess.id, len(sess.orch.Messages()))
	}

	input, err := repl.NewLineReader(cfg.Storage.HistoryFile)
	if err != nil {
		logger.Warn("line editor unavailable, falling back to basic input", "err", err)
	}
	defer input.Close()

	loop := &repl.Loop{
		Agent:        sess.orch,
		Todos:        store,
		Input:        input,
		Out:          out,
		Prompt:       cfg.UI.Prompt,
		Term:         term,
		Logger:       logger,
		PersistModel: persistModel,
	}
	return loop.Run(ctx)
}

// TUICmd 全屏界面
// TUICmd runs the full-screen chat
type TUICmd struct {
	Resume string `short:"r" help:"Resume a saved session by id"`
}

func (c *TUICmd) Run(ctx context.Context, cli *CLI) error {
	cfg, store, err := cli.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	logger, closeLog := newFileLogger(cfg.Storage.LogFile, cli.LogLevel)
	defer closeLog()

	// 界面自己渲染事件，终端输出保持安静 / the UI renders events itself, so terminal output stays quiet
	sess, err := startSession(ctx, cfg, store, render.NewTerminal(false, false), logger, c.Resume)
	if err != nil {
		return err
	}
	logger.Info("store opened", "path", store.Path(), "session", sess.id)
	return tui.Run(ctx, sess.orch, tui.Options{
		SessionID: sess.id,
		Todos:     store,
		Theme:     render.DefaultTheme(),
		Markdown:  cfg.UI.Markdown,
		Logger:    logger,
	})
}
