package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"todoagent/internal/render"
	"todoagent/internal/storage"
	"todoagent/internal/tools"
)

// 这些命令不经过模型，直接调用同一组工具
// These commands skip the model and call the same tools it would

type ListCmd struct {
	JSON bool `help:"Print JSON instead of a table"`
}

type AddCmd struct {
	Text []string `arg:"" help:"Todo text"`
}

type SearchCmd struct {
	Query string `arg:"" optional:"" help:"Case-insensitive substring to look for"`
	JSON  bool   `help:"Print JSON instead of a table"`
}

type DeleteCmd struct {
	ID string `arg:"" help:"Todo id"`
}

func (c *ListCmd) Run(ctx context.Context, cli *CLI, out io.Writer) error {
	res, err := cli.runTool(ctx, "getAllTodos", nil)
	if err != nil {
		return err
	}
	return printTodos(out, res, c.JSON)
}

func (c *AddCmd) Run(ctx context.Context, cli *CLI, out io.Writer) error {
	res, err := cli.runTool(ctx, "createTodo", strings.Join(c.Text, " "))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "created todo %v\n", res)
	return err
}

func (c *SearchCmd) Run(ctx context.Context, cli *CLI, out io.Writer) error {
	res, err := cli.runTool(ctx, "searchTodo", c.Query)
	if err != nil {
		return err
	}
	return printTodos(out, res, c.JSON)
}

func (c *DeleteCmd) Run(ctx context.Context, cli *CLI, out io.Writer) error {
	res, err := cli.runTool(ctx, "deleteTodoById", c.ID)
	if err != nil {
		return err
	}
	result, ok := res.(tools.DeleteResult)
	if !ok {
		return fmt.Errorf("unexpected deleteTodoById result %T", res)
	}
	if !result.Deleted {
		_, err = fmt.Fprintf(out, "no todo with id %d\n", result.ID)
		return err
	}
	_, err = fmt.Fprintf(out, "deleted todo %d\n", result.ID)
	return err
}

// runTool 打开数据库并执行一个待办工具
// runTool opens the database and executes one todo tool
func (c *CLI) runTool(ctx context.Context, name string, input any) (any, error) {
	_, store, err := c.openStore(ctx)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	var raw json.RawMessage
	if input != nil {
		if raw, err = json.Marshal(input); err != nil {
			return nil, err
		}
	}
	return tools.NewRegistry(tools.TodoTools(store)...).Execute(ctx, name, raw)
}

func printTodos(out io.Writer, res any, asJSON bool) error {
	todos, ok := res.([]storage.Todo)
	if !ok {
		return fmt.Errorf("unexpected todo list result %T", res)
	}
	if asJSON {
		_, err := fmt.Fprintln(out, tools.MustJSON(todos))
		return err
	}
	_, err := fmt.Fprintln(out, render.TodoTable(todos, render.DefaultTheme()))
	return err
}

// SessionsCmd 列出保存的对话
// SessionsCmd lists stored transcripts
type SessionsCmd struct{}

func (c *SessionsCmd) Run(ctx context.Context, cli *CLI, out io.Writer) error {
	_, store, err := cli.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	sessions, err := store.ListSessions(ctx)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, render.SessionTable(sessions, render.DefaultTheme()))
	return err
}
