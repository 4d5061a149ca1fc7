package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate 让测试不读取真实的 home / 项目配置
// isolate keeps tests away from the real home and project config
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", filepath.Join(dir, "home"))
	t.Setenv("NO_COLOR", "1")
	t.Setenv("TODOAGENT_CONFIG_PATH", "")
	t.Setenv("TODOAGENT_DB_PATH", "")
	t.Setenv("TODOAGENT_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Chdir(dir)
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var cli CLI
	var out bytes.Buffer
	parser, err := newParser(context.Background(), &cli, &out)
	require.NoError(t, err)
	kctx, err := parser.Parse(args)
	if err != nil {
		return "", err
	}
	err = kctx.Run(&cli)
	return out.String(), err
}

func TestParse_DefaultsToChat(t *testing.T) {
	var cli CLI
	parser, err := newParser(context.Background(), &cli, &bytes.Buffer{})
	require.NoError(t, err)

	kctx, err := parser.Parse([]string{"--model", "gpt-4o-mini", "--resume", "sess_1"})
	require.NoError(t, err)
	assert.Equal(t, "chat", kctx.Command())
	assert.Equal(t, "gpt-4o-mini", cli.Model)
	assert.Equal(t, "sess_1", cli.Chat.Resume)
	assert.Equal(t, "warn", cli.LogLevel)
}

func TestParse_RejectsBadLogLevel(t *testing.T) {
	var cli CLI
	parser, err := newParser(context.Background(), &cli, &bytes.Buffer{})
	require.NoError(t, err)
	_, err = parser.Parse([]string{"--log-level", "loud", "list"})
	assert.Error(t, err)
}

func TestTodoCommands(t *testing.T) {
	dir := isolate(t)
	db := filepath.Join(dir, "todos.db")

	out, err := run(t, "--db", db, "add", "Shopping", "Groceries", "milk")
	require.NoError(t, err)
	assert.Equal(t, "created todo 1\n", out)

	_, err = run(t, "--db", db, "add", "Pay rent")
	require.NoError(t, err)

	out, err = run(t, "--db", db, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Shopping Groceries milk")
	assert.Contains(t, out, "Pay rent")

	out, err = run(t, "--db", db, "search", "GROCERIES", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"todo":"Shopping Groceries milk"`)
	assert.NotContains(t, out, "Pay rent")

	out, err = run(t, "--db", db, "delete", "1")
	require.NoError(t, err)
	assert.Equal(t, "deleted todo 1\n", out)

	out, err = run(t, "--db", db, "delete", "1")
	require.NoError(t, err)
	assert.Equal(t, "no todo with id 1\n", out)

	_, err = run(t, "--db", db, "delete", "abc")
	assert.Error(t, err)

	out, err = run(t, "--db", db, "sessions")
	require.NoError(t, err)
	assert.Contains(t, out, "no sessions")
}

func TestChat_RequiresAPIKey(t *testing.T) {
	dir := isolate(t)
	_, err := run(t, "--db", filepath.Join(dir, "todos.db"), "chat")
	assert.ErrorIs(t, err, errNoAPIKey)
}

func TestInitCommand(t *testing.T) {
	dir := isolate(t)

	out, err := run(t, "init")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "wrote "))

	path := filepath.Join(dir, ".todoagent", "config.json")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"model": "gpt-3.5-turbo-0125"`)

	out, err = run(t, "init")
	require.NoError(t, err)
	assert.Contains(t, out, "config already exists")
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, "DEBUG", parseLogLevel("debug").String())
	assert.Equal(t, "WARN", parseLogLevel("bogus").String())
}

func TestNewFileLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "todoagent.log")
	logger, closeLog := newFileLogger(path, "info")
	logger.Info("hello", "k", "v")
	closeLog()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello"`)
}
