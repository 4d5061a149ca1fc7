package repl

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"golang.org/x/term"
)

// LineReader 逐行读取用户输入
// LineReader reads user input one line at a time
type LineReader interface {
	ReadLine(prompt string) (string, error)
	Close() error
}

type basicLineReader struct {
	reader *bufio.Reader
	out    io.Writer
}

func NewBasicLineReader(in io.Reader, out io.Writer) LineReader {
	return &basicLineReader{
		reader: bufio.NewReader(in),
		out:    out,
	}
}

func (b *basicLineReader) ReadLine(prompt string) (string, error) {
	if b.out != nil {
		_, _ = fmt.Fprint(b.out, prompt)
	}
	line, err := b.reader.ReadString('\n')
	if err != nil {
		// 最后一行没有换行符时仍返回内容 / return a final unterminated line before EOF
		if err == io.EOF && line != "" {
			return strings.TrimRight(line, "\r\n"), nil
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (b *basicLineReader) Close() error { return nil }

type readlineReader struct {
	instance *readline.Instance
}

func newReadlineReader(historyPath string) (*readlineReader, error) {
	if historyPath != "" {
		if err := os.MkdirAll(filepath.Dir(historyPath), 0o755); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
	}
	instance, err := readline.NewEx(&readline.Config{
		Prompt:            ">> ",
		HistoryFile:       historyPath,
		HistorySearchFold: true,
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
	})
	if err != nil {
		return nil, err
	}
	return &readlineReader{instance: instance}, nil
}

func (r *readlineReader) ReadLine(prompt string) (string, error) {
	r.instance.SetPrompt(prompt)
	return r.instance.Readline()
}

func (r *readlineReader) Close() error {
	if r == nil || r.instance == nil {
		return nil
	}
	return r.instance.Close()
}

// NewLineReader 终端上使用 readline（带历史），否则退回 bufio
// NewLineReader uses readline with history on a terminal and falls back to bufio otherwise
func NewLineReader(historyPath string) (LineReader, error) {
	return newLineReaderFor(os.Stdin, os.Stdout, historyPath)
}

// newLineReaderFor 管道输入也打印提示符，与交互时一致
// newLineReaderFor prints the prompt for piped input too, as an interactive session would
func newLineReaderFor(in *os.File, out io.Writer, historyPath string) (LineReader, error) {
	if !term.IsTerminal(int(in.Fd())) {
		return NewBasicLineReader(in, out), nil
	}
	rl, err := newReadlineReader(historyPath)
	if err != nil {
		return NewBasicLineReader(in, out), err
	}
	return rl, nil
}
