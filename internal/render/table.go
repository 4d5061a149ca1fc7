package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"todoagent/internal/storage"
)

const maxTodoColumn = 60

// TodoTable 渲染待办表格；列宽按终端显示宽度计算，CJK 不会错位
// TodoTable renders todos as an aligned table, measuring display width so wide runes line up
func TodoTable(todos []storage.Todo, theme Theme) string {
	if len(todos) == 0 {
		return theme.MutedStyle.Render("no todos")
	}

	headers := []string{"ID", "TODO", "CREATED"}
	rows := make([][]string, 0, len(todos))
	for _, td := range todos {
		rows = append(rows, []string{
			fmt.Sprintf("%d", td.ID),
			runewidth.Truncate(strings.Join(strings.Fields(td.Text), " "), maxTodoColumn, "…"),
			formatTimestamp(td.CreatedAt),
		})
	}
	return renderTable(headers, rows, theme)
}

// SessionTable 渲染已保存的会话列表
// SessionTable renders stored chat sessions, newest first
func SessionTable(sessions []storage.Session, theme Theme) string {
	if len(sessions) == 0 {
		return theme.MutedStyle.Render("no sessions")
	}
	headers := []string{"ID", "UPDATED", "MODEL", "TITLE"}
	rows := make([][]string, 0, len(sessions))
	for _, s := range sessions {
		title := s.Title
		if title == "" {
			title = "(empty)"
		}
		rows = append(rows, []string{
			s.ID,
			formatTimestamp(s.UpdatedAt),
			s.Model,
			runewidth.Truncate(title, maxTodoColumn, "…"),
		})
	}
	return renderTable(headers, rows, theme)
}

func renderTable(headers []string, rows [][]string, theme Theme) string {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if w := runewidth.StringWidth(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}

	var b strings.Builder
	b.WriteString(theme.HeaderStyle.Render(joinRow(headers, widths)))
	for _, row := range rows {
		b.WriteByte('\n')
		b.WriteString(joinRow(row, widths))
	}
	return b.String()
}

func joinRow(cells []string, widths []int) string {
	padded := make([]string, len(cells))
	for i, cell := range cells {
		if i == len(cells)-1 {
			padded[i] = cell
			continue
		}
		padded[i] = runewidth.FillRight(cell, widths[i])
	}
	return strings.Join(padded, "  ")
}

func formatTimestamp(ts string) string {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return ts
	}
	return t.Local().Format("2006-01-02 15:04")
}
