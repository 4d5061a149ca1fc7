package render

import (
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Theme 定义终端主题色彩和样式
// Theme defines terminal colors and styles
type Theme struct {
	// 基础色 / Base colors
	Primary   lipgloss.Color
	Secondary lipgloss.Color
	Accent    lipgloss.Color
	Danger    lipgloss.Color
	Success   lipgloss.Color
	Muted     lipgloss.Color
	Text      lipgloss.Color
	Border    lipgloss.Color

	// 预构建样式 / Pre-built styles
	TitleStyle       lipgloss.Style
	AssistantStyle   lipgloss.Style
	PlanStyle        lipgloss.Style
	ToolStyle        lipgloss.Style
	ObservationStyle lipgloss.Style
	UserStyle        lipgloss.Style
	StatusBarStyle   lipgloss.Style
	InputStyle       lipgloss.Style
	ErrorStyle       lipgloss.Style
	MutedStyle       lipgloss.Style
	HeaderStyle      lipgloss.Style
	PromptStyle      lipgloss.Style
}

// DarkTheme 暗色主题（默认）
// DarkTheme is the default dark theme
func DarkTheme() Theme {
	t := Theme{
		Primary:   lipgloss.Color("#7C3AED"),
		Secondary: lipgloss.Color("#06B6D4"),
		Accent:    lipgloss.Color("#F59E0B"),
		Danger:    lipgloss.Color("#EF4444"),
		Success:   lipgloss.Color("#10B981"),
		Muted:     lipgloss.Color("#6B7280"),
		Text:      lipgloss.Color("#E5E7EB"),
		Border:    lipgloss.Color("#374151"),
	}

	t.TitleStyle = lipgloss.NewStyle().
		Foreground(t.Primary).
		Bold(true)

	t.AssistantStyle = lipgloss.NewStyle().
		Foreground(t.Text)

	t.PlanStyle = lipgloss.NewStyle().
		Foreground(t.Muted).
		Italic(true)

	t.ToolStyle = lipgloss.NewStyle().
		Foreground(t.Secondary)

	t.ObservationStyle = lipgloss.NewStyle().
		Foreground(t.Muted)

	t.UserStyle = lipgloss.NewStyle().
		Foreground(t.Accent).
		Bold(true)

	t.StatusBarStyle = lipgloss.NewStyle().
		Foreground(t.Muted).
		Background(lipgloss.Color("#111827"))

	t.InputStyle = lipgloss.NewStyle().
		Foreground(t.Text).
		BorderTop(true).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(t.Border)

	t.ErrorStyle = lipgloss.NewStyle().
		Foreground(t.Danger).
		Bold(true)

	t.MutedStyle = lipgloss.NewStyle().
		Foreground(t.Muted)

	t.HeaderStyle = lipgloss.NewStyle().
		Foreground(t.Primary).
		Bold(true)

	t.PromptStyle = lipgloss.NewStyle().
		Foreground(t.Success)

	return t
}

// PlainTheme 无颜色主题（NO_COLOR / 非终端）
// PlainTheme renders every style as plain text
func PlainTheme() Theme {
	plain := lipgloss.NewStyle()
	return Theme{
		TitleStyle:       plain,
		AssistantStyle:   plain,
		PlanStyle:        plain,
		ToolStyle:        plain,
		ObservationStyle: plain,
		UserStyle:        plain,
		StatusBarStyle:   plain,
		InputStyle:       plain,
		ErrorStyle:       plain,
		MutedStyle:       plain,
		HeaderStyle:      plain,
		PromptStyle:      plain,
	}
}

// DefaultTheme 按 NO_COLOR / TERM 选择主题
// DefaultTheme picks DarkTheme unless color is disabled in the environment
func DefaultTheme() Theme {
	if !UseColor() {
		return PlainTheme()
	}
	return DarkTheme()
}

func UseColor() bool {
	if strings.TrimSpace(os.Getenv("NO_COLOR")) != "" {
		return false
	}
	if strings.TrimSpace(os.Getenv("TODOAGENT_NO_COLOR")) != "" {
		return false
	}
	return strings.ToLower(strings.TrimSpace(os.Getenv("TERM"))) != "dumb"
}
