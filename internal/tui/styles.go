package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/gennadis/ragdesk/internal/render"
	"github.com/gennadis/ragdesk/internal/theme"
)

const sidebarWidth = 32

// Styles holds every lipgloss style the views draw with, derived from one
// theme palette.
type Styles struct {
	Title    lipgloss.Style
	Muted    lipgloss.Style
	User     lipgloss.Style
	Model    lipgloss.Style
	System   lipgloss.Style
	Danger   lipgloss.Style
	Success  lipgloss.Style
	Selected lipgloss.Style
	Active   lipgloss.Style
	Sidebar  lipgloss.Style
	Panel    lipgloss.Style
	Badge    lipgloss.Style
	Text     render.TerminalStyles
}

func NewStyles(p theme.Palette) Styles {
	return Styles{
		Title:    lipgloss.NewStyle().Bold(true).Foreground(p.Accent),
		Muted:    lipgloss.NewStyle().Foreground(p.Muted),
		User:     lipgloss.NewStyle().Bold(true).Foreground(p.User),
		Model:    lipgloss.NewStyle().Bold(true).Foreground(p.Model),
		System:   lipgloss.NewStyle().Italic(true).Foreground(p.System),
		Danger:   lipgloss.NewStyle().Foreground(p.Danger),
		Success:  lipgloss.NewStyle().Foreground(p.Success),
		Selected: lipgloss.NewStyle().Bold(true).Background(p.Highlight),
		Active:   lipgloss.NewStyle().Foreground(p.Accent),
		Sidebar: lipgloss.NewStyle().
			Width(sidebarWidth).
			Border(lipgloss.RoundedBorder(), false, true, false, false).
			BorderForeground(p.Border).
			PaddingRight(1),
		Panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(p.Border).
			Padding(0, 1),
		Badge: lipgloss.NewStyle().Bold(true).Foreground(p.Accent).Padding(0, 1),
		Text: render.TerminalStyles{
			Bold:     lipgloss.NewStyle().Bold(true),
			Citation: lipgloss.NewStyle().Underline(true).Foreground(p.Accent),
			Code:     lipgloss.NewStyle().Background(p.CodeBg).Padding(0, 1),
		},
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 3 || len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
