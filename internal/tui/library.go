package tui

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/gennadis/ragdesk/internal/attach"
	"github.com/gennadis/ragdesk/internal/client"
	"github.com/gennadis/ragdesk/internal/library"
	"github.com/gennadis/ragdesk/internal/theme"
)

const (
	libraryFailed = "Failed to load files. Please check if the backend is running."
	libraryEmpty  = "No files uploaded yet"
)

type (
	libraryLoadedMsg struct {
		err error
	}
	libraryDeletedMsg struct {
		name string
		err  error
	}
	libraryUploadDoneMsg struct {
		summary library.UploadSummary
	}
)

type LibraryModel struct {
	ctx    context.Context
	lib    *library.Controller
	themes *theme.Preferences

	width, height int

	search    textinput.Model
	path      textinput.Model
	attaching bool

	files   []client.RemoteFile
	cursor  int
	confirm string
	loading bool

	uploads indicators
	batch   int
	status  string
	styles  Styles
}

func NewLibraryModel(ctx context.Context, lib *library.Controller, themes *theme.Preferences) LibraryModel {
	search := textinput.New()
	search.Prompt = "search> "
	search.Placeholder = "filter by name"
	search.Focus()

	path := textinput.New()
	path.Prompt = "upload> "
	path.Placeholder = "path/to/a.pdf, path/to/b.txt"

	return LibraryModel{
		ctx:     ctx,
		lib:     lib,
		themes:  themes,
		search:  search,
		path:    path,
		loading: true,
		styles:  NewStyles(theme.PaletteFor(theme.Default)),
	}
}

func (m LibraryModel) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink, m.load()}
	if m.themes != nil {
		ctx, prefs := m.ctx, m.themes
		cmds = append(cmds, func() tea.Msg {
			n, err := prefs.Current(ctx)
			return themeMsg{name: n, err: err}
		})
	}
	return tea.Batch(cmds...)
}

func (m LibraryModel) load() tea.Cmd {
	ctx, lib := m.ctx, m.lib
	return func() tea.Msg {
		return libraryLoadedMsg{err: lib.Load(ctx)}
	}
}

func (m LibraryModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = max(msg.Width, 0), max(msg.Height, 0)
		m.search.Width = max(m.width-len(m.search.Prompt)-1, 10)
		m.path.Width = m.search.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case libraryLoadedMsg:
		m.loading = false
		m.filter()
		return m, nil

	case libraryDeletedMsg:
		if msg.err != nil {
			m.status = msg.err.Error()
		} else {
			m.status = "Deleted " + msg.name
		}
		m.filter()
		return m, nil

	case uploadProgressMsg:
		cmd := m.uploads.apply(msg.batch, msg.progress)
		return m, tea.Batch(cmd, listen(msg.events))

	case clearUploadMsg:
		m.uploads.clear(msg.key)
		return m, nil

	case libraryUploadDoneMsg:
		s := msg.summary
		m.status = fmt.Sprintf("Uploaded %d, failed %d", s.Uploaded, s.Failed)
		if s.ReloadErr != nil {
			m.status += " · " + s.ReloadErr.Error()
		}
		m.filter()
		return m, nil

	case themeMsg:
		if msg.err != nil {
			m.status = msg.err.Error()
		}
		m.styles = NewStyles(theme.PaletteFor(msg.name))
		return m, nil
	}

	var cmd tea.Cmd
	if m.attaching {
		m.path, cmd = m.path.Update(msg)
	} else {
		m.search, cmd = m.search.Update(msg)
	}
	return m, cmd
}

func (m LibraryModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.confirm != "" {
		name := m.confirm
		m.confirm = ""
		switch msg.String() {
		case "y", "Y", "enter":
			ctx, lib := m.ctx, m.lib
			return m, func() tea.Msg {
				return libraryDeletedMsg{name: name, err: lib.Delete(ctx, name)}
			}
		}
		m.status = ""
		return m, nil
	}

	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc":
		if m.attaching {
			m.attaching = false
			m.path.Reset()
			m.path.Blur()
			m.search.Focus()
			return m, nil
		}
		return m, tea.Quit
	case "ctrl+t":
		if m.themes == nil {
			return m, nil
		}
		ctx, prefs := m.ctx, m.themes
		return m, func() tea.Msg {
			n, err := prefs.Toggle(ctx)
			return themeMsg{name: n, err: err}
		}
	case "ctrl+r":
		m.loading = true
		return m, m.load()
	case "ctrl+o":
		m.attaching = true
		m.search.Blur()
		m.path.Focus()
		return m, textinput.Blink
	case "up":
		m.cursor = clamp(m.cursor-1, len(m.files))
		return m, nil
	case "down":
		m.cursor = clamp(m.cursor+1, len(m.files))
		return m, nil
	case "ctrl+d", "delete":
		if len(m.files) > 0 && !m.attaching {
			m.confirm = m.files[m.cursor].Name
			m.status = fmt.Sprintf("Delete %q from the library? (y/n)", m.files[m.cursor].Label())
		}
		return m, nil
	case "enter":
		if m.attaching {
			return m.upload()
		}
		if len(m.files) > 0 {
			m.status = "View: " + m.lib.ViewURL(m.files[m.cursor].Name)
		}
		return m, nil
	}

	var cmd tea.Cmd
	if m.attaching {
		m.path, cmd = m.path.Update(msg)
		return m, cmd
	}
	m.search, cmd = m.search.Update(msg)
	m.filter()
	return m, cmd
}

func (m LibraryModel) upload() (tea.Model, tea.Cmd) {
	paths := splitPaths(m.path.Value())
	m.attaching = false
	m.path.Reset()
	m.path.Blur()
	m.search.Focus()
	if len(paths) == 0 {
		return m, nil
	}
	m.batch++

	ctx, lib, sources := m.ctx, m.lib, sourcesFor(paths)
	return m, startBatch(m.batch, func(progress func(attach.Progress)) tea.Msg {
		return libraryUploadDoneMsg{summary: lib.Upload(ctx, sources, progress)}
	})
}

func (m *LibraryModel) filter() {
	m.files = m.lib.Search(m.search.Value())
	m.cursor = clamp(m.cursor, len(m.files))
}

func (m LibraryModel) listView() string {
	switch {
	case m.loading:
		return m.styles.Muted.Render("Loading files...")
	case m.lib.State() == library.StateFailed:
		return m.styles.Danger.Render(libraryFailed)
	case len(m.lib.All()) == 0:
		return m.styles.Muted.Render(libraryEmpty)
	case len(m.files) == 0:
		return m.styles.Muted.Render(fmt.Sprintf("No files match %q", m.search.Value()))
	}

	width := m.width
	if width == 0 {
		width = 80
	}
	rows := make([]string, 0, len(m.files))
	for i, f := range m.files {
		row := fmt.Sprintf("%-6s %s", fileType(f.Label()), truncate(f.Label(), width-8))
		if i == m.cursor {
			row = m.styles.Selected.Render(row)
		}
		rows = append(rows, row)
	}
	return strings.Join(rows, "\n")
}

func (m LibraryModel) View() string {
	header := m.styles.Title.Render("Library")
	if m.lib.State() == library.StateLoaded {
		header += m.styles.Muted.Render(fmt.Sprintf("  %d documents", len(m.lib.All())))
	}

	input := m.search.View()
	if m.attaching {
		input = m.path.View()
	}

	parts := []string{header, input, "", m.listView()}
	if up := m.uploads.view(m.styles, max(m.width, 40)); up != "" {
		parts = append(parts, "", up)
	}
	status := m.styles.Muted.Render("↑/↓ select · enter view · ctrl+d delete · ctrl+o upload · ctrl+r reload · esc quit")
	if m.status != "" {
		status = m.styles.Danger.Render(m.status)
	}
	parts = append(parts, "", status)
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

// fileType is the upper-cased extension shown as a badge, or DOC.
func fileType(name string) string {
	ext := strings.TrimPrefix(filepath.Ext(name), ".")
	if ext == "" {
		return "DOC"
	}
	return strings.ToUpper(truncate(ext, 5))
}
