// Package tui holds the terminal views: the chat view with its session
// sidebar and attachment panel, and the library view.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/gennadis/ragdesk/internal/attach"
	"github.com/gennadis/ragdesk/internal/chat"
	"github.com/gennadis/ragdesk/internal/exchange"
	"github.com/gennadis/ragdesk/internal/render"
	"github.com/gennadis/ragdesk/internal/session"
	"github.com/gennadis/ragdesk/internal/theme"
)

const (
	welcomeTitle = "How can I help you today?"
	welcomeHint  = "I've read your documents. Ask me anything about them!"
	busyNotice   = "Wait for the reply to finish"
)

type focus int

const (
	focusInput focus = iota
	focusHistory
	focusFiles
	focusAttach
)

type (
	replyMsg struct {
		reply exchange.Reply
		err   error
	}
	historyMsg struct {
		sessions []*chat.Session
		err      error
	}
	sessionMsg struct {
		status string
		err    error
	}
	chatUploadDoneMsg struct {
		results []attach.Result
	}
	themeMsg struct {
		name theme.Name
		err  error
	}
	storeChangedMsg struct{}
)

// ChatDeps are the components the chat view drives.
type ChatDeps struct {
	Sessions *session.Manager
	Exchange *exchange.Coordinator
	Attach   *attach.Manager
	Themes   *theme.Preferences
	ViewURL  func(name string) string
	// Changes, when set, signals writes to the session store made
	// elsewhere.
	Changes <-chan string
	Now     func() time.Time
}

type ChatModel struct {
	ctx  context.Context
	deps ChatDeps

	width, height int
	focus         focus

	viewport viewport.Model
	input    textarea.Model
	path     textinput.Model

	history       []*chat.Session
	historyCursor int
	fileCursor    int

	pending string
	uploads indicators
	batch   int
	status  string

	styles    Styles
	formatter render.Formatter
}

func NewChatModel(ctx context.Context, deps ChatDeps) ChatModel {
	if deps.Now == nil {
		deps.Now = time.Now
	}

	input := textarea.New()
	input.Placeholder = "Ask something about your documents..."
	input.ShowLineNumbers = false
	input.CharLimit = 0
	input.SetHeight(3)
	input.KeyMap.InsertNewline = key.NewBinding(key.WithKeys("ctrl+j"))
	input.Focus()

	path := textinput.New()
	path.Prompt = "attach> "
	path.Placeholder = "path/to/a.pdf, path/to/b.txt"

	m := ChatModel{
		ctx:      ctx,
		deps:     deps,
		viewport: viewport.New(80, 20),
		input:    input,
		path:     path,
	}
	m.applyTheme(theme.Default)
	return m
}

func (m ChatModel) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.loadTheme(), m.loadHistory(), m.watch())
}

func (m ChatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = max(msg.Width, 0), max(msg.Height, 0)
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case replyMsg:
		m.pending = ""
		m.status = ""
		switch {
		case msg.err != nil:
			m.status = msg.err.Error()
		case msg.reply.SaveErr != nil:
			m.status = "Chat could not be saved: " + msg.reply.SaveErr.Error()
		}
		m.refresh()
		return m, m.loadHistory()

	case historyMsg:
		if msg.err != nil {
			m.status = msg.err.Error()
			return m, nil
		}
		m.history = msg.sessions
		m.historyCursor = clamp(m.historyCursor, len(m.history))
		return m, nil

	case sessionMsg:
		m.status = msg.status
		if msg.err != nil {
			m.status = msg.err.Error()
		}
		m.fileCursor = 0
		m.refresh()
		return m, m.loadHistory()

	case storeChangedMsg:
		return m, tea.Batch(m.loadHistory(), m.watch())

	case uploadProgressMsg:
		cmd := m.uploads.apply(msg.batch, msg.progress)
		m.refresh()
		return m, tea.Batch(cmd, listen(msg.events))

	case clearUploadMsg:
		m.uploads.clear(msg.key)
		m.refresh()
		return m, nil

	case chatUploadDoneMsg:
		m.status = uploadStatus(msg.results)
		m.refresh()
		return m, m.loadHistory()

	case themeMsg:
		if msg.err != nil {
			m.status = msg.err.Error()
		}
		m.applyTheme(msg.name)
		m.refresh()
		return m, nil
	}

	return m.forward(msg)
}

func (m ChatModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "ctrl+t":
		return m, m.toggleTheme()
	case "ctrl+n":
		if m.busy() {
			m.status = busyNotice
			return m, nil
		}
		m.deps.Sessions.StartNewChat()
		m.status = ""
		m.fileCursor = 0
		m.setFocus(focusInput)
		m.refresh()
		return m, nil
	case "ctrl+o":
		m.setFocus(focusAttach)
		m.refresh()
		return m, textinput.Blink
	case "tab":
		if m.focus != focusAttach {
			m.setFocus((m.focus + 1) % focusAttach)
			m.refresh()
			return m, nil
		}
	case "esc":
		m.path.Reset()
		m.setFocus(focusInput)
		m.refresh()
		return m, nil
	}

	switch m.focus {
	case focusInput:
		if msg.Type == tea.KeyEnter {
			return m.send()
		}
	case focusHistory:
		return m.historyKey(msg)
	case focusFiles:
		return m.filesKey(msg)
	case focusAttach:
		if msg.Type == tea.KeyEnter {
			return m.attach()
		}
	}
	return m.forward(msg)
}

func (m ChatModel) forward(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.focus {
	case focusInput:
		m.input, cmd = m.input.Update(msg)
	case focusAttach:
		m.path, cmd = m.path.Update(msg)
	default:
		m.viewport, cmd = m.viewport.Update(msg)
	}
	return m, cmd
}

func (m ChatModel) busy() bool {
	return m.pending != "" || m.deps.Exchange.Busy()
}

func (m ChatModel) send() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" || m.busy() {
		return m, nil
	}
	m.pending = text
	m.status = ""
	m.input.Reset()
	m.refresh()

	ctx, ex := m.ctx, m.deps.Exchange
	return m, func() tea.Msg {
		reply, err := ex.Send(ctx, text)
		return replyMsg{reply: reply, err: err}
	}
}

func (m ChatModel) attach() (tea.Model, tea.Cmd) {
	paths := splitPaths(m.path.Value())
	m.path.Reset()
	m.setFocus(focusInput)
	if len(paths) == 0 {
		m.refresh()
		return m, nil
	}
	m.batch++

	ctx, mgr, sources := m.ctx, m.deps.Attach, sourcesFor(paths)
	cmd := startBatch(m.batch, func(progress func(attach.Progress)) tea.Msg {
		return chatUploadDoneMsg{results: mgr.UploadBatch(ctx, sources, progress)}
	})
	m.refresh()
	return m, cmd
}

func (m ChatModel) historyKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		m.historyCursor = clamp(m.historyCursor-1, len(m.history))
	case "down", "j":
		m.historyCursor = clamp(m.historyCursor+1, len(m.history))
	case "enter":
		if len(m.history) == 0 {
			return m, nil
		}
		if m.busy() {
			m.status = busyNotice
			return m, nil
		}
		id := m.history[m.historyCursor].ID
		ctx, sessions := m.ctx, m.deps.Sessions
		return m, func() tea.Msg {
			ok, err := sessions.LoadChat(ctx, id)
			if err == nil && !ok {
				return sessionMsg{status: "Chat no longer exists"}
			}
			return sessionMsg{err: err}
		}
	case "d", "delete":
		if len(m.history) == 0 {
			return m, nil
		}
		if m.busy() {
			m.status = busyNotice
			return m, nil
		}
		target := m.history[m.historyCursor]
		ctx, sessions := m.ctx, m.deps.Sessions
		return m, func() tea.Msg {
			_, err := sessions.DeleteChat(ctx, target.ID)
			return sessionMsg{status: fmt.Sprintf("Deleted %q", target.Title), err: err}
		}
	}
	return m, nil
}

func (m ChatModel) filesKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	files := m.deps.Sessions.Active().Files
	switch msg.String() {
	case "up", "k":
		m.fileCursor = clamp(m.fileCursor-1, len(files))
	case "down", "j":
		m.fileCursor = clamp(m.fileCursor+1, len(files))
	case "enter", "v":
		if len(files) > 0 && m.deps.ViewURL != nil {
			m.status = "View: " + m.deps.ViewURL(files[m.fileCursor].Label())
		}
	case "d", "x", "delete":
		if len(files) == 0 {
			return m, nil
		}
		removed, ok, err := m.deps.Attach.Detach(m.ctx, m.fileCursor)
		switch {
		case err != nil:
			m.status = "Chat could not be saved: " + err.Error()
		case ok:
			m.status = "Detached " + removed.Label()
		}
		m.fileCursor = clamp(m.fileCursor, len(files)-1)
		m.refresh()
		return m, m.loadHistory()
	}
	m.refresh()
	return m, nil
}

func (m *ChatModel) setFocus(f focus) {
	m.focus = f
	m.input.Blur()
	m.path.Blur()
	switch f {
	case focusInput:
		m.input.Focus()
	case focusAttach:
		m.path.Focus()
	}
}

func (m *ChatModel) applyTheme(n theme.Name) {
	m.styles = NewStyles(theme.PaletteFor(n))
	m.formatter = render.Terminal(m.styles.Text)
}

func (m ChatModel) loadTheme() tea.Cmd {
	if m.deps.Themes == nil {
		return nil
	}
	ctx, prefs := m.ctx, m.deps.Themes
	return func() tea.Msg {
		n, err := prefs.Current(ctx)
		return themeMsg{name: n, err: err}
	}
}

func (m ChatModel) toggleTheme() tea.Cmd {
	if m.deps.Themes == nil {
		return nil
	}
	ctx, prefs := m.ctx, m.deps.Themes
	return func() tea.Msg {
		n, err := prefs.Toggle(ctx)
		return themeMsg{name: n, err: err}
	}
}

func (m ChatModel) loadHistory() tea.Cmd {
	ctx, sessions := m.ctx, m.deps.Sessions
	return func() tea.Msg {
		list, err := sessions.ListChats(ctx)
		return historyMsg{sessions: list, err: err}
	}
}

func (m ChatModel) watch() tea.Cmd {
	if m.deps.Changes == nil {
		return nil
	}
	changes := m.deps.Changes
	return func() tea.Msg {
		if _, ok := <-changes; !ok {
			return nil
		}
		return storeChangedMsg{}
	}
}

// refresh re-renders the transcript and sizes the viewport to what is left
// after the other panels.
func (m *ChatModel) refresh() {
	w := m.mainWidth()
	m.viewport.Width = w
	m.input.SetWidth(w)
	m.path.Width = w - len(m.path.Prompt) - 1

	fixed := lipgloss.Height(m.headerView()) +
		lipgloss.Height(m.filesView()) +
		lipgloss.Height(m.inputView()) +
		lipgloss.Height(m.statusView())
	if m.uploads.len() > 0 {
		fixed += m.uploads.len()
	}
	m.viewport.Height = max(m.height-fixed, 3)

	m.viewport.SetContent(m.transcript(w))
	m.viewport.GotoBottom()
}

func (m ChatModel) mainWidth() int {
	if m.width == 0 {
		return 80
	}
	return max(m.width-sidebarWidth-2, 20)
}

func (m ChatModel) transcript(width int) string {
	active := m.deps.Sessions.Active()
	msgs := active.Messages
	showPending := m.pending != ""
	if n := len(msgs); showPending && n > 0 && msgs[n-1].Role == chat.ChatRoleUser && msgs[n-1].Content == m.pending {
		showPending = false
	}

	if len(msgs) == 0 && !showPending {
		return lipgloss.JoinVertical(lipgloss.Left,
			"",
			m.styles.Title.Render(welcomeTitle),
			m.styles.Muted.Render(welcomeHint),
		)
	}

	body := lipgloss.NewStyle().Width(width).PaddingLeft(2)
	blocks := make([]string, 0, len(msgs)+2)
	for _, msg := range msgs {
		blocks = append(blocks, m.messageView(msg, body))
	}
	if showPending {
		blocks = append(blocks, m.messageView(chat.ChatMessage{Role: chat.ChatRoleUser, Content: m.pending}, body))
	}
	if m.pending != "" {
		blocks = append(blocks, m.styles.Muted.Render("Thinking..."))
	}
	return strings.Join(blocks, "\n\n")
}

func (m ChatModel) messageView(msg chat.ChatMessage, body lipgloss.Style) string {
	var label string
	switch msg.Role {
	case chat.ChatRoleUser:
		label = m.styles.User.Render("You")
	case chat.ChatRoleModel:
		label = m.styles.Model.Render("Assistant")
	default:
		return body.Render(m.styles.System.Render(msg.Content))
	}
	return label + "\n" + body.Render(m.formatter.Format(msg.Content))
}

func (m ChatModel) headerView() string {
	title := m.deps.Sessions.Active().Title
	if title == "" {
		title = chat.DefaultTitle
	}
	return m.styles.Title.Render(truncate(title, m.mainWidth()))
}

func (m ChatModel) filesView() string {
	files := m.deps.Sessions.Active().Files
	var b strings.Builder
	b.WriteString(m.styles.Muted.Render(fmt.Sprintf("Attached files (%d)", len(files))))
	if len(files) == 0 {
		b.WriteString("\n" + m.styles.Muted.Render("No files attached · ctrl+o to upload"))
		return b.String()
	}
	for i, f := range files {
		line := "• " + truncate(f.Label(), m.mainWidth()-4)
		if m.focus == focusFiles && i == m.fileCursor {
			line = m.styles.Selected.Render(line)
		}
		b.WriteString("\n" + line)
	}
	return b.String()
}

func (m ChatModel) inputView() string {
	if m.focus == focusAttach {
		return m.path.View()
	}
	return m.input.View()
}

func (m ChatModel) statusView() string {
	if m.status != "" {
		return m.styles.Danger.Render(truncate(m.status, m.mainWidth()))
	}
	help := "enter send · ctrl+j newline · tab focus · ctrl+n new · ctrl+o attach · ctrl+t theme · ctrl+c quit"
	return m.styles.Muted.Render(truncate(help, m.mainWidth()))
}

func (m ChatModel) sidebarView() string {
	var b strings.Builder
	b.WriteString(m.styles.Title.Render("History"))
	b.WriteString("\n" + m.styles.Muted.Render("+ New chat (ctrl+n)") + "\n")

	if len(m.history) == 0 {
		b.WriteString("\n" + m.styles.Muted.Render("No chat history yet"))
		b.WriteString("\n" + m.styles.Muted.Render("Start a new conversation!"))
		return m.styles.Sidebar.Render(b.String())
	}

	activeID := m.deps.Sessions.ActiveID()
	now := m.deps.Now()
	for i, s := range m.history {
		title := truncate(s.Title, sidebarWidth-2)
		switch {
		case m.focus == focusHistory && i == m.historyCursor:
			title = m.styles.Selected.Render(title)
		case s.ID == activeID:
			title = m.styles.Active.Render(title)
		}
		b.WriteString("\n" + title)
		b.WriteString("\n" + m.styles.Muted.Render(render.TimeAgo(s.SavedAt(), now)))
	}
	return m.styles.Sidebar.Render(b.String())
}

func (m ChatModel) View() string {
	main := []string{m.headerView(), m.viewport.View()}
	if up := m.uploads.view(m.styles, m.mainWidth()); up != "" {
		main = append(main, up)
	}
	main = append(main, m.filesView(), m.inputView(), m.statusView())

	return lipgloss.JoinHorizontal(lipgloss.Top,
		m.sidebarView(),
		" ",
		lipgloss.JoinVertical(lipgloss.Left, main...),
	)
}

func uploadStatus(results []attach.Result) string {
	var failed, unsaved int
	for _, r := range results {
		switch {
		case r.Err != nil:
			failed++
		case r.SaveErr != nil:
			unsaved++
		}
	}
	switch {
	case failed > 0:
		return fmt.Sprintf("%d of %d uploads failed", failed, len(results))
	case unsaved > 0:
		return "Files attached but the chat could not be saved"
	}
	return ""
}

func clamp(i, n int) int {
	if n <= 0 || i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
