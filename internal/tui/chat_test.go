package tui

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gennadis/ragdesk/internal/attach"
	"github.com/gennadis/ragdesk/internal/chat"
	"github.com/gennadis/ragdesk/internal/client"
	"github.com/gennadis/ragdesk/internal/exchange"
	"github.com/gennadis/ragdesk/internal/session"
	"github.com/gennadis/ragdesk/internal/theme"
	"github.com/gennadis/ragdesk/storage"
)

type completerFunc func(ctx context.Context, req *chat.ChatRequest) (string, error)

func (f completerFunc) Chat(ctx context.Context, req *chat.ChatRequest) (string, error) {
	return f(ctx, req)
}

type uploaderFunc func(ctx context.Context, name string, r io.Reader) (*client.UploadResponse, error)

func (f uploaderFunc) Upload(ctx context.Context, name string, r io.Reader) (*client.UploadResponse, error) {
	return f(ctx, name, r)
}

func okUpload(_ context.Context, name string, r io.Reader) (*client.UploadResponse, error) {
	_, _ = io.ReadAll(r)
	return &client.UploadResponse{FileID: "files/" + name, Filename: name}, nil
}

// tickingClock advances a minute on every call so saved sessions sort
// deterministically.
func tickingClock() func() time.Time {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		now = now.Add(time.Minute)
		return now
	}
}

func newTestChat(t *testing.T, completer completerFunc) (ChatModel, *session.Manager) {
	t.Helper()
	kv := storage.NewMemoryKV()
	sessions := session.NewManager(storage.NewSessions(kv), session.WithClock(tickingClock()))
	m := NewChatModel(context.Background(), ChatDeps{
		Sessions: sessions,
		Exchange: exchange.NewCoordinator(completer, sessions, time.Second),
		Attach:   attach.NewManager(uploaderFunc(okUpload), sessions),
		Themes:   theme.NewPreferences(storage.NewThemes(kv)),
		ViewURL:  func(name string) string { return "http://svc/files/view/" + name },
	})
	model, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return model.(ChatModel), sessions
}

func update(t *testing.T, m ChatModel, msg tea.Msg) (ChatModel, tea.Cmd) {
	t.Helper()
	model, cmd := m.Update(msg)
	return model.(ChatModel), cmd
}

var enter = tea.KeyMsg{Type: tea.KeyEnter}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestChatSendShowsReply(t *testing.T) {
	m, sessions := newTestChat(t, func(ctx context.Context, req *chat.ChatRequest) (string, error) {
		return "It is a **report** [Page 3]", nil
	})

	m.input.SetValue("what is this?")
	m, cmd := update(t, m, enter)
	require.NotNil(t, cmd)
	assert.Equal(t, "what is this?", m.pending)
	assert.Empty(t, m.input.Value())
	assert.Contains(t, m.transcript(80), "Thinking...")

	// a second send while the first is pending does nothing
	m.input.SetValue("again")
	_, second := update(t, m, enter)
	assert.Nil(t, second)

	msg := cmd()
	require.IsType(t, replyMsg{}, msg)
	m, _ = update(t, m, msg)

	assert.Empty(t, m.pending)
	out := m.transcript(80)
	assert.Contains(t, out, "what is this?")
	assert.Contains(t, out, "report")
	assert.Contains(t, out, "[Page 3]")
	assert.NotContains(t, out, "**")
	assert.NotContains(t, out, "Thinking...")

	list, err := sessions.ListChats(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "what is this?", list[0].Title)
}

func TestChatFailureShowsApology(t *testing.T) {
	m, _ := newTestChat(t, func(ctx context.Context, req *chat.ChatRequest) (string, error) {
		return "", errors.New("connection refused")
	})

	m.input.SetValue("hello")
	m, cmd := update(t, m, enter)
	m, _ = update(t, m, cmd())

	assert.Contains(t, m.transcript(80), chat.ApologyText)
	assert.Empty(t, m.status)
}

func TestChatBlankInputIsIgnored(t *testing.T) {
	m, _ := newTestChat(t, func(ctx context.Context, req *chat.ChatRequest) (string, error) {
		t.Fatal("no request expected")
		return "", nil
	})

	m.input.SetValue("   ")
	_, cmd := update(t, m, enter)
	assert.Nil(t, cmd)
}

func TestChatEmptyStates(t *testing.T) {
	m, _ := newTestChat(t, nil)

	view := m.View()
	assert.Contains(t, view, "No files attached")
	assert.Contains(t, view, "No chat history yet")
	assert.Contains(t, view, welcomeTitle)
	assert.Contains(t, view, chat.DefaultTitle)
}

func TestChatSessionSwitchBlockedWhileBusy(t *testing.T) {
	m, sessions := newTestChat(t, nil)
	before := sessions.ActiveID()

	m.pending = "in flight"
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlN})

	assert.Equal(t, busyNotice, m.status)
	assert.Equal(t, before, sessions.ActiveID())
}

func TestChatHistoryLoadAndDelete(t *testing.T) {
	m, sessions := newTestChat(t, nil)
	ctx := context.Background()

	require.NoError(t, sessions.AppendMessage(ctx, chat.ChatMessage{Role: chat.ChatRoleUser, Content: "older chat"}))
	older := sessions.ActiveID()
	sessions.StartNewChat()
	require.NoError(t, sessions.AppendMessage(ctx, chat.ChatMessage{Role: chat.ChatRoleUser, Content: "newer chat"}))

	m, _ = update(t, m, m.loadHistory()())
	require.Len(t, m.history, 2)
	assert.Contains(t, m.View(), "older chat")

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, focusHistory, m.focus)
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, 1, m.historyCursor)

	m, cmd := update(t, m, enter)
	require.NotNil(t, cmd)
	m, _ = update(t, m, cmd())
	assert.Equal(t, older, sessions.ActiveID())
	assert.Contains(t, m.transcript(80), "older chat")

	m, cmd = update(t, m, runes("d"))
	require.NotNil(t, cmd)
	m, _ = update(t, m, cmd())
	assert.NotEqual(t, older, sessions.ActiveID())
	assert.True(t, sessions.Active().Empty())

	list, err := sessions.ListChats(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "newer chat", list[0].Title)
}

func TestChatDetachFile(t *testing.T) {
	m, sessions := newTestChat(t, nil)
	ctx := context.Background()
	require.NoError(t, sessions.AttachFile(ctx, chat.File{ID: "files/a", Name: "a.pdf"}))
	require.NoError(t, sessions.AttachFile(ctx, chat.File{ID: "files/b", Name: "b.pdf"}))

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	require.Equal(t, focusFiles, m.focus)

	m, _ = update(t, m, runes("v"))
	assert.Equal(t, "View: http://svc/files/view/a.pdf", m.status)

	m, _ = update(t, m, runes("x"))
	assert.Equal(t, "Detached a.pdf", m.status)
	files := sessions.Active().Files
	require.Len(t, files, 1)
	assert.Equal(t, "files/b", files[0].ID)
	assert.Contains(t, m.View(), "Attached files (1)")
}

func TestChatUploadAttachesFiles(t *testing.T) {
	m, sessions := newTestChat(t, nil)
	dir := t.TempDir()
	a := filepath.Join(dir, "a.txt")
	b := filepath.Join(dir, "b.txt")
	require.NoError(t, os.WriteFile(a, []byte("alpha"), 0o600))
	require.NoError(t, os.WriteFile(b, []byte("beta"), 0o600))

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlO})
	require.Equal(t, focusAttach, m.focus)
	m.path.SetValue(a + ", " + b + ", " + filepath.Join(dir, "missing.txt"))

	m, cmd := update(t, m, enter)
	require.NotNil(t, cmd)
	assert.Equal(t, focusInput, m.focus)

	msg := cmd()
	for done := false; !done; {
		switch v := msg.(type) {
		case uploadProgressMsg:
			m, _ = update(t, m, v)
			msg = listen(v.events)()
		case chatUploadDoneMsg:
			m, _ = update(t, m, v)
			done = true
		default:
			t.Fatalf("unexpected message %T", msg)
		}
	}

	files := sessions.Active().Files
	require.Len(t, files, 2)
	assert.Equal(t, "files/a.txt", files[0].ID)
	assert.Equal(t, "1 of 3 uploads failed", m.status)
	assert.Equal(t, 3, m.uploads.len())
	assert.Contains(t, m.View(), "missing.txt")

	for _, it := range append([]indicator(nil), m.uploads.items...) {
		m, _ = update(t, m, clearUploadMsg{key: it.key})
	}
	assert.Zero(t, m.uploads.len())
}

func TestChatThemeToggle(t *testing.T) {
	m, _ := newTestChat(t, nil)

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyCtrlT})
	require.NotNil(t, cmd)
	msg := cmd()
	assert.Equal(t, themeMsg{name: theme.SoftPink}, msg)
	m, _ = update(t, m, msg)
	assert.Empty(t, m.status)
}

func TestChatStoreChangeReloadsHistory(t *testing.T) {
	changes := make(chan string, 1)
	m, _ := newTestChat(t, nil)
	m.deps.Changes = changes

	changes <- storage.SessionsKey
	msg := m.watch()()
	assert.Equal(t, storeChangedMsg{}, msg)

	_, cmd := update(t, m, msg)
	assert.NotNil(t, cmd)

	close(changes)
	assert.Nil(t, m.watch()())
}

func TestChatResizeDoesNotPanic(t *testing.T) {
	m, _ := newTestChat(t, nil)
	for _, size := range []tea.WindowSizeMsg{{Width: 0, Height: 0}, {Width: -1, Height: -1}, {Width: 10, Height: 5}, {Width: 400, Height: 200}} {
		assert.NotPanics(t, func() {
			m, _ = update(t, m, size)
			_ = m.View()
		})
	}
}
