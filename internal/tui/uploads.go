package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/gennadis/ragdesk/internal/attach"
)

type uploadProgressMsg struct {
	batch    int
	progress attach.Progress
	events   <-chan tea.Msg
}

type clearUploadMsg struct {
	key string
}

// startBatch runs work in the background and relays each progress event
// as a message. The message work returns is delivered last.
func startBatch(batch int, work func(progress func(attach.Progress)) tea.Msg) tea.Cmd {
	return func() tea.Msg {
		events := make(chan tea.Msg, 8)
		go func() {
			defer close(events)
			done := work(func(p attach.Progress) {
				events <- uploadProgressMsg{batch: batch, progress: p, events: events}
			})
			events <- done
		}()
		return <-events
	}
}

func listen(events <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-events
		if !ok {
			return nil
		}
		return msg
	}
}

type indicator struct {
	key  string
	prog attach.Progress
}

// indicators is the transient per-file upload list. Finished entries are
// removed after their linger time.
type indicators struct {
	items []indicator
}

func (in *indicators) apply(batch int, p attach.Progress) tea.Cmd {
	key := fmt.Sprintf("%d/%d", batch, p.Index)
	found := false
	for i := range in.items {
		if in.items[i].key == key {
			if p.Pages == 0 {
				p.Pages = in.items[i].prog.Pages
			}
			in.items[i].prog = p
			found = true
			break
		}
	}
	if !found {
		in.items = append(in.items, indicator{key: key, prog: p})
	}

	linger := p.Linger()
	if linger == 0 {
		return nil
	}
	return tea.Tick(linger, func(time.Time) tea.Msg {
		return clearUploadMsg{key: key}
	})
}

func (in *indicators) clear(key string) {
	kept := in.items[:0]
	for _, it := range in.items {
		if it.key != key {
			kept = append(kept, it)
		}
	}
	in.items = kept
}

func (in indicators) len() int {
	return len(in.items)
}

func (in indicators) view(st Styles, width int) string {
	if len(in.items) == 0 {
		return ""
	}
	lines := make([]string, 0, len(in.items))
	for _, it := range in.items {
		p := it.prog
		name := truncate(p.Name, width-16)
		switch p.Status {
		case attach.StatusUploading:
			if p.Pages > 0 {
				lines = append(lines, st.Muted.Render(fmt.Sprintf("⟳ %s (%d pages)...", name, p.Pages)))
			} else {
				lines = append(lines, st.Muted.Render(fmt.Sprintf("⟳ %s...", name)))
			}
		case attach.StatusSucceeded:
			lines = append(lines, st.Success.Render("✓ "+name))
		case attach.StatusFailed:
			lines = append(lines, st.Danger.Render(truncate(fmt.Sprintf("✗ %s: %v", name, p.Err), width)))
		}
	}
	return strings.Join(lines, "\n")
}

// splitPaths reads the comma separated list typed into the attach prompt.
func splitPaths(raw string) []string {
	var paths []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			paths = append(paths, p)
		}
	}
	return paths
}

func sourcesFor(paths []string) []attach.Source {
	sources := make([]attach.Source, 0, len(paths))
	for _, p := range paths {
		sources = append(sources, attach.FromPath(p))
	}
	return sources
}
