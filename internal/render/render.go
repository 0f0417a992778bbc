// Package render turns message text into display markup.
package render

import (
	"fmt"
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	boldPattern     = regexp.MustCompile(`\*\*(.*?)\*\*`)
	citationPattern = regexp.MustCompile(`\[Page (\d+)\]`)
	codePattern     = regexp.MustCompile("(?s)```(.*?)```")
)

// Formatter applies the message transforms in their fixed order: bold,
// page citations, fenced code, line breaks. Each pass only ever adds
// markup without newlines, so the line break pass cannot split it.
type Formatter struct {
	Escape    func(string) string
	Bold      func(string) string
	Citation  func(page string) string
	Code      func(string) string
	LineBreak string
}

func (f Formatter) Format(text string) string {
	if f.Escape != nil {
		text = f.Escape(text)
	}
	text = replaceGroup(boldPattern, text, f.Bold)
	text = replaceGroup(citationPattern, text, f.Citation)
	text = replaceGroup(codePattern, text, f.Code)
	if f.LineBreak != "" {
		text = strings.ReplaceAll(text, "\n", f.LineBreak)
	}
	return text
}

func replaceGroup(re *regexp.Regexp, text string, fn func(string) string) string {
	if fn == nil {
		return text
	}
	return re.ReplaceAllStringFunc(text, func(match string) string {
		return fn(re.FindStringSubmatch(match)[1])
	})
}

var htmlFormatter = Formatter{
	Escape: html.EscapeString,
	Bold: func(s string) string {
		return "<strong>" + s + "</strong>"
	},
	Citation: func(page string) string {
		return `<span class="citation">[Page ` + page + `]</span>`
	},
	Code: func(s string) string {
		return "<pre><code>" + s + "</code></pre>"
	},
	LineBreak: "<br>",
}

// HTML renders text as an HTML fragment. The input is escaped before any
// markup is inserted.
func HTML(text string) string {
	return htmlFormatter.Format(text)
}

// TerminalStyles are the lipgloss styles used by Terminal.
type TerminalStyles struct {
	Bold     lipgloss.Style
	Citation lipgloss.Style
	Code     lipgloss.Style
}

// Terminal builds a formatter that styles text for the terminal views.
func Terminal(styles TerminalStyles) Formatter {
	return Formatter{
		Bold: func(s string) string {
			return styles.Bold.Render(s)
		},
		Citation: func(page string) string {
			return styles.Citation.Render("[Page " + page + "]")
		},
		Code: func(s string) string {
			return styles.Code.Render(strings.Trim(s, "\n"))
		},
	}
}

// TimeAgo labels t relative to now for the session sidebar.
func TimeAgo(t, now time.Time) string {
	sec := int(now.Sub(t).Seconds())
	if sec < 60 {
		return "Just now"
	}
	min := sec / 60
	if min < 60 {
		return fmt.Sprintf("%dm ago", min)
	}
	hr := min / 60
	if hr < 24 {
		return fmt.Sprintf("%dh ago", hr)
	}
	day := hr / 24
	if day < 7 {
		return fmt.Sprintf("%dd ago", day)
	}
	return t.Format("2006-01-02")
}
