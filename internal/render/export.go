package render

import (
	"html/template"
	"io"
	"time"

	"github.com/gennadis/ragdesk/internal/chat"
)

var exportTemplate = template.Must(template.New("session").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
</head>
<body>
<h1>{{.Title}}</h1>
<p class="saved">Saved {{.Saved}}</p>
{{if .Files}}<ul class="files">
{{range .Files}}<li>{{.Label}}</li>
{{end}}</ul>
{{end}}{{range .Messages}}<div class="message {{.Role}}"><div class="content">{{.Body}}</div></div>
{{end}}</body>
</html>
`))

type exportMessage struct {
	Role string
	Body template.HTML
}

// Export writes the session transcript as a standalone HTML page.
func Export(w io.Writer, s *chat.Session) error {
	messages := make([]exportMessage, 0, len(s.Messages))
	for _, m := range s.Messages {
		messages = append(messages, exportMessage{
			Role: string(m.Role),
			// HTML escapes the content before adding markup
			Body: template.HTML(HTML(m.Content)),
		})
	}
	return exportTemplate.Execute(w, struct {
		Title    string
		Saved    string
		Files    []chat.File
		Messages []exportMessage
	}{
		Title:    s.Title,
		Saved:    s.SavedAt().Format(time.RFC1123),
		Files:    s.Files,
		Messages: messages,
	})
}
