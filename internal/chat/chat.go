package chat

// ApologyText is shown in place of a reply when an exchange fails.
const ApologyText = "Sorry, something went wrong. Try again."

type ChatRole string

const (
	ChatRoleUser   ChatRole = "user"
	ChatRoleModel  ChatRole = "model"
	ChatRoleSystem ChatRole = "system"
)

// Valid reports whether the role belongs to the closed role set.
func (r ChatRole) Valid() bool {
	switch r {
	case ChatRoleUser, ChatRoleModel, ChatRoleSystem:
		return true
	}
	return false
}

type ChatMessage struct {
	Role    ChatRole `json:"role"`
	Content string   `json:"content"`
}

// File is a reference to a document held by the service.
type File struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	MimeType    string `json:"mime_type"`
	URI         string `json:"uri,omitempty"`
}

// Label returns the human facing name of the file.
func (f File) Label() string {
	if f.DisplayName != "" {
		return f.DisplayName
	}
	return f.Name
}

// ChatRequest is the body of a chat exchange.
type ChatRequest struct {
	Message string        `json:"message"`
	History []ChatMessage `json:"history"`
	FileIDs []string      `json:"file_ids"`
}

type ChatResponse struct {
	Response string `json:"response"`
}

// NewChatRequest builds a request for the latest user text. Prior system
// messages are transcript-only and are not sent back to the service.
func NewChatRequest(message string, prior []ChatMessage, files []File) *ChatRequest {
	history := make([]ChatMessage, 0, len(prior))
	for _, m := range prior {
		if m.Role == ChatRoleSystem {
			continue
		}
		history = append(history, m)
	}
	fileIDs := make([]string, 0, len(files))
	for _, f := range files {
		fileIDs = append(fileIDs, f.ID)
	}
	return &ChatRequest{
		Message: message,
		History: history,
		FileIDs: fileIDs,
	}
}
