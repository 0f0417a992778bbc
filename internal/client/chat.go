package client

import "github.com/gennadis/ragdesk/internal/chat"

// UploadResponse is returned by the upload endpoint. Only FileID is
// guaranteed.
type UploadResponse struct {
	FileID   string `json:"file_id"`
	Filename string `json:"filename"`
	MimeType string `json:"mime_type"`
	URI      string `json:"uri"`
}

// AttachedFile turns the response into a file reference, falling back to
// the local name and type for fields the service left out.
func (r UploadResponse) AttachedFile(localName, localType string) chat.File {
	name := r.Filename
	if name == "" {
		name = localName
	}
	mimeType := r.MimeType
	if mimeType == "" {
		mimeType = localType
	}
	return chat.File{
		ID:          r.FileID,
		Name:        name,
		DisplayName: name,
		MimeType:    mimeType,
		URI:         r.URI,
	}
}

// RemoteFile is one entry of the service's document listing.
type RemoteFile struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name,omitempty"`
}

// Label returns the human facing name.
func (f RemoteFile) Label() string {
	if f.DisplayName != "" {
		return f.DisplayName
	}
	return f.Name
}

type chatResponseBody struct {
	Response *string `json:"response"`
}

type apiErrorBody struct {
	Detail any `json:"detail"`
}
