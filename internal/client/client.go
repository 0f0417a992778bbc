package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"github.com/gennadis/ragdesk/internal/chat"
	"github.com/gennadis/ragdesk/internal/config"
)

const (
	JSONContentType = "application/json"
)

// ErrInvalidResponse is returned when a success response lacks a required
// field.
var ErrInvalidResponse = errors.New("invalid response from service")

// APIError is a non-success response from the service.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("service request failed: status code %d", e.Status)
	}
	return fmt.Sprintf("service request failed: status code %d, detail %s", e.Status, e.Detail)
}

// Client talks to the document/chat service.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

func NewClient(cfg config.Config) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout()},
		baseURL:    strings.TrimRight(cfg.ServiceURL, "/"),
	}
}

// Upload sends one document as the multipart field "file".
func (c *Client) Upload(ctx context.Context, filename string, r io.Reader) (*UploadResponse, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filename, err)
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload", body)
	if err != nil {
		slog.Error("Failed to build upload request", "error", err)
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Accept", JSONContentType)

	var resp UploadResponse
	if err := c.do(req, &resp); err != nil {
		slog.Error("Failed to upload file", "file", filename, "error", err)
		return nil, err
	}
	if resp.FileID == "" {
		slog.Error("Upload response has no file_id", "file", filename)
		return nil, fmt.Errorf("%w: missing file_id", ErrInvalidResponse)
	}
	return &resp, nil
}

// Chat performs one exchange and returns the reply text.
func (c *Client) Chat(ctx context.Context, request *chat.ChatRequest) (string, error) {
	reqBytes, err := json.Marshal(request)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat", bytes.NewReader(reqBytes))
	if err != nil {
		slog.Error("Failed to build chat request", "error", err)
		return "", err
	}
	req.Header.Set("Content-Type", JSONContentType)
	req.Header.Set("Accept", JSONContentType)

	var resp chatResponseBody
	if err := c.do(req, &resp); err != nil {
		slog.Error("Failed to send chat request", "error", err)
		return "", err
	}
	if resp.Response == nil {
		return "", fmt.Errorf("%w: missing response", ErrInvalidResponse)
	}
	return *resp.Response, nil
}

// ListFiles returns every document held by the service.
func (c *Client) ListFiles(ctx context.Context) ([]RemoteFile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/files", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", JSONContentType)

	var files []RemoteFile
	if err := c.do(req, &files); err != nil {
		slog.Error("Failed to list files", "error", err)
		return nil, err
	}
	if files == nil {
		files = []RemoteFile{}
	}
	return files, nil
}

// DeleteFile removes a document from the service. Ids may contain
// slashes, which are kept as path separators.
func (c *Client) DeleteFile(ctx context.Context, id string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/files/"+escapeSegments(id), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", JSONContentType)

	if err := c.do(req, nil); err != nil {
		slog.Error("Failed to delete file", "id", id, "error", err)
		return err
	}
	return nil
}

// ViewURL is where the service serves the named document for viewing.
func (c *Client) ViewURL(name string) string {
	return c.baseURL + "/files/view/" + url.PathEscape(name)
}

func (c *Client) do(req *http.Request, out any) error {
	res, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		slog.Error("Failed to read response body", "error", err)
		return err
	}

	if err := handleApiError(res, body); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return nil
}

func handleApiError(res *http.Response, body []byte) error {
	if res.StatusCode >= 200 && res.StatusCode < 300 {
		return nil
	}
	apiErr := &APIError{Status: res.StatusCode}
	var errBody apiErrorBody
	if err := json.Unmarshal(body, &errBody); err == nil {
		switch d := errBody.Detail.(type) {
		case string:
			apiErr.Detail = d
		case nil:
		default:
			raw, _ := json.Marshal(d)
			apiErr.Detail = string(raw)
		}
	}
	if apiErr.Detail == "" {
		apiErr.Detail = strings.TrimSpace(res.Status)
	}
	return apiErr
}

func escapeSegments(id string) string {
	parts := strings.Split(id, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
