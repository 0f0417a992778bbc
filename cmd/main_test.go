package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, serviceURL string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := fmt.Sprintf("serviceURL: %s\nrequestTimeout: 5s\nstoreBackend: file\nstorePath: %s\nlogFile: %s\n",
		serviceURL, filepath.Join(dir, "data"), filepath.Join(dir, "ragdesk.log"))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(args)
	askSession, askAttach, exportPath = "", nil, ""
	err := rootCmd.Execute()
	return out.String(), err
}

func TestThemeCommand(t *testing.T) {
	cfg := writeConfig(t, "http://localhost:1")

	out, err := execute(t, "--config", cfg, "theme")
	require.NoError(t, err)
	assert.Equal(t, "default\n", out)

	out, err = execute(t, "--config", cfg, "theme", "toggle")
	require.NoError(t, err)
	assert.Equal(t, "soft-pink\n", out)

	out, err = execute(t, "--config", cfg, "theme")
	require.NoError(t, err)
	assert.Equal(t, "soft-pink\n", out)

	_, err = execute(t, "--config", cfg, "theme", "neon")
	assert.Error(t, err)
}

func TestAskThenListAndExport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"response": "It is **42** [Page 7]"})
	}))
	defer srv.Close()
	cfg := writeConfig(t, srv.URL)

	out, err := execute(t, "--config", cfg, "ask", "what", "is", "the", "answer?")
	require.NoError(t, err)
	assert.Contains(t, out, "42")
	assert.Contains(t, out, "[Page 7]")

	out, err = execute(t, "--config", cfg, "sessions", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "what is the answer?")

	list, err := application.Sessions.ListChats(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)

	out, err = execute(t, "--config", cfg, "sessions", "export", list[0].ID)
	require.NoError(t, err)
	assert.Contains(t, out, "<strong>42</strong>")

	_, err = execute(t, "--config", cfg, "sessions", "show", "does-not-exist")
	assert.ErrorIs(t, err, errUnknownSession)
}

func TestEmptyHistory(t *testing.T) {
	cfg := writeConfig(t, "http://localhost:1")

	out, err := execute(t, "--config", cfg, "sessions", "list")
	require.NoError(t, err)
	assert.Equal(t, "No chat history yet\n", out)
}

func TestFilesViewPrintsURL(t *testing.T) {
	cfg := writeConfig(t, "https://rag.example.com")

	out, err := execute(t, "--config", cfg, "files", "view", "report.pdf")
	require.NoError(t, err)
	assert.Equal(t, "https://rag.example.com/files/view/report.pdf\n", out)
}
