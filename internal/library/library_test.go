package library

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/gennadis/ragdesk/internal/attach"
	"github.com/gennadis/ragdesk/internal/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeService struct {
	files     []client.RemoteFile
	listErr   error
	deleteErr error
	deleted   []string
}

func (f *fakeService) ListFiles(context.Context) ([]client.RemoteFile, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]client.RemoteFile(nil), f.files...), nil
}

func (f *fakeService) DeleteFile(_ context.Context, id string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, id)
	kept := f.files[:0]
	for _, file := range f.files {
		if file.Name != id {
			kept = append(kept, file)
		}
	}
	f.files = kept
	return nil
}

func (f *fakeService) ViewURL(name string) string { return "http://svc/files/view/" + name }

func (f *fakeService) Upload(_ context.Context, name string, r io.Reader) (*client.UploadResponse, error) {
	if strings.HasPrefix(name, "bad") {
		return nil, client.ErrInvalidResponse
	}
	f.files = append(f.files, client.RemoteFile{Name: "files/" + name, DisplayName: name})
	return &client.UploadResponse{FileID: "files/" + name}, nil
}

func sampleFiles() []client.RemoteFile {
	return []client.RemoteFile{
		{Name: "files/1", DisplayName: "Annual Report 2024.pdf"},
		{Name: "files/2", DisplayName: "contract.PDF"},
		{Name: "files/report-draft"},
	}
}

func newController(svc *fakeService) *Controller {
	return NewController(svc, attach.NewManager(svc, nil))
}

func TestSearchIsCaseInsensitiveOverFullSet(t *testing.T) {
	c := newController(&fakeService{files: sampleFiles()})
	require.NoError(t, c.Load(context.Background()))

	got := c.Search("REPORT")
	require.Len(t, got, 2)
	assert.Equal(t, "files/1", got[0].Name)
	assert.Equal(t, "files/report-draft", got[1].Name)

	// narrowing then widening recomputes from the full set
	assert.Len(t, c.Search("contract"), 1)
	assert.Len(t, c.Search(""), 3)
	assert.Empty(t, c.Search("nothing"))
}

func TestLoadFailureIsTerminalUntilReload(t *testing.T) {
	svc := &fakeService{listErr: errors.New("connection refused")}
	c := newController(svc)

	err := c.Load(context.Background())
	require.Error(t, err)
	assert.Equal(t, StateFailed, c.State())
	assert.EqualError(t, c.LoadErr(), "connection refused")
	assert.Empty(t, c.Search(""))
	assert.ErrorIs(t, c.Delete(context.Background(), "files/1"), ErrNotLoaded)

	svc.listErr = nil
	svc.files = sampleFiles()
	require.NoError(t, c.Load(context.Background()))
	assert.Equal(t, StateLoaded, c.State())
	assert.NoError(t, c.LoadErr())
}

func TestDeleteRemovesEntry(t *testing.T) {
	svc := &fakeService{files: sampleFiles()}
	c := newController(svc)
	require.NoError(t, c.Load(context.Background()))

	require.NoError(t, c.Delete(context.Background(), "files/2"))
	assert.Equal(t, []string{"files/2"}, svc.deleted)
	assert.Len(t, c.All(), 2)
	assert.Empty(t, c.Search("contract"))
}

func TestDeleteFailureKeepsStateAndSurfacesDetail(t *testing.T) {
	svc := &fakeService{files: sampleFiles(), deleteErr: &client.APIError{Status: 500, Detail: "file is locked"}}
	c := newController(svc)
	require.NoError(t, c.Load(context.Background()))

	err := c.Delete(context.Background(), "files/1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "file is locked")
	assert.Len(t, c.All(), 3)
}

func TestUploadCountsAndReloads(t *testing.T) {
	svc := &fakeService{}
	c := newController(svc)
	require.NoError(t, c.Load(context.Background()))

	src := func(name string) attach.Source {
		return attach.Source{Name: name, Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(name)), nil
		}}
	}
	summary := c.Upload(context.Background(), []attach.Source{src("a.pdf"), src("bad.pdf"), src("c.pdf")}, nil)
	assert.Equal(t, 2, summary.Uploaded)
	assert.Equal(t, 1, summary.Failed)
	assert.NoError(t, summary.ReloadErr)
	assert.Len(t, c.All(), 2)
}

func TestViewURL(t *testing.T) {
	c := newController(&fakeService{})
	assert.Equal(t, "http://svc/files/view/a.pdf", c.ViewURL("a.pdf"))
}
