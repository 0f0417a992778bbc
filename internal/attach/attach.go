package attach

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gennadis/ragdesk/internal/chat"
	"github.com/gennadis/ragdesk/internal/client"
	"github.com/ledongthuc/pdf"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultParallelUploads keeps a batch strictly sequential: one slow
	// upload holds back the rest, which bounds load on the service.
	DefaultParallelUploads = 1

	// SuccessLinger and FailureLinger are how long a finished upload stays
	// in the transient indicator.
	SuccessLinger = 1200 * time.Millisecond
	FailureLinger = 3000 * time.Millisecond
)

type Status string

const (
	StatusUploading Status = "uploading"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Uploader sends one document to the service.
type Uploader interface {
	Upload(ctx context.Context, filename string, r io.Reader) (*client.UploadResponse, error)
}

// Attacher records file references on the active session.
type Attacher interface {
	AttachFile(ctx context.Context, file chat.File) error
	DetachFile(ctx context.Context, index int) (chat.File, bool, error)
}

// Source is a local document waiting to be uploaded.
type Source struct {
	Name     string
	MimeType string
	Open     func() (io.ReadCloser, error)
}

// FromPath builds a Source for a file on disk.
func FromPath(path string) Source {
	return Source{
		Name:     filepath.Base(path),
		MimeType: mime.TypeByExtension(strings.ToLower(filepath.Ext(path))),
		Open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}
}

// Progress describes the state of one upload in a batch.
type Progress struct {
	Index  int
	Name   string
	Status Status
	Pages  int
	Err    error
}

// Linger is how long the indicator should keep showing this state.
func (p Progress) Linger() time.Duration {
	switch p.Status {
	case StatusSucceeded:
		return SuccessLinger
	case StatusFailed:
		return FailureLinger
	}
	return 0
}

// Result is the outcome of one upload. SaveErr is set when the file was
// attached in memory but the session could not be persisted.
type Result struct {
	Name    string
	File    chat.File
	Err     error
	SaveErr error
}

type Option func(*Manager)

// WithParallelism sets how many uploads of a batch may run at once.
func WithParallelism(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.parallel = n
		}
	}
}

// WithTimeout bounds each upload request.
func WithTimeout(d time.Duration) Option {
	return func(m *Manager) {
		m.timeout = d
	}
}

// Manager uploads documents and keeps the active session's attachment
// list in step. A nil Attacher uploads without attaching.
type Manager struct {
	uploader Uploader
	sessions Attacher
	parallel int
	timeout  time.Duration
}

func NewManager(uploader Uploader, sessions Attacher, opts ...Option) *Manager {
	m := &Manager{
		uploader: uploader,
		sessions: sessions,
		parallel: DefaultParallelUploads,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// UploadBatch uploads every source. A failed upload never stops the
// others. progress may be nil; with parallelism above one it is called
// from several goroutines.
func (m *Manager) UploadBatch(ctx context.Context, sources []Source, progress func(Progress)) []Result {
	if progress == nil {
		progress = func(Progress) {}
	}
	results := make([]Result, len(sources))

	var g errgroup.Group
	g.SetLimit(m.parallel)
	for i, src := range sources {
		i, src := i, src
		g.Go(func() error {
			results[i] = m.uploadOne(ctx, i, src, progress)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (m *Manager) uploadOne(ctx context.Context, index int, src Source, progress func(Progress)) Result {
	res := Result{Name: src.Name}
	fail := func(err error) Result {
		res.Err = err
		slog.Error("Upload failed", "file", src.Name, "error", err)
		progress(Progress{Index: index, Name: src.Name, Status: StatusFailed, Err: err})
		return res
	}

	progress(Progress{Index: index, Name: src.Name, Status: StatusUploading})

	data, err := readSource(src)
	if err != nil {
		return fail(err)
	}
	pages := pageCount(src.Name, data)
	if pages > 0 {
		progress(Progress{Index: index, Name: src.Name, Status: StatusUploading, Pages: pages})
	}

	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}
	resp, err := m.uploader.Upload(ctx, src.Name, bytes.NewReader(data))
	if err != nil {
		return fail(err)
	}

	res.File = resp.AttachedFile(src.Name, src.MimeType)
	if m.sessions != nil {
		if err := m.sessions.AttachFile(ctx, res.File); err != nil {
			res.SaveErr = err
			slog.Error("Uploaded file attached but session not saved", "file", src.Name, "error", err)
		}
	}

	slog.Info("file uploaded",
		slog.String("file", src.Name),
		slog.String("id", res.File.ID),
		slog.Int("pages", pages),
	)
	progress(Progress{Index: index, Name: src.Name, Status: StatusSucceeded, Pages: pages})
	return res
}

// Detach drops the attachment at index from the active session. Nothing is
// sent to the service.
func (m *Manager) Detach(ctx context.Context, index int) (chat.File, bool, error) {
	if m.sessions == nil {
		return chat.File{}, false, nil
	}
	return m.sessions.DetachFile(ctx, index)
}

func readSource(src Source) ([]byte, error) {
	rc, err := src.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", src.Name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", src.Name, err)
	}
	return data, nil
}

// pageCount returns the page count of a PDF, or 0 for anything else or an
// unreadable document.
func pageCount(name string, data []byte) (pages int) {
	if !strings.EqualFold(filepath.Ext(name), ".pdf") {
		return 0
	}
	// the pdf reader panics on some malformed input
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("pdf preflight failed", "file", name, "panic", r)
			pages = 0
		}
	}()
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		slog.Warn("pdf preflight failed", "file", name, "error", err)
		return 0
	}
	return reader.NumPage()
}
