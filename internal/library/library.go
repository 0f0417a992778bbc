// Package library manages the service's full document set, independent of
// any conversation.
package library

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/gennadis/ragdesk/internal/attach"
	"github.com/gennadis/ragdesk/internal/client"
)

// ErrNotLoaded is returned by operations that need a successful Load.
var ErrNotLoaded = errors.New("library is not loaded")

// Service is the part of the service client the library uses.
type Service interface {
	ListFiles(ctx context.Context) ([]client.RemoteFile, error)
	DeleteFile(ctx context.Context, id string) error
	ViewURL(name string) string
}

// State of the controller.
type State int

const (
	StateEmpty State = iota
	StateLoaded
	StateFailed
)

// UploadSummary reports a library upload batch.
type UploadSummary struct {
	Uploaded int
	Failed   int
	// ReloadErr is set when the listing could not be refreshed afterwards.
	ReloadErr error
}

type Controller struct {
	service  Service
	uploader *attach.Manager

	mu      sync.RWMutex
	state   State
	all     []client.RemoteFile
	loadErr error
}

func NewController(service Service, uploader *attach.Manager) *Controller {
	return &Controller{service: service, uploader: uploader}
}

// Load fetches the full document set. A failure leaves the controller in
// StateFailed until the next successful Load.
func (c *Controller) Load(ctx context.Context) error {
	files, err := c.service.ListFiles(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.state = StateFailed
		c.all = nil
		c.loadErr = err
		return fmt.Errorf("failed to load files: %w", err)
	}
	c.state = StateLoaded
	c.all = files
	c.loadErr = nil

	slog.Debug("library loaded", slog.Int("count", len(files)))
	return nil
}

func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// LoadErr returns the error of the last failed Load.
func (c *Controller) LoadErr() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loadErr
}

// All returns the unfiltered document set.
func (c *Controller) All() []client.RemoteFile {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]client.RemoteFile(nil), c.all...)
}

// Search filters the full set by a case-insensitive substring of each
// document's label. An empty term matches everything.
func (c *Controller) Search(term string) []client.RemoteFile {
	c.mu.RLock()
	defer c.mu.RUnlock()

	term = strings.ToLower(term)
	out := make([]client.RemoteFile, 0, len(c.all))
	for _, f := range c.all {
		if strings.Contains(strings.ToLower(f.Label()), term) {
			out = append(out, f)
		}
	}
	return out
}

// Delete removes the document from the service and, once the service
// confirms, from the listing. On failure the listing is unchanged and the
// error carries the service's reason.
func (c *Controller) Delete(ctx context.Context, name string) error {
	if c.State() != StateLoaded {
		return ErrNotLoaded
	}
	if err := c.service.DeleteFile(ctx, name); err != nil {
		var apiErr *client.APIError
		if errors.As(err, &apiErr) {
			return fmt.Errorf("failed to delete file: %s", apiErr.Detail)
		}
		return fmt.Errorf("failed to delete file: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	kept := c.all[:0:0]
	for _, f := range c.all {
		if f.Name != name {
			kept = append(kept, f)
		}
	}
	c.all = kept

	slog.Info("file deleted from library", slog.String("name", name))
	return nil
}

// Upload sends documents to the service without attaching them to any
// session, then reloads the listing.
func (c *Controller) Upload(ctx context.Context, sources []attach.Source, progress func(attach.Progress)) UploadSummary {
	var summary UploadSummary
	for _, r := range c.uploader.UploadBatch(ctx, sources, progress) {
		if r.Err != nil {
			summary.Failed++
			continue
		}
		summary.Uploaded++
	}
	summary.ReloadErr = c.Load(ctx)
	return summary
}

// ViewURL is where the named document can be viewed.
func (c *Controller) ViewURL(name string) string {
	return c.service.ViewURL(name)
}
