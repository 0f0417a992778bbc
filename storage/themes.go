package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ThemeKey holds the theme preference string.
const ThemeKey = "ragdesk_theme"

// Themes is a storage for the theme preference
type Themes struct {
	kv KV
}

// NewThemes creates a new Themes storage
func NewThemes(kv KV) *Themes {
	return &Themes{kv: kv}
}

// Read returns the stored theme name, or "" when none is stored
func (t *Themes) Read(ctx context.Context) (string, error) {
	data, err := t.kv.Get(ctx, ThemeKey)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read theme: %w", err)
	}
	return string(data), nil
}

// Write stores the theme name
func (t *Themes) Write(ctx context.Context, name string) error {
	if err := t.kv.Set(ctx, ThemeKey, []byte(name)); err != nil {
		return fmt.Errorf("failed to write theme %s: %w", name, err)
	}

	slog.Debug("theme written",
		slog.String("theme", name),
	)
	return nil
}

// Clear removes the stored theme
func (t *Themes) Clear(ctx context.Context) error {
	if err := t.kv.Delete(ctx, ThemeKey); err != nil {
		return fmt.Errorf("failed to clear theme: %w", err)
	}
	return nil
}
