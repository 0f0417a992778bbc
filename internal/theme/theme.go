// Package theme keeps the persisted theme preference and maps it to
// terminal colours.
package theme

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/charmbracelet/lipgloss"
)

type Name string

const (
	Default  Name = "default"
	SoftPink Name = "soft-pink"
	CoolGray Name = "cool-gray"
)

// cycle is the toggle order; Default is not part of it.
var cycle = []Name{SoftPink, CoolGray}

// Valid reports whether n is one of the known themes.
func (n Name) Valid() bool {
	switch n {
	case Default, SoftPink, CoolGray:
		return true
	}
	return false
}

// Store persists the raw preference string.
type Store interface {
	Read(ctx context.Context) (string, error)
	Write(ctx context.Context, name string) error
	Clear(ctx context.Context) error
}

type Preferences struct {
	store Store
}

func NewPreferences(store Store) *Preferences {
	return &Preferences{store: store}
}

// Current returns the stored theme. A missing or unknown value means
// Default.
func (p *Preferences) Current(ctx context.Context) (Name, error) {
	raw, err := p.store.Read(ctx)
	if err != nil {
		return Default, err
	}
	n := Name(raw)
	if raw == "" || !n.Valid() {
		return Default, nil
	}
	return n, nil
}

// Set stores the theme. Default is stored as the absence of a value.
func (p *Preferences) Set(ctx context.Context, n Name) error {
	if !n.Valid() {
		return fmt.Errorf("unknown theme %q", n)
	}
	if n == Default {
		return p.store.Clear(ctx)
	}
	return p.store.Write(ctx, string(n))
}

// Toggle switches to the first theme in the cycle that differs from the
// current one and returns it.
func (p *Preferences) Toggle(ctx context.Context) (Name, error) {
	current, err := p.Current(ctx)
	if err != nil {
		return current, err
	}
	next := cycle[0]
	for _, n := range cycle {
		if n != current {
			next = n
			break
		}
	}
	if err := p.Set(ctx, next); err != nil {
		return current, err
	}
	slog.Debug("theme toggled", slog.String("from", string(current)), slog.String("to", string(next)))
	return next, nil
}

// Palette holds the colours a view draws with.
type Palette struct {
	Accent    lipgloss.Color
	Muted     lipgloss.Color
	User      lipgloss.Color
	Model     lipgloss.Color
	System    lipgloss.Color
	Danger    lipgloss.Color
	Success   lipgloss.Color
	Border    lipgloss.Color
	CodeBg    lipgloss.Color
	Highlight lipgloss.Color
}

var palettes = map[Name]Palette{
	Default: {
		Accent: "63", Muted: "245", User: "39", Model: "213", System: "214",
		Danger: "196", Success: "42", Border: "240", CodeBg: "236", Highlight: "57",
	},
	SoftPink: {
		Accent: "205", Muted: "181", User: "211", Model: "218", System: "216",
		Danger: "160", Success: "114", Border: "175", CodeBg: "53", Highlight: "132",
	},
	CoolGray: {
		Accent: "110", Muted: "244", User: "153", Model: "252", System: "180",
		Danger: "167", Success: "108", Border: "242", CodeBg: "235", Highlight: "60",
	},
}

// PaletteFor returns the palette of n, falling back to Default.
func PaletteFor(n Name) Palette {
	if p, ok := palettes[n]; ok {
		return p
	}
	return palettes[Default]
}
