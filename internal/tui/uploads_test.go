package tui

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gennadis/ragdesk/internal/attach"
	"github.com/gennadis/ragdesk/internal/theme"
)

func TestIndicatorsLingerOnlyWhenFinished(t *testing.T) {
	var in indicators

	assert.Nil(t, in.apply(1, attach.Progress{Index: 0, Name: "a.pdf", Status: attach.StatusUploading}))
	assert.Nil(t, in.apply(1, attach.Progress{Index: 0, Name: "a.pdf", Status: attach.StatusUploading, Pages: 12}))
	require.Equal(t, 1, in.len())

	st := NewStyles(theme.PaletteFor(theme.Default))
	assert.Contains(t, in.view(st, 80), "a.pdf (12 pages)")

	assert.NotNil(t, in.apply(1, attach.Progress{Index: 0, Name: "a.pdf", Status: attach.StatusSucceeded}))
	assert.Equal(t, 12, in.items[0].prog.Pages)
	assert.NotNil(t, in.apply(2, attach.Progress{Index: 0, Name: "b.pdf", Status: attach.StatusFailed, Err: errors.New("boom")}))
	require.Equal(t, 2, in.len())
	assert.Contains(t, in.view(st, 80), "b.pdf: boom")

	in.clear("1/0")
	require.Equal(t, 1, in.len())
	assert.Equal(t, "b.pdf", in.items[0].prog.Name)
}

func TestSplitPaths(t *testing.T) {
	assert.Equal(t, []string{"a.pdf", "dir/b c.txt"}, splitPaths(" a.pdf ,, dir/b c.txt ,"))
	assert.Empty(t, splitPaths("   "))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
	assert.Equal(t, "héllo", truncate("héllo", 5))
}
