package log

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewWritesAtConfiguredLevel(t *testing.T) {
	var buf bytes.Buffer
	b, err := New(&buf, "INFO")
	require.NoError(t, err)

	l := b.GetLogger("testmod")
	l.Debug("should not appear")
	l.Info("should appear")

	out := buf.String()
	require.NotContains(t, out, "should not appear")
	require.Contains(t, out, "should appear")
	require.Contains(t, out, "testmod")
}

func TestNewRejectsInvalidLevel(t *testing.T) {
	_, err := New(&bytes.Buffer{}, "LOUD")
	require.Error(t, err)
}

func TestNewFileDisabledDiscardsOutput(t *testing.T) {
	disabled, err := NewFile("", "DEBUG", true)
	require.NoError(t, err)
	// Discard backend must not error on use, even though nothing is
	// observable from here.
	disabled.GetLogger("x").Info("discarded")
}

func TestNewFileWritesToPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "minion.log")
	b, err := NewFile(path, "DEBUG", false)
	require.NoError(t, err)

	b.GetLogger("mod").Notice("hello")

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(raw), "hello"))
}
