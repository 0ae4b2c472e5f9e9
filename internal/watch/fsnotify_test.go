package watch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func goSupported(path string) bool { return strings.HasSuffix(path, ".go") }

func TestWatcherDetectsFileWrite(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.go"), []byte("package a\n"), 0o644))

	var flushed []string
	done := make(chan struct{}, 8)
	queue := New(MinDebounce, func(_ context.Context, changed, deleted []string) error {
		flushed = append(flushed, changed...)
		done <- struct{}{}
		return nil
	})

	w, err := NewWatcher(dir, queue, goSupported, nil)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.go"), []byte("package a\n\nfunc A() {}\n"), 0o644))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for flush after file write")
	}
	assert.Contains(t, flushed, "a.go")
}

func TestWatcherIgnoresUnsupportedExtensions(t *testing.T) {
	dir := t.TempDir()

	queue := New(MinDebounce, func(_ context.Context, changed, deleted []string) error { return nil })
	w, err := NewWatcher(dir, queue, goSupported, nil)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hi"), 0o644))
	time.Sleep(150 * time.Millisecond)

	changes, deletes := queue.Pending()
	assert.Equal(t, 0, changes)
	assert.Equal(t, 0, deletes)
}
