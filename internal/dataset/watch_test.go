package dataset

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestWatcherReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "events.csv")
	require.NoError(t, os.WriteFile(path, []byte("event_id_cnty,country\nA1,Sudan\n"), 0o644))

	store := NewMemoryStore()
	frame, err := LoadPath(path)
	require.NoError(t, err)
	store.Put("default", frame)

	w, err := NewWatcher(store, "default", path, zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(ctx)
	}()

	require.NoError(t, os.WriteFile(path, []byte("event_id_cnty,country\nA1,Sudan\nA2,Chad\n"), 0o644))

	deadline := time.After(5 * time.Second)
	for {
		if f, ok := store.Get("default"); ok && f.NumRows() == 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("watcher did not reload the dataset")
		case <-time.After(20 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop on context cancel")
	}

	f, ok := store.Get("default")
	require.True(t, ok)
	assert.Equal(t, "Chad", f.Cell(1, "country"))
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "events.csv")
	require.NoError(t, os.WriteFile(path, []byte("a\n1\n"), 0o644))

	store := NewMemoryStore()
	w, err := NewWatcher(store, "default", path, zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go w.Run(ctx)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0o644))
	time.Sleep(100 * time.Millisecond)

	_, ok := store.Get("default")
	assert.False(t, ok)
	cancel()
}
