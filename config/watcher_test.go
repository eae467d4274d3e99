package config

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// --- Constructor ---

func TestNewFileWatcher_Defaults(t *testing.T) {
	tmpDir := t.TempDir()
	f := filepath.Join(tmpDir, "agentmem.yaml")
	require.NoError(t, os.WriteFile(f, []byte("scope: global"), 0644))

	w, err := NewFileWatcher([]string{f})
	require.NoError(t, err)
	require.NotNil(t, w)

	assert.Equal(t, []string{f}, w.Paths())
	assert.False(t, w.IsRunning())
	assert.Equal(t, 100*time.Millisecond, w.debounceDelay)
	assert.Equal(t, 1*time.Second, w.pollInterval)
}

func TestNewFileWatcher_WithOptions(t *testing.T) {
	tmpDir := t.TempDir()
	f := filepath.Join(tmpDir, "agentmem.yaml")
	require.NoError(t, os.WriteFile(f, []byte("scope: global"), 0644))

	logger := zap.NewNop()
	w, err := NewFileWatcher([]string{f},
		WithDebounceDelay(500*time.Millisecond),
		WithPollInterval(10*time.Millisecond),
		WithWatcherLogger(logger),
	)
	require.NoError(t, err)
	assert.Equal(t, 500*time.Millisecond, w.debounceDelay)
	assert.Equal(t, 10*time.Millisecond, w.pollInterval)
}

func TestNewFileWatcher_NonExistentPathWarns(t *testing.T) {
	// Non-existent path should not error (just warn), per source code
	w, err := NewFileWatcher([]string{"/nonexistent/path/agentmem.yaml"})
	require.NoError(t, err)
	require.NotNil(t, w)
}

func TestWatchConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	f := filepath.Join(tmpDir, "agentmem.yaml")
	require.NoError(t, os.WriteFile(f, []byte("scope: global"), 0644))

	w, err := WatchConfigFile(f, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, []string{f}, w.Paths())
	assert.Equal(t, 500*time.Millisecond, w.debounceDelay, "hot-reload entry point debounces editor write+rename bursts")
}

// --- AddPath / RemovePath / Paths ---

func TestFileWatcher_AddPath(t *testing.T) {
	tmpDir := t.TempDir()
	f1 := filepath.Join(tmpDir, "a.yaml")
	f2 := filepath.Join(tmpDir, "b.yaml")
	require.NoError(t, os.WriteFile(f1, []byte("a"), 0644))
	require.NoError(t, os.WriteFile(f2, []byte("b"), 0644))

	w, err := NewFileWatcher([]string{f1})
	require.NoError(t, err)

	err = w.AddPath(f2)
	require.NoError(t, err)
	assert.Len(t, w.Paths(), 2)
}

func TestFileWatcher_AddPath_Duplicate(t *testing.T) {
	tmpDir := t.TempDir()
	f := filepath.Join(tmpDir, "a.yaml")
	require.NoError(t, os.WriteFile(f, []byte("a"), 0644))

	w, err := NewFileWatcher([]string{f})
	require.NoError(t, err)

	err = w.AddPath(f)
	require.NoError(t, err)
	assert.Len(t, w.Paths(), 1, "adding an already-watched path must not duplicate it")
}

func TestFileWatcher_RemovePath(t *testing.T) {
	tmpDir := t.TempDir()
	f1 := filepath.Join(tmpDir, "a.yaml")
	f2 := filepath.Join(tmpDir, "b.yaml")
	require.NoError(t, os.WriteFile(f1, []byte("a"), 0644))
	require.NoError(t, os.WriteFile(f2, []byte("b"), 0644))

	w, err := NewFileWatcher([]string{f1})
	require.NoError(t, err)
	require.NoError(t, w.AddPath(f2))

	err = w.RemovePath(f2)
	require.NoError(t, err)
	assert.Len(t, w.Paths(), 1)
}

func TestFileWatcher_RemovePath_NotFound(t *testing.T) {
	tmpDir := t.TempDir()
	f := filepath.Join(tmpDir, "a.yaml")
	require.NoError(t, os.WriteFile(f, []byte("a"), 0644))

	w, err := NewFileWatcher([]string{f})
	require.NoError(t, err)

	err = w.RemovePath(filepath.Join(tmpDir, "nonexistent.yaml"))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "path not found")
}

// --- Start / Stop / IsRunning lifecycle ---

func TestFileWatcher_Lifecycle(t *testing.T) {
	tmpDir := t.TempDir()
	f := filepath.Join(tmpDir, "agentmem.yaml")
	require.NoError(t, os.WriteFile(f, []byte("scope: global"), 0644))

	w, err := NewFileWatcher([]string{f}, WithDebounceDelay(50*time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	assert.False(t, w.IsRunning())

	require.NoError(t, w.Start(ctx))
	assert.True(t, w.IsRunning())

	err = w.Start(ctx)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "already running")

	require.NoError(t, w.Stop())
	assert.False(t, w.IsRunning())

	require.NoError(t, w.Stop())
}

// --- OnChange callback ---

func TestFileWatcher_OnChange_Callback(t *testing.T) {
	tmpDir := t.TempDir()
	f := filepath.Join(tmpDir, "agentmem.yaml")
	require.NoError(t, os.WriteFile(f, []byte("scope: global"), 0644))

	w, err := NewFileWatcher([]string{f},
		WithPollInterval(10*time.Millisecond),
		WithDebounceDelay(10*time.Millisecond),
	)
	require.NoError(t, err)

	var mu sync.Mutex
	var events []FileEvent
	w.OnChange(func(evt FileEvent) {
		mu.Lock()
		events = append(events, evt)
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	require.NoError(t, w.Start(ctx))
	t.Cleanup(func() { w.Stop() })

	time.Sleep(30 * time.Millisecond)

	require.NoError(t, os.WriteFile(f, []byte("scope: agent"), 0644))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(events) >= 1
	}, 2*time.Second, 10*time.Millisecond, "should detect at least one change")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, f, events[0].Path)
	assert.Equal(t, FileOpWrite, events[0].Op)
}

// TestFileWatcher_OnChange_PerPathDebounce verifies that a burst of writes
// to one path doesn't delay delivery of an independent path's event.
func TestFileWatcher_OnChange_PerPathDebounce(t *testing.T) {
	tmpDir := t.TempDir()
	noisy := filepath.Join(tmpDir, "noisy.yaml")
	quiet := filepath.Join(tmpDir, "quiet.yaml")
	require.NoError(t, os.WriteFile(noisy, []byte("v0"), 0644))
	require.NoError(t, os.WriteFile(quiet, []byte("v0"), 0644))

	w, err := NewFileWatcher([]string{noisy, quiet},
		WithPollInterval(10*time.Millisecond),
		WithDebounceDelay(150*time.Millisecond),
	)
	require.NoError(t, err)

	var mu sync.Mutex
	seen := make(map[string]int)
	w.OnChange(func(evt FileEvent) {
		mu.Lock()
		seen[evt.Path]++
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, w.Start(ctx))
	t.Cleanup(func() { w.Stop() })

	time.Sleep(30 * time.Millisecond)

	require.NoError(t, os.WriteFile(quiet, []byte("v1"), 0644))
	// Keep noisy's debounce timer perpetually reset for a while.
	for i := 0; i < 5; i++ {
		time.Sleep(60 * time.Millisecond)
		require.NoError(t, os.WriteFile(noisy, []byte("v"+string(rune('1'+i))), 0644))
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return seen[quiet] >= 1
	}, 2*time.Second, 20*time.Millisecond, "quiet path must not be starved by a noisy sibling's debounce resets")
}

// --- Context cancellation stops watcher ---

func TestFileWatcher_ContextCancel(t *testing.T) {
	tmpDir := t.TempDir()
	f := filepath.Join(tmpDir, "agentmem.yaml")
	require.NoError(t, os.WriteFile(f, []byte("scope: global"), 0644))

	w, err := NewFileWatcher([]string{f})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Start(ctx))
	assert.True(t, w.IsRunning())

	// Cancel context: goroutines exit, but running flag stays true until
	// Stop() is called explicitly.
	cancel()
	time.Sleep(50 * time.Millisecond)

	w.Stop()
	assert.False(t, w.IsRunning())
}
