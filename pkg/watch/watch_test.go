package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"amalgam/pkg/ignore"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// TestMain ensures the watcher goroutines are gone once each test stops its watcher.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func waitFor(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for rebuild")
	}
}

func TestWatcher_RebuildsOnChange(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "top.hpp"), "// top\n")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "detail"), 0755))

	rebuilt := make(chan struct{}, 8)
	w, err := New(Options{Root: dir, Debounce: 20 * time.Millisecond}, func(context.Context) error {
		rebuilt <- struct{}{}
		return nil
	}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	writeFile(t, filepath.Join(dir, "detail", "reader.hpp"), "// reader\n")
	waitFor(t, rebuilt)

	stats := w.Stats()
	assert.GreaterOrEqual(t, stats.Events, 1)
	assert.GreaterOrEqual(t, stats.Rebuilds, 1)
	assert.Zero(t, stats.Failures)
	assert.Equal(t, filepath.Join(dir, "detail", "reader.hpp"), stats.LastEventPath)
}

func TestWatcher_FailedRebuildKeepsWatching(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.hpp"), "// a\n")

	calls := make(chan struct{}, 8)
	first := true
	w, err := New(Options{Root: dir, Debounce: 20 * time.Millisecond}, func(context.Context) error {
		defer func() { calls <- struct{}{} }()
		if first {
			first = false
			return errors.New("malformed")
		}
		return nil
	}, nil)
	require.NoError(t, err)

	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	writeFile(t, filepath.Join(dir, "a.hpp"), "// a, broken\n")
	waitFor(t, calls)
	writeFile(t, filepath.Join(dir, "a.hpp"), "// a, fixed\n")
	waitFor(t, calls)

	stats := w.Stats()
	assert.GreaterOrEqual(t, stats.Rebuilds, 2)
	assert.Equal(t, 1, stats.Failures)
}

func TestWatcher_StopsOnContextCancel(t *testing.T) {
	w, err := New(Options{Root: t.TempDir()}, func(context.Context) error { return nil }, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Start(ctx))
	cancel()

	select {
	case <-w.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("event loop did not exit")
	}
	w.Stop()
	w.Stop()
}

func TestWatcher_StopWithoutStart(t *testing.T) {
	w, err := New(Options{Root: t.TempDir()}, func(context.Context) error { return nil }, nil)
	require.NoError(t, err)
	w.Stop()
}

func TestWatcher_StartMissingRoot(t *testing.T) {
	w, err := New(Options{Root: filepath.Join(t.TempDir(), "missing")}, func(context.Context) error { return nil }, nil)
	require.NoError(t, err)
	defer w.Stop()

	assert.Error(t, w.Start(context.Background()))
}

func TestWatcher_Relevant(t *testing.T) {
	dir := t.TempDir()
	filter := ignore.New(nil)
	filter.Compile("*.swp", "vendor/")

	w, err := New(Options{
		Root:    dir,
		Filter:  filter,
		Exclude: []string{filepath.Join(dir, "out.hpp")},
	}, func(context.Context) error { return nil }, nil)
	require.NoError(t, err)
	defer w.Stop()

	tests := []struct {
		path string
		want bool
	}{
		{path: "a.hpp", want: true},
		{path: "detail/b.h", want: true},
		{path: "c.INL", want: true},
		{path: "notes.txt", want: false},
		{path: "a.hpp.swp", want: false},
		{path: "vendor/x.hpp", want: false},
		{path: "out.hpp", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, w.relevant(filepath.Join(dir, tt.path)))
		})
	}
}

func TestWatcher_CollectDirectories(t *testing.T) {
	dir := t.TempDir()
	for _, sub := range []string{"detail", "detail/impl", "build/obj", "docs"} {
		require.NoError(t, os.MkdirAll(filepath.Join(dir, sub), 0755))
	}
	filter := ignore.New(nil)
	filter.Compile("build/")

	w, err := New(Options{Root: dir, Filter: filter}, func(context.Context) error { return nil }, nil)
	require.NoError(t, err)
	defer w.Stop()

	got, err := w.collectDirectories()
	require.NoError(t, err)
	sort.Strings(got)

	want := []string{
		dir,
		filepath.Join(dir, "detail"),
		filepath.Join(dir, "detail", "impl"),
		filepath.Join(dir, "docs"),
	}
	sort.Strings(want)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("collectDirectories mismatch (-want +got):\n%s", diff)
	}
}
