package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu   sync.Mutex
	seen map[string]bool
}

func newMemStore() *memStore {
	return &memStore{seen: make(map[string]bool)}
}

func (m *memStore) SeenFile(path string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.seen[path], nil
}

func (m *memStore) MarkSeen(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seen[path] = true

	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFile(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("video bytes"), 0o644))
}

func TestNewRejectsMissingDir(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "nope"), time.Second, newMemStore(), testLogger())
	assert.Error(t, err)
}

func TestNewRejectsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file.mp4")
	writeFile(t, path)

	_, err := New(path, time.Second, newMemStore(), testLogger())
	assert.ErrorContains(t, err, "not a directory")
}

func TestMarkExistingSkipsOldVideos(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "old.mp4"))
	writeFile(t, filepath.Join(dir, "notes.txt"))

	store := newMemStore()
	w, err := New(dir, time.Second, store, testLogger())
	require.NoError(t, err)

	require.NoError(t, w.markExisting())

	seen, _ := store.SeenFile(filepath.Join(dir, "old.mp4"))
	assert.True(t, seen)

	seen, _ = store.SeenFile(filepath.Join(dir, "notes.txt"))
	assert.False(t, seen, "non-video files are not tracked")
}

func TestHandleCandidate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "new.mp4")
	writeFile(t, path)

	store := newMemStore()
	w, err := New(dir, 10*time.Millisecond, store, testLogger())
	require.NoError(t, err)
	w.poll = 5 * time.Millisecond

	var handled []string
	handle := func(_ context.Context, p string) error {
		handled = append(handled, p)
		return nil
	}

	w.handleCandidate(context.Background(), path, handle)
	assert.Equal(t, []string{path}, handled)

	seen, _ := store.SeenFile(path)
	assert.True(t, seen)

	// A second event for the same file is ignored.
	w.handleCandidate(context.Background(), path, handle)
	assert.Len(t, handled, 1)
}

func TestHandleCandidateHandlerErrorNotFatal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "new.mp4")
	writeFile(t, path)

	w, err := New(dir, 10*time.Millisecond, newMemStore(), testLogger())
	require.NoError(t, err)
	w.poll = 5 * time.Millisecond

	handle := func(context.Context, string) error { return errors.New("upload failed") }

	// Must not panic or propagate.
	w.handleCandidate(context.Background(), path, handle)
}

func TestEnqueueDedupesPendingPath(t *testing.T) {
	w, err := New(t.TempDir(), time.Second, newMemStore(), testLogger())
	require.NoError(t, err)

	path := "/drop/new.mp4"
	w.enqueue(path)
	w.enqueue(path)
	w.enqueue(path)

	assert.Len(t, w.candidates, 1, "repeated events for a pending file queue once")

	// Once the worker has taken the path, new events queue again.
	<-w.candidates
	w.mu.Lock()
	delete(w.pending, path)
	w.mu.Unlock()

	w.enqueue(path)
	assert.Len(t, w.candidates, 1)
}

func TestEnqueueFullQueueDropsAndForgets(t *testing.T) {
	w, err := New(t.TempDir(), time.Second, newMemStore(), testLogger())
	require.NoError(t, err)

	for i := range candidateQueueSize {
		w.enqueue(fmt.Sprintf("/drop/clip%d.mp4", i))
	}
	require.Len(t, w.candidates, candidateQueueSize)

	overflow := "/drop/overflow.mp4"
	w.enqueue(overflow)
	assert.Len(t, w.candidates, candidateQueueSize)

	// The dropped path is not stuck in pending: the next event re-queues it.
	<-w.candidates
	w.enqueue(overflow)
	assert.Contains(t, drain(w.candidates), overflow)
}

func drain(ch chan string) []string {
	var out []string

	for {
		select {
		case p := <-ch:
			out = append(out, p)
		default:
			return out
		}
	}
}

func TestWaitStableVanishedFile(t *testing.T) {
	err := waitStable(context.Background(),
		filepath.Join(t.TempDir(), "gone.mp4"), 10*time.Millisecond, 5*time.Millisecond)
	assert.Error(t, err)
}

func TestWaitStableGrowingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grow.mp4")
	writeFile(t, path)

	done := make(chan error, 1)
	go func() {
		done <- waitStable(context.Background(), path, 50*time.Millisecond, 10*time.Millisecond)
	}()

	// Keep appending for a while, then stop and let it settle.
	for range 3 {
		time.Sleep(20 * time.Millisecond)

		f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
		require.NoError(t, err)
		_, err = f.WriteString("more")
		require.NoError(t, err)
		require.NoError(t, f.Close())
	}

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("waitStable never returned")
	}
}

func TestWaitStableCanceled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file.mp4")
	writeFile(t, path)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := waitStable(ctx, path, time.Hour, time.Millisecond)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunDetectsNewFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "old.mp4"))

	store := newMemStore()
	w, err := New(dir, 20*time.Millisecond, store, testLogger())
	require.NoError(t, err)
	w.poll = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handled := make(chan string, 1)
	handle := func(_ context.Context, p string) error {
		handled <- p
		return nil
	}

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, handle) }()

	// Give Run time to mark existing files and register the watch.
	time.Sleep(100 * time.Millisecond)

	newPath := filepath.Join(dir, "fresh.mp4")
	writeFile(t, newPath)

	select {
	case got := <-handled:
		assert.Equal(t, newPath, got)
	case <-time.After(5 * time.Second):
		t.Fatal("new file was never handled")
	}

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop on cancel")
	}
}
