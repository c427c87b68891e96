package history

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(filepath.Join(t.TempDir(), "history.db"), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	return s
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestUploadLifecycle(t *testing.T) {
	s := testStore(t)

	id, err := s.Begin(Entry{
		Path:        "/videos/clip.mp4",
		Title:       "My Clip",
		Description: "A day at the lake",
		Tags:        []string{"lake", "summer"},
		CategoryID:  "22",
		Privacy:     "private",
		Size:        5000,
	})
	require.NoError(t, err)

	require.NoError(t, s.Progress(id, 2500))
	require.NoError(t, s.Finish(id, StatusCompleted, "vid123", ""))

	e, err := s.Get(id)
	require.NoError(t, err)

	assert.Equal(t, "/videos/clip.mp4", e.Path)
	assert.Equal(t, "My Clip", e.Title)
	assert.Equal(t, "A day at the lake", e.Description)
	assert.Equal(t, []string{"lake", "summer"}, e.Tags)
	assert.Equal(t, "22", e.CategoryID)
	assert.Equal(t, "private", e.Privacy)
	assert.Equal(t, int64(5000), e.Size)
	assert.Equal(t, int64(2500), e.Uploaded)
	assert.Equal(t, StatusCompleted, e.Status)
	assert.Equal(t, "vid123", e.VideoID)
	assert.Empty(t, e.Error)
	assert.False(t, e.StartedAt.IsZero())
	assert.False(t, e.FinishedAt.IsZero())
}

func TestFailedUploadRecordsError(t *testing.T) {
	s := testStore(t)

	id, err := s.Begin(Entry{Path: "/videos/clip.mp4", Title: "My Clip", Privacy: "public", Size: 5000})
	require.NoError(t, err)

	require.NoError(t, s.Finish(id, StatusFailed, "", "quota exceeded"))

	e, err := s.Get(id)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, e.Status)
	assert.Equal(t, "quota exceeded", e.Error)
	assert.Empty(t, e.VideoID)
}

func TestGetUnknownID(t *testing.T) {
	s := testStore(t)

	_, err := s.Get(999)
	assert.ErrorContains(t, err, "no entry with id 999")
}

func TestRecentNewestFirst(t *testing.T) {
	s := testStore(t)

	for i := range 5 {
		_, err := s.Begin(Entry{
			Path:    fmt.Sprintf("/videos/%d.mp4", i),
			Title:   fmt.Sprintf("Clip %d", i),
			Privacy: "private",
			Size:    100,
		})
		require.NoError(t, err)
	}

	entries, err := s.Recent(3)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, "Clip 4", entries[0].Title)
	assert.Equal(t, "Clip 3", entries[1].Title)
	assert.Equal(t, "Clip 2", entries[2].Title)
}

func TestRecentEmpty(t *testing.T) {
	s := testStore(t)

	entries, err := s.Recent(10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPruneKeepsNewest(t *testing.T) {
	s := testStore(t)

	for i := range keepEntries + 20 {
		_, err := s.Begin(Entry{
			Path:    fmt.Sprintf("/videos/%d.mp4", i),
			Title:   fmt.Sprintf("Clip %d", i),
			Privacy: "private",
			Size:    100,
		})
		require.NoError(t, err)
	}

	entries, err := s.Recent(keepEntries * 2)
	require.NoError(t, err)
	require.Len(t, entries, keepEntries)

	// Newest entry survives, oldest was pruned.
	assert.Equal(t, fmt.Sprintf("Clip %d", keepEntries+19), entries[0].Title)
	assert.Equal(t, "Clip 20", entries[len(entries)-1].Title)
}

func TestSeenFiles(t *testing.T) {
	s := testStore(t)

	seen, err := s.SeenFile("/watch/a.mp4")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, s.MarkSeen("/watch/a.mp4"))

	seen, err = s.SeenFile("/watch/a.mp4")
	require.NoError(t, err)
	assert.True(t, seen)

	// Marking again is a no-op.
	require.NoError(t, s.MarkSeen("/watch/a.mp4"))
}

func TestReopenPersists(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "history.db")

	s, err := Open(dbPath, testLogger())
	require.NoError(t, err)

	id, err := s.Begin(Entry{Path: "/videos/clip.mp4", Title: "My Clip", Privacy: "private", Size: 100})
	require.NoError(t, err)
	require.NoError(t, s.Finish(id, StatusCompleted, "vid1", ""))
	require.NoError(t, s.Close())

	s, err = Open(dbPath, testLogger())
	require.NoError(t, err)
	defer s.Close()

	e, err := s.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "vid1", e.VideoID)
}

func TestTimestampsUTC(t *testing.T) {
	s := testStore(t)
	s.now = func() time.Time { return time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC) }

	id, err := s.Begin(Entry{Path: "/videos/clip.mp4", Title: "My Clip", Privacy: "private", Size: 100})
	require.NoError(t, err)

	e, err := s.Get(id)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC), e.StartedAt)
	assert.True(t, e.FinishedAt.IsZero())
}
