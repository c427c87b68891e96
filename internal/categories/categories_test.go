package categories

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCache(t *testing.T) *Cache {
	t.Helper()
	return NewCache(filepath.Join(t.TempDir(), "categories.json"))
}

func TestLoadMissingFileFallsBack(t *testing.T) {
	c := testCache(t)

	cats := c.Load("US")
	assert.Equal(t, Defaults, cats)
	assert.False(t, c.Fresh("US"))
}

func TestLoadCorruptFileFallsBack(t *testing.T) {
	c := testCache(t)
	require.NoError(t, os.WriteFile(c.path, []byte("{not json"), 0o644))

	assert.Equal(t, Defaults, c.Load("US"))
}

func TestStoreAndLoadRoundtrip(t *testing.T) {
	c := testCache(t)
	fetched := map[string]string{"Gaming": "20", "Music": "10"}

	require.NoError(t, c.Store("US", fetched))

	assert.True(t, c.Fresh("US"))
	assert.Equal(t, fetched, c.Load("US"))
}

func TestLoadExpiredFallsBack(t *testing.T) {
	c := testCache(t)
	require.NoError(t, c.Store("US", map[string]string{"Gaming": "20"}))

	c.now = func() time.Time { return time.Now().Add(cacheTTL + time.Hour) }

	assert.False(t, c.Fresh("US"))
	assert.Equal(t, Defaults, c.Load("US"))
}

func TestLoadRegionMismatchFallsBack(t *testing.T) {
	c := testCache(t)
	require.NoError(t, c.Store("US", map[string]string{"Gaming": "20"}))

	assert.False(t, c.Fresh("DE"))
	assert.Equal(t, Defaults, c.Load("DE"))
}

func TestLoadReturnsCopyOfDefaults(t *testing.T) {
	c := testCache(t)

	cats := c.Load("US")
	cats["Mutated"] = "999"

	_, ok := Defaults["Mutated"]
	assert.False(t, ok)
}

func TestStoreCreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deep", "nested", "categories.json")
	c := NewCache(path)

	require.NoError(t, c.Store("US", map[string]string{"Gaming": "20"}))
	assert.FileExists(t, path)
}

func TestNamesSorted(t *testing.T) {
	names := Names(map[string]string{"Music": "10", "Comedy": "23", "Gaming": "20"})
	assert.Equal(t, []string{"Comedy", "Gaming", "Music"}, names)
}

func TestResolve(t *testing.T) {
	cats := map[string]string{"Gaming": "20", "Music": "10"}

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"by name", "Gaming", "20", false},
		{"by id", "10", "10", false},
		{"unknown name", "Cooking", "", true},
		{"unknown id", "99", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(cats, tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
