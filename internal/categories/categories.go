// Package categories manages the video category table: a name to API ID
// mapping fetched from the YouTube API and cached on disk, with a
// compiled-in fallback so uploads work offline and on a cold cache.
package categories

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// cacheTTL is how long a fetched category table stays valid. Categories
// change rarely; a week keeps API traffic near zero.
const cacheTTL = 7 * 24 * time.Hour

const (
	filePerms = 0o644
	dirPerms  = 0o700
)

// Defaults is the fallback category table, used when no fresh cache exists
// and the API is unreachable. IDs are YouTube's well-known category IDs.
var Defaults = map[string]string{
	"Film & Animation":      "1",
	"Autos & Vehicles":      "2",
	"Music":                 "10",
	"Pets & Animals":        "15",
	"Sports":                "17",
	"Travel & Events":       "19",
	"Gaming":                "20",
	"People & Blogs":        "22",
	"Comedy":                "23",
	"Entertainment":         "24",
	"News & Politics":       "25",
	"Howto & Style":         "26",
	"Education":             "27",
	"Science & Technology":  "28",
	"Nonprofits & Activism": "29",
}

// cacheFile is the on-disk shape of a cached category table.
type cacheFile struct {
	FetchedAt  time.Time         `json:"fetched_at"`
	Region     string            `json:"region"`
	Categories map[string]string `json:"categories"`
}

// Cache reads and writes the category cache file.
type Cache struct {
	path string
	now  func() time.Time
}

// NewCache builds a cache backed by the given file path.
func NewCache(path string) *Cache {
	return &Cache{path: path, now: time.Now}
}

// Load returns the cached category table if it is still fresh and matches
// the region, or Defaults otherwise. A missing or corrupt cache file is not
// an error, the fallback table covers it.
func (c *Cache) Load(region string) map[string]string {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return maps.Clone(Defaults)
	}

	var cf cacheFile
	if err := json.Unmarshal(data, &cf); err != nil {
		return maps.Clone(Defaults)
	}

	if cf.Region != region || len(cf.Categories) == 0 {
		return maps.Clone(Defaults)
	}

	if c.now().Sub(cf.FetchedAt) >= cacheTTL {
		return maps.Clone(Defaults)
	}

	return cf.Categories
}

// Fresh reports whether the cache holds an unexpired table for the region.
// Callers use it to decide whether an API refresh is worth the quota.
func (c *Cache) Fresh(region string) bool {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return false
	}

	var cf cacheFile
	if err := json.Unmarshal(data, &cf); err != nil {
		return false
	}

	return cf.Region == region && len(cf.Categories) > 0 && c.now().Sub(cf.FetchedAt) < cacheTTL
}

// Store writes a freshly fetched category table atomically: temp file in
// the same directory, then rename.
func (c *Cache) Store(region string, cats map[string]string) error {
	cf := cacheFile{FetchedAt: c.now(), Region: region, Categories: cats}

	data, err := json.MarshalIndent(cf, "", "  ")
	if err != nil {
		return fmt.Errorf("categories: encoding cache: %w", err)
	}

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, dirPerms); err != nil {
		return fmt.Errorf("categories: creating cache directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".categories-*.json")
	if err != nil {
		return fmt.Errorf("categories: creating temp cache file: %w", err)
	}

	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("categories: writing cache: %w", err)
	}

	if err := tmp.Chmod(filePerms); err != nil {
		tmp.Close()
		return fmt.Errorf("categories: setting cache permissions: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("categories: closing cache file: %w", err)
	}

	if err := os.Rename(tmpName, c.path); err != nil {
		return fmt.Errorf("categories: replacing cache file: %w", err)
	}

	return nil
}

// Names returns the category names of a table in sorted order, for display
// and for shell-completion candidates.
func Names(cats map[string]string) []string {
	names := make([]string, 0, len(cats))
	for name := range cats {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// Resolve maps a user-supplied category to an API ID. It accepts either an
// exact name from the table or a literal numeric ID already present in it.
func Resolve(cats map[string]string, nameOrID string) (string, error) {
	if id, ok := cats[nameOrID]; ok {
		return id, nil
	}

	for _, id := range cats {
		if id == nameOrID {
			return nameOrID, nil
		}
	}

	return "", fmt.Errorf("categories: unknown category %q (see the categories command)", nameOrID)
}
