// Package tokenfile handles reading and writing the saved OAuth2 token.
// The file stores the token alongside the scope set it was granted and
// cached API metadata (channel title). It is a leaf package imported by
// both auth/ and the CLI so neither depends on the other for persistence.
package tokenfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/oauth2"
)

// FilePerms restricts the token file to owner-only read/write.
const FilePerms = 0o600

// DirPerms is used when creating the directory holding the token file.
const DirPerms = 0o700

// File is the on-disk format. Scopes records what the user consented to
// when the token was issued — if the application later requires scopes the
// saved token does not cover, the token is unusable and a fresh login is
// needed.
type File struct {
	Token  *oauth2.Token     `json:"token"`
	Scopes []string          `json:"scopes,omitempty"`
	Meta   map[string]string `json:"meta,omitempty"`
}

// CoversScopes reports whether the saved grant includes every required scope.
func (f *File) CoversScopes(required []string) bool {
	granted := make(map[string]bool, len(f.Scopes))
	for _, s := range f.Scopes {
		granted[s] = true
	}

	for _, s := range required {
		if !granted[s] {
			return false
		}
	}

	return true
}

// Load reads a saved token file from disk. Returns (nil, nil) if the file
// does not exist, so callers can distinguish "not logged in" from a corrupt
// file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil //nolint:nilnil // sentinel for "not found"
	}

	if err != nil {
		return nil, fmt.Errorf("tokenfile: reading %s: %w", path, err)
	}

	var tf File
	if err := json.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("tokenfile: decoding %s: %w", path, err)
	}

	if tf.Token == nil {
		return nil, fmt.Errorf("tokenfile: %s missing token field (re-login required)", path)
	}

	return &tf, nil
}

// Save writes a token file to disk atomically (write-to-temp + rename)
// with 0600 permissions. Never logs token values.
func Save(path string, tf *File) error {
	data, err := json.MarshalIndent(tf, "", "  ")
	if err != nil {
		return fmt.Errorf("tokenfile: encoding: %w", err)
	}

	dir := filepath.Dir(path)
	if mkErr := os.MkdirAll(dir, DirPerms); mkErr != nil {
		return fmt.Errorf("tokenfile: creating directory %s: %w", dir, mkErr)
	}

	// Atomic write: temp file in the same directory, then rename.
	// Same directory guarantees same filesystem for rename(2).
	tmp, err := os.CreateTemp(dir, ".token-*.tmp")
	if err != nil {
		return fmt.Errorf("tokenfile: creating temp file: %w", err)
	}

	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if err := os.Chmod(tmpPath, FilePerms); err != nil {
		tmp.Close()
		return fmt.Errorf("tokenfile: setting permissions: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("tokenfile: writing: %w", err)
	}

	// Flush to stable storage before rename so a power loss between close
	// and rename cannot leave an empty or partial token file at the final
	// path.
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("tokenfile: syncing: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("tokenfile: closing: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("tokenfile: renaming: %w", err)
	}

	success = true

	return nil
}

// SaveToken replaces just the token in an existing file, keeping scopes and
// metadata. Used by the silent-refresh path, which only ever sees the token.
func SaveToken(path string, tok *oauth2.Token) error {
	existing, err := Load(path)
	if err != nil {
		return err
	}

	if existing == nil {
		existing = &File{}
	}

	existing.Token = tok

	return Save(path, existing)
}
