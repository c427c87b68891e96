// Package history persists upload outcomes in an embedded SQLite database:
// what was uploaded, when, its final status and video ID. The watch command
// also uses it to remember which files it has already handled.
package history

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // Pure Go SQLite driver, registers as "sqlite".
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// keepEntries is how many upload records survive pruning. Old entries are
// dropped after each new upload so the database never grows unbounded.
const keepEntries = 100

// Upload statuses.
const (
	StatusUploading = "uploading"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCanceled  = "canceled"
)

// Entry is one recorded upload.
type Entry struct {
	ID          int64
	Path        string
	Title       string
	Description string
	Tags        []string
	CategoryID  string
	Privacy     string
	Size        int64
	Uploaded    int64
	Status      string
	VideoID     string
	Error       string
	StartedAt   time.Time
	FinishedAt  time.Time // zero while still uploading
}

// Store is a SQLite-backed history database with WAL mode.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// Open opens (creating if needed) the history database at dbPath and
// applies pending migrations. Use ":memory:" for tests.
func Open(dbPath string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
			return nil, fmt.Errorf("history: creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("history: opening database: %w", err)
	}

	ctx := context.Background()

	if err := setPragmas(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	if err := runMigrations(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}

	logger.Debug("history database ready", slog.String("path", dbPath))

	return &Store{db: db, logger: logger, now: time.Now}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// setPragmas configures SQLite for WAL mode and safety.
func setPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = FULL",
		"PRAGMA foreign_keys = ON",
	}

	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("history: %s: %w", p, err)
		}
	}

	return nil
}

// runMigrations applies all pending schema migrations using the goose v3
// Provider API (no global state, context-aware).
func runMigrations(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	subFS, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("history: creating migration sub-filesystem: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, db, subFS)
	if err != nil {
		return fmt.Errorf("history: creating migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("history: running migrations: %w", err)
	}

	for _, r := range results {
		logger.Debug("applied migration",
			slog.String("source", r.Source.Path),
			slog.Int64("duration_ms", r.Duration.Milliseconds()),
		)
	}

	return nil
}

// Begin records a new upload in the uploading state and returns its row ID.
// Only the metadata fields of e are used; status and timestamps are set
// here. Old entries beyond the retention limit are pruned at the same time.
func (s *Store) Begin(e Entry) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO uploads (path, title, description, tags, category_id, privacy, size, status, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Path, e.Title, e.Description, joinTags(e.Tags), e.CategoryID, e.Privacy,
		e.Size, StatusUploading, s.now().Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("history: inserting upload: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("history: reading upload id: %w", err)
	}

	if err := s.prune(); err != nil {
		s.logger.Warn("pruning history failed", slog.String("error", err.Error()))
	}

	return id, nil
}

// Progress updates the uploaded byte count for an in-flight upload.
func (s *Store) Progress(id, uploaded int64) error {
	_, err := s.db.Exec(`UPDATE uploads SET uploaded = ? WHERE id = ?`, uploaded, id)
	if err != nil {
		return fmt.Errorf("history: updating progress: %w", err)
	}

	return nil
}

// Finish records an upload's terminal state.
func (s *Store) Finish(id int64, status, videoID, errMsg string) error {
	_, err := s.db.Exec(
		`UPDATE uploads SET status = ?, video_id = ?, error = ?, finished_at = ? WHERE id = ?`,
		status, videoID, errMsg, s.now().Unix(), id,
	)
	if err != nil {
		return fmt.Errorf("history: finishing upload: %w", err)
	}

	return nil
}

// Get returns one entry by ID.
func (s *Store) Get(id int64) (*Entry, error) {
	row := s.db.QueryRow(
		`SELECT id, path, title, description, tags, category_id, privacy, size,
		        uploaded, status, video_id, error, started_at, finished_at
		 FROM uploads WHERE id = ?`, id,
	)

	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("history: no entry with id %d", id)
	}

	return e, err
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(limit int) ([]Entry, error) {
	rows, err := s.db.Query(
		`SELECT id, path, title, description, tags, category_id, privacy, size,
		        uploaded, status, video_id, error, started_at, finished_at
		 FROM uploads ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("history: listing entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry

	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}

		entries = append(entries, *e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: reading entries: %w", err)
	}

	return entries, nil
}

// SeenFile reports whether the watch command has already handled a file.
func (s *Store) SeenFile(path string) (bool, error) {
	var n int

	err := s.db.QueryRow(`SELECT COUNT(*) FROM seen_files WHERE path = ?`, path).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("history: checking seen file: %w", err)
	}

	return n > 0, nil
}

// MarkSeen remembers a file so the watch command skips it from now on.
// Marking an already-seen file is a no-op.
func (s *Store) MarkSeen(path string) error {
	_, err := s.db.Exec(
		`INSERT INTO seen_files (path, marked_at) VALUES (?, ?)
		 ON CONFLICT(path) DO NOTHING`,
		path, s.now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("history: marking file seen: %w", err)
	}

	return nil
}

// prune drops upload entries beyond the retention limit, oldest first.
func (s *Store) prune() error {
	_, err := s.db.Exec(
		`DELETE FROM uploads WHERE id NOT IN
		   (SELECT id FROM uploads ORDER BY id DESC LIMIT ?)`,
		keepEntries,
	)

	return err
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*Entry, error) {
	var (
		e          Entry
		tags       string
		startedAt  int64
		finishedAt sql.NullInt64
	)

	err := row.Scan(
		&e.ID, &e.Path, &e.Title, &e.Description, &tags, &e.CategoryID,
		&e.Privacy, &e.Size, &e.Uploaded, &e.Status, &e.VideoID, &e.Error,
		&startedAt, &finishedAt,
	)
	if err != nil {
		return nil, err
	}

	e.Tags = splitTags(tags)

	e.StartedAt = time.Unix(startedAt, 0).UTC()
	if finishedAt.Valid {
		e.FinishedAt = time.Unix(finishedAt.Int64, 0).UTC()
	}

	return &e, nil
}

// Tags are stored comma-joined; YouTube tags cannot contain commas.
func joinTags(tags []string) string {
	return strings.Join(tags, ",")
}

func splitTags(s string) []string {
	if s == "" {
		return nil
	}

	return strings.Split(s, ",")
}
