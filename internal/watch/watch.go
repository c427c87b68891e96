// Package watch monitors a directory for new video files and hands each
// one to an upload handler once it has stopped growing. Files present when
// the watch starts are remembered but not uploaded, so restarting the
// watcher never re-uploads old footage.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"

	"github.com/ytput/ytput/internal/uploader"
)

// statePollInterval is how often a settling file's size is re-checked.
const statePollInterval = time.Second

// candidateQueueSize bounds the backlog of files waiting to settle and
// upload. Settling and uploading can take minutes, so the event loop hands
// candidates off through this queue instead of processing them inline —
// otherwise a long upload would stall event consumption and risk
// overflowing the kernel notification buffer.
const candidateQueueSize = 64

// Store remembers which files were already handled. *history.Store
// implements it.
type Store interface {
	SeenFile(path string) (bool, error)
	MarkSeen(path string) error
}

// Handler processes one settled video file, typically by uploading it.
type Handler func(ctx context.Context, path string) error

// Watcher monitors one directory, non-recursively.
type Watcher struct {
	dir    string
	settle time.Duration
	poll   time.Duration
	store  Store
	logger *slog.Logger

	candidates chan string

	mu      sync.Mutex
	pending map[string]bool
}

// New builds a watcher for dir. settle is how long a file's size must stay
// unchanged before it counts as fully written.
func New(dir string, settle time.Duration, store Store, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}

	if !info.IsDir() {
		return nil, fmt.Errorf("watch: %s is not a directory", dir)
	}

	return &Watcher{
		dir:        dir,
		settle:     settle,
		poll:       statePollInterval,
		store:      store,
		logger:     logger,
		candidates: make(chan string, candidateQueueSize),
		pending:    make(map[string]bool),
	}, nil
}

// Run watches until the context is canceled, invoking handle for each new
// settled video file. Handler errors are logged, not fatal: one failed
// upload must not stop the watch.
func (w *Watcher) Run(ctx context.Context, handle Handler) error {
	if err := w.markExisting(); err != nil {
		return err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: creating watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(w.dir); err != nil {
		return fmt.Errorf("watch: watching %s: %w", w.dir, err)
	}

	w.logger.Info("watching for new videos",
		slog.String("dir", w.dir),
		slog.Duration("settle", w.settle),
	)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return w.eventLoop(ctx, fsw.Events)
	})

	g.Go(func() error {
		return w.candidateLoop(ctx, handle)
	})

	g.Go(func() error {
		return w.errorLoop(ctx, fsw.Errors)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return nil
}

// markExisting records files already in the directory so they are never
// uploaded. Only new arrivals count.
func (w *Watcher) markExisting() error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("watch: scanning %s: %w", w.dir, err)
	}

	marked := 0

	for _, entry := range entries {
		if entry.IsDir() || !uploader.IsVideoFile(entry.Name()) {
			continue
		}

		if err := w.store.MarkSeen(filepath.Join(w.dir, entry.Name())); err != nil {
			return err
		}

		marked++
	}

	w.logger.Debug("marked pre-existing videos as seen", slog.Int("count", marked))

	return nil
}

// eventLoop consumes fsnotify events until the context is canceled. It only
// enqueues candidates; the slow settle-and-upload work runs in
// candidateLoop so the kernel event stream is always drained promptly.
func (w *Watcher) eventLoop(ctx context.Context, events <-chan fsnotify.Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-events:
			if !ok {
				return nil
			}

			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}

			if !uploader.IsVideoFile(ev.Name) {
				continue
			}

			w.enqueue(ev.Name)
		}
	}
}

// enqueue queues a path for settling unless it is already pending. A full
// queue drops the event; the next write to the file will re-enqueue it.
func (w *Watcher) enqueue(path string) {
	w.mu.Lock()
	if w.pending[path] {
		w.mu.Unlock()
		return
	}

	w.pending[path] = true
	w.mu.Unlock()

	select {
	case w.candidates <- path:
	default:
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()

		w.logger.Warn("candidate queue full, dropping event", slog.String("path", path))
	}
}

// candidateLoop settles and processes queued files one at a time.
func (w *Watcher) candidateLoop(ctx context.Context, handle Handler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case path := <-w.candidates:
			w.handleCandidate(ctx, path, handle)

			w.mu.Lock()
			delete(w.pending, path)
			w.mu.Unlock()
		}
	}
}

// errorLoop logs watcher errors. fsnotify errors are transient (e.g.
// kernel buffer overflow) and never stop the watch.
func (w *Watcher) errorLoop(ctx context.Context, errs <-chan error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err, ok := <-errs:
			if !ok {
				return nil
			}

			w.logger.Warn("filesystem watcher error", slog.String("error", err.Error()))
		}
	}
}

// handleCandidate settles and processes one file. Seen files and files
// that vanish while settling are skipped silently — recorders often write
// to a temp name and rename at the end.
func (w *Watcher) handleCandidate(ctx context.Context, path string, handle Handler) {
	seen, err := w.store.SeenFile(path)
	if err != nil {
		w.logger.Warn("checking seen state failed",
			slog.String("path", path), slog.String("error", err.Error()))

		return
	}

	if seen {
		return
	}

	w.logger.Info("new video detected, waiting for it to settle", slog.String("path", path))

	if err := waitStable(ctx, path, w.settle, w.poll); err != nil {
		if ctx.Err() == nil {
			w.logger.Debug("file vanished while settling", slog.String("path", path))
		}

		return
	}

	if err := w.store.MarkSeen(path); err != nil {
		w.logger.Warn("marking file seen failed",
			slog.String("path", path), slog.String("error", err.Error()))

		return
	}

	if err := handle(ctx, path); err != nil {
		w.logger.Error("handling new video failed",
			slog.String("path", path), slog.String("error", err.Error()))
	}
}

// waitStable blocks until the file's size has not changed for the settle
// duration, the file disappears, or the context is canceled.
func waitStable(ctx context.Context, path string, settle, poll time.Duration) error {
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	lastSize := int64(-1)
	stableSince := time.Now()

	for {
		info, err := os.Stat(path)
		if err != nil {
			return err
		}

		if info.Size() != lastSize {
			lastSize = info.Size()
			stableSince = time.Now()
		} else if time.Since(stableSince) >= settle {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
