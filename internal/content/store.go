package content

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
)

// Store holds the catalog currently served. Readers never block; a reload
// swaps the pointer.
type Store struct {
	current atomic.Pointer[Catalog]
	path    string
	logger  *slog.Logger
}

// NewStore loads the catalog from path, or the embedded catalog when path
// is empty.
func NewStore(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{path: path, logger: logger}
	var (
		c   *Catalog
		err error
	)
	if path == "" {
		c, err = Default()
	} else {
		c, err = Load(path)
	}
	if err != nil {
		return nil, err
	}
	s.current.Store(c)
	return s, nil
}

// StaticStore wraps an already decoded catalog.
func StaticStore(c *Catalog) *Store {
	s := &Store{logger: slog.Default()}
	s.current.Store(c)
	return s
}

// Catalog returns the current catalog.
func (s *Store) Catalog() *Catalog {
	return s.current.Load()
}

// Reload re-reads the external catalog file. The previous catalog stays
// in place when the new one fails to load.
func (s *Store) Reload() error {
	if s.path == "" {
		return nil
	}
	c, err := Load(s.path)
	if err != nil {
		return err
	}
	s.current.Store(c)
	return nil
}

// Watch reloads the catalog whenever its file is written or replaced. It
// returns when ctx is done. Watching the embedded catalog is a no-op.
func (s *Store) Watch(ctx context.Context) error {
	if s.path == "" {
		return nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer func() { _ = w.Close() }()

	// editors replace files on save, so watch the directory
	dir := filepath.Dir(s.path)
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}
	target := filepath.Clean(s.path)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target || !(ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
				continue
			}
			if err := s.Reload(); err != nil {
				s.logger.Warn("catalog reload failed, keeping previous", "path", s.path, "error", err)
				continue
			}
			s.logger.Info("catalog reloaded", "path", s.path, "landmarks", len(s.Catalog().Landmarks))
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("catalog watcher error", "error", err)
		}
	}
}
