package policy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the policy whenever its file changes and blocks until ctx is
// done. The parent directory is watched so that editors which replace the
// file by rename are picked up. A file that fails to parse is logged and the
// previous rules stay in effect.
func (s *Store) Watch(ctx context.Context) error {
	if s.path == "" {
		return errors.New("policy store has no backing file")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating policy watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(s.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	target := filepath.Clean(s.path)
	const debounce = 100 * time.Millisecond
	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
				timer.Reset(debounce)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("policy watcher error", "error", err)
		case <-timer.C:
			if err := s.Reload(); err != nil {
				slog.Warn("policy reload failed, keeping previous rules", "path", s.path, "error", err)
				continue
			}
			slog.Info("policy reloaded", "path", s.path, "departments", len(s.Departments()))
		}
	}
}
