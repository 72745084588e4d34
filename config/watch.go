package config

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/m4xw311/termlinks/errors"
)

// Watch reloads the configuration whenever one of paths is written, created,
// renamed or removed, and passes the result to onChange. Reload failures are
// logged and the previous configuration stays in effect. Watch blocks until
// ctx is done.
//
// The parent directories are watched rather than the files so that editors
// replacing a file by rename, and files created after startup, are seen.
func Watch(ctx context.Context, logger *slog.Logger, onChange func(*Config), paths ...string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrapf(err, "could not create config watcher")
	}
	defer watcher.Close()

	watched := make(map[string]bool)
	dirs := make(map[string]bool)
	for _, path := range paths {
		path = filepath.Clean(path)
		watched[path] = true
		dir := filepath.Dir(path)
		if dirs[dir] {
			continue
		}
		if _, err := os.Stat(dir); err != nil {
			logger.Debug("config directory missing, not watching", "dir", dir)
			continue
		}
		if err := watcher.Add(dir); err != nil {
			return errors.Wrapf(err, "could not watch %s", dir)
		}
		dirs[dir] = true
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !watched[filepath.Clean(event.Name)] {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
				continue
			}
			cfg, err := Load(paths...)
			if err != nil {
				logger.Error("config reload failed, keeping previous config", "file", event.Name, "err", err)
				continue
			}
			logger.Info("config reloaded", "file", event.Name)
			onChange(cfg)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("config watcher error", "err", err)
		}
	}
}
