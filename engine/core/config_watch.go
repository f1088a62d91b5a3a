package core

import (
	"context"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"
)

// WatchConfig re-parses the file at path whenever it is written and passes the
// new configuration to onChange. Invalid files are logged and skipped. It
// blocks until ctx is done.
func WatchConfig(ctx context.Context, path string, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to create config watcher")
	}
	defer watcher.Close()

	// Editors often replace the file instead of writing it, so the directory is watched.
	abs, err := filepath.Abs(path)
	if err != nil {
		return errors.Wrapf(err, "failed to resolve `%s`", path)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return errors.Wrapf(err, "failed to watch `%s`", filepath.Dir(abs))
	}
	LogDebug("watching config file %s", abs)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			cfg, err := LoadConfig(abs)
			if err != nil {
				LogWarn("ignoring config change: %s", err)
				continue
			}
			LogInfo("config reloaded from %s", abs)
			onChange(cfg)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			LogError("config watcher error: %s", err)
		}
	}
}
