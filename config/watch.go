package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceDelay coalesces rapid successive writes (editors often write a
// file in two or three syscalls) into a single reload.
const debounceDelay = 100 * time.Millisecond

// WatchFile watches path's containing directory for writes to path itself
// — fsnotify can't watch a single file reliably on every platform — and
// calls onChange with the freshly reloaded Config after each debounced
// change. It returns a closer that stops the watch; watch errors (the
// directory disappearing, a bad reload) are logged and do not stop the
// loop, since an operator can still fix the file in place.
func WatchFile(ctx context.Context, path string, onChange func(*Config)) (func() error, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("config: resolving watch path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: creating file watcher: %w", err)
	}

	dir := filepath.Dir(absPath)
	file := filepath.Base(absPath)
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("config: watching directory %s: %w", dir, err)
	}

	go watchLoop(ctx, watcher, absPath, file, onChange)

	slog.Info("watching config file for changes", "path", absPath)
	return watcher.Close, nil
}

func watchLoop(ctx context.Context, watcher *fsnotify.Watcher, absPath, file string, onChange func(*Config)) {
	defer watcher.Close()

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != file {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(debounceDelay, func() { reload(absPath, onChange) })

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("config watcher error", "error", err)
		}
	}
}

func reload(path string, onChange func(*Config)) {
	cfg, err := Load(path)
	if err != nil {
		slog.Warn("config reload failed, keeping previous configuration", "path", path, "error", err)
		return
	}
	slog.Info("config file changed, reloaded", "path", path)
	onChange(cfg)
}
