package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDebounce is how long the file must stay quiet before it is reloaded.
// Editors save with several events (truncate, write, chmod, rename).
const reloadDebounce = 250 * time.Millisecond

// Watch monitors the config file at path and calls onChange with the newly
// loaded Config once per save. It runs until ctx is cancelled.
//
// The parent directory is watched so saves that replace the file through a
// rename are seen. Events for the file within reloadDebounce of each other
// produce a single reload. A reload that fails (invalid YAML, failed
// validation) is logged, onChange is not called and the running config
// stays in effect.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	target, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("config: watch %s: %w", path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config: watch %s: %w", path, err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("config: watch %s: %w", path, err)
	}

	slog.Info("config: watching for changes", "path", target)

	var settle <-chan time.Time
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
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			settle = time.After(reloadDebounce)

		case <-settle:
			settle = nil
			cfg, err := Load(target)
			if err != nil {
				slog.Error("config: reload failed, keeping previous config",
					"path", target, "err", err)
				continue
			}
			n := cfg.Notifier
			slog.Info("config: reloaded",
				"path", target,
				"presenters", len(n.Presenters),
				"cooldown", n.Cooldown,
				"history_size", n.History.Size,
				"log_level", n.Log.Level,
			)
			onChange(cfg)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("config: watcher error", "path", target, "err", err)
		}
	}
}
