package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watcher reloads the rails config when its file changes and hands every
// valid result to onChange. Invalid configs are logged and skipped so the
// caller keeps its current pipeline.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	onChange func(*RailsConfig) error
	debounce time.Duration
	logger   *zerolog.Logger
}

func NewWatcher(path string, onChange func(*RailsConfig) error, logger *zerolog.Logger) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create config watcher: %w", err)
	}

	// Watch the directory: editors replace files by rename.
	if err := w.Add(filepath.Dir(path)); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", path, err)
	}

	return &Watcher{
		path:     filepath.Clean(path),
		watcher:  w,
		onChange: onChange,
		debounce: 200 * time.Millisecond,
		logger:   logger,
	}, nil
}

// Run blocks until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			w.reload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn().Err(err).Str("path", w.path).Msg("config watcher error")
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := LoadRailsConfigFile(w.path)
	if err != nil {
		w.logger.Error().Err(err).Str("path", w.path).Msg("rails config reload rejected, keeping current pipeline")
		return
	}

	if err := w.onChange(cfg); err != nil {
		w.logger.Error().Err(err).Str("path", w.path).Msg("failed to apply reloaded rails config")
		return
	}

	w.logger.Info().Str("path", w.path).Int("rails", len(cfg.Rails)).Msg("rails config reloaded")
}
