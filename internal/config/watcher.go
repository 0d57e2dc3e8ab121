package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// Watcher reloads the configuration when its file changes on disk. The parent
// directory is watched rather than the file itself, since editors and atomic
// writers replace the inode.
type Watcher struct {
	loader   *Loader
	onReload func(*Config)
	watcher  *fsnotify.Watcher
	stopCh   chan struct{}
}

// NewWatcher creates a watcher that invokes onReload with each successfully
// loaded configuration.
func NewWatcher(loader *Loader, onReload func(*Config)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fs watcher: %w", err)
	}

	return &Watcher{
		loader:   loader,
		onReload: onReload,
		watcher:  fw,
		stopCh:   make(chan struct{}),
	}, nil
}

// Start begins watching. It fails when the config directory does not exist.
func (w *Watcher) Start() error {
	path, err := w.loader.Path()
	if err != nil {
		return err
	}

	if err := w.watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to watch config directory: %w", err)
	}

	go w.run(path)

	log.Info().Str("path", path).Msg("Config watcher started")
	return nil
}

// Stop ends watching and releases the underlying notifier.
func (w *Watcher) Stop() error {
	close(w.stopCh)
	return w.watcher.Close()
}

func (w *Watcher) run(path string) {
	// Debounce bursts: editors fire several events per save.
	var pending *time.Timer
	reload := make(chan struct{}, 1)

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if pending != nil {
				pending.Stop()
			}
			pending = time.AfterFunc(200*time.Millisecond, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})

		case <-reload:
			cfg, err := w.loader.Load()
			if err != nil {
				log.Warn().Err(err).Msg("Config reload failed, keeping previous configuration")
				continue
			}
			log.Info().Msg("Config reloaded")
			w.onReload(cfg)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("Config watcher error")

		case <-w.stopCh:
			return
		}
	}
}
