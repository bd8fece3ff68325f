package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// DefaultReloadDebounce coalesces bursts of editor writes into one reload.
const DefaultReloadDebounce = 500 * time.Millisecond

// ErrNoWatchableDirs is returned when none of the config directories exist.
var ErrNoWatchableDirs = errors.New("config watcher: no existing config directory to watch")

// ReloadFunc receives each successfully reloaded config.
type ReloadFunc func(cfg *Config)

// Watcher reloads config files when they change on disk.
type Watcher struct {
	paths    []string
	debounce time.Duration
	onReload ReloadFunc
	logger   *log.Logger
	watcher  *fsnotify.Watcher

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewWatcher watches the directories holding paths. Files that do not exist yet are
// still picked up when created, as long as their directory exists.
func NewWatcher(paths []string, debounce time.Duration, onReload ReloadFunc, logger *log.Logger) (*Watcher, error) {
	if onReload == nil {
		return nil, errors.New("config watcher: reload callback is required")
	}
	if logger == nil {
		return nil, errors.New("config watcher: logger is required")
	}
	if debounce <= 0 {
		debounce = DefaultReloadDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	watched := 0
	seen := map[string]struct{}{}
	for _, path := range paths {
		dir := filepath.Dir(path)
		if _, ok := seen[dir]; ok {
			continue
		}
		seen[dir] = struct{}{}
		if _, err := os.Stat(dir); err != nil {
			continue
		}
		if err := fsw.Add(dir); err != nil {
			_ = fsw.Close()
			return nil, fmt.Errorf("watch config directory %q: %w", dir, err)
		}
		watched++
	}
	if watched == 0 {
		_ = fsw.Close()
		return nil, ErrNoWatchableDirs
	}

	return &Watcher{
		paths:    append([]string(nil), paths...),
		debounce: debounce,
		onReload: onReload,
		logger:   logger,
		watcher:  fsw,
		done:     make(chan struct{}),
	}, nil
}

// Start launches the event loop. It returns immediately.
func (w *Watcher) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.watch(ctx)
}

// Stop closes the underlying watcher and waits for the event loop to exit.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		w.wg.Wait()
		err = w.watcher.Close()
	})
	return err
}

func (w *Watcher) watch(ctx context.Context) {
	defer w.wg.Done()

	names := make(map[string]struct{}, len(w.paths))
	for _, path := range w.paths {
		names[filepath.Clean(path)] = struct{}{}
	}

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if _, tracked := names[filepath.Clean(event.Name)]; !tracked {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) {
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(w.debounce, func() {
					w.reload(ctx)
				})
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("config watcher error", "error", err)
		}
	}
}

func (w *Watcher) reload(ctx context.Context) {
	select {
	case <-w.done:
		return
	default:
	}

	cfg, err := LoadPaths(ctx, w.paths...)
	if err != nil {
		w.logger.Error("config reload rejected", "error", err)
		return
	}
	w.logger.Info("config reloaded", "sources", cfg.Sources)
	w.onReload(cfg)
}
