package config

import (
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	apperrors "antbox-backend/pkg/errors"
)

// Watcher hot reloads the configuration file on change. Intended for
// development; production deployments restart on config changes.
type Watcher struct {
	path      string
	logger    *zap.Logger
	watcher   *fsnotify.Watcher
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	mu        sync.RWMutex
	current   *Config
	callbacks []func(*Config)
}

// NewWatcher starts watching the file behind the initial configuration.
func NewWatcher(path string, initial *Config, logger *zap.Logger) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, apperrors.Wrap(err, "creating file watcher")
	}
	if err := fsWatcher.Add(path); err != nil {
		fsWatcher.Close()
		return nil, apperrors.Wrap(err, "watching config file")
	}

	w := &Watcher{
		path:    path,
		logger:  logger,
		watcher: fsWatcher,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
		current: initial,
	}
	go w.loop()
	return w, nil
}

// Current returns the latest successfully loaded configuration.
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// OnReload registers a callback invoked with every successfully reloaded
// configuration.
func (w *Watcher) OnReload(fn func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, fn)
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	w.closeOnce.Do(func() {
		close(w.stop)
		w.watcher.Close()
		<-w.done
	})
	return nil
}

func (w *Watcher) loop() {
	defer close(w.done)
	for {
		select {
		case <-w.stop:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.reload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", zap.Error(err))
		}
	}
}

// reload re-runs the full load pipeline; a file that fails to parse or
// validate keeps the previous configuration in place.
func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		w.logger.Warn("ignoring invalid config reload", zap.Error(err))
		return
	}

	w.mu.Lock()
	w.current = cfg
	callbacks := make([]func(*Config), len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.mu.Unlock()

	w.logger.Info("configuration reloaded", zap.String("path", w.path))
	for _, fn := range callbacks {
		fn(cfg)
	}
}
