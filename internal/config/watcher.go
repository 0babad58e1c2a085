package config

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watcher reloads the configuration when the config file changes on disk
type Watcher struct {
	watcher    *fsnotify.Watcher
	loader     *Loader
	logger     zerolog.Logger
	onChange   func(*Config)
	configPath string
	debounce   time.Duration
	timer      *time.Timer
	timerMu    sync.Mutex
	stopCh     chan struct{}
	stopOnce   sync.Once
}

// NewWatcher creates a watcher for the given config file. onChange is
// invoked with the freshly loaded configuration after each change that
// parses and validates.
func NewWatcher(configPath string, logger zerolog.Logger, onChange func(*Config)) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		watcher:    watcher,
		loader:     NewLoader(configPath),
		logger:     logger,
		onChange:   onChange,
		configPath: configPath,
		debounce:   500 * time.Millisecond,
		stopCh:     make(chan struct{}),
	}

	// Watch the directory; editors replace files rather than write in place.
	if err := watcher.Add(filepath.Dir(configPath)); err != nil {
		watcher.Close()
		return nil, err
	}

	go w.run()

	return w, nil
}

// Stop stops the watcher
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.stopCh)
		err = w.watcher.Close()
	})
	return err
}

// run processes file system events
func (w *Watcher) run() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			if filepath.Clean(event.Name) != filepath.Clean(w.configPath) {
				continue
			}

			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				w.logger.Debug().
					Str("file", filepath.Base(event.Name)).
					Str("op", event.Op.String()).
					Msg("Config change detected")

				w.scheduleReload()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Msg("Config watcher error")

		case <-w.stopCh:
			return
		}
	}
}

// scheduleReload debounces the reload so editors that write in bursts
// trigger a single reload.
func (w *Watcher) scheduleReload() {
	w.timerMu.Lock()
	defer w.timerMu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.reload)
}

func (w *Watcher) reload() {
	cfg, err := w.loader.Load()
	if err != nil {
		w.logger.Error().Err(err).Msg("Config reload failed, keeping current settings")
		return
	}

	w.logger.Info().
		Dur("call_timeout", cfg.Execution.CallTimeout).
		Dur("batch_timeout", cfg.Execution.BatchTimeout).
		Int("pool_size", cfg.Execution.PoolSize).
		Msg("Config reloaded")

	if w.onChange != nil {
		w.onChange(cfg)
	}
}
