package config

import (
	"path/filepath"
	"strings"
	"sync"
	"time"

	"parity/internal/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Watcher re-reads the config file on change and re-applies the settings
// that are safe to adjust at runtime (currently the log level).
type Watcher struct {
	path string

	mu     sync.Mutex
	closed bool
	fsw    *fsnotify.Watcher
	last   time.Time
}

// Watch starts watching path. Callers should Close the returned watcher on shutdown.
func Watch(path string) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		fsw.Close()
		return nil, err
	}
	w := &Watcher{path: abs, fsw: fsw}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	for {
		select {
		case evt, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(evt.Name) != w.path {
				continue
			}
			if !evt.Has(fsnotify.Write) && !evt.Has(fsnotify.Create) {
				continue
			}
			w.mu.Lock()
			// Editors fire bursts of events for one save.
			if time.Since(w.last) < 500*time.Millisecond {
				w.mu.Unlock()
				continue
			}
			w.last = time.Now()
			w.mu.Unlock()
			w.reload()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logger.Warnf("config watcher error: %v", err)
		}
	}
}

func (w *Watcher) reload() {
	v := viper.New()
	v.SetConfigFile(w.path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		logger.Warnf("config reload failed (%s): %v", w.path, err)
		return
	}
	level := strings.TrimSpace(v.GetString("app.log_level"))
	if level != "" {
		logger.SetLevel(level)
		logger.Infof("config reloaded: log_level=%s", level)
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	return w.fsw.Close()
}
