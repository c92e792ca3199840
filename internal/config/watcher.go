package config

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// FileWatcher watches a settings file and calls a handler with the freshly
// parsed settings after changes settle.
type FileWatcher struct {
	watcher       *fsnotify.Watcher
	path          string
	handler       func(*FileSettings)
	debounceDelay time.Duration
	debounceTimer *time.Timer
	debounceMu    sync.Mutex
	stopCh        chan struct{}
	stopOnce      sync.Once
}

// WatcherConfig configures the file watcher.
type WatcherConfig struct {
	Path          string
	Handler       func(*FileSettings)
	DebounceDelay time.Duration
}

// NewFileWatcher starts watching cfg.Path. The parent directory is watched
// so that editors replacing the file via rename are picked up.
func NewFileWatcher(cfg WatcherConfig) (*FileWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if cfg.DebounceDelay == 0 {
		cfg.DebounceDelay = 100 * time.Millisecond
	}

	abs, err := filepath.Abs(cfg.Path)
	if err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return nil, err
	}

	fw := &FileWatcher{
		watcher:       w,
		path:          abs,
		handler:       cfg.Handler,
		debounceDelay: cfg.DebounceDelay,
		stopCh:        make(chan struct{}),
	}
	go fw.loop()
	return fw, nil
}

// Stop stops the watcher. It is safe to call more than once.
func (fw *FileWatcher) Stop() {
	fw.stopOnce.Do(func() {
		close(fw.stopCh)
		fw.watcher.Close()

		fw.debounceMu.Lock()
		if fw.debounceTimer != nil {
			fw.debounceTimer.Stop()
		}
		fw.debounceMu.Unlock()
	})
}

func (fw *FileWatcher) loop() {
	for {
		select {
		case <-fw.stopCh:
			return
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != fw.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			fw.debounceMu.Lock()
			if fw.debounceTimer != nil {
				fw.debounceTimer.Stop()
			}
			fw.debounceTimer = time.AfterFunc(fw.debounceDelay, fw.reload)
			fw.debounceMu.Unlock()
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Str("path", fw.path).Msg("config watcher error")
		}
	}
}

func (fw *FileWatcher) reload() {
	select {
	case <-fw.stopCh:
		return
	default:
	}

	fs, err := ReadFile(fw.path)
	if err != nil {
		log.Warn().Err(err).Str("path", fw.path).Msg("config reload skipped")
		return
	}
	log.Info().Str("path", fw.path).Msg("🔄 Config file changed, reloading")
	if fw.handler != nil {
		fw.handler(fs)
	}
}
