package watcher

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"tailcast/internal/logging"

	"github.com/fsnotify/fsnotify"
)

const (
	defaultDebounce    = 100 * time.Millisecond
	maxRestartAttempts = 3
	restartBaseDelay   = 200 * time.Millisecond
)

// New watches dir and calls handler for writes to its direct children.
func New(dir string, handler func(Event), options Options) (*Watcher, error) {
	if handler == nil {
		return nil, errors.New("handler is required")
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve watch dir: %w", err)
	}
	info, err := os.Stat(absDir)
	if err != nil {
		return nil, fmt.Errorf("stat watch dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watch dir %s is not a directory", absDir)
	}

	source, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := source.Add(absDir); err != nil {
		_ = source.Close()
		return nil, fmt.Errorf("watch %s: %w", absDir, err)
	}

	logger := options.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	debounce := options.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}

	instance := &Watcher{
		dir:          absDir,
		handler:      handler,
		watcher:      source,
		debouncer:    newDebouncer(debounce),
		events:       make(chan fsnotify.Event, 16),
		errors:       make(chan error, 4),
		done:         make(chan struct{}),
		logger:       logger,
		errorHandler: options.ErrorHandler,
	}
	instance.startForwarder(source)
	go instance.run()
	instance.logDebug("watch added", map[string]string{"path": absDir})
	return instance, nil
}

// Dir returns the absolute path of the watched directory.
func (watcher *Watcher) Dir() string {
	if watcher == nil {
		return ""
	}
	return watcher.dir
}

// Close stops event processing and releases the fsnotify watcher.
func (watcher *Watcher) Close() error {
	if watcher == nil {
		return nil
	}

	watcher.mutex.Lock()
	if watcher.closed {
		watcher.mutex.Unlock()
		return nil
	}
	watcher.closed = true
	watcher.debouncer.stop()
	source := watcher.watcher
	watcher.mutex.Unlock()

	watcher.restartMutex.Lock()
	if watcher.restartTimer != nil {
		watcher.restartTimer.Stop()
		watcher.restartTimer = nil
	}
	watcher.restartMutex.Unlock()

	close(watcher.done)
	if source == nil {
		return nil
	}
	return source.Close()
}

// Metrics reports current watcher counters.
func (watcher *Watcher) Metrics() Metrics {
	if watcher == nil {
		return Metrics{}
	}
	watcher.restartMutex.Lock()
	attempts := watcher.restartAttempts
	watcher.restartMutex.Unlock()
	return Metrics{
		EventsDelivered: atomic.LoadUint64(&watcher.eventsDelivered),
		EventsDropped:   atomic.LoadUint64(&watcher.eventsDropped),
		Errors:          atomic.LoadUint64(&watcher.errorCount),
		RestartAttempts: attempts,
	}
}

func (watcher *Watcher) run() {
	for {
		select {
		case event := <-watcher.events:
			watcher.handleEvent(event)
		case err := <-watcher.errors:
			watcher.handleError(err)
		case <-watcher.done:
			return
		}
	}
}

func (watcher *Watcher) startForwarder(source *fsnotify.Watcher) {
	go func() {
		for {
			select {
			case event, ok := <-source.Events:
				if !ok {
					return
				}
				select {
				case watcher.events <- event:
				case <-watcher.done:
					return
				}
			case err, ok := <-source.Errors:
				if !ok {
					return
				}
				select {
				case watcher.errors <- err:
				case <-watcher.done:
					return
				}
			case <-watcher.done:
				return
			}
		}
	}()
}

// isDirectChild reports whether path names an entry directly inside the watched dir.
func (watcher *Watcher) isDirectChild(path string) bool {
	cleaned := filepath.Clean(path)
	if !filepath.IsAbs(cleaned) {
		cleaned = filepath.Join(watcher.dir, cleaned)
	}
	return filepath.Dir(cleaned) == watcher.dir
}

func (watcher *Watcher) logWarn(message string, fields map[string]string) {
	watcher.logger.Warn(message, withWatcherFields(fields))
}

func (watcher *Watcher) logDebug(message string, fields map[string]string) {
	watcher.logger.Debug(message, withWatcherFields(fields))
}

func withWatcherFields(fields map[string]string) map[string]string {
	merged := make(map[string]string, len(fields)+1)
	merged["tailcast.category"] = "watcher"
	for key, value := range fields {
		merged[key] = value
	}
	return merged
}
