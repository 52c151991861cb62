package watcher

import (
	"sync"
	"time"

	"tailcast/internal/logging"

	"github.com/fsnotify/fsnotify"
)

// Event represents a change to one file in the watched directory.
type Event struct {
	Path      string
	Op        fsnotify.Op
	Timestamp time.Time
}

// Options controls watcher behavior.
type Options struct {
	Logger       *logging.Logger
	Debounce     time.Duration
	ErrorHandler func(error)
}

// Metrics reports watcher counters.
type Metrics struct {
	EventsDelivered uint64 `json:"events_delivered"`
	EventsDropped   uint64 `json:"events_dropped"`
	Errors          uint64 `json:"errors"`
	RestartAttempts int    `json:"restart_attempts"`
}

// Watcher is an fsnotify-backed watcher for one flat directory.
type Watcher struct {
	dir          string
	handler      func(Event)
	watcher      *fsnotify.Watcher
	mutex        sync.Mutex
	debouncer    *debouncer
	events       chan fsnotify.Event
	errors       chan error
	done         chan struct{}
	closed       bool
	logger       *logging.Logger
	errorHandler func(error)

	restartMutex    sync.Mutex
	restartTimer    *time.Timer
	restartAttempts int

	eventsDelivered uint64
	eventsDropped   uint64
	errorCount      uint64
}
