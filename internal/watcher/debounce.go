package watcher

import (
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// relevantOps are the operations that can grow a file's content.
const relevantOps = fsnotify.Write | fsnotify.Create

type debounceEntry struct {
	timer *time.Timer
	event Event
}

type debouncer struct {
	duration time.Duration
	entries  map[string]debounceEntry
}

func newDebouncer(duration time.Duration) *debouncer {
	return &debouncer{
		duration: duration,
		entries:  make(map[string]debounceEntry),
	}
}

// schedule merges event into the pending entry for path. The first event of a
// window arms the timer and later events never push it back, so a file that is
// written continuously still flushes once per window. It reports whether the
// event joined an already pending window.
func (debouncer *debouncer) schedule(path string, event Event, flush func(string)) bool {
	if debouncer == nil || debouncer.entries == nil {
		return false
	}
	entry, pending := debouncer.entries[path]
	entry.event.Path = event.Path
	entry.event.Op |= event.Op
	entry.event.Timestamp = event.Timestamp
	if !pending {
		entry.timer = time.AfterFunc(debouncer.duration, func() {
			flush(path)
		})
	}
	debouncer.entries[path] = entry
	return pending
}

func (debouncer *debouncer) pop(path string) (Event, bool) {
	if debouncer == nil || debouncer.entries == nil {
		return Event{}, false
	}
	entry, ok := debouncer.entries[path]
	if !ok {
		return Event{}, false
	}
	delete(debouncer.entries, path)
	return entry.event, true
}

func (debouncer *debouncer) stop() {
	if debouncer == nil {
		return
	}
	for _, entry := range debouncer.entries {
		if entry.timer != nil {
			entry.timer.Stop()
		}
	}
	debouncer.entries = nil
}

func (watcher *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&relevantOps == 0 || !watcher.isDirectChild(event.Name) {
		return
	}

	watcher.mutex.Lock()
	defer watcher.mutex.Unlock()
	if watcher.closed {
		return
	}
	entry := Event{
		Path:      event.Name,
		Op:        event.Op,
		Timestamp: time.Now().UTC(),
	}
	if watcher.debouncer.schedule(event.Name, entry, watcher.flush) {
		atomic.AddUint64(&watcher.eventsDropped, 1)
	}
}

func (watcher *Watcher) flush(path string) {
	watcher.mutex.Lock()
	if watcher.closed {
		watcher.mutex.Unlock()
		return
	}
	event, ok := watcher.debouncer.pop(path)
	watcher.mutex.Unlock()
	if !ok {
		return
	}

	watcher.handler(event)
	atomic.AddUint64(&watcher.eventsDelivered, 1)
}
