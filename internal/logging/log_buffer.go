package logging

import "sync"

// DefaultBufferSize is the number of recent entries kept in memory.
const DefaultBufferSize = 500

// Buffer keeps the most recent entries in a fixed-size ring.
type Buffer struct {
	mutex   sync.Mutex
	entries []Entry
	start   int
	count   int
}

// NewBuffer creates a ring holding at most size entries.
func NewBuffer(size int) *Buffer {
	if size <= 0 {
		size = 1
	}
	return &Buffer{entries: make([]Entry, size)}
}

// Add appends entry, overwriting the oldest one when full.
func (b *Buffer) Add(entry Entry) {
	if b == nil {
		return
	}
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.count < len(b.entries) {
		b.entries[(b.start+b.count)%len(b.entries)] = entry
		b.count++
		return
	}
	b.entries[b.start] = entry
	b.start = (b.start + 1) % len(b.entries)
}

// List returns the buffered entries, oldest first.
func (b *Buffer) List() []Entry {
	if b == nil {
		return nil
	}
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.count == 0 {
		return nil
	}
	out := make([]Entry, b.count)
	for i := range out {
		out[i] = b.entries[(b.start+i)%len(b.entries)]
	}
	return out
}
