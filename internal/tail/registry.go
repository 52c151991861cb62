package tail

import (
	"sort"
	"sync"
)

// Registry owns the per-file subscriber lists.
type Registry struct {
	mutex sync.Mutex
	files map[string][]*Subscription
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		files: make(map[string][]*Subscription),
	}
}

// Register appends a new subscription for fileName starting at initialCursor.
// The cursor is trusted as given.
func (r *Registry) Register(fileName string, conn Conn, initialCursor int64) *Subscription {
	sub := newSubscription(fileName, conn, initialCursor)

	r.mutex.Lock()
	r.files[fileName] = append(r.files[fileName], sub)
	r.mutex.Unlock()
	return sub
}

// Unregister removes sub from fileName's list. Absent subscriptions are ignored.
func (r *Registry) Unregister(fileName string, sub *Subscription) {
	if r == nil || sub == nil {
		return
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	subs, ok := r.files[fileName]
	if !ok {
		return
	}
	for index, candidate := range subs {
		if candidate.ID != sub.ID {
			continue
		}
		// Build a fresh slice so snapshots handed out earlier stay intact.
		next := make([]*Subscription, 0, len(subs)-1)
		next = append(next, subs[:index]...)
		next = append(next, subs[index+1:]...)
		r.files[fileName] = next
		return
	}
}

// ListSubscribers returns a snapshot of the subscribers for fileName.
func (r *Registry) ListSubscribers(fileName string) []*Subscription {
	if r == nil {
		return nil
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	subs := r.files[fileName]
	if len(subs) == 0 {
		return nil
	}
	snapshot := make([]*Subscription, len(subs))
	copy(snapshot, subs)
	return snapshot
}

// Count reports the number of subscribers for fileName.
func (r *Registry) Count(fileName string) int {
	if r == nil {
		return 0
	}
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return len(r.files[fileName])
}

// Files lists every file that has or had subscribers, sorted by name.
func (r *Registry) Files() []string {
	if r == nil {
		return nil
	}
	r.mutex.Lock()
	names := make([]string, 0, len(r.files))
	for name := range r.files {
		names = append(names, name)
	}
	r.mutex.Unlock()

	sort.Strings(names)
	return names
}
