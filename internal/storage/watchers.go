package storage

import "sync"

type watcherSet struct {
	mu   sync.RWMutex
	next int
	fns  map[int]func(Change)
}

func (w *watcherSet) add(fn func(Change)) func() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.fns == nil {
		w.fns = make(map[int]func(Change))
	}
	id := w.next
	w.next++
	w.fns[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			w.mu.Lock()
			delete(w.fns, id)
			w.mu.Unlock()
		})
	}
}

// notify runs the watchers outside the lock so a watcher may write to the
// store it is watching.
func (w *watcherSet) notify(c Change) {
	w.mu.RLock()
	fns := make([]func(Change), 0, len(w.fns))
	for _, fn := range w.fns {
		fns = append(fns, fn)
	}
	w.mu.RUnlock()

	for _, fn := range fns {
		fn(c)
	}
}

func (w *watcherSet) clear() {
	w.mu.Lock()
	w.fns = nil
	w.mu.Unlock()
}
