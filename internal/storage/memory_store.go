package storage

import (
	"context"
	"sync"
)

// MemoryStore keeps values in process. Watchers are notified synchronously
// after each write.
type MemoryStore struct {
	values   sync.Map
	watchers watcherSet
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (st *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	val, ok := st.values.Load(key)
	if !ok {
		return "", false, nil
	}
	return val.(string), true, nil
}

func (st *MemoryStore) Set(_ context.Context, key, value string) error {
	st.values.Store(key, value)
	st.watchers.notify(Change{Key: key, Value: value})
	return nil
}

func (st *MemoryStore) Delete(_ context.Context, key string) error {
	st.values.Delete(key)
	return nil
}

func (st *MemoryStore) Watch(fn func(Change)) func() {
	return st.watchers.add(fn)
}

func (st *MemoryStore) Close() error {
	st.watchers.clear()
	return nil
}
