package session

import (
	"log"
	"sync"
	"time"

	"idlegate/internal/constants"
)

type MemoryStore struct {
	sessions sync.Map
	mu       sync.RWMutex
	onExpire func(id string)
	stop     chan struct{}
	once     sync.Once
}

func NewMemoryStore() *MemoryStore {
	store := &MemoryStore{stop: make(chan struct{})}
	go store.cleanupLoop()
	return store
}

func (st *MemoryStore) OnExpire(fn func(id string)) {
	st.mu.Lock()
	st.onExpire = fn
	st.mu.Unlock()
}

func (st *MemoryStore) expired(id string) {
	st.mu.RLock()
	fn := st.onExpire
	st.mu.RUnlock()
	if fn != nil {
		fn(id)
	}
}

func (st *MemoryStore) Save(session *Session) {
	st.sessions.Store(session.ID, session)
}

func (st *MemoryStore) Get(id string) (*Session, bool) {
	val, ok := st.sessions.Load(id)
	if !ok {
		return nil, false
	}
	session := val.(*Session)
	if session.IsExpired() {
		st.sessions.Delete(id)
		st.expired(id)
		return nil, false
	}
	return session, true
}

func (st *MemoryStore) Delete(id string) {
	st.sessions.Delete(id)
}

func (st *MemoryStore) Close() error {
	st.once.Do(func() { close(st.stop) })
	return nil
}

func (st *MemoryStore) cleanupLoop() {
	ticker := time.NewTicker(constants.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-st.stop:
			return
		case <-ticker.C:
			st.sessions.Range(func(key, value interface{}) bool {
				session := value.(*Session)
				if session.IsExpired() {
					id := key.(string)
					st.sessions.Delete(key)
					st.expired(id)
					log.Printf("🗑 Expired session cleaned up: %s", id)
				}
				return true
			})
		}
	}
}
