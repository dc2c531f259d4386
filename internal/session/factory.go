package session

import (
	"log"

	"idlegate/internal/storage"
)

// NewStore keeps sessions next to the idle state. When the idle state lives
// in Redis the sessions ride on the same connection; otherwise Redis is
// tried on its own and memory is the fallback.
func NewStore(idleState storage.Store) (StoreInterface, error) {
	if rs, ok := idleState.(*storage.RedisStore); ok {
		store, err := NewRedisStoreShared(rs.Client())
		if err == nil {
			log.Println("💾 Sessions share the Redis idle state connection")
			return store, nil
		}
		log.Printf("⚠️  Shared Redis session store failed: %v", err)
	}

	cfg := storage.RedisConfigFromEnv()
	if !cfg.Enabled() {
		log.Println("💾 Using in-memory session store")
		return NewMemoryStore(), nil
	}

	store, err := NewRedisStore(cfg)
	if err != nil {
		log.Printf("⚠️  Redis connection failed: %v", err)
		log.Println("💾 Falling back to in-memory session store")
		return NewMemoryStore(), nil
	}
	log.Printf("💾 Using Redis session store: %s", cfg.Addr())
	return store, nil
}
