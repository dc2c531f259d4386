package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"idlegate/internal/constants"
	"idlegate/internal/storage"
)

type RedisStore struct {
	client   *redis.Client
	owned    bool
	mu       sync.RWMutex
	onExpire func(id string)
	ctx      context.Context
	cancel   func()
	wg       sync.WaitGroup
}

func NewRedisStore(cfg storage.RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(cfg.Options())

	store, err := newRedisStore(client, true)
	if err != nil {
		client.Close()
		return nil, err
	}
	return store, nil
}

// NewRedisStoreShared keeps sessions on a client owned by someone else.
// Close leaves the client open.
func NewRedisStoreShared(client *redis.Client) (*RedisStore, error) {
	return newRedisStore(client, false)
}

func newRedisStore(client *redis.Client, owned bool) (*RedisStore, error) {
	ctx, cancel := context.WithCancel(context.Background())

	store := &RedisStore{
		client: client,
		owned:  owned,
		ctx:    ctx,
		cancel: cancel,
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, constants.StorageTimeout)
	defer pingCancel()
	if err := store.client.Ping(pingCtx).Err(); err != nil {
		cancel()
		return nil, fmt.Errorf("session: redis ping: %w", err)
	}

	store.startCleanup()

	return store, nil
}

func (st *RedisStore) OnExpire(fn func(id string)) {
	st.mu.Lock()
	st.onExpire = fn
	st.mu.Unlock()
}

func (st *RedisStore) expired(id string) {
	st.mu.RLock()
	fn := st.onExpire
	st.mu.RUnlock()
	if fn != nil {
		fn(id)
	}
}

func (st *RedisStore) Save(session *Session) {
	jsonData, err := json.Marshal(session)
	if err != nil {
		log.Printf("Failed to marshal session: %v", err)
		return
	}

	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return
	}

	key := constants.RedisSessionPrefix + session.ID
	if err := st.client.Set(st.ctx, key, jsonData, ttl).Err(); err != nil {
		log.Printf("Failed to save session to Redis: %v", err)
	}
}

func (st *RedisStore) Get(id string) (*Session, bool) {
	key := constants.RedisSessionPrefix + id

	data, err := st.client.Get(st.ctx, key).Result()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		log.Printf("Failed to get session from Redis: %v", err)
		return nil, false
	}

	var session Session
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		log.Printf("Failed to unmarshal session: %v", err)
		return nil, false
	}

	if session.IsExpired() {
		st.Delete(id)
		st.expired(id)
		return nil, false
	}

	return &session, true
}

func (st *RedisStore) Delete(id string) {
	key := constants.RedisSessionPrefix + id
	if err := st.client.Del(st.ctx, key).Err(); err != nil {
		log.Printf("Failed to delete session from Redis: %v", err)
	}
}

func (st *RedisStore) Close() error {
	st.cancel()
	st.wg.Wait()
	if !st.owned {
		return nil
	}
	return st.client.Close()
}

func (st *RedisStore) startCleanup() {
	st.wg.Add(1)
	go func() {
		defer st.wg.Done()
		ticker := time.NewTicker(constants.CleanupInterval)
		defer ticker.Stop()

		for {
			select {
			case <-st.ctx.Done():
				return
			case <-ticker.C:
				st.cleanupExpired()
			}
		}
	}()
}

// cleanupExpired reports sessions whose stored expiry has passed. Redis
// drops the keys on its own through the TTL.
func (st *RedisStore) cleanupExpired() {
	pattern := constants.RedisSessionPrefix + "*"
	iter := st.client.Scan(st.ctx, 0, pattern, 100).Iterator()

	for iter.Next(st.ctx) {
		key := iter.Val()
		id := key[len(constants.RedisSessionPrefix):]

		ttl, err := st.client.TTL(st.ctx, key).Result()
		if err != nil {
			continue
		}

		if ttl <= time.Second {
			st.Delete(id)
			st.expired(id)
			log.Printf("🗑 Expired session cleaned up (Redis): %s", id)
		}
	}

	if err := iter.Err(); err != nil {
		log.Printf("Redis scan error: %v", err)
	}
}
