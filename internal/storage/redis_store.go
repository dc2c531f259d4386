package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"idlegate/internal/constants"
)

// RedisStore keeps values in Redis and announces every write on a pub/sub
// channel so watchers in other processes see it.
type RedisStore struct {
	client   *redis.Client
	ttl      time.Duration
	watchers watcherSet
	ctx      context.Context
	cancel   func()
	wg       sync.WaitGroup
}

func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(cfg.Options())

	store, err := NewRedisStoreFromClient(client, cfg.StateTTL)
	if err != nil {
		client.Close()
		return nil, err
	}
	return store, nil
}

// NewRedisStoreFromClient wraps an existing client. The store takes
// ownership and closes the client on Close.
func NewRedisStoreFromClient(client *redis.Client, ttl time.Duration) (*RedisStore, error) {
	ctx, cancel := context.WithCancel(context.Background())

	store := &RedisStore{
		client: client,
		ttl:    ttl,
		ctx:    ctx,
		cancel: cancel,
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 2*time.Second)
	defer pingCancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		cancel()
		return nil, fmt.Errorf("storage: redis ping: %w", err)
	}

	pubsub := client.Subscribe(ctx, constants.RedisChangesChannel)
	// Wait for the subscription confirmation so no change published after
	// construction is missed.
	if _, err := pubsub.Receive(pingCtx); err != nil {
		pubsub.Close()
		cancel()
		return nil, fmt.Errorf("storage: redis subscribe: %w", err)
	}

	store.startListener(pubsub)
	return store, nil
}

func (st *RedisStore) key(key string) string {
	return constants.RedisKeyPrefix + key
}

func (st *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := st.client.Get(ctx, st.key(key)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("storage: get %s: %w", key, err)
	}
	return val, true, nil
}

func (st *RedisStore) Set(ctx context.Context, key, value string) error {
	if err := st.client.Set(ctx, st.key(key), value, st.ttl).Err(); err != nil {
		return fmt.Errorf("storage: set %s: %w", key, err)
	}

	payload, err := json.Marshal(Change{Key: key, Value: value})
	if err != nil {
		return fmt.Errorf("storage: marshal change: %w", err)
	}
	if err := st.client.Publish(ctx, constants.RedisChangesChannel, payload).Err(); err != nil {
		// The value is stored; watchers will pick it up on their next read.
		log.Printf("⚠️  Failed to publish change for %s: %v", key, err)
	}
	return nil
}

func (st *RedisStore) Delete(ctx context.Context, key string) error {
	if err := st.client.Del(ctx, st.key(key)).Err(); err != nil {
		return fmt.Errorf("storage: delete %s: %w", key, err)
	}
	return nil
}

// Client exposes the connection for broadcast channels sharing it.
func (st *RedisStore) Client() *redis.Client {
	return st.client
}

func (st *RedisStore) Watch(fn func(Change)) func() {
	return st.watchers.add(fn)
}

func (st *RedisStore) Close() error {
	st.cancel()
	st.wg.Wait()
	st.watchers.clear()
	return st.client.Close()
}

func (st *RedisStore) startListener(pubsub *redis.PubSub) {
	st.wg.Add(1)
	go func() {
		defer st.wg.Done()
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-st.ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var c Change
				if err := json.Unmarshal([]byte(msg.Payload), &c); err != nil {
					log.Printf("Failed to decode storage change: %v", err)
					continue
				}
				st.watchers.notify(c)
			}
		}
	}()
}
