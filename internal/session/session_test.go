package session

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"idlegate/internal/constants"
	"idlegate/internal/storage"
)

func TestMemoryStoreSaveGetDelete(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()

	s := New("alice", time.Hour)
	store.Save(s)

	got, ok := store.Get(s.ID)
	require.True(t, ok)
	assert.Equal(t, "alice", got.UserID)

	store.Delete(s.ID)
	_, ok = store.Get(s.ID)
	assert.False(t, ok)
}

func TestMemoryStoreExpiredSession(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()

	var expired atomic.Int32
	store.OnExpire(func(id string) { expired.Add(1) })

	s := New("bob", time.Hour)
	s.ExpiresAt = time.Now().Add(-time.Second)
	store.Save(s)

	_, ok := store.Get(s.ID)
	assert.False(t, ok)
	assert.Equal(t, int32(1), expired.Load())
}

func TestCookieRoundTrip(t *testing.T) {
	value := SignCookieValue("abc-123")
	id, ok := VerifyCookieValue(value)
	require.True(t, ok)
	assert.Equal(t, "abc-123", id)
}

func TestCookieRejectsTampering(t *testing.T) {
	value := SignCookieValue("abc-123")

	_, ok := VerifyCookieValue(strings.Replace(value, "abc", "abd", 1))
	assert.False(t, ok)

	for _, bad := range []string{"", "nocolon", ":sig", "id:"} {
		_, ok := VerifyCookieValue(bad)
		assert.False(t, ok, bad)
	}
}

func TestDeriveKeyDeterministic(t *testing.T) {
	a := DeriveKey("s3cret")
	b := DeriveKey("s3cret")
	c := DeriveKey("other")

	assert.Len(t, a, 32)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, storage.RedisConfig) {
	t.Helper()
	mr := miniredis.RunT(t)
	return mr, storage.RedisConfig{Host: mr.Host(), Port: mr.Port(), StateTTL: time.Minute}
}

func TestRedisStoreSaveGetDelete(t *testing.T) {
	mr, cfg := newTestRedis(t)
	store, err := NewRedisStore(cfg)
	require.NoError(t, err)
	defer store.Close()

	s := New("alice", time.Hour)
	store.Save(s)

	ttl := mr.TTL(constants.RedisSessionPrefix + s.ID)
	assert.True(t, ttl > 59*time.Minute && ttl <= time.Hour, "ttl %s", ttl)

	got, ok := store.Get(s.ID)
	require.True(t, ok)
	assert.Equal(t, "alice", got.UserID)
	assert.Equal(t, s.ExpiresAt.Unix(), got.ExpiresAt.Unix())

	store.Delete(s.ID)
	_, ok = store.Get(s.ID)
	assert.False(t, ok)
}

func TestRedisStoreCleanupReportsExpiry(t *testing.T) {
	mr, cfg := newTestRedis(t)
	store, err := NewRedisStore(cfg)
	require.NoError(t, err)
	defer store.Close()

	var expired []string
	store.OnExpire(func(id string) { expired = append(expired, id) })

	short := New("bob", 2*time.Second)
	long := New("carol", time.Hour)
	store.Save(short)
	store.Save(long)

	mr.FastForward(1500 * time.Millisecond)
	store.cleanupExpired()

	assert.Equal(t, []string{short.ID}, expired)
	assert.False(t, mr.Exists(constants.RedisSessionPrefix+short.ID))
	assert.True(t, mr.Exists(constants.RedisSessionPrefix+long.ID))
}

func TestRedisStoreSkipsPastExpiry(t *testing.T) {
	mr, cfg := newTestRedis(t)
	store, err := NewRedisStore(cfg)
	require.NoError(t, err)
	defer store.Close()

	s := New("dave", time.Hour)
	s.ExpiresAt = time.Now().Add(-time.Second)
	store.Save(s)

	assert.False(t, mr.Exists(constants.RedisSessionPrefix+s.ID))
}

func TestRedisStoreSharedClientOutlivesStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	store, err := NewRedisStoreShared(client)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	assert.NoError(t, client.Ping(context.Background()).Err())
}

func TestNewStoreSharesRedisIdleState(t *testing.T) {
	_, cfg := newTestRedis(t)
	idleState, err := storage.NewRedisStore(cfg)
	require.NoError(t, err)
	defer idleState.Close()

	store, err := NewStore(idleState)
	require.NoError(t, err)
	defer store.Close()

	rs, ok := store.(*RedisStore)
	require.True(t, ok)
	assert.False(t, rs.owned)
	assert.Same(t, idleState.Client(), rs.client)
}

func TestNewStoreDefaultsToMemory(t *testing.T) {
	t.Setenv(storage.EnvRedisHost, "")

	store, err := NewStore(storage.NewMemoryStore())
	require.NoError(t, err)
	defer store.Close()

	_, ok := store.(*MemoryStore)
	assert.True(t, ok)
}
