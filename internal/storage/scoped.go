package storage

import (
	"context"
	"strings"
)

// ScopedStore namespaces a shared store, typically per user session, so the
// tabs of one session never see another session's clock.
type ScopedStore struct {
	inner  Store
	prefix string
}

func Scoped(inner Store, prefix string) *ScopedStore {
	return &ScopedStore{inner: inner, prefix: prefix}
}

func (s *ScopedStore) Get(ctx context.Context, key string) (string, bool, error) {
	return s.inner.Get(ctx, s.prefix+key)
}

func (s *ScopedStore) Set(ctx context.Context, key, value string) error {
	return s.inner.Set(ctx, s.prefix+key, value)
}

func (s *ScopedStore) Delete(ctx context.Context, key string) error {
	return s.inner.Delete(ctx, s.prefix+key)
}

func (s *ScopedStore) Watch(fn func(Change)) func() {
	return s.inner.Watch(func(c Change) {
		if !strings.HasPrefix(c.Key, s.prefix) {
			return
		}
		fn(Change{Key: strings.TrimPrefix(c.Key, s.prefix), Value: c.Value})
	})
}

// Close is a no-op; the shared store outlives its scopes.
func (s *ScopedStore) Close() error {
	return nil
}
