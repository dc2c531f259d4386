// Package storage is the shared key-value area every tab of a user session
// reads and writes: the session clock and the force-logout marker live here.
package storage

import (
	"context"
	"errors"
)

// ErrUnavailable is returned by stores that cannot be used at all, such as
// storage disabled by a privacy mode.
var ErrUnavailable = errors.New("storage: unavailable")

// Change is delivered to watchers after a key is written. Delivery is best
// effort; a watcher that misses a change must re-read the key.
type Change struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Watch(fn func(Change)) (unwatch func())
	Close() error
}
