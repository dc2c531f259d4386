package storage

import "context"

type unavailableStore struct{}

// Unavailable returns a store on which every operation fails with
// ErrUnavailable.
func Unavailable() Store {
	return unavailableStore{}
}

func (unavailableStore) Get(context.Context, string) (string, bool, error) {
	return "", false, ErrUnavailable
}

func (unavailableStore) Set(context.Context, string, string) error {
	return ErrUnavailable
}

func (unavailableStore) Delete(context.Context, string) error {
	return ErrUnavailable
}

func (unavailableStore) Watch(func(Change)) func() {
	return func() {}
}

func (unavailableStore) Close() error {
	return nil
}
