package keys

import "context"

// Result carries the outcome of an asynchronous call.
type Result[T any] struct {
	Value T
	Err   error
}

// Async issues Store calls on their own goroutines and reports completion
// on a channel. Every channel is buffered and receives exactly one value,
// so a caller that never reads it does not leak the goroutine.
type Async struct {
	store Store
}

// NewAsync wraps store.
func NewAsync(store Store) *Async {
	return &Async{store: store}
}

// StoreAsync stores (repository, key) in the background.
func (a *Async) StoreAsync(ctx context.Context, repository, key string) <-chan error {
	done := make(chan error, 1)
	go func() {
		done <- a.store.Store(ctx, repository, key)
	}()
	return done
}

// RemoveAsync removes (repository, key) in the background.
func (a *Async) RemoveAsync(ctx context.Context, repository, key string) <-chan error {
	done := make(chan error, 1)
	go func() {
		done <- a.store.Remove(ctx, repository, key)
	}()
	return done
}

// ListAsync reads every key of repository in the background.
func (a *Async) ListAsync(ctx context.Context, repository string) <-chan Result[[]string] {
	done := make(chan Result[[]string], 1)
	go func() {
		keys, err := Collect(a.store.List(ctx, repository))
		done <- Result[[]string]{Value: keys, Err: err}
	}()
	return done
}

// StoreAll stores every key of repository concurrently and waits for all
// of them. It returns the first error in key order; the other writes still
// run to completion.
func (a *Async) StoreAll(ctx context.Context, repository string, keys []string) error {
	return a.waitAll(ctx, repository, keys, a.StoreAsync)
}

// RemoveAll removes every key of repository concurrently and waits for all of them.
func (a *Async) RemoveAll(ctx context.Context, repository string, keys []string) error {
	return a.waitAll(ctx, repository, keys, a.RemoveAsync)
}

func (a *Async) waitAll(ctx context.Context, repository string, keys []string, op func(context.Context, string, string) <-chan error) error {
	pending := make([]<-chan error, len(keys))
	for i, key := range keys {
		pending[i] = op(ctx, repository, key)
	}

	var first error
	for _, done := range pending {
		if err := <-done; err != nil && first == nil {
			first = err
		}
	}
	return first
}
