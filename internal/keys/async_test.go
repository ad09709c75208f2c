package keys

import (
	"context"
	"errors"
	"iter"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingStore fails writes of failKey and lists of a repository named failKey.
type failingStore struct {
	inner   Store
	failKey string
	err     error
}

func (f *failingStore) Store(ctx context.Context, repository, key string) error {
	if key == f.failKey {
		return f.err
	}
	return f.inner.Store(ctx, repository, key)
}

func (f *failingStore) List(ctx context.Context, repository string) iter.Seq2[string, error] {
	if repository == f.failKey {
		return Failed(f.err)
	}
	return f.inner.List(ctx, repository)
}

func (f *failingStore) Remove(ctx context.Context, repository, key string) error {
	return f.inner.Remove(ctx, repository, key)
}

func TestAsyncRoundTrip(t *testing.T) {
	ctx := context.Background()
	async := NewAsync(NewMemoryStore())

	require.NoError(t, <-async.StoreAsync(ctx, "repo-a", "msg-1"))
	require.NoError(t, <-async.StoreAsync(ctx, "repo-a", "msg-2"))

	res := <-async.ListAsync(ctx, "repo-a")
	require.NoError(t, res.Err)
	assert.ElementsMatch(t, []string{"msg-1", "msg-2"}, res.Value)

	require.NoError(t, <-async.RemoveAsync(ctx, "repo-a", "msg-1"))
	res = <-async.ListAsync(ctx, "repo-a")
	require.NoError(t, res.Err)
	assert.Equal(t, []string{"msg-2"}, res.Value)
}

func TestAsyncCompletionIsBuffered(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	async := NewAsync(store)

	// never read; the goroutine must still finish and the write land
	_ = async.StoreAsync(ctx, "repo", "k")
	require.Eventually(t, func() bool {
		got, err := Collect(store.List(ctx, "repo"))
		return err == nil && len(got) == 1
	}, timeoutForTest, tickForTest)
}

func TestAsyncStoreAll(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	async := NewAsync(store)

	require.NoError(t, async.StoreAll(ctx, "repo", []string{"a", "b", "c", "a"}))
	got, err := Collect(store.List(ctx, "repo"))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, got)

	require.NoError(t, async.RemoveAll(ctx, "repo", []string{"a", "c", "missing"}))
	got, err = Collect(store.List(ctx, "repo"))
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, got)
}

func TestAsyncStoreAllReportsFailure(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("storage down")
	inner := NewMemoryStore()
	async := NewAsync(&failingStore{inner: inner, failKey: "bad", err: boom})

	err := async.StoreAll(ctx, "repo", []string{"ok-1", "bad", "ok-2"})
	assert.ErrorIs(t, err, boom)

	got, err := Collect(inner.List(ctx, "repo"))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"ok-1", "ok-2"}, got)
}

func TestAsyncListFailure(t *testing.T) {
	boom := errors.New("read timeout")
	async := NewAsync(&failingStore{inner: NewMemoryStore(), failKey: "repo", err: boom})

	res := <-async.ListAsync(context.Background(), "repo")
	assert.ErrorIs(t, res.Err, boom)
	assert.Nil(t, res.Value)
}
