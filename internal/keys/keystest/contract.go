// Package keystest holds the behavioural checks every keys.Store backend must pass.
package keystest

import (
	"context"
	"sync"
	"testing"
	"time"

	apperrors "github.com/grumpyguvner/mailkeys/internal/errors"
	"github.com/grumpyguvner/mailkeys/internal/keys"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns an empty Store. Cleanup is registered through t.
type Factory func(t *testing.T) keys.Store

// Run exercises the store/list/remove contract against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	t.Run("list unknown repository is empty", func(t *testing.T) {
		store := newStore(t)
		got, err := keys.Collect(store.List(context.Background(), "never-used"))
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("store is idempotent", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		for i := 0; i < 3; i++ {
			require.NoError(t, store.Store(ctx, "repo", "msg-1"))
		}
		got, err := keys.Collect(store.List(ctx, "repo"))
		require.NoError(t, err)
		assert.Equal(t, []string{"msg-1"}, got)
	})

	t.Run("remove deletes the entry", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		require.NoError(t, store.Store(ctx, "repo", "msg-1"))
		require.NoError(t, store.Remove(ctx, "repo", "msg-1"))
		got, err := keys.Collect(store.List(ctx, "repo"))
		require.NoError(t, err)
		assert.NotContains(t, got, "msg-1")
	})

	t.Run("remove of absent entry is a no-op", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		require.NoError(t, store.Store(ctx, "repo", "msg-1"))
		require.NoError(t, store.Remove(ctx, "repo", "missing"))
		require.NoError(t, store.Remove(ctx, "other-repo", "msg-1"))
		got, err := keys.Collect(store.List(ctx, "repo"))
		require.NoError(t, err)
		assert.Equal(t, []string{"msg-1"}, got)
	})

	t.Run("repositories are isolated", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		require.NoError(t, store.Store(ctx, "repo", "shared"))
		require.NoError(t, store.Store(ctx, "repo-2", "shared"))
		require.NoError(t, store.Store(ctx, "repo-2", "only-in-2"))
		// a repository name that prefixes another must not see its keys
		require.NoError(t, store.Store(ctx, "rep", "only-in-rep"))

		got, err := keys.Collect(store.List(ctx, "repo"))
		require.NoError(t, err)
		assert.Equal(t, []string{"shared"}, got)

		got, err = keys.Collect(store.List(ctx, "rep"))
		require.NoError(t, err)
		assert.Equal(t, []string{"only-in-rep"}, got)
	})

	t.Run("end to end scenario", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		require.NoError(t, store.Store(ctx, "repo-a", "msg-1"))
		require.NoError(t, store.Store(ctx, "repo-a", "msg-2"))
		require.NoError(t, store.Store(ctx, "repo-b", "msg-1"))

		got, err := keys.Collect(store.List(ctx, "repo-a"))
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"msg-1", "msg-2"}, got)

		got, err = keys.Collect(store.List(ctx, "repo-b"))
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"msg-1"}, got)

		require.NoError(t, store.Remove(ctx, "repo-a", "msg-1"))
		got, err = keys.Collect(store.List(ctx, "repo-a"))
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"msg-2"}, got)
	})

	t.Run("list is restartable and reflects current state", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		require.NoError(t, store.Store(ctx, "repo", "msg-1"))

		seq := store.List(ctx, "repo")
		first, err := keys.Collect(seq)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"msg-1"}, first)

		require.NoError(t, store.Store(ctx, "repo", "msg-2"))
		second, err := keys.Collect(seq)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"msg-1", "msg-2"}, second)
	})

	t.Run("list stops when the consumer stops", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		for _, k := range []string{"a", "b", "c"} {
			require.NoError(t, store.Store(ctx, "repo", k))
		}
		seen := 0
		for _, err := range store.List(ctx, "repo") {
			require.NoError(t, err)
			seen++
			break
		}
		assert.Equal(t, 1, seen)
	})

	t.Run("expired deadline is a storage timeout", func(t *testing.T) {
		store := newStore(t)
		ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
		defer cancel()

		err := store.Store(ctx, "repo", "msg-1")
		assert.True(t, apperrors.IsTimeout(err), "store: %v", err)
		assert.ErrorIs(t, err, context.DeadlineExceeded)

		err = store.Remove(ctx, "repo", "msg-1")
		assert.True(t, apperrors.IsTimeout(err), "remove: %v", err)

		_, err = keys.Collect(store.List(ctx, "repo"))
		assert.True(t, apperrors.IsTimeout(err), "list: %v", err)
	})

	t.Run("remove every key while ranging", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		for _, k := range []string{"a", "b", "c"} {
			require.NoError(t, store.Store(ctx, "repo", k))
		}

		var seen []string
		for key, err := range store.List(ctx, "repo") {
			require.NoError(t, err)
			require.NoError(t, store.Remove(ctx, "repo", key))
			seen = append(seen, key)
		}
		assert.ElementsMatch(t, []string{"a", "b", "c"}, seen)

		got, err := keys.Collect(store.List(ctx, "repo"))
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("concurrent writers", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		want := []string{"k0", "k1", "k2", "k3", "k4", "k5", "k6", "k7"}

		var wg sync.WaitGroup
		for _, k := range want {
			wg.Add(2)
			go func(k string) {
				defer wg.Done()
				assert.NoError(t, store.Store(ctx, "repo", k))
			}(k)
			go func(k string) {
				defer wg.Done()
				assert.NoError(t, store.Store(ctx, "repo", k))
			}(k)
		}
		wg.Wait()

		got, err := keys.Collect(store.List(ctx, "repo"))
		require.NoError(t, err)
		assert.ElementsMatch(t, want, got)
	})
}
