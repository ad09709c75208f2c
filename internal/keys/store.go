// Package keys defines the mail repository key index: the set of mail
// keys that belong to each named mail repository.
//
// A Store is a leaf adapter over a persistent backend. It performs no
// validation, retries, or caching; backend failures surface to the caller
// classified as StorageUnavailable or StorageTimeout where the backend
// makes that distinction, and as a generic storage error otherwise.
package keys

import (
	"context"
	"iter"
)

// Entry is the composite identity of one index entry.
type Entry struct {
	Repository string `json:"repository"`
	Key        string `json:"key"`
}

// Store persists the key set of each mail repository.
//
// All methods are safe for concurrent use. Concurrent writes to the same
// entry are serialized by the backend.
type Store interface {
	// Store upserts the entry (repository, key). Storing an existing
	// entry again is a no-op overwrite.
	Store(ctx context.Context, repository, key string) error

	// List returns every key currently stored for repository. Each range
	// over the returned sequence issues a fresh read. Order is whatever
	// the backend returns. A failure is yielded once with an empty key
	// and ends the sequence.
	List(ctx context.Context, repository string) iter.Seq2[string, error]

	// Remove deletes the entry (repository, key) if present.
	Remove(ctx context.Context, repository, key string) error
}

// Collect drains a List sequence into a slice. The returned slice is
// non-nil on success, even when the repository has no keys.
func Collect(seq iter.Seq2[string, error]) ([]string, error) {
	out := []string{}
	for key, err := range seq {
		if err != nil {
			return nil, err
		}
		out = append(out, key)
	}
	return out, nil
}

// Failed returns a sequence that yields err once.
func Failed(err error) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		yield("", err)
	}
}
