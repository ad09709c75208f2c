// Package pebble stores the mail repository key index in an embedded
// Pebble LSM database, for single-node deployments without a cluster.
package pebble

import (
	"context"
	"encoding/binary"
	"fmt"
	"iter"
	"sync"

	"github.com/cockroachdb/pebble"
	apperrors "github.com/grumpyguvner/mailkeys/internal/errors"
	"github.com/grumpyguvner/mailkeys/internal/keys"
	"go.uber.org/zap"
)

const keyIndexPrefix = 0x01

// listPageSize bounds how many keys List reads per lock acquisition.
var listPageSize = 256

// KeysStore implements keys.Store over a pebble database it owns.
type KeysStore struct {
	mu     sync.RWMutex
	db     *pebble.DB
	closed bool
	logger *zap.Logger
}

var _ keys.Store = (*KeysStore)(nil)

// Open opens or creates the database at path.
func Open(path string, logger *zap.Logger) (*KeysStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := pebble.Open(path, &pebble.Options{Logger: logger.Sugar()})
	if err != nil {
		return nil, apperrors.StorageUnavailable(fmt.Sprintf("open pebble store at %s", path), err)
	}

	logger.Info("key index store opened", zap.String("path", path))
	return &KeysStore{db: db, logger: logger}, nil
}

// entryKey encodes (repository, key) so that a repository name which is
// a prefix of another never shares a key range with it.
func entryKey(repository, key string) []byte {
	out := repositoryPrefix(repository)
	return append(out, key...)
}

func repositoryPrefix(repository string) []byte {
	out := make([]byte, 0, 1+binary.MaxVarintLen64+len(repository))
	out = append(out, keyIndexPrefix)
	out = binary.AppendUvarint(out, uint64(len(repository)))
	return append(out, repository...)
}

// prefixEnd returns the smallest key greater than every key with prefix.
func prefixEnd(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}

// The pebble DB panics when used after Close, so every call holds the read
// lock and checks closed first.
func (s *KeysStore) acquire(op string) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return apperrors.StorageUnavailable(op+": pebble store closed", pebble.ErrClosed)
	}
	return nil
}

// Store writes the entry for (repository, key) with a synced write.
func (s *KeysStore) Store(ctx context.Context, repository, key string) error {
	if err := ctx.Err(); err != nil {
		return apperrors.FromContext("store key", err)
	}
	if err := s.acquire("store key"); err != nil {
		return err
	}
	defer s.mu.RUnlock()

	if err := s.db.Set(entryKey(repository, key), nil, pebble.Sync); err != nil {
		return apperrors.StorageError("store key", err)
	}
	return nil
}

// List reads the keys of repository in pages of listPageSize. The store lock
// is held only while a page is read, so the loop body may write to the store
// or close it.
func (s *KeysStore) List(ctx context.Context, repository string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		prefix := repositoryPrefix(repository)
		lower, upper := prefix, prefixEnd(prefix)

		for {
			if err := ctx.Err(); err != nil {
				yield("", apperrors.FromContext("list keys", err))
				return
			}

			page, next, err := s.readPage(prefix, lower, upper)
			if err != nil {
				yield("", err)
				return
			}
			for _, key := range page {
				if !yield(key, nil) {
					return
				}
			}
			if next == nil {
				return
			}
			lower = next
		}
	}
}

// readPage returns up to listPageSize keys in [lower, upper) with prefix
// stripped, and the raw key the next page starts at, or nil after the last page.
func (s *KeysStore) readPage(prefix, lower, upper []byte) ([]string, []byte, error) {
	if err := s.acquire("list keys"); err != nil {
		return nil, nil, err
	}
	defer s.mu.RUnlock()

	it, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: lower,
		UpperBound: upper,
	})
	if err != nil {
		return nil, nil, apperrors.StorageError("list keys", err)
	}

	page := make([]string, 0, listPageSize)
	var next []byte
	for valid := it.First(); valid; valid = it.Next() {
		if len(page) == listPageSize {
			next = append([]byte(nil), it.Key()...)
			break
		}
		page = append(page, string(it.Key()[len(prefix):]))
	}
	if err := it.Close(); err != nil {
		return nil, nil, apperrors.StorageError("list keys", err)
	}
	return page, next, nil
}

// Remove deletes the entry for (repository, key). Deleting an absent entry succeeds.
func (s *KeysStore) Remove(ctx context.Context, repository, key string) error {
	if err := ctx.Err(); err != nil {
		return apperrors.FromContext("remove key", err)
	}
	if err := s.acquire("remove key"); err != nil {
		return err
	}
	defer s.mu.RUnlock()

	if err := s.db.Delete(entryKey(repository, key), pebble.Sync); err != nil {
		return apperrors.StorageError("remove key", err)
	}
	return nil
}

// Close flushes and closes the database. Later calls report StorageUnavailable.
func (s *KeysStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
