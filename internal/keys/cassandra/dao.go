// Package cassandra stores the mail repository key index in an Apache
// Cassandra table partitioned by repository name.
package cassandra

import (
	"context"
	"fmt"
	"iter"

	"github.com/gocql/gocql"
	"github.com/grumpyguvner/mailkeys/internal/keys"
)

const (
	// DefaultTable is the key index table name used by the mail repository.
	DefaultTable = "mailRepositoryKeys"
	// RepositoryName is the partition key column.
	RepositoryName = "name"
	// MailKey is the clustering column.
	MailKey = "mailKey"

	defaultPageSize = 5000
)

// scanner is the subset of *gocql.Iter used to read rows.
type scanner interface {
	Scan(dest ...interface{}) bool
	Close() error
}

// querier runs CQL against a live session. It exists so the DAO can be
// driven without a cluster in tests.
type querier interface {
	exec(ctx context.Context, stmt string, values ...interface{}) error
	iter(ctx context.Context, stmt string, pageSize int, values ...interface{}) scanner
}

type sessionQuerier struct {
	session *gocql.Session
}

func (q sessionQuerier) exec(ctx context.Context, stmt string, values ...interface{}) error {
	return q.session.Query(stmt, values...).WithContext(ctx).Exec()
}

func (q sessionQuerier) iter(ctx context.Context, stmt string, pageSize int, values ...interface{}) scanner {
	return q.session.Query(stmt, values...).WithContext(ctx).PageSize(pageSize).Iter()
}

// KeysDAO implements keys.Store over a shared gocql session. The session
// is owned by the caller; the DAO never opens or closes it.
type KeysDAO struct {
	q        querier
	pageSize int

	insertKey string
	deleteKey string
	listKeys  string
}

var _ keys.Store = (*KeysDAO)(nil)

type options struct {
	table    string
	pageSize int
}

// Option configures a KeysDAO.
type Option func(*options)

// WithTable overrides DefaultTable.
func WithTable(table string) Option {
	return func(o *options) {
		o.table = table
	}
}

// WithPageSize sets how many rows List fetches per round trip.
func WithPageSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.pageSize = n
		}
	}
}

// New builds a DAO on an established session. The three statements are
// fixed here; gocql prepares each one on first use and caches it per host.
func New(session *gocql.Session, opts ...Option) *KeysDAO {
	return newDAO(sessionQuerier{session: session}, opts...)
}

func newDAO(q querier, opts ...Option) *KeysDAO {
	o := options{table: DefaultTable, pageSize: defaultPageSize}
	for _, opt := range opts {
		opt(&o)
	}

	return &KeysDAO{
		q:        q,
		pageSize: o.pageSize,
		insertKey: fmt.Sprintf("INSERT INTO %s (%s, %s) VALUES (?, ?)",
			o.table, RepositoryName, MailKey),
		deleteKey: fmt.Sprintf("DELETE FROM %s WHERE %s = ? AND %s = ?",
			o.table, RepositoryName, MailKey),
		listKeys: fmt.Sprintf("SELECT %s FROM %s WHERE %s = ?",
			MailKey, o.table, RepositoryName),
	}
}

// Store inserts (repository, key). Cassandra inserts are upserts, so
// repeating it is harmless.
func (d *KeysDAO) Store(ctx context.Context, repository, key string) error {
	return classify("store key", d.q.exec(ctx, d.insertKey, repository, key))
}

// List pages through the partition of repository. Each range runs the
// query again.
func (d *KeysDAO) List(ctx context.Context, repository string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		it := d.q.iter(ctx, d.listKeys, d.pageSize, repository)

		var key string
		for it.Scan(&key) {
			if !yield(key, nil) {
				_ = it.Close()
				return
			}
		}
		if err := it.Close(); err != nil {
			yield("", classify("list keys", err))
		}
	}
}

// Remove deletes the row for (repository, key).
func (d *KeysDAO) Remove(ctx context.Context, repository, key string) error {
	return classify("remove key", d.q.exec(ctx, d.deleteKey, repository, key))
}
