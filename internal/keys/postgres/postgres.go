// Package postgres stores the mail repository key index in PostgreSQL,
// for deployments that run the mail repository on a relational database.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"iter"

	"github.com/grumpyguvner/mailkeys/internal/keys"
	_ "github.com/jackc/pgx/v5/stdlib"
)

const (
	insertKeyQuery = `
		INSERT INTO mail_repository_keys (repository_name, mail_key)
		VALUES ($1, $2)
		ON CONFLICT (repository_name, mail_key) DO NOTHING
	`
	deleteKeyQuery = `
		DELETE FROM mail_repository_keys
		WHERE repository_name = $1 AND mail_key = $2
	`
	listKeysQuery = `
		SELECT mail_key
		FROM mail_repository_keys
		WHERE repository_name = $1
	`
)

// KeysRepository implements keys.Store with three statements prepared at
// construction. The *sql.DB stays owned by the caller.
type KeysRepository struct {
	insertKey *sql.Stmt
	deleteKey *sql.Stmt
	listKeys  *sql.Stmt
}

var _ keys.Store = (*KeysRepository)(nil)

// Open connects to dsn through the pgx driver and checks the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, classify("connect", err)
	}
	return db, nil
}

// NewKeysRepository prepares the insert, delete and list statements on db.
func NewKeysRepository(ctx context.Context, db *sql.DB) (*KeysRepository, error) {
	r := &KeysRepository{}

	var err error
	if r.insertKey, err = db.PrepareContext(ctx, insertKeyQuery); err != nil {
		return nil, classify("prepare insert", err)
	}
	if r.deleteKey, err = db.PrepareContext(ctx, deleteKeyQuery); err != nil {
		_ = r.Close()
		return nil, classify("prepare delete", err)
	}
	if r.listKeys, err = db.PrepareContext(ctx, listKeysQuery); err != nil {
		_ = r.Close()
		return nil, classify("prepare list", err)
	}
	return r, nil
}

// Store inserts (repository, key), ignoring an existing row.
func (r *KeysRepository) Store(ctx context.Context, repository, key string) error {
	if _, err := r.insertKey.ExecContext(ctx, repository, key); err != nil {
		return classify("store key", err)
	}
	return nil
}

// List streams the keys of repository from a fresh query per range.
func (r *KeysRepository) List(ctx context.Context, repository string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		rows, err := r.listKeys.QueryContext(ctx, repository)
		if err != nil {
			yield("", classify("list keys", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			var key string
			if err := rows.Scan(&key); err != nil {
				yield("", classify("scan key", err))
				return
			}
			if !yield(key, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield("", classify("list keys", err))
		}
	}
}

// Remove deletes the row for (repository, key) if there is one.
func (r *KeysRepository) Remove(ctx context.Context, repository, key string) error {
	if _, err := r.deleteKey.ExecContext(ctx, repository, key); err != nil {
		return classify("remove key", err)
	}
	return nil
}

// Close releases the prepared statements.
func (r *KeysRepository) Close() error {
	var first error
	for _, stmt := range []*sql.Stmt{r.insertKey, r.deleteKey, r.listKeys} {
		if stmt == nil {
			continue
		}
		if err := stmt.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
