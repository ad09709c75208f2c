package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	apperrors "github.com/grumpyguvner/mailkeys/internal/errors"
	"github.com/grumpyguvner/mailkeys/internal/keys"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	insertRe = `(?s)^\s*INSERT\s+INTO\s+mail_repository_keys\s+\(repository_name,\s*mail_key\)\s+VALUES\s+\(\$1,\s*\$2\)\s+ON\s+CONFLICT.*DO\s+NOTHING\s*$`
	deleteRe = `(?s)^\s*DELETE\s+FROM\s+mail_repository_keys\s+WHERE\s+repository_name\s*=\s*\$1\s+AND\s+mail_key\s*=\s*\$2\s*$`
	listRe   = `(?s)^\s*SELECT\s+mail_key\s+FROM\s+mail_repository_keys\s+WHERE\s+repository_name\s*=\s*\$1\s*$`
)

type prepared struct {
	insert *sqlmock.ExpectedPrepare
	delete *sqlmock.ExpectedPrepare
	list   *sqlmock.ExpectedPrepare
}

func newRepoWithMock(t *testing.T) (*KeysRepository, sqlmock.Sqlmock, prepared) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	p := prepared{
		insert: mock.ExpectPrepare(insertRe),
		delete: mock.ExpectPrepare(deleteRe),
		list:   mock.ExpectPrepare(listRe),
	}

	repo, err := NewKeysRepository(context.Background(), db)
	require.NoError(t, err)
	return repo, mock, p
}

func TestNewKeysRepository_PrepareError(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPrepare(insertRe).WillBeClosed()
	mock.ExpectPrepare(deleteRe).WillReturnError(errors.New("relation does not exist"))

	_, err = NewKeysRepository(context.Background(), db)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeStorage))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Success(t *testing.T) {
	repo, mock, p := newRepoWithMock(t)

	p.insert.ExpectExec().
		WithArgs("repo-a", "msg-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Store(context.Background(), "repo-a", "msg-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_DuplicateIsNoop(t *testing.T) {
	repo, mock, p := newRepoWithMock(t)

	p.insert.ExpectExec().
		WithArgs("repo-a", "msg-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Store(context.Background(), "repo-a", "msg-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_BadConn(t *testing.T) {
	repo, _, p := newRepoWithMock(t)

	p.insert.ExpectExec().
		WithArgs("repo-a", "msg-1").
		WillReturnError(sql.ErrConnDone)

	err := repo.Store(context.Background(), "repo-a", "msg-1")
	assert.True(t, apperrors.IsUnavailable(err), "got %v", err)
}

func TestList_Rows(t *testing.T) {
	repo, mock, p := newRepoWithMock(t)

	p.list.ExpectQuery().
		WithArgs("repo-a").
		WillReturnRows(sqlmock.NewRows([]string{"mail_key"}).AddRow("msg-1").AddRow("msg-2"))

	got, err := keys.Collect(repo.List(context.Background(), "repo-a"))
	require.NoError(t, err)
	assert.Equal(t, []string{"msg-1", "msg-2"}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestList_Empty(t *testing.T) {
	repo, _, p := newRepoWithMock(t)

	p.list.ExpectQuery().
		WithArgs("nobody").
		WillReturnRows(sqlmock.NewRows([]string{"mail_key"}))

	got, err := keys.Collect(repo.List(context.Background(), "nobody"))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestList_LazyAndRestartable(t *testing.T) {
	repo, mock, p := newRepoWithMock(t)
	seq := repo.List(context.Background(), "repo-a")

	p.list.ExpectQuery().
		WithArgs("repo-a").
		WillReturnRows(sqlmock.NewRows([]string{"mail_key"}).AddRow("msg-1"))
	p.list.ExpectQuery().
		WithArgs("repo-a").
		WillReturnRows(sqlmock.NewRows([]string{"mail_key"}).AddRow("msg-1").AddRow("msg-2"))

	first, err := keys.Collect(seq)
	require.NoError(t, err)
	second, err := keys.Collect(seq)
	require.NoError(t, err)

	assert.Equal(t, []string{"msg-1"}, first)
	assert.Equal(t, []string{"msg-1", "msg-2"}, second)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestList_QueryTimeout(t *testing.T) {
	repo, _, p := newRepoWithMock(t)

	p.list.ExpectQuery().
		WithArgs("repo-a").
		WillReturnError(context.DeadlineExceeded)

	_, err := keys.Collect(repo.List(context.Background(), "repo-a"))
	assert.True(t, apperrors.IsTimeout(err), "got %v", err)
}

func TestList_RowError(t *testing.T) {
	repo, _, p := newRepoWithMock(t)

	p.list.ExpectQuery().
		WithArgs("repo-a").
		WillReturnRows(sqlmock.NewRows([]string{"mail_key"}).
			AddRow("msg-1").
			AddRow("msg-2").
			RowError(1, driver.ErrBadConn))

	got := []string{}
	var failure error
	for key, err := range repo.List(context.Background(), "repo-a") {
		if err != nil {
			failure = err
			break
		}
		got = append(got, key)
	}
	assert.Equal(t, []string{"msg-1"}, got)
	assert.True(t, apperrors.IsUnavailable(failure), "got %v", failure)
}

func TestRemove_Success(t *testing.T) {
	repo, mock, p := newRepoWithMock(t)

	p.delete.ExpectExec().
		WithArgs("repo-a", "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Remove(context.Background(), "repo-a", "missing"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRemove_DBError(t *testing.T) {
	repo, _, p := newRepoWithMock(t)

	p.delete.ExpectExec().
		WithArgs("repo-a", "msg-1").
		WillReturnError(errors.New("syntax error"))

	err := repo.Remove(context.Background(), "repo-a", "msg-1")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeStorage), "got %v", err)
}

func TestClose_ClosesStatements(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPrepare(insertRe).WillBeClosed()
	mock.ExpectPrepare(deleteRe).WillBeClosed()
	mock.ExpectPrepare(listRe).WillBeClosed()

	repo, err := NewKeysRepository(context.Background(), db)
	require.NoError(t, err)
	require.NoError(t, repo.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}
