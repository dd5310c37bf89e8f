package kvstore

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPostgresWithMock(t *testing.T, now time.Time) (*SQLStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return NewPostgresStore(db, "pg", WithClock(func() time.Time { return now })), mock
}

func TestPostgres_Get_Found(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	s, mock := newPostgresWithMock(t, now)

	q := `(?s)^SELECT\s+value,\s*ttl\s+FROM\s+storage\s+WHERE\s+key\s*=\s*\$1\s*$`
	mock.ExpectQuery(q).WithArgs("pg:k").
		WillReturnRows(sqlmock.NewRows([]string{"value", "ttl"}).AddRow("v", now.Unix()+10))

	v, ok, err := s.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestPostgres_Get_NoTTL(t *testing.T) {
	s, mock := newPostgresWithMock(t, time.Unix(1_700_000_000, 0))

	mock.ExpectQuery(`SELECT\s+value,\s*ttl\s+FROM\s+storage`).WithArgs("pg:k").
		WillReturnRows(sqlmock.NewRows([]string{"value", "ttl"}).AddRow("v", nil))

	v, ok, err := s.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestPostgres_Get_NotFound(t *testing.T) {
	s, mock := newPostgresWithMock(t, time.Unix(1_700_000_000, 0))

	mock.ExpectQuery(`SELECT\s+value,\s*ttl\s+FROM\s+storage`).WithArgs("pg:k").
		WillReturnError(sql.ErrNoRows)

	_, ok, err := s.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPostgres_Get_ExpiredIsDeleted(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	s, mock := newPostgresWithMock(t, now)

	mock.ExpectQuery(`SELECT\s+value,\s*ttl\s+FROM\s+storage`).WithArgs("pg:k").
		WillReturnRows(sqlmock.NewRows([]string{"value", "ttl"}).AddRow("v", now.Unix()-1))
	mock.ExpectExec(`(?s)^DELETE\s+FROM\s+storage\s+WHERE\s+key\s*=\s*\$1\s+AND\s+ttl\s+IS\s+NOT\s+NULL\s+AND\s+ttl\s*<\s*\$2\s*$`).
		WithArgs("pg:k", now.Unix()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	_, ok, err := s.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPostgres_Get_DBError(t *testing.T) {
	s, mock := newPostgresWithMock(t, time.Unix(1_700_000_000, 0))

	mock.ExpectQuery(`SELECT\s+value`).WithArgs("pg:k").WillReturnError(errors.New("db down"))

	_, _, err := s.Get(context.Background(), "k")
	require.Error(t, err)
	assert.Regexp(t, regexp.MustCompile(`failed to get storage\[k\]: db down`), err.Error())
}

func TestPostgres_Set(t *testing.T) {
	s, mock := newPostgresWithMock(t, time.Unix(1_700_000_000, 0))

	mock.ExpectExec(`(?s)^\s*INSERT\s+INTO\s+storage\s*\(key,\s*value,\s*ttl\)\s*VALUES\s*\(\$1,\s*\$2,\s*NULL\)\s+ON\s+CONFLICT\s*\(key\)\s+DO\s+UPDATE\s+SET\s+value\s*=\s*EXCLUDED\.value,\s*ttl\s*=\s*NULL\s*$`).
		WithArgs("pg:k", "v").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.Set(context.Background(), "k", "v"))
}

func TestPostgres_SetEx(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	s, mock := newPostgresWithMock(t, now)

	q := `(?s)^\s*INSERT\s+INTO\s+storage\s*\(key,\s*value,\s*ttl\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3\)`
	mock.ExpectExec(q).WithArgs("pg:k", "v", now.Unix()+90).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WithArgs("pg:k", "v", now.Unix()).WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.SetEx(context.Background(), "k", "v", 90))
	require.NoError(t, s.SetEx(context.Background(), "k", "v", -5))
}

func TestPostgres_SetEx_Error(t *testing.T) {
	s, mock := newPostgresWithMock(t, time.Unix(1_700_000_000, 0))

	mock.ExpectExec(`INSERT\s+INTO\s+storage`).WillReturnError(errors.New("timeout"))

	err := s.SetEx(context.Background(), "k", "v", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to setex storage[k]")
}

func TestPostgres_Del(t *testing.T) {
	s, mock := newPostgresWithMock(t, time.Unix(1_700_000_000, 0))

	mock.ExpectExec(`(?s)^DELETE\s+FROM\s+storage\s+WHERE\s+key\s*=\s*\$1\s*$`).
		WithArgs("pg:k").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, s.Del(context.Background(), "k"))
}

func TestPostgres_DeleteExpired(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	s, mock := newPostgresWithMock(t, now)

	mock.ExpectExec(`(?s)^DELETE\s+FROM\s+storage\s+WHERE\s+ttl\s+IS\s+NOT\s+NULL\s+AND\s+ttl\s*<\s*\$1\s+AND\s+substr\(key,\s*1,\s*\$2\)\s*=\s*\$3\s*$`).
		WithArgs(now.Unix(), len("pg:"), "pg:").
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := s.DeleteExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestPostgres_Dialect(t *testing.T) {
	s, _ := newPostgresWithMock(t, time.Now())
	assert.Equal(t, "postgres", s.Dialect())
}
