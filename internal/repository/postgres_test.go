package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/atinyakov/shorturl-microservice/internal/storage"
)

const (
	lockQuery   = "SELECT pg_advisory_xact_lock($1);"
	selectQuery = "SELECT id FROM short_urls WHERE original_url = $1;"
	insertQuery = "INSERT INTO short_urls(id, original_url) SELECT COALESCE(MAX(id), 0) + 1, $1 FROM short_urls RETURNING id;"
)

func setupMockDB(t *testing.T) (sqlmock.Sqlmock, *URLRepository) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return mock, CreateURLRepository(db, zap.NewNop())
}

func TestGetOrCreate_New(t *testing.T) {
	mock, repo := setupMockDB(t)
	url := "https://example.com/"

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(lockQuery)).WithArgs(registryLockKey).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(selectQuery)).WithArgs(url).WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(regexp.QuoteMeta(insertQuery)).WithArgs(url).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectCommit()

	record, err := repo.GetOrCreate(context.Background(), url)
	require.NoError(t, err)
	assert.Equal(t, storage.URLRecord{ID: 1, Original: url}, record)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrCreate_Existing(t *testing.T) {
	mock, repo := setupMockDB(t)
	url := "https://example.com/"

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(lockQuery)).WithArgs(registryLockKey).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(selectQuery)).WithArgs(url).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectCommit()

	record, err := repo.GetOrCreate(context.Background(), url)
	require.NoError(t, err)
	assert.Equal(t, int64(7), record.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrCreate_UniqueViolation(t *testing.T) {
	mock, repo := setupMockDB(t)
	url := "https://example.com/"

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(lockQuery)).WithArgs(registryLockKey).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(selectQuery)).WithArgs(url).WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(regexp.QuoteMeta(insertQuery)).WithArgs(url).
		WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "short_urls_original_url_key"})
	mock.ExpectRollback()

	_, err := repo.GetOrCreate(context.Background(), url)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrCreate_LockFails(t *testing.T) {
	mock, repo := setupMockDB(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(lockQuery)).WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	_, err := repo.GetOrCreate(context.Background(), "https://example.com/")
	assert.EqualError(t, err, "connection reset")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByID(t *testing.T) {
	mock, repo := setupMockDB(t)
	query := regexp.QuoteMeta("SELECT original_url FROM short_urls WHERE id = $1;")

	mock.ExpectQuery(query).WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"original_url"}).AddRow("https://example.com/"))
	mock.ExpectQuery(query).WithArgs(int64(2)).WillReturnError(sql.ErrNoRows)

	record, err := repo.FindByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/", record.Original)

	_, err = repo.FindByID(context.Background(), 2)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCount(t *testing.T) {
	mock, repo := setupMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM short_urls;")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	count, err := repo.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestPingContext(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()
	repo := CreateURLRepository(db, zap.NewNop())

	mock.ExpectPing()
	assert.NoError(t, repo.PingContext(context.Background()))

	mock.ExpectPing().WillReturnError(errors.New("down"))
	assert.Error(t, repo.PingContext(context.Background()))
}
