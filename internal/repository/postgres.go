// Package repository holds the persistent registry backends.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/atinyakov/shorturl-microservice/internal/storage"
)

// ErrConflict is returned when a concurrent writer outside the advisory lock
// inserted the same row first.
var ErrConflict = errors.New("data conflict")

// registryLockKey serializes identifier allocation across all instances.
const registryLockKey = 7_402_813

const createTable = `
	CREATE TABLE IF NOT EXISTS short_urls (
		id BIGINT PRIMARY KEY,
		original_url TEXT UNIQUE NOT NULL
	);`

func InitDB(ctx context.Context, dsn string, logger *zap.Logger) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	if _, err := db.ExecContext(ctx, createTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	logger.Info("Database connected and table ready.")
	return db, nil
}

type URLRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func CreateURLRepository(db *sql.DB, logger *zap.Logger) *URLRepository {
	return &URLRepository{
		db:     db,
		logger: logger,
	}
}

// GetOrCreate runs the lookup and the insert in one transaction holding an
// advisory lock, so identifiers are allocated without gaps.
func (r *URLRepository) GetOrCreate(ctx context.Context, original string) (storage.URLRecord, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return storage.URLRecord{}, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1);", registryLockKey); err != nil {
		return storage.URLRecord{}, err
	}

	record := storage.URLRecord{Original: original}

	err = tx.QueryRowContext(ctx, "SELECT id FROM short_urls WHERE original_url = $1;", original).Scan(&record.ID)
	switch {
	case err == nil:
		return record, tx.Commit()
	case !errors.Is(err, sql.ErrNoRows):
		return storage.URLRecord{}, err
	}

	err = tx.QueryRowContext(ctx,
		"INSERT INTO short_urls(id, original_url) SELECT COALESCE(MAX(id), 0) + 1, $1 FROM short_urls RETURNING id;",
		original,
	).Scan(&record.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			r.logger.Warn("insert raced outside advisory lock", zap.String("original", original))
			return storage.URLRecord{}, fmt.Errorf("%w: %s", ErrConflict, pgErr.ConstraintName)
		}
		return storage.URLRecord{}, err
	}

	if err := tx.Commit(); err != nil {
		return storage.URLRecord{}, err
	}

	r.logger.Debug("registered url", zap.Int64("id", record.ID), zap.String("original", original))
	return record, nil
}

func (r *URLRepository) FindByID(ctx context.Context, id int64) (storage.URLRecord, error) {
	record := storage.URLRecord{ID: id}

	err := r.db.QueryRowContext(ctx, "SELECT original_url FROM short_urls WHERE id = $1;", id).Scan(&record.Original)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.URLRecord{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.URLRecord{}, err
	}

	return record, nil
}

func (r *URLRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM short_urls;").Scan(&count); err != nil {
		return 0, err
	}

	return count, nil
}

func (r *URLRepository) PingContext(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
