package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/atinyakov/shorturl-microservice/internal/app/service"
	"github.com/atinyakov/shorturl-microservice/internal/config"
	"github.com/atinyakov/shorturl-microservice/internal/repository"
	"github.com/atinyakov/shorturl-microservice/internal/storage"
	"github.com/atinyakov/shorturl-microservice/internal/worker"
)

// backend is the registry chosen from the options plus what has to be run or
// released alongside it.
type backend struct {
	name     string
	registry service.Registry
	journal  *worker.JournalWorker
	closers  []func() error
}

// openBackend picks the first configured store in the order
// database_dsn, redis_addr, bolt_path and falls back to memory, optionally
// journaled to file_storage_path.
func openBackend(ctx context.Context, opts *config.Options, logger *zap.Logger) (*backend, error) {
	switch {
	case opts.DatabaseDSN != "":
		db, err := repository.InitDB(ctx, opts.DatabaseDSN, logger)
		if err != nil {
			return nil, err
		}
		return &backend{
			name:     "postgres",
			registry: repository.CreateURLRepository(db, logger),
			closers:  []func() error{db.Close},
		}, nil

	case opts.RedisAddr != "":
		client := redis.NewClient(&redis.Options{Addr: opts.RedisAddr})
		repo := repository.NewRedisRepository(client, "", logger)
		if err := repo.PingContext(ctx); err != nil {
			return nil, errors.Join(fmt.Errorf("redis %s: %w", opts.RedisAddr, err), repo.Close())
		}
		return &backend{
			name:     "redis",
			registry: repo,
			closers:  []func() error{repo.Close},
		}, nil

	case opts.BoltPath != "":
		repo, err := repository.NewBoltRepository(opts.BoltPath, logger)
		if err != nil {
			return nil, err
		}
		return &backend{
			name:     "bolt",
			registry: repo,
			closers:  []func() error{repo.Close},
		}, nil

	case opts.FilePath != "":
		fs, err := storage.NewFileStorage(opts.FilePath, logger)
		if err != nil {
			return nil, err
		}

		records, err := fs.Read(ctx)
		if err != nil {
			return nil, errors.Join(err, fs.Close())
		}

		journal := worker.NewJournalWorker(logger, fs).WithFlushInterval(opts.JournalFlushInterval)
		mem, err := storage.CreateMemoryStorage(
			storage.WithRecords(records),
			storage.WithJournal(journal.GetInChannel()),
		)
		if err != nil {
			return nil, errors.Join(err, fs.Close())
		}

		snapshot, err := mem.Read(ctx)
		if err == nil {
			err = fs.Compact(ctx, snapshot)
		}
		if err != nil {
			return nil, errors.Join(fmt.Errorf("compacting journal: %w", err), fs.Close())
		}

		logger.Info("journal replayed",
			zap.String("path", opts.FilePath),
			zap.Int("read", len(records)),
			zap.Int("kept", len(snapshot)))
		return &backend{
			name:     "memory+journal",
			registry: mem,
			journal:  journal,
			closers:  []func() error{fs.Close},
		}, nil

	default:
		mem, err := storage.CreateMemoryStorage()
		if err != nil {
			return nil, err
		}
		return &backend{name: "memory", registry: mem}, nil
	}
}

func (b *backend) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		errs = append(errs, b.closers[i]())
	}
	return errors.Join(errs...)
}
