package repository

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/atinyakov/shorturl-microservice/internal/storage"
)

var (
	byURLBucket = []byte("by_url")
	byIDBucket  = []byte("by_id")
)

// BoltRepository stores the registry in an embedded bbolt file. Write
// transactions are serialized by bbolt, which makes GetOrCreate atomic.
type BoltRepository struct {
	db     *bolt.DB
	logger *zap.Logger
}

func NewBoltRepository(path string, logger *zap.Logger) (*BoltRepository, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{byURLBucket, byIDBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltRepository{db: db, logger: logger}, nil
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func (r *BoltRepository) GetOrCreate(_ context.Context, original string) (storage.URLRecord, error) {
	record := storage.URLRecord{Original: original}

	err := r.db.Update(func(tx *bolt.Tx) error {
		byURL := tx.Bucket(byURLBucket)
		byID := tx.Bucket(byIDBucket)

		if v := byURL.Get([]byte(original)); v != nil {
			record.ID = int64(binary.BigEndian.Uint64(v))
			return nil
		}

		// the sequence is rolled back together with the transaction on failure
		seq, err := byID.NextSequence()
		if err != nil {
			return err
		}

		key := itob(seq)
		if err := byURL.Put([]byte(original), key); err != nil {
			return err
		}
		if err := byID.Put(key, []byte(original)); err != nil {
			return err
		}

		record.ID = int64(seq)
		return nil
	})
	if err != nil {
		return storage.URLRecord{}, err
	}

	return record, nil
}

func (r *BoltRepository) FindByID(_ context.Context, id int64) (storage.URLRecord, error) {
	if id <= 0 {
		return storage.URLRecord{}, storage.ErrNotFound
	}

	record := storage.URLRecord{ID: id}
	err := r.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(byIDBucket).Get(itob(uint64(id)))
		if v == nil {
			return storage.ErrNotFound
		}
		record.Original = string(v)
		return nil
	})
	if err != nil {
		return storage.URLRecord{}, err
	}

	return record, nil
}

func (r *BoltRepository) Count(_ context.Context) (int, error) {
	var count int
	err := r.db.View(func(tx *bolt.Tx) error {
		count = tx.Bucket(byIDBucket).Stats().KeyN
		return nil
	})

	return count, err
}

func (r *BoltRepository) PingContext(_ context.Context) error {
	return r.db.View(func(tx *bolt.Tx) error {
		if tx.Bucket(byIDBucket) == nil {
			return fmt.Errorf("bucket %s is missing", byIDBucket)
		}
		return nil
	})
}

func (r *BoltRepository) Close() error {
	return r.db.Close()
}
