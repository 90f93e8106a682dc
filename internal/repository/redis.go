package repository

import (
	"context"
	"errors"
	"strconv"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/atinyakov/shorturl-microservice/internal/storage"
)

// getOrCreateScript performs lookup, allocation and both inserts as one
// atomic step on the server.
//
// KEYS[1] url -> id hash, KEYS[2] id -> url hash, KEYS[3] sequence counter.
var getOrCreateScript = redis.NewScript(`
local id = redis.call('HGET', KEYS[1], ARGV[1])
if id then
	return tonumber(id)
end
id = redis.call('INCR', KEYS[3])
redis.call('HSET', KEYS[1], ARGV[1], id)
redis.call('HSET', KEYS[2], id, ARGV[1])
return id
`)

type RedisRepository struct {
	client   *redis.Client
	logger   *zap.Logger
	byURLKey string
	byIDKey  string
	seqKey   string
}

func NewRedisRepository(client *redis.Client, namespace string, logger *zap.Logger) *RedisRepository {
	if namespace == "" {
		namespace = "shorturl"
	}

	return &RedisRepository{
		client:   client,
		logger:   logger,
		byURLKey: namespace + ":by_url",
		byIDKey:  namespace + ":by_id",
		seqKey:   namespace + ":seq",
	}
}

func (r *RedisRepository) GetOrCreate(ctx context.Context, original string) (storage.URLRecord, error) {
	keys := []string{r.byURLKey, r.byIDKey, r.seqKey}

	id, err := getOrCreateScript.Run(ctx, r.client, keys, original).Int64()
	if err != nil {
		return storage.URLRecord{}, err
	}

	return storage.URLRecord{ID: id, Original: original}, nil
}

func (r *RedisRepository) FindByID(ctx context.Context, id int64) (storage.URLRecord, error) {
	original, err := r.client.HGet(ctx, r.byIDKey, strconv.FormatInt(id, 10)).Result()
	if errors.Is(err, redis.Nil) {
		return storage.URLRecord{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.URLRecord{}, err
	}

	return storage.URLRecord{ID: id, Original: original}, nil
}

func (r *RedisRepository) Count(ctx context.Context) (int, error) {
	n, err := r.client.HLen(ctx, r.byIDKey).Result()
	return int(n), err
}

func (r *RedisRepository) PingContext(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisRepository) Close() error {
	return r.client.Close()
}
