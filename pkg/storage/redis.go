package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/hirelens/hirelens/pkg/predictor"
)

// RedisStore implements Store on Redis, giving multiple predictor instances a
// shared view of the latest report per dataset with TTL-based expiration.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore connects to Redis and verifies the connection with a ping.
// A zero ttl defaults to 30 minutes.
func NewRedisStore(addr, password string, db int, ttl time.Duration) (*RedisStore, error) {
	if addr == "" {
		return nil, errors.New("storage: redis address cannot be empty")
	}
	if db < 0 {
		return nil, errors.New("storage: redis database number must be >= 0")
	}
	if ttl == 0 {
		ttl = 30 * time.Minute
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("storage: connect to redis at %s: %w", addr, err)
	}

	return &RedisStore{client: client, ttl: ttl}, nil
}

func reportKey(dataset string) string {
	return "hirelens:report:" + dataset
}

// Put stores a report under its dataset key with the configured TTL.
func (r *RedisStore) Put(ctx context.Context, report predictor.Report) error {
	if report.Dataset == "" {
		return errors.New("storage: report dataset name cannot be empty")
	}

	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("storage: marshal report: %w", err)
	}

	if err := r.client.Set(ctx, reportKey(report.Dataset), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("storage: store report in redis: %w", err)
	}
	return nil
}

// GetLatest retrieves the latest report for a dataset. found is false when
// the key does not exist or has expired.
func (r *RedisStore) GetLatest(ctx context.Context, dataset string) (predictor.Report, bool, error) {
	if dataset == "" {
		return predictor.Report{}, false, errors.New("storage: dataset name required")
	}

	data, err := r.client.Get(ctx, reportKey(dataset)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return predictor.Report{}, false, nil
		}
		return predictor.Report{}, false, fmt.Errorf("storage: get report from redis: %w", err)
	}

	var report predictor.Report
	if err := json.Unmarshal(data, &report); err != nil {
		return predictor.Report{}, false, fmt.Errorf("storage: unmarshal report: %w", err)
	}
	return report, true, nil
}

// Close releases the underlying Redis connection pool.
func (r *RedisStore) Close() error {
	return r.client.Close()
}
