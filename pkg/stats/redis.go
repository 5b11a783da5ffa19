package stats

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/hotlabel/publishers/pkg/config"
	"github.com/redis/go-redis/v9"
)

const bucketLayout = "2006010215"

// RedisRecorder keeps one hash per publisher and hour, keyed
// {prefix}stats:{publisher}:{yyyymmddhh}, with a field per counter.
type RedisRecorder struct {
	client    *redis.Client
	prefix    string
	retention time.Duration
}

// Ensure RedisRecorder implements Recorder.
var _ Recorder = (*RedisRecorder)(nil)

// NewRedis connects to the configured Redis instance and verifies it answers.
func NewRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := client.Ping(ctxPing).Err(); err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("pinging redis: %w", err)
	}

	return client, nil
}

// NewRedisRecorder creates a recorder on an existing client.
func NewRedisRecorder(client *redis.Client, prefix string, retention time.Duration) *RedisRecorder {
	return &RedisRecorder{client: client, prefix: prefix, retention: retention}
}

func (r *RedisRecorder) key(publisherID string, hour time.Time) string {
	return r.prefix + "stats:" + publisherID + ":" + hour.UTC().Format(bucketLayout)
}

// Incr adds n to counter c for the hour containing at.
func (r *RedisRecorder) Incr(ctx context.Context, publisherID string, c Counter, n int64, at time.Time) error {
	key := r.key(publisherID, at.UTC().Truncate(time.Hour))

	pipe := r.client.TxPipeline()
	pipe.HIncrBy(ctx, key, string(c), n)
	pipe.Expire(ctx, key, r.retention)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("incrementing %s: %w", c, err)
	}

	return nil
}

// Buckets returns the non-empty hourly buckets between start and end.
func (r *RedisRecorder) Buckets(ctx context.Context, publisherID string, start, end time.Time) ([]Bucket, error) {
	hrs := hours(start, end)
	if len(hrs) == 0 {
		return nil, nil
	}

	pipe := r.client.Pipeline()

	cmds := make([]*redis.MapStringStringCmd, len(hrs))
	for i, h := range hrs {
		cmds[i] = pipe.HGetAll(ctx, r.key(publisherID, h))
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("reading buckets: %w", err)
	}

	buckets := make([]Bucket, 0, 16)

	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}

		counts := make(map[Counter]int64, len(fields))

		for field, raw := range fields {
			n, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("parsing counter %s: %w", field, err)
			}

			counts[Counter(field)] = n
		}

		buckets = append(buckets, Bucket{Start: hrs[i], Counts: counts})
	}

	return buckets, nil
}

// Ping checks the Redis connection.
func (r *RedisRecorder) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Name identifies the backend.
func (r *RedisRecorder) Name() string {
	return "redis"
}

// Close closes the Redis client.
func (r *RedisRecorder) Close() error {
	return r.client.Close()
}
