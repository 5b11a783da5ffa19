package stats

import (
	"context"

	"github.com/hotlabel/publishers/pkg/config"
	"github.com/sirupsen/logrus"
)

// Open returns a Redis-backed recorder when Redis is enabled and reachable,
// and an in-memory recorder otherwise.
func Open(ctx context.Context, log logrus.FieldLogger, cfg *config.Config) Recorder {
	log = log.WithField("component", "stats")

	if !cfg.Redis.Enabled {
		log.Info("Redis disabled, keeping statistics in memory")

		return NewMemoryRecorder()
	}

	client, err := NewRedis(ctx, cfg.Redis)
	if err != nil {
		log.WithError(err).WithField("addr", cfg.Redis.Addr).
			Warn("Redis unavailable, falling back to in-memory statistics")

		return NewMemoryRecorder()
	}

	log.WithField("addr", cfg.Redis.Addr).Info("Recording statistics in Redis")

	return NewRedisRecorder(client, cfg.Redis.KeyPrefix, cfg.Statistics.Retention)
}
