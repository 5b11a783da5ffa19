package stats

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hotlabel/publishers/pkg/config"
	"github.com/redis/go-redis/v9"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGranularity(t *testing.T) {
	g, err := ParseGranularity("")
	require.NoError(t, err)
	assert.Equal(t, Daily, g)

	g, err = ParseGranularity("Weekly")
	require.NoError(t, err)
	assert.Equal(t, Weekly, g)

	_, err = ParseGranularity("yearly")
	assert.Error(t, err)
}

func TestTruncate(t *testing.T) {
	// Thursday.
	ts := time.Date(2024, 3, 14, 15, 42, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2024, 3, 14, 15, 0, 0, 0, time.UTC), Hourly.Truncate(ts))
	assert.Equal(t, time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC), Daily.Truncate(ts))
	assert.Equal(t, time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC), Weekly.Truncate(ts))
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), Monthly.Truncate(ts))

	sunday := time.Date(2024, 3, 17, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC), Weekly.Truncate(sunday))
}

func TestAggregate(t *testing.T) {
	day := time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC)

	buckets := []Bucket{
		{Start: day.Add(1 * time.Hour), Counts: map[Counter]int64{TasksServed: 2}},
		{Start: day.Add(5 * time.Hour), Counts: map[Counter]int64{TasksServed: 3, TasksCompleted: 1}},
		{Start: day.Add(26 * time.Hour), Counts: map[Counter]int64{TasksServed: 4}},
	}

	points := Aggregate(buckets, Daily, day, day.Add(71*time.Hour))
	require.Len(t, points, 3)

	assert.Equal(t, day, points[0].PeriodStart)
	assert.Equal(t, int64(5), points[0].Counts[TasksServed])
	assert.Equal(t, int64(1), points[0].Counts[TasksCompleted])
	assert.Equal(t, int64(4), points[1].Counts[TasksServed])
	assert.Equal(t, int64(0), points[2].Counts[TasksServed])

	totals := Totals(buckets)
	assert.Equal(t, int64(9), totals[TasksServed])
	assert.Equal(t, int64(0), totals[TasksRequested])
}

func testRecorder(t *testing.T, rec Recorder) {
	t.Helper()

	ctx := context.Background()
	base := time.Date(2024, 3, 14, 10, 0, 0, 0, time.UTC)

	require.NoError(t, rec.Incr(ctx, "p1", TasksServed, 3, base.Add(5*time.Minute)))
	require.NoError(t, rec.Incr(ctx, "p1", TasksServed, 2, base.Add(50*time.Minute)))
	require.NoError(t, rec.Incr(ctx, "p1", TasksCompleted, 1, base.Add(2*time.Hour)))
	require.NoError(t, rec.Incr(ctx, "p2", TasksServed, 7, base))

	buckets, err := rec.Buckets(ctx, "p1", base.Add(-time.Hour), base.Add(3*time.Hour))
	require.NoError(t, err)
	require.Len(t, buckets, 2)

	assert.Equal(t, base, buckets[0].Start)
	assert.Equal(t, int64(5), buckets[0].Counts[TasksServed])
	assert.Equal(t, int64(1), buckets[1].Counts[TasksCompleted])

	buckets, err = rec.Buckets(ctx, "p1", base.Add(time.Hour), base.Add(90*time.Minute))
	require.NoError(t, err)
	assert.Empty(t, buckets)

	assert.NoError(t, rec.Ping(ctx))
}

func TestMemoryRecorder(t *testing.T) {
	testRecorder(t, NewMemoryRecorder())
}

func TestRedisRecorder(t *testing.T) {
	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	rec := NewRedisRecorder(client, "test:", 24*time.Hour)

	t.Cleanup(func() { _ = rec.Close() })

	testRecorder(t, rec)

	assert.True(t, mr.Exists("test:stats:p1:2024031410"))
	assert.Equal(t, 24*time.Hour, mr.TTL("test:stats:p1:2024031410"))
	assert.Equal(t, "redis", rec.Name())
}

func TestOpenFallsBackToMemory(t *testing.T) {
	log, hook := logtest.NewNullLogger()

	cfg, err := config.Parse([]byte("redis:\n  enabled: true\n  addr: 127.0.0.1:1\n"))
	require.NoError(t, err)

	rec := Open(context.Background(), log, cfg)
	assert.Equal(t, "memory", rec.Name())
	require.NotNil(t, hook.LastEntry())
	assert.Contains(t, hook.LastEntry().Message, "falling back")
}

func TestOpenUsesRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	log, _ := logtest.NewNullLogger()

	cfg, err := config.Parse([]byte("redis:\n  enabled: true\n  addr: " + mr.Addr() + "\n"))
	require.NoError(t, err)

	rec := Open(context.Background(), log, cfg)
	t.Cleanup(func() { _ = rec.Close() })

	assert.Equal(t, "redis", rec.Name())
}
