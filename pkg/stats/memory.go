package stats

import (
	"context"
	"sync"
	"time"
)

// MemoryRecorder keeps counters in process memory. It is used when Redis is
// disabled or unreachable at startup; counts do not survive restarts.
type MemoryRecorder struct {
	mu      sync.Mutex
	buckets map[string]map[time.Time]map[Counter]int64
}

// Ensure MemoryRecorder implements Recorder.
var _ Recorder = (*MemoryRecorder)(nil)

// NewMemoryRecorder creates an empty in-memory recorder.
func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{buckets: make(map[string]map[time.Time]map[Counter]int64, 16)}
}

// Incr adds n to counter c for the hour containing at.
func (m *MemoryRecorder) Incr(_ context.Context, publisherID string, c Counter, n int64, at time.Time) error {
	hour := at.UTC().Truncate(time.Hour)

	m.mu.Lock()
	defer m.mu.Unlock()

	byHour, ok := m.buckets[publisherID]
	if !ok {
		byHour = make(map[time.Time]map[Counter]int64, 24)
		m.buckets[publisherID] = byHour
	}

	counts, ok := byHour[hour]
	if !ok {
		counts = make(map[Counter]int64, len(Counters))
		byHour[hour] = counts
	}

	counts[c] += n

	return nil
}

// Buckets returns the non-empty hourly buckets between start and end.
func (m *MemoryRecorder) Buckets(_ context.Context, publisherID string, start, end time.Time) ([]Bucket, error) {
	from := start.UTC().Truncate(time.Hour)

	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Bucket, 0, 16)

	for hour, counts := range m.buckets[publisherID] {
		if hour.Before(from) || hour.After(end) {
			continue
		}

		copied := make(map[Counter]int64, len(counts))
		for c, n := range counts {
			copied[c] = n
		}

		out = append(out, Bucket{Start: hour, Counts: copied})
	}

	sortBuckets(out)

	return out, nil
}

// Ping always succeeds.
func (m *MemoryRecorder) Ping(context.Context) error {
	return nil
}

// Name identifies the backend.
func (m *MemoryRecorder) Name() string {
	return "memory"
}

// Close is a no-op.
func (m *MemoryRecorder) Close() error {
	return nil
}
