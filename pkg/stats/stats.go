// Package stats records per-publisher activity counters in hourly buckets
// and folds them into reporting periods.
package stats

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Counter names an activity counter.
type Counter string

const (
	TasksRequested    Counter = "tasks_requested"
	TasksServed       Counter = "tasks_served"
	TaskStatusUpdates Counter = "task_status_updates"
	TasksCompleted    Counter = "tasks_completed"
)

// Counters lists every counter in report order.
var Counters = []Counter{TasksRequested, TasksServed, TaskStatusUpdates, TasksCompleted}

// Bucket holds the counters recorded during one hour.
type Bucket struct {
	Start  time.Time
	Counts map[Counter]int64
}

// Recorder stores and reads activity counters.
type Recorder interface {
	// Incr adds n to counter c for the hour containing at.
	Incr(ctx context.Context, publisherID string, c Counter, n int64, at time.Time) error

	// Buckets returns the non-empty hourly buckets between start and end, oldest first.
	Buckets(ctx context.Context, publisherID string, start, end time.Time) ([]Bucket, error)

	// Ping checks the backend.
	Ping(ctx context.Context) error

	// Name identifies the backend in readiness output.
	Name() string

	Close() error
}

// Granularity is a reporting period length.
type Granularity string

const (
	Hourly  Granularity = "hourly"
	Daily   Granularity = "daily"
	Weekly  Granularity = "weekly"
	Monthly Granularity = "monthly"
)

// ParseGranularity validates a granularity name. The empty string selects daily.
func ParseGranularity(s string) (Granularity, error) {
	switch g := Granularity(strings.ToLower(strings.TrimSpace(s))); g {
	case "":
		return Daily, nil
	case Hourly, Daily, Weekly, Monthly:
		return g, nil
	default:
		return "", fmt.Errorf("granularity must be one of hourly, daily, weekly, monthly")
	}
}

// Truncate returns the start of the period containing t, in UTC. Weeks start on Monday.
func (g Granularity) Truncate(t time.Time) time.Time {
	t = t.UTC()

	switch g {
	case Hourly:
		return t.Truncate(time.Hour)
	case Weekly:
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		offset := (int(day.Weekday()) + 6) % 7

		return day.AddDate(0, 0, -offset)
	case Monthly:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}
}

// Next returns the start of the period after the one starting at t.
func (g Granularity) Next(t time.Time) time.Time {
	switch g {
	case Hourly:
		return t.Add(time.Hour)
	case Weekly:
		return t.AddDate(0, 0, 7)
	case Monthly:
		return t.AddDate(0, 1, 0)
	default:
		return t.AddDate(0, 0, 1)
	}
}

// Point is the aggregate of one reporting period.
type Point struct {
	PeriodStart time.Time         `json:"period_start"`
	Counts      map[Counter]int64 `json:"counts"`
}

// Aggregate folds hourly buckets into periods of granularity g covering
// start..end. Periods without activity are included with zero counts.
func Aggregate(buckets []Bucket, g Granularity, start, end time.Time) []Point {
	byPeriod := make(map[time.Time]map[Counter]int64, len(buckets))

	for _, b := range buckets {
		period := g.Truncate(b.Start)

		counts, ok := byPeriod[period]
		if !ok {
			counts = make(map[Counter]int64, len(Counters))
			byPeriod[period] = counts
		}

		for c, n := range b.Counts {
			counts[c] += n
		}
	}

	points := make([]Point, 0, len(byPeriod))

	for period := g.Truncate(start); !period.After(end); period = g.Next(period) {
		counts := make(map[Counter]int64, len(Counters))
		for _, c := range Counters {
			counts[c] = byPeriod[period][c]
		}

		points = append(points, Point{PeriodStart: period, Counts: counts})
	}

	return points
}

// Totals sums every bucket's counters.
func Totals(buckets []Bucket) map[Counter]int64 {
	totals := make(map[Counter]int64, len(Counters))
	for _, c := range Counters {
		totals[c] = 0
	}

	for _, b := range buckets {
		for c, n := range b.Counts {
			totals[c] += n
		}
	}

	return totals
}

// hours returns the start of every hour between start and end inclusive.
func hours(start, end time.Time) []time.Time {
	var out []time.Time

	for h := start.UTC().Truncate(time.Hour); !h.After(end); h = h.Add(time.Hour) {
		out = append(out, h)
	}

	return out
}

func sortBuckets(buckets []Bucket) {
	sort.Slice(buckets, func(i, j int) bool {
		return buckets[i].Start.Before(buckets[j].Start)
	})
}
