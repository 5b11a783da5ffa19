package publisher

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/hotlabel/publishers/pkg/apierr"
	"github.com/hotlabel/publishers/pkg/stats"
)

// StatisticsQuery selects the reporting window. Nil bounds take defaults.
type StatisticsQuery struct {
	Start       *time.Time
	End         *time.Time
	Granularity string
}

// Statistics summarises a publisher's activity over a window.
type Statistics struct {
	PublisherID string            `json:"publisher_id"`
	Period      StatisticsPeriod  `json:"period"`
	Granularity stats.Granularity `json:"granularity"`
	Source      string            `json:"source"`
	Totals      StatisticsTotals  `json:"totals"`
	Series      []stats.Point     `json:"series"`
}

// StatisticsPeriod is the reporting window.
type StatisticsPeriod struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// StatisticsTotals are the window-wide aggregates.
type StatisticsTotals struct {
	TasksRequested    int64   `json:"tasks_requested"`
	Impressions       int64   `json:"impressions"`
	TaskStatusUpdates int64   `json:"task_status_updates"`
	TasksCompleted    int64   `json:"tasks_completed"`
	CompletionRate    float64 `json:"completion_rate"`
	EstimatedRevenue  float64 `json:"estimated_revenue"`
}

// Statistics reports activity counters for the publisher.
func (s *service) Statistics(ctx context.Context, id string, q StatisticsQuery) (*Statistics, error) {
	granularity, err := stats.ParseGranularity(q.Granularity)
	if err != nil {
		return nil, apierr.Validation("Invalid granularity", map[string]string{"granularity": err.Error()})
	}

	end := s.now().UTC()
	if q.End != nil {
		end = q.End.UTC()
	}

	start := end.Add(-s.cfg.Statistics.DefaultRange)
	if q.Start != nil {
		start = q.Start.UTC()
	}

	if !start.Before(end) {
		return nil, apierr.Validation("Invalid date range", map[string]string{
			"start_date": "must be before end_date",
		})
	}

	if maxRange := s.cfg.Statistics.MaxRange; end.Sub(start) > maxRange {
		return nil, apierr.Validation("Date range too large", map[string]string{
			"start_date": fmt.Sprintf("range must not exceed %s", maxRange),
		})
	}

	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}

	buckets, err := s.recorder.Buckets(ctx, id, start, end)
	if err != nil {
		return nil, apierr.ServiceUnavailable("Statistics backend is unavailable", err)
	}

	totals := stats.Totals(buckets)

	result := &Statistics{
		PublisherID: id,
		Period:      StatisticsPeriod{Start: start, End: end},
		Granularity: granularity,
		Source:      s.recorder.Name(),
		Totals: StatisticsTotals{
			TasksRequested:    totals[stats.TasksRequested],
			Impressions:       totals[stats.TasksServed],
			TaskStatusUpdates: totals[stats.TaskStatusUpdates],
			TasksCompleted:    totals[stats.TasksCompleted],
			EstimatedRevenue: roundCents(
				float64(totals[stats.TasksCompleted]) * s.cfg.Statistics.RevenuePerCompletedTask),
		},
		Series: stats.Aggregate(buckets, granularity, start, end),
	}

	if served := totals[stats.TasksServed]; served > 0 {
		result.Totals.CompletionRate = math.Round(float64(totals[stats.TasksCompleted])/float64(served)*10000) / 10000
	}

	return result, nil
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
