package heatmap

import (
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/yoockh/quantachat/internal/models"
)

// Aggregate is the derived state written to a user's heatmap profile.
type Aggregate struct {
	PeakHours       models.PeakHours
	WeeklyPattern   models.WeeklyPattern
	AvgSentiment    float64
	AvgResponseTime float64
	EngagementTrend float64
	Count           int
}

// Aggregator folds a window of records into an Aggregate.
type Aggregator struct {
	// TrendWindow bounds the records used for the engagement slope.
	TrendWindow time.Duration
}

func NewAggregator(trendWindow time.Duration) *Aggregator {
	if trendWindow <= 0 {
		trendWindow = 7 * 24 * time.Hour
	}
	return &Aggregator{TrendWindow: trendWindow}
}

// Aggregate returns ok=false for an empty window; callers must leave the
// profile untouched in that case.
func (a *Aggregator) Aggregate(records []models.InteractionRecord, now time.Time) (Aggregate, bool) {
	if len(records) == 0 {
		return Aggregate{}, false
	}

	sentiment := make([]float64, len(records))
	response := make([]float64, len(records))
	for i, r := range records {
		sentiment[i] = r.SentimentScore
		response[i] = r.ResponseTime
	}

	return Aggregate{
		PeakHours:       PeakHour(records),
		WeeklyPattern:   WeeklyPattern(records),
		AvgSentiment:    stat.Mean(sentiment, nil),
		AvgResponseTime: stat.Mean(response, nil),
		EngagementTrend: EngagementTrend(records, now.Add(-a.TrendWindow)),
		Count:           len(records),
	}, true
}

// PeakHour finds the busiest UTC hour. Ties go to the lowest hour.
func PeakHour(records []models.InteractionRecord) models.PeakHours {
	if len(records) == 0 {
		return models.PeakHours{}
	}

	var counts [24]int
	for _, r := range records {
		counts[r.Timestamp.UTC().Hour()]++
	}

	best := 0
	for h := 1; h < 24; h++ {
		if counts[h] > counts[best] {
			best = h
		}
	}
	return models.PeakHours{
		Hour:  best,
		Score: float64(counts[best]) / float64(len(records)),
	}
}

// WeeklyPattern returns the share of records per weekday. All seven days are
// always present; an empty input yields all zeros.
func WeeklyPattern(records []models.InteractionRecord) models.WeeklyPattern {
	var counts [7]int
	for _, r := range records {
		counts[weekdayIndex(r.Timestamp.UTC().Weekday())]++
	}

	total := len(records)
	if total < 1 {
		total = 1
	}

	out := make(models.WeeklyPattern, len(models.Weekdays))
	for i, day := range models.Weekdays {
		out[day] = float64(counts[i]) / float64(total)
	}
	return out
}

// weekdayIndex maps time.Weekday (Sunday=0) to Monday=0 .. Sunday=6.
func weekdayIndex(d time.Weekday) int {
	return (int(d) + 6) % 7
}
