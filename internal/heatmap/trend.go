package heatmap

import (
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/yoockh/quantachat/internal/models"
)

// EngagementTrend is the least-squares slope of engagement score per day over
// records at or after since. It is 0 with fewer than two points or when all
// points share a timestamp.
func EngagementTrend(records []models.InteractionRecord, since time.Time) float64 {
	var xs, ys []float64
	for _, r := range records {
		if r.Timestamp.Before(since) {
			continue
		}
		xs = append(xs, r.Timestamp.Sub(since).Hours()/24)
		ys = append(ys, r.EngagementScore)
	}
	if len(xs) < 2 || !spread(xs) {
		return 0
	}
	_, slope := stat.LinearRegression(xs, ys, nil, false)
	return slope
}

func spread(xs []float64) bool {
	for _, x := range xs[1:] {
		if x != xs[0] {
			return true
		}
	}
	return false
}
