// Package bootstrap assembles services from Config for the server and the CLI.
package bootstrap

import (
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/yoockh/quantachat/config"
	"github.com/yoockh/quantachat/internal/cache"
	"github.com/yoockh/quantachat/internal/heatmap"
	pgrepo "github.com/yoockh/quantachat/internal/repositories/postgres"
	"github.com/yoockh/quantachat/internal/services"
)

const CachePrefix = "quantachat:"

// Cache returns the shared JSON cache, or nil when redis is not configured.
func Cache(rdb *redis.Client) cache.Cache {
	if rdb == nil {
		return nil
	}
	return cache.NewRedisCache(rdb, CachePrefix)
}

// ScorerConfig maps the HEATMAP_* settings onto the scorer.
func ScorerConfig(cfg *config.Config) heatmap.Config {
	h := cfg.Heatmap
	out := heatmap.DefaultConfig()
	out.Weights = heatmap.Weights{
		MessageLength: h.WeightMessageLength,
		ResponseTime:  h.WeightResponseTime,
		Sentiment:     h.WeightSentiment,
	}
	out.MessageLengthCap = h.MessageLengthCap
	out.ResponseTimeCap = h.ResponseTimeCap
	return out
}

// Heatmap wires the heatmap service. rdb may be nil, in which case the
// summary cache is off and profile refreshes lock in-process only.
func Heatmap(cfg *config.Config, db *gorm.DB, rdb *redis.Client, sentiment heatmap.SentimentEstimator, log *logrus.Logger) (services.HeatmapService, error) {
	scorer, err := heatmap.NewScorer(ScorerConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("heatmap config: %w", err)
	}

	var locker cache.Locker = cache.NewLocalLocker()
	if rdb != nil {
		locker = cache.NewRedisLocker(rdb, CachePrefix+"lock:heatmap:", cfg.Heatmap.LockTTL)
	}

	return services.NewHeatmapService(
		pgrepo.NewHeatmapRepo(db),
		Cache(rdb),
		locker,
		scorer,
		heatmap.NewAggregator(cfg.Heatmap.TrendWindow),
		sentiment,
		log,
		services.HeatmapOptions{
			Window:     cfg.Heatmap.Window,
			SummaryTTL: cfg.Heatmap.SummaryCacheTTL,
		},
	), nil
}
