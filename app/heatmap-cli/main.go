package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/yoockh/quantachat/config"
	"github.com/yoockh/quantachat/internal/bootstrap"
	"github.com/yoockh/quantachat/internal/heatmap"
	"github.com/yoockh/quantachat/internal/logger"
	"github.com/yoockh/quantachat/internal/services"
)

var rootCmd = &cobra.Command{
	Use:           "heatmap-cli",
	Short:         "Maintenance tasks for the engagement heatmap store",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := config.InitPostgres(cfg); err != nil {
			return err
		}
		return config.Migrate(cmd.Context(), config.PostgresDB)
	},
}

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Recompute heatmap profiles from stored interactions",
	RunE: func(cmd *cobra.Command, _ []string) error {
		// read directly: USER is always set in the environment
		userID, _ := cmd.Flags().GetString("user")
		all, _ := cmd.Flags().GetBool("all")
		userID, err := rebuildTarget(userID, all)
		if err != nil {
			return err
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log := logger.New(cfg.LogLevel)

		svc, cleanup, err := heatmapService(cfg, log)
		if err != nil {
			return err
		}
		defer cleanup()

		return rebuild(cmd.Context(), svc, userID, cmd.OutOrStdout())
	},
}

// rebuildTarget returns the normalised user id, or "" for --all.
func rebuildTarget(userID string, all bool) (string, error) {
	if (userID == "") == !all {
		return "", errors.New("exactly one of --user or --all is required")
	}
	if all {
		return "", nil
	}
	id, err := uuid.Parse(userID)
	if err != nil {
		return "", fmt.Errorf("--user must be a uuid: %w", err)
	}
	return id.String(), nil
}

func init() {
	rootCmd.PersistentFlags().String("postgres-uri", "", "postgres connection string (env POSTGRES_URI)")
	rootCmd.PersistentFlags().String("redis-addr", "", "redis address or URL for cache invalidation (env REDIS_ADDR)")
	rootCmd.PersistentFlags().String("log-level", "warn", "log level (env LOG_LEVEL)")
	rootCmd.PersistentFlags().String("sentiment-estimator", "length", "sentiment estimator (env SENTIMENT_ESTIMATOR)")

	rebuildCmd.Flags().String("user", "", "rebuild a single user's profile")
	rebuildCmd.Flags().Bool("all", false, "rebuild every user active within the window")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		panic(err)
	}

	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	rootCmd.AddCommand(migrateCmd, rebuildCmd)
}

func loadConfig() (*config.Config, error) {
	hc, err := config.LoadHeatmap()
	if err != nil {
		return nil, err
	}

	cfg := &config.Config{
		PostgresURI:        viper.GetString("postgres-uri"),
		RedisAddr:          viper.GetString("redis-addr"),
		LogLevel:           viper.GetString("log-level"),
		SentimentEstimator: viper.GetString("sentiment-estimator"),
		Heatmap:            hc,
	}
	if cfg.PostgresURI == "" {
		return nil, errors.New("--postgres-uri (or POSTGRES_URI) is required")
	}
	return cfg, nil
}

func heatmapService(cfg *config.Config, log *logrus.Logger) (services.HeatmapService, func(), error) {
	if err := config.InitPostgres(cfg); err != nil {
		return nil, nil, err
	}

	var rdb *redis.Client
	if cfg.RedisTarget() != "" {
		if err := config.InitRedis(cfg); err != nil {
			return nil, nil, err
		}
		rdb = config.RedisClient
	}
	cleanup := func() {
		if rdb != nil {
			_ = rdb.Close()
		}
	}

	sentiment, err := heatmap.NewSentimentEstimator(cfg.SentimentEstimator)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	svc, err := bootstrap.Heatmap(cfg, config.PostgresDB, rdb, sentiment, log)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return svc, cleanup, nil
}

func rebuild(ctx context.Context, svc services.HeatmapService, userID string, out io.Writer) error {
	if userID == "" {
		n, err := svc.RebuildAll(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "rebuilt %d profiles\n", n)
		return nil
	}

	p, ok, err := svc.Refresh(ctx, userID)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintf(out, "user %s has no interactions in the window; profile left unchanged\n", userID)
		return nil
	}
	fmt.Fprintf(out, "user %s: peak hour %02d:00 (%.2f), avg sentiment %.3f, trend %+.4f/day\n",
		userID, p.PeakHours.Data().Hour, p.PeakHours.Data().Score, p.AvgSentiment, p.EngagementTrend)
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
