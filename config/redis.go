package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var RedisClient *redis.Client

// redisOptions accepts either a redis:// / rediss:// URL or a bare host:port.
func redisOptions(target string, poolSize int) (*redis.Options, error) {
	if target == "" {
		return nil, errors.New("REDIS_ADDR (or REDIS_URI/REDIS_URL) environment variable is not set")
	}

	var opt *redis.Options
	if strings.HasPrefix(target, "redis://") || strings.HasPrefix(target, "rediss://") {
		parsed, err := redis.ParseURL(target)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		opt = parsed
	} else {
		opt = &redis.Options{Addr: target}
	}
	if poolSize > 0 {
		opt.PoolSize = poolSize
	}
	return opt, nil
}

func InitRedis(cfg *Config) error {
	opt, err := redisOptions(cfg.RedisTarget(), cfg.RedisPool)
	if err != nil {
		return err
	}
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return fmt.Errorf("ping redis: %w", err)
	}

	RedisClient = client
	return nil
}
