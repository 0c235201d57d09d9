package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormLogger "gorm.io/gorm/logger"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("POSTGRES_URI", "postgres://u:p@localhost:5432/db")
	t.Setenv("JWT_SECRET", "secret")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 0.3, cfg.Heatmap.WeightMessageLength)
	assert.Equal(t, 0.4, cfg.Heatmap.WeightResponseTime)
	assert.Equal(t, 0.3, cfg.Heatmap.WeightSentiment)
	assert.Equal(t, 500.0, cfg.Heatmap.MessageLengthCap)
	assert.Equal(t, 10.0, cfg.Heatmap.ResponseTimeCap)
	assert.Equal(t, 30*24*time.Hour, cfg.Heatmap.Window)
	assert.Equal(t, 7*24*time.Hour, cfg.Heatmap.TrendWindow)
	assert.Equal(t, "length", cfg.SentimentEstimator)
	assert.Equal(t, []string{"http://localhost:3000", "http://localhost:5173"}, cfg.CORSOrigins)
	assert.Equal(t, []string{"storage.googleapis.com"}, cfg.VoiceURLHosts)
	assert.Equal(t, 768, cfg.EmbeddingDimensions)
}

func TestLoad_MissingRequired(t *testing.T) {
	// Setenv registers the restore; required only fails on unset vars
	t.Setenv("POSTGRES_URI", "")
	t.Setenv("JWT_SECRET", "")
	require.NoError(t, os.Unsetenv("POSTGRES_URI"))
	require.NoError(t, os.Unsetenv("JWT_SECRET"))

	_, err := Load()
	require.Error(t, err)
}

func TestLoad_LLMProviderValidation(t *testing.T) {
	setRequired(t)

	t.Setenv("LLM_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "")
	_, err := Load()
	require.Error(t, err)

	t.Setenv("LLM_PROVIDER", "carrier-pigeon")
	_, err = Load()
	require.Error(t, err)

	t.Setenv("LLM_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.LLMProvider)
}

func TestRedisTarget(t *testing.T) {
	cfg := &Config{RedisURI: " redis://localhost:6379/0 "}
	assert.Equal(t, "redis://localhost:6379/0", cfg.RedisTarget())

	cfg.RedisAddr = "localhost:6380"
	assert.Equal(t, "localhost:6380", cfg.RedisTarget())

	assert.Equal(t, "", (&Config{}).RedisTarget())
}

func TestLoadHeatmap(t *testing.T) {
	t.Setenv("HEATMAP_WEIGHT_SENTIMENT", "0.2")
	t.Setenv("HEATMAP_WINDOW", "48h")

	hc, err := LoadHeatmap()
	require.NoError(t, err)
	assert.Equal(t, 0.2, hc.WeightSentiment)
	assert.Equal(t, 0.4, hc.WeightResponseTime)
	assert.Equal(t, 48*time.Hour, hc.Window)
}

func TestRedisOptions(t *testing.T) {
	_, err := redisOptions("", 0)
	require.Error(t, err)

	opt, err := redisOptions("localhost:6379", 0)
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", opt.Addr)

	opt, err = redisOptions("redis://:secret@cache.internal:6380/2", 32)
	require.NoError(t, err)
	assert.Equal(t, "cache.internal:6380", opt.Addr)
	assert.Equal(t, "secret", opt.Password)
	assert.Equal(t, 2, opt.DB)
	assert.Equal(t, 32, opt.PoolSize)

	_, err = redisOptions("redis://host:6379/notanumber", 0)
	require.Error(t, err)
}

func TestGormLogLevel(t *testing.T) {
	assert.Equal(t, gormLogger.Info, gormLogLevel("DEBUG"))
	assert.Equal(t, gormLogger.Error, gormLogLevel("error"))
	assert.Equal(t, gormLogger.Warn, gormLogLevel("info"))
	assert.Equal(t, gormLogger.Warn, gormLogLevel(""))
}

func TestLoad_EmbeddingDimensionsMatchSchema(t *testing.T) {
	setRequired(t)
	t.Setenv("EMBEDDING_ENABLED", "true")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	t.Setenv("EMBEDDING_DIMENSIONS", "1536")
	_, err := Load()
	require.Error(t, err)

	t.Setenv("EMBEDDING_DIMENSIONS", "768")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, EmbeddingColumnDims, cfg.EmbeddingDimensions)
}
