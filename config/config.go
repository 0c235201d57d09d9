package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// EmbeddingColumnDims is the width of messages.embedding in the schema.
const EmbeddingColumnDims = 768

type Config struct {
	Port     string `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	PostgresURI    string `env:"POSTGRES_URI,required"`
	MigrateOnStart bool   `env:"MIGRATE_ON_START" envDefault:"true"`
	PGMaxOpenConns int    `env:"PG_MAX_OPEN_CONNS" envDefault:"50"`
	PGMaxIdleConns int    `env:"PG_MAX_IDLE_CONNS" envDefault:"10"`

	RedisAddr string `env:"REDIS_ADDR"`
	RedisURI  string `env:"REDIS_URI"`
	RedisURL  string `env:"REDIS_URL"`
	RedisPool int    `env:"REDIS_POOL_SIZE" envDefault:"20"`

	MongoURI string `env:"MONGO_URI"`
	MongoDB  string `env:"MONGO_DB" envDefault:"quantachat"`

	JWTSecret   string        `env:"JWT_SECRET,required"`
	JWTIssuer   string        `env:"JWT_ISSUER" envDefault:"quantachat"`
	JWTAudience string        `env:"JWT_AUDIENCE"`
	JWTTTL      time.Duration `env:"JWT_TTL" envDefault:"30m"`

	Heatmap HeatmapConfig `envPrefix:"HEATMAP_"`

	SentimentEstimator string `env:"SENTIMENT_ESTIMATOR" envDefault:"length"`

	LLMProvider   string `env:"LLM_PROVIDER" envDefault:"none"` // vertex|openai|none
	VertexProject string `env:"VERTEX_PROJECT_ID"`
	VertexRegion  string `env:"VERTEX_LOCATION" envDefault:"us-central1"`
	VertexModel   string `env:"VERTEX_MODEL" envDefault:"gemini-1.5-flash"`
	OpenAIKey     string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL string `env:"OPENAI_BASE_URL"`
	OpenAIModel   string `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`

	EmbeddingEnabled    bool   `env:"EMBEDDING_ENABLED" envDefault:"false"`
	EmbeddingModel      string `env:"EMBEDDING_MODEL" envDefault:"text-embedding-3-small"`
	EmbeddingDimensions int    `env:"EMBEDDING_DIMENSIONS" envDefault:"768"`

	GCSBucket   string `env:"GCS_BUCKET"`
	STTEnabled  bool   `env:"STT_ENABLED" envDefault:"false"`
	STTLanguage string `env:"STT_LANGUAGE" envDefault:"en-US"`

	VoiceWorkers   int           `env:"VOICE_WORKERS" envDefault:"5"`
	VoiceURLHosts  []string      `env:"VOICE_AUDIO_URL_HOSTS" envSeparator:"," envDefault:"storage.googleapis.com"`
	VoiceChunkTTL  time.Duration `env:"VOICE_CHUNK_TTL" envDefault:"24h"`
	MaxAudioBytes  int64         `env:"MAX_AUDIO_BYTES" envDefault:"10485760"`
	ChatRatePerSec float64       `env:"CHAT_RATE_PER_SEC" envDefault:"2"`
	ChatRateBurst  int           `env:"CHAT_RATE_BURST" envDefault:"10"`

	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000,http://localhost:5173"`
}

// HeatmapConfig carries the engagement weights and the aggregation window.
type HeatmapConfig struct {
	WeightMessageLength float64       `env:"WEIGHT_MESSAGE_LENGTH" envDefault:"0.3"`
	WeightResponseTime  float64       `env:"WEIGHT_RESPONSE_TIME" envDefault:"0.4"`
	WeightSentiment     float64       `env:"WEIGHT_SENTIMENT" envDefault:"0.3"`
	MessageLengthCap    float64       `env:"MESSAGE_LENGTH_CAP" envDefault:"500"`
	ResponseTimeCap     float64       `env:"RESPONSE_TIME_CAP" envDefault:"10"`
	Window              time.Duration `env:"WINDOW" envDefault:"720h"`
	TrendWindow         time.Duration `env:"TREND_WINDOW" envDefault:"168h"`
	SummaryCacheTTL     time.Duration `env:"SUMMARY_CACHE_TTL" envDefault:"5m"`
	LockTTL             time.Duration `env:"LOCK_TTL" envDefault:"10s"`
}

// Load reads .env (if present) and parses the environment into a Config.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadHeatmap parses only the HEATMAP_* settings, for tools that do not need
// the full server configuration.
func LoadHeatmap() (HeatmapConfig, error) {
	_ = godotenv.Load()

	var hc HeatmapConfig
	if err := env.ParseWithOptions(&hc, env.Options{Prefix: "HEATMAP_"}); err != nil {
		return HeatmapConfig{}, fmt.Errorf("parse heatmap config: %w", err)
	}
	return hc, nil
}

// RedisTarget returns the first configured redis address/URL.
func (c *Config) RedisTarget() string {
	for _, v := range []string{c.RedisAddr, c.RedisURI, c.RedisURL} {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func (c *Config) validate() error {
	switch strings.ToLower(c.LLMProvider) {
	case "vertex":
		if c.VertexProject == "" {
			return errors.New("VERTEX_PROJECT_ID is required when LLM_PROVIDER=vertex")
		}
	case "openai":
		if c.OpenAIKey == "" {
			return errors.New("OPENAI_API_KEY is required when LLM_PROVIDER=openai")
		}
	case "none", "":
	default:
		return fmt.Errorf("unsupported LLM_PROVIDER %q", c.LLMProvider)
	}
	if c.EmbeddingEnabled && c.OpenAIKey == "" {
		return errors.New("OPENAI_API_KEY is required when EMBEDDING_ENABLED=true")
	}
	if c.EmbeddingEnabled && c.EmbeddingDimensions != EmbeddingColumnDims {
		return fmt.Errorf("EMBEDDING_DIMENSIONS must be %d to match the messages.embedding column", EmbeddingColumnDims)
	}
	if c.Heatmap.Window <= 0 {
		return errors.New("HEATMAP_WINDOW must be positive")
	}
	return nil
}
