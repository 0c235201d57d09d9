package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/yoockh/quantachat/config"
	"github.com/yoockh/quantachat/internal/api/handlers"
	"github.com/yoockh/quantachat/internal/api/middleware"
	"github.com/yoockh/quantachat/internal/api/routes"
	"github.com/yoockh/quantachat/internal/auth"
	"github.com/yoockh/quantachat/internal/bootstrap"
	"github.com/yoockh/quantachat/internal/heatmap"
	"github.com/yoockh/quantachat/internal/logger"
	"github.com/yoockh/quantachat/internal/providers/embedding"
	"github.com/yoockh/quantachat/internal/providers/llm"
	"github.com/yoockh/quantachat/internal/providers/stt"
	mongorepo "github.com/yoockh/quantachat/internal/repositories/mongo"
	pgrepo "github.com/yoockh/quantachat/internal/repositories/postgres"
	"github.com/yoockh/quantachat/internal/services"
	"github.com/yoockh/quantachat/internal/storage"
	"github.com/yoockh/quantachat/internal/workers"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("config")
	}
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Init PostgreSQL
	if err := config.InitPostgres(cfg); err != nil {
		log.WithError(err).Fatal("postgres init")
	}
	log.Info("postgres connected")
	if cfg.MigrateOnStart {
		if err := config.Migrate(ctx, config.PostgresDB); err != nil {
			log.WithError(err).Fatal("migrate")
		}
	}

	// Init MongoDB
	if err := config.InitMongo(cfg); err != nil {
		log.WithError(err).Fatal("mongo init")
	}
	if err := config.EnsureMongoIndexes(cfg); err != nil {
		log.WithError(err).Fatal("mongo indexes")
	}
	log.Info("mongo connected")

	// Init Redis; without it the summary cache, voice workers and websocket are off
	var rdb *redis.Client
	if cfg.RedisTarget() != "" {
		if err := config.InitRedis(cfg); err != nil {
			log.WithError(err).Fatal("redis init")
		}
		rdb = config.RedisClient
		log.Info("redis connected")
	} else {
		log.Warn("redis not configured; running without cache and voice streaming")
	}

	sentiment, err := heatmap.NewSentimentEstimator(cfg.SentimentEstimator)
	if err != nil {
		log.WithError(err).Fatal("sentiment estimator")
	}

	llmProvider, err := newLLM(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("llm provider")
	}
	if llmProvider != nil {
		defer llmProvider.Close()
	}

	var embedder embedding.Embedder
	if cfg.EmbeddingEnabled {
		embedder = embedding.NewOpenAIEmbedder(cfg.OpenAIKey, cfg.OpenAIBaseURL, cfg.EmbeddingModel, cfg.EmbeddingDimensions)
	}

	var speech stt.Provider
	if cfg.STTEnabled {
		gs, err := stt.NewGoogleSpeech(ctx, cfg.STTLanguage)
		if err != nil {
			log.WithError(err).Fatal("speech client")
		}
		defer gs.Close()
		speech = gs
	}

	var archive storage.Uploader
	if cfg.GCSBucket != "" {
		up, err := storage.NewGCSUploader(ctx, cfg.GCSBucket)
		if err != nil {
			log.WithError(err).Fatal("gcs client")
		}
		defer up.Close()
		archive = up
	}

	// Repositories
	db := config.PostgresDB
	mdb := config.MongoDatabase(cfg)
	userRepo := pgrepo.NewUserRepo(db)
	convoRepo := pgrepo.NewConversationRepo(db)
	sessionRepo := mongorepo.NewVoiceSessionRepo(mdb)
	chunkRepo := mongorepo.NewVoiceChunkRepo(mdb, cfg.VoiceChunkTTL)

	// Services
	heatmapSvc, err := bootstrap.Heatmap(cfg, db, rdb, sentiment, log)
	if err != nil {
		log.WithError(err).Fatal("heatmap service")
	}
	responder := services.NewResponder(sentiment)
	issuer := auth.NewIssuer(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTTTL)

	chatSvc := services.NewChatService(services.ChatDeps{
		Users:         userRepo,
		Conversations: services.NewConversationService(convoRepo),
		Heatmap:       heatmapSvc,
		Responder:     responder,
		Sentiment:     sentiment,
		LLM:           llmProvider,
		Embedder:      embedder,
		Log:           log,
	})
	voiceSvc := services.NewVoiceService(services.VoiceDeps{
		Users:     userRepo,
		Heatmap:   heatmapSvc,
		Responder: responder,
		STT:       speech,
		Archive:   archive,
		MaxBytes:  cfg.MaxAudioBytes,
		Log:       log,
	})
	sessionSvc := services.NewVoiceSessionService(sessionRepo)
	chunkSvc := services.NewVoiceChunkService(chunkRepo)

	deps := routes.Deps{
		Issuer:       issuer,
		ChatLimiter:  middleware.NewRateLimiter(cfg.ChatRatePerSec, cfg.ChatRateBurst),
		Auth:         handlers.NewAuthHandler(services.NewAuthService(userRepo, issuer)),
		User:         handlers.NewUserHandler(services.NewUserService(userRepo, sessionRepo, chunkRepo, bootstrap.Cache(rdb), log)),
		Chat:         handlers.NewChatHandler(chatSvc),
		Heatmap:      handlers.NewHeatmapHandler(heatmapSvc),
		Voice:        handlers.NewVoiceHandler(voiceSvc, cfg.MaxAudioBytes),
		VoiceSession: handlers.NewVoiceSessionHandler(sessionSvc, chunkSvc),
	}

	if rdb != nil {
		audioURLs := workers.AudioURLPolicy{Hosts: cfg.VoiceURLHosts}
		deps.WS = handlers.NewWSHandler(sessionSvc, chunkSvc, rdb, workers.DefaultStream, cfg.CORSOrigins, audioURLs)

		if speech != nil {
			pool := &workers.VoiceWorkerPool{
				Redis:      rdb,
				Chunks:     chunkSvc,
				Chat:       chatSvc,
				STT:        speech,
				NumWorkers: cfg.VoiceWorkers,
				Logger:     log,
				AudioURLs:  audioURLs,
			}
			if err := pool.Start(ctx); err != nil {
				log.WithError(err).Fatal("voice workers")
			}
		} else {
			log.Warn("STT disabled; queued voice chunks will not be transcribed")
		}
	}

	if strings.EqualFold(cfg.LogLevel, "debug") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(log, "/ping"), middleware.CORS(cfg.CORSOrigins))
	routes.RegisterRoutes(r, deps)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.WithField("port", cfg.Port).Info("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("http server")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown")
	}
	if config.MongoClient != nil {
		_ = config.MongoClient.Disconnect(shutdownCtx)
	}
	if rdb != nil {
		_ = rdb.Close()
	}
}

func newLLM(ctx context.Context, cfg *config.Config) (llm.Provider, error) {
	switch strings.ToLower(cfg.LLMProvider) {
	case "vertex":
		return llm.NewVertexGemini(ctx, cfg.VertexProject, cfg.VertexRegion, cfg.VertexModel)
	case "openai":
		return llm.NewOpenAIChat(cfg.OpenAIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel), nil
	default:
		return nil, nil
	}
}
