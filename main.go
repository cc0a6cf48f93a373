package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}
	setupLogging(cfg.LogLevel, cfg.LogPretty)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := newDBPool(ctx, cfg.DBURL)
	if err != nil {
		log.Fatal().Err(err).Msg("database")
	}
	defer pool.Close()
	log.Info().Msg("DB pool ready")

	st := newPGStore(pool)
	queue := newSyncQueue(cfg.SyncAttempts, cfg.SyncBackoff)
	queue.start()

	hub := newSummaryHub()
	sessions := newSessionRegistry(&sessionDeps{
		store:       st,
		sync:        queue,
		now:         cfg.now,
		onSummary:   hub.publish,
		onCleared:   hub.publishCleared,
		historyDays: cfg.MealHistoryDays,
	})

	off := &openFoodFacts{BaseURL: cfg.OpenFoodFactsURL}
	analyzers := &analysisRouter{barcode: &barcodeAnalyzer{off: off}}
	if cfg.OpenAIAPIKey != "" {
		analyzers.text = newOpenAIAnalyzer(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel)
	} else {
		log.Warn().Msg("OPENAI_API_KEY not set, text and photo analysis disabled")
	}

	var photos photoStorer
	if cfg.AWSRegion != "" && (cfg.S3Bucket != "" || cfg.RekognitionEnabled) {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			log.Fatal().Err(err).Msg("unable to load AWS config")
		}
		if cfg.S3Bucket != "" {
			photos = &photoUploader{
				client:  s3.NewFromConfig(awsCfg),
				bucket:  cfg.S3Bucket,
				baseURL: cfg.PhotoBaseURL,
				now:     time.Now,
			}
		}
		if cfg.RekognitionEnabled && analyzers.text != nil {
			analyzers.image = &visionAnalyzer{labels: rekognition.NewFromConfig(awsCfg), text: analyzers.text}
		}
	}

	h := &Handler{
		sessions:  sessions,
		store:     st,
		users:     st,
		analyzer:  analyzers,
		foods:     off,
		photos:    photos,
		hub:       hub,
		jwtSecret: []byte(cfg.JWTSecret),
		now:       cfg.now,
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())
	router.SetTrustedProxies(nil)
	h.registerRoutes(router)

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: router}
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown")
	}
	// Drain pending store writes before the pool closes.
	queue.close()
}
