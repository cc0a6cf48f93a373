package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// config is the typed view of the environment. .env is loaded first when it
// exists; real environment variables win over it.
type config struct {
	Port      string
	DBURL     string
	JWTSecret string

	OpenAIAPIKey     string
	OpenAIBaseURL    string
	OpenAIModel      string
	OpenFoodFactsURL string

	AWSRegion          string
	S3Bucket           string
	PhotoBaseURL       string
	RekognitionEnabled bool

	Location        *time.Location
	LogLevel        string
	LogPretty       bool
	SyncAttempts    int
	SyncBackoff     time.Duration
	MealHistoryDays int
}

// loadConfig reads .env (if present) and the environment.
func loadConfig() (config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return config{}, fmt.Errorf("load .env: %w", err)
	}
	return configFromEnv(os.Getenv)
}

// configFromEnv builds a config from getenv, applying defaults and checking
// required values.
func configFromEnv(getenv func(string) string) (config, error) {
	env := func(key, def string) string {
		if v := getenv(key); v != "" {
			return v
		}
		return def
	}

	cfg := config{
		Port:             env("PORT", "8080"),
		DBURL:            getenv("DB_URL"),
		JWTSecret:        getenv("JWT_SECRET"),
		OpenAIAPIKey:     getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:    env("OPENAI_BASE_URL", "https://api.openai.com"),
		OpenAIModel:      env("OPENAI_MODEL", "gpt-4o-mini"),
		OpenFoodFactsURL: env("OPENFOODFACTS_URL", defaultOpenFoodFactsURL),
		AWSRegion:        getenv("AWS_REGION"),
		S3Bucket:         getenv("S3_BUCKET"),
		PhotoBaseURL:     getenv("PHOTO_BASE_URL"),
		LogLevel:         env("LOG_LEVEL", "info"),
	}

	if cfg.DBURL == "" {
		return config{}, errors.New("DB_URL is required")
	}
	if cfg.JWTSecret == "" {
		return config{}, errors.New("JWT_SECRET is required")
	}

	var err error
	if cfg.Location, err = time.LoadLocation(env("TIMEZONE", "Local")); err != nil {
		return config{}, fmt.Errorf("TIMEZONE: %w", err)
	}
	if cfg.RekognitionEnabled, err = strconv.ParseBool(env("REKOGNITION_ENABLED", "false")); err != nil {
		return config{}, fmt.Errorf("REKOGNITION_ENABLED: %w", err)
	}
	if cfg.LogPretty, err = strconv.ParseBool(env("LOG_PRETTY", "false")); err != nil {
		return config{}, fmt.Errorf("LOG_PRETTY: %w", err)
	}
	if cfg.SyncAttempts, err = strconv.Atoi(env("SYNC_ATTEMPTS", "3")); err != nil || cfg.SyncAttempts < 1 {
		return config{}, fmt.Errorf("SYNC_ATTEMPTS must be a positive integer")
	}
	if cfg.SyncBackoff, err = time.ParseDuration(env("SYNC_BACKOFF", "500ms")); err != nil {
		return config{}, fmt.Errorf("SYNC_BACKOFF: %w", err)
	}
	if cfg.MealHistoryDays, err = strconv.Atoi(env("MEAL_HISTORY_DAYS", "30")); err != nil || cfg.MealHistoryDays < 0 {
		return config{}, fmt.Errorf("MEAL_HISTORY_DAYS must be a non-negative integer")
	}
	if cfg.S3Bucket != "" && cfg.PhotoBaseURL == "" {
		cfg.PhotoBaseURL = fmt.Sprintf("https://%s.s3.amazonaws.com", cfg.S3Bucket)
	}
	return cfg, nil
}

// now returns the current time in the configured zone.
func (c config) now() time.Time {
	return time.Now().In(c.Location)
}
