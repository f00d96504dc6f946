// Package config provides configuration loading and validation for the
// discovery pipeline. Values come from the environment (main loads .env via
// godotenv); every knob has a default tuned for the free search tier.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
)

// Config holds all pipeline and host settings.
type Config struct {
	// Keys and endpoints.
	PlacesAPIKey string `validate:"required"`
	GeminiAPIKey string
	DatabaseURL  string
	Port         int `validate:"min=1,max=65535"`

	// Run loop controls.
	MaxQueriesPerRun int     `validate:"min=1"`
	MaxCandidates    int     `validate:"min=1"`
	NoveltyWindow    int     `validate:"min=1"`
	NoveltyFloor     float64 `validate:"gte=0,lte=1"`
	ExpandEvery      int     `validate:"min=1"`

	// Search API controls.
	PageSize          int     `validate:"min=1,max=20"`
	MaxPagesPerQuery  int     `validate:"min=1"`
	RequestsPerSecond float64 `validate:"gt=0"`
	SearchRetries     int     `validate:"min=1"`

	// Search bounding rectangle, Boston metro by default. Every text search
	// is restricted to this box.
	SearchLowLat  float64 `validate:"gte=-90,lte=90"`
	SearchLowLng  float64 `validate:"gte=-180,lte=180"`
	SearchHighLat float64 `validate:"gte=-90,lte=90,gtefield=SearchLowLat"`
	SearchHighLng float64 `validate:"gte=-180,lte=180,gtefield=SearchLowLng"`

	// Scoring controls.
	ScoringBatchSize    int `validate:"min=1"`
	HighConfidenceScore int `validate:"min=0,max=100"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Port:                8080,
		MaxQueriesPerRun:    300,
		MaxCandidates:       3000,
		NoveltyWindow:       10,
		NoveltyFloor:        0.05,
		ExpandEvery:         25,
		PageSize:            20,
		MaxPagesPerQuery:    3,
		RequestsPerSecond:   2.0,
		SearchRetries:       3,
		SearchLowLat:        42.2279,
		SearchLowLng:        -71.1912,
		SearchHighLat:       42.4607,
		SearchHighLng:       -70.9297,
		ScoringBatchSize:    10,
		HighConfidenceScore: 75,
	}
}

// FromEnv loads configuration from environment variables over the defaults.
func FromEnv() (*Config, error) {
	cfg := Default()

	cfg.PlacesAPIKey = os.Getenv("PLACES_API_KEY")
	cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")

	var err error
	if cfg.Port, err = envInt("PORT", cfg.Port); err != nil {
		return nil, err
	}
	if cfg.MaxQueriesPerRun, err = envInt("MAX_QUERIES_PER_RUN", cfg.MaxQueriesPerRun); err != nil {
		return nil, err
	}
	if cfg.MaxCandidates, err = envInt("MAX_CANDIDATES", cfg.MaxCandidates); err != nil {
		return nil, err
	}
	if cfg.NoveltyWindow, err = envInt("NOVELTY_WINDOW_SIZE", cfg.NoveltyWindow); err != nil {
		return nil, err
	}
	if cfg.NoveltyFloor, err = envFloat("NOVELTY_FLOOR", cfg.NoveltyFloor); err != nil {
		return nil, err
	}
	if cfg.ExpandEvery, err = envInt("EXPAND_EVERY", cfg.ExpandEvery); err != nil {
		return nil, err
	}
	if cfg.PageSize, err = envInt("PLACES_PAGE_SIZE", cfg.PageSize); err != nil {
		return nil, err
	}
	if cfg.MaxPagesPerQuery, err = envInt("MAX_PAGES_PER_QUERY", cfg.MaxPagesPerQuery); err != nil {
		return nil, err
	}
	if cfg.RequestsPerSecond, err = envFloat("REQUESTS_PER_SECOND", cfg.RequestsPerSecond); err != nil {
		return nil, err
	}
	if cfg.SearchRetries, err = envInt("SEARCH_RETRIES", cfg.SearchRetries); err != nil {
		return nil, err
	}
	if cfg.SearchLowLat, err = envFloat("SEARCH_LOW_LAT", cfg.SearchLowLat); err != nil {
		return nil, err
	}
	if cfg.SearchLowLng, err = envFloat("SEARCH_LOW_LNG", cfg.SearchLowLng); err != nil {
		return nil, err
	}
	if cfg.SearchHighLat, err = envFloat("SEARCH_HIGH_LAT", cfg.SearchHighLat); err != nil {
		return nil, err
	}
	if cfg.SearchHighLng, err = envFloat("SEARCH_HIGH_LNG", cfg.SearchHighLng); err != nil {
		return nil, err
	}
	if cfg.ScoringBatchSize, err = envInt("SCORING_BATCH_SIZE", cfg.ScoringBatchSize); err != nil {
		return nil, err
	}
	if cfg.HighConfidenceScore, err = envInt("HIGH_CONFIDENCE_SCORE", cfg.HighConfidenceScore); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the configuration against its struct constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

func envInt(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func envFloat(key string, def float64) (float64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}
