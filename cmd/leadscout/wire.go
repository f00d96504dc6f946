package main

import (
	"context"
	"fmt"
	"log"

	"github.com/lferraz/leadscout/internal/config"
	"github.com/lferraz/leadscout/internal/enrich"
	"github.com/lferraz/leadscout/internal/events"
	"github.com/lferraz/leadscout/internal/llm"
	"github.com/lferraz/leadscout/internal/pipeline"
	"github.com/lferraz/leadscout/internal/places"
	"github.com/lferraz/leadscout/internal/queries"
	"github.com/lferraz/leadscout/internal/ratelimit"
	"github.com/lferraz/leadscout/internal/scoring"
	"github.com/lferraz/leadscout/internal/store"
	"github.com/lferraz/leadscout/internal/store/memory"
	"github.com/lferraz/leadscout/internal/store/postgres"
)

// components holds the wired pipeline, shared by the serve and run commands.
// Scoring is nil when no Gemini key is configured.
type components struct {
	cfg         *config.Config
	store       store.Store
	broadcaster *events.Broadcaster
	runs        *pipeline.Controller
	enrich      *enrich.Controller
	scoring     *scoring.Controller

	pg     *postgres.Store
	gemini *llm.GeminiClient
}

// buildComponents wires the pipeline from configuration. With DATABASE_URL
// unset it falls back to the in-memory store, which only makes sense for
// one-shot runs.
func buildComponents(ctx context.Context, cfg *config.Config) (*components, error) {
	c := &components{cfg: cfg}

	if cfg.DatabaseURL != "" {
		pg, err := postgres.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			pg.Close()
			return nil, fmt.Errorf("failed to ensure schema: %w", err)
		}
		c.pg = pg
		c.store = pg
	} else {
		log.Println("DATABASE_URL not set, using in-memory store")
		c.store = memory.New()
	}

	c.broadcaster = events.NewBroadcaster(c.store)
	gate := ratelimit.NewGate(cfg.RequestsPerSecond, 1)
	placesClient := places.NewClient(cfg.PlacesAPIKey, places.Options{
		PageSize: cfg.PageSize,
		Restriction: places.Rect{
			LowLat:  cfg.SearchLowLat,
			LowLng:  cfg.SearchLowLng,
			HighLat: cfg.SearchHighLat,
			HighLng: cfg.SearchHighLng,
		},
	})

	var expander pipeline.Expander
	if cfg.GeminiAPIKey != "" {
		gemini, err := llm.NewGeminiClient(ctx, cfg.GeminiAPIKey)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to create llm client: %w", err)
		}
		c.gemini = gemini
		expander = llm.NewExpander(gemini)

		scorer, err := llm.NewScorer(gemini)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to create scorer: %w", err)
		}
		c.scoring = scoring.NewController(c.store, scorer, c.broadcaster, cfg.ScoringBatchSize, cfg.HighConfidenceScore)
	} else {
		log.Println("GEMINI_API_KEY not set, query expansion and scoring disabled")
	}

	c.runs = pipeline.NewController(pipeline.Config{
		SeedQueries:      queries.Seeds(),
		MaxQueriesPerRun: cfg.MaxQueriesPerRun,
		MaxCandidates:    cfg.MaxCandidates,
		NoveltyWindow:    cfg.NoveltyWindow,
		NoveltyFloor:     cfg.NoveltyFloor,
		MaxPagesPerQuery: cfg.MaxPagesPerQuery,
		ExpandEvery:      cfg.ExpandEvery,
		SearchRetries:    cfg.SearchRetries,
	}, c.store, gate, placesClient, expander, c.broadcaster)

	c.enrich = enrich.NewController(c.store, gate, placesClient, c.broadcaster, cfg.SearchRetries, 0)

	return c, nil
}

// Close releases external connections. Safe on a partially built set.
func (c *components) Close() {
	if c.gemini != nil {
		_ = c.gemini.Close()
	}
	if c.pg != nil {
		c.pg.Close()
	}
}
