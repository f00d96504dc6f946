package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	cfg := Default()
	cfg.PlacesAPIKey = "test-key"
	return cfg
}

func TestDefault_IsValidWithKey(t *testing.T) {
	cfg := validConfig()
	assert.NoError(t, cfg.Validate())
}

func TestValidate_RequiresPlacesKey(t *testing.T) {
	cfg := Default()
	assert.Error(t, cfg.Validate())
}

func TestValidate_Bounds(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero max queries", func(c *Config) { c.MaxQueriesPerRun = 0 }},
		{"negative novelty floor", func(c *Config) { c.NoveltyFloor = -0.1 }},
		{"novelty floor above 1", func(c *Config) { c.NoveltyFloor = 1.5 }},
		{"page size above api max", func(c *Config) { c.PageSize = 21 }},
		{"zero rate", func(c *Config) { c.RequestsPerSecond = 0 }},
		{"port out of range", func(c *Config) { c.Port = 70000 }},
		{"high confidence above 100", func(c *Config) { c.HighConfidenceScore = 101 }},
		{"latitude out of range", func(c *Config) { c.SearchHighLat = 91 }},
		{"inverted rectangle", func(c *Config) { c.SearchHighLng = c.SearchLowLng - 1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestDefault_SearchRectangleCoversBostonMetro(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 42.2279, cfg.SearchLowLat)
	assert.Equal(t, -71.1912, cfg.SearchLowLng)
	assert.Equal(t, 42.4607, cfg.SearchHighLat)
	assert.Equal(t, -70.9297, cfg.SearchHighLng)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("PLACES_API_KEY", "env-key")
	t.Setenv("MAX_QUERIES_PER_RUN", "50")
	t.Setenv("NOVELTY_FLOOR", "0.1")
	t.Setenv("REQUESTS_PER_SECOND", "1.5")
	t.Setenv("SEARCH_HIGH_LAT", "42.5")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "env-key", cfg.PlacesAPIKey)
	assert.Equal(t, 50, cfg.MaxQueriesPerRun)
	assert.Equal(t, 0.1, cfg.NoveltyFloor)
	assert.Equal(t, 1.5, cfg.RequestsPerSecond)
	assert.Equal(t, 42.5, cfg.SearchHighLat)

	// Untouched knobs keep their defaults.
	assert.Equal(t, Default().MaxCandidates, cfg.MaxCandidates)
}

func TestFromEnv_InvalidValue(t *testing.T) {
	t.Setenv("MAX_QUERIES_PER_RUN", "lots")

	_, err := FromEnv()
	assert.ErrorContains(t, err, "MAX_QUERIES_PER_RUN")
}
