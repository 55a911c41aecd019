package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "")
	t.Setenv("MIN_MARGIN_PERCENT", "")
	t.Setenv("SEARCH_TERMS", "")

	cfg := Load()
	assert.Equal(t, "sqlite", cfg.DatabaseDriver)
	assert.Equal(t, 40.0, cfg.MinMarginPercent)
	assert.Equal(t, DampingFactor, cfg.DampingFactor)
	assert.Equal(t, DefaultSearchTerms, cfg.SearchTerms)
	assert.Equal(t, 24*time.Hour, cfg.CacheMaxAge)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "postgres")
	t.Setenv("MAX_CONCURRENCY", "7")
	t.Setenv("MAX_PRICE_INCREASE_PERCENT", "12.5")
	t.Setenv("PSYCHOLOGICAL_PRICING", "true")
	t.Setenv("INSIGHT_TIMEOUT", "3s")
	t.Setenv("SEARCH_TERMS", " mug, ,towel ")
	t.Setenv("RATE_LIMIT_MS", "not-a-number")

	cfg := Load()
	assert.Equal(t, "postgres", cfg.DatabaseDriver)
	assert.Equal(t, 7, cfg.MaxConcurrency)
	assert.Equal(t, 500, cfg.RateLimitMs)
	assert.Equal(t, 3*time.Second, cfg.InsightTimeout)
	assert.Equal(t, []string{"mug", "towel"}, cfg.SearchTerms)

	c := cfg.Constraints()
	assert.Equal(t, 12.5, c.MaxPriceIncreasePercent)
	assert.True(t, c.PsychologicalPricing)
}

func TestDSN(t *testing.T) {
	cfg := &Config{PostgresHost: "db", PostgresPort: "5432", PostgresUser: "u", PostgresPassword: "p", PostgresDB: "prices", PostgresSSLMode: "disable"}
	require.Equal(t, "host=db port=5432 user=u password=p dbname=prices sslmode=disable", cfg.DSN())
}
