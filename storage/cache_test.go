package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saptarshihalder/Dzukou-Pricing-2.0/models"
)

func TestMemoryCacheOverwritesAndClones(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryRecommendationCache()

	_, ok, err := c.Get(ctx, "P1")
	require.NoError(t, err)
	assert.False(t, ok)

	rec := &models.PriceRecommendation{ProductID: "P1", RecommendedPrice: 24, ConstraintFlags: []string{models.FlagIncreaseCap}}
	require.NoError(t, c.Put(ctx, rec))
	rec.ConstraintFlags[0] = "mutated"

	got, ok, err := c.Get(ctx, "P1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, models.FlagIncreaseCap, got.ConstraintFlags[0])

	require.NoError(t, c.Put(ctx, &models.PriceRecommendation{ProductID: "P1", RecommendedPrice: 21}))
	got, _, _ = c.Get(ctx, "P1")
	assert.Equal(t, 21.0, got.RecommendedPrice)
}

// Requires a running Redis on localhost; skipped otherwise.
func TestRedisCache_Integration(t *testing.T) {
	ctx := context.Background()
	c := NewRedisRecommendationCache("localhost:6379", "", 0, time.Minute)
	defer c.Close()
	if err := c.Ping(ctx); err != nil {
		t.Skip("Skipping Redis integration test: redis not available")
	}

	id := "test-product-" + time.Now().Format("150405.000000")
	_, ok, err := c.Get(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)

	rec := &models.PriceRecommendation{ProductID: id, RecommendedPrice: 24, RiskLevel: models.RiskMedium, CreatedAt: time.Now().UTC()}
	require.NoError(t, c.Put(ctx, rec))

	got, ok, err := c.Get(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 24.0, got.RecommendedPrice)
	assert.Equal(t, models.RiskMedium, got.RiskLevel)
}
