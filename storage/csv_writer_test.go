package storage

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saptarshihalder/Dzukou-Pricing-2.0/models"
)

func TestRecommendationCSVExport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "recommendations.csv")
	w, err := NewRecommendationCSVWriter(path)
	require.NoError(t, err)

	rec := &models.PriceRecommendation{
		ProductID:        "P1",
		CurrentPrice:     20,
		RecommendedPrice: 24,
		RiskLevel:        models.RiskMedium,
		Scenarios: models.Scenarios{
			Conservative: models.Scenario{Price: 22, ExpectedMargin: 63.64},
			Recommended:  models.Scenario{Price: 24, ExpectedMargin: 66.67},
			Aggressive:   models.Scenario{Price: 24, ExpectedMargin: 66.67},
		},
		ConstraintFlags: []string{models.FlagIncreaseCap, models.FlagMarginFloor},
		Rationale:       "Competitor median 26.00",
	}
	require.NoError(t, w.WriteRecommendations([]*models.PriceRecommendation{rec}))
	require.NoError(t, w.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	require.Len(t, rows, 2)
	assert.Equal(t, recommendationHeader, rows[0])
	assert.Equal(t, "24.00", rows[1][2])
	assert.Equal(t, "increase_cap;margin_floor", rows[1][12])
}

func TestListingRow(t *testing.T) {
	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	row := ListingRow(&models.ScrapedListing{
		RunID: "r1", StoreName: "GOODEE", ProductURL: "https://goodee.example/p/1",
		Title: "Shades", Price: 26.5, MatchedCatalogID: "P1", SimilarityScore: 0.75,
		MatchReason: "token_overlap=0.75", CreatedAt: at,
	})
	require.Len(t, row, len(listingHeader))
	assert.Equal(t, "26.50", row[4])
	assert.Equal(t, "0.750", row[11])
	assert.Equal(t, "2024-06-01T12:00:00Z", row[13])
}
