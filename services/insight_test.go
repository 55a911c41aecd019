package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saptarshihalder/Dzukou-Pricing-2.0/config"
	"github.com/saptarshihalder/Dzukou-Pricing-2.0/models"
	"github.com/saptarshihalder/Dzukou-Pricing-2.0/utils"
)

func insightRequest() InsightRequest {
	return InsightRequest{
		Product: &models.Product{ID: "P3", Name: "Bamboo Sunglasses Classic", Category: "sunglasses", Brand: "Dzukou", UnitCost: 8, CurrentPrice: 20},
		Stat: models.CategoryStat{
			Category: "sunglasses", CompetitorMin: 18, CompetitorMedian: 26, CompetitorMax: 30,
			CompetitorDataPoints: 5, MarketPosition: models.PositionBelow,
		},
	}
}

func TestOllamaInsightProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/chat", r.URL.Path)

		var req ollamaChatRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gemma3:4b", req.Model)
		assert.False(t, req.Stream)
		if assert.Len(t, req.Messages, 1) {
			assert.Contains(t, req.Messages[0].Content, "Bamboo Sunglasses Classic")
			assert.Contains(t, req.Messages[0].Content, "median: €26.00")
		}

		content := "Here you go:\n```json\n{\"demand_elasticity\": -3.5, \"brand_positioning\": \"Premium\", \"seasonal_factor\": 1.2, \"confidence\": 0.8, \"reasoning\": \"Eco buyers pay more.\"}\n```"
		_ = json.NewEncoder(w).Encode(ollamaChatResponse{Message: ollamaMessage{Role: "assistant", Content: content}})
	}))
	defer srv.Close()

	p := NewOllamaInsightProvider(srv.URL+"/", "gemma3:4b", 5*time.Second, newTestLogger())
	got, err := p.Insight(context.Background(), insightRequest())
	require.NoError(t, err)

	assert.Equal(t, "premium", got.Positioning)
	assert.Equal(t, -2.0, got.Elasticity)
	assert.Equal(t, 1.2, got.SeasonalFactor)
	assert.Equal(t, 0.8, got.ConfidenceWeight)
	assert.Equal(t, "Eco buyers pay more.", got.Reasoning)
}

func TestOllamaBreakerOpensAfterFailures(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	var logs bytes.Buffer
	p := NewOllamaInsightProvider(srv.URL, "gemma3:4b", 5*time.Second, utils.NewLoggerTo(&logs))
	for i := 0; i < 3; i++ {
		assert.NotContains(t, logs.String(), "circuit open")
		_, err := p.Insight(context.Background(), insightRequest())
		require.Error(t, err)
	}
	assert.Contains(t, logs.String(), "ollama circuit open")

	_, err := p.Insight(context.Background(), insightRequest())
	assert.ErrorIs(t, err, ErrInsightUnavailable)
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
}

func TestParseInsight(t *testing.T) {
	got, err := parseInsight(`{"brand_positioning": "boutique", "seasonal_factor": 9}`)
	require.NoError(t, err)
	assert.Equal(t, "competitive", got.Positioning)
	assert.Equal(t, 0.0, got.Elasticity)
	assert.Equal(t, 2.0, got.SeasonalFactor)
	assert.Equal(t, 0.5, got.ConfidenceWeight)

	got, err = parseInsight(`The answer is {"demand_elasticity": 0.4, "brand_positioning": "value", "confidence": 1.7} hope it helps`)
	require.NoError(t, err)
	assert.Equal(t, "value", got.Positioning)
	assert.Equal(t, 0.4, got.Elasticity)
	assert.Equal(t, 1.0, got.ConfidenceWeight)

	_, err = parseInsight("I cannot help with that.")
	assert.ErrorIs(t, err, ErrInsightUnavailable)

	_, err = parseInsight(`{"demand_elasticity": "high"}`)
	assert.Error(t, err)
}

func TestNewInsightProvider(t *testing.T) {
	cfg := &config.Config{InsightProvider: "none"}
	assert.IsType(t, NoopInsightProvider{}, NewInsightProvider(cfg, newTestLogger()))

	cfg = &config.Config{InsightProvider: "Ollama", OllamaHost: "http://localhost:11434", OllamaModel: "gemma3:4b", InsightTimeout: time.Second}
	p := NewInsightProvider(cfg, newTestLogger())
	assert.Equal(t, "ollama", p.Name())

	_, err := NoopInsightProvider{}.Insight(context.Background(), insightRequest())
	assert.True(t, errors.Is(err, ErrInsightUnavailable))
}
