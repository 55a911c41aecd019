package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/saptarshihalder/Dzukou-Pricing-2.0/config"
	"github.com/saptarshihalder/Dzukou-Pricing-2.0/models"
	"github.com/saptarshihalder/Dzukou-Pricing-2.0/utils"
)

// ErrInsightUnavailable is returned when no insight can be produced. The
// optimizer treats it, like any provider error, as "no signal".
var ErrInsightUnavailable = errors.New("market insight unavailable")

// InsightRequest is what a provider sees about one product.
type InsightRequest struct {
	Product *models.Product
	Stat    models.CategoryStat
}

// MarketInsightProvider returns a qualitative pricing signal for a product.
type MarketInsightProvider interface {
	Name() string
	Insight(ctx context.Context, req InsightRequest) (*models.MarketInsight, error)
}

// NewInsightProvider picks the provider named by cfg.InsightProvider.
func NewInsightProvider(cfg *config.Config, logger *utils.Logger) MarketInsightProvider {
	switch strings.ToLower(cfg.InsightProvider) {
	case "ollama":
		return NewOllamaInsightProvider(cfg.OllamaHost, cfg.OllamaModel, cfg.InsightTimeout, logger)
	default:
		return NoopInsightProvider{}
	}
}

// NoopInsightProvider never has an insight.
type NoopInsightProvider struct{}

func (NoopInsightProvider) Name() string { return "none" }

func (NoopInsightProvider) Insight(context.Context, InsightRequest) (*models.MarketInsight, error) {
	return nil, ErrInsightUnavailable
}

var validPositioning = map[string]bool{
	"value":       true,
	"competitive": true,
	"premium":     true,
	"luxury":      true,
}

// OllamaInsightProvider asks a local Ollama model for a pricing signal.
// Repeated failures open a circuit breaker so a dead host costs one probe
// per reset window instead of one timeout per product.
type OllamaInsightProvider struct {
	host    string
	model   string
	client  *http.Client
	breaker *utils.CircuitBreaker
	logger  *utils.Logger
}

func NewOllamaInsightProvider(host, model string, timeout time.Duration, logger *utils.Logger) *OllamaInsightProvider {
	return &OllamaInsightProvider{
		host:    strings.TrimRight(host, "/"),
		model:   model,
		client:  &http.Client{Timeout: timeout},
		breaker: utils.NewCircuitBreaker("ollama", 3, time.Minute),
		logger:  logger,
	}
}

func (p *OllamaInsightProvider) Name() string { return "ollama" }

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  map[string]any  `json:"options"`
}

type ollamaChatResponse struct {
	Message ollamaMessage `json:"message"`
}

func (p *OllamaInsightProvider) Insight(ctx context.Context, req InsightRequest) (*models.MarketInsight, error) {
	if !p.breaker.Allow() {
		return nil, fmt.Errorf("insight: %s circuit open: %w", p.breaker.Name(), ErrInsightUnavailable)
	}

	content, err := p.chat(ctx, buildInsightPrompt(req))
	if err != nil {
		p.breaker.Failure()
		if p.breaker.Open() {
			p.logger.Warn("[insight] %s circuit open after %v; skipping insights for a while", p.breaker.Name(), err)
		}
		return nil, err
	}
	p.breaker.Success()

	insight, err := parseInsight(content)
	if err != nil {
		p.logger.Debug("[insight] unparseable reply for %s: %v", req.Product.ID, err)
		return nil, err
	}
	return insight, nil
}

func (p *OllamaInsightProvider) chat(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(ollamaChatRequest{
		Model:    p.model,
		Messages: []ollamaMessage{{Role: "user", Content: prompt}},
		Stream:   false,
		Options:  map[string]any{"temperature": 0.1, "num_predict": 512},
	})
	if err != nil {
		return "", fmt.Errorf("insight: encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.host+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("insight: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("insight: call %s: %w", p.host, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("insight: %s returned status %d", p.host, resp.StatusCode)
	}

	var out ollamaChatResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return "", fmt.Errorf("insight: decode response: %w", err)
	}
	return out.Message.Content, nil
}

func buildInsightPrompt(req InsightRequest) string {
	p, st := req.Product, req.Stat
	competitors := "No competitor data available"
	if st.CompetitorDataPoints > 0 {
		competitors = fmt.Sprintf("Competitor prices: €%.2f - €%.2f (median: €%.2f, %d data points)",
			st.CompetitorMin, st.CompetitorMax, st.CompetitorMedian, st.CompetitorDataPoints)
	}

	var b strings.Builder
	b.WriteString("You are a pricing analyst for sustainable/eco products. ")
	b.WriteString("Analyze this product and provide insights in JSON format only.\n\n")
	fmt.Fprintf(&b, "Product: %s (%s, %s)\n", p.Name, p.Category, p.Brand)
	fmt.Fprintf(&b, "Current Price: €%.2f\n", p.CurrentPrice)
	fmt.Fprintf(&b, "Unit Cost: €%.2f\n", p.UnitCost)
	fmt.Fprintf(&b, "Current Margin: %.1f%%\n", p.Margin()*100)
	fmt.Fprintf(&b, "Market Position: %s\n", st.MarketPosition)
	fmt.Fprintf(&b, "%s\n\n", competitors)
	b.WriteString("Respond with valid JSON only (no markdown, no explanations):\n")
	b.WriteString(`{
  "demand_elasticity": -0.8,
  "brand_positioning": "premium",
  "seasonal_factor": 1.0,
  "confidence": 0.7,
  "reasoning": "one sentence"
}`)
	b.WriteString("\n\ndemand_elasticity is between -2 and 2, brand_positioning is one of value, competitive, premium, luxury, ")
	b.WriteString("seasonal_factor is between 0.5 and 2, confidence is between 0 and 1.\n")
	return b.String()
}

type insightReply struct {
	Elasticity  *float64 `json:"demand_elasticity"`
	Positioning string   `json:"brand_positioning"`
	Seasonal    *float64 `json:"seasonal_factor"`
	Confidence  *float64 `json:"confidence"`
	Reasoning   string   `json:"reasoning"`
}

// parseInsight extracts the first JSON object from a model reply and
// clamps every value into range.
func parseInsight(content string) (*models.MarketInsight, error) {
	raw := content
	if i := strings.Index(raw, "```"); i != -1 {
		rest := raw[i+3:]
		rest = strings.TrimPrefix(rest, "json")
		if j := strings.Index(rest, "```"); j != -1 {
			rest = rest[:j]
		}
		raw = rest
	}
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end < start {
		return nil, fmt.Errorf("insight: no JSON object in reply: %w", ErrInsightUnavailable)
	}

	var reply insightReply
	if err := json.Unmarshal([]byte(raw[start:end+1]), &reply); err != nil {
		return nil, fmt.Errorf("insight: decode reply: %w", err)
	}

	insight := &models.MarketInsight{
		Positioning:      strings.ToLower(strings.TrimSpace(reply.Positioning)),
		Elasticity:       clamp(valueOr(reply.Elasticity, 0), -2, 2),
		SeasonalFactor:   clamp(valueOr(reply.Seasonal, 1), 0.5, 2),
		ConfidenceWeight: clamp(valueOr(reply.Confidence, 0.5), 0, 1),
		Reasoning:        strings.TrimSpace(reply.Reasoning),
	}
	if !validPositioning[insight.Positioning] {
		insight.Positioning = "competitive"
	}
	return insight, nil
}

func valueOr(v *float64, fallback float64) float64 {
	if v == nil || math.IsNaN(*v) {
		return fallback
	}
	return *v
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
