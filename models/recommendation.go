package models

import "time"

type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Constraint flags recorded on a recommendation.
const (
	FlagMarginFloor       = "margin_floor"
	FlagIncreaseCap       = "increase_cap"
	FlagPsychological     = "psychological_rounding"
	FlagInsightAdjustment = "insight_adjustment"
	FlagNoMarketData      = "no_market_data"
)

// Constraints bound every scenario price produced by the optimizer.
type Constraints struct {
	MinMarginPercent        float64 `json:"min_margin_percent" yaml:"min_margin_percent"`
	MaxPriceIncreasePercent float64 `json:"max_price_increase_percent" yaml:"max_price_increase_percent"`
	PsychologicalPricing    bool    `json:"psychological_pricing" yaml:"psychological_pricing"`
}

// Scenario is one candidate price.
type Scenario struct {
	Price          float64 `json:"price"`
	ExpectedMargin float64 `json:"expected_margin"`
}

type Scenarios struct {
	Conservative Scenario `json:"conservative"`
	Recommended  Scenario `json:"recommended"`
	Aggressive   Scenario `json:"aggressive"`
}

// MarketInsight is the qualitative signal returned by an insight provider.
type MarketInsight struct {
	Positioning      string  `json:"positioning"`
	Elasticity       float64 `json:"elasticity"`
	SeasonalFactor   float64 `json:"seasonal_factor"`
	ConfidenceWeight float64 `json:"confidence_weight"`
	Reasoning        string  `json:"reasoning,omitempty"`
}

// PriceRecommendation is the optimizer output for one product.
type PriceRecommendation struct {
	ProductID            string         `json:"product_id"`
	CurrentPrice         float64        `json:"current_price"`
	RecommendedPrice     float64        `json:"recommended_price"`
	PriceChangePercent   float64        `json:"price_change_percent"`
	ExpectedProfitChange float64        `json:"expected_profit_change"`
	RiskLevel            RiskLevel      `json:"risk_level"`
	ConfidenceScore      float64        `json:"confidence_score"`
	Scenarios            Scenarios      `json:"scenarios"`
	Rationale            string         `json:"rationale"`
	ConstraintFlags      []string       `json:"constraint_flags"`
	Insight              *MarketInsight `json:"insight,omitempty"`
	CreatedAt            time.Time      `json:"created_at"`
}

// HasFlag reports whether flag was applied.
func (r *PriceRecommendation) HasFlag(flag string) bool {
	for _, f := range r.ConstraintFlags {
		if f == flag {
			return true
		}
	}
	return false
}

// Clone returns a deep copy.
func (r *PriceRecommendation) Clone() *PriceRecommendation {
	c := *r
	c.ConstraintFlags = append(r.ConstraintFlags[:0:0], r.ConstraintFlags...)
	if r.Insight != nil {
		in := *r.Insight
		c.Insight = &in
	}
	return &c
}
