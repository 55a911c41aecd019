package models

// Market position classifications.
const (
	PositionBelow       = "below"
	PositionCompetitive = "competitive"
	PositionAbove       = "above"
)

// Store positioning classifications.
const (
	PositioningValue   = "value"
	PositioningPremium = "premium"
	PositioningLuxury  = "luxury"
)

// CategoryStat summarises competitor prices for one catalog category.
type CategoryStat struct {
	Category             string  `json:"category"`
	OurAvgPrice          float64 `json:"our_avg_price"`
	CompetitorMin        float64 `json:"competitor_min"`
	CompetitorMedian     float64 `json:"competitor_median"`
	CompetitorMax        float64 `json:"competitor_max"`
	MarketPosition       string  `json:"market_position"`
	Opportunity          float64 `json:"opportunity"`
	Products             int     `json:"products"`
	CompetitorDataPoints int     `json:"competitor_data_points"`
}

// StoreStat summarises one competitor store inside a run.
type StoreStat struct {
	Store          string  `json:"store"`
	AvgPrice       float64 `json:"avg_price"`
	PriceRange     string  `json:"price_range"`
	Products       int     `json:"products"`
	Overlap        int     `json:"overlap"`
	OverlapPercent float64 `json:"overlap_percent"`
	Positioning    string  `json:"positioning"`
}
