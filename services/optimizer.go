package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/saptarshihalder/Dzukou-Pricing-2.0/config"
	"github.com/saptarshihalder/Dzukou-Pricing-2.0/models"
	"github.com/saptarshihalder/Dzukou-Pricing-2.0/utils"
)

// OptimizerConfig carries the pricing tunables.
type OptimizerConfig struct {
	DampingFactor      float64
	UnitVolumeBaseline float64
	InsightTimeout     time.Duration
}

func DefaultOptimizerConfig() OptimizerConfig {
	return OptimizerConfig{
		DampingFactor:      config.DampingFactor,
		UnitVolumeBaseline: config.UnitVolumeBaseline,
		InsightTimeout:     20 * time.Second,
	}
}

// Optimizer turns catalog economics and market statistics into a price
// recommendation. It holds no per-product state and is safe for
// concurrent use.
type Optimizer struct {
	cfg     OptimizerConfig
	insight MarketInsightProvider
	metrics *utils.Metrics
	logger  *utils.Logger
	now     func() time.Time
}

func NewOptimizer(cfg OptimizerConfig, insight MarketInsightProvider, metrics *utils.Metrics, logger *utils.Logger) *Optimizer {
	if insight == nil {
		insight = NoopInsightProvider{}
	}
	return &Optimizer{
		cfg:     cfg,
		insight: insight,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

var (
	half    = decimal.NewFromFloat(0.5)
	hundred = decimal.NewFromInt(100)
	one     = decimal.NewFromInt(1)
)

// Optimize never fails: missing market data or a failed insight call only
// lowers the confidence of the result.
func (o *Optimizer) Optimize(ctx context.Context, product *models.Product, stat models.CategoryStat, c models.Constraints) *models.PriceRecommendation {
	var flags flagSet

	current := decimal.NewFromFloat(product.CurrentPrice)
	cost := decimal.NewFromFloat(product.UnitCost)
	median := decimal.NewFromFloat(stat.CompetitorMedian)
	n := stat.CompetitorDataPoints
	noData := n == 0 || stat.CompetitorMedian <= 0
	if noData {
		flags.add(models.FlagNoMarketData)
	}

	baseline := current
	if !noData {
		baseline = o.baseline(current, cost, median)
	}

	target := baseline
	switch baseline.Cmp(current) {
	case 1:
		target = decimal.Max(median, decimal.NewFromFloat(stat.CompetitorMax))
	case -1:
		target = median
	}

	cons := current.Add(baseline.Sub(current).Mul(half))
	rec := baseline
	agg := baseline.Add(target.Sub(baseline).Mul(half))

	bounds := newPriceBounds(current, cost, c)
	cons = bounds.clip(cons, &flags)
	rec = bounds.clip(rec, &flags)
	agg = bounds.clip(agg, &flags)

	insight := o.fetchInsight(ctx, product, stat)
	if insight != nil {
		nudged := nudge(rec, cons, agg, insightStrength(insight))
		if !nudged.Equal(rec) {
			flags.add(models.FlagInsightAdjustment)
			rec = nudged
		}
	}

	if c.PsychologicalPricing {
		changed := false
		for _, p := range []*decimal.Decimal{&cons, &rec, &agg} {
			if r := bounds.charmRound(*p); !r.Equal(*p) {
				*p = r
				changed = true
			}
		}
		if changed {
			flags.add(models.FlagPsychological)
		}
	}

	cons, rec, agg = orderScenarios(cons, rec, agg, baseline.LessThan(current))

	recF := rec.InexactFloat64()
	pct := 0.0
	if product.CurrentPrice > 0 {
		pct = round2((recF - product.CurrentPrice) / product.CurrentPrice * 100)
	}

	result := &models.PriceRecommendation{
		ProductID:            product.ID,
		CurrentPrice:         product.CurrentPrice,
		RecommendedPrice:     recF,
		PriceChangePercent:   pct,
		ExpectedProfitChange: round2(rec.Sub(current).InexactFloat64() * o.cfg.UnitVolumeBaseline),
		RiskLevel:            riskLevel(pct, n),
		ConfidenceScore:      confidence(stat, noData, insight),
		Scenarios: models.Scenarios{
			Conservative: scenario(cons, cost),
			Recommended:  scenario(rec, cost),
			Aggressive:   scenario(agg, cost),
		},
		ConstraintFlags: flags.list(),
		Insight:         insight,
		CreatedAt:       o.now().UTC(),
	}
	result.Rationale = rationale(product, stat, result, noData)

	o.logger.Debug("[optimizer] %s: %.2f -> %.2f (%+.2f%%, %s, conf %.2f, flags %v)",
		product.ID, product.CurrentPrice, recF, pct, result.RiskLevel, result.ConfidenceScore, result.ConstraintFlags)
	return result
}

// baseline moves current toward the median by at most DampingFactor of the
// cost-to-median headroom, without overshooting the median.
func (o *Optimizer) baseline(current, cost, median decimal.Decimal) decimal.Decimal {
	gap := median.Sub(cost)
	if gap.Sign() <= 0 {
		return current
	}
	step := gap.Mul(decimal.NewFromFloat(o.cfg.DampingFactor))
	diff := median.Sub(current)
	if diff.Abs().LessThanOrEqual(step) {
		return median
	}
	if diff.Sign() > 0 {
		return current.Add(step)
	}
	return current.Sub(step)
}

func (o *Optimizer) fetchInsight(ctx context.Context, product *models.Product, stat models.CategoryStat) *models.MarketInsight {
	if o.cfg.InsightTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.InsightTimeout)
		defer cancel()
	}
	insight, err := o.insight.Insight(ctx, InsightRequest{Product: product, Stat: stat})
	if err != nil {
		if !errors.Is(err, ErrInsightUnavailable) {
			o.logger.Debug("[optimizer] %s: insight from %s failed: %v", product.ID, o.insight.Name(), err)
			o.metrics.RecordInsightError(ctx, o.insight.Name())
		}
		return nil
	}
	return insight
}

// priceBounds are the cent-rounded margin floor and increase cap.
type priceBounds struct {
	floor decimal.Decimal
	cap   decimal.Decimal
}

func newPriceBounds(current, cost decimal.Decimal, c models.Constraints) priceBounds {
	minMargin := math.Max(0, math.Min(c.MinMarginPercent, 99))
	keep := one.Sub(decimal.NewFromFloat(minMargin).Div(hundred))
	maxIncrease := math.Max(0, c.MaxPriceIncreasePercent)
	return priceBounds{
		floor: cost.Div(keep).RoundCeil(2),
		cap:   current.Mul(one.Add(decimal.NewFromFloat(maxIncrease).Div(hundred))).RoundFloor(2),
	}
}

// clip applies the margin floor, then the increase cap. When the cap sits
// below the floor the cap wins and both rules are flagged.
func (b priceBounds) clip(p decimal.Decimal, flags *flagSet) decimal.Decimal {
	p = p.Round(2)
	if p.LessThan(b.floor) {
		p = b.floor
		flags.add(models.FlagMarginFloor)
	}
	if p.GreaterThan(b.cap) {
		p = b.cap
		flags.add(models.FlagIncreaseCap)
	}
	if p.LessThan(b.floor) {
		flags.add(models.FlagMarginFloor)
	}
	return p
}

// charmRound moves p to the nearest x.99 price inside the bounds. Prices
// with no x.99 neighbour in range are left alone.
func (b priceBounds) charmRound(p decimal.Decimal) decimal.Decimal {
	whole := p.Floor()
	ending := decimal.NewFromFloat(0.99)
	candidates := []decimal.Decimal{
		whole.Sub(one).Add(ending),
		whole.Add(ending),
	}
	best := p
	found := false
	var bestDist decimal.Decimal
	for _, cand := range candidates {
		if cand.Sign() <= 0 || cand.LessThan(b.floor) || cand.GreaterThan(b.cap) {
			continue
		}
		dist := cand.Sub(p).Abs()
		if !found || dist.LessThan(bestDist) {
			best, bestDist, found = cand, dist, true
		}
	}
	return best
}

// insightStrength folds an insight into a signed pull in [-1, 1].
// Positive values favour the aggressive end of the band.
func insightStrength(in *models.MarketInsight) float64 {
	pos := 0.0
	switch in.Positioning {
	case "value":
		pos = -1
	case "premium":
		pos = 0.5
	case "luxury":
		pos = 1
	}
	s := pos + 0.5*in.Elasticity + 2*(in.SeasonalFactor-1)
	return clamp(s, -1, 1) * in.ConfidenceWeight
}

// nudge moves rec toward the top or bottom of the conservative/aggressive
// band by the fraction |s|.
func nudge(rec, cons, agg decimal.Decimal, s float64) decimal.Decimal {
	lo, hi := decimal.Min(cons, agg), decimal.Max(cons, agg)
	frac := decimal.NewFromFloat(math.Abs(s))
	var out decimal.Decimal
	switch {
	case s > 0:
		out = rec.Add(hi.Sub(rec).Mul(frac))
	case s < 0:
		out = rec.Sub(rec.Sub(lo).Mul(frac))
	default:
		return rec
	}
	out = out.Round(2)
	if out.LessThan(lo) {
		return lo
	}
	if out.GreaterThan(hi) {
		return hi
	}
	return out
}

// orderScenarios keeps conservative as the smallest move and aggressive as
// the largest.
func orderScenarios(cons, rec, agg decimal.Decimal, decreasing bool) (decimal.Decimal, decimal.Decimal, decimal.Decimal) {
	ps := []decimal.Decimal{cons, rec, agg}
	sort.Slice(ps, func(i, j int) bool { return ps[i].LessThan(ps[j]) })
	if decreasing {
		return ps[2], ps[1], ps[0]
	}
	return ps[0], ps[1], ps[2]
}

func scenario(price, cost decimal.Decimal) models.Scenario {
	s := models.Scenario{Price: price.InexactFloat64()}
	if price.Sign() > 0 {
		s.ExpectedMargin = round2(price.Sub(cost).Div(price).Mul(hundred).InexactFloat64())
	}
	return s
}

func confidence(stat models.CategoryStat, noData bool, insight *models.MarketInsight) float64 {
	density := math.Min(1, float64(stat.CompetitorDataPoints)/10)
	certainty := 0.0
	if !noData {
		certainty = 0.5
		if stat.MarketPosition == models.PositionBelow || stat.MarketPosition == models.PositionAbove {
			certainty = 1
		}
	}
	score := 0.2 + 0.3*density + 0.1*certainty
	if insight != nil {
		score += 0.35 * insight.ConfidenceWeight
	}
	ceiling := 1.0
	if noData {
		ceiling = 0.45
	}
	return round2(math.Min(score, ceiling))
}

func riskLevel(pct float64, dataPoints int) models.RiskLevel {
	switch {
	case pct >= 10 && dataPoints < 3:
		return models.RiskHigh
	case math.Abs(pct) < 3 || dataPoints >= 8:
		return models.RiskLow
	default:
		return models.RiskMedium
	}
}

func rationale(p *models.Product, stat models.CategoryStat, r *models.PriceRecommendation, noData bool) string {
	var parts []string
	if noData {
		parts = append(parts, fmt.Sprintf("No competitor prices matched in %s; holding near the current price.", p.Category))
	} else {
		parts = append(parts, fmt.Sprintf("Our price %.2f is %s the %s median %.2f across %d competitor prices (range %.2f-%.2f).",
			p.CurrentPrice, positionPhrase(stat.MarketPosition), stat.Category, stat.CompetitorMedian,
			stat.CompetitorDataPoints, stat.CompetitorMin, stat.CompetitorMax))
	}
	switch {
	case r.RecommendedPrice > r.CurrentPrice:
		parts = append(parts, fmt.Sprintf("Raise to %.2f (%+.2f%%).", r.RecommendedPrice, r.PriceChangePercent))
	case r.RecommendedPrice < r.CurrentPrice:
		parts = append(parts, fmt.Sprintf("Lower to %.2f (%+.2f%%).", r.RecommendedPrice, r.PriceChangePercent))
	default:
		parts = append(parts, "Keep the current price.")
	}
	for _, f := range r.ConstraintFlags {
		switch f {
		case models.FlagMarginFloor:
			parts = append(parts, "Held at the minimum margin floor.")
		case models.FlagIncreaseCap:
			parts = append(parts, "Limited by the maximum price increase.")
		case models.FlagInsightAdjustment:
			parts = append(parts, fmt.Sprintf("Adjusted for %s positioning from market insight.", r.Insight.Positioning))
		case models.FlagPsychological:
			parts = append(parts, "Rounded to a .99 ending.")
		}
	}
	if r.Insight != nil && r.Insight.Reasoning != "" {
		parts = append(parts, r.Insight.Reasoning)
	}
	return strings.Join(parts, " ")
}

func positionPhrase(position string) string {
	switch position {
	case models.PositionBelow:
		return "below"
	case models.PositionAbove:
		return "above"
	default:
		return "in line with"
	}
}

// flagSet keeps first-seen order without duplicates.
type flagSet struct {
	flags []string
}

func (f *flagSet) add(flag string) {
	for _, existing := range f.flags {
		if existing == flag {
			return
		}
	}
	f.flags = append(f.flags, flag)
}

func (f *flagSet) list() []string {
	return append([]string{}, f.flags...)
}
