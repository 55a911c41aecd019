package services

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/saptarshihalder/Dzukou-Pricing-2.0/models"
	"github.com/saptarshihalder/Dzukou-Pricing-2.0/storage"
)

// Aggregator derives market statistics for a run. Results are recomputed
// from persisted data on every call.
type Aggregator struct {
	catalog   storage.Catalog
	runs      storage.RunStore
	listings  storage.ListingStore
	tolerance float64
}

// NewAggregator creates an Aggregator. tolerance is the relative band around
// the competitor median that still counts as competitive.
func NewAggregator(catalog storage.Catalog, runs storage.RunStore, listings storage.ListingStore, tolerance float64) *Aggregator {
	return &Aggregator{catalog: catalog, runs: runs, listings: listings, tolerance: tolerance}
}

// CategoryStats returns one entry per catalog category, ordered by name.
func (a *Aggregator) CategoryStats(ctx context.Context, runID string) ([]models.CategoryStat, error) {
	listings, err := a.runListings(ctx, runID)
	if err != nil {
		return nil, err
	}
	products, err := a.catalog.ListProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("aggregator: list products: %w", err)
	}
	return ComputeCategoryStats(products, listings, a.tolerance), nil
}

// StoreStats returns one entry per store with listings in the run, ordered by name.
func (a *Aggregator) StoreStats(ctx context.Context, runID string) ([]models.StoreStat, error) {
	listings, err := a.runListings(ctx, runID)
	if err != nil {
		return nil, err
	}
	return ComputeStoreStats(listings), nil
}

func (a *Aggregator) runListings(ctx context.Context, runID string) ([]*models.ScrapedListing, error) {
	if _, err := a.runs.GetRun(ctx, runID); err != nil {
		return nil, err
	}
	listings, err := a.listings.ListingsByRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("aggregator: listings for run %s: %w", runID, err)
	}
	return listings, nil
}

// ComputeCategoryStats groups matched listing prices by the category of
// their catalog product.
func ComputeCategoryStats(products []*models.Product, listings []*models.ScrapedListing, tolerance float64) []models.CategoryStat {
	categoryOf := make(map[string]string, len(products))
	ours := make(map[string][]float64)
	for _, p := range products {
		categoryOf[p.ID] = p.Category
		ours[p.Category] = append(ours[p.Category], p.CurrentPrice)
	}

	competitors := make(map[string][]float64)
	for _, l := range listings {
		if !l.Matched() || l.Price <= 0 {
			continue
		}
		cat, ok := categoryOf[l.MatchedCatalogID]
		if !ok {
			continue
		}
		competitors[cat] = append(competitors[cat], l.Price)
	}

	stats := make([]models.CategoryStat, 0, len(ours))
	for cat, prices := range ours {
		stats = append(stats, categoryStat(cat, prices, competitors[cat], tolerance))
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Category < stats[j].Category })
	return stats
}

func categoryStat(category string, ours, theirs []float64, tolerance float64) models.CategoryStat {
	our := mean(ours)
	stat := models.CategoryStat{
		Category:             category,
		OurAvgPrice:          round2(our),
		MarketPosition:       models.PositionCompetitive,
		Products:             len(ours),
		CompetitorDataPoints: len(theirs),
	}
	if len(theirs) == 0 {
		return stat
	}

	sorted := append([]float64(nil), theirs...)
	sort.Float64s(sorted)
	median := medianOf(sorted)

	stat.CompetitorMin = round2(sorted[0])
	stat.CompetitorMax = round2(sorted[len(sorted)-1])
	stat.CompetitorMedian = round2(median)
	stat.MarketPosition = MarketPosition(our, median, tolerance)
	if our > 0 {
		stat.Opportunity = round2(math.Max(0, (median-our)/our*100))
	}
	return stat
}

// MarketPosition classifies our price against the competitor median.
func MarketPosition(our, median, tolerance float64) string {
	switch {
	case median <= 0:
		return models.PositionCompetitive
	case our < median*(1-tolerance):
		return models.PositionBelow
	case our > median*(1+tolerance):
		return models.PositionAbove
	default:
		return models.PositionCompetitive
	}
}

// ComputeStoreStats summarises each store's listings. Positioning splits
// the stores into thirds by average price.
func ComputeStoreStats(listings []*models.ScrapedListing) []models.StoreStat {
	type acc struct {
		prices  []float64
		total   int
		matched int
	}
	byStore := make(map[string]*acc)
	for _, l := range listings {
		a := byStore[l.StoreName]
		if a == nil {
			a = &acc{}
			byStore[l.StoreName] = a
		}
		a.total++
		if l.Matched() {
			a.matched++
		}
		if l.Price > 0 {
			a.prices = append(a.prices, l.Price)
		}
	}

	stats := make([]models.StoreStat, 0, len(byStore))
	for name, a := range byStore {
		st := models.StoreStat{
			Store:    name,
			Products: a.total,
			Overlap:  a.matched,
		}
		if len(a.prices) > 0 {
			lo, hi := a.prices[0], a.prices[0]
			for _, p := range a.prices {
				lo, hi = math.Min(lo, p), math.Max(hi, p)
			}
			st.AvgPrice = round2(mean(a.prices))
			st.PriceRange = fmt.Sprintf("%.2f-%.2f", lo, hi)
		}
		if a.total > 0 {
			st.OverlapPercent = round2(float64(a.matched) / float64(a.total) * 100)
		}
		stats = append(stats, st)
	}

	n := len(stats)
	for i := range stats {
		lower := 0
		for j := range stats {
			if stats[j].AvgPrice < stats[i].AvgPrice {
				lower++
			}
		}
		switch lower * 3 / n {
		case 0:
			stats[i].Positioning = models.PositioningValue
		case 1:
			stats[i].Positioning = models.PositioningPremium
		default:
			stats[i].Positioning = models.PositioningLuxury
		}
	}

	sort.Slice(stats, func(i, j int) bool { return stats[i].Store < stats[j].Store })
	return stats
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var total float64
	for _, x := range xs {
		total += x
	}
	return total / float64(len(xs))
}

// medianOf expects sorted input.
func medianOf(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
