package services

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/saptarshihalder/Dzukou-Pricing-2.0/models"
)

// Reporter prints run summaries to a terminal.
type Reporter struct {
	out io.Writer
}

func NewReporter() *Reporter {
	return &Reporter{out: os.Stdout}
}

func NewReporterTo(w io.Writer) *Reporter {
	return &Reporter{out: w}
}

// Print writes the run overview, category and store statistics and the
// recommendation table.
func (r *Reporter) Print(run *models.ScrapeRun, categories []models.CategoryStat, stores []models.StoreStat, recs []*models.PriceRecommendation) {
	sep := strings.Repeat("═", 72)
	thin := strings.Repeat("─", 72)
	w := r.out

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n", sep)
	fmt.Fprintf(w, "\033[1;35m  📊 COMPETITIVE PRICING REPORT\033[0m\n")
	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)

	// Overview
	fmt.Fprintf(w, "\033[1;33m  Overview\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if run != nil {
		fmt.Fprintf(w, "  Run            : %s\n", run.ID)
		fmt.Fprintf(w, "  Status         : \033[1m%s\033[0m\n", run.Status)
		fmt.Fprintf(w, "  Stores         : \033[1m%d/%d\033[0m\n", run.StoresCompleted, run.StoresTotal)
		fmt.Fprintf(w, "  Listings found : \033[1m%d\033[0m\n", run.ProductsFound)
		if len(run.Errors) > 0 {
			fmt.Fprintf(w, "  Errors         : \033[1;31m%d\033[0m\n", len(run.Errors))
		}
	} else {
		fmt.Fprintf(w, "  No scrape run available\n")
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\033[1;33m  Categories\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if len(categories) == 0 {
		fmt.Fprintf(w, "  No category data\n")
	} else {
		fmt.Fprintf(w, "  %-14s %9s %9s %9s %9s %-12s %7s\n",
			"category", "ours", "min", "median", "max", "position", "opp%")
		for _, c := range categories {
			fmt.Fprintf(w, "  %-14s %9.2f %9.2f %9.2f %9.2f %-12s %7.2f\n",
				truncate(c.Category, 14), c.OurAvgPrice, c.CompetitorMin,
				c.CompetitorMedian, c.CompetitorMax, c.MarketPosition, c.Opportunity)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\033[1;33m  Stores\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if len(stores) == 0 {
		fmt.Fprintf(w, "  No store data\n")
	} else {
		for _, s := range stores {
			bar := strings.Repeat("█", min(s.Overlap, 30))
			fmt.Fprintf(w, "  %-24s %9.2f  %-9s %4d listings  %s (%d)\n",
				truncate(s.Store, 24), s.AvgPrice, s.Positioning, s.Products, bar, s.Overlap)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\033[1;33m  Recommendations\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if len(recs) == 0 {
		fmt.Fprintf(w, "  No recommendations\n")
	} else {
		for _, rec := range recs {
			colour := "32"
			if rec.PriceChangePercent < 0 {
				colour = "31"
			}
			fmt.Fprintf(w, "  %-12s %8.2f → \033[1;%sm%8.2f\033[0m (%+6.2f%%)  %-6s conf %.2f\n",
				truncate(rec.ProductID, 12), rec.CurrentPrice, colour, rec.RecommendedPrice,
				rec.PriceChangePercent, rec.RiskLevel, rec.ConfidenceScore)
		}
	}

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n\n", sep)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
