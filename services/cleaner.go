package services

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/saptarshihalder/Dzukou-Pricing-2.0/models"
	"github.com/saptarshihalder/Dzukou-Pricing-2.0/scraper/storefront"
	"github.com/saptarshihalder/Dzukou-Pricing-2.0/utils"
)

var (
	// priceRegexp captures the first number, separators included
	priceRegexp = regexp.MustCompile(`\d[\d.,]*`)
	// centsRegexp matches bare integers, which Shopify uses for minor units
	centsRegexp = regexp.MustCompile(`^\d+$`)
	// placeholderRegexp matches titles of test or unfinished products
	placeholderRegexp = regexp.MustCompile(`(?i)\b(test|sample|demo|lorem|ipsum|dummy|placeholder|coming soon)\b`)
)

// Cleaner turns RawListings into validated ScrapedListings.
type Cleaner struct {
	logger *utils.Logger
}

// NewCleaner creates a Cleaner with the given logger.
func NewCleaner(logger *utils.Logger) *Cleaner {
	return &Cleaner{logger: logger}
}

// Clean validates one store's raw listings for a run. Listings without a
// URL or a price, duplicates, placeholder products and titles unrelated to
// their search term are dropped.
func (c *Cleaner) Clean(runID string, raw []*models.RawListing) []*models.ScrapedListing {
	seen := make(map[string]struct{})
	result := make([]*models.ScrapedListing, 0, len(raw))

	for _, r := range raw {
		url := strings.TrimSpace(r.URL)
		if url == "" {
			c.logger.Debug("[cleaner] Dropping listing with empty URL: %s", r.Title)
			continue
		}
		if _, dup := seen[url]; dup {
			c.logger.Debug("[cleaner] Duplicate URL skipped: %s", url)
			continue
		}
		seen[url] = struct{}{}

		title := normaliseText(r.Title)
		if title == "" || placeholderRegexp.MatchString(title) {
			c.logger.Debug("[cleaner] Skipping placeholder product: %q", title)
			continue
		}
		if r.SearchTerm != "" && !storefront.IsRelevant(title, r.SearchTerm) {
			c.logger.Debug("[cleaner] Skipping %q, not relevant to %q", title, r.SearchTerm)
			continue
		}

		price := parsePrice(r.RawPrice)
		if price <= 0 {
			c.logger.Debug("[cleaner] Skipping %q without a price (%q)", title, r.RawPrice)
			continue
		}

		currency := strings.ToUpper(strings.TrimSpace(r.Currency))
		if currency == "" {
			currency = currencyFromSymbol(r.RawPrice)
		}

		createdAt := r.ScrapedAt
		if createdAt.IsZero() {
			createdAt = time.Now()
		}

		result = append(result, &models.ScrapedListing{
			RunID:      runID,
			StoreName:  r.StoreName,
			ProductURL: url,
			Title:      title,
			Price:      price,
			Currency:   currency,
			Brand:      normaliseText(r.Brand),
			Material:   normaliseText(r.Material),
			Size:       normaliseText(r.Size),
			SearchTerm: r.SearchTerm,
			CreatedAt:  createdAt,
		})
	}

	c.logger.Debug("[cleaner] Cleaned %d → %d listings (dropped %d)",
		len(raw), len(result), len(raw)-len(result))
	return result
}

// parsePrice extracts the first amount from a price string.
// Examples:
//
//	"$1,200.50" → 1200.50
//	"€12,95"    → 12.95
//	"1.234,56"  → 1234.56
//	"3400"      → 34.00 (minor units)
func parsePrice(raw string) float64 {
	raw = strings.TrimSpace(raw)
	if centsRegexp.MatchString(raw) {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return 0
		}
		if v > 1000 {
			return v / 100
		}
		return v
	}

	match := strings.TrimRight(priceRegexp.FindString(raw), ".,")
	if match == "" {
		return 0
	}

	v, err := strconv.ParseFloat(normaliseSeparators(match), 64)
	if err != nil {
		return 0
	}
	return v
}

// normaliseSeparators rewrites a number that may use either "," or "." as
// its decimal separator into Go's format.
func normaliseSeparators(s string) string {
	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")

	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			return strings.Replace(s, ",", ".", 1)
		}
		return strings.ReplaceAll(s, ",", "")
	case lastComma >= 0:
		if strings.Count(s, ",") == 1 && len(s)-lastComma-1 == 2 {
			return strings.Replace(s, ",", ".", 1)
		}
		return strings.ReplaceAll(s, ",", "")
	case strings.Count(s, ".") > 1:
		return strings.ReplaceAll(s, ".", "")
	}
	return s
}

func currencyFromSymbol(raw string) string {
	switch {
	case strings.Contains(raw, "€"), strings.Contains(strings.ToUpper(raw), "EUR"):
		return "EUR"
	case strings.Contains(raw, "£"), strings.Contains(strings.ToUpper(raw), "GBP"):
		return "GBP"
	case strings.Contains(raw, "₹"), strings.Contains(strings.ToUpper(raw), "INR"):
		return "INR"
	default:
		return "USD"
	}
}

// normaliseText strips leading/trailing whitespace and collapses internal whitespace.
func normaliseText(s string) string {
	fields := strings.FieldsFunc(s, unicode.IsSpace)
	return strings.Join(fields, " ")
}
