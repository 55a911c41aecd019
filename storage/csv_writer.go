package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/saptarshihalder/Dzukou-Pricing-2.0/models"
)

var (
	listingHeader = []string{
		"run_id", "store_name", "product_url", "title", "price", "currency", "brand",
		"material", "size", "search_term", "matched_catalog_id", "similarity_score",
		"match_reason", "created_at",
	}
	recommendationHeader = []string{
		"product_id", "current_price", "recommended_price", "price_change_percent",
		"expected_profit_change", "risk_level", "confidence_score",
		"conservative_price", "conservative_margin", "recommended_margin",
		"aggressive_price", "aggressive_margin", "constraint_flags", "rationale",
	}
)

// CSVWriter writes export rows to a CSV file. It is safe for concurrent use.
type CSVWriter struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
}

// newCSVWriter creates (or truncates) the file at path and writes header.
// Intermediate directories are created automatically.
func newCSVWriter(path string, header []string) (*CSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("csv: create file %q: %w", path, err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("csv: write header: %w", err)
	}
	w.Flush()

	return &CSVWriter{file: f, writer: w}, nil
}

// NewListingCSVWriter opens a listings export.
func NewListingCSVWriter(path string) (*CSVWriter, error) {
	return newCSVWriter(path, listingHeader)
}

// NewRecommendationCSVWriter opens a recommendations export.
func NewRecommendationCSVWriter(path string) (*CSVWriter, error) {
	return newCSVWriter(path, recommendationHeader)
}

func (c *CSVWriter) WriteListings(listings []*models.ScrapedListing) error {
	rows := make([][]string, 0, len(listings))
	for _, l := range listings {
		rows = append(rows, ListingRow(l))
	}
	return c.writeRows(rows)
}

func (c *CSVWriter) WriteRecommendations(recs []*models.PriceRecommendation) error {
	rows := make([][]string, 0, len(recs))
	for _, r := range recs {
		rows = append(rows, RecommendationRow(r))
	}
	return c.writeRows(rows)
}

func (c *CSVWriter) writeRows(rows [][]string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, row := range rows {
		if err := c.writer.Write(row); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}
	c.writer.Flush()
	return c.writer.Error()
}

// Close flushes and closes the underlying file.
func (c *CSVWriter) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writer.Flush()
	return c.file.Close()
}

// ListingRow renders a listing in export column order.
func ListingRow(l *models.ScrapedListing) []string {
	return []string{
		l.RunID,
		l.StoreName,
		l.ProductURL,
		l.Title,
		money(l.Price),
		l.Currency,
		l.Brand,
		l.Material,
		l.Size,
		l.SearchTerm,
		l.MatchedCatalogID,
		strconv.FormatFloat(l.SimilarityScore, 'f', 3, 64),
		l.MatchReason,
		l.CreatedAt.Format(time.RFC3339),
	}
}

// RecommendationRow renders a recommendation in export column order.
func RecommendationRow(r *models.PriceRecommendation) []string {
	return []string{
		r.ProductID,
		money(r.CurrentPrice),
		money(r.RecommendedPrice),
		money(r.PriceChangePercent),
		money(r.ExpectedProfitChange),
		string(r.RiskLevel),
		money(r.ConfidenceScore),
		money(r.Scenarios.Conservative.Price),
		money(r.Scenarios.Conservative.ExpectedMargin),
		money(r.Scenarios.Recommended.ExpectedMargin),
		money(r.Scenarios.Aggressive.Price),
		money(r.Scenarios.Aggressive.ExpectedMargin),
		strings.Join(r.ConstraintFlags, ";"),
		r.Rationale,
	}
}

func money(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
