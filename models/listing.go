package models

import "time"

// RawListing holds unprocessed data as returned by a storefront fetch.
type RawListing struct {
	StoreName  string
	Title      string
	RawPrice   string
	Currency   string
	URL        string
	Brand      string
	Material   string
	Size       string
	SearchTerm string
	ScrapedAt  time.Time
}

// ScrapedListing is a cleaned competitor listing persisted for a run.
// MatchedCatalogID is empty when the listing did not match any product.
type ScrapedListing struct {
	ID               int64     `json:"id"`
	RunID            string    `json:"run_id"`
	StoreName        string    `json:"store_name"`
	ProductURL       string    `json:"product_url"`
	Title            string    `json:"title"`
	Price            float64   `json:"price"`
	Currency         string    `json:"currency"`
	Brand            string    `json:"brand"`
	Material         string    `json:"material"`
	Size             string    `json:"size"`
	SearchTerm       string    `json:"search_term"`
	MatchedCatalogID string    `json:"matched_catalog_id,omitempty"`
	SimilarityScore  float64   `json:"similarity_score"`
	MatchReason      string    `json:"match_reason"`
	CreatedAt        time.Time `json:"created_at"`
}

// Matched reports whether the listing is attributed to a catalog product.
func (l *ScrapedListing) Matched() bool {
	return l.MatchedCatalogID != ""
}
