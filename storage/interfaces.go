package storage

import (
	"context"

	"github.com/saptarshihalder/Dzukou-Pricing-2.0/models"
)

// Catalog is the merchant's product catalog.
type Catalog interface {
	ListProducts(ctx context.Context) ([]*models.Product, error)
	// GetProduct fails with *models.NotFoundError for unknown ids.
	GetProduct(ctx context.Context, id string) (*models.Product, error)
	UpsertProducts(ctx context.Context, products []*models.Product) error
}

// RunStore persists scrape run metadata.
type RunStore interface {
	CreateRun(ctx context.Context, run *models.ScrapeRun) error
	UpdateRun(ctx context.Context, run *models.ScrapeRun) error
	GetRun(ctx context.Context, id string) (*models.ScrapeRun, error)
	// LatestRun returns the most recently started run of any status.
	LatestRun(ctx context.Context) (*models.ScrapeRun, error)
	// LatestFinishedRun returns the most recent completed or stopped run.
	LatestFinishedRun(ctx context.Context) (*models.ScrapeRun, error)
}

// ListingStore is the append-only listing log. Appending a URL already
// stored for the same run is a no-op.
type ListingStore interface {
	AppendListings(ctx context.Context, listings []*models.ScrapedListing) error
	ListingsByRun(ctx context.Context, runID string) ([]*models.ScrapedListing, error)
}

// RecommendationCache holds the latest recommendation per product id.
type RecommendationCache interface {
	Get(ctx context.Context, productID string) (*models.PriceRecommendation, bool, error)
	Put(ctx context.Context, rec *models.PriceRecommendation) error
}

// Store bundles every persistence concern behind one backend.
type Store interface {
	Catalog
	RunStore
	ListingStore
	Close() error
}
