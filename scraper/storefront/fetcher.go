// Package storefront fetches competitor product listings from online stores.
package storefront

import (
	"context"
	"errors"
	"fmt"

	"github.com/saptarshihalder/Dzukou-Pricing-2.0/models"
)

// MaxResultsPerTerm caps the listings kept for one search term in one store.
const MaxResultsPerTerm = 20

// Fetcher retrieves raw listings for a set of search terms from one store.
// Implementations return *FetchError for failures.
type Fetcher interface {
	FetchStoreListings(ctx context.Context, store models.StoreConfig, terms []string) ([]*models.RawListing, error)
}

// FetchError describes a failed store request.
type FetchError struct {
	Store     string
	URL       string
	Status    int
	Err       error
	Transient bool
}

func (e *FetchError) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s fetch error for %s (%s): status %d", kind, e.Store, e.URL, e.Status)
	}
	return fmt.Sprintf("%s fetch error for %s (%s): %v", kind, e.Store, e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Transient
	}
	return false
}

func transientStatus(code int) bool {
	return code == 403 || code == 429 || code >= 500
}

// Router sends browser-platform stores to Browser and everything else to HTTP.
type Router struct {
	HTTP    Fetcher
	Browser Fetcher
}

func (r *Router) FetchStoreListings(ctx context.Context, store models.StoreConfig, terms []string) ([]*models.RawListing, error) {
	if store.Platform == models.PlatformBrowser && r.Browser != nil {
		return r.Browser.FetchStoreListings(ctx, store, terms)
	}
	return r.HTTP.FetchStoreListings(ctx, store, terms)
}
