package storefront

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/saptarshihalder/Dzukou-Pricing-2.0/models"
	"github.com/saptarshihalder/Dzukou-Pricing-2.0/utils"
)

const maxBodyBytes = 5 << 20

var userAgents = []string{
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/127.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/127.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) Gecko/20100101 Firefox/127.0",
}

var shopifyHintRe = regexp.MustCompile(`/products/|\.myshopify\.com|/collections/|shopify`)

// limiterSet hands out one token bucket per store.
type limiterSet struct {
	mu         sync.Mutex
	defaultRPS float64
	limiters   map[string]*rate.Limiter
}

func newLimiterSet(defaultRPS float64) *limiterSet {
	return &limiterSet{defaultRPS: defaultRPS, limiters: make(map[string]*rate.Limiter)}
}

func (l *limiterSet) wait(ctx context.Context, store models.StoreConfig) error {
	rps := store.RPS
	if rps <= 0 {
		rps = l.defaultRPS
	}
	if rps <= 0 {
		return nil
	}

	l.mu.Lock()
	lim, ok := l.limiters[store.Name]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(rps), 1)
		l.limiters[store.Name] = lim
	}
	l.mu.Unlock()

	return lim.Wait(ctx)
}

// HTTPFetcher searches stores over plain HTTP: Shopify JSON endpoints first
// when the store runs Shopify, then HTML search pages.
type HTTPFetcher struct {
	client   *http.Client
	logger   *utils.Logger
	limiters *limiterSet
	uaNext   atomic.Uint64

	mu      sync.Mutex
	shopify map[string]bool
}

// NewHTTPFetcher creates a fetcher whose requests time out after timeout and
// which sends at most defaultRPS requests per second to a store without its
// own rate.
func NewHTTPFetcher(timeout time.Duration, defaultRPS float64, logger *utils.Logger) *HTTPFetcher {
	return &HTTPFetcher{
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
		limiters: newLimiterSet(defaultRPS),
		shopify:  make(map[string]bool),
	}
}

func (f *HTTPFetcher) FetchStoreListings(ctx context.Context, store models.StoreConfig, terms []string) ([]*models.RawListing, error) {
	return collect(ctx, store, terms, f.logger, func(ctx context.Context, term string) ([]item, error) {
		return f.search(ctx, store, term)
	})
}

func (f *HTTPFetcher) search(ctx context.Context, store models.StoreConfig, term string) ([]item, error) {
	if f.isShopify(ctx, store) {
		items, err := f.shopifySearch(ctx, store, term)
		if len(items) > 0 {
			return items, nil
		}
		if err != nil {
			f.logger.Debug("[%s] shopify search for %q failed, falling back to html: %v", store.Name, term, err)
		}
	}
	return f.htmlSearch(ctx, store, term)
}

func (f *HTTPFetcher) isShopify(ctx context.Context, store models.StoreConfig) bool {
	switch store.Platform {
	case models.PlatformShopify:
		return true
	case models.PlatformHTML, models.PlatformBrowser:
		return false
	}

	f.mu.Lock()
	known, ok := f.shopify[store.Name]
	f.mu.Unlock()
	if ok {
		return known
	}

	body, err := f.get(ctx, store, store.BaseURL)
	if err != nil {
		if !IsTransient(err) {
			f.remember(store.Name, false)
		}
		return false
	}
	detected := shopifyHintRe.Match(body) || shopifyHintRe.MatchString(store.BaseURL)
	if detected {
		f.logger.Debug("[%s] detected shopify storefront", store.Name)
	}
	f.remember(store.Name, detected)
	return detected
}

func (f *HTTPFetcher) remember(store string, shopify bool) {
	f.mu.Lock()
	f.shopify[store] = shopify
	f.mu.Unlock()
}

func (f *HTTPFetcher) shopifySearch(ctx context.Context, store models.StoreConfig, term string) ([]item, error) {
	base := strings.TrimRight(store.BaseURL, "/")
	q := url.Values{}
	q.Set("q", term)
	q.Set("resources[type]", "product")
	q.Set("resources[limit]", fmt.Sprint(MaxResultsPerTerm))

	endpoints := []string{
		base + "/search/suggest.json?" + q.Encode(),
		base + "/products.json?limit=" + fmt.Sprint(MaxResultsPerTerm),
	}

	var lastErr error
	for _, endpoint := range endpoints {
		body, err := f.get(ctx, store, endpoint)
		if err != nil {
			lastErr = err
			continue
		}
		items, err := parseShopifyJSON(body, base)
		if err != nil {
			lastErr = &FetchError{Store: store.Name, URL: endpoint, Err: err}
			continue
		}
		if len(items) > 0 {
			return items, nil
		}
	}
	return nil, lastErr
}

func (f *HTTPFetcher) htmlSearch(ctx context.Context, store models.StoreConfig, term string) ([]item, error) {
	base := strings.TrimRight(store.BaseURL, "/")
	q := url.QueryEscape(term)
	pages := []string{
		base + "/search?q=" + q,
		base + "/search?query=" + q,
		base + "/collections/all?q=" + q,
	}

	var lastErr error
	for _, page := range pages {
		body, err := f.get(ctx, store, page)
		if err != nil {
			lastErr = err
			continue
		}
		items, err := parseSearchHTML(bytes.NewReader(body), base)
		if err != nil {
			return nil, &FetchError{Store: store.Name, URL: page, Err: err}
		}
		return items, nil
	}
	return nil, lastErr
}

func (f *HTTPFetcher) get(ctx context.Context, store models.StoreConfig, rawURL string) ([]byte, error) {
	if err := f.limiters.wait(ctx, store); err != nil {
		return nil, &FetchError{Store: store.Name, URL: rawURL, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &FetchError{Store: store.Name, URL: rawURL, Err: err}
	}
	req.Header.Set("User-Agent", userAgents[f.uaNext.Add(1)%uint64(len(userAgents))])
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Accept", "text/html,application/json;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{Store: store.Name, URL: rawURL, Err: err, Transient: ctx.Err() == nil}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, &FetchError{
			Store:     store.Name,
			URL:       rawURL,
			Status:    resp.StatusCode,
			Transient: transientStatus(resp.StatusCode),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &FetchError{Store: store.Name, URL: rawURL, Err: err, Transient: true}
	}
	return body, nil
}

type searchFunc func(ctx context.Context, term string) ([]item, error)

// collect runs search over every variation of every term and converts the
// relevant, non-duplicate results into raw listings. It fails only when no
// search succeeded at all.
func collect(ctx context.Context, store models.StoreConfig, terms []string, logger *utils.Logger, search searchFunc) ([]*models.RawListing, error) {
	var (
		out       []*models.RawListing
		lastErr   error
		succeeded int
	)

	for _, term := range terms {
		seen := make(map[string]struct{})
		kept := 0

		for _, variation := range ExpandSearchTerms(term) {
			if err := ctx.Err(); err != nil {
				return out, &FetchError{Store: store.Name, URL: store.BaseURL, Err: err}
			}

			items, err := search(ctx, variation)
			if err != nil {
				lastErr = err
				logger.Debug("[%s] search %q failed: %v", store.Name, variation, err)
				continue
			}
			succeeded++

			for _, it := range items {
				if kept >= MaxResultsPerTerm {
					break
				}
				if it.URL == "" || !IsRelevant(it.Title, term) {
					continue
				}
				if _, dup := seen[it.URL]; dup {
					continue
				}
				seen[it.URL] = struct{}{}
				kept++

				out = append(out, &models.RawListing{
					StoreName:  store.Name,
					Title:      it.Title,
					RawPrice:   it.Price,
					Currency:   it.Currency,
					URL:        it.URL,
					Brand:      it.Brand,
					SearchTerm: term,
					ScrapedAt:  time.Now(),
				})
			}
			if kept >= MaxResultsPerTerm*3/4 {
				break
			}
		}
		logger.Debug("[%s] %q: %d listings", store.Name, term, kept)
	}

	if succeeded == 0 && lastErr != nil {
		return nil, lastErr
	}
	return out, nil
}
