package storefront

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saptarshihalder/Dzukou-Pricing-2.0/models"
	"github.com/saptarshihalder/Dzukou-Pricing-2.0/utils"
)

func quietLogger() *utils.Logger { return utils.NewLoggerTo(io.Discard) }

func newFetcher() *HTTPFetcher {
	return NewHTTPFetcher(5*time.Second, 0, quietLogger())
}

const suggestPayload = `{
  "resources": {
    "results": {
      "products": [
        {"title": "Bamboo Sunglasses Classic", "url": "/products/bamboo-sunglasses", "price": "29.00", "vendor": "EarthHero"},
        {"title": "Polarized Shades", "handle": "polarized-shades", "price": "3400"},
        {"title": "Cotton Tote Bag", "url": "/products/tote", "price": "15.00"}
      ]
    }
  }
}`

func TestHTTPFetcherShopify(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/search/suggest.json" {
			hits.Add(1)
			assert.NotEmpty(t, r.Header.Get("User-Agent"))
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, suggestPayload)
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	store := models.StoreConfig{Name: "EarthHero", BaseURL: srv.URL, Platform: models.PlatformShopify, RPS: 1000}
	listings, err := newFetcher().FetchStoreListings(context.Background(), store, []string{"sunglasses"})
	require.NoError(t, err)

	require.Len(t, listings, 2, "tote bag is irrelevant and variations return the same URLs")
	assert.Equal(t, "Bamboo Sunglasses Classic", listings[0].Title)
	assert.Equal(t, srv.URL+"/products/bamboo-sunglasses", listings[0].URL)
	assert.Equal(t, "29.00", listings[0].RawPrice)
	assert.Equal(t, "EarthHero", listings[0].Brand)
	assert.Equal(t, srv.URL+"/products/polarized-shades", listings[1].URL)
	assert.Equal(t, "3400", listings[1].RawPrice)
	for _, l := range listings {
		assert.Equal(t, "sunglasses", l.SearchTerm)
		assert.Equal(t, "EarthHero", l.StoreName)
	}
	assert.Equal(t, int32(len(ExpandSearchTerms("sunglasses"))), hits.Load())
}

const searchPage = `<html><head>
<script type="application/ld+json">
{"@context":"https://schema.org","@type":"ItemList","itemListElement":[
  {"@type":"ListItem","position":1,"item":{"@type":"Product","name":"Steel Water Bottle","url":"/p/steel-bottle",
   "offers":{"@type":"Offer","price":24.5,"priceCurrency":"EUR"}}}
]}
</script>
</head><body>
<div class="product-card"><a href="/p/glass-bottle"><h3>Glass  Bottle</h3></a><span class="price">€12,95</span></div>
<div class="product-card"><a href="/p/mug"><h3>Ceramic Mug</h3></a><span class="price">€9,00</span></div>
<div class="product-card"><h3>No Link Bottle</h3><span class="price">€5,00</span></div>
</body></html>`

func TestHTTPFetcherHTMLSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/search" && r.URL.Query().Get("q") != "" {
			_, _ = io.WriteString(w, searchPage)
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	store := models.StoreConfig{Name: "Folksy", BaseURL: srv.URL, Platform: models.PlatformHTML, RPS: 1000}
	listings, err := newFetcher().FetchStoreListings(context.Background(), store, []string{"water bottle"})
	require.NoError(t, err)

	require.Len(t, listings, 2)
	assert.Equal(t, "Steel Water Bottle", listings[0].Title)
	assert.Equal(t, "24.5", listings[0].RawPrice)
	assert.Equal(t, "EUR", listings[0].Currency)
	assert.Equal(t, "Glass Bottle", listings[1].Title)
	assert.Equal(t, "€12,95", listings[1].RawPrice)
	assert.Equal(t, srv.URL+"/p/glass-bottle", listings[1].URL)
}

func TestHTTPFetcherDetectsShopify(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			_, _ = io.WriteString(w, `<script src="https://cdn.shopify.com/s/files/theme.js"></script>`)
		case "/search/suggest.json":
			_, _ = io.WriteString(w, suggestPayload)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := newFetcher()
	store := models.StoreConfig{Name: "Made Trade", BaseURL: srv.URL, RPS: 1000}
	listings, err := f.FetchStoreListings(context.Background(), store, []string{"sunglasses"})
	require.NoError(t, err)
	assert.Len(t, listings, 2)
	assert.True(t, f.shopify["Made Trade"])
}

func TestHTTPFetcherErrorClassification(t *testing.T) {
	cases := []struct {
		status    int
		transient bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusForbidden, true},
		{http.StatusBadGateway, true},
		{http.StatusNotFound, false},
	}
	for _, c := range cases {
		t.Run(fmt.Sprint(c.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(c.status)
			}))
			defer srv.Close()

			store := models.StoreConfig{Name: "GOODEE", BaseURL: srv.URL, Platform: models.PlatformHTML, RPS: 1000}
			_, err := newFetcher().FetchStoreListings(context.Background(), store, []string{"towel"})
			require.Error(t, err)
			assert.Equal(t, c.transient, IsTransient(err))

			var fe *FetchError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, c.status, fe.Status)
			assert.Equal(t, "GOODEE", fe.Store)
		})
	}
}

func TestHTTPFetcherNetworkErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	store := models.StoreConfig{Name: "DoneGood", BaseURL: base, Platform: models.PlatformHTML, RPS: 1000}
	_, err := newFetcher().FetchStoreListings(context.Background(), store, []string{"mug"})
	require.Error(t, err)
	assert.True(t, IsTransient(err))
}

func TestCollectCapsResultsPerTerm(t *testing.T) {
	search := func(ctx context.Context, term string) ([]item, error) {
		items := make([]item, 30)
		for i := range items {
			items[i] = item{Title: fmt.Sprintf("Towel %d", i), Price: "10", URL: fmt.Sprintf("https://s.example/%d", i)}
		}
		return items, nil
	}
	store := models.StoreConfig{Name: "EcoRoots"}
	out, err := collect(context.Background(), store, []string{"towel", "hand towel"}, nil, search)
	require.NoError(t, err)
	assert.Len(t, out, 2*MaxResultsPerTerm)
}

func TestRouter(t *testing.T) {
	httpF := &stubFetcher{name: "http"}
	browserF := &stubFetcher{name: "browser"}
	r := &Router{HTTP: httpF, Browser: browserF}

	out, err := r.FetchStoreListings(context.Background(), models.StoreConfig{Platform: models.PlatformBrowser}, nil)
	require.NoError(t, err)
	assert.Equal(t, "browser", out[0].Title)

	out, _ = r.FetchStoreListings(context.Background(), models.StoreConfig{Platform: models.PlatformShopify}, nil)
	assert.Equal(t, "http", out[0].Title)
}

type stubFetcher struct{ name string }

func (s *stubFetcher) FetchStoreListings(ctx context.Context, store models.StoreConfig, terms []string) ([]*models.RawListing, error) {
	return []*models.RawListing{{Title: s.name}}, nil
}

func TestFetchErrorMessage(t *testing.T) {
	err := &FetchError{Store: "NOVICA", URL: "https://novica.example/search", Status: 503, Transient: true}
	assert.True(t, strings.HasPrefix(err.Error(), "transient fetch error for NOVICA"))
	assert.False(t, IsTransient(fmt.Errorf("wrapped: %w", &FetchError{})))
	assert.True(t, IsTransient(fmt.Errorf("wrapped: %w", err)))
}
