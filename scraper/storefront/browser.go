package storefront

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/saptarshihalder/Dzukou-Pricing-2.0/models"
	"github.com/saptarshihalder/Dzukou-Pricing-2.0/utils"
)

// BrowserFetcher renders search pages in headless Chrome for stores that
// build their results client-side, then parses them with the same extractor as HTTPFetcher.
type BrowserFetcher struct {
	chromeBin string
	timeout   time.Duration
	logger    *utils.Logger
	limiters  *limiterSet
}

// NewBrowserFetcher creates a BrowserFetcher. An empty chromeBin searches
// the usual install locations.
func NewBrowserFetcher(chromeBin string, timeout time.Duration, defaultRPS float64, logger *utils.Logger) *BrowserFetcher {
	if chromeBin == "" {
		chromeBin = findChromeBinary()
	}
	return &BrowserFetcher{
		chromeBin: chromeBin,
		timeout:   timeout,
		logger:    logger,
		limiters:  newLimiterSet(defaultRPS),
	}
}

func (b *BrowserFetcher) FetchStoreListings(ctx context.Context, store models.StoreConfig, terms []string) ([]*models.RawListing, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(userAgents[0]),
	)
	if b.chromeBin != "" {
		opts = append(opts, chromedp.ExecPath(b.chromeBin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	// Suppress chromedp log noise
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...any) {}))
	defer cancelBrowser()

	b.logger.Debug("[%s] rendering with %s", store.Name, b.binaryName())
	if err := chromedp.Run(browserCtx); err != nil {
		return nil, &FetchError{Store: store.Name, URL: store.BaseURL, Err: fmt.Errorf("start browser: %w", err)}
	}
	return collect(ctx, store, terms, b.logger, func(ctx context.Context, term string) ([]item, error) {
		return b.render(browserCtx, store, term)
	})
}

func (b *BrowserFetcher) render(browserCtx context.Context, store models.StoreConfig, term string) ([]item, error) {
	base := strings.TrimRight(store.BaseURL, "/")
	pageURL := base + "/search?q=" + url.QueryEscape(term)

	if err := b.limiters.wait(browserCtx, store); err != nil {
		return nil, &FetchError{Store: store.Name, URL: pageURL, Err: err}
	}

	tabCtx, cancelTab := chromedp.NewContext(browserCtx)
	defer cancelTab()
	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, b.timeout)
	defer cancelTimeout()

	var html string
	err := chromedp.Run(tabCtx,
		chromedp.Navigate(pageURL),
		chromedp.Sleep(3*time.Second),
		chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil),
		chromedp.Sleep(2*time.Second),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return nil, &FetchError{Store: store.Name, URL: pageURL, Err: fmt.Errorf("chromedp render: %w", err), Transient: true}
	}

	items, err := parseSearchHTML(strings.NewReader(html), base)
	if err != nil {
		return nil, &FetchError{Store: store.Name, URL: pageURL, Err: err}
	}
	return items, nil
}

func (b *BrowserFetcher) binaryName() string {
	if b.chromeBin == "" {
		return "chromedp default browser"
	}
	return b.chromeBin
}

// findChromeBinary locates a Chrome/Chromium binary.
func findChromeBinary() string {
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}

	for _, name := range []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"} {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	for _, p := range []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	} {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
