package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/saptarshihalder/Dzukou-Pricing-2.0/config"
	"github.com/saptarshihalder/Dzukou-Pricing-2.0/models"
	"github.com/saptarshihalder/Dzukou-Pricing-2.0/scraper"
	"github.com/saptarshihalder/Dzukou-Pricing-2.0/scraper/storefront"
	"github.com/saptarshihalder/Dzukou-Pricing-2.0/services"
	"github.com/saptarshihalder/Dzukou-Pricing-2.0/storage"
	"github.com/saptarshihalder/Dzukou-Pricing-2.0/utils"
)

func main() {
	termsFlag := flag.String("terms", "", "comma separated search terms (default SEARCH_TERMS)")
	storesFlag := flag.String("stores", "", "comma separated store names to scrape (default all)")
	seedFlag := flag.String("seed", "", "catalog CSV to load before running (default CATALOG_CSV)")
	optimizeOnly := flag.Bool("optimize-only", false, "skip scraping and price against the latest finished run")
	noCache := flag.Bool("no-cache", false, "recompute every recommendation")
	flag.Parse()

	logger := utils.NewLogger()
	cfg := config.Load()
	logger.SetLevel(utils.ParseLevel(cfg.LogLevel))

	ctx := context.Background()

	logger.Info("=== Dzukou pricing engine starting ===")
	logger.Info("Config: store=%s | concurrency: %d | retries: %d | insight: %s | margin floor: %.0f%% | max increase: %.0f%%",
		cfg.DatabaseDriver, cfg.MaxConcurrency, cfg.MaxRetries, cfg.InsightProvider,
		cfg.MinMarginPercent, cfg.MaxPriceIncreasePercent)

	metrics, err := utils.NewMetrics(ctx, cfg.OTLPEndpoint)
	if err != nil {
		logger.Warn("Metrics disabled: %v", err)
		metrics = nil
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metrics.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Metrics shutdown: %v", err)
		}
	}()

	store, err := openStore(ctx, cfg)
	if err != nil {
		logger.Error("Failed to open %s store: %v", cfg.DatabaseDriver, err)
		if cfg.DatabaseDriver == "postgres" {
			logger.Error("Make sure Docker is running: docker compose up -d")
		}
		os.Exit(1)
	}
	defer store.Close()

	cache := openCache(ctx, cfg, logger)

	seed := *seedFlag
	if seed == "" {
		seed = cfg.CatalogCSV
	}
	if seed != "" {
		products, err := storage.LoadCatalogCSV(seed)
		if err != nil {
			logger.Error("Failed to load catalog: %v", err)
			os.Exit(1)
		}
		if err := store.UpsertProducts(ctx, products); err != nil {
			logger.Error("Failed to store catalog: %v", err)
			os.Exit(1)
		}
		logger.Info("Loaded %d catalog products from %s", len(products), seed)
	}

	catalog, err := store.ListProducts(ctx)
	if err != nil {
		logger.Error("Failed to read catalog: %v", err)
		os.Exit(1)
	}
	if len(catalog) == 0 {
		logger.Error("Catalog is empty. Load one with -seed products.csv")
		os.Exit(1)
	}

	var run *models.ScrapeRun
	if *optimizeOnly {
		run, err = store.LatestFinishedRun(ctx)
		if err != nil {
			logger.Warn("No finished scrape run to price against: %v", err)
			run = nil
		}
	} else {
		run, err = scrape(ctx, cfg, store, metrics, logger, *termsFlag, *storesFlag)
		if err != nil {
			logger.Error("Scrape failed: %v", err)
			os.Exit(1)
		}
	}

	aggregator := services.NewAggregator(store, store, store, cfg.MarketPositionTolerance)
	var (
		categories []models.CategoryStat
		stores     []models.StoreStat
		runID      string
	)
	if run != nil {
		runID = run.ID
		if categories, err = aggregator.CategoryStats(ctx, runID); err != nil {
			logger.Warn("Category statistics unavailable: %v", err)
		}
		if stores, err = aggregator.StoreStats(ctx, runID); err != nil {
			logger.Warn("Store statistics unavailable: %v", err)
		}
	}

	optimizer := services.NewOptimizer(services.OptimizerConfig{
		DampingFactor:      cfg.DampingFactor,
		UnitVolumeBaseline: cfg.UnitVolumeBaseline,
		InsightTimeout:     cfg.InsightTimeout,
	}, services.NewInsightProvider(cfg, logger), metrics, logger)
	pricing := services.NewPricingService(store, store, aggregator, optimizer, cache,
		cfg.OptimizeConcurrency, metrics, logger)

	recs, err := pricing.OptimizeBatch(ctx, services.BatchRequest{
		RunID:       runID,
		Constraints: cfg.Constraints(),
		UseCache:    !*noCache,
		CacheMaxAge: cfg.CacheMaxAge,
	})
	if err != nil {
		logger.Error("Optimization failed: %v", err)
		os.Exit(1)
	}

	services.NewReporter().Print(run, categories, stores, recs)

	if err := export(ctx, cfg.OutputDir, store, run, recs); err != nil {
		logger.Error("Export failed: %v", err)
		os.Exit(1)
	}
	fmt.Printf("  Done. Exports written to %s\n\n", cfg.OutputDir)
}

func openStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	switch strings.ToLower(cfg.DatabaseDriver) {
	case "memory":
		return storage.NewMemoryStore(), nil
	case "postgres":
		return storage.OpenSQLStore(ctx, storage.DialectPostgres, cfg.DSN())
	default:
		return storage.OpenSQLStore(ctx, storage.DialectSQLite, cfg.SQLitePath)
	}
}

func openCache(ctx context.Context, cfg *config.Config, logger *utils.Logger) storage.RecommendationCache {
	if cfg.RedisAddr == "" {
		return storage.NewMemoryRecommendationCache()
	}
	rc := storage.NewRedisRecommendationCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.CacheMaxAge)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rc.Ping(pingCtx); err != nil {
		logger.Warn("Redis at %s unreachable, caching in memory: %v", cfg.RedisAddr, err)
		_ = rc.Close()
		return storage.NewMemoryRecommendationCache()
	}
	logger.Info("Caching recommendations in Redis at %s", cfg.RedisAddr)
	return rc
}

// scrape runs one scrape to completion. The first SIGINT asks the run to
// stop after its in-flight stores.
func scrape(ctx context.Context, cfg *config.Config, store storage.Store, metrics *utils.Metrics, logger *utils.Logger, termsArg, storesArg string) (*models.ScrapeRun, error) {
	terms := cfg.SearchTerms
	if termsArg != "" {
		terms = config.SplitList(termsArg)
	}

	all, err := config.LoadStores(cfg.StoresFile)
	if err != nil {
		return nil, err
	}
	targets := selectStores(all, config.SplitList(storesArg), logger)

	fetcher := &storefront.Router{
		HTTP:    storefront.NewHTTPFetcher(cfg.FetchTimeout, cfg.StoreRPS, logger),
		Browser: storefront.NewBrowserFetcher(cfg.ChromeBin, cfg.FetchTimeout, cfg.StoreRPS, logger),
	}
	orch := scraper.NewOrchestrator(scraper.Config{
		MaxConcurrency: cfg.MaxConcurrency,
		RateLimitMs:    cfg.RateLimitMs,
		MaxRetries:     cfg.MaxRetries,
		RetryBaseDelay: cfg.RetryBaseDelay,
		MatchThreshold: cfg.MatchThreshold,
	}, fetcher, store, store, store, metrics, logger)

	run, err := orch.Start(ctx, terms, targets)
	if err != nil {
		return nil, err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	type outcome struct {
		run *models.ScrapeRun
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		r, err := orch.Wait(ctx, run.ID)
		done <- outcome{r, err}
	}()

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-sigCh:
			ack, err := orch.Stop(ctx, run.ID)
			if err != nil {
				logger.Warn("Stop request ignored: %v", err)
				continue
			}
			logger.Info("Stopping run %s after %d completed stores...", ack.RunID, ack.StoresCompleted)
		case <-ticker.C:
			if p, err := orch.Progress(ctx, run.ID); err == nil {
				logger.Info("Progress: %s | stores %d/%d | listings %d",
					p.Status, p.StoresCompleted, p.StoresTotal, p.ProductsFound)
			}
		case o := <-done:
			return o.run, o.err
		}
	}
}

func selectStores(all []models.StoreConfig, names []string, logger *utils.Logger) []models.StoreConfig {
	if len(names) == 0 {
		return all
	}
	byName := make(map[string]models.StoreConfig, len(all))
	for _, s := range all {
		byName[strings.ToLower(s.Name)] = s
	}
	var out []models.StoreConfig
	for _, n := range names {
		s, ok := byName[strings.ToLower(n)]
		if !ok {
			logger.Warn("Unknown store %q skipped", n)
			continue
		}
		out = append(out, s)
	}
	return out
}

func export(ctx context.Context, dir string, store storage.Store, run *models.ScrapeRun, recs []*models.PriceRecommendation) error {
	if run != nil {
		listings, err := store.ListingsByRun(ctx, run.ID)
		if err != nil {
			return err
		}
		w, err := storage.NewListingCSVWriter(filepath.Join(dir, "listings_"+run.ID+".csv"))
		if err != nil {
			return err
		}
		if err := w.WriteListings(listings); err != nil {
			w.Close()
			return err
		}
		if err := w.Close(); err != nil {
			return err
		}
	}

	w, err := storage.NewRecommendationCSVWriter(filepath.Join(dir, "recommendations.csv"))
	if err != nil {
		return err
	}
	if err := w.WriteRecommendations(recs); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}
