package services

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/saptarshihalder/Dzukou-Pricing-2.0/models"
	"github.com/saptarshihalder/Dzukou-Pricing-2.0/storage"
	"github.com/saptarshihalder/Dzukou-Pricing-2.0/utils"
)

// BatchRequest selects the products to optimize and how.
type BatchRequest struct {
	// RunID picks the market data. Empty means the latest finished run.
	RunID string
	// ProductIDs restricts the batch. Empty means the whole catalog.
	ProductIDs  []string
	Constraints models.Constraints
	UseCache    bool
	CacheMaxAge time.Duration
}

// PricingService runs the optimizer over catalog products using the market
// statistics of a scrape run.
type PricingService struct {
	catalog     storage.Catalog
	runs        storage.RunStore
	aggregator  *Aggregator
	optimizer   *Optimizer
	cache       storage.RecommendationCache
	concurrency int
	metrics     *utils.Metrics
	logger      *utils.Logger
	now         func() time.Time
}

func NewPricingService(
	catalog storage.Catalog,
	runs storage.RunStore,
	aggregator *Aggregator,
	optimizer *Optimizer,
	cache storage.RecommendationCache,
	concurrency int,
	metrics *utils.Metrics,
	logger *utils.Logger,
) *PricingService {
	if concurrency < 1 {
		concurrency = 1
	}
	if cache == nil {
		cache = storage.NewMemoryRecommendationCache()
	}
	return &PricingService{
		catalog:     catalog,
		runs:        runs,
		aggregator:  aggregator,
		optimizer:   optimizer,
		cache:       cache,
		concurrency: concurrency,
		metrics:     metrics,
		logger:      logger,
		now:         time.Now,
	}
}

// OptimizeProduct computes a fresh recommendation for one product and
// replaces its cache entry.
func (s *PricingService) OptimizeProduct(ctx context.Context, runID, productID string, c models.Constraints) (*models.PriceRecommendation, error) {
	product, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	stats, err := s.statsFor(ctx, runID)
	if err != nil {
		return nil, err
	}
	rec := s.optimizer.Optimize(ctx, product, statFor(stats, product), c)
	s.store(ctx, rec)
	s.metrics.RecordOptimization(ctx, false)
	return rec, nil
}

// OptimizeBatch returns one recommendation per product in request order.
// Unknown product ids fail the whole batch before any work starts.
func (s *PricingService) OptimizeBatch(ctx context.Context, req BatchRequest) ([]*models.PriceRecommendation, error) {
	products, err := s.products(ctx, req.ProductIDs)
	if err != nil {
		return nil, err
	}
	stats, err := s.statsFor(ctx, req.RunID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("[pricing] Optimizing %d products (cache=%t, concurrency=%d)",
		len(products), req.UseCache, s.concurrency)

	results := make([]*models.PriceRecommendation, len(products))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i, product := range products {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if req.UseCache {
				if rec := s.cached(gctx, product.ID, req.CacheMaxAge); rec != nil {
					results[i] = rec
					s.metrics.RecordOptimization(gctx, true)
					return nil
				}
			}
			rec := s.optimizer.Optimize(gctx, product, statFor(stats, product), req.Constraints)
			s.store(gctx, rec)
			s.metrics.RecordOptimization(gctx, false)
			results[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("pricing: batch: %w", err)
	}
	return results, nil
}

func (s *PricingService) products(ctx context.Context, ids []string) ([]*models.Product, error) {
	if len(ids) == 0 {
		products, err := s.catalog.ListProducts(ctx)
		if err != nil {
			return nil, fmt.Errorf("pricing: list products: %w", err)
		}
		return products, nil
	}
	products := make([]*models.Product, 0, len(ids))
	for _, id := range ids {
		p, err := s.catalog.GetProduct(ctx, id)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, nil
}

// statsFor resolves category statistics by category name. With no run id
// and no finished run yet the map is empty.
func (s *PricingService) statsFor(ctx context.Context, runID string) (map[string]models.CategoryStat, error) {
	if runID == "" {
		run, err := s.runs.LatestFinishedRun(ctx)
		if models.IsNotFound(err) {
			s.logger.Warn("[pricing] No finished scrape run, optimizing without market data")
			return map[string]models.CategoryStat{}, nil
		}
		if err != nil {
			return nil, fmt.Errorf("pricing: latest run: %w", err)
		}
		runID = run.ID
	}
	list, err := s.aggregator.CategoryStats(ctx, runID)
	if err != nil {
		return nil, err
	}
	stats := make(map[string]models.CategoryStat, len(list))
	for _, st := range list {
		stats[st.Category] = st
	}
	return stats, nil
}

func statFor(stats map[string]models.CategoryStat, p *models.Product) models.CategoryStat {
	if st, ok := stats[p.Category]; ok {
		return st
	}
	return models.CategoryStat{
		Category:       p.Category,
		OurAvgPrice:    p.CurrentPrice,
		MarketPosition: models.PositionCompetitive,
		Products:       1,
	}
}

func (s *PricingService) cached(ctx context.Context, productID string, maxAge time.Duration) *models.PriceRecommendation {
	rec, ok, err := s.cache.Get(ctx, productID)
	if err != nil {
		s.logger.Warn("[pricing] Cache read for %s failed: %v", productID, err)
		return nil
	}
	if !ok {
		return nil
	}
	if maxAge > 0 && s.now().Sub(rec.CreatedAt) > maxAge {
		return nil
	}
	return rec
}

func (s *PricingService) store(ctx context.Context, rec *models.PriceRecommendation) {
	if err := s.cache.Put(ctx, rec); err != nil {
		s.logger.Warn("[pricing] Cache write for %s failed: %v", rec.ProductID, err)
	}
}
