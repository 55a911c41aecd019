// Package scraper runs scrape runs: it fans store fetches out over a worker
// pool, cleans and matches what comes back, persists listings and keeps
// the run's progress counters.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/saptarshihalder/Dzukou-Pricing-2.0/models"
	"github.com/saptarshihalder/Dzukou-Pricing-2.0/scraper/storefront"
	"github.com/saptarshihalder/Dzukou-Pricing-2.0/services"
	"github.com/saptarshihalder/Dzukou-Pricing-2.0/storage"
	"github.com/saptarshihalder/Dzukou-Pricing-2.0/utils"
)

// StopMessage is recorded in a run's errors when a user stops it.
const StopMessage = "stopped by user"

// Config tunes how runs are executed.
type Config struct {
	MaxConcurrency int
	RateLimitMs    int
	MaxRetries     int
	RetryBaseDelay time.Duration
	MatchThreshold float64
}

// Orchestrator owns every run it started. It is the only writer of a
// run's status and counters.
type Orchestrator struct {
	cfg      Config
	fetcher  storefront.Fetcher
	catalog  storage.Catalog
	runs     storage.RunStore
	listings storage.ListingStore
	cleaner  *services.Cleaner
	metrics  *utils.Metrics
	logger   *utils.Logger
	now      func() time.Time

	mu     sync.Mutex
	active map[string]*runState
}

func NewOrchestrator(
	cfg Config,
	fetcher storefront.Fetcher,
	catalog storage.Catalog,
	runs storage.RunStore,
	listings storage.ListingStore,
	metrics *utils.Metrics,
	logger *utils.Logger,
) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		fetcher:  fetcher,
		catalog:  catalog,
		runs:     runs,
		listings: listings,
		cleaner:  services.NewCleaner(logger),
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
		active:   make(map[string]*runState),
	}
}

// runState is the live copy of a run. mu serializes every mutation and
// the store write that follows it.
type runState struct {
	mu       sync.Mutex
	run      *models.ScrapeRun
	stopping bool
	failed   bool
	seen     *utils.URLSet
	done     chan struct{}
}

// Start creates a pending run and executes it in the background. The run
// outlives ctx; use Stop to end it early.
func (o *Orchestrator) Start(ctx context.Context, terms []string, stores []models.StoreConfig) (*models.ScrapeRun, error) {
	if len(terms) == 0 {
		return nil, errors.New("orchestrator: start: no search terms")
	}

	names := make([]string, len(stores))
	for i, s := range stores {
		names[i] = s.Name
	}
	run := &models.ScrapeRun{
		ID:          uuid.NewString(),
		Status:      models.RunStatusPending,
		TargetTerms: append([]string(nil), terms...),
		Stores:      names,
		StoresTotal: len(stores),
		Errors:      []models.RunError{},
		StartedAt:   o.now().UTC(),
	}
	if err := o.runs.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("orchestrator: create run: %w", err)
	}

	st := &runState{run: run.Clone(), seen: utils.NewURLSet(), done: make(chan struct{})}
	o.mu.Lock()
	o.active[run.ID] = st
	o.mu.Unlock()

	o.logger.Info("[orchestrator] Run %s started: %d stores, %d terms", run.ID, len(stores), len(terms))
	go o.execute(context.WithoutCancel(ctx), st, terms, stores)
	return run, nil
}

func (o *Orchestrator) execute(ctx context.Context, st *runState, terms []string, stores []models.StoreConfig) {
	defer func() {
		o.mu.Lock()
		delete(o.active, st.run.ID)
		o.mu.Unlock()
		close(st.done)
	}()

	products, err := o.catalog.ListProducts(ctx)
	if err != nil {
		o.logger.Error("[orchestrator] Run %s: loading catalog failed: %v", st.run.ID, err)
		st.mu.Lock()
		st.failed = true
		st.mu.Unlock()
		o.finish(ctx, st, models.RunError{Error: fmt.Sprintf("load catalog: %v", err), At: o.now().UTC()})
		return
	}
	matcher := services.NewMatcher(products, o.cfg.MatchThreshold)

	pool := utils.NewWorkerPool(o.cfg.MaxConcurrency, o.cfg.RateLimitMs)
	for _, store := range stores {
		if st.halted() {
			break
		}
		pool.Submit(ctx, func() {
			o.processStore(ctx, st, store, terms, matcher)
		})
	}
	pool.Wait()

	o.finish(ctx, st)
}

func (o *Orchestrator) processStore(ctx context.Context, st *runState, store models.StoreConfig, terms []string, matcher *services.Matcher) {
	if st.halted() {
		return
	}
	runID := st.run.ID
	o.markRunning(ctx, st)

	retry := utils.RetryConfig{
		MaxAttempts: o.cfg.MaxRetries,
		BaseDelay:   o.cfg.RetryBaseDelay,
		MaxDelay:    30 * time.Second,
		Logger:      o.logger,
		Retryable:   storefront.IsTransient,
	}

	started := o.now()
	var raw []*models.RawListing
	err := retry.Do(ctx, "fetch "+store.Name, func() error {
		var ferr error
		raw, ferr = o.fetcher.FetchStoreListings(ctx, store, terms)
		return ferr
	})
	o.metrics.RecordFetch(ctx, store.Name, o.now().Sub(started), err)

	if err != nil {
		o.logger.Warn("[orchestrator] Run %s: store %s failed: %v", runID, store.Name, err)
		o.update(ctx, st, func(r *models.ScrapeRun) {
			r.Errors = append(r.Errors, models.RunError{Store: store.Name, Error: err.Error(), At: o.now().UTC()})
			r.StoresCompleted++
		})
		return
	}

	cleaned := o.cleaner.Clean(runID, raw)
	matcher.Apply(cleaned)

	kept := make([]*models.ScrapedListing, 0, len(cleaned))
	matched := 0
	for _, l := range cleaned {
		if !st.seen.Add(l.ProductURL) {
			continue
		}
		kept = append(kept, l)
		if l.Matched() {
			matched++
		}
	}

	if err := o.persist(ctx, kept); err != nil {
		o.logger.Error("[orchestrator] Run %s: persisting %s listings failed: %v", runID, store.Name, err)
		st.mu.Lock()
		st.failed = true
		st.mu.Unlock()
		o.update(ctx, st, func(r *models.ScrapeRun) {
			r.Errors = append(r.Errors, models.RunError{Store: store.Name, Error: err.Error(), At: o.now().UTC()})
		})
		return
	}
	o.metrics.RecordListings(ctx, store.Name, len(kept), matched)

	o.logger.Info("[orchestrator] Run %s: %s done, %d listings (%d matched)", runID, store.Name, len(kept), matched)
	o.update(ctx, st, func(r *models.ScrapeRun) {
		r.StoresCompleted++
		r.ProductsFound += len(kept)
	})
}

// markRunning moves a pending run to running when its first fetch begins.
func (o *Orchestrator) markRunning(ctx context.Context, st *runState) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.run.Status != models.RunStatusPending {
		return
	}
	st.run.Status = models.RunStatusRunning
	o.save(ctx, st.run)
}

// persist writes a batch, retrying once.
func (o *Orchestrator) persist(ctx context.Context, listings []*models.ScrapedListing) error {
	if len(listings) == 0 {
		return nil
	}
	err := o.listings.AppendListings(ctx, listings)
	if err == nil {
		return nil
	}
	o.logger.Warn("[orchestrator] Listing write failed, retrying once: %v", err)
	if err = o.listings.AppendListings(ctx, listings); err != nil {
		return fmt.Errorf("orchestrator: append listings: %w", err)
	}
	return nil
}

// update applies mutate and saves the run. Counter changes are dropped
// once a stop has been requested so the acknowledged progress stays final.
func (o *Orchestrator) update(ctx context.Context, st *runState, mutate func(*models.ScrapeRun)) {
	st.mu.Lock()
	defer st.mu.Unlock()

	completed, found := st.run.StoresCompleted, st.run.ProductsFound
	mutate(st.run)
	if st.stopping {
		st.run.StoresCompleted, st.run.ProductsFound = completed, found
	}
	o.save(ctx, st.run)
}

// finish moves the run to its terminal status.
func (o *Orchestrator) finish(ctx context.Context, st *runState, extra ...models.RunError) {
	st.mu.Lock()
	defer st.mu.Unlock()

	// A stopped run ends stopped even if an in-flight store later failed;
	// that failure stays in Errors.
	switch {
	case st.stopping:
		st.run.Status = models.RunStatusStopped
	case st.failed:
		st.run.Status = models.RunStatusFailed
	default:
		st.run.Status = models.RunStatusCompleted
	}
	st.run.Errors = append(st.run.Errors, extra...)
	completed := o.now().UTC()
	st.run.CompletedAt = &completed
	o.save(ctx, st.run)

	o.logger.Info("[orchestrator] Run %s %s: %d/%d stores, %d listings, %d errors",
		st.run.ID, st.run.Status, st.run.StoresCompleted, st.run.StoresTotal, st.run.ProductsFound, len(st.run.Errors))
}

func (o *Orchestrator) save(ctx context.Context, run *models.ScrapeRun) {
	if err := o.runs.UpdateRun(ctx, run.Clone()); err != nil {
		o.logger.Warn("[orchestrator] Saving run %s failed: %v", run.ID, err)
	}
}

func (st *runState) halted() bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.stopping || st.failed
}

// Stop asks a running run to finish early. Stores already being fetched
// complete and their listings are kept, but the counters in the returned
// acknowledgement are final.
func (o *Orchestrator) Stop(ctx context.Context, runID string) (*models.StopAck, error) {
	o.mu.Lock()
	st := o.active[runID]
	o.mu.Unlock()

	if st == nil {
		run, err := o.runs.GetRun(ctx, runID)
		if err != nil {
			return nil, err
		}
		return nil, &models.InvalidStateError{RunID: runID, Status: run.Status, Op: "stop"}
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if st.stopping || st.run.Status != models.RunStatusRunning {
		status := st.run.Status
		if st.stopping {
			status = models.RunStatusStopped
		}
		return nil, &models.InvalidStateError{RunID: runID, Status: status, Op: "stop"}
	}

	st.stopping = true
	st.run.Errors = append(st.run.Errors, models.RunError{Error: StopMessage, At: o.now().UTC()})
	o.save(ctx, st.run)

	o.logger.Info("[orchestrator] Run %s: stop requested after %d/%d stores", runID, st.run.StoresCompleted, st.run.StoresTotal)
	return &models.StopAck{
		RunID:           runID,
		StoresCompleted: st.run.StoresCompleted,
		Message:         "stop requested, in-flight stores will finish",
	}, nil
}

// GetRun returns the live state of an active run, or the stored run.
func (o *Orchestrator) GetRun(ctx context.Context, runID string) (*models.ScrapeRun, error) {
	o.mu.Lock()
	st := o.active[runID]
	o.mu.Unlock()

	if st != nil {
		st.mu.Lock()
		defer st.mu.Unlock()
		return st.run.Clone(), nil
	}
	return o.runs.GetRun(ctx, runID)
}

func (o *Orchestrator) Progress(ctx context.Context, runID string) (models.Progress, error) {
	run, err := o.GetRun(ctx, runID)
	if err != nil {
		return models.Progress{}, err
	}
	return run.Progress(), nil
}

// LatestRun returns the most recently started run.
func (o *Orchestrator) LatestRun(ctx context.Context) (*models.ScrapeRun, error) {
	return o.runs.LatestRun(ctx)
}

// Wait blocks until the run is terminal or ctx ends.
func (o *Orchestrator) Wait(ctx context.Context, runID string) (*models.ScrapeRun, error) {
	o.mu.Lock()
	st := o.active[runID]
	o.mu.Unlock()

	if st != nil {
		select {
		case <-st.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		run, err := o.runs.GetRun(ctx, runID)
		if err != nil {
			return nil, err
		}
		if run.Status.Terminal() {
			return run, nil
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
