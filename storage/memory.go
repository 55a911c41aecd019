package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/saptarshihalder/Dzukou-Pricing-2.0/models"
)

// MemoryStore keeps everything in process memory. It is safe for concurrent use.
type MemoryStore struct {
	mu       sync.RWMutex
	products map[string]*models.Product
	runs     map[string]*models.ScrapeRun
	runOrder []string
	listings map[string][]*models.ScrapedListing
	urls     map[string]map[string]struct{}
	nextID   int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		products: make(map[string]*models.Product),
		runs:     make(map[string]*models.ScrapeRun),
		listings: make(map[string][]*models.ScrapedListing),
		urls:     make(map[string]map[string]struct{}),
	}
}

func (m *MemoryStore) ListProducts(ctx context.Context) ([]*models.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*models.Product, 0, len(m.products))
	for _, p := range m.products {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.products[id]
	if !ok {
		return nil, &models.NotFoundError{Kind: "product", ID: id}
	}
	cp := *p
	return &cp, nil
}

func (m *MemoryStore) UpsertProducts(ctx context.Context, products []*models.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range products {
		cp := *p
		m.products[p.ID] = &cp
	}
	return nil
}

func (m *MemoryStore) CreateRun(ctx context.Context, run *models.ScrapeRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.runs[run.ID]; !exists {
		m.runOrder = append(m.runOrder, run.ID)
	}
	m.runs[run.ID] = run.Clone()
	return nil
}

func (m *MemoryStore) UpdateRun(ctx context.Context, run *models.ScrapeRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.runs[run.ID]; !ok {
		return &models.NotFoundError{Kind: "run", ID: run.ID}
	}
	m.runs[run.ID] = run.Clone()
	return nil
}

func (m *MemoryStore) GetRun(ctx context.Context, id string) (*models.ScrapeRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.runs[id]
	if !ok {
		return nil, &models.NotFoundError{Kind: "run", ID: id}
	}
	return r.Clone(), nil
}

func (m *MemoryStore) LatestRun(ctx context.Context) (*models.ScrapeRun, error) {
	return m.latest(func(*models.ScrapeRun) bool { return true })
}

func (m *MemoryStore) LatestFinishedRun(ctx context.Context) (*models.ScrapeRun, error) {
	return m.latest(func(r *models.ScrapeRun) bool {
		return r.Status == models.RunStatusCompleted || r.Status == models.RunStatusStopped
	})
}

// latest scans runs newest first. Runs sharing a start time resolve to the
// one created last.
func (m *MemoryStore) latest(keep func(*models.ScrapeRun) bool) (*models.ScrapeRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var best *models.ScrapeRun
	for _, id := range m.runOrder {
		r := m.runs[id]
		if !keep(r) {
			continue
		}
		if best == nil || !r.StartedAt.Before(best.StartedAt) {
			best = r
		}
	}
	if best == nil {
		return nil, &models.NotFoundError{Kind: "run", ID: "latest"}
	}
	return best.Clone(), nil
}

func (m *MemoryStore) AppendListings(ctx context.Context, listings []*models.ScrapedListing) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, l := range listings {
		seen := m.urls[l.RunID]
		if seen == nil {
			seen = make(map[string]struct{})
			m.urls[l.RunID] = seen
		}
		if _, dup := seen[l.ProductURL]; dup {
			continue
		}
		seen[l.ProductURL] = struct{}{}

		m.nextID++
		cp := *l
		cp.ID = m.nextID
		m.listings[l.RunID] = append(m.listings[l.RunID], &cp)
	}
	return nil
}

func (m *MemoryStore) ListingsByRun(ctx context.Context, runID string) ([]*models.ScrapedListing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	src := m.listings[runID]
	out := make([]*models.ScrapedListing, len(src))
	for i, l := range src {
		cp := *l
		out[i] = &cp
	}
	return out, nil
}

func (m *MemoryStore) Close() error { return nil }
