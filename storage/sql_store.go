package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/saptarshihalder/Dzukou-Pricing-2.0/models"
)

// Dialect selects the SQL flavour spoken by a SQLStore.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

const listingBatchSize = 50

// SQLStore persists the catalog, runs and listings in PostgreSQL or SQLite.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

// OpenSQLStore connects, waits for the database to answer and migrates the
// schema.
func OpenSQLStore(ctx context.Context, dialect Dialect, dsn string) (*SQLStore, error) {
	switch dialect {
	case DialectPostgres, DialectSQLite:
	default:
		return nil, fmt.Errorf("sql: unsupported dialect %q", dialect)
	}

	if dialect == DialectSQLite {
		dsn = sqliteDSN(dsn)
	}
	db, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: open: %w", dialect, err)
	}
	if dialect == DialectSQLite {
		// One writer keeps SQLite from returning SQLITE_BUSY under concurrent appends.
		db.SetMaxOpenConns(1)
	}

	for i := 0; i < 10; i++ {
		if err = db.PingContext(ctx); err == nil {
			break
		}
		select {
		case <-ctx.Done():
			_ = db.Close()
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: ping failed after retries: %w", dialect, err)
	}

	s := NewSQLStore(db, dialect)
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: migrate: %w", dialect, err)
	}
	return s, nil
}

// NewSQLStore wraps an already-open database.
func NewSQLStore(db *sql.DB, dialect Dialect) *SQLStore {
	return &SQLStore{db: db, dialect: dialect}
}

func (s *SQLStore) Migrate(ctx context.Context) error {
	serial, ts := "BIGSERIAL PRIMARY KEY", "TIMESTAMPTZ"
	if s.dialect == DialectSQLite {
		serial, ts = "INTEGER PRIMARY KEY AUTOINCREMENT", "TIMESTAMP"
	}

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS products (
			id            TEXT PRIMARY KEY,
			name          TEXT NOT NULL,
			category      TEXT NOT NULL DEFAULT '',
			brand         TEXT NOT NULL DEFAULT '',
			unit_cost     DOUBLE PRECISION NOT NULL DEFAULT 0,
			current_price DOUBLE PRECISION NOT NULL DEFAULT 0,
			currency      TEXT NOT NULL DEFAULT 'EUR'
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS scrape_runs (
			id               TEXT PRIMARY KEY,
			status           TEXT NOT NULL,
			target_terms     TEXT NOT NULL DEFAULT '[]',
			stores           TEXT NOT NULL DEFAULT '[]',
			stores_total     INTEGER NOT NULL DEFAULT 0,
			stores_completed INTEGER NOT NULL DEFAULT 0,
			products_found   INTEGER NOT NULL DEFAULT 0,
			errors           TEXT NOT NULL DEFAULT '[]',
			started_at       %[1]s NOT NULL,
			completed_at     %[1]s
		)`, ts),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS scraped_listings (
			id                 %s,
			run_id             TEXT NOT NULL REFERENCES scrape_runs(id),
			store_name         TEXT NOT NULL,
			product_url        TEXT NOT NULL,
			title              TEXT NOT NULL,
			price              DOUBLE PRECISION NOT NULL,
			currency           TEXT NOT NULL DEFAULT '',
			brand              TEXT NOT NULL DEFAULT '',
			material           TEXT NOT NULL DEFAULT '',
			size               TEXT NOT NULL DEFAULT '',
			search_term        TEXT NOT NULL DEFAULT '',
			matched_catalog_id TEXT REFERENCES products(id),
			similarity_score   DOUBLE PRECISION NOT NULL DEFAULT 0,
			match_reason       TEXT NOT NULL DEFAULT '',
			created_at         %s NOT NULL,
			UNIQUE (run_id, product_url)
		)`, serial, ts),
		`CREATE INDEX IF NOT EXISTS idx_listings_run   ON scraped_listings(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_listings_match ON scraped_listings(matched_catalog_id)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started   ON scrape_runs(started_at)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

var placeholderRe = regexp.MustCompile(`\$(\d+)`)

// rebind rewrites $N placeholders to SQLite's ?N form.
func (s *SQLStore) rebind(query string) string {
	if s.dialect != DialectSQLite {
		return query
	}
	return placeholderRe.ReplaceAllString(query, "?$1")
}

func (s *SQLStore) ListProducts(ctx context.Context) ([]*models.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, category, brand, unit_cost, current_price, currency
		FROM products
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("%s: list products: %w", s.dialect, err)
	}
	defer rows.Close()

	var products []*models.Product
	for rows.Next() {
		p := &models.Product{}
		if err := rows.Scan(&p.ID, &p.Name, &p.Category, &p.Brand, &p.UnitCost, &p.CurrentPrice, &p.Currency); err != nil {
			return nil, fmt.Errorf("%s: scan product: %w", s.dialect, err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (s *SQLStore) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	p := &models.Product{}
	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT id, name, category, brand, unit_cost, current_price, currency
		FROM products
		WHERE id = $1
	`), id).Scan(&p.ID, &p.Name, &p.Category, &p.Brand, &p.UnitCost, &p.CurrentPrice, &p.Currency)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &models.NotFoundError{Kind: "product", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("%s: get product %s: %w", s.dialect, id, err)
	}
	return p, nil
}

func (s *SQLStore) UpsertProducts(ctx context.Context, products []*models.Product) error {
	if len(products) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin: %w", s.dialect, err)
	}
	defer func() { _ = tx.Rollback() }()

	query := s.rebind(`
		INSERT INTO products (id, name, category, brand, unit_cost, current_price, currency)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			category = excluded.category,
			brand = excluded.brand,
			unit_cost = excluded.unit_cost,
			current_price = excluded.current_price,
			currency = excluded.currency
	`)
	for _, p := range products {
		if _, err := tx.ExecContext(ctx, query,
			p.ID, p.Name, p.Category, p.Brand, p.UnitCost, p.CurrentPrice, p.Currency); err != nil {
			return fmt.Errorf("%s: upsert product %s: %w", s.dialect, p.ID, err)
		}
	}
	return tx.Commit()
}

func (s *SQLStore) CreateRun(ctx context.Context, run *models.ScrapeRun) error {
	terms, stores, errs, err := encodeRunLists(run)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO scrape_runs (id, status, target_terms, stores, stores_total, stores_completed,
			products_found, errors, started_at, completed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`), run.ID, string(run.Status), terms, stores, run.StoresTotal, run.StoresCompleted,
		run.ProductsFound, errs, run.StartedAt, nullTime(run.CompletedAt))
	if err != nil {
		return fmt.Errorf("%s: create run %s: %w", s.dialect, run.ID, err)
	}
	return nil
}

func (s *SQLStore) UpdateRun(ctx context.Context, run *models.ScrapeRun) error {
	_, _, errs, err := encodeRunLists(run)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE scrape_runs
		SET status = $2, stores_completed = $3, products_found = $4, errors = $5, completed_at = $6
		WHERE id = $1
	`), run.ID, string(run.Status), run.StoresCompleted, run.ProductsFound, errs, nullTime(run.CompletedAt))
	if err != nil {
		return fmt.Errorf("%s: update run %s: %w", s.dialect, run.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return &models.NotFoundError{Kind: "run", ID: run.ID}
	}
	return nil
}

const runColumns = `id, status, target_terms, stores, stores_total, stores_completed,
	products_found, errors, started_at, completed_at`

func (s *SQLStore) GetRun(ctx context.Context, id string) (*models.ScrapeRun, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+runColumns+` FROM scrape_runs WHERE id = $1`), id)
	return s.scanRun(row, id)
}

func (s *SQLStore) LatestRun(ctx context.Context) (*models.ScrapeRun, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM scrape_runs ORDER BY started_at DESC LIMIT 1`)
	return s.scanRun(row, "latest")
}

func (s *SQLStore) LatestFinishedRun(ctx context.Context) (*models.ScrapeRun, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+runColumns+` FROM scrape_runs
		WHERE status IN ($1, $2)
		ORDER BY started_at DESC LIMIT 1`),
		string(models.RunStatusCompleted), string(models.RunStatusStopped))
	return s.scanRun(row, "latest")
}

func (s *SQLStore) scanRun(row *sql.Row, id string) (*models.ScrapeRun, error) {
	var (
		r                   models.ScrapeRun
		status              string
		terms, stores, errs string
		completedAt         sql.NullTime
	)
	err := row.Scan(&r.ID, &status, &terms, &stores, &r.StoresTotal, &r.StoresCompleted,
		&r.ProductsFound, &errs, &r.StartedAt, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &models.NotFoundError{Kind: "run", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("%s: scan run %s: %w", s.dialect, id, err)
	}
	r.Status = models.RunStatus(status)
	if completedAt.Valid {
		t := completedAt.Time
		r.CompletedAt = &t
	}
	if err := json.Unmarshal([]byte(terms), &r.TargetTerms); err != nil {
		return nil, fmt.Errorf("%s: decode run terms: %w", s.dialect, err)
	}
	if err := json.Unmarshal([]byte(stores), &r.Stores); err != nil {
		return nil, fmt.Errorf("%s: decode run stores: %w", s.dialect, err)
	}
	if err := json.Unmarshal([]byte(errs), &r.Errors); err != nil {
		return nil, fmt.Errorf("%s: decode run errors: %w", s.dialect, err)
	}
	return &r, nil
}

// AppendListings inserts listings in multi-row batches inside one
// transaction. Duplicate (run, url) pairs are skipped.
func (s *SQLStore) AppendListings(ctx context.Context, listings []*models.ScrapedListing) error {
	if len(listings) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin: %w", s.dialect, err)
	}
	defer func() { _ = tx.Rollback() }()

	for i := 0; i < len(listings); i += listingBatchSize {
		end := i + listingBatchSize
		if end > len(listings) {
			end = len(listings)
		}
		if err := s.insertBatch(ctx, tx, listings[i:end]); err != nil {
			return fmt.Errorf("%s: insert listings: %w", s.dialect, err)
		}
	}
	return tx.Commit()
}

const listingColumnCount = 14

func (s *SQLStore) insertBatch(ctx context.Context, tx *sql.Tx, batch []*models.ScrapedListing) error {
	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]any, 0, len(batch)*listingColumnCount)

	for idx, l := range batch {
		ph := make([]string, listingColumnCount)
		for c := range ph {
			ph[c] = fmt.Sprintf("$%d", idx*listingColumnCount+c+1)
		}
		valueStrings = append(valueStrings, "("+strings.Join(ph, ",")+")")
		valueArgs = append(valueArgs,
			l.RunID, l.StoreName, l.ProductURL, l.Title, l.Price, l.Currency, l.Brand,
			l.Material, l.Size, l.SearchTerm, nullString(l.MatchedCatalogID), l.SimilarityScore,
			l.MatchReason, l.CreatedAt)
	}

	query := fmt.Sprintf(`
		INSERT INTO scraped_listings (run_id, store_name, product_url, title, price, currency, brand,
			material, size, search_term, matched_catalog_id, similarity_score, match_reason, created_at)
		VALUES %s
		ON CONFLICT (run_id, product_url) DO NOTHING
	`, strings.Join(valueStrings, ","))

	_, err := tx.ExecContext(ctx, s.rebind(query), valueArgs...)
	return err
}

func (s *SQLStore) ListingsByRun(ctx context.Context, runID string) ([]*models.ScrapedListing, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT id, run_id, store_name, product_url, title, price, currency, brand, material, size,
			search_term, matched_catalog_id, similarity_score, match_reason, created_at
		FROM scraped_listings
		WHERE run_id = $1
		ORDER BY id
	`), runID)
	if err != nil {
		return nil, fmt.Errorf("%s: listings for run %s: %w", s.dialect, runID, err)
	}
	defer rows.Close()

	var listings []*models.ScrapedListing
	for rows.Next() {
		l := &models.ScrapedListing{}
		var matched sql.NullString
		if err := rows.Scan(
			&l.ID, &l.RunID, &l.StoreName, &l.ProductURL, &l.Title, &l.Price, &l.Currency,
			&l.Brand, &l.Material, &l.Size, &l.SearchTerm, &matched,
			&l.SimilarityScore, &l.MatchReason, &l.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("%s: scan listing: %w", s.dialect, err)
		}
		l.MatchedCatalogID = matched.String
		listings = append(listings, l)
	}
	return listings, rows.Err()
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func encodeRunLists(run *models.ScrapeRun) (terms, stores, errs string, err error) {
	enc := func(v any) string {
		if err != nil {
			return ""
		}
		var b []byte
		b, err = json.Marshal(v)
		return string(b)
	}
	terms = enc(nonNilStrings(run.TargetTerms))
	stores = enc(nonNilStrings(run.Stores))
	runErrs := run.Errors
	if runErrs == nil {
		runErrs = []models.RunError{}
	}
	errs = enc(runErrs)
	if err != nil {
		err = fmt.Errorf("encode run %s: %w", run.ID, err)
	}
	return terms, stores, errs, err
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// nullString stores an unmatched listing's catalog id as NULL.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// sqliteDSN turns on foreign key enforcement, which SQLite leaves off per
// connection by default.
func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "foreign_keys") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)"
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
