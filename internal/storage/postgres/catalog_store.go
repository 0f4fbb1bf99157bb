package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/JakeFAU/catalog-ingestor/internal/catalog"
)

// CatalogStoreConfig names the tables written by CatalogStore.
type CatalogStoreConfig struct {
	CategoriesTable string
	ProductsTable   string
}

// CatalogStore implements catalog.Store and catalog.Truncater. Each call runs
// in a single transaction and sends its upserts as one pgx.Batch, so a failed
// batch leaves no partial rows behind.
type CatalogStore struct {
	pool       Pool
	categories string
	products   string
}

// NewCatalogStore builds a CatalogStore over an existing pool.
func NewCatalogStore(pool Pool, cfg CatalogStoreConfig) (*CatalogStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	categories, err := tableName(cfg.CategoriesTable, "categories")
	if err != nil {
		return nil, err
	}
	products, err := tableName(cfg.ProductsTable, "products")
	if err != nil {
		return nil, err
	}
	return &CatalogStore{pool: pool, categories: categories, products: products}, nil
}

// SaveCategories upserts categories keyed by id.
func (s *CatalogStore) SaveCategories(ctx context.Context, categories []catalog.Category) error {
	if len(categories) == 0 {
		return nil
	}
	query := fmt.Sprintf(`
INSERT INTO %s (id, name, url, shard_key, query, raw_query)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id) DO UPDATE SET
	name = EXCLUDED.name,
	url = EXCLUDED.url,
	shard_key = EXCLUDED.shard_key,
	query = EXCLUDED.query,
	raw_query = EXCLUDED.raw_query`, s.categories)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin categories tx: %w", err)
	}
	defer rollback(ctx, tx)

	b := &pgx.Batch{}
	for _, c := range categories {
		b.Queue(query, c.ID.String(), c.Name, c.URL, c.ShardKey, c.Query, c.RawQuery)
	}
	if err := sendBatch(ctx, tx, b, func(i int) string {
		return fmt.Sprintf("upsert category %s", categories[i].ID)
	}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit categories: %w", err)
	}
	return nil
}

// SaveProducts upserts products keyed by (id, category_id).
func (s *CatalogStore) SaveProducts(ctx context.Context, products []catalog.Product) error {
	if len(products) == 0 {
		return nil
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	category_id,
	name,
	rating,
	feedback_count,
	quantity,
	price_basic,
	price_product,
	price_total,
	price_logistics
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10
)
ON CONFLICT (id, category_id) DO UPDATE SET
	name = EXCLUDED.name,
	rating = EXCLUDED.rating,
	feedback_count = EXCLUDED.feedback_count,
	quantity = EXCLUDED.quantity,
	price_basic = EXCLUDED.price_basic,
	price_product = EXCLUDED.price_product,
	price_total = EXCLUDED.price_total,
	price_logistics = EXCLUDED.price_logistics`, s.products)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin products tx: %w", err)
	}
	defer rollback(ctx, tx)

	b := &pgx.Batch{}
	for _, p := range products {
		b.Queue(query,
			p.ID.String(),
			p.CategoryID.String(),
			p.Name,
			p.Rating,
			p.FeedbackCount,
			p.Quantity,
			p.PriceBasic,
			p.PriceProduct,
			p.PriceTotal,
			p.PriceLogistics,
		)
	}
	if err := sendBatch(ctx, tx, b, func(i int) string {
		return fmt.Sprintf("upsert product %s/%s", products[i].CategoryID, products[i].ID)
	}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit products: %w", err)
	}
	return nil
}

// sendBatch sends b in one round trip and checks each result in queue order.
// label names the i-th queued statement in errors.
func sendBatch(ctx context.Context, tx pgx.Tx, b *pgx.Batch, label func(i int) string) (err error) {
	br := tx.SendBatch(ctx, b)
	defer func() {
		if cerr := br.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close batch: %w", cerr)
		}
	}()
	for i := 0; i < b.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("%s: %w", label(i), err)
		}
	}
	return nil
}

// Truncate deletes all products, then all categories.
func (s *CatalogStore) Truncate(ctx context.Context) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin truncate tx: %w", err)
	}
	defer rollback(ctx, tx)

	for _, table := range []string{s.products, s.categories} {
		if _, err := tx.Exec(ctx, fmt.Sprintf("DELETE FROM %s", table)); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit truncate: %w", err)
	}
	return nil
}

// Ping reports whether the database is reachable.
func (s *CatalogStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}
