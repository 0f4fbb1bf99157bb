package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/catalog-ingestor/internal/catalog"
)

// CatalogStore implements catalog.Store and catalog.Truncater with upsert
// semantics matching the Postgres store.
type CatalogStore struct {
	mu            sync.RWMutex
	categories    map[catalog.ID]catalog.Category
	categoryOrder []catalog.ID
	products      map[catalog.ProductKey]catalog.Product
	productOrder  []catalog.ProductKey
}

// NewCatalogStore constructs an empty CatalogStore.
func NewCatalogStore() *CatalogStore {
	return &CatalogStore{
		categories: make(map[catalog.ID]catalog.Category),
		products:   make(map[catalog.ProductKey]catalog.Product),
	}
}

// SaveCategories upserts categories by id.
func (s *CatalogStore) SaveCategories(ctx context.Context, categories []catalog.Category) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("save categories: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range categories {
		if _, ok := s.categories[c.ID]; !ok {
			s.categoryOrder = append(s.categoryOrder, c.ID)
		}
		s.categories[c.ID] = c
	}
	return nil
}

// SaveProducts upserts products by (id, category_id).
func (s *CatalogStore) SaveProducts(ctx context.Context, products []catalog.Product) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("save products: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range products {
		key := p.Key()
		if _, ok := s.products[key]; !ok {
			s.productOrder = append(s.productOrder, key)
		}
		s.products[key] = p
	}
	return nil
}

// Truncate removes all products and categories.
func (s *CatalogStore) Truncate(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("truncate: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products = make(map[catalog.ProductKey]catalog.Product)
	s.productOrder = nil
	s.categories = make(map[catalog.ID]catalog.Category)
	s.categoryOrder = nil
	return nil
}

// Categories returns stored categories in first-insert order.
func (s *CatalogStore) Categories() []catalog.Category {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]catalog.Category, 0, len(s.categoryOrder))
	for _, id := range s.categoryOrder {
		out = append(out, s.categories[id])
	}
	return out
}

// Products returns stored products in first-insert order.
func (s *CatalogStore) Products() []catalog.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]catalog.Product, 0, len(s.productOrder))
	for _, key := range s.productOrder {
		out = append(out, s.products[key])
	}
	return out
}
