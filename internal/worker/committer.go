package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/catalog-ingestor/internal/catalog"
)

const defaultPersistTimeout = 30 * time.Second

// Committer serializes batch commits from concurrent workers onto one store.
// Deduplication and the write happen under the same lock, so batches never
// interleave.
type Committer struct {
	mu      sync.Mutex
	store   catalog.Store
	timeout time.Duration
	logger  *zap.Logger
}

// NewCommitter constructs a Committer. A non-positive timeout falls back to
// 30s.
func NewCommitter(store catalog.Store, timeout time.Duration, logger *zap.Logger) *Committer {
	if timeout <= 0 {
		timeout = defaultPersistTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Committer{store: store, timeout: timeout, logger: logger}
}

// Commit deduplicates products and writes them. It returns the number of
// records handed to the store. The write runs detached from ctx cancellation
// so that a canceled run still persists its partial batches.
func (c *Committer) Commit(ctx context.Context, categoryID catalog.ID, products []catalog.Product) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	batch := catalog.Deduplicate(products)
	if len(batch) == 0 {
		return 0, nil
	}
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()
	if err := c.store.SaveProducts(writeCtx, batch); err != nil {
		return 0, &catalog.PersistenceError{Op: "save products", CategoryID: categoryID, Err: err}
	}
	c.logger.Debug("batch committed",
		zap.String("category_id", categoryID.String()),
		zap.Int("products", len(batch)),
		zap.Int("duplicates", len(products)-len(batch)),
	)
	return len(batch), nil
}
