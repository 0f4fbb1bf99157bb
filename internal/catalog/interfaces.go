package catalog

import (
	"context"
	"io"
	"time"
)

// Fetcher performs a single HTTP GET. Non-2xx statuses are reported through
// Response.StatusCode; only transport failures are returned as errors.
// Implementations must be safe for concurrent use.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (Response, error)
}

// Store durably persists categories and product batches. Writes are not
// assumed to be idempotent; callers deduplicate before SaveProducts.
type Store interface {
	SaveCategories(ctx context.Context, categories []Category) error
	SaveProducts(ctx context.Context, products []Product) error
}

// Truncater clears previously ingested data before a fresh run.
type Truncater interface {
	Truncate(ctx context.Context) error
}

// RunRecorder persists run lifecycle rows.
type RunRecorder interface {
	StartRun(ctx context.Context, runID string, startedAt time.Time) error
	CompleteRun(ctx context.Context, summary RunSummary) error
}

// Limiter throttles outbound requests.
type Limiter interface {
	Wait(ctx context.Context, url string) error
}

// RetryPolicy decides whether and when a failed page request is retried.
type RetryPolicy interface {
	ShouldRetry(err error, attempt int) bool
	Backoff(attempt int) time.Duration
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Publisher pushes run notifications to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}
