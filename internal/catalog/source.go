package catalog

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// DefaultCategoriesURL is the remote category menu endpoint.
const DefaultCategoriesURL = "https://catalog.wb.ru/menu/v11/api?locale=by&lang=ru&id=131776&dest=-3628814"

// CategorySource loads and flattens the remote category tree.
type CategorySource struct {
	fetcher Fetcher
	url     string
	strict  bool
	timeout time.Duration
	logger  *zap.Logger
}

// NewCategorySource constructs a CategorySource. In strict mode any malformed
// node aborts the load.
func NewCategorySource(fetcher Fetcher, url string, strict bool, timeout time.Duration, logger *zap.Logger) *CategorySource {
	if url == "" {
		url = DefaultCategoriesURL
	}
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CategorySource{
		fetcher: fetcher,
		url:     url,
		strict:  strict,
		timeout: timeout,
		logger:  logger,
	}
}

// Load fetches the category endpoint and returns its ingestible leaves.
func (s *CategorySource) Load(ctx context.Context) (ParseResult, error) {
	reqCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	resp, err := s.fetcher.Fetch(reqCtx, s.url)
	if err != nil {
		return ParseResult{}, fmt.Errorf("%w: %w", ErrCategorySource, err)
	}
	if resp.StatusCode != http.StatusOK {
		return ParseResult{}, fmt.Errorf("%w: status %d", ErrCategorySource, resp.StatusCode)
	}
	result, err := ParseCategories(resp.Body, s.strict)
	if err != nil {
		return ParseResult{}, err
	}
	for _, skipped := range result.Skipped {
		s.logger.Warn("skipping malformed category node", zap.String("path", skipped.Path), zap.String("reason", skipped.Reason))
	}
	s.logger.Info("category tree loaded",
		zap.Int("categories", len(result.Categories)),
		zap.Int("skipped", len(result.Skipped)),
	)
	return result, nil
}
