package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const defaultRequestTimeout = 15 * time.Second

// PageFetcherConfig controls listing requests.
type PageFetcherConfig struct {
	Listing        ListingURL
	RequestTimeout time.Duration
}

// PageFetcher fetches and decodes a single listing page.
type PageFetcher struct {
	fetcher Fetcher
	cfg     PageFetcherConfig
	limiter Limiter
	retry   RetryPolicy
	logger  *zap.Logger
}

// NewPageFetcher constructs a PageFetcher. limiter and retry may be nil.
func NewPageFetcher(
	fetcher Fetcher,
	cfg PageFetcherConfig,
	limiter Limiter,
	retry RetryPolicy,
	logger *zap.Logger,
) *PageFetcher {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PageFetcher{
		fetcher: fetcher,
		cfg:     cfg,
		limiter: limiter,
		retry:   retry,
		logger:  logger,
	}
}

// FetchPage requests one page of a category listing. Any non-200 response is
// returned as a *PageFetchError carrying the status; the remote signals the end
// of a listing this way rather than with an empty page. A 200 body that lacks
// the product list yields a *ProductDecodeError.
//
// Once the request is on the wire it is not interrupted by ctx cancellation;
// only the per-request timeout applies. Cancellation does stop retries, and the
// returned error then also wraps the context error.
func (p *PageFetcher) FetchPage(ctx context.Context, shardKey string, categoryID ID, page int) (Page, error) {
	target, err := p.cfg.Listing.Build(shardKey, categoryID, page)
	if err != nil {
		return Page{}, &PageFetchError{CategoryID: categoryID, Page: page, Err: err}
	}
	for attempt := 0; ; attempt++ {
		resp, err := p.fetchOnce(ctx, target)
		var fetchErr *PageFetchError
		switch {
		case err != nil:
			fetchErr = &PageFetchError{CategoryID: categoryID, Page: page, Err: err}
		case resp.StatusCode != http.StatusOK:
			fetchErr = &PageFetchError{CategoryID: categoryID, Page: page, StatusCode: resp.StatusCode}
		default:
			return DecodeProductPage(resp.Body, categoryID, page)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Page{}, fmt.Errorf("%w: %w", fetchErr, ctxErr)
		}
		if p.retry == nil || !p.retry.ShouldRetry(fetchErr, attempt) {
			return Page{}, fetchErr
		}
		wait := p.retry.Backoff(attempt + 1)
		p.logger.Debug("retrying page fetch",
			zap.String("category_id", categoryID.String()),
			zap.Int("page", page),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", wait),
			zap.Error(fetchErr),
		)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return Page{}, fmt.Errorf("%w: %w", fetchErr, ctx.Err())
		case <-timer.C:
		}
	}
}

func (p *PageFetcher) fetchOnce(ctx context.Context, target string) (Response, error) {
	if p.fetcher == nil {
		return Response{}, errors.New("no fetcher configured")
	}
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx, target); err != nil {
			return Response{}, err
		}
	}
	reqCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.cfg.RequestTimeout)
	defer cancel()
	return p.fetcher.Fetch(reqCtx, target)
}
