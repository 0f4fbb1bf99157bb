// Package worker drains categories page by page and commits their products.
package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/catalog-ingestor/internal/catalog"
	"github.com/JakeFAU/catalog-ingestor/internal/clock/system"
	"github.com/JakeFAU/catalog-ingestor/internal/metrics"
	"github.com/JakeFAU/catalog-ingestor/internal/progress"
	"github.com/JakeFAU/catalog-ingestor/internal/queue/memory"
)

// PageFetcher returns one decoded listing page.
type PageFetcher interface {
	FetchPage(ctx context.Context, shardKey string, categoryID catalog.ID, page int) (catalog.Page, error)
}

// Queue supplies categories to drain.
type Queue interface {
	Dequeue(ctx context.Context) (catalog.Category, error)
}

// Config controls Worker behavior.
type Config struct {
	RunID string
	// MaxPages caps pages per category; zero means unbounded.
	MaxPages int
}

// Worker consumes categories from a queue and drains each one.
type Worker struct {
	queue     Queue
	pages     PageFetcher
	committer *Committer
	emitter   progress.Emitter
	clock     catalog.Clock
	cfg       Config
	logger    *zap.Logger
}

// New constructs a Worker.
func New(
	queue Queue,
	pages PageFetcher,
	committer *Committer,
	emitter progress.Emitter,
	clock catalog.Clock,
	cfg Config,
	logger *zap.Logger,
) *Worker {
	if emitter == nil {
		emitter = progress.Nop{}
	}
	if clock == nil {
		clock = system.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		queue:     queue,
		pages:     pages,
		committer: committer,
		emitter:   emitter,
		clock:     clock,
		cfg:       cfg,
		logger:    logger,
	}
}

// Run drains categories until the queue is closed and empty or ctx ends, and
// returns one result per category it started.
func (w *Worker) Run(ctx context.Context) []CategoryResult {
	var results []CategoryResult
	for {
		category, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, memory.ErrQueueClosed) {
				w.logger.Error("queue dequeue failed", zap.Error(err))
			}
			return results
		}
		w.logger.Debug("dequeued category", zap.String("category_id", category.ID.String()))
		results = append(results, w.Drain(ctx, category))
	}
}

// Drain fetches pages 1, 2, ... of category until the remote stops returning
// data, then commits the accumulated batch. Page failures end pagination but
// keep what was already fetched. Only a rejected commit fails the category.
//
// Cancellation is checked before each page request; a canceled drain still
// commits its partial batch.
func (w *Worker) Drain(ctx context.Context, category catalog.Category) CategoryResult {
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()

	start := w.clock.Now()
	result := CategoryResult{Category: category}
	w.emit(progress.Event{Stage: progress.StageCategoryStart, CategoryID: category.ID.String()})

	var batch []catalog.Product
	for page := 1; ; page++ {
		if ctx.Err() != nil {
			result.Stop = StopCanceled
			break
		}
		if w.cfg.MaxPages > 0 && page > w.cfg.MaxPages {
			result.Stop = StopPageLimit
			break
		}
		pageStart := w.clock.Now()
		p, err := w.pages.FetchPage(ctx, category.ShardKey, category.ID, page)
		dur := w.clock.Now().Sub(pageStart)
		if err != nil {
			result.Stop = w.classifyStop(ctx, err)
			result.StopCause = err
			w.emitPage(category.ID, page, pageStatusClass(err), 0, dur)
			break
		}
		w.emitPage(category.ID, page, progress.Status2xx, len(p.Products), dur)
		if p.Empty() {
			result.Stop = StopEmptyPage
			break
		}
		batch = append(batch, p.Products...)
		result.Pages++
		result.Fetched += len(p.Products)
		result.Skipped += p.Skipped
		w.logger.Debug("page fetched",
			zap.String("run_id", w.cfg.RunID),
			zap.String("category_id", category.ID.String()),
			zap.Int("page", page),
			zap.Int("products", len(p.Products)),
		)
	}

	persisted, err := w.committer.Commit(ctx, category.ID, batch)
	result.Persisted = persisted
	result.Duration = w.clock.Now().Sub(start)
	if err != nil {
		result.State = StateFailed
		result.Err = err
		metrics.ObservePersistFailure()
		w.logger.Warn("category persistence failed",
			zap.String("run_id", w.cfg.RunID),
			zap.String("category_id", category.ID.String()),
			zap.Int("products", len(batch)),
			zap.Error(err),
		)
		w.emit(progress.Event{
			Stage:      progress.StageCategoryError,
			CategoryID: category.ID.String(),
			Dur:        result.Duration,
			Note:       err.Error(),
		})
		return result
	}

	result.State = StateExhausted
	fields := []zap.Field{
		zap.String("run_id", w.cfg.RunID),
		zap.String("category_id", category.ID.String()),
		zap.String("stop", string(result.Stop)),
		zap.Int("pages", result.Pages),
		zap.Int("products", persisted),
	}
	if result.Skipped > 0 {
		fields = append(fields, zap.Int("skipped", result.Skipped))
	}
	if result.StopCause != nil {
		fields = append(fields, zap.NamedError("stop_cause", result.StopCause))
	}
	w.logger.Info("category drained", fields...)
	w.emit(progress.Event{
		Stage:      progress.StageCategoryDone,
		CategoryID: category.ID.String(),
		Products:   int64(persisted),
		Dur:        result.Duration,
		Note:       string(result.Stop),
	})
	return result
}

func (w *Worker) classifyStop(ctx context.Context, err error) StopReason {
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return StopCanceled
	}
	if errors.Is(err, catalog.ErrProductDecode) {
		return StopDecodeError
	}
	return StopExhausted
}

func pageStatusClass(err error) progress.StatusClass {
	var fetchErr *catalog.PageFetchError
	if errors.As(err, &fetchErr) {
		return progress.ClassifyStatus(fetchErr.StatusCode)
	}
	if errors.Is(err, catalog.ErrProductDecode) {
		return progress.Status2xx
	}
	return progress.StatusTransport
}

func (w *Worker) emitPage(categoryID catalog.ID, page int, class progress.StatusClass, products int, dur time.Duration) {
	w.emit(progress.Event{
		Stage:       progress.StagePageDone,
		CategoryID:  categoryID.String(),
		Page:        page,
		Products:    int64(products),
		StatusClass: class,
		Dur:         dur,
	})
}

func (w *Worker) emit(evt progress.Event) {
	if w.cfg.RunID == "" {
		return
	}
	evt.RunID = w.cfg.RunID
	evt.TS = w.clock.Now()
	w.emitter.Emit(evt)
}
