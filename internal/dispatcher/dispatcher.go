// Package dispatcher coordinates an ingestion run: it loads the category tree,
// persists categories, fans the worker pool out across them and aggregates
// the per-category outcomes.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/catalog-ingestor/internal/catalog"
	"github.com/JakeFAU/catalog-ingestor/internal/clock/system"
	"github.com/JakeFAU/catalog-ingestor/internal/progress"
	"github.com/JakeFAU/catalog-ingestor/internal/queue/memory"
	"github.com/JakeFAU/catalog-ingestor/internal/worker"
)

// DefaultConcurrency is the worker pool size used when none is configured.
const DefaultConcurrency = 20

const finalizeTimeout = 30 * time.Second

// ErrRunInProgress is returned when Run is called while another run is active.
var ErrRunInProgress = errors.New("ingestion run already in progress")

// CategorySource loads the flattened category list.
type CategorySource interface {
	Load(ctx context.Context) (catalog.ParseResult, error)
}

// Archiver stores a finished report and returns its URI.
type Archiver interface {
	Archive(ctx context.Context, report Report) (string, error)
}

// Config controls run-level behavior.
type Config struct {
	Concurrency         int
	MaxPagesPerCategory int
	// RunTimeout bounds the whole run; zero disables it.
	RunTimeout        time.Duration
	PersistTimeout    time.Duration
	TruncateBeforeRun bool
}

// Dispatcher runs ingestion end to end. Runs are serialized.
type Dispatcher struct {
	source   CategorySource
	pages    worker.PageFetcher
	store    catalog.Store
	runs     catalog.RunRecorder
	archiver Archiver
	emitter  progress.Emitter
	clock    catalog.Clock
	ids      catalog.IDGenerator
	cfg      Config
	logger   *zap.Logger

	running atomic.Bool
}

// New creates a Dispatcher. runs, archiver and emitter are optional.
func New(
	source CategorySource,
	pages worker.PageFetcher,
	store catalog.Store,
	runs catalog.RunRecorder,
	archiver Archiver,
	emitter progress.Emitter,
	clock catalog.Clock,
	ids catalog.IDGenerator,
	cfg Config,
	logger *zap.Logger,
) *Dispatcher {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if emitter == nil {
		emitter = progress.Nop{}
	}
	if clock == nil {
		clock = system.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		source:   source,
		pages:    pages,
		store:    store,
		runs:     runs,
		archiver: archiver,
		emitter:  emitter,
		clock:    clock,
		ids:      ids,
		cfg:      cfg,
		logger:   logger,
	}
}

// Running reports whether a run is active.
func (d *Dispatcher) Running() bool {
	return d.running.Load()
}

// Run executes one ingestion run and blocks until every started category has
// reached a terminal state. Category failures are reported in the Report and
// do not produce an error; only run-fatal conditions (category tree, category
// persistence, truncation) do. A canceled run returns its partial Report with
// status canceled and a nil error.
func (d *Dispatcher) Run(ctx context.Context) (Report, error) {
	if !d.running.CompareAndSwap(false, true) {
		return Report{}, ErrRunInProgress
	}
	defer d.running.Store(false)

	runID, err := d.newRunID()
	if err != nil {
		return Report{}, err
	}
	report := Report{RunID: runID, StartedAt: d.clock.Now(), Status: catalog.RunRunning}
	logger := d.logger.With(zap.String("run_id", runID))

	if d.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.RunTimeout)
		defer cancel()
	}

	if d.runs != nil {
		if err := d.runs.StartRun(context.WithoutCancel(ctx), runID, report.StartedAt); err != nil {
			logger.Warn("record run start failed", zap.Error(err))
		}
	}
	d.emit(runID, progress.Event{Stage: progress.StageRunStart})
	logger.Info("ingestion run started", zap.Int("concurrency", d.cfg.Concurrency))

	categories, err := d.prepare(ctx, &report, logger)
	if err != nil {
		return d.abort(ctx, report, err, logger)
	}
	report.Categories = len(categories)

	report.Results = d.fanOut(ctx, runID, categories, logger)
	report.aggregate()
	report.Status = deriveStatus(ctx.Err() != nil, len(categories), len(report.Errors))
	d.finish(ctx, &report, logger)
	return report, nil
}

func (d *Dispatcher) newRunID() (string, error) {
	if d.ids == nil {
		return fmt.Sprintf("run-%d", d.clock.Now().UnixNano()), nil
	}
	id, err := d.ids.NewID()
	if err != nil {
		return "", fmt.Errorf("generate run id: %w", err)
	}
	return id, nil
}

// prepare loads the category tree and persists it. Nothing is written unless
// the whole tree parsed.
func (d *Dispatcher) prepare(ctx context.Context, report *Report, logger *zap.Logger) ([]catalog.Category, error) {
	parsed, err := d.source.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load categories: %w", err)
	}
	for _, skipped := range parsed.Skipped {
		report.SkippedCategories = append(report.SkippedCategories, skipped.Error())
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("run stopped before persistence: %w", err)
	}
	if d.cfg.TruncateBeforeRun {
		truncater, ok := d.store.(catalog.Truncater)
		if !ok {
			return nil, errors.New("store does not support truncation")
		}
		if err := truncater.Truncate(ctx); err != nil {
			return nil, &catalog.PersistenceError{Op: "truncate", Err: err}
		}
		logger.Info("previous ingestion data truncated")
	}
	if len(parsed.Categories) > 0 {
		if err := d.store.SaveCategories(ctx, parsed.Categories); err != nil {
			return nil, &catalog.PersistenceError{Op: "save categories", Err: err}
		}
	}
	logger.Info("categories persisted",
		zap.Int("categories", len(parsed.Categories)),
		zap.Int("skipped", len(parsed.Skipped)),
	)
	return parsed.Categories, nil
}

// fanOut drains every category on a pool of at most Concurrency workers and
// returns the results in category order.
func (d *Dispatcher) fanOut(
	ctx context.Context,
	runID string,
	categories []catalog.Category,
	logger *zap.Logger,
) []worker.CategoryResult {
	if len(categories) == 0 {
		return nil
	}
	queue := memory.NewQueue(len(categories))
	for _, c := range categories {
		// Capacity equals len(categories), so this never blocks.
		if err := queue.Enqueue(context.WithoutCancel(ctx), c); err != nil {
			logger.Error("enqueue category failed", zap.String("category_id", c.ID.String()), zap.Error(err))
		}
	}
	queue.Close()

	committer := worker.NewCommitter(d.store, d.cfg.PersistTimeout, logger.Named("committer"))
	wcfg := worker.Config{RunID: runID, MaxPages: d.cfg.MaxPagesPerCategory}
	poolSize := min(d.cfg.Concurrency, len(categories))

	var (
		mu      sync.Mutex
		results = make([]worker.CategoryResult, 0, len(categories))
		wg      sync.WaitGroup
	)
	for i := 0; i < poolSize; i++ {
		w := worker.New(queue, d.pages, committer, d.emitter, d.clock, wcfg, logger.Named("worker"))
		wg.Add(1)
		go func() {
			defer wg.Done()
			out := w.Run(ctx)
			mu.Lock()
			results = append(results, out...)
			mu.Unlock()
		}()
	}
	wg.Wait()

	for {
		c, err := queue.Dequeue(context.Background())
		if err != nil {
			break
		}
		results = append(results, worker.CategoryResult{
			Category: c,
			State:    worker.StateNotStarted,
			Stop:     worker.StopNotStarted,
		})
	}
	return orderResults(categories, results)
}

func orderResults(categories []catalog.Category, results []worker.CategoryResult) []worker.CategoryResult {
	position := make(map[catalog.ID]int, len(categories))
	for i, c := range categories {
		if _, ok := position[c.ID]; !ok {
			position[c.ID] = i
		}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return position[results[i].Category.ID] < position[results[j].Category.ID]
	})
	return results
}

func (d *Dispatcher) abort(ctx context.Context, report Report, err error, logger *zap.Logger) (Report, error) {
	report.Err = err.Error()
	report.Status = catalog.RunFailed
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		report.Status = catalog.RunCanceled
	}
	logger.Error("ingestion run aborted", zap.Error(err))
	d.finish(ctx, &report, logger)
	return report, err
}

// finish stamps the report, archives it and records completion. It runs
// detached from ctx so a canceled run is still recorded.
func (d *Dispatcher) finish(ctx context.Context, report *Report, logger *zap.Logger) {
	report.FinishedAt = d.clock.Now()
	finalCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
	defer cancel()

	if d.archiver != nil {
		uri, err := d.archiver.Archive(finalCtx, *report)
		if err != nil {
			logger.Warn("archive report failed", zap.Error(err))
		} else {
			report.ReportURI = uri
		}
	}
	if d.runs != nil {
		if err := d.runs.CompleteRun(finalCtx, report.Summary()); err != nil {
			logger.Warn("record run completion failed", zap.Error(err))
		}
	}

	dur := report.FinishedAt.Sub(report.StartedAt)
	if dur < 0 {
		dur = 0
	}
	stage := progress.StageRunDone
	if report.Status == catalog.RunFailed {
		stage = progress.StageRunError
	}
	d.emit(report.RunID, progress.Event{
		Stage:    stage,
		Products: int64(report.ProductsPersisted),
		Dur:      dur,
		Note:     string(report.Status),
	})
	logger.Info("ingestion run finished",
		zap.String("status", string(report.Status)),
		zap.Int("categories", report.Categories),
		zap.Int("products", report.ProductsPersisted),
		zap.Int("failures", len(report.Errors)),
		zap.Int("not_started", report.NotStarted()),
		zap.Duration("duration", dur),
	)
}

func (d *Dispatcher) emit(runID string, evt progress.Event) {
	evt.RunID = runID
	evt.TS = d.clock.Now()
	d.emitter.Emit(evt)
}
