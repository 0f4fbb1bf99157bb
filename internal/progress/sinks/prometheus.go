package sinks

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/catalog-ingestor/internal/progress"
)

// PrometheusSink exports ingestion progress as Prometheus collectors.
type PrometheusSink struct {
	runsStarted   prometheus.Counter
	runsCompleted *prometheus.CounterVec
	runsRunning   prometheus.Gauge
	runRuntime    *prometheus.HistogramVec

	categoriesCompleted *prometheus.CounterVec
	productsPersisted   prometheus.Counter
	pagesFetched        *prometheus.CounterVec
	productsDecoded     prometheus.Counter
	pageDuration        *prometheus.HistogramVec

	tracker *runTracker
}

// NewPrometheusSink registers the collectors against reg, or the default
// registerer when reg is nil.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ingestor_runs_started_total",
			Help: "Total ingestion runs started.",
		}),
		runsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ingestor_runs_completed_total",
			Help: "Total ingestion runs completed partitioned by result.",
		}, []string{"result"}),
		runsRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ingestor_runs_running",
			Help: "Ingestion runs currently in progress.",
		}),
		runRuntime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ingestor_run_runtime_seconds",
			Help:    "Wall time per completed run.",
			Buckets: []float64{10, 30, 60, 300, 600, 1200, 1800, 3600, 7200},
		}, []string{"result"}),
		categoriesCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ingestor_categories_completed_total",
			Help: "Categories drained partitioned by result.",
		}, []string{"result"}),
		productsPersisted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ingestor_products_persisted_total",
			Help: "Deduplicated products written to the store.",
		}),
		pagesFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ingestor_pages_fetched_total",
			Help: "Listing page requests partitioned by status class.",
		}, []string{"status_class"}),
		productsDecoded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ingestor_products_decoded_total",
			Help: "Products decoded from listing pages before deduplication.",
		}),
		pageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ingestor_page_fetch_duration_seconds",
			Help:    "Listing page latency partitioned by status class.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 15},
		}, []string{"status_class"}),
		tracker: newRunTracker(),
	}
	for _, collector := range []prometheus.Collector{
		s.runsStarted,
		s.runsCompleted,
		s.runsRunning,
		s.runRuntime,
		s.categoriesCompleted,
		s.productsPersisted,
		s.pagesFetched,
		s.productsDecoded,
		s.pageDuration,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors from batch. Safe for concurrent use.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		switch evt.Stage {
		case progress.StageRunStart, progress.StageRunDone, progress.StageRunError:
			s.handleRunEvent(evt)
		case progress.StageCategoryDone:
			s.categoriesCompleted.WithLabelValues("success").Inc()
			s.productsPersisted.Add(float64(evt.Products))
		case progress.StageCategoryError:
			s.categoriesCompleted.WithLabelValues("error").Inc()
		case progress.StagePageDone:
			s.handlePageEvent(evt)
		}
	}
	return nil
}

func (s *PrometheusSink) handleRunEvent(evt progress.Event) {
	result := "success"
	switch evt.Stage {
	case progress.StageRunStart:
		s.runsStarted.Inc()
		if s.tracker.start(evt.RunID) {
			s.runsRunning.Inc()
		}
		return
	case progress.StageRunError:
		result = "error"
	}
	s.runsCompleted.WithLabelValues(result).Inc()
	if evt.Dur > 0 {
		s.runRuntime.WithLabelValues(result).Observe(evt.Dur.Seconds())
	}
	if s.tracker.complete(evt.RunID) {
		s.runsRunning.Dec()
	}
}

func (s *PrometheusSink) handlePageEvent(evt progress.Event) {
	class := string(evt.StatusClass)
	if class == "" {
		class = string(progress.StatusOther)
	}
	s.pagesFetched.WithLabelValues(class).Inc()
	if evt.Products > 0 {
		s.productsDecoded.Add(float64(evt.Products))
	}
	if evt.Dur > 0 {
		s.pageDuration.WithLabelValues(class).Observe(evt.Dur.Seconds())
	}
}

// Close implements progress.Sink.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

type runTracker struct {
	mu      sync.Mutex
	running map[string]struct{}
}

func newRunTracker() *runTracker {
	return &runTracker{running: make(map[string]struct{})}
}

func (t *runTracker) start(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; ok {
		return false
	}
	t.running[id] = struct{}{}
	return true
}

func (t *runTracker) complete(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; !ok {
		return false
	}
	delete(t.running, id)
	return true
}
