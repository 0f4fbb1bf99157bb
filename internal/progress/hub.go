package progress

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Config controls buffering and batching for the Hub. Zero values take the
// defaults noted per field.
type Config struct {
	// BufferSize is the event channel capacity (1024).
	BufferSize int
	// MaxBatchEvents flushes once this many events are pending (256).
	MaxBatchEvents int
	// MaxBatchWait flushes a partial batch after this long (250ms).
	MaxBatchWait time.Duration
	// SinkTimeout bounds one Consume call (5s).
	SinkTimeout time.Duration
	Logger      *zap.Logger
}

func (c Config) withDefaults() Config {
	if c.BufferSize <= 0 {
		c.BufferSize = 1024
	}
	if c.MaxBatchEvents <= 0 {
		c.MaxBatchEvents = 256
	}
	if c.MaxBatchWait <= 0 {
		c.MaxBatchWait = 250 * time.Millisecond
	}
	if c.SinkTimeout <= 0 {
		c.SinkTimeout = 5 * time.Second
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c
}

const dropReportEvery = 5 * time.Second

// Hub fans run events out to sinks from a single goroutine. Emit never
// blocks: when the buffer is full the event is dropped and counted.
type Hub struct {
	cfg    Config
	sinks  []Sink
	events chan Event
	stop   chan context.Context
	done   chan struct{}
	logger *zap.Logger

	closed       atomic.Bool
	dropped      atomic.Int64
	dropReported atomic.Int64
	lastDropLog  atomic.Int64
	sinkFailures atomic.Int64
}

// NewHub starts the batching goroutine. Nil sinks are ignored.
func NewHub(cfg Config, sinks ...Sink) *Hub {
	cfg = cfg.withDefaults()
	h := &Hub{
		cfg:    cfg,
		events: make(chan Event, cfg.BufferSize),
		stop:   make(chan context.Context, 1),
		done:   make(chan struct{}),
		logger: cfg.Logger,
	}
	for _, s := range sinks {
		if s != nil {
			h.sinks = append(h.sinks, s)
		}
	}
	go h.run()
	return h
}

// Emit enqueues evt. Invalid events and events emitted after Close are
// discarded.
func (h *Hub) Emit(evt Event) {
	if h == nil || h.closed.Load() {
		return
	}
	if err := evt.Validate(); err != nil {
		h.logger.Debug("discarding invalid progress event", zap.Error(err))
		return
	}
	select {
	case h.events <- evt:
	default:
		h.dropped.Add(1)
		h.reportDrops(time.Now())
	}
}

// Dropped returns how many events were discarded under backpressure.
func (h *Hub) Dropped() int64 {
	if h == nil {
		return 0
	}
	return h.dropped.Load()
}

// SinkFailures returns how many Consume calls returned an error.
func (h *Hub) SinkFailures() int64 {
	if h == nil {
		return 0
	}
	return h.sinkFailures.Load()
}

// Close flushes what is buffered, closes the sinks with ctx and waits for the
// hub to stop. Later calls only wait.
func (h *Hub) Close(ctx context.Context) error {
	if h == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if h.closed.CompareAndSwap(false, true) {
		h.stop <- ctx
	}
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("progress hub close wait: %w", ctx.Err())
	}
}

// reportDrops logs the drops since the previous report, at most once per
// dropReportEvery.
func (h *Hub) reportDrops(now time.Time) {
	last := h.lastDropLog.Load()
	if now.UnixNano()-last < int64(dropReportEvery) || !h.lastDropLog.CompareAndSwap(last, now.UnixNano()) {
		return
	}
	total := h.dropped.Load()
	since := total - h.dropReported.Swap(total)
	h.logger.Warn("progress events dropped due to backpressure",
		zap.Int64("dropped", since),
		zap.Int64("dropped_total", total),
	)
}

func (h *Hub) run() {
	defer close(h.done)
	pending := make([]Event, 0, h.cfg.MaxBatchEvents)
	add := func(evt Event) {
		pending = append(pending, evt)
		if len(pending) >= h.cfg.MaxBatchEvents {
			h.flush(pending)
			pending = pending[:0]
		}
	}

	ticker := time.NewTicker(h.cfg.MaxBatchWait)
	defer ticker.Stop()
	for {
		select {
		case evt := <-h.events:
			add(evt)
		case <-ticker.C:
			h.flush(pending)
			pending = pending[:0]
		case ctx := <-h.stop:
			for len(h.events) > 0 {
				add(<-h.events)
			}
			h.flush(pending)
			h.closeSinks(ctx)
			return
		}
	}
}

func (h *Hub) flush(batch []Event) {
	if len(batch) == 0 {
		return
	}
	// Sinks may retain the slice.
	batch = append([]Event(nil), batch...)
	for _, sink := range h.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), h.cfg.SinkTimeout)
		err := sink.Consume(ctx, batch)
		cancel()
		if err != nil {
			h.sinkFailures.Add(1)
			h.logger.Warn("progress sink consume failed", zap.Int("events", len(batch)), zap.Error(err))
		}
	}
}

func (h *Hub) closeSinks(ctx context.Context) {
	for _, sink := range h.sinks {
		if err := sink.Close(ctx); err != nil {
			h.logger.Warn("progress sink close failed", zap.Error(err))
		}
	}
}
