// Package memory provides the bounded in-memory task queue that feeds the
// worker pool.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/JakeFAU/catalog-ingestor/internal/catalog"
)

// ErrQueueClosed is returned by Dequeue once the queue is closed and drained,
// and by Enqueue after Close.
var ErrQueueClosed = errors.New("queue closed")

// Queue is a bounded FIFO of categories awaiting a worker.
type Queue struct {
	ch      chan catalog.Category
	closeMu sync.RWMutex
	closed  bool
}

// NewQueue constructs a queue with the provided capacity.
func NewQueue(capacity int) *Queue {
	if capacity < 0 {
		capacity = 0
	}
	return &Queue{
		ch: make(chan catalog.Category, capacity),
	}
}

// Enqueue pushes a category, blocking while the queue is full.
func (q *Queue) Enqueue(ctx context.Context, category catalog.Category) error {
	q.closeMu.RLock()
	defer q.closeMu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("enqueue canceled: %w", ctx.Err())
	case q.ch <- category:
		return nil
	}
}

// Dequeue pops the next category. Items still buffered after Close are
// returned before ErrQueueClosed.
func (q *Queue) Dequeue(ctx context.Context) (catalog.Category, error) {
	if err := ctx.Err(); err != nil {
		return catalog.Category{}, fmt.Errorf("dequeue canceled: %w", err)
	}
	select {
	case <-ctx.Done():
		return catalog.Category{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case category, ok := <-q.ch:
		if !ok {
			return catalog.Category{}, ErrQueueClosed
		}
		return category, nil
	}
}

// Len reports how many categories are buffered.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Close stops further Enqueue calls. Safe to call more than once.
func (q *Queue) Close() {
	q.closeMu.Lock()
	defer q.closeMu.Unlock()
	if q.closed {
		return
	}
	close(q.ch)
	q.closed = true
}
