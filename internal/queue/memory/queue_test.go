package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/JakeFAU/catalog-ingestor/internal/catalog"
)

func TestQueueEnqueueDequeue(t *testing.T) {
	t.Parallel()

	q := NewQueue(1)
	result := make(chan catalog.Category, 1)
	errCh := make(chan error, 1)

	go func() {
		item, err := q.Dequeue(context.Background())
		if err != nil {
			errCh <- err
			return
		}
		result <- item
	}()

	if err := q.Enqueue(context.Background(), catalog.Category{ID: "8126"}); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	select {
	case err := <-errCh:
		t.Fatalf("Dequeue() error = %v", err)
	case got := <-result:
		if got.ID != "8126" {
			t.Fatalf("expected 8126, got %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("dequeue did not return category")
	}
}

func TestQueueCancelationErrors(t *testing.T) {
	t.Parallel()

	qDequeue := NewQueue(1)
	if err := qDequeue.Enqueue(context.Background(), catalog.Category{ID: "ready"}); err != nil {
		t.Fatalf("prime queue: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := qDequeue.Dequeue(ctx); err == nil ||
		err.Error() != "dequeue canceled: context canceled" {
		t.Fatalf("expected dequeue cancel error even with buffered item, got %v", err)
	}

	qEnqueue := NewQueue(1)
	if err := qEnqueue.Enqueue(context.Background(), catalog.Category{ID: "primed"}); err != nil {
		t.Fatalf("failed to prime enqueue queue: %v", err)
	}
	if err := qEnqueue.Enqueue(ctx, catalog.Category{}); err == nil ||
		err.Error() != "enqueue canceled: context canceled" {
		t.Fatalf("expected enqueue cancel error, got %v", err)
	}
}

func TestQueueCloseDrainsBufferedItems(t *testing.T) {
	t.Parallel()

	q := NewQueue(3)
	for _, id := range []catalog.ID{"1", "2"} {
		if err := q.Enqueue(context.Background(), catalog.Category{ID: id}); err != nil {
			t.Fatalf("Enqueue(%s) error = %v", id, err)
		}
	}
	if q.Len() != 2 {
		t.Fatalf("expected len 2, got %d", q.Len())
	}
	q.Close()
	q.Close()

	if err := q.Enqueue(context.Background(), catalog.Category{ID: "3"}); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("expected ErrQueueClosed from Enqueue, got %v", err)
	}
	for _, want := range []catalog.ID{"1", "2"} {
		got, err := q.Dequeue(context.Background())
		if err != nil {
			t.Fatalf("Dequeue() error = %v", err)
		}
		if got.ID != want {
			t.Fatalf("expected %s, got %s", want, got.ID)
		}
	}
	if _, err := q.Dequeue(context.Background()); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("expected ErrQueueClosed, got %v", err)
	}
}
