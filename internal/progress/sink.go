package progress

import "context"

// Sink consumes batches of progress events. Consume may be called many times
// before Close and must honor ctx deadlines.
type Sink interface {
	Consume(ctx context.Context, batch []Event) error
	Close(ctx context.Context) error
}

// Emitter publishes individual events. Hub implements it; workers depend on
// the interface so tests can capture events synchronously.
type Emitter interface {
	Emit(evt Event)
}

// Nop discards every event.
type Nop struct{}

// Emit implements Emitter.
func (Nop) Emit(Event) {}
