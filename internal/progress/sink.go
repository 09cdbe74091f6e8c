package progress

import "context"

// Sink consumes progress events. Implementations must honor ctx deadlines
// and may be invoked from the hub's single dispatch goroutine.
type Sink interface {
	Consume(ctx context.Context, evt Event) error
	Close(ctx context.Context) error
}

// Emitter publishes individual events; Hub satisfies this interface so the
// walker stays agnostic about buffering and persistence.
type Emitter interface {
	Emit(evt Event)
}

// NopEmitter discards all events.
type NopEmitter struct{}

// Emit implements Emitter.
func (NopEmitter) Emit(Event) {}
