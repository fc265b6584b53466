package progress

import "context"

// Sink consumes progress events. Implementations must be safe for
// repeated calls and honor ctx deadlines.
type Sink interface {
	Consume(ctx context.Context, evt Event) error
	Close(ctx context.Context) error
}

// Emitter publishes individual events; Hub satisfies this interface so
// the engine stays agnostic about buffering and persistence.
type Emitter interface {
	Emit(evt Event)
}
