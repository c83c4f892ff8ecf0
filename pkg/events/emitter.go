package events

import (
	"log/slog"
	"sync"
)

// Handler processes a domain event. Handlers run synchronously on the
// emitting goroutine and must not block for long.
type Handler func(Event)

// Emitter dispatches domain events to registered handlers. It is constructed
// and injected explicitly so tests can substitute a recording sink. Delivery
// is synchronous fire-and-forget: no persistence, no retries, no ordering
// guarantee across unrelated (user, course) pairs.
type Emitter struct {
	mu       sync.RWMutex
	handlers map[Type][]Handler
	all      []Handler
	logger   *slog.Logger
}

// NewEmitter creates an emitter. The logger is used to report handler panics.
func NewEmitter(logger *slog.Logger) *Emitter {
	return &Emitter{
		handlers: make(map[Type][]Handler),
		logger:   logger,
	}
}

// Subscribe registers a handler for a specific event type.
func (e *Emitter) Subscribe(eventType Type, handler Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[eventType] = append(e.handlers[eventType], handler)
}

// SubscribeAll registers a handler that receives every event.
func (e *Emitter) SubscribeAll(handler Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.all = append(e.all, handler)
}

// Publish delivers the event to all matching handlers. A panicking handler is
// logged and skipped; it never affects the publishing operation.
func (e *Emitter) Publish(event Event) {
	e.mu.RLock()
	typed := e.handlers[event.Type]
	all := e.all
	e.mu.RUnlock()

	for _, h := range typed {
		e.dispatch(h, event)
	}
	for _, h := range all {
		e.dispatch(h, event)
	}
}

func (e *Emitter) dispatch(h Handler, event Event) {
	defer func() {
		if r := recover(); r != nil && e.logger != nil {
			e.logger.Error("event handler panicked",
				slog.String("event_type", string(event.Type)),
				slog.Any("panic", r),
			)
		}
	}()
	h(event)
}

// Recorder is an event sink that captures published events for inspection.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// NewRecorder creates a recorder and subscribes it to every event type.
func NewRecorder(emitter *Emitter) *Recorder {
	r := &Recorder{}
	emitter.SubscribeAll(r.record)
	return r
}

func (r *Recorder) record(event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// ByType returns recorded events matching the given type.
func (r *Recorder) ByType(eventType Type) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, ev := range r.events {
		if ev.Type == eventType {
			out = append(out, ev)
		}
	}
	return out
}

// Reset clears the recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
