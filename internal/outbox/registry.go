package outbox

import (
	"context"
	"sort"
	"sync"

	"github.com/shopsaga/order-core/internal/model"
)

// Handler is any value that advertises its supported event types, whether it
// can process a whole batch at once, and runs the handling logic (§4.3 /
// REDESIGN FLAGS: handlers are tagged interfaces, not a class hierarchy).
type Handler interface {
	Name() string
	SupportedEventTypes() []model.EventType
	SupportsBatch() bool
	// Priority orders handlers for the same event type; lower runs first
	// (OrderHandler uses priority 0 so order-state transitions precede
	// side-effect handlers, per §4.3).
	Priority() int
	Handle(ctx context.Context, event *model.OutboxEvent) error
	HandleBatch(ctx context.Context, events []*model.OutboxEvent) error
}

// Registry maps event type to an ordered handler list. Immutable after
// Freeze is called at boot (§4.3).
type Registry struct {
	mu     sync.RWMutex
	byType map[model.EventType][]Handler
	frozen bool
}

func NewRegistry() *Registry {
	return &Registry{byType: make(map[model.EventType][]Handler)}
}

// Register adds a handler for every event type it declares. Panics if
// called after Freeze, since the registry is start-of-process only.
func (r *Registry) Register(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		panic("outbox: cannot register a handler after the registry is frozen")
	}
	for _, et := range h.SupportedEventTypes() {
		r.byType[et] = append(r.byType[et], h)
	}
}

// Freeze sorts each event type's handler list by priority and prevents
// further registration.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, handlers := range r.byType {
		sort.SliceStable(handlers, func(i, j int) bool {
			return handlers[i].Priority() < handlers[j].Priority()
		})
	}
	r.frozen = true
}

// HandlersFor returns the ordered handler list for an event type, or nil if
// none are registered.
func (r *Registry) HandlersFor(eventType model.EventType) []Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byType[eventType]
}
