package tailor

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// EventKind names a change published on the Bus.
type EventKind string

const (
	EventCustomerSaved   EventKind = "customer_saved"
	EventCustomerDeleted EventKind = "customer_deleted"
	EventDataCleared     EventKind = "data_cleared"
)

// Event describes a completed mutation. Customer is nil for deletes and clears.
type Event struct {
	Kind       EventKind `json:"kind"`
	CustomerID string    `json:"customerId,omitempty"`
	Customer   *Customer `json:"customer,omitempty"`
	At         time.Time `json:"at"`
}

// Listener receives events synchronously, in subscription order.
type Listener func(Event)

// Bus fans mutation events out to external listeners such as list
// re-rendering, statistics refresh or the websocket stream.
type Bus struct {
	mu        sync.RWMutex
	nextID    int
	listeners map[int]Listener
	order     []int
	logger    *zap.Logger
}

func NewBus(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{
		listeners: make(map[int]Listener),
		logger:    logger,
	}
}

// Subscribe registers fn and returns a function that removes it.
func (b *Bus) Subscribe(fn Listener) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.listeners[id] = fn
	b.order = append(b.order, id)

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.listeners, id)
			for i, v := range b.order {
				if v == id {
					b.order = append(b.order[:i], b.order[i+1:]...)
					break
				}
			}
		})
	}
}

// Publish delivers e to every listener. A panicking listener is logged and
// does not prevent delivery to the others.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	fns := make([]Listener, 0, len(b.order))
	for _, id := range b.order {
		fns = append(fns, b.listeners[id])
	}
	b.mu.RUnlock()

	for _, fn := range fns {
		b.deliver(fn, e)
	}
}

func (b *Bus) deliver(fn Listener, e Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("update listener panicked",
				zap.String("kind", string(e.Kind)),
				zap.Any("panic", r),
			)
		}
	}()
	fn(e)
}
