package tailor_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alfajr/tailorbook/tailor"
	"github.com/alfajr/tailorbook/tailor/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

// fakeClock is a manually advanced tailor.Clock. Timers fire synchronously
// inside Advance, on the calling goroutine.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	fn      func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) tailor.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), fn: f}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves the clock forward and runs every timer that became due.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due, rest []*fakeTimer
	for _, t := range c.timers {
		switch {
		case t.stopped || t.fired:
		case !t.at.After(c.now):
			t.fired = true
			due = append(due, t)
		default:
			rest = append(rest, t)
		}
	}
	c.timers = rest
	c.mu.Unlock()

	for _, t := range due {
		t.fn()
	}
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

func newTestBook(t *testing.T, cfg tailor.BookConfig) (*tailor.Book, *store.Memory, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	if cfg.Clock == nil {
		cfg.Clock = clock
	}
	mem := store.NewMemory()
	book, err := tailor.NewBook(context.Background(), mem, cfg)
	require.NoError(t, err)
	return book, mem, clock
}

func karim() tailor.Customer {
	c := tailor.NewCustomer("Karim", "0799123456")
	c.Measurements["قد"] = "170"
	c.Measurements["شانه_یک"] = "45.5"
	return c
}

func customer(name, phone string) tailor.Customer {
	return tailor.NewCustomer(name, phone)
}

// recorder collects bus events.
type recorder struct {
	mu     sync.Mutex
	events []tailor.Event
}

func (r *recorder) listen(e tailor.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) kinds() []tailor.EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]tailor.EventKind, len(r.events))
	for i, e := range r.events {
		out[i] = e.Kind
	}
	return out
}

func (r *recorder) count(kind tailor.EventKind) int {
	n := 0
	for _, k := range r.kinds() {
		if k == kind {
			n++
		}
	}
	return n
}
