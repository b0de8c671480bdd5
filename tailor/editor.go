package tailor

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// ErrEditorClosed is returned by Update and Flush after Close.
var ErrEditorClosed = errors.New("profile editor closed")

// ProfileEditor coalesces rapid profile edits into a single save once the
// edits pause for the book's save delay.
//
// Closing the editor (navigating away) cancels the pending save: an edit
// made within the delay before Close is lost. Call Flush first to keep it.
type ProfileEditor struct {
	book *Book

	// saveMu serializes saves so each one carries the version of the last.
	saveMu sync.Mutex

	mu      sync.Mutex
	working Customer
	dirty   bool
	closed  bool
	timer   Timer
	gen     uint64
	lastErr error
}

// EditProfile starts an editing session on c.
func (b *Book) EditProfile(c Customer) *ProfileEditor {
	working := c.Clone()
	working.normalize()
	return &ProfileEditor{book: b, working: working}
}

// Update applies fn to the working copy and re-arms the save timer.
func (e *ProfileEditor) Update(fn func(c *Customer)) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrEditorClosed
	}

	fn(&e.working)
	e.dirty = true

	if e.timer != nil {
		e.timer.Stop()
	}
	e.gen++
	gen := e.gen
	e.timer = e.book.clock.AfterFunc(e.book.saveDelay, func() {
		if _, err := e.persist(context.Background(), gen); err != nil {
			e.book.logger.Warn("debounced save failed", zap.String("id", e.Customer().ID), zap.Error(err))
		}
	})
	return nil
}

// Flush saves pending edits now and returns the stored record.
func (e *ProfileEditor) Flush(ctx context.Context) (Customer, error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return Customer{}, ErrEditorClosed
	}
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.gen++
	gen := e.gen
	e.mu.Unlock()

	return e.persist(ctx, gen)
}

// Close ends the session and discards edits not yet saved. Reports whether
// an edit was discarded.
func (e *ProfileEditor) Close() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false
	}
	e.closed = true
	e.gen++
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	discarded := e.dirty
	e.dirty = false
	return discarded
}

// Customer returns a copy of the working record.
func (e *ProfileEditor) Customer() Customer {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.working.Clone()
}

// Pending reports whether edits are waiting to be saved.
func (e *ProfileEditor) Pending() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dirty
}

// Err returns the error of the most recent save, if it failed.
func (e *ProfileEditor) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

// persist saves the working copy if gen is still current and there are edits.
func (e *ProfileEditor) persist(ctx context.Context, gen uint64) (Customer, error) {
	e.saveMu.Lock()
	defer e.saveMu.Unlock()

	e.mu.Lock()
	if e.closed || gen != e.gen {
		e.mu.Unlock()
		return Customer{}, nil
	}
	if !e.dirty {
		current := e.working.Clone()
		e.mu.Unlock()
		return current, nil
	}
	snapshot := e.working.Clone()
	e.dirty = false
	e.timer = nil
	e.mu.Unlock()

	saved, err := e.book.Save(ctx, snapshot)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastErr = err
	if err != nil {
		e.dirty = true
		return Customer{}, err
	}
	e.working.ID = saved.ID
	e.working.Version = saved.Version
	e.working.CreatedAt = saved.CreatedAt
	e.working.UpdatedAt = saved.UpdatedAt
	return saved, nil
}
