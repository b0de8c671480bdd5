/*
book.go - The customer book session object

PURPOSE:
  Book is the single entry point used by the UI, print and bootstrap
  collaborators. It replaces the ambient globals of a browser app (record
  list, store handle, online flag) with one explicit object, so several
  independent books can live side by side in tests.

WRITE FLOW:
  1. Assign an id from the IDGenerator when missing
  2. Normalize and validate (all violations reported, nothing written)
  3. Single-record atomic write (insert, or compare-and-swap update)
  4. Publish on the Bus
  5. If offline, append the intent to the SyncQueue

  Purge and ClearAll cancel the pending intents of the records they remove,
  so a reconnect never brings a removed record back.

CONCURRENCY:
  Book is safe for concurrent use. Writes to one id are serialized by the
  store and guarded by the record version; writes to different ids are
  independent.

SEE ALSO:
  - store.go: Storage interfaces
  - search.go, settings.go, backup.go: Remaining operations
  - editor.go: Debounced profile editing
*/
package tailor

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// DefaultSaveDelay is the idle gap after which profile edits are persisted.
const DefaultSaveDelay = 1500 * time.Millisecond

// BookConfig configures a Book. Zero values pick defaults.
type BookConfig struct {
	Validator Validator
	Clock     Clock
	Logger    *zap.Logger

	// SaveDelay is the debounce gap used by EditProfile.
	SaveDelay time.Duration

	// BackupRetention caps the backup log. Zero keeps every backup.
	BackupRetention int

	MaxSyncAttempts int

	// Replayer applies drained queue items. Defaults to a StoreReplayer.
	Replayer Replayer

	// Offline starts the book disconnected.
	Offline bool
}

// Book is the persistence session for one shop.
type Book struct {
	store     Store
	ids       *IDGenerator
	bus       *Bus
	queue     *SyncQueue
	validator Validator
	clock     Clock
	logger    *zap.Logger
	saveDelay time.Duration
	retention int
	online    atomic.Bool
}

// NewBook wires a Book over store and restores the persisted id set.
func NewBook(ctx context.Context, store Store, cfg BookConfig) (*Book, error) {
	if cfg.Clock == nil {
		cfg.Clock = SystemClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.SaveDelay <= 0 {
		cfg.SaveDelay = DefaultSaveDelay
	}
	if cfg.Replayer == nil {
		cfg.Replayer = StoreReplayer{Store: store}
	}

	b := &Book{
		store:     store,
		ids:       NewIDGenerator(store),
		bus:       NewBus(cfg.Logger.Named("bus")),
		validator: cfg.Validator,
		clock:     cfg.Clock,
		logger:    cfg.Logger.Named("book"),
		saveDelay: cfg.SaveDelay,
		retention: cfg.BackupRetention,
	}
	b.queue = NewSyncQueue(store, cfg.Replayer, SyncQueueConfig{
		MaxAttempts: cfg.MaxSyncAttempts,
		Clock:       cfg.Clock,
		Logger:      cfg.Logger.Named("syncqueue"),
	})
	b.online.Store(!cfg.Offline)

	if err := b.ids.Load(ctx); err != nil {
		return nil, err
	}
	return b, nil
}

// IDs exposes the id generator.
func (b *Book) IDs() *IDGenerator { return b.ids }

// Queue exposes the offline sync queue.
func (b *Book) Queue() *SyncQueue { return b.queue }

// =============================================================================
// RECORD STORE
// =============================================================================

// Save validates and persists c and returns the stored record.
//
// A record with Version 0 is created: it gets an id when missing and fails
// with *DuplicateIDError if an active record holds its id. Any other record
// is updated only if the stored version still equals c.Version.
//
// CreatedAt and Deleted are owned by the book: an update keeps the stored
// values and a create always starts active. Use Delete to soft-delete.
func (b *Book) Save(ctx context.Context, in Customer) (Customer, error) {
	c := in.Clone()
	c.ID = strings.TrimSpace(c.ID)

	generated := false
	if c.ID == "" {
		id, err := b.ids.Generate(ctx)
		if err != nil {
			return Customer{}, err
		}
		c.ID = id
		generated = true
	}

	c.normalize()
	if err := b.validator.Validate(c); err != nil {
		if generated {
			b.releaseQuietly(ctx, c.ID)
		}
		return Customer{}, err
	}

	now := b.clock.Now()
	c.UpdatedAt = now

	if c.Version == 0 {
		if c.CreatedAt.IsZero() {
			c.CreatedAt = now
		}
		c.Deleted = false
		c.Version = 1
		if err := b.store.InsertCustomer(ctx, c); err != nil {
			if generated {
				b.releaseQuietly(ctx, c.ID)
			}
			return Customer{}, err
		}
	} else {
		current, err := b.store.GetCustomer(ctx, c.ID)
		if err != nil {
			return Customer{}, err
		}
		if current == nil {
			return Customer{}, &NotFoundError{ID: c.ID}
		}
		c.CreatedAt = current.CreatedAt
		c.Deleted = current.Deleted

		expected := c.Version
		c.Version++
		if err := b.store.UpdateCustomer(ctx, c, expected); err != nil {
			return Customer{}, err
		}
	}

	if err := b.ids.AddUsed(ctx, c.ID); err != nil {
		b.logger.Warn("mark id used", zap.String("id", c.ID), zap.Error(err))
	}

	saved := c.Clone()
	b.bus.Publish(Event{Kind: EventCustomerSaved, CustomerID: c.ID, Customer: &saved, At: now})
	b.enqueueIfOffline(ctx, OpSaveCustomer, c.ID, c)
	return c, nil
}

// GetAll returns customers ordered by creation time, newest first.
func (b *Book) GetAll(ctx context.Context, includeDeleted bool) ([]Customer, error) {
	return b.store.ListCustomers(ctx, includeDeleted)
}

// GetByID returns the customer or nil when absent.
func (b *Book) GetByID(ctx context.Context, id string) (*Customer, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, nil
	}
	return b.store.GetCustomer(ctx, id)
}

// Delete soft-deletes the customer. Returns *NotFoundError if absent.
// Deleting an already deleted customer is a no-op: no event, no queued intent.
func (b *Book) Delete(ctx context.Context, id string) error {
	current, err := b.store.GetCustomer(ctx, id)
	if err != nil {
		return err
	}
	if current == nil {
		return &NotFoundError{ID: id}
	}
	if current.Deleted {
		return nil
	}

	now := b.clock.Now()
	if _, err := b.store.SoftDeleteCustomer(ctx, id, now); err != nil {
		return err
	}

	b.bus.Publish(Event{Kind: EventCustomerDeleted, CustomerID: id, At: now})
	b.enqueueIfOffline(ctx, OpDeleteCustomer, id, map[string]string{"id": id})
	return nil
}

// Purge physically removes a soft-deleted customer, releases its id and
// cancels its pending sync intents.
func (b *Book) Purge(ctx context.Context, id string) error {
	c, err := b.store.GetCustomer(ctx, id)
	if err != nil {
		return err
	}
	if c == nil {
		return &NotFoundError{ID: id}
	}
	if !c.Deleted {
		return &ValidationError{Violations: []Violation{{Field: "id", Message: "only deleted customers can be purged"}}}
	}

	if err := b.store.PurgeCustomer(ctx, id); err != nil {
		return err
	}
	if _, err := b.queue.Cancel(ctx, id); err != nil {
		return err
	}
	return b.ids.Release(ctx, id)
}

// ClearAll removes every customer, forgets every used id and cancels every
// pending sync intent, since none of their records exist any more.
func (b *Book) ClearAll(ctx context.Context) error {
	if err := b.store.ClearCustomers(ctx); err != nil {
		return fmt.Errorf("clear customers: %w", err)
	}
	if err := b.ids.Reset(ctx); err != nil {
		return err
	}
	if _, err := b.queue.Cancel(ctx); err != nil {
		return err
	}
	b.bus.Publish(Event{Kind: EventDataCleared, At: b.clock.Now()})
	return nil
}

// =============================================================================
// IDS, EVENTS
// =============================================================================

// NextID reserves a fresh customer id.
func (b *Book) NextID(ctx context.Context) (string, error) {
	return b.ids.Generate(ctx)
}

// SyncIDsWithStore rebuilds the used-id set from the stored records.
func (b *Book) SyncIDsWithStore(ctx context.Context) error {
	return b.ids.SyncWithStore(ctx, b.store)
}

// OnUpdate subscribes fn to change events.
func (b *Book) OnUpdate(fn Listener) (unsubscribe func()) {
	return b.bus.Subscribe(fn)
}

// =============================================================================
// CONNECTIVITY
// =============================================================================

// Online reports the current connectivity state.
func (b *Book) Online() bool { return b.online.Load() }

// SetOnline records a connectivity change. Going from offline to online
// drains the sync queue.
func (b *Book) SetOnline(ctx context.Context, online bool) (DrainResult, error) {
	was := b.online.Swap(online)
	if !online || was {
		return DrainResult{}, nil
	}
	b.logger.Info("connectivity restored, draining sync queue")
	return b.queue.Drain(ctx)
}

// Drain replays pending queue items now.
func (b *Book) Drain(ctx context.Context) (DrainResult, error) {
	return b.queue.Drain(ctx)
}

// QueueItems lists sync queue items with the given status; empty lists all.
func (b *Book) QueueItems(ctx context.Context, status QueueStatus) ([]SyncQueueItem, error) {
	return b.queue.Items(ctx, status)
}

func (b *Book) enqueueIfOffline(ctx context.Context, op OpType, customerID string, payload any) {
	if b.Online() {
		return
	}
	if _, err := b.queue.Enqueue(ctx, op, customerID, payload); err != nil {
		// The local write already succeeded; the intent is lost but the data is not.
		b.logger.Error("enqueue offline change",
			zap.String("type", string(op)),
			zap.String("customer_id", customerID),
			zap.Error(err),
		)
	}
}

func (b *Book) releaseQuietly(ctx context.Context, id string) {
	if err := b.ids.Release(ctx, id); err != nil {
		b.logger.Warn("release id", zap.String("id", id), zap.Error(err))
	}
}
