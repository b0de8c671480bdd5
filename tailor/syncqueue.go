/*
syncqueue.go - Offline mutation queue

PURPOSE:
  Buffers mutation intents recorded while the shop is offline and replays
  them, oldest first, once connectivity returns.

STATE MACHINE (per item):
  pending --replay ok--------------------------> completed
  pending --replay fails, attempts < max-------> pending (attempts+1)
  pending --replay fails, attempts reaches max--> failed (logged, never retried)
  pending --record purged or cleared-----------> cancelled

ORDERING:
  Items are drained in FIFO order. When an item for a customer fails, later
  items for the same customer are deferred to the next drain so a delete is
  never replayed before the save it follows.

RE-ENTRANCY:
  Reconnect signals are not debounced upstream, so two drains can overlap.
  Only one drain runs at a time; a concurrent call returns at once with
  DrainResult.Skipped set.

SCOPE:
  Local intents only. No remote conflict resolution exists.
*/
package tailor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultMaxAttempts is the replay ceiling before an item is marked failed.
const DefaultMaxAttempts = 3

// Replayer applies a queued intent.
type Replayer interface {
	Replay(ctx context.Context, item SyncQueueItem) error
}

// ReplayerFunc adapts a function to Replayer.
type ReplayerFunc func(ctx context.Context, item SyncQueueItem) error

func (f ReplayerFunc) Replay(ctx context.Context, item SyncQueueItem) error { return f(ctx, item) }

// DrainResult summarizes a drain pass.
type DrainResult struct {
	Skipped   bool `json:"skipped"`
	Processed int  `json:"processed"`
	Completed int  `json:"completed"`
	Retrying  int  `json:"retrying"`
	Failed    int  `json:"failed"`
	Deferred  int  `json:"deferred"`
}

type SyncQueue struct {
	store       QueueStore
	replayer    Replayer
	clock       Clock
	logger      *zap.Logger
	maxAttempts int
	draining    atomic.Bool
}

// SyncQueueConfig configures a SyncQueue. Zero values pick defaults.
type SyncQueueConfig struct {
	MaxAttempts int
	Clock       Clock
	Logger      *zap.Logger
}

func NewSyncQueue(store QueueStore, replayer Replayer, cfg SyncQueueConfig) *SyncQueue {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &SyncQueue{
		store:       store,
		replayer:    replayer,
		clock:       cfg.Clock,
		logger:      cfg.Logger,
		maxAttempts: cfg.MaxAttempts,
	}
}

// Enqueue appends a pending intent for customerID with the given payload.
func (q *SyncQueue) Enqueue(ctx context.Context, op OpType, customerID string, payload any) (SyncQueueItem, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return SyncQueueItem{}, fmt.Errorf("enqueue %s: marshal payload: %w", op, err)
	}

	item := SyncQueueItem{
		OpID:       uuid.Must(uuid.NewV7()).String(),
		Type:       op,
		CustomerID: customerID,
		Payload:    raw,
		Status:     QueuePending,
		CreatedAt:  q.clock.Now(),
	}

	id, err := q.store.EnqueueItem(ctx, item)
	if err != nil {
		return SyncQueueItem{}, fmt.Errorf("enqueue %s: %w", op, err)
	}
	item.ID = id
	return item, nil
}

// Items lists queue items with the given status; empty status lists all.
func (q *SyncQueue) Items(ctx context.Context, status QueueStatus) ([]SyncQueueItem, error) {
	return q.store.QueueItems(ctx, status)
}

// Cancel marks the pending items of the given customers cancelled so they are
// never replayed. With no ids every pending item is cancelled. Returns how
// many items were cancelled.
func (q *SyncQueue) Cancel(ctx context.Context, customerIDs ...string) (int, error) {
	pending, err := q.store.QueueItems(ctx, QueuePending)
	if err != nil {
		return 0, fmt.Errorf("cancel: load pending: %w", err)
	}

	match := make(map[string]bool, len(customerIDs))
	for _, id := range customerIDs {
		match[id] = true
	}

	now := q.clock.Now()
	cancelled := 0
	for _, item := range pending {
		if len(match) > 0 && !match[item.CustomerID] {
			continue
		}
		item.Status = QueueCancelled
		item.ProcessedAt = &now
		if err := q.store.UpdateQueueItem(ctx, item); err != nil {
			return cancelled, fmt.Errorf("cancel item %d: %w", item.ID, err)
		}
		cancelled++
	}

	if cancelled > 0 {
		q.logger.Info("cancelled pending sync items", zap.Int("cancelled", cancelled), zap.Strings("customer_ids", customerIDs))
	}
	return cancelled, nil
}

// Drain replays every pending item in FIFO order. Replay failures are
// recorded on the item, never returned; the error result covers storage
// failures only.
func (q *SyncQueue) Drain(ctx context.Context) (DrainResult, error) {
	if !q.draining.CompareAndSwap(false, true) {
		q.logger.Debug("drain already in flight")
		return DrainResult{Skipped: true}, nil
	}
	defer q.draining.Store(false)

	pending, err := q.store.QueueItems(ctx, QueuePending)
	if err != nil {
		return DrainResult{}, fmt.Errorf("drain: load pending: %w", err)
	}

	var res DrainResult
	blocked := make(map[string]bool)

	for _, item := range pending {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if blocked[item.CustomerID] {
			res.Deferred++
			continue
		}

		res.Processed++
		replayErr := q.replayer.Replay(ctx, item)
		now := q.clock.Now()

		switch {
		case replayErr == nil:
			item.Status = QueueCompleted
			item.ProcessedAt = &now
			item.LastError = ""
			res.Completed++

		default:
			item.Attempts++
			item.LastError = replayErr.Error()
			blocked[item.CustomerID] = true

			if item.Attempts >= q.maxAttempts {
				item.Status = QueueFailed
				item.ProcessedAt = &now
				res.Failed++
				q.logger.Error("sync item failed permanently",
					zap.Int64("item_id", item.ID),
					zap.String("op_id", item.OpID),
					zap.String("type", string(item.Type)),
					zap.String("customer_id", item.CustomerID),
					zap.Int("attempts", item.Attempts),
					zap.Error(replayErr),
				)
			} else {
				res.Retrying++
				q.logger.Warn("sync item replay failed",
					zap.Int64("item_id", item.ID),
					zap.String("type", string(item.Type)),
					zap.Int("attempts", item.Attempts),
					zap.Error(replayErr),
				)
			}
		}

		if err := q.store.UpdateQueueItem(ctx, item); err != nil {
			return res, fmt.Errorf("drain: update item %d: %w", item.ID, err)
		}
	}

	if res.Processed > 0 {
		q.logger.Info("sync queue drained",
			zap.Int("completed", res.Completed),
			zap.Int("retrying", res.Retrying),
			zap.Int("failed", res.Failed),
			zap.Int("deferred", res.Deferred),
		)
	}
	return res, nil
}

// =============================================================================
// STORE REPLAYER
// =============================================================================

// StoreReplayer re-applies intents to the local customer store. Replays are
// idempotent: a save whose record is already at or past the queued version,
// or a delete of an already deleted record, is a no-op. A save whose record
// no longer exists is also a no-op: the record was purged or cleared after
// the intent was queued, and only the Book may create records.
type StoreReplayer struct {
	Store CustomerStore
}

func (r StoreReplayer) Replay(ctx context.Context, item SyncQueueItem) error {
	switch item.Type {
	case OpSaveCustomer:
		var c Customer
		if err := json.Unmarshal(item.Payload, &c); err != nil {
			return fmt.Errorf("decode payload: %w", err)
		}
		current, err := r.Store.GetCustomer(ctx, c.ID)
		if err != nil {
			return err
		}
		if current == nil || current.Version >= c.Version {
			return nil
		}
		return r.Store.UpdateCustomer(ctx, c, current.Version)

	case OpDeleteCustomer:
		current, err := r.Store.GetCustomer(ctx, item.CustomerID)
		if err != nil {
			return err
		}
		if current == nil {
			return &NotFoundError{ID: item.CustomerID}
		}
		if current.Deleted {
			return nil
		}
		_, err = r.Store.SoftDeleteCustomer(ctx, item.CustomerID, item.CreatedAt)
		return err

	default:
		return errors.New("unknown operation type " + string(item.Type))
	}
}
