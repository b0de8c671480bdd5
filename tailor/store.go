/*
store.go - Persistence interfaces for the customer book

PURPOSE:
  Defines the interface between the Book and the storage engine.
  Implementations are the SQLite store (store/sqlite) and the in-memory
  store (tailor/store) used by tests.

PARTITIONS:
  customers:  keyed by id, soft-deleted records kept
  settings:   keyed by key
  backups:    autoincrement, one full snapshot per row
  sync_queue: autoincrement, mutation intents recorded while offline
  used_ids:   the id generator's durable used-id set

ATOMICITY:
  Every method is atomic for the single record it touches. There are no
  multi-record transactions: ClearCustomers is the only bulk write and it is
  a single statement.

READ SEMANTICS:
  Getters return (nil, nil) when the record is absent. Only writes that
  require an existing record return ErrNotFound.

SEE ALSO:
  - book.go: Uses these interfaces
  - store/sqlite/sqlite.go: Production implementation
  - store/memory.go: In-memory implementation
*/
package tailor

import (
	"context"
	"time"
)

// =============================================================================
// CUSTOMER STORE
// =============================================================================

type CustomerStore interface {
	// InsertCustomer creates a record. Returns *DuplicateIDError if an active
	// record holds the id. A soft-deleted record with the same id is replaced.
	InsertCustomer(ctx context.Context, c Customer) error

	// UpdateCustomer replaces a record if its stored version equals expectedVersion.
	// Returns *NotFoundError or *ConflictError.
	UpdateCustomer(ctx context.Context, c Customer, expectedVersion int) error

	// SoftDeleteCustomer marks the record deleted and bumps its version.
	// Returns the updated record or *NotFoundError. An already deleted record
	// is returned unchanged.
	SoftDeleteCustomer(ctx context.Context, id string, at time.Time) (*Customer, error)

	// PurgeCustomer physically removes a record. Returns *NotFoundError.
	PurgeCustomer(ctx context.Context, id string) error

	GetCustomer(ctx context.Context, id string) (*Customer, error)

	// ListCustomers returns records ordered by CreatedAt descending, then id descending.
	ListCustomers(ctx context.Context, includeDeleted bool) ([]Customer, error)

	// ClearCustomers removes every customer record.
	ClearCustomers(ctx context.Context) error
}

// =============================================================================
// SETTINGS STORE
// =============================================================================

type SettingsStore interface {
	GetSetting(ctx context.Context, key string) (*Setting, error)
	PutSetting(ctx context.Context, s Setting) error

	// PutSettingIfAbsent writes s only when the key is missing and reports
	// whether it was written.
	PutSettingIfAbsent(ctx context.Context, s Setting) (bool, error)

	ListSettings(ctx context.Context) ([]Setting, error)
}

// =============================================================================
// BACKUP STORE
// =============================================================================

type BackupStore interface {
	// AppendBackup stores b and returns the assigned id.
	AppendBackup(ctx context.Context, b Backup) (int64, error)
	GetBackup(ctx context.Context, id int64) (*Backup, error)

	// ListBackups returns backups newest first.
	ListBackups(ctx context.Context) ([]Backup, error)

	// PruneBackups keeps the newest keep backups and returns how many were removed.
	PruneBackups(ctx context.Context, keep int) (int, error)
}

// =============================================================================
// SYNC QUEUE STORE
// =============================================================================

type QueueStore interface {
	// EnqueueItem stores item and returns the assigned id.
	EnqueueItem(ctx context.Context, item SyncQueueItem) (int64, error)

	// QueueItems returns items with the given status in FIFO order.
	// An empty status returns every item.
	QueueItems(ctx context.Context, status QueueStatus) ([]SyncQueueItem, error)

	UpdateQueueItem(ctx context.Context, item SyncQueueItem) error
}

// =============================================================================
// USED-ID STORE
// =============================================================================

// UsedIDStore persists the id generator's used set so it survives restarts.
type UsedIDStore interface {
	LoadUsedIDs(ctx context.Context) ([]string, error)
	AddUsedID(ctx context.Context, id string) error
	RemoveUsedID(ctx context.Context, id string) error

	// ReplaceUsedIDs atomically swaps the whole set.
	ReplaceUsedIDs(ctx context.Context, ids []string) error
}

// Store is the full storage surface required by a Book.
type Store interface {
	CustomerStore
	SettingsStore
	BackupStore
	QueueStore
	UsedIDStore
}
