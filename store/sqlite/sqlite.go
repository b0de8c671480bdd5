/*
Package sqlite provides a SQLite-backed implementation of tailor.Store.

PURPOSE:
  Durable storage for the customer book. One database file holds every
  partition; the schema is versioned with golang-migrate.

INTERFACES IMPLEMENTED:
  tailor.CustomerStore: Customer records (soft delete, compare-and-swap)
  tailor.SettingsStore: Key/value settings
  tailor.BackupStore:   Backup log
  tailor.QueueStore:    Offline sync queue
  tailor.UsedIDStore:   Id generator's used set

KEY TABLES:
  customers:  Full record as JSON in data, plus indexed columns
  settings:   JSON-encoded values
  backups:    Autoincrement, one snapshot per row
  sync_queue: Autoincrement, drained in id order
  used_ids:   One row per taken id

TIMESTAMPS:
  Stored as fixed-width UTC text (nanosecond precision) so that ORDER BY on
  the text column matches chronological order.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety and a single open connection, so every
  single-record read-modify-write is atomic.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/tailorbook.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  book, err := tailor.NewBook(ctx, store, tailor.BookConfig{})

SEE ALSO:
  - tailor/store.go: Interface definitions
  - tailor/store/memory.go: In-memory implementation for testing
  - migrations/: Versioned schema
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/alfajr/tailorbook/tailor"
	_ "github.com/mattn/go-sqlite3"
)

// timeLayout is fixed width so text ordering equals time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store implements tailor.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ tailor.Store = (*Store)(nil)

// New opens the database at dbPath migrated to SchemaVersion.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	return Open(dbPath, SchemaVersion)
}

// Open opens the database at dbPath and migrates it up to version.
// Every failure is a *tailor.InitializationError.
func Open(dbPath string, version int) (*Store, error) {
	if version < 1 || version > SchemaVersion {
		return nil, &tailor.InitializationError{Op: "open", Err: fmt.Errorf("unknown schema version %d", version)}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, &tailor.InitializationError{Op: "open", Err: err}
	}

	// One connection: SQLite has a single writer, and ":memory:" databases
	// are per connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, &tailor.InitializationError{Op: "connect", Err: err}
	}

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, &tailor.InitializationError{Op: "pragmas", Err: err}
	}

	if err := migrateTo(db, uint(version)); err != nil {
		db.Close()
		return nil, &tailor.InitializationError{Op: "migrate", Err: err}
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// SchemaVersion reports the applied migration version.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var version int
	var dirty bool
	err := s.db.QueryRowContext(ctx, "SELECT version, dirty FROM schema_migrations LIMIT 1").Scan(&version, &dirty)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	if dirty {
		return version, ErrDirtySchema
	}
	return version, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// =============================================================================
// CUSTOMER STORE (tailor.CustomerStore interface)
// =============================================================================

// InsertCustomer creates a record, replacing a soft-deleted record with the
// same id in the same statement.
func (s *Store) InsertCustomer(ctx context.Context, c tailor.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode customer: %w", err)
	}

	query := `
		INSERT INTO customers (id, name, phone, created_at, updated_at, deleted, version, data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			phone = excluded.phone,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at,
			deleted = excluded.deleted,
			version = excluded.version,
			data = excluded.data
		WHERE customers.deleted = 1
	`
	res, err := s.db.ExecContext(ctx, query,
		c.ID, c.Name, c.Phone,
		formatTime(c.CreatedAt), formatTime(c.UpdatedAt),
		c.Deleted, c.Version, string(data),
	)
	if err != nil {
		return fmt.Errorf("failed to insert customer: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to insert customer: %w", err)
	}
	if n == 0 {
		return &tailor.DuplicateIDError{ID: c.ID}
	}
	return nil
}

// UpdateCustomer replaces the record if the stored version is expectedVersion.
func (s *Store) UpdateCustomer(ctx context.Context, c tailor.Customer, expectedVersion int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateCustomer(ctx, c, expectedVersion)
}

func (s *Store) updateCustomer(ctx context.Context, c tailor.Customer, expectedVersion int) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode customer: %w", err)
	}

	query := `
		UPDATE customers
		SET name = ?, phone = ?, created_at = ?, updated_at = ?, deleted = ?, version = ?, data = ?
		WHERE id = ? AND version = ?
	`
	res, err := s.db.ExecContext(ctx, query,
		c.Name, c.Phone,
		formatTime(c.CreatedAt), formatTime(c.UpdatedAt),
		c.Deleted, c.Version, string(data),
		c.ID, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to update customer: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update customer: %w", err)
	}
	if n > 0 {
		return nil
	}

	var actual int
	err = s.db.QueryRowContext(ctx, "SELECT version FROM customers WHERE id = ?", c.ID).Scan(&actual)
	if errors.Is(err, sql.ErrNoRows) {
		return &tailor.NotFoundError{ID: c.ID}
	}
	if err != nil {
		return fmt.Errorf("failed to read customer version: %w", err)
	}
	return &tailor.ConflictError{ID: c.ID, Expected: expectedVersion, Actual: actual}
}

// SoftDeleteCustomer marks the record deleted and bumps its version.
func (s *Store) SoftDeleteCustomer(ctx context.Context, id string, at time.Time) (*tailor.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.getCustomer(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, &tailor.NotFoundError{ID: id}
	}
	if c.Deleted {
		return c, nil
	}

	expected := c.Version
	c.Deleted = true
	c.UpdatedAt = at
	c.Version++
	if err := s.updateCustomer(ctx, *c, expected); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Store) PurgeCustomer(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM customers WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to purge customer: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to purge customer: %w", err)
	}
	if n == 0 {
		return &tailor.NotFoundError{ID: id}
	}
	return nil
}

// GetCustomer returns the record or nil when absent.
func (s *Store) GetCustomer(ctx context.Context, id string) (*tailor.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getCustomer(ctx, id)
}

func (s *Store) getCustomer(ctx context.Context, id string) (*tailor.Customer, error) {
	var data string
	err := s.db.QueryRowContext(ctx, "SELECT data FROM customers WHERE id = ?", id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get customer: %w", err)
	}

	var c tailor.Customer
	if err := json.Unmarshal([]byte(data), &c); err != nil {
		return nil, fmt.Errorf("failed to decode customer %s: %w", id, err)
	}
	return &c, nil
}

// ListCustomers returns records newest first.
func (s *Store) ListCustomers(ctx context.Context, includeDeleted bool) ([]tailor.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT data FROM customers"
	if !includeDeleted {
		query += " WHERE deleted = 0"
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query customers: %w", err)
	}
	defer rows.Close()

	customers := make([]tailor.Customer, 0)
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var c tailor.Customer
		if err := json.Unmarshal([]byte(data), &c); err != nil {
			return nil, fmt.Errorf("failed to decode customer: %w", err)
		}
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

func (s *Store) ClearCustomers(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, "DELETE FROM customers"); err != nil {
		return fmt.Errorf("failed to clear customers: %w", err)
	}
	return nil
}

// =============================================================================
// SETTINGS STORE (tailor.SettingsStore interface)
// =============================================================================

func (s *Store) GetSetting(ctx context.Context, key string) (*tailor.Setting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var valueJSON, updatedAt string
	err := s.db.QueryRowContext(ctx,
		"SELECT value_json, updated_at FROM settings WHERE key = ?", key,
	).Scan(&valueJSON, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get setting: %w", err)
	}

	setting, err := decodeSetting(key, valueJSON, updatedAt)
	if err != nil {
		return nil, err
	}
	return &setting, nil
}

func (s *Store) PutSetting(ctx context.Context, setting tailor.Setting) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	value, err := json.Marshal(setting.Value)
	if err != nil {
		return fmt.Errorf("failed to encode setting %s: %w", setting.Key, err)
	}

	query := `
		INSERT INTO settings (key, value_json, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value_json = excluded.value_json, updated_at = excluded.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query, setting.Key, string(value), formatTime(setting.UpdatedAt)); err != nil {
		return fmt.Errorf("failed to save setting: %w", err)
	}
	return nil
}

func (s *Store) PutSettingIfAbsent(ctx context.Context, setting tailor.Setting) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	value, err := json.Marshal(setting.Value)
	if err != nil {
		return false, fmt.Errorf("failed to encode setting %s: %w", setting.Key, err)
	}

	res, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO settings (key, value_json, updated_at) VALUES (?, ?, ?)",
		setting.Key, string(value), formatTime(setting.UpdatedAt),
	)
	if err != nil {
		return false, fmt.Errorf("failed to save setting: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) ListSettings(ctx context.Context) ([]tailor.Setting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT key, value_json, updated_at FROM settings ORDER BY key")
	if err != nil {
		return nil, fmt.Errorf("failed to query settings: %w", err)
	}
	defer rows.Close()

	settings := make([]tailor.Setting, 0)
	for rows.Next() {
		var key, valueJSON, updatedAt string
		if err := rows.Scan(&key, &valueJSON, &updatedAt); err != nil {
			return nil, err
		}
		setting, err := decodeSetting(key, valueJSON, updatedAt)
		if err != nil {
			return nil, err
		}
		settings = append(settings, setting)
	}
	return settings, rows.Err()
}

func decodeSetting(key, valueJSON, updatedAt string) (tailor.Setting, error) {
	var value any
	if err := json.Unmarshal([]byte(valueJSON), &value); err != nil {
		return tailor.Setting{}, fmt.Errorf("failed to decode setting %s: %w", key, err)
	}
	return tailor.Setting{Key: key, Value: value, UpdatedAt: parseTime(updatedAt)}, nil
}

// =============================================================================
// BACKUP STORE (tailor.BackupStore interface)
// =============================================================================

func (s *Store) AppendBackup(ctx context.Context, b tailor.Backup) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(b.Data)
	if err != nil {
		return 0, fmt.Errorf("failed to encode backup: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		"INSERT INTO backups (created_at, data_json) VALUES (?, ?)",
		formatTime(b.CreatedAt), string(data),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save backup: %w", err)
	}
	return res.LastInsertId()
}

func (s *Store) GetBackup(ctx context.Context, id int64) (*tailor.Backup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	backups, err := s.queryBackups(ctx, "SELECT id, created_at, data_json FROM backups WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(backups) == 0 {
		return nil, nil
	}
	return &backups[0], nil
}

func (s *Store) ListBackups(ctx context.Context) ([]tailor.Backup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryBackups(ctx, "SELECT id, created_at, data_json FROM backups ORDER BY id DESC")
}

// PruneBackups keeps the newest keep backups.
func (s *Store) PruneBackups(ctx context.Context, keep int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if keep < 0 {
		return 0, nil
	}
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM backups
		WHERE id NOT IN (SELECT id FROM backups ORDER BY id DESC LIMIT ?)
	`, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune backups: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *Store) queryBackups(ctx context.Context, query string, args ...any) ([]tailor.Backup, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query backups: %w", err)
	}
	defer rows.Close()

	backups := make([]tailor.Backup, 0)
	for rows.Next() {
		var b tailor.Backup
		var createdAt, data string
		if err := rows.Scan(&b.ID, &createdAt, &data); err != nil {
			return nil, err
		}
		b.CreatedAt = parseTime(createdAt)
		if err := json.Unmarshal([]byte(data), &b.Data); err != nil {
			return nil, fmt.Errorf("failed to decode backup %d: %w", b.ID, err)
		}
		backups = append(backups, b)
	}
	return backups, rows.Err()
}

// =============================================================================
// SYNC QUEUE STORE (tailor.QueueStore interface)
// =============================================================================

func (s *Store) EnqueueItem(ctx context.Context, item tailor.SyncQueueItem) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO sync_queue
		(op_id, type, customer_id, payload_json, status, attempts, last_error, created_at, processed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	res, err := s.db.ExecContext(ctx, query,
		item.OpID, string(item.Type), item.CustomerID, string(item.Payload),
		string(item.Status), item.Attempts, nullString(item.LastError),
		formatTime(item.CreatedAt), nullTime(item.ProcessedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return 0, fmt.Errorf("sync item %s already queued: %w", item.OpID, err)
		}
		return 0, fmt.Errorf("failed to enqueue sync item: %w", err)
	}
	return res.LastInsertId()
}

// QueueItems returns items in id order, filtered by status unless status is empty.
func (s *Store) QueueItems(ctx context.Context, status tailor.QueueStatus) ([]tailor.SyncQueueItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, op_id, type, customer_id, payload_json, status, attempts, last_error, created_at, processed_at
		FROM sync_queue
	`
	var args []any
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, string(status))
	}
	query += " ORDER BY id ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync queue: %w", err)
	}
	defer rows.Close()

	items := make([]tailor.SyncQueueItem, 0)
	for rows.Next() {
		var item tailor.SyncQueueItem
		var itemType, payload, itemStatus, createdAt string
		var lastError, processedAt sql.NullString
		if err := rows.Scan(&item.ID, &item.OpID, &itemType, &item.CustomerID, &payload,
			&itemStatus, &item.Attempts, &lastError, &createdAt, &processedAt); err != nil {
			return nil, err
		}
		item.Type = tailor.OpType(itemType)
		item.Payload = json.RawMessage(payload)
		item.Status = tailor.QueueStatus(itemStatus)
		item.LastError = lastError.String
		item.CreatedAt = parseTime(createdAt)
		if processedAt.Valid {
			t := parseTime(processedAt.String)
			item.ProcessedAt = &t
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *Store) UpdateQueueItem(ctx context.Context, item tailor.SyncQueueItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE sync_queue SET status = ?, attempts = ?, last_error = ?, processed_at = ?
		WHERE id = ?
	`, string(item.Status), item.Attempts, nullString(item.LastError), nullTime(item.ProcessedAt), item.ID)
	if err != nil {
		return fmt.Errorf("failed to update sync item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("sync item %d: %w", item.ID, tailor.ErrNotFound)
	}
	return nil
}

// =============================================================================
// USED-ID STORE (tailor.UsedIDStore interface)
// =============================================================================

func (s *Store) LoadUsedIDs(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT id FROM used_ids ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query used ids: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) AddUsedID(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, "INSERT OR IGNORE INTO used_ids (id) VALUES (?)", id); err != nil {
		return fmt.Errorf("failed to add used id: %w", err)
	}
	return nil
}

func (s *Store) RemoveUsedID(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, "DELETE FROM used_ids WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to remove used id: %w", err)
	}
	return nil
}

// ReplaceUsedIDs swaps the whole set in one transaction.
func (s *Store) ReplaceUsedIDs(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM used_ids"); err != nil {
		return fmt.Errorf("failed to clear used ids: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, "INSERT OR IGNORE INTO used_ids (id) VALUES (?)")
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, id); err != nil {
			return fmt.Errorf("failed to add used id: %w", err)
		}
	}
	return tx.Commit()
}

// Helper functions

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
