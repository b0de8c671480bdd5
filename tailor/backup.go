/*
backup.go - Backups, export and import

PURPOSE:
  Point-in-time copies of the customer partition, and the portable export
  document used to move a book between devices.

IMPORT SEMANTICS:
  1. The document is checked first: it must be JSON with a "customers" array.
     A bad document returns ErrInvalidDocument and touches nothing.
  2. Every customer record is removed and the id set is reset.
  3. Each record is decoded, validated and inserted on its own. Failures are
     counted and skipped, the rest are kept.
  4. The document's settings overwrite the stored ones.
  5. The id generator is rebuilt from the stored records.

  Import is a bulk restore, not a user edit: nothing is added to the sync queue.

SEE ALSO:
  - api/scheduler.go: Interval backups
*/
package tailor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
)

// ImportResult summarizes an import or restore.
type ImportResult struct {
	Imported  int             `json:"imported"`
	Submitted int             `json:"submitted"`
	Failures  []ImportFailure `json:"failures"`
}

// ImportFailure is a record that could not be imported.
type ImportFailure struct {
	Index int    `json:"index"`
	ID    string `json:"id,omitempty"`
	Error string `json:"error"`
}

// =============================================================================
// BACKUPS
// =============================================================================

// CreateBackup snapshots every customer, soft-deleted ones included, records
// the time in the lastBackup setting and prunes the log to the retention cap.
func (b *Book) CreateBackup(ctx context.Context) (Backup, error) {
	customers, err := b.store.ListCustomers(ctx, true)
	if err != nil {
		return Backup{}, fmt.Errorf("create backup: %w", err)
	}

	now := b.clock.Now()
	backup := Backup{
		CreatedAt: now,
		Data: Snapshot{
			Version:        SchemaVersion,
			Timestamp:      now,
			TotalCustomers: len(customers),
			Customers:      customers,
		},
	}

	id, err := b.store.AppendBackup(ctx, backup)
	if err != nil {
		return Backup{}, fmt.Errorf("create backup: %w", err)
	}
	backup.ID = id

	if _, err := b.SetSetting(ctx, SettingLastBackup, now.Format(time.RFC3339Nano)); err != nil {
		b.logger.Warn("record last backup time", zap.Error(err))
	}

	if b.retention > 0 {
		removed, err := b.store.PruneBackups(ctx, b.retention)
		if err != nil {
			b.logger.Warn("prune backups", zap.Error(err))
		} else if removed > 0 {
			b.logger.Info("pruned old backups", zap.Int("removed", removed), zap.Int("kept", b.retention))
		}
	}

	b.logger.Info("backup created", zap.Int64("backup_id", id), zap.Int("customers", len(customers)))
	return backup, nil
}

// ListBackups returns the backup log, newest first.
func (b *Book) ListBackups(ctx context.Context) ([]Backup, error) {
	return b.store.ListBackups(ctx)
}

// LastBackup returns the time recorded by the latest CreateBackup, if any.
func (b *Book) LastBackup(ctx context.Context) (time.Time, bool, error) {
	s, err := b.store.GetSetting(ctx, SettingLastBackup)
	if err != nil || s == nil {
		return time.Time{}, false, err
	}
	raw, ok := s.Value.(string)
	if !ok {
		return time.Time{}, false, nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false, nil
	}
	return t, true, nil
}

// BackupDue reports whether at least interval has passed since the last backup.
func (b *Book) BackupDue(ctx context.Context, interval time.Duration) (bool, error) {
	last, ok, err := b.LastBackup(ctx)
	if err != nil {
		return false, err
	}
	if !ok {
		return true, nil
	}
	return b.clock.Now().Sub(last) >= interval, nil
}

// RestoreBackup replaces the customer partition with the snapshot of backup id.
// Settings are left untouched.
func (b *Book) RestoreBackup(ctx context.Context, id int64) (ImportResult, error) {
	backup, err := b.store.GetBackup(ctx, id)
	if err != nil {
		return ImportResult{}, err
	}
	if backup == nil {
		return ImportResult{}, fmt.Errorf("backup %d: %w", id, ErrBackupNotFound)
	}

	records := backup.Data.Customers
	return b.replaceCustomers(ctx, len(records), func(i int) (Customer, error) {
		return records[i].Clone(), nil
	})
}

// =============================================================================
// EXPORT / IMPORT
// =============================================================================

// Export builds the portable document: every customer (soft-deleted
// included) and every setting.
func (b *Book) Export(ctx context.Context) (*ExportDocument, error) {
	customers, err := b.store.ListCustomers(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	settings, err := b.Settings(ctx)
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}

	return &ExportDocument{
		Version:        SchemaVersion,
		Timestamp:      b.clock.Now(),
		TotalCustomers: len(customers),
		Customers:      customers,
		Settings:       settings,
	}, nil
}

// ExportToFile writes the export document to w as indented JSON.
func (b *Book) ExportToFile(ctx context.Context, w io.Writer) error {
	doc, err := b.Export(ctx)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	return nil
}

// importDocument accepts both the current export shape and the legacy one
// ({customers, exportedAt, version: "1.0.0", count}); only customers and
// settings are read.
type importDocument struct {
	Customers json.RawMessage `json:"customers"`
	Settings  json.RawMessage `json:"settings"`
}

// ImportFromFile replaces the book's contents with the document read from r.
func (b *Book) ImportFromFile(ctx context.Context, r io.Reader) (ImportResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return ImportResult{}, fmt.Errorf("read import: %w", err)
	}

	var doc importDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return ImportResult{}, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	raw := bytes.TrimSpace(doc.Customers)
	if len(raw) == 0 || raw[0] != '[' {
		return ImportResult{}, fmt.Errorf("%w: customers must be an array", ErrInvalidDocument)
	}
	var records []json.RawMessage
	if err := json.Unmarshal(raw, &records); err != nil {
		return ImportResult{}, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	var settings map[string]any
	if s := bytes.TrimSpace(doc.Settings); len(s) > 0 && !bytes.Equal(s, []byte("null")) {
		if err := json.Unmarshal(s, &settings); err != nil {
			return ImportResult{}, fmt.Errorf("%w: settings must be an object", ErrInvalidDocument)
		}
	}

	result, err := b.replaceCustomers(ctx, len(records), func(i int) (Customer, error) {
		var c Customer
		if err := json.Unmarshal(records[i], &c); err != nil {
			return Customer{}, fmt.Errorf("decode record: %w", err)
		}
		return c, nil
	})
	if err != nil {
		return result, err
	}

	now := b.clock.Now()
	for key, value := range settings {
		if err := b.store.PutSetting(ctx, Setting{Key: key, Value: value, UpdatedAt: now}); err != nil {
			return result, fmt.Errorf("import setting %s: %w", key, err)
		}
	}

	b.logger.Info("import finished",
		zap.Int("submitted", result.Submitted),
		zap.Int("imported", result.Imported),
		zap.Int("failed", len(result.Failures)),
	)
	return result, nil
}

// replaceCustomers clears the customer partition and inserts n records
// produced by next. Record-level failures are collected; storage failures abort.
func (b *Book) replaceCustomers(ctx context.Context, n int, next func(i int) (Customer, error)) (ImportResult, error) {
	result := ImportResult{Submitted: n, Failures: []ImportFailure{}}

	if err := b.ClearAll(ctx); err != nil {
		return result, err
	}

	now := b.clock.Now()
	for i := range n {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		c, err := next(i)
		if err != nil {
			result.Failures = append(result.Failures, ImportFailure{Index: i, Error: err.Error()})
			continue
		}

		c, err = b.prepareImported(ctx, c, now)
		if err == nil {
			err = b.store.InsertCustomer(ctx, c)
		}
		if err != nil {
			if !IsClientError(err) {
				return result, fmt.Errorf("import record %d: %w", i, err)
			}
			result.Failures = append(result.Failures, ImportFailure{Index: i, ID: c.ID, Error: err.Error()})
			continue
		}

		result.Imported++
		if err := b.ids.AddUsed(ctx, c.ID); err != nil {
			return result, err
		}
		saved := c.Clone()
		b.bus.Publish(Event{Kind: EventCustomerSaved, CustomerID: c.ID, Customer: &saved, At: now})
	}

	if err := b.SyncIDsWithStore(ctx); err != nil {
		return result, err
	}
	return result, nil
}

// prepareImported fills what older documents lack and validates the record.
// The deleted flag, timestamps and version of the record are kept.
func (b *Book) prepareImported(ctx context.Context, c Customer, now time.Time) (Customer, error) {
	if c.ID == "" {
		id, err := b.ids.Generate(ctx)
		if err != nil {
			return c, err
		}
		c.ID = id
	}
	c.normalize()
	if err := b.validator.Validate(c); err != nil {
		return c, err
	}
	if c.Version <= 0 {
		c.Version = 1
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = c.CreatedAt
	}
	return c, nil
}
