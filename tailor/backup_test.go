package tailor_test

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alfajr/tailorbook/tailor"
)

// =============================================================================
// BACKUPS
// =============================================================================

func TestBook_CreateBackup_IncludesDeletedAndRecordsTime(t *testing.T) {
	book, _, clock := newTestBook(t, tailor.BookConfig{})
	ctx := context.Background()

	a, err := book.Save(ctx, karim())
	require.NoError(t, err)
	_, err = book.Save(ctx, customer("Bahar", "0700000002"))
	require.NoError(t, err)
	require.NoError(t, book.Delete(ctx, a.ID))

	backup, err := book.CreateBackup(ctx)
	require.NoError(t, err)
	assert.NotZero(t, backup.ID)
	assert.Equal(t, 2, backup.Data.TotalCustomers)
	assert.Len(t, backup.Data.Customers, 2)
	assert.Equal(t, tailor.SchemaVersion, backup.Data.Version)

	last, ok, err := book.LastBackup(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, last.Equal(clock.Now()))
}

func TestBook_CreateBackup_Retention(t *testing.T) {
	// GIVEN: A retention cap of 2
	// WHEN: Three backups are taken
	// THEN: Only the two newest remain, newest first

	book, _, clock := newTestBook(t, tailor.BookConfig{BackupRetention: 2})
	ctx := context.Background()

	var ids []int64
	for range 3 {
		b, err := book.CreateBackup(ctx)
		require.NoError(t, err)
		ids = append(ids, b.ID)
		clock.Advance(time.Hour)
	}

	backups, err := book.ListBackups(ctx)
	require.NoError(t, err)
	require.Len(t, backups, 2)
	assert.Equal(t, ids[2], backups[0].ID)
	assert.Equal(t, ids[1], backups[1].ID)
}

func TestBook_BackupDue(t *testing.T) {
	book, _, clock := newTestBook(t, tailor.BookConfig{})
	ctx := context.Background()

	due, err := book.BackupDue(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.True(t, due, "never backed up")

	_, err = book.CreateBackup(ctx)
	require.NoError(t, err)

	due, err = book.BackupDue(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.False(t, due)

	clock.Advance(25 * time.Hour)
	due, err = book.BackupDue(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.True(t, due)
}

func TestBook_RestoreBackup(t *testing.T) {
	// GIVEN: A backup of Karim and Bahar, then a reset and a new customer
	// WHEN: Restoring the backup
	// THEN: The customer partition equals the snapshot again

	book, _, _ := newTestBook(t, tailor.BookConfig{})
	ctx := context.Background()

	k, err := book.Save(ctx, karim())
	require.NoError(t, err)
	b, err := book.Save(ctx, customer("Bahar", "0700000002"))
	require.NoError(t, err)

	backup, err := book.CreateBackup(ctx)
	require.NoError(t, err)

	require.NoError(t, book.ClearAll(ctx))
	c, err := book.Save(ctx, customer("Cyrus", "0700000003"))
	require.NoError(t, err)

	result, err := book.RestoreBackup(ctx, backup.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Imported)
	assert.Equal(t, 2, result.Submitted)
	assert.Empty(t, result.Failures)

	all, err := book.GetAll(ctx, true)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{k.ID, b.ID}, ids(all))

	if c.ID != k.ID && c.ID != b.ID {
		assert.False(t, book.IDs().IsUsed(c.ID))
	}
	assert.True(t, book.IDs().IsUsed(k.ID))
}

func TestBook_RestoreBackup_Missing(t *testing.T) {
	book, _, _ := newTestBook(t, tailor.BookConfig{})

	_, err := book.RestoreBackup(context.Background(), 99)
	assert.ErrorIs(t, err, tailor.ErrBackupNotFound)
	assert.True(t, tailor.IsNotFound(err))
}

// =============================================================================
// EXPORT / IMPORT
// =============================================================================

func ids(cs []tailor.Customer) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.ID
	}
	return out
}

func TestBook_ExportImport_RoundTrip(t *testing.T) {
	// GIVEN: A book with an active and a deleted customer and a changed setting
	// WHEN: Exporting and importing into a fresh book
	// THEN: Records, deleted flags, measurements, prices and settings survive

	src, _, _ := newTestBook(t, tailor.BookConfig{})
	ctx := context.Background()

	k := karim()
	require.NoError(t, k.SetPrice("1500.50"))
	k.AddOrder("Two shirts", time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
	k, err := src.Save(ctx, k)
	require.NoError(t, err)
	b, err := src.Save(ctx, customer("Bahar", "0700000002"))
	require.NoError(t, err)
	require.NoError(t, src.Delete(ctx, b.ID))
	_, err = src.SetSetting(ctx, "theme", "light")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, src.ExportToFile(ctx, &buf))

	dst, _, _ := newTestBook(t, tailor.BookConfig{})
	rec := &recorder{}
	dst.OnUpdate(rec.listen)

	result, err := dst.ImportFromFile(ctx, &buf)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Imported)
	assert.Empty(t, result.Failures)

	got, err := dst.GetByID(ctx, k.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Price.Valid)
	assert.True(t, got.Price.Decimal.Equal(k.Price.Decimal))
	assert.Equal(t, tailor.Measurement("170"), got.Measurements["قد"])
	require.Len(t, got.Orders, 1)
	assert.Equal(t, "Two shirts", got.Orders[0].Description)
	assert.Equal(t, k.Version, got.Version)

	deleted, err := dst.GetByID(ctx, b.ID)
	require.NoError(t, err)
	require.NotNil(t, deleted)
	assert.True(t, deleted.Deleted)

	theme, err := dst.GetSetting(ctx, "theme")
	require.NoError(t, err)
	require.NotNil(t, theme)
	assert.Equal(t, "light", theme.Value)

	assert.True(t, dst.IDs().IsUsed(k.ID))
	assert.True(t, dst.IDs().IsUsed(b.ID))

	assert.Equal(t, 1, rec.count(tailor.EventDataCleared))
	assert.Equal(t, 2, rec.count(tailor.EventCustomerSaved))

	items, err := dst.QueueItems(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestBook_Export_Document(t *testing.T) {
	book, _, clock := newTestBook(t, tailor.BookConfig{})
	ctx := context.Background()

	_, err := book.Save(ctx, karim())
	require.NoError(t, err)

	doc, err := book.Export(ctx)
	require.NoError(t, err)
	assert.Equal(t, tailor.SchemaVersion, doc.Version)
	assert.Equal(t, 1, doc.TotalCustomers)
	assert.Equal(t, clock.Now(), doc.Timestamp)

	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"sewingPriceAfghani":null`)
	assert.Contains(t, string(raw), `"قد":170`)
}

func TestBook_Import_LegacyDocument(t *testing.T) {
	// GIVEN: A legacy export with partial measurements, a missing id,
	//        numeric measurement values and one invalid record
	// WHEN: Importing
	// THEN: Valid records are completed and kept, the invalid one is reported

	book, _, _ := newTestBook(t, tailor.BookConfig{})
	ctx := context.Background()

	legacy := `{
	  "exportedAt": "2024-11-02T10:00:00.000Z",
	  "version": "1.0.0",
	  "count": 3,
	  "customers": [
	    {"id": "1001", "name": "Old Customer", "phone": "0700000000",
	     "measurements": {"قد": 172.5, "گردن": "40"},
	     "createdAt": "2024-10-01T08:00:00.000Z"},
	    {"name": "No Id", "phone": "0700000009"},
	    {"id": "1003", "name": "Short Phone", "phone": "0700"}
	  ]
	}`

	result, err := book.ImportFromFile(ctx, strings.NewReader(legacy))
	require.NoError(t, err)
	assert.Equal(t, 3, result.Submitted)
	assert.Equal(t, 2, result.Imported)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, 2, result.Failures[0].Index)
	assert.Equal(t, "1003", result.Failures[0].ID)

	old, err := book.GetByID(ctx, "1001")
	require.NoError(t, err)
	require.NotNil(t, old)
	assert.Len(t, old.Measurements, len(tailor.MeasurementFields))
	assert.Equal(t, tailor.Measurement("172.5"), old.Measurements["قد"])
	assert.Equal(t, tailor.Measurement("40"), old.Measurements["گردن"])
	assert.Equal(t, 1, old.Version)
	assert.Equal(t, time.Date(2024, 10, 1, 8, 0, 0, 0, time.UTC), old.CreatedAt.UTC())

	all, err := book.GetAll(ctx, false)
	require.NoError(t, err)
	require.Len(t, all, 2)
	for _, c := range all {
		assert.True(t, tailor.ValidID(c.ID))
		assert.True(t, book.IDs().IsUsed(c.ID))
	}
	assert.NotContains(t, names(all), "Short Phone")
}

func TestBook_Import_InvalidDocumentTouchesNothing(t *testing.T) {
	book, _, _ := newTestBook(t, tailor.BookConfig{})
	ctx := context.Background()

	saved, err := book.Save(ctx, karim())
	require.NoError(t, err)

	for _, doc := range []string{
		`not json`,
		`{"customers": {"id": "1001"}}`,
		`{"settings": {}}`,
		`{"customers": [], "settings": [1, 2]}`,
	} {
		_, err := book.ImportFromFile(ctx, strings.NewReader(doc))
		assert.ErrorIs(t, err, tailor.ErrInvalidDocument, doc)
	}

	got, err := book.GetByID(ctx, saved.ID)
	require.NoError(t, err)
	assert.NotNil(t, got)
}
