package sqlite_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alfajr/tailorbook/store/sqlite"
	"github.com/alfajr/tailorbook/tailor"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

var base = time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC)

func testCustomer(id string, created time.Time) tailor.Customer {
	c := tailor.NewCustomer("Karim", "0799123456")
	c.ID = id
	c.Version = 1
	c.CreatedAt = created
	c.UpdatedAt = created
	c.Measurements["قد"] = "170"
	return c
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func TestOpen_MigratesToLatest(t *testing.T) {
	store := newTestStore(t)

	version, err := store.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, sqlite.SchemaVersion, version)
}

func TestOpen_ReopenIsIdempotent(t *testing.T) {
	// GIVEN: A file database with a customer
	// WHEN: It is closed and reopened
	// THEN: Migrations are not re-applied and the data is intact

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "book.db")

	store, err := sqlite.New(path)
	require.NoError(t, err)
	require.NoError(t, store.InsertCustomer(ctx, testCustomer("1001", base)))
	require.NoError(t, store.Close())

	store, err = sqlite.New(path)
	require.NoError(t, err)
	defer store.Close()

	got, err := store.GetCustomer(ctx, "1001")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Karim", got.Name)
}

func TestOpen_UpgradesOlderSchema(t *testing.T) {
	// GIVEN: A database at schema version 1 holding a customer
	// WHEN: It is opened by the current build
	// THEN: The schema is upgraded and the used-id table is backfilled

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "book.db")

	old, err := sqlite.Open(path, 1)
	require.NoError(t, err)
	version, err := old.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, version)
	require.NoError(t, old.InsertCustomer(ctx, testCustomer("1001", base)))
	require.NoError(t, old.Close())

	store, err := sqlite.New(path)
	require.NoError(t, err)
	defer store.Close()

	version, err = store.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, sqlite.SchemaVersion, version)

	ids, err := store.LoadUsedIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"1001"}, ids)
}

func TestOpen_RefusesNewerSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book.db")

	store, err := sqlite.New(path)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	_, err = sqlite.Open(path, 2)
	require.Error(t, err)

	var initErr *tailor.InitializationError
	require.ErrorAs(t, err, &initErr)
	assert.Equal(t, "migrate", initErr.Op)
	assert.ErrorIs(t, err, sqlite.ErrSchemaTooNew)
	assert.ErrorIs(t, err, tailor.ErrInitialization)
	assert.True(t, tailor.IsFatal(err))
}

func TestOpen_RefusesDirtySchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book.db")

	store, err := sqlite.New(path)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = db.Exec("UPDATE schema_migrations SET dirty = 1")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = sqlite.New(path)
	assert.ErrorIs(t, err, sqlite.ErrDirtySchema)
}

func TestOpen_UnusablePath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "dir", "book.db")

	_, err := sqlite.New(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, tailor.ErrInitialization)

	_, err = sqlite.Open(":memory:", sqlite.SchemaVersion+1)
	assert.ErrorIs(t, err, tailor.ErrInitialization)
}

// =============================================================================
// CUSTOMERS
// =============================================================================

func TestStore_CustomerRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	c := testCustomer("1001", base)
	require.NoError(t, c.SetPrice("1250.75"))
	c.Models.Skirt = []string{"دامن گاوی"}
	c.AddOrder("Two shirts", base)
	require.NoError(t, store.InsertCustomer(ctx, c))

	got, err := store.GetCustomer(ctx, "1001")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Price.Valid)
	assert.True(t, got.Price.Decimal.Equal(decimal.RequireFromString("1250.75")))
	assert.Equal(t, tailor.Measurement("170"), got.Measurements["قد"])
	assert.Equal(t, []string{"دامن گاوی"}, got.Models.Skirt)
	require.Len(t, got.Orders, 1)
	assert.True(t, got.CreatedAt.Equal(base))

	missing, err := store.GetCustomer(ctx, "9999")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestStore_InsertCustomer_Duplicate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.InsertCustomer(ctx, testCustomer("1001", base)))

	err := store.InsertCustomer(ctx, testCustomer("1001", base))
	var dupErr *tailor.DuplicateIDError
	require.ErrorAs(t, err, &dupErr)

	// A soft-deleted record may be replaced
	_, err = store.SoftDeleteCustomer(ctx, "1001", base.Add(time.Hour))
	require.NoError(t, err)

	replacement := testCustomer("1001", base.Add(2*time.Hour))
	replacement.Name = "Bahar"
	require.NoError(t, store.InsertCustomer(ctx, replacement))

	got, err := store.GetCustomer(ctx, "1001")
	require.NoError(t, err)
	assert.Equal(t, "Bahar", got.Name)
	assert.False(t, got.Deleted)
	assert.Equal(t, 1, got.Version)
}

func TestStore_UpdateCustomer_CompareAndSwap(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.InsertCustomer(ctx, testCustomer("1001", base)))

	next := testCustomer("1001", base)
	next.Notes = "updated"
	next.Version = 2
	require.NoError(t, store.UpdateCustomer(ctx, next, 1))

	stale := testCustomer("1001", base)
	stale.Version = 2
	err := store.UpdateCustomer(ctx, stale, 1)
	var conflict *tailor.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, 1, conflict.Expected)
	assert.Equal(t, 2, conflict.Actual)

	err = store.UpdateCustomer(ctx, testCustomer("4242", base), 1)
	assert.ErrorIs(t, err, tailor.ErrNotFound)

	got, err := store.GetCustomer(ctx, "1001")
	require.NoError(t, err)
	assert.Equal(t, "updated", got.Notes)
}

func TestStore_SoftDeleteListAndPurge(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.InsertCustomer(ctx, testCustomer("1001", base)))
	require.NoError(t, store.InsertCustomer(ctx, testCustomer("1003", base.Add(time.Minute))))
	require.NoError(t, store.InsertCustomer(ctx, testCustomer("1002", base.Add(time.Minute))))
	require.NoError(t, store.InsertCustomer(ctx, testCustomer("1004", base.Add(-time.Minute))))

	deleted, err := store.SoftDeleteCustomer(ctx, "1002", base.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, deleted.Deleted)
	assert.Equal(t, 2, deleted.Version)

	again, err := store.SoftDeleteCustomer(ctx, "1002", base.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, again.Version)

	active, err := store.ListCustomers(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"1003", "1001", "1004"}, customerIDs(active))

	all, err := store.ListCustomers(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"1003", "1002", "1001", "1004"}, customerIDs(all))

	_, err = store.SoftDeleteCustomer(ctx, "9999", base)
	assert.ErrorIs(t, err, tailor.ErrNotFound)

	require.NoError(t, store.PurgeCustomer(ctx, "1002"))
	assert.ErrorIs(t, store.PurgeCustomer(ctx, "1002"), tailor.ErrNotFound)

	require.NoError(t, store.ClearCustomers(ctx))
	all, err = store.ListCustomers(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func customerIDs(cs []tailor.Customer) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.ID
	}
	return out
}

// =============================================================================
// SETTINGS, BACKUPS, QUEUE, USED IDS
// =============================================================================

func TestStore_Settings(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	ok, err := store.PutSettingIfAbsent(ctx, tailor.Setting{Key: "theme", Value: "dark", UpdatedAt: base})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.PutSettingIfAbsent(ctx, tailor.Setting{Key: "theme", Value: "light", UpdatedAt: base})
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.PutSetting(ctx, tailor.Setting{Key: "backupInterval", Value: 24, UpdatedAt: base}))
	require.NoError(t, store.PutSetting(ctx, tailor.Setting{Key: "lastBackup", Value: nil, UpdatedAt: base}))

	got, err := store.GetSetting(ctx, "backupInterval")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, float64(24), got.Value)
	assert.True(t, got.UpdatedAt.Equal(base))

	list, err := store.ListSettings(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "backupInterval", list[0].Key)
	assert.Nil(t, list[1].Value)
	assert.Equal(t, "dark", list[2].Value)

	missing, err := store.GetSetting(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestStore_Backups(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := range 3 {
		snapshot := tailor.Snapshot{
			Version:        tailor.SchemaVersion,
			Timestamp:      base.Add(time.Duration(i) * time.Hour),
			TotalCustomers: 1,
			Customers:      []tailor.Customer{testCustomer("1001", base)},
		}
		_, err := store.AppendBackup(ctx, tailor.Backup{CreatedAt: snapshot.Timestamp, Data: snapshot})
		require.NoError(t, err)
	}

	removed, err := store.PruneBackups(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	list, err := store.ListBackups(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Greater(t, list[0].ID, list[1].ID)
	assert.True(t, list[0].CreatedAt.Equal(base.Add(2*time.Hour)))

	b, err := store.GetBackup(ctx, list[1].ID)
	require.NoError(t, err)
	require.NotNil(t, b)
	require.Len(t, b.Data.Customers, 1)
	assert.Equal(t, tailor.Measurement("170"), b.Data.Customers[0].Measurements["قد"])

	missing, err := store.GetBackup(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestStore_SyncQueue(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := tailor.SyncQueueItem{
		OpID: "op-1", Type: tailor.OpSaveCustomer, CustomerID: "1001",
		Payload: []byte(`{"id":"1001"}`), Status: tailor.QueuePending, CreatedAt: base,
	}
	second := first
	second.OpID = "op-2"
	second.Type = tailor.OpDeleteCustomer

	id1, err := store.EnqueueItem(ctx, first)
	require.NoError(t, err)
	_, err = store.EnqueueItem(ctx, second)
	require.NoError(t, err)

	_, err = store.EnqueueItem(ctx, first)
	assert.Error(t, err, "op ids are unique")

	processed := base.Add(time.Minute)
	first.ID = id1
	first.Status = tailor.QueueCompleted
	first.Attempts = 1
	first.ProcessedAt = &processed
	require.NoError(t, store.UpdateQueueItem(ctx, first))

	pending, err := store.QueueItems(ctx, tailor.QueuePending)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "op-2", pending[0].OpID)
	assert.Nil(t, pending[0].ProcessedAt)

	all, err := store.QueueItems(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "op-1", all[0].OpID)
	require.NotNil(t, all[0].ProcessedAt)
	assert.True(t, all[0].ProcessedAt.Equal(processed))
	assert.JSONEq(t, `{"id":"1001"}`, string(all[0].Payload))

	assert.ErrorIs(t, store.UpdateQueueItem(ctx, tailor.SyncQueueItem{ID: 99}), tailor.ErrNotFound)
}

func TestStore_UsedIDs(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AddUsedID(ctx, "1002"))
	require.NoError(t, store.AddUsedID(ctx, "1001"))
	require.NoError(t, store.AddUsedID(ctx, "1001"))
	require.NoError(t, store.RemoveUsedID(ctx, "1002"))

	ids, err := store.LoadUsedIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"1001"}, ids)

	require.NoError(t, store.ReplaceUsedIDs(ctx, []string{"3000", "2000"}))
	ids, err = store.LoadUsedIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"2000", "3000"}, ids)
}

// =============================================================================
// BOOK OVER SQLITE
// =============================================================================

func TestBook_OverSQLite(t *testing.T) {
	// GIVEN: A book backed by a file database
	// WHEN: A customer is saved, the process restarts, and an id is generated
	// THEN: The record survives and its id is never handed out again

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "book.db")

	store, err := sqlite.New(path)
	require.NoError(t, err)
	book, err := tailor.NewBook(ctx, store, tailor.BookConfig{})
	require.NoError(t, err)

	saved, err := book.Save(ctx, tailor.NewCustomer("Karim", "0799123456"))
	require.NoError(t, err)
	require.NoError(t, store.Close())

	store, err = sqlite.New(path)
	require.NoError(t, err)
	defer store.Close()
	book, err = tailor.NewBook(ctx, store, tailor.BookConfig{})
	require.NoError(t, err)

	assert.True(t, book.IDs().IsUsed(saved.ID))
	got, err := book.GetByID(ctx, saved.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "0799123456", got.Phone)

	found, err := book.Search(ctx, "karim")
	require.NoError(t, err)
	assert.Len(t, found, 1)
}
