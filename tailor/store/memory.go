// Package store provides in-memory tailor.Store implementations.
package store

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/alfajr/tailorbook/tailor"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory keeps every partition in maps guarded by one RWMutex. Records are
// copied in and out so callers never alias stored state.
type Memory struct {
	mu        sync.RWMutex
	customers map[string]tailor.Customer
	settings  map[string]tailor.Setting
	backups   []tailor.Backup
	queue     []tailor.SyncQueueItem
	usedIDs   map[string]struct{}

	nextBackupID int64
	nextQueueID  int64
}

var _ tailor.Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		customers: make(map[string]tailor.Customer),
		settings:  make(map[string]tailor.Setting),
		usedIDs:   make(map[string]struct{}),
	}
}

// =============================================================================
// CUSTOMERS
// =============================================================================

func (m *Memory) InsertCustomer(_ context.Context, c tailor.Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.customers[c.ID]; ok && !existing.Deleted {
		return &tailor.DuplicateIDError{ID: c.ID}
	}
	m.customers[c.ID] = c.Clone()
	return nil
}

func (m *Memory) UpdateCustomer(_ context.Context, c tailor.Customer, expectedVersion int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.customers[c.ID]
	if !ok {
		return &tailor.NotFoundError{ID: c.ID}
	}
	if existing.Version != expectedVersion {
		return &tailor.ConflictError{ID: c.ID, Expected: expectedVersion, Actual: existing.Version}
	}
	m.customers[c.ID] = c.Clone()
	return nil
}

func (m *Memory) SoftDeleteCustomer(_ context.Context, id string, at time.Time) (*tailor.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.customers[id]
	if !ok {
		return nil, &tailor.NotFoundError{ID: id}
	}
	if c.Deleted {
		out := c.Clone()
		return &out, nil
	}
	c.Deleted = true
	c.UpdatedAt = at
	c.Version++
	m.customers[id] = c

	out := c.Clone()
	return &out, nil
}

func (m *Memory) PurgeCustomer(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.customers[id]; !ok {
		return &tailor.NotFoundError{ID: id}
	}
	delete(m.customers, id)
	return nil
}

func (m *Memory) GetCustomer(_ context.Context, id string) (*tailor.Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.customers[id]
	if !ok {
		return nil, nil
	}
	out := c.Clone()
	return &out, nil
}

func (m *Memory) ListCustomers(_ context.Context, includeDeleted bool) ([]tailor.Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]tailor.Customer, 0, len(m.customers))
	for _, c := range m.customers {
		if c.Deleted && !includeDeleted {
			continue
		}
		result = append(result, c.Clone())
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})
	return result, nil
}

func (m *Memory) ClearCustomers(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.customers = make(map[string]tailor.Customer)
	return nil
}

// =============================================================================
// SETTINGS
// =============================================================================

func (m *Memory) GetSetting(_ context.Context, key string) (*tailor.Setting, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.settings[key]
	if !ok {
		return nil, nil
	}
	out, err := copySetting(s)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (m *Memory) PutSetting(_ context.Context, s tailor.Setting) error {
	s, err := copySetting(s)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[s.Key] = s
	return nil
}

func (m *Memory) PutSettingIfAbsent(_ context.Context, s tailor.Setting) (bool, error) {
	s, err := copySetting(s)
	if err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.settings[s.Key]; ok {
		return false, nil
	}
	m.settings[s.Key] = s
	return true, nil
}

func (m *Memory) ListSettings(_ context.Context) ([]tailor.Setting, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]tailor.Setting, 0, len(m.settings))
	for _, s := range m.settings {
		out, err := copySetting(s)
		if err != nil {
			return nil, err
		}
		result = append(result, out)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Key < result[j].Key })
	return result, nil
}

// copySetting deep-copies the value through JSON, which also gives the
// same value types the SQLite store returns.
func copySetting(s tailor.Setting) (tailor.Setting, error) {
	v, err := tailor.NormalizeValue(s.Value)
	if err != nil {
		return tailor.Setting{}, err
	}
	s.Value = v
	return s, nil
}

// =============================================================================
// BACKUPS
// =============================================================================

func (m *Memory) AppendBackup(_ context.Context, b tailor.Backup) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextBackupID++
	b.ID = m.nextBackupID
	b.Data = copySnapshot(b.Data)
	m.backups = append(m.backups, b)
	return b.ID, nil
}

func (m *Memory) GetBackup(_ context.Context, id int64) (*tailor.Backup, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, b := range m.backups {
		if b.ID == id {
			b.Data = copySnapshot(b.Data)
			return &b, nil
		}
	}
	return nil, nil
}

func (m *Memory) ListBackups(_ context.Context) ([]tailor.Backup, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]tailor.Backup, 0, len(m.backups))
	for i := len(m.backups) - 1; i >= 0; i-- {
		b := m.backups[i]
		b.Data = copySnapshot(b.Data)
		result = append(result, b)
	}
	return result, nil
}

func (m *Memory) PruneBackups(_ context.Context, keep int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if keep < 0 || len(m.backups) <= keep {
		return 0, nil
	}
	removed := len(m.backups) - keep
	m.backups = slices.Clone(m.backups[removed:])
	return removed, nil
}

func copySnapshot(s tailor.Snapshot) tailor.Snapshot {
	customers := make([]tailor.Customer, len(s.Customers))
	for i, c := range s.Customers {
		customers[i] = c.Clone()
	}
	s.Customers = customers
	return s
}

// =============================================================================
// SYNC QUEUE
// =============================================================================

func (m *Memory) EnqueueItem(_ context.Context, item tailor.SyncQueueItem) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextQueueID++
	item.ID = m.nextQueueID
	item.Payload = slices.Clone(item.Payload)
	m.queue = append(m.queue, item)
	return item.ID, nil
}

func (m *Memory) QueueItems(_ context.Context, status tailor.QueueStatus) ([]tailor.SyncQueueItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]tailor.SyncQueueItem, 0, len(m.queue))
	for _, item := range m.queue {
		if status != "" && item.Status != status {
			continue
		}
		item.Payload = slices.Clone(item.Payload)
		result = append(result, item)
	}
	return result, nil
}

func (m *Memory) UpdateQueueItem(_ context.Context, item tailor.SyncQueueItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.queue {
		if m.queue[i].ID == item.ID {
			item.Payload = slices.Clone(item.Payload)
			m.queue[i] = item
			return nil
		}
	}
	return tailor.ErrNotFound
}

// =============================================================================
// USED IDS
// =============================================================================

func (m *Memory) LoadUsedIDs(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.usedIDs))
	for id := range m.usedIDs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *Memory) AddUsedID(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.usedIDs[id] = struct{}{}
	return nil
}

func (m *Memory) RemoveUsedID(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.usedIDs, id)
	return nil
}

func (m *Memory) ReplaceUsedIDs(_ context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.usedIDs = make(map[string]struct{}, len(ids))
	for _, id := range ids {
		m.usedIDs[id] = struct{}{}
	}
	return nil
}
