package tailor

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strconv"
	"sync"
)

const (
	minID = 1000
	maxID = 9999

	// IDCapacity is the number of distinct customer ids. It is the hard
	// ceiling on the number of records the book can hold.
	IDCapacity = maxID - minID + 1

	// MaxRandomAttempts bounds the random draws before Generate falls back to
	// a linear scan of the id space.
	MaxRandomAttempts = 1000
)

// CustomerLister is the part of the record store SyncWithStore needs.
type CustomerLister interface {
	ListCustomers(ctx context.Context, includeDeleted bool) ([]Customer, error)
}

// IDGenerator hands out short numeric customer ids from [1000, 9999].
// The used set lives in memory and is written through to a UsedIDStore.
type IDGenerator struct {
	mu    sync.Mutex
	used  map[string]struct{}
	store UsedIDStore
	rand  *rand.Rand
}

// NewIDGenerator creates a generator backed by store. Call Load to restore
// the persisted used set.
func NewIDGenerator(store UsedIDStore) *IDGenerator {
	return &IDGenerator{
		used:  make(map[string]struct{}),
		store: store,
		rand:  rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
}

// Load replaces the in-memory set with the persisted one.
func (g *IDGenerator) Load(ctx context.Context) error {
	ids, err := g.store.LoadUsedIDs(ctx)
	if err != nil {
		return fmt.Errorf("load used ids: %w", err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.used = make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if ValidID(id) {
			g.used[id] = struct{}{}
		}
	}
	return nil
}

// Generate returns an unused id and marks it used.
// Returns *ExhaustionError when all IDCapacity ids are taken.
func (g *IDGenerator) Generate(ctx context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	id, ok := g.pickLocked()
	if !ok {
		return "", &ExhaustionError{Capacity: IDCapacity, Used: len(g.used)}
	}

	if err := g.store.AddUsedID(ctx, id); err != nil {
		return "", fmt.Errorf("persist used id: %w", err)
	}
	g.used[id] = struct{}{}
	return id, nil
}

func (g *IDGenerator) pickLocked() (string, bool) {
	if len(g.used) >= IDCapacity {
		return "", false
	}

	for range MaxRandomAttempts {
		id := strconv.Itoa(minID + g.rand.IntN(IDCapacity))
		if _, taken := g.used[id]; !taken {
			return id, true
		}
	}

	// Dense set: scan from a random offset so the result stays spread out.
	start := g.rand.IntN(IDCapacity)
	for i := range IDCapacity {
		id := strconv.Itoa(minID + (start+i)%IDCapacity)
		if _, taken := g.used[id]; !taken {
			return id, true
		}
	}
	return "", false
}

// AddUsed marks id as taken. Malformed ids are ignored.
func (g *IDGenerator) AddUsed(ctx context.Context, id string) error {
	if !ValidID(id) {
		return nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.used[id]; ok {
		return nil
	}
	if err := g.store.AddUsedID(ctx, id); err != nil {
		return fmt.Errorf("persist used id: %w", err)
	}
	g.used[id] = struct{}{}
	return nil
}

// Release returns id to the pool. Only a hard purge should release ids.
func (g *IDGenerator) Release(ctx context.Context, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.store.RemoveUsedID(ctx, id); err != nil {
		return fmt.Errorf("release used id: %w", err)
	}
	delete(g.used, id)
	return nil
}

// Reset forgets every used id.
func (g *IDGenerator) Reset(ctx context.Context) error {
	return g.replace(ctx, nil)
}

// SyncWithStore rebuilds the used set from every record in the store,
// soft-deleted ones included. Required after bulk imports.
func (g *IDGenerator) SyncWithStore(ctx context.Context, store CustomerLister) error {
	customers, err := store.ListCustomers(ctx, true)
	if err != nil {
		return fmt.Errorf("sync ids with store: %w", err)
	}

	ids := make([]string, 0, len(customers))
	for _, c := range customers {
		if ValidID(c.ID) {
			ids = append(ids, c.ID)
		}
	}
	return g.replace(ctx, ids)
}

func (g *IDGenerator) replace(ctx context.Context, ids []string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.store.ReplaceUsedIDs(ctx, ids); err != nil {
		return fmt.Errorf("replace used ids: %w", err)
	}
	g.used = make(map[string]struct{}, len(ids))
	for _, id := range ids {
		g.used[id] = struct{}{}
	}
	return nil
}

// IsUsed reports whether id is currently taken.
func (g *IDGenerator) IsUsed(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.used[id]
	return ok
}

func (g *IDGenerator) Used() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.used)
}

// Remaining is the number of ids still available.
func (g *IDGenerator) Remaining() int {
	return IDCapacity - g.Used()
}
