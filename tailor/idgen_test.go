package tailor_test

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alfajr/tailorbook/tailor"
	"github.com/alfajr/tailorbook/tailor/store"
)

func TestIDGenerator_ExhaustsAfterCapacity(t *testing.T) {
	// GIVEN: An empty generator
	// WHEN: Generating IDCapacity ids, then one more
	// THEN: Every id is unique and in range; the extra call fails with ExhaustionError

	ctx := context.Background()
	gen := tailor.NewIDGenerator(store.NewMemory())

	seen := make(map[string]struct{}, tailor.IDCapacity)
	for range tailor.IDCapacity {
		id, err := gen.Generate(ctx)
		require.NoError(t, err)
		require.True(t, tailor.ValidID(id), "id %q out of range", id)
		_, dup := seen[id]
		require.False(t, dup, "id %q handed out twice", id)
		seen[id] = struct{}{}
	}
	assert.Equal(t, 0, gen.Remaining())

	_, err := gen.Generate(ctx)
	var exErr *tailor.ExhaustionError
	require.ErrorAs(t, err, &exErr)
	assert.Equal(t, tailor.IDCapacity, exErr.Capacity)
	assert.Equal(t, tailor.IDCapacity, exErr.Used)
	assert.True(t, tailor.IsFatal(err))
}

func TestIDGenerator_ReleaseMakesIDAvailable(t *testing.T) {
	ctx := context.Background()
	gen := tailor.NewIDGenerator(store.NewMemory())

	// Take everything except 4321
	for n := 1000; n <= 9999; n++ {
		if n == 4321 {
			continue
		}
		require.NoError(t, gen.AddUsed(ctx, strconv.Itoa(n)))
	}

	id, err := gen.Generate(ctx)
	require.NoError(t, err)
	assert.Equal(t, "4321", id)

	require.NoError(t, gen.Release(ctx, "1500"))
	id, err = gen.Generate(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1500", id)
}

func TestIDGenerator_AddUsedIgnoresMalformed(t *testing.T) {
	ctx := context.Background()
	gen := tailor.NewIDGenerator(store.NewMemory())

	for _, id := range []string{"", "999", "10000", "abcd", "0123"} {
		require.NoError(t, gen.AddUsed(ctx, id))
	}
	assert.Equal(t, 0, gen.Used())
}

func TestIDGenerator_PersistsThroughStore(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()

	gen := tailor.NewIDGenerator(mem)
	id, err := gen.Generate(ctx)
	require.NoError(t, err)

	restored := tailor.NewIDGenerator(mem)
	require.NoError(t, restored.Load(ctx))
	assert.True(t, restored.IsUsed(id))
	assert.Equal(t, 1, restored.Used())
}

func TestBook_SyncIDsWithStore(t *testing.T) {
	// GIVEN: Records written behind the generator's back
	// WHEN: Syncing
	// THEN: The used set matches the stored ids, soft-deleted included

	book, mem, _ := newTestBook(t, tailor.BookConfig{})
	ctx := context.Background()

	active := karim()
	active.ID = "2001"
	active.Version = 1
	deleted := customer("Bahar", "0700000002")
	deleted.ID = "2002"
	deleted.Version = 1
	deleted.Deleted = true
	require.NoError(t, mem.InsertCustomer(ctx, active))
	require.NoError(t, mem.InsertCustomer(ctx, deleted))

	_, err := book.NextID(ctx) // a stray reservation sync should drop
	require.NoError(t, err)

	require.NoError(t, book.SyncIDsWithStore(ctx))
	assert.Equal(t, 2, book.IDs().Used())
	assert.True(t, book.IDs().IsUsed("2001"))
	assert.True(t, book.IDs().IsUsed("2002"))
}

func TestValidID(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"1000", true},
		{"9999", true},
		{"0999", false},
		{"999", false},
		{"10000", false},
		{"12a4", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			assert.Equal(t, tt.want, tailor.ValidID(tt.id))
		})
	}
}
