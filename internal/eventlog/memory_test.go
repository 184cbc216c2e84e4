package eventlog

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/msusndrotcunit-boop/MSU-SND-RGMS-sub000/internal/domain"
)

func subjectID(id int64) *int64 { return &id }

func TestInMemoryStore_AppendAssignsStrictlyIncreasingIDs(t *testing.T) {
	store := NewInMemoryStore(clockwork.NewFakeClock())
	ctx := context.Background()

	var lastID int64
	for i := 0; i < 10; i++ {
		e, err := store.Append(ctx, domain.EventNotification, nil, []byte(`{}`))
		require.NoError(t, err)
		assert.Greater(t, e.ID, lastID)
		lastID = e.ID
	}
}

func TestInMemoryStore_AppendConcurrentIDsUnique(t *testing.T) {
	store := NewInMemoryStore(clockwork.NewFakeClock())
	ctx := context.Background()

	const n = 100
	ids := make(chan int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e, err := store.Append(ctx, domain.EventMessage, nil, []byte(`{}`))
			assert.NoError(t, err)
			ids <- e.ID
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[int64]bool, n)
	for id := range ids {
		assert.False(t, seen[id], "id %d assigned twice", id)
		seen[id] = true
	}
	assert.Len(t, seen, n)
}

func TestInMemoryStore_AppendRejectsUnknownType(t *testing.T) {
	store := NewInMemoryStore(clockwork.NewFakeClock())

	_, err := store.Append(context.Background(), "bogus", nil, []byte(`{}`))
	assert.ErrorIs(t, err, domain.ErrInvalidEventType)
}

func TestInMemoryStore_ListUnprocessedOldestFirst(t *testing.T) {
	store := NewInMemoryStore(clockwork.NewFakeClock())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := store.Append(ctx, domain.EventNotification, nil, []byte(`{}`))
		require.NoError(t, err)
	}
	require.NoError(t, store.MarkProcessed(ctx, []int64{1, 2}))

	events, err := store.ListUnprocessed(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, int64(3), events[0].ID)
	assert.Equal(t, int64(5), events[2].ID)

	limited, err := store.ListUnprocessed(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestInMemoryStore_MarkProcessedIsMonotonic(t *testing.T) {
	store := NewInMemoryStore(clockwork.NewFakeClock())
	ctx := context.Background()

	e, err := store.Append(ctx, domain.EventGradeUpdate, subjectID(42), []byte(`{}`))
	require.NoError(t, err)

	require.NoError(t, store.MarkProcessed(ctx, []int64{e.ID}))
	// Marking again, or marking ids that do not exist, is a no-op.
	require.NoError(t, store.MarkProcessed(ctx, []int64{e.ID, 999}))
	require.NoError(t, store.MarkProcessed(ctx, nil))

	events, err := store.ListUnprocessed(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestInMemoryStore_ListSince(t *testing.T) {
	store := NewInMemoryStore(clockwork.NewFakeClock())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := store.Append(ctx, domain.EventNotification, nil, []byte(`{}`))
		require.NoError(t, err)
	}

	events, err := store.ListSince(ctx, 2, 10)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, int64(3), events[0].ID)

	paged, err := store.ListSince(ctx, 0, 2)
	require.NoError(t, err)
	require.Len(t, paged, 2)
	assert.Equal(t, int64(1), paged[0].ID)

	empty, err := store.ListSince(ctx, 5, 10)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestInMemoryStore_DeleteProcessedOlderThanSparesUnprocessed(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := NewInMemoryStore(clock)
	ctx := context.Background()

	old, err := store.Append(ctx, domain.EventNotification, nil, []byte(`{}`))
	require.NoError(t, err)
	oldUnprocessed, err := store.Append(ctx, domain.EventNotification, nil, []byte(`{}`))
	require.NoError(t, err)

	clock.Advance(48 * time.Hour)
	recent, err := store.Append(ctx, domain.EventNotification, nil, []byte(`{}`))
	require.NoError(t, err)

	require.NoError(t, store.MarkProcessed(ctx, []int64{old.ID, recent.ID}))

	deleted, err := store.DeleteProcessedOlderThan(ctx, clock.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	// The aged but unprocessed event must survive; the recent processed
	// one is inside the horizon.
	remaining, err := store.ListSince(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, remaining, 2)
	assert.Equal(t, oldUnprocessed.ID, remaining[0].ID)
	assert.Equal(t, recent.ID, remaining[1].ID)
}

func TestInMemoryStore_ListFilters(t *testing.T) {
	store := NewInMemoryStore(clockwork.NewFakeClock())
	ctx := context.Background()

	_, err := store.Append(ctx, domain.EventGradeUpdate, subjectID(42), []byte(`{}`))
	require.NoError(t, err)
	_, err = store.Append(ctx, domain.EventGradeUpdate, subjectID(7), []byte(`{}`))
	require.NoError(t, err)
	_, err = store.Append(ctx, domain.EventNotification, nil, []byte(`{}`))
	require.NoError(t, err)
	require.NoError(t, store.MarkProcessed(ctx, []int64{1}))

	bySubject, err := store.List(ctx, domain.EventFilter{SubjectID: subjectID(42)})
	require.NoError(t, err)
	require.Len(t, bySubject, 1)
	assert.Equal(t, int64(1), bySubject[0].ID)

	typ := domain.EventGradeUpdate
	byType, err := store.List(ctx, domain.EventFilter{Type: &typ})
	require.NoError(t, err)
	assert.Len(t, byType, 2)

	processed := false
	unprocessed, err := store.List(ctx, domain.EventFilter{Processed: &processed})
	require.NoError(t, err)
	assert.Len(t, unprocessed, 2)

	paged, err := store.List(ctx, domain.EventFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, paged, 1)
	assert.Equal(t, int64(2), paged[0].ID)
}
