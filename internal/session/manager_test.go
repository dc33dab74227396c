// ABOUTME: Tests for the session manager over the mock store
// ABOUTME: Covers persistence, expiry, per-key serialization and sweeping

package session

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/2389/tradein-gateway/internal/conversation"
	"github.com/2389/tradein-gateway/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, ttl time.Duration) (*Manager, *store.MockStore) {
	t.Helper()
	st := store.NewMockStore()
	m := NewManager(st, Options{TTL: ttl, MaxEntries: 16}, nil)
	t.Cleanup(m.Close)
	return m, st
}

var alice = conversation.Key{ChatID: "100", UserID: "7"}

func TestManager_NewSessionWhenNothingStored(t *testing.T) {
	m, _ := newTestManager(t, time.Hour)
	ctx := context.Background()

	s, err := m.Acquire(ctx, alice)
	require.NoError(t, err)
	defer m.Release(alice)

	assert.Equal(t, alice, s.Key)
	assert.False(t, s.State.Active())
}

func TestManager_CommitPersists(t *testing.T) {
	m, st := newTestManager(t, time.Hour)
	ctx := context.Background()

	s, err := m.Acquire(ctx, alice)
	require.NoError(t, err)
	s.State = conversation.InEdit(conversation.Typing)
	s.User.Pending = conversation.FieldValue
	s.MapCard(55, conversation.PageRef{ItemID: "i1", OwnerRef: "9"})
	s.Track(55, 56)
	require.NoError(t, m.Commit(ctx, s))
	m.Release(alice)

	raw, err := st.GetSessionState(ctx, alice.String())
	require.NoError(t, err)
	assert.NotEmpty(t, raw)

	// A fresh manager over the same store must read it back from the table
	other := NewManager(st, Options{TTL: time.Hour}, nil)
	defer other.Close()

	got, err := other.Acquire(ctx, alice)
	require.NoError(t, err)
	defer other.Release(alice)

	assert.Equal(t, conversation.InEdit(conversation.Typing), got.State)
	assert.Equal(t, conversation.FieldValue, got.User.Pending)
	assert.Equal(t, []int{55, 56}, got.Chat.PageMessages)
	ref, ok := got.TakeCard(55)
	require.True(t, ok)
	assert.Equal(t, "9", ref.OwnerRef)
}

func TestManager_UncommittedChangesAreDiscarded(t *testing.T) {
	m, _ := newTestManager(t, time.Hour)
	ctx := context.Background()

	s, err := m.Acquire(ctx, alice)
	require.NoError(t, err)
	s.State = conversation.At(conversation.Searching)
	s.User.Query = "lamp"
	require.NoError(t, m.Commit(ctx, s))
	m.Release(alice)

	s, err = m.Acquire(ctx, alice)
	require.NoError(t, err)
	s.User.Query = "changed"
	s.State = conversation.At(conversation.Tracking)
	m.Release(alice)

	s, err = m.Acquire(ctx, alice)
	require.NoError(t, err)
	defer m.Release(alice)
	assert.Equal(t, "lamp", s.User.Query)
	assert.Equal(t, conversation.At(conversation.Searching), s.State)
}

func TestManager_CommitEndForgets(t *testing.T) {
	m, st := newTestManager(t, time.Hour)
	ctx := context.Background()

	s, err := m.Acquire(ctx, alice)
	require.NoError(t, err)
	s.State = conversation.At(conversation.SelectingAction)
	require.NoError(t, m.Commit(ctx, s))

	s.State = conversation.End
	require.NoError(t, m.Commit(ctx, s))
	m.Release(alice)

	_, err = st.GetSessionState(ctx, alice.String())
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, ok := m.cache.Get(alice.String())
	assert.False(t, ok)
}

func TestManager_ExpiredSessionStartsOver(t *testing.T) {
	m, _ := newTestManager(t, time.Hour)
	ctx := context.Background()

	s, err := m.Acquire(ctx, alice)
	require.NoError(t, err)
	s.State = conversation.At(conversation.Showing)
	require.NoError(t, m.Commit(ctx, s))
	m.Release(alice)

	later := time.Now().Add(2 * time.Hour)
	m.now = func() time.Time { return later }

	s, err = m.Acquire(ctx, alice)
	require.NoError(t, err)
	defer m.Release(alice)
	assert.Equal(t, conversation.End, s.State)
}

func TestManager_UnreadableSnapshotStartsOver(t *testing.T) {
	m, st := newTestManager(t, time.Hour)
	ctx := context.Background()
	require.NoError(t, st.SaveSessionState(ctx, alice.String(), []byte("{not json")))

	s, err := m.Acquire(ctx, alice)
	require.NoError(t, err)
	defer m.Release(alice)
	assert.False(t, s.State.Active())
}

func TestManager_SerializesPerKey(t *testing.T) {
	m, _ := newTestManager(t, time.Hour)
	ctx := context.Background()

	var inside, maxInside atomic.Int32
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := m.Acquire(ctx, alice)
			if !assert.NoError(t, err) {
				return
			}
			n := inside.Add(1)
			for {
				cur := maxInside.Load()
				if n <= cur || maxInside.CompareAndSwap(cur, n) {
					break
				}
			}
			s.State = conversation.At(conversation.Searching)
			s.User.Offset += 5
			time.Sleep(time.Millisecond)
			assert.NoError(t, m.Commit(ctx, s))
			inside.Add(-1)
			m.Release(alice)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside.Load())

	s, err := m.Acquire(ctx, alice)
	require.NoError(t, err)
	defer m.Release(alice)
	assert.Equal(t, 40, s.User.Offset, "no update is lost")

	m.mu.Lock()
	assert.Len(t, m.locks, 1, "only the held lock remains")
	m.mu.Unlock()
}

func TestManager_DifferentKeysDoNotBlock(t *testing.T) {
	m, _ := newTestManager(t, time.Hour)
	ctx := context.Background()

	_, err := m.Acquire(ctx, alice)
	require.NoError(t, err)
	defer m.Release(alice)

	bob := conversation.Key{ChatID: "100", UserID: "8"}
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	_, err = m.Acquire(ctx, bob)
	require.NoError(t, err)
	m.Release(bob)
}

func TestManager_AcquireHonoursContext(t *testing.T) {
	m, _ := newTestManager(t, time.Hour)

	_, err := m.Acquire(context.Background(), alice)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = m.Acquire(ctx, alice)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	m.Release(alice)
	m.mu.Lock()
	assert.Empty(t, m.locks)
	m.mu.Unlock()
}

func TestManager_Sweep(t *testing.T) {
	m, st := newTestManager(t, time.Hour)
	ctx := context.Background()

	s, err := m.Acquire(ctx, alice)
	require.NoError(t, err)
	s.State = conversation.At(conversation.Tracking)
	require.NoError(t, m.Commit(ctx, s))
	m.Release(alice)

	n, err := m.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "fresh session survives")

	later := time.Now().Add(2 * time.Hour)
	m.now = func() time.Time { return later }

	n, err = m.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, err = st.GetSessionState(ctx, alice.String())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestManager_SweepWithoutTTL(t *testing.T) {
	m, _ := newTestManager(t, 0)
	n, err := m.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func commitTracking(t *testing.T, m *Manager, ids ...int) {
	t.Helper()
	ctx := context.Background()
	s, err := m.Acquire(ctx, alice)
	require.NoError(t, err)
	s.State = conversation.At(conversation.Searching)
	s.User.Query = "lamp"
	s.Track(ids...)
	require.NoError(t, m.Commit(ctx, s))
	m.Release(alice)
}

func TestManager_ExpiredSessionKeepsTrackedMessages(t *testing.T) {
	m, _ := newTestManager(t, time.Hour)
	ctx := context.Background()
	commitTracking(t, m, 101, 102, 103)

	later := time.Now().Add(2 * time.Hour)
	m.now = func() time.Time { return later }

	s, err := m.Acquire(ctx, alice)
	require.NoError(t, err)
	defer m.Release(alice)

	assert.Equal(t, conversation.End, s.State)
	assert.Empty(t, s.User.Query, "participant data is dropped")
	assert.Equal(t, []int{101, 102, 103}, s.Chat.PageMessages, "tracked messages still need deleting")
}

func TestManager_SweepDeletesTrackedMessages(t *testing.T) {
	st := store.NewMockStore()
	n := conversation.NewMockNotifier()
	m := NewManager(st, Options{TTL: time.Hour, MaxEntries: 16, Notifier: n}, nil)
	t.Cleanup(m.Close)
	ctx := context.Background()
	commitTracking(t, m, 101, 102)

	later := time.Now().Add(2 * time.Hour)
	m.now = func() time.Time { return later }

	removed, err := m.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Equal(t, []int{101, 102}, n.Deleted())

	_, err = st.GetSessionState(ctx, alice.String())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestManager_SweepKeepsTrackedMessagesWithoutNotifier(t *testing.T) {
	m, st := newTestManager(t, time.Hour)
	ctx := context.Background()
	commitTracking(t, m, 101)

	later := time.Now().Add(2 * time.Hour)
	m.now = func() time.Time { return later }

	removed, err := m.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, removed)

	_, err = st.GetSessionState(ctx, alice.String())
	assert.NoError(t, err, "kept until the participant returns")

	// The participant's next event still sees the messages to clean up
	s, err := m.Acquire(ctx, alice)
	require.NoError(t, err)
	defer m.Release(alice)
	assert.Equal(t, []int{101}, s.Chat.PageMessages)
}

func TestParseKey(t *testing.T) {
	key, ok := parseKey(alice.String())
	require.True(t, ok)
	assert.Equal(t, alice, key)

	for _, bad := range []string{"", "100", ":7", "100:"} {
		_, ok := parseKey(bad)
		assert.False(t, ok, bad)
	}
}
