// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite, including staged transactions

package store

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"strings"
	"sync"
	"time"
)

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu       sync.RWMutex
	items    map[string]*Item // keyed by item ID
	trades   []*TradeRecord   // append-only, insertion order
	sessions map[string]mockSession

	// ledgerAckLimit caps how many records a single InsertTrades call acknowledges.
	// Negative means unlimited.
	ledgerAckLimit int
	seq            int
}

type mockSession struct {
	state     []byte
	updatedAt time.Time
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		items:          make(map[string]*Item),
		sessions:       make(map[string]mockSession),
		ledgerAckLimit: -1,
	}
}

// SetLedgerAckLimit makes InsertTrades acknowledge at most n records per call.
// Used to exercise the partial-write path.
func (m *MockStore) SetLedgerAckLimit(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ledgerAckLimit = n
}

// PutItem stores a copy of item as-is, bypassing upsert rules. Test seeding only.
func (m *MockStore) PutItem(item *Item) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putItemLocked(item)
}

func (m *MockStore) putItemLocked(item *Item) {
	c := cloneItem(item)
	if c.CreatedAt.IsZero() {
		// keep insertion order stable for candidate listing
		m.seq++
		c.CreatedAt = time.Unix(0, 0).UTC().Add(time.Duration(m.seq) * time.Millisecond)
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = c.CreatedAt
	}
	m.items[c.ID] = c
}

// Trades returns a copy of the full ledger.
func (m *MockStore) Trades() []*TradeRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*TradeRecord, len(m.trades))
	for i, r := range m.trades {
		c := *r
		out[i] = &c
	}
	return out
}

// GetItem retrieves an item by ID.
func (m *MockStore) GetItem(ctx context.Context, id string) (*Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return mockGetItem(m.items, id)
}

// GetItemByOwner retrieves the item held by ownerRef.
func (m *MockStore) GetItemByOwner(ctx context.Context, ownerRef string) (*Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return mockGetItemByOwner(m.items, ownerRef)
}

// UpsertItemByOwner applies patch to the owner's item, creating one if needed.
func (m *MockStore) UpsertItemByOwner(ctx context.Context, ownerRef string, patch ItemPatch) (*Item, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	for _, it := range m.items {
		if it.OwnerRef == ownerRef {
			applyPatch(it, patch)
			it.UpdatedAt = now
			return cloneItem(it), false, nil
		}
	}

	item := &Item{
		ID:       NewItemID(),
		OwnerRef: ownerRef,
		Category: map[string]string{},
	}
	applyPatch(item, patch)
	m.putItemLocked(item)
	return cloneItem(m.items[item.ID]), true, nil
}

// ListItems returns items in creation order.
func (m *MockStore) ListItems(ctx context.Context, limit int) ([]*Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := m.sortedItems(func(*Item) bool { return true })
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// ListCandidates returns one page of tradeable items.
func (m *MockStore) ListCandidates(ctx context.Context, filter CandidateFilter, offset, limit int) ([]*Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := m.sortedItems(m.candidateFn(filter))
	if offset >= len(all) {
		return nil, nil
	}
	end := min(offset+limit, len(all))
	return all[offset:end], nil
}

// CountCandidates returns the number of tradeable items.
func (m *MockStore) CountCandidates(ctx context.Context, filter CandidateFilter) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sortedItems(m.candidateFn(filter))), nil
}

func (m *MockStore) candidateFn(filter CandidateFilter) func(*Item) bool {
	tradedAway := make(map[string]bool)
	for _, r := range m.trades {
		if r.FromOwnerRef == filter.Requester {
			tradedAway[r.ItemID] = true
		}
	}
	query := strings.ToLower(filter.Query)
	return func(it *Item) bool {
		if it.OwnerRef == filter.Requester || tradedAway[it.ID] {
			return false
		}
		return query == "" || strings.Contains(strings.ToLower(it.Name), query)
	}
}

func (m *MockStore) sortedItems(keep func(*Item) bool) []*Item {
	var out []*Item
	for _, it := range m.items {
		if keep(it) {
			out = append(out, cloneItem(it))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// CountTrades counts ledger records for itemID leaving fromOwnerRef.
func (m *MockStore) CountTrades(ctx context.Context, itemID, fromOwnerRef string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return mockCountTrades(m.trades, itemID, fromOwnerRef), nil
}

// ListTradesFrom returns records where fromOwnerRef gave an item away.
func (m *MockStore) ListTradesFrom(ctx context.Context, fromOwnerRef string) ([]*TradeRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*TradeRecord
	for _, r := range m.trades {
		if r.FromOwnerRef == fromOwnerRef {
			c := *r
			out = append(out, &c)
		}
	}
	return out, nil
}

// SaveSessionState stores session state.
func (m *MockStore) SaveSessionState(ctx context.Context, key string, state []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stateCopy := make([]byte, len(state))
	copy(stateCopy, state)
	m.sessions[key] = mockSession{state: stateCopy, updatedAt: time.Now().UTC()}
	return nil
}

// GetSessionState retrieves session state.
func (m *MockStore) GetSessionState(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[key]
	if !ok {
		return nil, ErrNotFound
	}
	result := make([]byte, len(s.state))
	copy(result, s.state)
	return result, nil
}

// DeleteSessionState removes session state.
func (m *MockStore) DeleteSessionState(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, key)
	return nil
}

// ListStaleSessions returns the keys of sessions saved before the cutoff, oldest first.
func (m *MockStore) ListStaleSessions(ctx context.Context, before time.Time) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var keys []string
	for k, s := range m.sessions {
		if s.updatedAt.Before(before) {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := m.sessions[keys[i]], m.sessions[keys[j]]
		if a.updatedAt.Equal(b.updatedAt) {
			return keys[i] < keys[j]
		}
		return a.updatedAt.Before(b.updatedAt)
	})
	return keys, nil
}

// WithTx runs fn against a staged copy of items and ledger, publishing the copy
// only when fn succeeds. The write lock is held for the whole call.
func (m *MockStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	staged := &mockTx{
		items:    make(map[string]*Item, len(m.items)),
		trades:   append([]*TradeRecord(nil), m.trades...),
		ackLimit: m.ledgerAckLimit,
	}
	for id, it := range m.items {
		staged.items[id] = cloneItem(it)
	}

	if err := fn(staged); err != nil {
		return err
	}

	m.items = staged.items
	m.trades = staged.trades
	return nil
}

// Close is a no-op for MockStore.
func (m *MockStore) Close() error {
	return nil
}

type mockTx struct {
	items    map[string]*Item
	trades   []*TradeRecord
	ackLimit int
}

func (t *mockTx) GetItem(ctx context.Context, id string) (*Item, error) {
	return mockGetItem(t.items, id)
}

func (t *mockTx) GetItemByOwner(ctx context.Context, ownerRef string) (*Item, error) {
	return mockGetItemByOwner(t.items, ownerRef)
}

func (t *mockTx) CountTrades(ctx context.Context, itemID, fromOwnerRef string) (int, error) {
	return mockCountTrades(t.trades, itemID, fromOwnerRef), nil
}

func (t *mockTx) InsertTrades(ctx context.Context, records []*TradeRecord) (int, error) {
	n := 0
	for _, r := range records {
		if t.ackLimit >= 0 && n >= t.ackLimit {
			break
		}
		if _, ok := t.items[r.ItemID]; !ok {
			return n, fmt.Errorf("inserting trade %s: unknown item %s", r.ID, r.ItemID)
		}
		c := *r
		t.trades = append(t.trades, &c)
		n++
	}
	return n, nil
}

func (t *mockTx) ReassignOwner(ctx context.Context, itemID, expectedOwner, newOwner string) error {
	it, ok := t.items[itemID]
	if !ok || it.OwnerRef != expectedOwner {
		return ErrConflict
	}
	it.OwnerRef = newOwner
	it.UpdatedAt = time.Now().UTC()
	return nil
}

func mockGetItem(items map[string]*Item, id string) (*Item, error) {
	it, ok := items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneItem(it), nil
}

func mockGetItemByOwner(items map[string]*Item, ownerRef string) (*Item, error) {
	for _, it := range items {
		if it.OwnerRef == ownerRef {
			return cloneItem(it), nil
		}
	}
	return nil, ErrNotFound
}

func mockCountTrades(trades []*TradeRecord, itemID, fromOwnerRef string) int {
	n := 0
	for _, r := range trades {
		if r.ItemID == itemID && r.FromOwnerRef == fromOwnerRef {
			n++
		}
	}
	return n
}

func cloneItem(it *Item) *Item {
	c := *it
	c.Category = maps.Clone(it.Category)
	if c.Category == nil {
		c.Category = map[string]string{}
	}
	c.Images = append([]string(nil), it.Images...)
	c.Files = append([]string(nil), it.Files...)
	return &c
}

// Compile-time interface checks
var (
	_ Store = (*MockStore)(nil)
	_ Store = (*SQLiteStore)(nil)
)
