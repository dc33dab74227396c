// ABOUTME: Store interfaces and data types for trade-in persistence
// ABOUTME: Defines Item, TradeRecord, ItemPatch and the transactional Store contract

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when an owner-guarded write finds the row changed underneath it.
// Callers treat it as "the item is no longer available".
var ErrConflict = errors.New("conflicting concurrent write")

// ErrShortInsert is returned by a transaction when the ledger did not acknowledge every record.
var ErrShortInsert = errors.New("ledger insert not fully acknowledged")

// Item is a participant's listed item. OwnerRef only changes through a committed trade.
type Item struct {
	ID          string
	OwnerRef    string
	Name        string
	Value       string // raw text as typed; numeric value comes from trade.ParseValue
	Description string
	Category    map[string]string // free-form extension fields
	Images      []string          // public media references
	Files       []string          // private media references, visible to the owner only
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ItemPatch carries the fields collected by the edit flow.
// Nil pointers leave the stored value untouched; Category entries are merged;
// Images and Files are appended, skipping references already present.
type ItemPatch struct {
	Name        *string
	Value       *string
	Description *string
	Category    map[string]string
	Images      []string
	Files       []string
}

// IsEmpty reports whether the patch would change nothing.
func (p ItemPatch) IsEmpty() bool {
	return p.Name == nil && p.Value == nil && p.Description == nil &&
		len(p.Category) == 0 && len(p.Images) == 0 && len(p.Files) == 0
}

// TradeRecord is one immutable ledger row. A trade always writes two of them,
// one per item, sharing the same Timestamp.
type TradeRecord struct {
	ID           string
	Timestamp    time.Time
	ItemID       string
	FromOwnerRef string
	ToOwnerRef   string
}

// CandidateFilter selects the items a requester may propose a trade for.
type CandidateFilter struct {
	Requester string
	Query     string // optional case-insensitive name substring
}

// ItemStore covers item CRUD keyed by owner.
type ItemStore interface {
	GetItem(ctx context.Context, id string) (*Item, error)
	GetItemByOwner(ctx context.Context, ownerRef string) (*Item, error)
	// UpsertItemByOwner applies patch to the owner's current item, creating it when the
	// owner has none. Returns the stored item and whether it was created.
	UpsertItemByOwner(ctx context.Context, ownerRef string, patch ItemPatch) (*Item, bool, error)
	ListItems(ctx context.Context, limit int) ([]*Item, error)

	// Candidates exclude the requester's own item and every item the requester has
	// previously traded away.
	ListCandidates(ctx context.Context, filter CandidateFilter, offset, limit int) ([]*Item, error)
	CountCandidates(ctx context.Context, filter CandidateFilter) (int, error)
}

// LedgerStore covers read access to the append-only trade ledger.
// Writes only happen inside WithTx.
type LedgerStore interface {
	CountTrades(ctx context.Context, itemID, fromOwnerRef string) (int, error)
	ListTradesFrom(ctx context.Context, fromOwnerRef string) ([]*TradeRecord, error)
}

// SessionStore persists serialized conversation sessions.
type SessionStore interface {
	SaveSessionState(ctx context.Context, key string, state []byte) error
	GetSessionState(ctx context.Context, key string) ([]byte, error)
	DeleteSessionState(ctx context.Context, key string) error
	// ListStaleSessions returns the keys of sessions not saved since before.
	ListStaleSessions(ctx context.Context, before time.Time) ([]string, error)
}

// Tx is the view of the store available inside WithTx. Every write made through it
// commits together with the others or not at all.
type Tx interface {
	GetItem(ctx context.Context, id string) (*Item, error)
	GetItemByOwner(ctx context.Context, ownerRef string) (*Item, error)
	CountTrades(ctx context.Context, itemID, fromOwnerRef string) (int, error)
	// InsertTrades appends records and returns how many the ledger acknowledged.
	InsertTrades(ctx context.Context, records []*TradeRecord) (int, error)
	// ReassignOwner moves itemID from expectedOwner to newOwner.
	// Returns ErrConflict when the item is no longer owned by expectedOwner.
	ReassignOwner(ctx context.Context, itemID, expectedOwner, newOwner string) error
}

// Store is the full persistence contract used by the gateway.
type Store interface {
	ItemStore
	LedgerStore
	SessionStore

	// WithTx runs fn in a single atomic transaction. If fn returns an error nothing it
	// wrote is kept.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any resources held by the store
	Close() error
}
