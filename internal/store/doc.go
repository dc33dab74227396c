// Package store provides persistent storage for the trade-in gateway using SQLite.
//
// # Architecture
//
// The store package is interface-driven:
//
//   - ItemStore: one item per owner, candidate listing for search
//   - LedgerStore: read access to the append-only trade ledger
//   - SessionStore: serialized conversation sessions
//   - Tx: the transactional view used to commit a trade
//
// SQLiteStore implements all of them in a single struct. MockStore is an
// in-memory equivalent for tests.
//
// # Data Models
//
//   - Item: a participant's listing with free-form category fields and media
//   - TradeRecord: one ledger row; a trade writes exactly two
//
// # Transactions
//
// WithTx opens an immediate write transaction. A trade validates its
// preconditions, appends both ledger records and swaps both owners inside one
// WithTx call, so either every write lands or none do. Owner reassignment is
// guarded by the expected current owner and reports ErrConflict when another
// commit got there first.
//
// # Usage
//
//	s, err := store.NewSQLiteStore("/var/lib/tradein/tradein.db")
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//
//	item, created, err := s.UpsertItemByOwner(ctx, ownerRef, store.ItemPatch{Name: &name})
//
// # Thread Safety
//
// All store implementations are safe for concurrent use.
//
// # Error Handling
//
// Standard errors:
//
//   - ErrNotFound: entity does not exist
//   - ErrConflict: owner-guarded write lost a race
//   - ErrShortInsert: ledger did not acknowledge every record
package store
