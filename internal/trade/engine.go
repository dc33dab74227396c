// ABOUTME: Trade engine that validates and atomically executes an item ownership swap
// ABOUTME: Ledger records are written before owners change, inside one store transaction

package trade

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/2389/tradein-gateway/internal/store"
)

// Result describes a committed trade.
type Result struct {
	// Offered is the requester's former item, now held by the counterpart.
	Offered *store.Item
	// Acquired is the target item, now held by the requester.
	Acquired *store.Item
	Records  []*store.TradeRecord
}

// Request identifies a proposed trade.
type Request struct {
	RequesterRef string
	TargetItemID string
	// ExpectedOwner is the target's owner when the participant saw it. When set,
	// a target that has changed hands since is reported as ITEM_UNAVAILABLE.
	ExpectedOwner string
}

// Engine executes trades against a Store.
type Engine struct {
	store  store.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewEngine creates a trade engine. A nil logger uses slog.Default().
func NewEngine(s store.Store, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:  s,
		logger: logger.With("component", "trade"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Execute swaps the requester's item with the target item.
//
// Preconditions are checked in order inside the transaction and the first
// failure is returned as *Error. A lost race on an owner-guarded update is
// reported as ITEM_UNAVAILABLE. Any other error means the store failed; in every
// failure case nothing was written.
func (e *Engine) Execute(ctx context.Context, req Request) (*Result, error) {
	var result *Result
	requesterRef, targetItemID := req.RequesterRef, req.TargetItemID

	err := e.store.WithTx(ctx, func(tx store.Tx) error {
		item1, err := tx.GetItemByOwner(ctx, requesterRef)
		if errors.Is(err, store.ErrNotFound) {
			return reject(CodeNoOwnItem)
		}
		if err != nil {
			return err
		}

		if targetItemID == "" {
			return reject(CodeItemUnavailable)
		}
		item2, err := tx.GetItem(ctx, targetItemID)
		if errors.Is(err, store.ErrNotFound) {
			return reject(CodeItemUnavailable)
		}
		if err != nil {
			return err
		}
		if req.ExpectedOwner != "" && item2.OwnerRef != req.ExpectedOwner {
			return reject(CodeItemUnavailable)
		}

		if item1.ID == item2.ID {
			return reject(CodeSameItem)
		}
		if item1.OwnerRef == item2.OwnerRef {
			return reject(CodeSameOwner)
		}
		if ParseValue(item1.Value) < ParseValue(item2.Value) {
			return reject(CodeInsufficientValue)
		}

		// has the counterpart already given item1 away once?
		n, err := tx.CountTrades(ctx, item1.ID, item2.OwnerRef)
		if err != nil {
			return err
		}
		if n > 0 {
			return &Error{Code: CodeAlreadyTraded, ItemName: item1.Name}
		}
		// has the requester already given item2 away once?
		n, err = tx.CountTrades(ctx, item2.ID, item1.OwnerRef)
		if err != nil {
			return err
		}
		if n > 0 {
			return &Error{Code: CodeAlreadyTraded, ItemName: item2.Name, Requester: true}
		}

		ts := e.now()
		records := []*store.TradeRecord{
			{ID: ulid.Make().String(), Timestamp: ts, ItemID: item1.ID, FromOwnerRef: item1.OwnerRef, ToOwnerRef: item2.OwnerRef},
			{ID: ulid.Make().String(), Timestamp: ts, ItemID: item2.ID, FromOwnerRef: item2.OwnerRef, ToOwnerRef: item1.OwnerRef},
		}
		acked, err := tx.InsertTrades(ctx, records)
		if err != nil {
			return fmt.Errorf("writing ledger: %w", err)
		}
		if acked != len(records) {
			return fmt.Errorf("ledger acknowledged %d of %d records: %w", acked, len(records), store.ErrShortInsert)
		}

		if err := tx.ReassignOwner(ctx, item1.ID, item1.OwnerRef, item2.OwnerRef); err != nil {
			return ownerErr(err)
		}
		if err := tx.ReassignOwner(ctx, item2.ID, item2.OwnerRef, item1.OwnerRef); err != nil {
			return ownerErr(err)
		}

		offered, acquired := *item1, *item2
		offered.OwnerRef, acquired.OwnerRef = item2.OwnerRef, item1.OwnerRef
		result = &Result{Offered: &offered, Acquired: &acquired, Records: records}
		return nil
	})
	if err != nil {
		if code := CodeOf(err); code != "" {
			e.logger.Info("trade rejected", "requester", requesterRef, "target", targetItemID, "code", code)
		} else {
			e.logger.Error("trade failed", "requester", requesterRef, "target", targetItemID, "error", err)
		}
		return nil, err
	}

	e.logger.Info("trade committed",
		"offered", result.Offered.ID,
		"acquired", result.Acquired.ID,
		"requester", requesterRef,
		"counterpart", result.Offered.OwnerRef,
	)
	return result, nil
}

func ownerErr(err error) error {
	if errors.Is(err, store.ErrConflict) {
		return reject(CodeItemUnavailable)
	}
	return err
}
