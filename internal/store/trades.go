// ABOUTME: Trade ledger persistence for SQLiteStore
// ABOUTME: Append-only inserts, owner-guarded reassignment and history queries

package store

import (
	"context"
	"fmt"
	"time"
)

// CountTrades returns how many ledger records show itemID leaving fromOwnerRef.
func (s *SQLiteStore) CountTrades(ctx context.Context, itemID, fromOwnerRef string) (int, error) {
	return countTrades(ctx, s.db, itemID, fromOwnerRef)
}

// ListTradesFrom returns every record where fromOwnerRef gave an item away, oldest first.
func (s *SQLiteStore) ListTradesFrom(ctx context.Context, fromOwnerRef string) ([]*TradeRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, item_id, from_owner_ref, to_owner_ref, traded_at
		FROM trades
		WHERE from_owner_ref = ?
		ORDER BY traded_at, id`, fromOwnerRef)
	if err != nil {
		return nil, fmt.Errorf("querying trades: %w", err)
	}
	defer rows.Close()

	var records []*TradeRecord
	for rows.Next() {
		var (
			rec   TradeRecord
			tsStr string
		)
		if err := rows.Scan(&rec.ID, &rec.ItemID, &rec.FromOwnerRef, &rec.ToOwnerRef, &tsStr); err != nil {
			return nil, fmt.Errorf("scanning trade: %w", err)
		}
		if rec.Timestamp, err = time.Parse(timeLayout, tsStr); err != nil {
			return nil, fmt.Errorf("parsing traded_at: %w", err)
		}
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating trades: %w", err)
	}
	return records, nil
}

func countTrades(ctx context.Context, q querier, itemID, fromOwnerRef string) (int, error) {
	var n int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM trades WHERE item_id = ? AND from_owner_ref = ?`,
		itemID, fromOwnerRef,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting trades: %w", err)
	}
	return n, nil
}

// insertTrades writes records one by one and reports how many were acknowledged.
// It stops at the first failure so the caller can compare the count and abort.
func insertTrades(ctx context.Context, q querier, records []*TradeRecord) (int, error) {
	inserted := 0
	for _, rec := range records {
		result, err := q.ExecContext(ctx, `
			INSERT INTO trades (id, item_id, from_owner_ref, to_owner_ref, traded_at)
			VALUES (?, ?, ?, ?, ?)`,
			rec.ID,
			rec.ItemID,
			rec.FromOwnerRef,
			rec.ToOwnerRef,
			rec.Timestamp.UTC().Format(timeLayout),
		)
		if err != nil {
			return inserted, fmt.Errorf("inserting trade %s: %w", rec.ID, err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return inserted, fmt.Errorf("checking rows affected: %w", err)
		}
		inserted += int(n)
	}
	return inserted, nil
}

func reassignOwner(ctx context.Context, q querier, itemID, expectedOwner, newOwner string) error {
	result, err := q.ExecContext(ctx, `
		UPDATE items SET owner_ref = ?, updated_at = ?
		WHERE id = ? AND owner_ref = ?`,
		newOwner,
		time.Now().UTC().Format(timeLayout),
		itemID,
		expectedOwner,
	)
	if err != nil {
		return fmt.Errorf("reassigning item %s: %w", itemID, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return ErrConflict
	}
	return nil
}
