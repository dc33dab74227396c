// ABOUTME: Item persistence for SQLiteStore: lookup, owner upsert and candidate listing
// ABOUTME: Media lists and category fields are stored as JSON text columns

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const itemColumns = `id, owner_ref, name, value, description, category_json, images_json, files_json, created_at, updated_at`

// NewItemID returns a fresh 24-character hex item identifier.
func NewItemID() string {
	return primitive.NewObjectID().Hex()
}

// IsItemID reports whether s has the shape of an item identifier.
func IsItemID(s string) bool {
	_, err := primitive.ObjectIDFromHex(s)
	return err == nil
}

// GetItem retrieves an item by ID.
// Returns ErrNotFound if the item doesn't exist.
func (s *SQLiteStore) GetItem(ctx context.Context, id string) (*Item, error) {
	return getItem(ctx, s.db, "id = ?", id)
}

// GetItemByOwner retrieves the item currently held by ownerRef.
// Returns ErrNotFound if the owner has no item.
func (s *SQLiteStore) GetItemByOwner(ctx context.Context, ownerRef string) (*Item, error) {
	return getItem(ctx, s.db, "owner_ref = ?", ownerRef)
}

// UpsertItemByOwner applies patch to ownerRef's item inside one transaction,
// inserting a new item when the owner has none yet.
func (s *SQLiteStore) UpsertItemByOwner(ctx context.Context, ownerRef string, patch ItemPatch) (*Item, bool, error) {
	var (
		result  *Item
		created bool
	)

	err := s.WithTx(ctx, func(tx Tx) error {
		q := tx.(*sqliteTx).q

		existing, err := getItem(ctx, q, "owner_ref = ?", ownerRef)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}

		now := time.Now().UTC()
		if existing == nil {
			item := &Item{
				ID:        NewItemID(),
				OwnerRef:  ownerRef,
				Category:  map[string]string{},
				CreatedAt: now,
			}
			applyPatch(item, patch)
			item.UpdatedAt = now
			if err := insertItem(ctx, q, item); err != nil {
				return err
			}
			result, created = item, true
			return nil
		}

		applyPatch(existing, patch)
		existing.UpdatedAt = now
		if err := updateItem(ctx, q, existing); err != nil {
			return err
		}
		result = existing
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	s.logger.Debug("upserted item", "id", result.ID, "owner", ownerRef, "created", created)
	return result, created, nil
}

// ListItems returns items ordered by creation time, for operator tooling.
func (s *SQLiteStore) ListItems(ctx context.Context, limit int) ([]*Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items ORDER BY created_at, id LIMIT ?`
	return queryItems(ctx, s.db, query, limit)
}

// ListCandidates returns one page of tradeable items for filter.Requester.
func (s *SQLiteStore) ListCandidates(ctx context.Context, filter CandidateFilter, offset, limit int) ([]*Item, error) {
	where, args := candidateWhere(filter)
	query := `SELECT ` + itemColumns + ` FROM items WHERE ` + where + ` ORDER BY created_at, id LIMIT ? OFFSET ?`
	args = append(args, limit, offset)
	return queryItems(ctx, s.db, query, args...)
}

// CountCandidates returns the total number of tradeable items for filter.Requester.
func (s *SQLiteStore) CountCandidates(ctx context.Context, filter CandidateFilter) (int, error) {
	where, args := candidateWhere(filter)
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM items WHERE `+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting candidates: %w", err)
	}
	return n, nil
}

func candidateWhere(filter CandidateFilter) (string, []any) {
	where := `owner_ref != ?
		AND id NOT IN (SELECT item_id FROM trades WHERE from_owner_ref = ?)`
	args := []any{filter.Requester, filter.Requester}
	if filter.Query != "" {
		where += ` AND instr(lower(name), lower(?)) > 0`
		args = append(args, filter.Query)
	}
	return where, args
}

func getItem(ctx context.Context, q querier, where string, arg any) (*Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE ` + where + ` LIMIT 1`
	item, err := scanItem(q.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying item: %w", err)
	}
	return item, nil
}

func queryItems(ctx context.Context, q querier, query string, args ...any) ([]*Item, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying items: %w", err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating items: %w", err)
	}
	return items, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*Item, error) {
	var (
		item                                Item
		categoryJSON, imagesJSON, filesJSON string
		createdAtStr, updatedAtStr          string
	)
	err := row.Scan(
		&item.ID,
		&item.OwnerRef,
		&item.Name,
		&item.Value,
		&item.Description,
		&categoryJSON,
		&imagesJSON,
		&filesJSON,
		&createdAtStr,
		&updatedAtStr,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(categoryJSON), &item.Category); err != nil {
		return nil, fmt.Errorf("decoding category: %w", err)
	}
	if err := json.Unmarshal([]byte(imagesJSON), &item.Images); err != nil {
		return nil, fmt.Errorf("decoding images: %w", err)
	}
	if err := json.Unmarshal([]byte(filesJSON), &item.Files); err != nil {
		return nil, fmt.Errorf("decoding files: %w", err)
	}
	if item.Category == nil {
		item.Category = map[string]string{}
	}

	if item.CreatedAt, err = time.Parse(timeLayout, createdAtStr); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if item.UpdatedAt, err = time.Parse(timeLayout, updatedAtStr); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &item, nil
}

func insertItem(ctx context.Context, q querier, item *Item) error {
	category, images, files, err := encodeItemJSON(item)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO items (`+itemColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID,
		item.OwnerRef,
		item.Name,
		item.Value,
		item.Description,
		category,
		images,
		files,
		item.CreatedAt.UTC().Format(timeLayout),
		item.UpdatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("inserting item %s: %w", item.ID, ErrConflict)
		}
		return fmt.Errorf("inserting item: %w", err)
	}
	return nil
}

func updateItem(ctx context.Context, q querier, item *Item) error {
	category, images, files, err := encodeItemJSON(item)
	if err != nil {
		return err
	}
	result, err := q.ExecContext(ctx, `
		UPDATE items
		SET name = ?, value = ?, description = ?, category_json = ?, images_json = ?, files_json = ?, updated_at = ?
		WHERE id = ? AND owner_ref = ?`,
		item.Name,
		item.Value,
		item.Description,
		category,
		images,
		files,
		item.UpdatedAt.UTC().Format(timeLayout),
		item.ID,
		item.OwnerRef,
	)
	if err != nil {
		return fmt.Errorf("updating item: %w", err)
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

func encodeItemJSON(item *Item) (category, images, files string, err error) {
	cat := item.Category
	if cat == nil {
		cat = map[string]string{}
	}
	b, err := json.Marshal(cat)
	if err != nil {
		return "", "", "", fmt.Errorf("encoding category: %w", err)
	}
	category = string(b)

	if images, err = encodeList(item.Images); err != nil {
		return "", "", "", fmt.Errorf("encoding images: %w", err)
	}
	if files, err = encodeList(item.Files); err != nil {
		return "", "", "", fmt.Errorf("encoding files: %w", err)
	}
	return category, images, files, nil
}

func encodeList(list []string) (string, error) {
	if list == nil {
		list = []string{}
	}
	b, err := json.Marshal(list)
	return string(b), err
}

// applyPatch merges patch into item. Media references already on the item are
// not appended twice.
func applyPatch(item *Item, patch ItemPatch) {
	if patch.Name != nil {
		item.Name = *patch.Name
	}
	if patch.Value != nil {
		item.Value = *patch.Value
	}
	if patch.Description != nil {
		item.Description = *patch.Description
	}
	if len(patch.Category) > 0 && item.Category == nil {
		item.Category = make(map[string]string, len(patch.Category))
	}
	for k, v := range patch.Category {
		item.Category[k] = v
	}
	item.Images = appendUnique(item.Images, patch.Images)
	item.Files = appendUnique(item.Files, patch.Files)
}

func appendUnique(dst, src []string) []string {
	for _, ref := range src {
		if ref == "" || slices.Contains(dst, ref) {
			continue
		}
		dst = append(dst, ref)
	}
	return dst
}
