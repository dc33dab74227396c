// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Opens the database, creates the items/trades/sessions schema and runs transactions

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// querier is satisfied by both *sql.DB and *sql.Tx so reads can be shared.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	// Pragmas go in the DSN so every pooled connection gets them.
	// _txlock=immediate makes BeginTx take the write lock up front, so two trade
	// commits queue on busy_timeout instead of failing on lock upgrade.
	dsn := "file:" + path +
		"?_pragma=busy_timeout(5000)" +
		"&_pragma=journal_mode(WAL)" +
		"&_pragma=foreign_keys(ON)" +
		"&_txlock=immediate"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	// owner_ref is indexed but not UNIQUE: a trade swaps two owners one row at a
	// time and SQLite cannot defer unique checks to commit. One item per owner is
	// enforced by UpsertItemByOwner instead.
	schema := `
		CREATE TABLE IF NOT EXISTS items (
			id            TEXT PRIMARY KEY,
			owner_ref     TEXT NOT NULL,
			name          TEXT NOT NULL DEFAULT '',
			value         TEXT NOT NULL DEFAULT '',
			description   TEXT NOT NULL DEFAULT '',
			category_json TEXT NOT NULL DEFAULT '{}',
			images_json   TEXT NOT NULL DEFAULT '[]',
			created_at    TEXT NOT NULL,
			updated_at    TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_items_owner ON items(owner_ref);
		CREATE INDEX IF NOT EXISTS idx_items_created ON items(created_at, id);

		CREATE TABLE IF NOT EXISTS trades (
			id             TEXT PRIMARY KEY,
			item_id        TEXT NOT NULL REFERENCES items(id),
			from_owner_ref TEXT NOT NULL,
			to_owner_ref   TEXT NOT NULL,
			traded_at      TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_trades_item_from ON trades(item_id, from_owner_ref);
		CREATE INDEX IF NOT EXISTS idx_trades_from ON trades(from_owner_ref, traded_at);

		-- The ledger is append-only
		CREATE TRIGGER IF NOT EXISTS trades_no_update
			BEFORE UPDATE ON trades
			BEGIN SELECT RAISE(ABORT, 'trades are append-only'); END;

		CREATE TRIGGER IF NOT EXISTS trades_no_delete
			BEFORE DELETE ON trades
			BEGIN SELECT RAISE(ABORT, 'trades are append-only'); END;

		CREATE TABLE IF NOT EXISTS sessions (
			session_key TEXT PRIMARY KEY,
			state       BLOB NOT NULL,
			updated_at  TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_sessions_updated ON sessions(updated_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// runMigrations applies schema migrations for existing databases.
// These are idempotent - safe to run multiple times.
func (s *SQLiteStore) runMigrations() error {
	// SQLite doesn't support ADD COLUMN IF NOT EXISTS, so we check first
	migrations := []struct {
		table  string
		column string
		apply  string
	}{
		{
			// Private attachments were added after the first release
			table:  "items",
			column: "files_json",
			apply:  `ALTER TABLE items ADD COLUMN files_json TEXT NOT NULL DEFAULT '[]'`,
		},
	}

	for _, m := range migrations {
		var exists int
		err := s.db.QueryRow(
			`SELECT 1 FROM pragma_table_info(?) WHERE name = ?`, m.table, m.column,
		).Scan(&exists)
		if err == nil {
			continue
		}
		if _, err := s.db.Exec(m.apply); err != nil {
			return fmt.Errorf("adding %s column to %s: %w", m.column, m.table, err)
		}
		s.logger.Info("applied migration", "column", m.column, "table", m.table)
	}

	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// WithTx runs fn inside a single write transaction.
// The transaction is rolled back when fn returns an error or panics.
func (s *SQLiteStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer sqlTx.Rollback() //nolint:errcheck // no-op after commit

	if err := fn(&sqliteTx{q: sqlTx}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// isConstraintViolation checks if the error is a SQLite constraint violation
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "constraint failed")
}

// sqliteTx is the Tx handed to WithTx callbacks.
type sqliteTx struct {
	q querier
}

func (t *sqliteTx) GetItem(ctx context.Context, id string) (*Item, error) {
	return getItem(ctx, t.q, "id = ?", id)
}

func (t *sqliteTx) GetItemByOwner(ctx context.Context, ownerRef string) (*Item, error) {
	return getItem(ctx, t.q, "owner_ref = ?", ownerRef)
}

func (t *sqliteTx) CountTrades(ctx context.Context, itemID, fromOwnerRef string) (int, error) {
	return countTrades(ctx, t.q, itemID, fromOwnerRef)
}

func (t *sqliteTx) InsertTrades(ctx context.Context, records []*TradeRecord) (int, error) {
	return insertTrades(ctx, t.q, records)
}

func (t *sqliteTx) ReassignOwner(ctx context.Context, itemID, expectedOwner, newOwner string) error {
	return reassignOwner(ctx, t.q, itemID, expectedOwner, newOwner)
}
