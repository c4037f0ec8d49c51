// Package receipts archives resolved promise receipts in SQLite.
package receipts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"assetescrow/core/types"
)

// SQLiteStore persists receipts so continuation outcomes survive restarts.
type SQLiteStore struct {
	db *sql.DB
}

// Filter narrows a receipt listing.
type Filter struct {
	TokenID string
	// FailedOnly restricts the listing to receipts with Success=false.
	FailedOnly bool
	Limit      int
}

// NewSQLiteStore opens (creating if needed) the archive at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	store := &SQLiteStore{db: db}
	if err := store.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) init() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS receipts (
            id TEXT PRIMARY KEY,
            kind TEXT NOT NULL,
            receiver TEXT NOT NULL,
            method TEXT,
            token_id TEXT,
            amount TEXT NOT NULL,
            success INTEGER NOT NULL,
            error TEXT,
            resolved_at TIMESTAMP NOT NULL
        );`,
		`CREATE INDEX IF NOT EXISTS receipts_token ON receipts(token_id);`,
	}
	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("receipts: init schema: %w", err)
		}
	}
	return nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record implements runtime.ReceiptSink. Recording the same receipt id twice
// keeps the first copy.
func (s *SQLiteStore) Record(ctx context.Context, r types.Receipt) error {
	if r.ID == "" {
		return errors.New("receipts: id required")
	}
	resolved := r.ResolvedAt
	if resolved.IsZero() {
		resolved = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO receipts (id, kind, receiver, method, token_id, amount, success, error, resolved_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Kind, r.Receiver.String(), r.Method, r.TokenID, types.FormatAmount(r.Amount),
		boolToInt(r.Success), r.Error, resolved.UTC())
	if err != nil {
		return fmt.Errorf("receipts: insert %s: %w", r.ID, err)
	}
	return nil
}

// Get returns one receipt by id.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*types.Receipt, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, kind, receiver, method, token_id, amount, success, error, resolved_at FROM receipts WHERE id = ?`, id)
	r, err := scanReceipt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return r, true, nil
}

// List returns receipts matching f, most recent first.
func (s *SQLiteStore) List(ctx context.Context, f Filter) ([]types.Receipt, error) {
	query := `SELECT id, kind, receiver, method, token_id, amount, success, error, resolved_at FROM receipts WHERE 1=1`
	args := make([]interface{}, 0, 3)
	if f.TokenID != "" {
		query += ` AND token_id = ?`
		args = append(args, f.TokenID)
	}
	if f.FailedOnly {
		query += ` AND success = 0`
	}
	query += ` ORDER BY resolved_at DESC, rowid DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]types.Receipt, 0)
	for rows.Next() {
		r, err := scanReceipt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanReceipt(sc scanner) (*types.Receipt, error) {
	var (
		r        types.Receipt
		receiver string
		method   sql.NullString
		tokenID  sql.NullString
		amount   string
		success  int
		errText  sql.NullString
		resolved time.Time
	)
	if err := sc.Scan(&r.ID, &r.Kind, &receiver, &method, &tokenID, &amount, &success, &errText, &resolved); err != nil {
		return nil, err
	}
	parsed, err := types.ParseAmount(amount)
	if err != nil {
		return nil, fmt.Errorf("receipts: %s amount: %w", r.ID, err)
	}
	r.Receiver = types.AccountID(receiver)
	r.Method = method.String
	r.TokenID = tokenID.String
	r.Amount = parsed
	r.Success = success != 0
	r.Error = errText.String
	r.ResolvedAt = resolved.UTC()
	return &r, nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
