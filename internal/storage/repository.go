// Package storage persists the last published aggregated view in SQLite.
// The snapshot is a display cache only: a restarted client can show
// last-known data flagged as stale until a fresh refresh lands. It is
// never merged with fresh backend data.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"peppermint/internal/core"

	_ "modernc.org/sqlite"
)

// ErrNoSnapshot means no view has ever been persisted.
var ErrNoSnapshot = errors.New("no snapshot stored")

type SnapshotStore struct {
	db *sql.DB
}

func NewSnapshotStore(dbPath string) (*SnapshotStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SnapshotStore{db: db}, nil
}

func (s *SnapshotStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveView replaces the stored snapshot with the given view. The write is
// transactional so a reader never sees a half-replaced snapshot.
func (s *SnapshotStore) SaveView(ctx context.Context, v core.View, publishedAt time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM snapshot_transactions`); err != nil {
		return fmt.Errorf("clear snapshot: %w", err)
	}

	const insert = `INSERT INTO snapshot_transactions
		(position, transaction_id, account_id, transaction_date, description, category, amount)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	for i, t := range v.Transactions {
		_, err := tx.ExecContext(ctx, insert,
			i, t.ID, t.AccountID, t.Date.UTC().Format(time.RFC3339Nano),
			t.Description, t.Category, t.Amount.String())
		if err != nil {
			return fmt.Errorf("insert snapshot row %d: %w", i, err)
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO snapshot_meta (id, published_at) VALUES (1, ?)
		 ON CONFLICT(id) DO UPDATE SET published_at = excluded.published_at`,
		publishedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("write snapshot meta: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}

	slog.DebugContext(ctx, "Snapshot saved", "transactions", v.Len())
	return nil
}

// LoadView reads back the stored snapshot in its persisted order.
func (s *SnapshotStore) LoadView(ctx context.Context) (core.View, time.Time, error) {
	var publishedRaw string
	err := s.db.QueryRowContext(ctx, `SELECT published_at FROM snapshot_meta WHERE id = 1`).Scan(&publishedRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return core.View{}, time.Time{}, ErrNoSnapshot
	}
	if err != nil {
		return core.View{}, time.Time{}, fmt.Errorf("read snapshot meta: %w", err)
	}
	publishedAt, err := time.Parse(time.RFC3339Nano, publishedRaw)
	if err != nil {
		return core.View{}, time.Time{}, fmt.Errorf("parse published_at: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT transaction_id, account_id, transaction_date,
		description, category, amount FROM snapshot_transactions ORDER BY position`)
	if err != nil {
		return core.View{}, time.Time{}, fmt.Errorf("read snapshot rows: %w", err)
	}
	defer rows.Close()

	var txs []core.Transaction
	for rows.Next() {
		var t core.Transaction
		var dateRaw, amountRaw string
		if err := rows.Scan(&t.ID, &t.AccountID, &dateRaw, &t.Description, &t.Category, &amountRaw); err != nil {
			return core.View{}, time.Time{}, fmt.Errorf("scan snapshot row: %w", err)
		}
		if t.Date, err = time.Parse(time.RFC3339Nano, dateRaw); err != nil {
			return core.View{}, time.Time{}, fmt.Errorf("parse transaction date: %w", err)
		}
		if t.Amount, err = decimal.NewFromString(amountRaw); err != nil {
			return core.View{}, time.Time{}, fmt.Errorf("parse amount: %w", err)
		}
		txs = append(txs, t)
	}
	if err := rows.Err(); err != nil {
		return core.View{}, time.Time{}, fmt.Errorf("iterate snapshot rows: %w", err)
	}

	return core.View{Transactions: txs}, publishedAt, nil
}
