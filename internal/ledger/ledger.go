// Package ledger records which post IDs have already been notified.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Ledger is the notified set. It lives in an in-memory SQLite database
// and is lost on restart.
type Ledger struct {
	mu sync.Mutex
	db *sql.DB
}

func Open() (*Ledger, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	// every connection to :memory: is a separate database
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	schema := `
	CREATE TABLE IF NOT EXISTS notified (
		post_id     TEXT PRIMARY KEY,
		notified_at DATETIME NOT NULL
	);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create ledger schema: %w", err)
	}
	return &Ledger{db: db}, nil
}

func (l *Ledger) Close() error {
	return l.db.Close()
}

// FilterAndMark returns the IDs not seen before, in input order, and
// records them as notified. Check and insert run under one lock so two
// concurrent callers never both receive the same ID.
func (l *Ledger) FilterAndMark(ctx context.Context, ids []string) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin ledger tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO notified (post_id, notified_at) VALUES (?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("prepare ledger insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	fresh := make([]string, 0, len(ids))
	for _, id := range ids {
		res, err := stmt.ExecContext(ctx, id, now)
		if err != nil {
			return nil, fmt.Errorf("mark %s: %w", id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("mark %s: %w", id, err)
		}
		if n > 0 {
			fresh = append(fresh, id)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit ledger tx: %w", err)
	}
	return fresh, nil
}

// Clear forgets every notified ID and returns how many were removed.
func (l *Ledger) Clear(ctx context.Context) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	res, err := l.db.ExecContext(ctx, `DELETE FROM notified`)
	if err != nil {
		return 0, fmt.Errorf("clear ledger: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (l *Ledger) Len(ctx context.Context) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var count int
	err := l.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notified`).Scan(&count)
	return count, err
}
