// Package history records every dispatch in SQLite for inspection by the API
// and the watch TUI. It is observability only; the dispatch path never reads
// it back.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/snipq/snipq/internal/provider"
)

type Status string

const (
	StatusFetching  Status = "fetching"
	StatusDelivered Status = "delivered"
	StatusFailed    Status = "failed"
	StatusDropped   Status = "dropped"
)

// Record is one dispatch's audit row.
type Record struct {
	ID          string      `json:"id"`
	Destination string      `json:"destination"`
	Provider    provider.ID `json:"provider"`
	Model       string      `json:"model"`
	Status      Status      `json:"status"`
	CacheHit    bool        `json:"cache_hit"`
	Attempts    int         `json:"attempts"`
	CreatedAt   time.Time   `json:"created_at"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
	LastError   *string     `json:"last_error,omitempty"`
}

type Log struct {
	db *sql.DB
}

func NewLog(db *sql.DB) *Log {
	return &Log{db: db}
}

// Begin inserts the row for a dispatch that made it past debounce.
func (l *Log) Begin(ctx context.Context, id, destination string, prov provider.ID, model string) error {
	if id == "" {
		return fmt.Errorf("dispatch id is empty")
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := l.db.ExecContext(ctx, `
INSERT INTO dispatch_log(id, destination, provider, model, status, created_at)
VALUES(?, ?, ?, ?, ?, ?);
`, id, destination, string(prov), model, StatusFetching, now)
	if err != nil {
		return fmt.Errorf("insert dispatch record: %w", err)
	}
	return nil
}

// Complete marks a dispatch terminal.
func (l *Log) Complete(ctx context.Context, id string, status Status, cacheHit bool, attempts int, lastError *string) error {
	if status != StatusDelivered && status != StatusFailed && status != StatusDropped {
		return fmt.Errorf("invalid terminal status: %q", status)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := l.db.ExecContext(ctx, `
UPDATE dispatch_log
SET status = ?, cache_hit = ?, attempts = ?, completed_at = ?, last_error = ?
WHERE id = ?;
`, status, cacheHit, attempts, now, lastError, id)
	if err != nil {
		return fmt.Errorf("update dispatch record: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("dispatch record %q not found", id)
	}
	return nil
}

// Recent returns the newest records, newest first.
func (l *Log) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.db.QueryContext(ctx, `
SELECT id, destination, provider, model, status, cache_hit, attempts, created_at, completed_at, last_error
FROM dispatch_log
ORDER BY created_at DESC, rowid DESC
LIMIT ?;
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list dispatch records: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Get returns a single record by full dispatch ID.
func (l *Log) Get(ctx context.Context, id string) (*Record, error) {
	row := l.db.QueryRowContext(ctx, `
SELECT id, destination, provider, model, status, cache_hit, attempts, created_at, completed_at, last_error
FROM dispatch_log
WHERE id = ?;
`, id)
	r, err := scanRecord(row)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// FindByPrefix returns records whose ID starts with prefix, capped at a
// handful so ambiguity is detectable without dragging the whole table.
func (l *Log) FindByPrefix(ctx context.Context, prefix string) ([]Record, error) {
	rows, err := l.db.QueryContext(ctx, `
SELECT id, destination, provider, model, status, cache_hit, attempts, created_at, completed_at, last_error
FROM dispatch_log
WHERE id LIKE ? || '%'
ORDER BY created_at DESC, rowid DESC
LIMIT 10;
`, prefix)
	if err != nil {
		return nil, fmt.Errorf("find dispatch records: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var (
		r           Record
		prov        string
		statusS     string
		createdAt   string
		completedAt sql.NullString
		lastError   sql.NullString
	)
	if err := row.Scan(&r.ID, &r.Destination, &prov, &r.Model, &statusS, &r.CacheHit, &r.Attempts, &createdAt, &completedAt, &lastError); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r, err
		}
		return r, fmt.Errorf("scan dispatch record: %w", err)
	}
	r.Provider = provider.ID(prov)
	r.Status = Status(statusS)
	if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		r.CreatedAt = t
	}
	if completedAt.Valid {
		if t, err := time.Parse(time.RFC3339Nano, completedAt.String); err == nil {
			r.CompletedAt = &t
		}
	}
	if lastError.Valid {
		r.LastError = &lastError.String
	}
	return r, nil
}

// Prune deletes records older than retention. Used by the periodic sweep.
func (l *Log) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	if retention <= 0 {
		return 0, nil
	}
	cutoff := time.Now().UTC().Add(-retention).Format(time.RFC3339Nano)
	res, err := l.db.ExecContext(ctx, `DELETE FROM dispatch_log WHERE created_at < ?;`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune dispatch log: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
