package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS record_seq (
	id   INTEGER PRIMARY KEY CHECK (id = 1),
	next INTEGER NOT NULL
);
INSERT OR IGNORE INTO record_seq (id, next) VALUES (1, 0);

CREATE TABLE IF NOT EXISTS records (
	id         INTEGER PRIMARY KEY,
	created_at INTEGER NOT NULL,
	data       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_records_created_at ON records(created_at);
`

// SQLiteStore persists records as JSON rows in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path and applies the schema.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_txlock=immediate", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite %q: %w", path, err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init sqlite schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Create(ctx context.Context, rec Record) (int64, error) {
	defer observe(BackendSQLite, "create", time.Now())

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: begin: %v", ErrStore, err)
	}
	defer func() { _ = tx.Rollback() }()

	var id int64
	if err := tx.QueryRowContext(ctx, `UPDATE record_seq SET next = next + 1 WHERE id = 1 RETURNING next - 1`).Scan(&id); err != nil {
		return 0, fmt.Errorf("%w: next id: %v", ErrStore, err)
	}
	rec.ID = id
	data, err := json.Marshal(rec)
	if err != nil {
		return 0, fmt.Errorf("%w: encode record: %v", ErrStore, err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO records (id, created_at, data) VALUES (?, ?, ?)`,
		id, rec.CreatedAt.UnixNano(), string(data)); err != nil {
		return 0, fmt.Errorf("%w: insert: %v", ErrStore, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: commit: %v", ErrStore, err)
	}
	return id, nil
}

func (s *SQLiteStore) Get(ctx context.Context, id int64) (Record, error) {
	defer observe(BackendSQLite, "get", time.Now())
	return s.load(ctx, s.db, id)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLiteStore) load(ctx context.Context, q queryer, id int64) (Record, error) {
	var data string
	err := q.QueryRowContext(ctx, `SELECT data FROM records WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("%w: select: %v", ErrStore, err)
	}
	var rec Record
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return Record{}, fmt.Errorf("%w: decode record %d: %v", ErrStore, id, err)
	}
	rec.ID = id
	return rec, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id int64) (Record, error) {
	defer observe(BackendSQLite, "delete", time.Now())

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Record{}, fmt.Errorf("%w: begin: %v", ErrStore, err)
	}
	defer func() { _ = tx.Rollback() }()

	rec, err := s.load(ctx, tx, id)
	if err != nil {
		return Record{}, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE id = ?`, id); err != nil {
		return Record{}, fmt.Errorf("%w: delete: %v", ErrStore, err)
	}
	if err := tx.Commit(); err != nil {
		return Record{}, fmt.Errorf("%w: commit: %v", ErrStore, err)
	}
	return rec, nil
}

func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records`).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: count: %v", ErrStore, err)
	}
	return n, nil
}

func (s *SQLiteStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	defer observe(BackendSQLite, "sweep", time.Now())
	res, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE created_at < ?`, cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("%w: sweep: %v", ErrStore, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: sweep: %v", ErrStore, err)
	}
	return int(n), nil
}

// Close closes the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
