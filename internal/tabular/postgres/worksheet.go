// Package postgres implements the tabular.Worksheet interface on a Postgres
// relation, one row per worksheet row.
package postgres

import (
	"context"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB is the subset of pgxpool.Pool the worksheet needs. pgxmock satisfies it
// in tests.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

var validIdent = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Worksheet stores rows as (pos bigint, cells text[]); pos 1 is the header.
type Worksheet struct {
	db    DB
	table string
}

// NewWorksheet wraps an existing connection pool. The table name is
// interpolated into SQL, so it is restricted to a plain identifier.
func NewWorksheet(db DB, table string) (*Worksheet, error) {
	if !validIdent.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &Worksheet{db: db, table: table}, nil
}

// Connect opens a pool and verifies connectivity.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

// EnsureRelation creates the backing relation if it does not exist.
func (w *Worksheet) EnsureRelation(ctx context.Context) error {
	ddl := fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s (pos bigint PRIMARY KEY, cells text[] NOT NULL)`, w.table)
	if _, err := w.db.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("ensure table %s: %w", w.table, err)
	}
	return nil
}

// Rows returns the whole table in position order.
func (w *Worksheet) Rows(ctx context.Context) ([][]string, error) {
	rows, err := w.db.Query(ctx, fmt.Sprintf(`SELECT cells FROM %s ORDER BY pos`, w.table))
	if err != nil {
		return nil, fmt.Errorf("select from %s: %w", w.table, err)
	}
	defer rows.Close()

	var out [][]string
	for rows.Next() {
		var cells []string
		if err := rows.Scan(&cells); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, cells)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", w.table, err)
	}
	return out, nil
}

// Append inserts rows after the current maximum position, atomically.
func (w *Worksheet) Append(ctx context.Context, rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := w.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	stmt := fmt.Sprintf(
		`INSERT INTO %s (pos, cells) SELECT COALESCE(MAX(pos), 0) + 1, $1 FROM %s`,
		w.table, w.table)
	for _, row := range rows {
		if _, err := tx.Exec(ctx, stmt, row); err != nil {
			return fmt.Errorf("append row to %s: %w", w.table, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit append: %w", err)
	}
	return nil
}

// SetRow upserts row n.
func (w *Worksheet) SetRow(ctx context.Context, n int, cells []string) error {
	if n < 1 {
		return fmt.Errorf("row index %d out of range", n)
	}
	stmt := fmt.Sprintf(
		`INSERT INTO %s (pos, cells) VALUES ($1, $2)
		 ON CONFLICT (pos) DO UPDATE SET cells = EXCLUDED.cells`, w.table)
	if _, err := w.db.Exec(ctx, stmt, n, cells); err != nil {
		return fmt.Errorf("set row %d in %s: %w", n, w.table, err)
	}
	return nil
}

// SetCell overwrites a single cell of an existing row.
func (w *Worksheet) SetCell(ctx context.Context, row, col int, value string) error {
	if row < 1 || col < 1 {
		return fmt.Errorf("cell %d,%d out of range", row, col)
	}
	stmt := fmt.Sprintf(`UPDATE %s SET cells[$1] = $2 WHERE pos = $3`, w.table)
	tag, err := w.db.Exec(ctx, stmt, col, value, row)
	if err != nil {
		return fmt.Errorf("set cell %d,%d in %s: %w", row, col, w.table, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("row %d not present in %s", row, w.table)
	}
	return nil
}
