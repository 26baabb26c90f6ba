// Package sqlsource exposes one column of a SQLite query as a one-shot
// sequence source for plans.
//
// The query runs each time the sequence is iterated, and rows are scanned
// as the compiled loop advances its cursor, so nothing is buffered. Values
// are converted to the column's declared element type: int, float, string
// or bool.
package sqlsource

import (
	"context"
	"database/sql"
	"fmt"
	"iter"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/fuseq/internal/expr"
)

// Open opens a SQLite database. dsn is anything go-sqlite3 accepts: a file
// path, "file::memory:", or a file: URI with options.
//
// The pool is limited to one connection, so an in-memory database lives as
// long as the returned *sql.DB.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	return db, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// Column is a query whose first result column is read as a sequence.
type Column struct {
	db    *sql.DB
	ctx   context.Context
	query string
	args  []any
	elem  expr.Type

	mu  sync.Mutex
	err error
}

// NewColumn prepares a column source. The query is not run until the
// sequence is iterated.
func NewColumn(ctx context.Context, db *sql.DB, elem expr.Type, query string, args ...any) (*Column, error) {
	switch elem {
	case expr.IntType, expr.FloatType, expr.StringType, expr.BoolType:
	default:
		return nil, fmt.Errorf("sqlsource: unsupported element type %s", elem)
	}
	return &Column{db: db, ctx: ctx, query: query, args: args, elem: elem}, nil
}

// Sequence returns the column as a sequence value for plan.FromSequence.
func (c *Column) Sequence() *expr.Sequence {
	return expr.NewSequence(c.elem, c.all())
}

// Err returns the error that ended the most recent iteration early, or nil.
// A query or scan failure cannot be reported through the sequence itself;
// the sequence just ends, and callers check Err after running the plan.
func (c *Column) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Column) setErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
}

func (c *Column) all() iter.Seq[any] {
	return func(yield func(any) bool) {
		c.setErr(nil)
		rows, err := c.db.QueryContext(c.ctx, c.query, c.args...)
		if err != nil {
			c.setErr(fmt.Errorf("query: %w", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			v, err := c.scan(rows)
			if err != nil {
				c.setErr(err)
				return
			}
			if !yield(v) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			c.setErr(fmt.Errorf("iterate rows: %w", err))
		}
	}
}

func (c *Column) scan(rows *sql.Rows) (any, error) {
	switch c.elem {
	case expr.IntType:
		var v sql.NullInt64
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		if !v.Valid {
			return nil, fmt.Errorf("scan: NULL in int column")
		}
		return v.Int64, nil
	case expr.FloatType:
		var v sql.NullFloat64
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		if !v.Valid {
			return nil, fmt.Errorf("scan: NULL in float column")
		}
		return v.Float64, nil
	case expr.StringType:
		var v sql.NullString
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		if !v.Valid {
			return nil, fmt.Errorf("scan: NULL in string column")
		}
		return v.String, nil
	default:
		var v sql.NullBool
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		if !v.Valid {
			return nil, fmt.Errorf("scan: NULL in bool column")
		}
		return v.Bool, nil
	}
}
