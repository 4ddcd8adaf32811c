package store

import (
	"database/sql"
	"fmt"
	"strconv"
)

// Row is one result row keyed by column name.
type Row map[string]any

// String returns col as text; NULL and missing columns yield "".
func (r Row) String(col string) string {
	switch v := r[col].(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// Int64 returns col as an integer; NULL and unparsable values yield 0.
func (r Row) Int64(col string) int64 {
	switch v := r[col].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	case []byte:
		n, _ := strconv.ParseInt(string(v), 10, 64)
		return n
	default:
		return 0
	}
}

// IsNull reports whether col is NULL or absent.
func (r Row) IsNull(col string) bool {
	return r[col] == nil
}

// Cursor streams query results. The caller must Close it.
type Cursor struct {
	rows    *sql.Rows
	columns []string
}

// NewCursor wraps rows.
func NewCursor(rows *sql.Rows) (*Cursor, error) {
	cols, err := rows.Columns()
	if err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to read result columns: %w", err)
	}
	return &Cursor{rows: rows, columns: cols}, nil
}

// Columns returns the result column names.
func (c *Cursor) Columns() []string {
	return c.columns
}

// Next advances to the next row.
func (c *Cursor) Next() bool {
	return c.rows.Next()
}

// Scan copies the current row into dest.
func (c *Cursor) Scan(dest ...any) error {
	return c.rows.Scan(dest...)
}

// Row returns the current row as a map.
func (c *Cursor) Row() (Row, error) {
	vals := make([]any, len(c.columns))
	ptrs := make([]any, len(c.columns))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := c.rows.Scan(ptrs...); err != nil {
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}
	row := make(Row, len(c.columns))
	for i, col := range c.columns {
		if b, ok := vals[i].([]byte); ok {
			row[col] = string(b)
		} else {
			row[col] = vals[i]
		}
	}
	return row, nil
}

// Err returns the iteration error, if any.
func (c *Cursor) Err() error {
	return c.rows.Err()
}

// Close releases the underlying rows.
func (c *Cursor) Close() error {
	return c.rows.Close()
}

// All drains the cursor into memory and closes it.
func (c *Cursor) All() ([]Row, error) {
	defer c.Close()
	var out []Row
	for c.Next() {
		row, err := c.Row()
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	if err := c.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}
	return out, nil
}
