package store

import (
	"fmt"
	"sort"
	"strings"
)

// Values is one row of column values for a write.
type Values map[string]any

// Columns returns the column names in sorted order.
func (v Values) Columns() []string {
	cols := make([]string, 0, len(v))
	for c := range v {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols
}

// ColumnsFor returns the sorted columns after checking them against t.
func (v Values) ColumnsFor(t Table) ([]string, error) {
	if len(v) == 0 {
		return nil, ErrEmptyValues
	}
	cols := v.Columns()
	for _, c := range cols {
		if !identPattern.MatchString(c) || !t.HasColumn(c) {
			return nil, fmt.Errorf("%w %q in table %s", ErrUnknownColumn, c, t.Name)
		}
	}
	return cols, nil
}

// Args returns the values ordered by cols.
func (v Values) Args(cols []string) []any {
	args := make([]any, len(cols))
	for i, c := range cols {
		args[i] = v[c]
	}
	return args
}

// Clone returns a shallow copy.
func (v Values) Clone() Values {
	out := make(Values, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

// Signature identifies the column set, used to reject mixed batches.
func (v Values) Signature() string {
	return strings.Join(v.Columns(), ",")
}

// KeyString renders the values of t's key columns, joined by "/".
func (v Values) KeyString(t Table) string {
	parts := make([]string, len(t.Key))
	for i, k := range t.Key {
		parts[i] = fmt.Sprint(v[k])
	}
	return strings.Join(parts, "/")
}
