package store

import (
	"fmt"
	"strconv"
	"strings"
)

// Dialect selects the SQL flavour for placeholders and upserts.
type Dialect int

const (
	SQLite Dialect = iota
	Postgres
)

func (d Dialect) String() string {
	switch d {
	case Postgres:
		return "postgres"
	default:
		return "sqlite"
	}
}

// DialectFor maps a driver name to its dialect.
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case "", "sqlite", "sqlite3":
		return SQLite, nil
	case "postgres", "postgresql":
		return Postgres, nil
	default:
		return SQLite, fmt.Errorf("unsupported store driver %q", driver)
	}
}

// Rebind rewrites ? placeholders into the dialect's form.
// Placeholders inside single-quoted literals are left alone.
func (d Dialect) Rebind(query string) string {
	if d != Postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	quoted := false
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'':
			quoted = !quoted
			b.WriteByte(c)
		case c == '?' && !quoted:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// UpsertSQL returns a replace-on-conflict insert of cols into t.
// The row that wins a conflict replaces the previous one entirely:
// columns not supplied revert to their defaults.
func (d Dialect) UpsertSQL(t Table, cols []string) string {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	colList := strings.Join(cols, ", ")

	if d != Postgres {
		return fmt.Sprintf("INSERT OR REPLACE INTO %s (%s) VALUES (%s)", t.Name, colList, placeholders)
	}

	supplied := make(map[string]bool, len(cols))
	for _, c := range cols {
		supplied[c] = true
	}
	var sets []string
	for _, c := range t.Columns {
		if t.IsKey(c) {
			continue
		}
		if supplied[c] {
			sets = append(sets, c+" = EXCLUDED."+c)
		} else {
			sets = append(sets, c+" = DEFAULT")
		}
	}
	conflict := "DO NOTHING"
	if len(sets) > 0 {
		conflict = "DO UPDATE SET " + strings.Join(sets, ", ")
	}
	return d.Rebind(fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) %s",
		t.Name, colList, placeholders, strings.Join(t.Key, ", "), conflict))
}

// InsertSQL returns a plain insert of cols into t.
func (d Dialect) InsertSQL(t Table, cols []string) string {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	return d.Rebind(fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", t.Name, strings.Join(cols, ", "), placeholders))
}
