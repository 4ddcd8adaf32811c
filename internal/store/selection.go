package store

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	ErrUnknownColumn   = errors.New("unknown column")
	ErrInvalidOrdering = errors.New("invalid ordering clause")
	ErrEmptyValues     = errors.New("no values supplied")
)

var (
	identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	orderPattern = regexp.MustCompile(`(?i)^[A-Za-z_][A-Za-z0-9_.]*(\s+(ASC|DESC))?$`)
)

// Selection accumulates WHERE clauses joined with AND, plus an optional
// ranking expression ordered on before any caller ordering.
type Selection struct {
	clauses []string
	args    []any
	rank    string
}

// NewSelection starts a selection from a caller supplied filter expression.
func NewSelection(expr string, args ...any) *Selection {
	return (&Selection{}).Where(expr, args...)
}

// Where appends a clause; empty clauses are ignored.
func (s *Selection) Where(expr string, args ...any) *Selection {
	if strings.TrimSpace(expr) == "" {
		return s
	}
	s.clauses = append(s.clauses, "("+expr+")")
	s.args = append(s.args, args...)
	return s
}

// RankBy sets a trusted SQL expression rows are ordered by first. It is
// not validated and must never carry caller input.
func (s *Selection) RankBy(expr string) *Selection {
	s.rank = strings.TrimSpace(expr)
	return s
}

// SQL returns the combined expression without the WHERE keyword.
func (s *Selection) SQL() string {
	if s == nil {
		return ""
	}
	return strings.Join(s.clauses, " AND ")
}

// Args returns the positional arguments in clause order.
func (s *Selection) Args() []any {
	if s == nil {
		return nil
	}
	return s.args
}

func (s *Selection) whereSQL() string {
	if expr := s.SQL(); expr != "" {
		return " WHERE " + expr
	}
	return ""
}

// ValidateProjection checks that every projected column belongs to t.
func ValidateProjection(t Table, projection []string) error {
	for _, col := range projection {
		if !t.HasColumn(col) {
			return fmt.Errorf("%w %q in table %s", ErrUnknownColumn, col, t.Name)
		}
	}
	return nil
}

// ValidateOrdering accepts comma separated "column [ASC|DESC]" terms.
func ValidateOrdering(order string) error {
	if strings.TrimSpace(order) == "" {
		return nil
	}
	for _, term := range strings.Split(order, ",") {
		if !orderPattern.MatchString(strings.TrimSpace(term)) {
			return fmt.Errorf("%w: %q", ErrInvalidOrdering, order)
		}
	}
	return nil
}

// SelectSQL builds a SELECT over t.
func (d Dialect) SelectSQL(t Table, projection []string, sel *Selection, order string) (string, []any, error) {
	if err := ValidateProjection(t, projection); err != nil {
		return "", nil, err
	}
	if err := ValidateOrdering(order); err != nil {
		return "", nil, err
	}
	cols := "*"
	if len(projection) > 0 {
		cols = strings.Join(projection, ", ")
	}
	query := "SELECT " + cols + " FROM " + t.Name + sel.whereSQL()
	var terms []string
	if sel != nil && sel.rank != "" {
		terms = append(terms, sel.rank)
	}
	if order != "" {
		terms = append(terms, order)
	}
	if len(terms) > 0 {
		query += " ORDER BY " + strings.Join(terms, ", ")
	}
	return d.Rebind(query), sel.Args(), nil
}

// UpdateSQL builds an UPDATE of values over the rows matched by sel.
func (d Dialect) UpdateSQL(t Table, values Values, sel *Selection) (string, []any, error) {
	cols, err := values.ColumnsFor(t)
	if err != nil {
		return "", nil, err
	}
	sets := make([]string, len(cols))
	args := make([]any, 0, len(cols)+len(sel.Args()))
	for i, c := range cols {
		sets[i] = c + " = ?"
		args = append(args, values[c])
	}
	args = append(args, sel.Args()...)
	query := "UPDATE " + t.Name + " SET " + strings.Join(sets, ", ") + sel.whereSQL()
	return d.Rebind(query), args, nil
}

// DeleteSQL builds a DELETE over the rows matched by sel.
func (d Dialect) DeleteSQL(t Table, sel *Selection) (string, []any) {
	return d.Rebind("DELETE FROM " + t.Name + sel.whereSQL()), sel.Args()
}

// CountSQL builds a COUNT(*) over the rows matched by sel.
func (d Dialect) CountSQL(t Table, sel *Selection) (string, []any) {
	return d.Rebind("SELECT COUNT(*) FROM " + t.Name + sel.whereSQL()), sel.Args()
}
