package provider

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"wisefido-records/internal/store"

	"github.com/google/uuid"
)

// Op names a router operation.
type Op string

const (
	OpQuery      Op = "query"
	OpInsert     Op = "insert"
	OpBulkInsert Op = "bulk_insert"
	OpUpdate     Op = "update"
	OpDelete     Op = "delete"
)

// Kind is the closed set of delegate variants.
type Kind int

const (
	// KindCollection covers every row of one table.
	KindCollection Kind = iota
	// KindItem covers the rows of one table whose id column equals the last path segment.
	KindItem
	// KindInsertableItem is KindItem plus upsert on insert.
	KindInsertableItem
	// KindInsertableSingleItem addresses a fixed row without a path identifier.
	KindInsertableSingleItem
	// KindView runs a read-only computed query.
	KindView
)

func (k Kind) String() string {
	switch k {
	case KindCollection:
		return "collection"
	case KindItem:
		return "item"
	case KindInsertableItem:
		return "insertable_item"
	case KindInsertableSingleItem:
		return "insertable_single_item"
	case KindView:
		return "view"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Query carries read parameters. Selection is a SQL boolean expression with ? placeholders.
// Rank is a trusted ordering expression applied before SortOrder, such as
// location.Tree.SortClause; it must never carry caller input.
type Query struct {
	Projection []string
	Selection  string
	Args       []any
	SortOrder  string
	Rank       string
}

func (q Query) empty() bool {
	return len(q.Projection) == 0 && q.Selection == "" && len(q.Args) == 0 && q.SortOrder == "" && q.Rank == ""
}

// ViewContext is handed to a computed view.
type ViewContext struct {
	DB      store.DBTX
	Dialect store.Dialect
	Params  []string
}

// ViewFunc produces the rows of a computed view.
type ViewFunc func(ctx context.Context, v ViewContext) (*store.Cursor, error)

// Delegate handles one registered path pattern. Build one with the
// Collection, Item, InsertableItem, InsertableSingleItem or View constructors.
type Delegate struct {
	kind     Kind
	table    store.Table
	idColumn string
	fixedID  any
	view     ViewFunc
}

func Collection(t store.Table) Delegate {
	return Delegate{kind: KindCollection, table: t}
}

func Item(t store.Table, idColumn string) Delegate {
	return Delegate{kind: KindItem, table: t, idColumn: idColumn}
}

func InsertableItem(t store.Table, idColumn string) Delegate {
	return Delegate{kind: KindInsertableItem, table: t, idColumn: idColumn}
}

func InsertableSingleItem(t store.Table, idColumn string, id any) Delegate {
	return Delegate{kind: KindInsertableSingleItem, table: t, idColumn: idColumn, fixedID: id}
}

func View(fn ViewFunc) Delegate {
	return Delegate{kind: KindView, view: fn}
}

// Kind returns the delegate variant.
func (d Delegate) Kind() Kind { return d.kind }

// Table returns the backing table; views have none.
func (d Delegate) Table() store.Table { return d.table }

func (d Delegate) needsIDSegment() bool {
	return d.kind == KindItem || d.kind == KindInsertableItem
}

// ResourceID identifies an inserted row.
type ResourceID struct {
	Path string
	Key  string
}

func (r ResourceID) String() string {
	if r.Key == "" {
		return r.Path
	}
	return r.Path + "/" + r.Key
}

type executor struct {
	db      *sql.DB
	dialect store.Dialect
	now     func() time.Time
}

// scope returns the selection a delegate applies before the caller's own filter.
func (d Delegate) scope(m Match) *store.Selection {
	switch d.kind {
	case KindItem, KindInsertableItem:
		return store.NewSelection(d.idColumn+" = ?", m.ID())
	case KindInsertableSingleItem:
		return store.NewSelection(d.idColumn+" = ?", d.fixedID)
	default:
		return &store.Selection{}
	}
}

func (d Delegate) query(ctx context.Context, e *executor, m Match, q Query) (*store.Cursor, error) {
	if d.kind == KindView {
		if !q.empty() {
			return nil, fmt.Errorf("%w: %s", ErrViewQuery, m.Path)
		}
		return d.view(ctx, ViewContext{DB: e.db, Dialect: e.dialect, Params: m.Params})
	}
	sel := d.scope(m).Where(q.Selection, q.Args...).RankBy(q.Rank)
	query, args, err := e.dialect.SelectSQL(d.table, q.Projection, sel, q.SortOrder)
	if err != nil {
		return nil, err
	}
	rows, err := e.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", d.table.Name, err)
	}
	return store.NewCursor(rows)
}

func (d Delegate) insert(ctx context.Context, e *executor, m Match, values store.Values) (ResourceID, error) {
	switch d.kind {
	case KindCollection:
		v := withRecordedTime(d.table, withGeneratedKey(d.table, values), e.now())
		if err := upsert(ctx, e, e.db, d.table, v); err != nil {
			return ResourceID{}, err
		}
		return ResourceID{Path: m.Path, Key: v.KeyString(d.table)}, nil
	case KindInsertableItem:
		return ResourceID{Path: m.Path}, d.upsertItem(ctx, e, m.ID(), values)
	case KindInsertableSingleItem:
		return ResourceID{Path: m.Path}, d.upsertItem(ctx, e, d.fixedID, values)
	default:
		return ResourceID{}, unsupported(OpInsert, m.Path)
	}
}

func (d Delegate) bulkInsert(ctx context.Context, e *executor, m Match, list []store.Values) (int, error) {
	if d.kind != KindCollection {
		return 0, unsupported(OpBulkInsert, m.Path)
	}
	if len(list) == 0 {
		return 0, nil
	}

	rows := make([]store.Values, len(list))
	var cols []string
	recorded := e.now()
	for i, values := range list {
		rows[i] = withRecordedTime(d.table, withGeneratedKey(d.table, values), recorded)
		rowCols, err := rows[i].ColumnsFor(d.table)
		if err != nil {
			return 0, fmt.Errorf("row %d: %w", i, err)
		}
		if i == 0 {
			cols = rowCols
		} else if rows[i].Signature() != rows[0].Signature() {
			return 0, fmt.Errorf("%w: row %d", ErrMixedColumns, i)
		}
	}

	err := store.WithTx(ctx, e.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, e.dialect.UpsertSQL(d.table, cols))
		if err != nil {
			return fmt.Errorf("failed to prepare insert into %s: %w", d.table.Name, err)
		}
		defer stmt.Close()
		for i, row := range rows {
			if _, err := stmt.ExecContext(ctx, row.Args(cols)...); err != nil {
				return fmt.Errorf("failed to insert row %d into %s: %w", i, d.table.Name, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

func (d Delegate) update(ctx context.Context, e *executor, m Match, values store.Values, selection string, args []any) (int, error) {
	if d.kind == KindView {
		return 0, unsupported(OpUpdate, m.Path)
	}
	sel := d.scope(m).Where(selection, args...)
	query, qargs, err := e.dialect.UpdateSQL(d.table, values, sel)
	if err != nil {
		return 0, err
	}
	return execCount(ctx, e.db, d.table, query, qargs)
}

func (d Delegate) delete(ctx context.Context, e *executor, m Match, selection string, args []any) (int, error) {
	if d.kind == KindView {
		return 0, unsupported(OpDelete, m.Path)
	}
	query, qargs := e.dialect.DeleteSQL(d.table, d.scope(m).Where(selection, args...))
	return execCount(ctx, e.db, d.table, query, qargs)
}

// upsertItem updates the rows matching id, and the other key columns present
// in values, keeping unsupplied columns; it inserts when nothing matched.
func (d Delegate) upsertItem(ctx context.Context, e *executor, id any, values store.Values) error {
	v := values.Clone()
	v[d.idColumn] = id
	if _, err := v.ColumnsFor(d.table); err != nil {
		return err
	}

	sel := store.NewSelection(d.idColumn+" = ?", id)
	settable := store.Values{}
	for _, c := range v.Columns() {
		switch {
		case c == d.idColumn:
		case d.table.IsKey(c):
			sel.Where(c+" = ?", v[c])
		default:
			settable[c] = v[c]
		}
	}

	return store.WithTx(ctx, e.db, func(tx *sql.Tx) error {
		var matched int64
		if len(settable) == 0 {
			query, args := e.dialect.CountSQL(d.table, sel)
			if err := tx.QueryRowContext(ctx, query, args...).Scan(&matched); err != nil {
				return fmt.Errorf("failed to look up %s: %w", d.table.Name, err)
			}
		} else {
			query, args, err := e.dialect.UpdateSQL(d.table, settable, sel)
			if err != nil {
				return err
			}
			res, err := tx.ExecContext(ctx, query, args...)
			if err != nil {
				return fmt.Errorf("failed to update %s: %w", d.table.Name, err)
			}
			if matched, err = res.RowsAffected(); err != nil {
				return fmt.Errorf("failed to read affected rows: %w", err)
			}
		}
		if matched > 0 {
			return nil
		}
		cols := v.Columns()
		if _, err := tx.ExecContext(ctx, e.dialect.InsertSQL(d.table, cols), v.Args(cols)...); err != nil {
			return fmt.Errorf("failed to insert into %s: %w", d.table.Name, err)
		}
		return nil
	})
}

func upsert(ctx context.Context, e *executor, db store.DBTX, t store.Table, v store.Values) error {
	cols, err := v.ColumnsFor(t)
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, e.dialect.UpsertSQL(t, cols), v.Args(cols)...); err != nil {
		return fmt.Errorf("failed to insert into %s: %w", t.Name, err)
	}
	return nil
}

func execCount(ctx context.Context, db store.DBTX, t store.Table, query string, args []any) (int, error) {
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to write %s: %w", t.Name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return int(n), nil
}

// withRecordedTime stamps the table's recorded column when the writer left it out.
func withRecordedTime(t store.Table, values store.Values, now time.Time) store.Values {
	if t.RecordedColumn == "" {
		return values
	}
	if v, ok := values[t.RecordedColumn]; ok && v != nil {
		return values
	}
	out := values.Clone()
	out[t.RecordedColumn] = now.Unix()
	return out
}

// withGeneratedKey fills a missing generated key with a random UUID.
func withGeneratedKey(t store.Table, values store.Values) store.Values {
	if t.GeneratedKey == "" {
		return values
	}
	if v, ok := values[t.GeneratedKey]; ok && v != nil && v != "" {
		return values
	}
	out := values.Clone()
	out[t.GeneratedKey] = uuid.NewString()
	return out
}
