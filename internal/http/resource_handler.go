package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"wisefido-records/internal/provider"
	"wisefido-records/internal/store"

	"go.uber.org/zap"
)

// Resources is the resource router as used over HTTP.
type Resources interface {
	Resolve(path string) (provider.Match, error)
	Query(ctx context.Context, path string, q provider.Query) (*store.Cursor, error)
	Insert(ctx context.Context, path string, values store.Values) (provider.ResourceID, error)
	BulkInsert(ctx context.Context, path string, rows []store.Values) (int, error)
	Update(ctx context.Context, path string, values store.Values, selection string, args ...any) (int, error)
	Delete(ctx context.Context, path string, selection string, args ...any) (int, error)
}

// Reserved query parameters; every other parameter filters a column.
const (
	paramColumns = "columns"
	paramOrder   = "order"
	prefixMin    = "min_"
	prefixMax    = "max_"
)

// ResourceHandler maps HTTP verbs onto router operations:
// GET query, POST insert (object) or bulk insert (array), PUT update, DELETE delete.
type ResourceHandler struct {
	resources Resources
	logger    *zap.Logger
}

func NewResourceHandler(resources Resources, logger *zap.Logger) *ResourceHandler {
	return &ResourceHandler{resources: resources, logger: logger}
}

// ServeResource handles /records/api/v1/resources/{path...}
func (h *ResourceHandler) ServeResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, apiPrefix+"/resources")
	match, err := h.resources.Resolve(path)
	if err != nil {
		writeError(w, err)
		return
	}
	sel, args, err := filters(match, r.URL.Query())
	if err != nil {
		writeError(w, err)
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.query(w, r, match.Path, sel, args)
	case http.MethodPost:
		h.insert(w, r, match.Path)
	case http.MethodPut:
		h.update(w, r, match.Path, sel, args)
	case http.MethodDelete:
		n, err := h.resources.Delete(r.Context(), match.Path, sel, args...)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, Ok(map[string]int{"count": n}))
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *ResourceHandler) query(w http.ResponseWriter, r *http.Request, path, sel string, args []any) {
	q := r.URL.Query()
	cur, err := h.resources.Query(r.Context(), path, provider.Query{
		Projection: splitList(q.Get(paramColumns)),
		Selection:  sel,
		Args:       args,
		SortOrder:  q.Get(paramOrder),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	rows, err := cur.All()
	if err != nil {
		writeError(w, err)
		return
	}
	if rows == nil {
		rows = []store.Row{}
	}
	writeJSON(w, http.StatusOK, Ok(rows))
}

func (h *ResourceHandler) insert(w http.ResponseWriter, r *http.Request, path string) {
	rows, many, err := decodeBody(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if many {
		n, err := h.resources.BulkInsert(r.Context(), path, rows)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, Ok(map[string]int{"count": n}))
		return
	}
	id, err := h.resources.Insert(r.Context(), path, rows[0])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]string{"path": id.Path, "key": id.Key}))
}

func (h *ResourceHandler) update(w http.ResponseWriter, r *http.Request, path, sel string, args []any) {
	rows, many, err := decodeBody(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if many {
		writeError(w, fmt.Errorf("%w: update takes a single object", errBadRequest))
		return
	}
	n, err := h.resources.Update(r.Context(), path, rows[0], sel, args...)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]int{"count": n}))
}

func decodeBody(r *http.Request) ([]store.Values, bool, error) {
	body, err := readBody(r, maxBodyBytes)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	rows, many, err := store.DecodeJSON(body)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if len(rows) == 0 && !many {
		return nil, false, fmt.Errorf("%w: empty body", errBadRequest)
	}
	return rows, many, nil
}

// filters turns column parameters into a selection: col=v, min_col=v and max_col=v.
// Views take no filters.
func filters(m provider.Match, params url.Values) (string, []any, error) {
	table := m.Delegate.Table()
	sel := store.NewSelection("")
	for key, vals := range params {
		if key == paramColumns || key == paramOrder {
			continue
		}
		if m.Delegate.Kind() == provider.KindView {
			return "", nil, fmt.Errorf("%w: views take no filters", errBadRequest)
		}
		col, op := key, "="
		switch {
		case strings.HasPrefix(key, prefixMin) && table.HasColumn(strings.TrimPrefix(key, prefixMin)):
			col, op = strings.TrimPrefix(key, prefixMin), ">="
		case strings.HasPrefix(key, prefixMax) && table.HasColumn(strings.TrimPrefix(key, prefixMax)):
			col, op = strings.TrimPrefix(key, prefixMax), "<="
		}
		if !table.HasColumn(col) {
			return "", nil, fmt.Errorf("%w %q in table %s", store.ErrUnknownColumn, key, table.Name)
		}
		for _, v := range vals {
			sel.Where(col+" "+op+" ?", v)
		}
	}
	return sel.SQL(), sel.Args(), nil
}
