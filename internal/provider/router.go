package provider

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"wisefido-records/internal/metrics"
	"wisefido-records/internal/notify"
	"wisefido-records/internal/store"

	"go.uber.org/zap"
)

// Match is the outcome of resolving a path.
type Match struct {
	Pattern  string
	Path     string
	Params   []string
	Delegate Delegate
}

// ID returns the last wildcard segment, the item identifier for item delegates.
func (m Match) ID() string {
	if len(m.Params) == 0 {
		return ""
	}
	return m.Params[len(m.Params)-1]
}

type route struct {
	pattern  pattern
	delegate Delegate
}

// Router dispatches resource paths to delegates and announces every successful mutation.
type Router struct {
	exec     *executor
	notifier notify.Notifier
	metrics  *metrics.Router
	logger   *zap.Logger

	mu     sync.RWMutex
	routes []route
}

// Option configures a Router.
type Option func(*Router)

// WithNotifier sets the change notifier; the default discards notifications.
func WithNotifier(n notify.Notifier) Option {
	return func(r *Router) {
		if n != nil {
			r.notifier = n
		}
	}
}

// WithClock sets the clock used for recorded times.
func WithClock(now func() time.Time) Option {
	return func(r *Router) { r.exec.now = now }
}

// WithMetrics records call counts and latency.
func WithMetrics(m *metrics.Router) Option {
	return func(r *Router) { r.metrics = m }
}

// NewRouter creates a router with no registrations.
func NewRouter(db *sql.DB, dialect store.Dialect, logger *zap.Logger, opts ...Option) *Router {
	r := &Router{
		exec:     &executor{db: db, dialect: dialect, now: time.Now},
		notifier: notify.Nop{},
		logger:   logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register binds a path pattern to d. Patterns overlapping an existing
// registration are rejected with ErrDuplicateRegistration.
func (r *Router) Register(path string, d Delegate) error {
	p := pattern(splitPath(path))

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.routes {
		if existing.pattern.overlaps(p) {
			return fmt.Errorf("%w: %s overlaps %s", ErrDuplicateRegistration, p, existing.pattern)
		}
	}
	if d.needsIDSegment() && (len(p) == 0 || p[len(p)-1] != Wildcard) {
		return fmt.Errorf("%s delegate on %s must end with a wildcard segment", d.kind, p)
	}
	if d.kind == KindView && d.view == nil {
		return fmt.Errorf("view delegate on %s has no query", p)
	}
	r.routes = append(r.routes, route{pattern: p, delegate: d})
	return nil
}

// Resolve finds the single delegate whose pattern matches path.
func (r *Router) Resolve(path string) (Match, error) {
	segs := splitPath(path)

	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rt := range r.routes {
		if params, ok := rt.pattern.match(segs); ok {
			return Match{
				Pattern:  rt.pattern.String(),
				Path:     NormalizePath(path),
				Params:   params,
				Delegate: rt.delegate,
			}, nil
		}
	}
	return Match{}, fmt.Errorf("%w for %s", ErrNoMatchingDelegate, NormalizePath(path))
}

// Patterns lists the registered patterns in sorted order.
func (r *Router) Patterns() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.routes))
	for i, rt := range r.routes {
		out[i] = rt.pattern.String()
	}
	sort.Strings(out)
	return out
}

// Query returns a cursor the caller must close.
func (r *Router) Query(ctx context.Context, path string, q Query) (cur *store.Cursor, err error) {
	m, err := r.Resolve(path)
	if err != nil {
		return nil, err
	}
	defer r.observe(OpQuery, m, time.Now(), &err)
	return m.Delegate.query(ctx, r.exec, m, q)
}

// Insert writes one row and returns its identifier.
func (r *Router) Insert(ctx context.Context, path string, values store.Values) (id ResourceID, err error) {
	m, err := r.Resolve(path)
	if err != nil {
		return ResourceID{}, err
	}
	defer r.observe(OpInsert, m, time.Now(), &err)
	if id, err = m.Delegate.insert(ctx, r.exec, m, values); err != nil {
		return ResourceID{}, err
	}
	r.metrics.RowsWritten(string(OpInsert), 1)
	r.notifier.Notify(m.Path)
	return id, nil
}

// BulkInsert writes every row in one transaction, or none of them.
func (r *Router) BulkInsert(ctx context.Context, path string, rows []store.Values) (n int, err error) {
	m, err := r.Resolve(path)
	if err != nil {
		return 0, err
	}
	defer r.observe(OpBulkInsert, m, time.Now(), &err)
	if n, err = m.Delegate.bulkInsert(ctx, r.exec, m, rows); err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, nil
	}
	r.metrics.RowsWritten(string(OpBulkInsert), n)
	r.notifier.Notify(m.Path)
	return n, nil
}

// Update changes the rows matched by selection and returns how many matched.
func (r *Router) Update(ctx context.Context, path string, values store.Values, selection string, args ...any) (n int, err error) {
	m, err := r.Resolve(path)
	if err != nil {
		return 0, err
	}
	defer r.observe(OpUpdate, m, time.Now(), &err)
	if n, err = m.Delegate.update(ctx, r.exec, m, values, selection, args); err != nil {
		return 0, err
	}
	r.metrics.RowsWritten(string(OpUpdate), n)
	r.notifier.Notify(m.Path)
	return n, nil
}

// Delete removes the rows matched by selection and returns how many were removed.
func (r *Router) Delete(ctx context.Context, path string, selection string, args ...any) (n int, err error) {
	m, err := r.Resolve(path)
	if err != nil {
		return 0, err
	}
	defer r.observe(OpDelete, m, time.Now(), &err)
	if n, err = m.Delegate.delete(ctx, r.exec, m, selection, args); err != nil {
		return 0, err
	}
	r.metrics.RowsWritten(string(OpDelete), n)
	r.notifier.Notify(m.Path)
	return n, nil
}

func (r *Router) observe(op Op, m Match, start time.Time, errp *error) {
	err := *errp
	r.metrics.Observe(string(op), m.Delegate.kind.String(), start, err)
	if err != nil {
		r.logger.Warn("Resource operation failed",
			zap.String("op", string(op)),
			zap.String("path", m.Path),
			zap.String("delegate", m.Delegate.kind.String()),
			zap.Error(err),
		)
	}
}
