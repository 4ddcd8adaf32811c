package location

import (
	"context"
	"sync"
	"sync/atomic"

	"wisefido-records/internal/notify"

	"go.uber.org/zap"
)

// WatchPrefixes are the resource paths whose changes invalidate the trees.
var WatchPrefixes = []string{"/locations", "/location-names", "/patients"}

type snapshot map[string]*Tree

// Holder owns the current trees, one per requested locale. Readers get the
// snapshot of the last successful build; rebuilds replace it atomically.
type Holder struct {
	loader *Loader
	logger *zap.Logger

	current atomic.Pointer[snapshot]
	mu      sync.Mutex
}

func NewHolder(loader *Loader, logger *zap.Logger) *Holder {
	h := &Holder{loader: loader, logger: logger}
	h.current.Store(&snapshot{})
	return h
}

// Current returns the held tree for locale without loading; nil when none.
func (h *Holder) Current(locale string) *Tree {
	return (*h.current.Load())[locale]
}

// Get returns the tree for locale, loading it on first use.
func (h *Holder) Get(ctx context.Context, locale string) (*Tree, error) {
	if t := h.Current(locale); t != nil {
		return t, nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if t := h.Current(locale); t != nil {
		return t, nil
	}
	t, err := h.loader.Load(ctx, locale)
	if err != nil {
		return nil, err
	}
	next := h.copySnapshot()
	next[locale] = t
	h.current.Store(&next)
	return t, nil
}

// Patients returns the tree for locale and the patients in its order.
func (h *Holder) Patients(ctx context.Context, locale string) (*Tree, []Patient, error) {
	tree, err := h.Get(ctx, locale)
	if err != nil {
		return nil, nil, err
	}
	patients, err := h.loader.Patients(ctx, tree)
	if err != nil {
		return nil, nil, err
	}
	return tree, patients, nil
}

// Refresh rebuilds every held locale. On failure the previous trees stay in place.
func (h *Holder) Refresh(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	prev := *h.current.Load()
	next := make(snapshot, len(prev))
	for locale := range prev {
		t, err := h.loader.Load(ctx, locale)
		if err != nil {
			return err
		}
		next[locale] = t
	}
	h.current.Store(&next)
	return nil
}

// Watch refreshes on every burst of changes until ctx ends or changes closes.
func (h *Holder) Watch(ctx context.Context, changes <-chan notify.Change) {
	for {
		select {
		case <-ctx.Done():
			return
		case c, ok := <-changes:
			if !ok {
				return
			}
			drain(changes)
			if err := h.Refresh(ctx); err != nil {
				h.logger.Error("Failed to rebuild location tree", zap.String("trigger", c.Path), zap.Error(err))
			}
		}
	}
}

func drain(changes <-chan notify.Change) {
	for {
		select {
		case _, ok := <-changes:
			if !ok {
				return
			}
		default:
			return
		}
	}
}

func (h *Holder) copySnapshot() snapshot {
	prev := *h.current.Load()
	next := make(snapshot, len(prev)+1)
	for k, v := range prev {
		next[k] = v
	}
	return next
}
