package notify

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type subscription struct {
	prefixes []string
	ch       chan Change
}

// Hub fans changes out to in-process subscribers over buffered channels.
// A full subscriber buffer drops the change rather than blocking the writer.
type Hub struct {
	mu      sync.RWMutex
	subs    map[string]*subscription
	logger  *zap.Logger
	dropped atomic.Int64
	now     func() time.Time
}

// NewHub creates an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		subs:   make(map[string]*subscription),
		logger: logger,
		now:    time.Now,
	}
}

// Subscribe returns a channel receiving changes under any of prefixes and a
// cancel function that unsubscribes and closes the channel.
func (h *Hub) Subscribe(buffer int, prefixes ...string) (<-chan Change, func()) {
	if buffer < 1 {
		buffer = 1
	}
	if len(prefixes) == 0 {
		prefixes = []string{""}
	}
	id := uuid.NewString()
	sub := &subscription{prefixes: prefixes, ch: make(chan Change, buffer)}

	h.mu.Lock()
	h.subs[id] = sub
	h.mu.Unlock()

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(sub.ch)
		})
	}
}

// Notify implements Notifier.
func (h *Hub) Notify(path string) {
	change := Change{Path: path, At: h.now()}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subs {
		if !sub.matches(path) {
			continue
		}
		select {
		case sub.ch <- change:
		default:
			h.dropped.Add(1)
			h.logger.Warn("Change subscriber is full, dropping notification", zap.String("path", path))
		}
	}
}

// Subscribers returns the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Dropped returns how many deliveries were dropped on full buffers.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

func (s *subscription) matches(path string) bool {
	for _, p := range s.prefixes {
		if Matches(p, path) {
			return true
		}
	}
	return false
}
