package notify

import (
	"strings"
	"time"
)

// Change announces that data under Path was mutated.
type Change struct {
	Path string    `json:"path"`
	At   time.Time `json:"at"`
}

// Notifier receives one call per successful mutation. Implementations must not block.
type Notifier interface {
	Notify(path string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(path string)

func (f NotifierFunc) Notify(path string) { f(path) }

// Nop discards notifications.
type Nop struct{}

func (Nop) Notify(string) {}

type fanout []Notifier

func (f fanout) Notify(path string) {
	for _, n := range f {
		n.Notify(path)
	}
}

// Fanout delivers each notification to every non-nil notifier in order.
func Fanout(notifiers ...Notifier) Notifier {
	var out fanout
	for _, n := range notifiers {
		if n != nil {
			out = append(out, n)
		}
	}
	return out
}

// Matches reports whether path lies under prefix.
// An empty or "/" prefix matches everything.
func Matches(prefix, path string) bool {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" {
		return true
	}
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}
