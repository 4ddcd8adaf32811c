package location

import (
	"cmp"
	"sync"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// nameCollator orders localized names; collate.Collator is not safe for concurrent use.
type nameCollator struct {
	mu sync.Mutex
	c  *collate.Collator
}

func newNameCollator(locale string) *nameCollator {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.Und
	}
	return &nameCollator{c: collate.New(tag, collate.Numeric)}
}

func (n *nameCollator) compare(a, b string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.c.CompareString(a, b)
}

// Compare orders two nodes of the tree: shallower first, then canonical zone
// order when both are zones, then by parents, then by localized name. Nodes
// lacking a name in the tree's locale compare equal at the last step.
func (t *Tree) Compare(a, b *Node) int {
	if a == b {
		return 0
	}
	if c := cmp.Compare(a.depth, b.depth); c != 0 {
		return c
	}
	if ra, ok := ZoneRank(a.uuid); ok {
		if rb, ok := ZoneRank(b.uuid); ok {
			if c := cmp.Compare(ra, rb); c != 0 {
				return c
			}
		}
	}
	if a.parent != nil && b.parent != nil {
		if c := t.Compare(a.parent, b.parent); c != 0 {
			return c
		}
	}
	na, okA := a.Name(t.locale)
	nb, okB := b.Name(t.locale)
	if !okA || !okB {
		return 0
	}
	return t.collator.compare(na, nb)
}
