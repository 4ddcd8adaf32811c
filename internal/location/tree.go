package location

import (
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"
)

// Options configures Build.
type Options struct {
	Locale string
	Logger *zap.Logger
}

// Tree is an immutable snapshot of the location hierarchy for one locale.
type Tree struct {
	root     *Node
	nodes    map[string]*Node
	order    []*Node
	locale   string
	collator *nameCollator
}

// Build assembles the hierarchy from the locations scan, the names scan and
// the per-location patient counts. Rows whose parent does not exist are
// dropped; duplicate ids, cycles and anything but exactly one root fail the build.
func Build(locations []Location, names []NameRow, counts map[string]int, opts Options) (*Tree, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	byUUID := make(map[string]Location, len(locations))
	byParent := make(map[string][]string)
	var roots []string
	for _, loc := range locations {
		if _, dup := byUUID[loc.UUID]; dup {
			return nil, &LocationFetchError{Err: fmt.Errorf("%w: %s", ErrDuplicateLocation, loc.UUID)}
		}
		if loc.ParentUUID == loc.UUID {
			return nil, &LocationFetchError{Err: fmt.Errorf("%w: %s is its own parent", ErrLocationCycle, loc.UUID)}
		}
		byUUID[loc.UUID] = loc
		if loc.ParentUUID == "" {
			roots = append(roots, loc.UUID)
		} else {
			byParent[loc.ParentUUID] = append(byParent[loc.ParentUUID], loc.UUID)
		}
	}
	if len(roots) != 1 {
		return nil, &NoRootLocationError{Roots: len(roots)}
	}

	nameMaps := make(map[string]map[string]string, len(byUUID))
	for _, n := range names {
		if _, ok := byUUID[n.LocationUUID]; !ok {
			logger.Debug("Skipping name of unknown location", zap.String("location_uuid", n.LocationUUID))
			continue
		}
		m := nameMaps[n.LocationUUID]
		if m == nil {
			m = make(map[string]string)
			nameMaps[n.LocationUUID] = m
		}
		m[n.Locale] = n.Name
	}
	newNode := func(uuid string, parent *Node) *Node {
		node := &Node{uuid: uuid, names: nameMaps[uuid], parent: parent}
		if node.names == nil {
			node.names = map[string]string{}
		}
		if parent != nil {
			node.depth = parent.depth + 1
			parent.children = append(parent.children, node)
		}
		return node
	}

	t := &Tree{
		nodes:    make(map[string]*Node, len(byUUID)),
		locale:   opts.Locale,
		collator: newNameCollator(opts.Locale),
	}
	t.root = newNode(roots[0], nil)
	t.nodes[t.root.uuid] = t.root
	queue := []*Node{t.root}
	for len(queue) > 0 {
		parent := queue[0]
		queue = queue[1:]
		for _, childUUID := range byParent[parent.uuid] {
			child := newNode(childUUID, parent)
			t.nodes[childUUID] = child
			queue = append(queue, child)
		}
	}

	if err := t.checkUnreached(byUUID, logger); err != nil {
		return nil, err
	}

	for uuid, n := range counts {
		node, ok := t.nodes[uuid]
		if !ok {
			logger.Debug("Ignoring patients in unknown location", zap.String("location_uuid", uuid), zap.Int("patients", n))
			continue
		}
		node.directCount = n
	}

	t.sortChildren(t.root)
	t.order = t.Subtree(t.root)
	return t, nil
}

// checkUnreached drops locations hanging off a missing parent and fails on cycles.
func (t *Tree) checkUnreached(byUUID map[string]Location, logger *zap.Logger) error {
	for uuid, loc := range byUUID {
		if _, ok := t.nodes[uuid]; ok {
			continue
		}
		seen := map[string]bool{uuid: true}
		cur := loc
		for {
			parent, ok := byUUID[cur.ParentUUID]
			if !ok {
				logger.Warn("Dropping location with missing ancestor",
					zap.String("location_uuid", uuid),
					zap.String("missing_parent_uuid", cur.ParentUUID),
				)
				break
			}
			if seen[parent.UUID] {
				return &LocationFetchError{Err: fmt.Errorf("%w through %s", ErrLocationCycle, parent.UUID)}
			}
			seen[parent.UUID] = true
			cur = parent
		}
	}
	return nil
}

func (t *Tree) sortChildren(n *Node) {
	slices.SortStableFunc(n.children, t.Compare)
	for _, c := range n.children {
		t.sortChildren(c)
	}
}

// Root returns the facility node.
func (t *Tree) Root() *Node { return t.root }

// Locale is the locale used for sibling ordering.
func (t *Tree) Locale() string { return t.locale }

// Len returns the number of nodes.
func (t *Tree) Len() int { return len(t.nodes) }

// NodeByUUID returns nil when uuid is not in the tree.
func (t *Tree) NodeByUUID(uuid string) *Node { return t.nodes[uuid] }

// Nodes returns every node in depth-first sibling order.
func (t *Tree) Nodes() []*Node { return append([]*Node(nil), t.order...) }

// Children returns the children of n in sibling order.
func (t *Tree) Children(n *Node) []*Node { return n.Children() }

// AncestorAtDepth walks up from n to the ancestor at depth.
func (t *Tree) AncestorAtDepth(n *Node, depth int) (*Node, error) {
	if depth < 0 || depth > n.depth {
		return nil, fmt.Errorf("%w: %d for node %s at depth %d", ErrInvalidDepth, depth, n.uuid, n.depth)
	}
	for n.depth > depth {
		n = n.parent
	}
	return n, nil
}

// NodesAtDepth returns every node at exactly depth, sorted.
func (t *Tree) NodesAtDepth(depth int) []*Node {
	var out []*Node
	for _, n := range t.order {
		if n.depth == depth {
			out = append(out, n)
		}
	}
	slices.SortStableFunc(out, t.Compare)
	return out
}

// Zones returns the zone level nodes.
func (t *Tree) Zones() []*Node { return t.NodesAtDepth(DepthZone) }

// Tents returns the tent level nodes.
func (t *Tree) Tents() []*Node { return t.NodesAtDepth(DepthTent) }

// ZoneOf returns the zone containing uuid, or nil when uuid is unknown or above zone level.
func (t *Tree) ZoneOf(uuid string) *Node { return t.ancestorOf(uuid, DepthZone) }

// TentOf returns the tent containing uuid, or nil when uuid is unknown or above tent level.
func (t *Tree) TentOf(uuid string) *Node { return t.ancestorOf(uuid, DepthTent) }

func (t *Tree) ancestorOf(uuid string, depth int) *Node {
	n := t.nodes[uuid]
	if n == nil || n.depth < depth {
		return nil
	}
	a, _ := t.AncestorAtDepth(n, depth)
	return a
}

// Subtree returns n and all its descendants in depth-first sibling order.
func (t *Tree) Subtree(n *Node) []*Node {
	out := []*Node{n}
	for _, c := range n.children {
		out = append(out, t.Subtree(c)...)
	}
	return out
}

// SortClause returns a SQL CASE expression ranking field by tree order,
// for ordering rows that reference locations. Unknown values sort last.
func (t *Tree) SortClause(field string) string {
	var b strings.Builder
	b.WriteString("CASE ")
	b.WriteString(field)
	for i, n := range t.order {
		fmt.Fprintf(&b, " WHEN '%s' THEN %d", strings.ReplaceAll(n.uuid, "'", "''"), i)
	}
	fmt.Fprintf(&b, " ELSE %d END", len(t.order))
	return b.String()
}
