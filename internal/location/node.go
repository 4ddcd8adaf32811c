package location

// Location is one row of the locations scan joined with its names.
// ParentUUID is empty for the root.
type Location struct {
	UUID       string
	ParentUUID string
	Names      map[string]string
}

// NameRow is one row of the location names scan.
type NameRow struct {
	LocationUUID string
	Locale       string
	Name         string
}

// Node is a location inside a built tree. Nodes are immutable once the tree is built.
type Node struct {
	uuid        string
	names       map[string]string
	parent      *Node
	children    []*Node
	depth       int
	directCount int
}

func (n *Node) UUID() string { return n.uuid }

// Parent returns nil for the root.
func (n *Node) Parent() *Node { return n.parent }

// Depth is the distance from the root.
func (n *Node) Depth() int { return n.depth }

// Name returns the localized name in locale.
func (n *Node) Name(locale string) (string, bool) {
	name, ok := n.names[locale]
	return name, ok && name != ""
}

// Names returns a copy of the localized names.
func (n *Node) Names() map[string]string {
	out := make(map[string]string, len(n.names))
	for k, v := range n.names {
		out[k] = v
	}
	return out
}

// Children returns the children in sibling order.
func (n *Node) Children() []*Node {
	return append([]*Node(nil), n.children...)
}

// DirectPatientCount counts patients assigned exactly to this node.
func (n *Node) DirectPatientCount() int { return n.directCount }

// PatientCount counts patients assigned to this node or any descendant.
func (n *Node) PatientCount() int {
	total := n.directCount
	for _, c := range n.children {
		total += c.PatientCount()
	}
	return total
}

// IsZone reports whether the node is one of the well-known zones.
func (n *Node) IsZone() bool { return IsZone(n.uuid) }
