package dtb

// StaticTree is an in-memory Tree built from literal node tables. It is
// the collaborator implementation used by tests and by configurations
// that declare their hardware inline rather than shipping a compiled
// device-tree blob.
type StaticTree struct {
	nodes map[string]*StaticNode
}

// StaticNode is an in-memory device node.
type StaticNode struct {
	NodeName string
	Ranges   []Range
	Irqs     []uint32
}

// Name implements Node.
func (n *StaticNode) Name() string { return n.NodeName }

// Reg implements Node.
func (n *StaticNode) Reg() []Range { return n.Ranges }

// Interrupts implements Node.
func (n *StaticNode) Interrupts() []uint32 { return n.Irqs }

// NewStaticTree creates a tree from a path-to-node table.
func NewStaticTree(nodes map[string]*StaticNode) *StaticTree {
	return &StaticTree{nodes: nodes}
}

// Node implements Tree.
func (t *StaticTree) Node(path string) (Node, bool) {
	n, ok := t.nodes[path]
	if !ok {
		return nil, false
	}
	return n, true
}
