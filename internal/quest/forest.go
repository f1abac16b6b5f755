package quest

// TreeNode is one card in the read-only hierarchy view. Wrappers are shared:
// a card with several parents is the same *TreeNode under each of them.
type TreeNode struct {
	ID       string
	Title    string
	IsAsset  bool
	Children []*TreeNode
}

// IsLeaf reports whether the node has no children.
func (t *TreeNode) IsLeaf() bool { return len(t.Children) == 0 }

// Clickable reports whether the view renders this node as a link to the
// asset detail handler instead of an expandable section.
func (t *TreeNode) Clickable() bool { return t.IsAsset }

// BuildForest reconstructs the hierarchy from flat nodes and edges.
//
// A node is a root iff no edge targets it; roots keep node order. Every edge
// whose endpoints both exist appends the target under the source, so a node
// with several parents appears under each one. Edges with a missing endpoint
// are skipped. Nodes that only sit on cycles have incoming edges and so are
// never roots; they don't show up unless a root reaches them.
func BuildForest(nodes []*Node, edges []Edge) []*TreeNode {
	wrappers := make(map[string]*TreeNode, len(nodes))
	for _, n := range nodes {
		wrappers[n.ID] = &TreeNode{ID: n.ID, Title: n.Title, IsAsset: n.IsAsset}
	}

	targeted := make(map[string]struct{}, len(edges))
	for _, e := range edges {
		targeted[e.Target] = struct{}{}
	}

	var roots []*TreeNode
	for _, n := range nodes {
		if _, ok := targeted[n.ID]; !ok {
			roots = append(roots, wrappers[n.ID])
		}
	}

	for _, e := range edges {
		parent, child := wrappers[e.Source], wrappers[e.Target]
		if parent == nil || child == nil {
			continue
		}
		parent.Children = append(parent.Children, child)
	}
	return roots
}

// Parents returns the source of every edge targeting nodeID, in edge order.
// Duplicate edges produce duplicate entries.
func Parents(nodeID string, edges []Edge) []string {
	var out []string
	for _, e := range edges {
		if e.Target == nodeID {
			out = append(out, e.Source)
		}
	}
	return out
}

// Walk visits t depth-first in pre-order. A node already on the current
// ancestor path is visited with cycle=true and not descended into. Returning
// false from fn skips that node's children.
func (t *TreeNode) Walk(fn func(n *TreeNode, depth int, cycle bool) bool) {
	t.walk(fn, 0, make(map[*TreeNode]bool))
}

func (t *TreeNode) walk(fn func(*TreeNode, int, bool) bool, depth int, path map[*TreeNode]bool) {
	if path[t] {
		fn(t, depth, true)
		return
	}
	if !fn(t, depth, false) {
		return
	}
	path[t] = true
	for _, c := range t.Children {
		c.walk(fn, depth+1, path)
	}
	delete(path, t)
}

// View is an acyclic copy of a TreeNode, safe to encode.
type View struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	IsAsset  bool    `json:"isAsset"`
	Cycle    bool    `json:"cycle,omitempty"`
	Children []*View `json:"children"`
}

// Detach copies a forest into Views, cutting each cycle at the node that
// closes it.
func Detach(roots []*TreeNode) []*View {
	out := make([]*View, 0, len(roots))
	for _, r := range roots {
		out = append(out, detach(r, make(map[*TreeNode]bool)))
	}
	return out
}

func detach(t *TreeNode, path map[*TreeNode]bool) *View {
	v := &View{ID: t.ID, Title: t.Title, IsAsset: t.IsAsset, Children: []*View{}}
	if path[t] {
		v.Cycle = true
		return v
	}
	path[t] = true
	for _, c := range t.Children {
		v.Children = append(v.Children, detach(c, path))
	}
	delete(path, t)
	return v
}
