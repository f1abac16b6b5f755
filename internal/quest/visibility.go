package quest

// Visibility maps node id → hidden. It is presentation state only and is
// never persisted; a fresh map means everything is shown.
type Visibility map[string]bool

// Hidden reports whether id is currently hidden.
func (v Visibility) Hidden(id string) bool { return v[id] }

// Forget drops any entry for id.
func (v Visibility) Forget(id string) { delete(v, id) }

// AllHidden reports whether nodeID has descendants and all of them are hidden.
func (v Visibility) AllHidden(nodeID string, edges []Edge) bool {
	return v.allHidden(Descendants(nodeID, edges))
}

func (v Visibility) allHidden(ds map[string]struct{}) bool {
	if len(ds) == 0 {
		return false
	}
	for id := range ds {
		if !v[id] {
			return false
		}
	}
	return true
}

// ToggleDescendants hides every descendant of nodeID, or shows them all if
// they were all hidden already. nodeID itself is never touched. It returns
// the new hidden state and how many ids it set; zero means nothing to toggle.
func (v Visibility) ToggleDescendants(nodeID string, edges []Edge) (hidden bool, changed int) {
	ds := Descendants(nodeID, edges)
	if len(ds) == 0 {
		return false, 0
	}
	hidden = !v.allHidden(ds)
	for id := range ds {
		v[id] = hidden
	}
	return hidden, len(ds)
}

// Filter returns the nodes that are not hidden and the edges with neither
// endpoint hidden.
func Filter(nodes []*Node, edges []Edge, v Visibility) ([]*Node, []Edge) {
	vn := make([]*Node, 0, len(nodes))
	for _, n := range nodes {
		if !v[n.ID] {
			vn = append(vn, n)
		}
	}
	ve := make([]Edge, 0, len(edges))
	for _, e := range edges {
		if !v[e.Source] && !v[e.Target] {
			ve = append(ve, e)
		}
	}
	return vn, ve
}
