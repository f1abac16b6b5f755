package quest

import "sort"

// Descendants returns every id reachable from nodeID by following edges
// source → target, excluding nodeID itself. A visited set bounds the walk, so
// cycles and diamonds terminate and each id is reported once.
//
// The closure is recomputed on every call in O(V+E); nothing is cached.
func Descendants(nodeID string, edges []Edge) map[string]struct{} {
	out := make(map[string][]string)
	for _, e := range edges {
		out[e.Source] = append(out[e.Source], e.Target)
	}

	found := make(map[string]struct{})
	visited := map[string]struct{}{nodeID: {}}
	stack := []string{nodeID}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, child := range out[cur] {
			if _, ok := visited[child]; ok {
				continue
			}
			visited[child] = struct{}{}
			found[child] = struct{}{}
			stack = append(stack, child)
		}
	}
	return found
}

// DescendantIDs is Descendants as a sorted slice.
func DescendantIDs(nodeID string, edges []Edge) []string {
	set := Descendants(nodeID, edges)
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
