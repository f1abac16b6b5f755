package quest

import (
	"errors"
	"fmt"
)

// Snapshot is the persisted shape of a world's flow canvas.
type Snapshot struct {
	Nodes    []*Node  `json:"nodes" yaml:"nodes"`
	Edges    []Edge   `json:"edges" yaml:"edges"`
	Viewport Viewport `json:"viewport" yaml:"viewport"`
}

// Validate reports structural problems that make a snapshot unusable.
// Dangling edges are not a problem.
func (s *Snapshot) Validate() error {
	if s == nil {
		return errors.New("snapshot: nil")
	}
	if len(s.Nodes) == 0 {
		return errors.New("snapshot: no nodes")
	}
	seen := make(map[string]struct{}, len(s.Nodes))
	for i, n := range s.Nodes {
		if n == nil || n.ID == "" {
			return fmt.Errorf("snapshot: nodes[%d]: id is required", i)
		}
		if _, dup := seen[n.ID]; dup {
			return fmt.Errorf("snapshot: duplicate node id %q", n.ID)
		}
		seen[n.ID] = struct{}{}
	}
	return nil
}

// Snapshot captures the graph with the given viewport.
func (g *Graph) Snapshot(vp Viewport) *Snapshot {
	return &Snapshot{Nodes: g.Nodes(), Edges: g.Edges(), Viewport: vp}
}

// Restore rebuilds a graph from a snapshot. An invalid snapshot yields the
// default graph, and ok is false. Numeric ids found in the snapshot advance a
// sequential generator so new cards never reuse them.
func Restore(s *Snapshot, opts ...Option) (g *Graph, ok bool) {
	if err := s.Validate(); err != nil {
		return New(opts...), false
	}
	g = newGraph(opts)
	seq, _ := g.ids.(*SequentialIDs)
	for _, n := range s.Nodes {
		c := n.clone()
		g.insert(c)
		if seq != nil {
			seq.Advance(c.ID)
		}
	}
	g.edges = append(g.edges, s.Edges...)
	return g, true
}
