package quest

import (
	"math/rand/v2"
	"strings"
	"time"

	"github.com/gyaneshwarpardhi/questgraph/internal/event"
)

// PositionFunc places a new card on the canvas.
type PositionFunc func() Position

// RandomPosition scatters new cards so they don't land exactly on top of each other.
func RandomPosition() Position {
	return Position{X: 100 + rand.Float64()*300, Y: 100 + rand.Float64()*300}
}

// Graph is the quest card store: the single source of truth for nodes and edges.
// It is not safe for concurrent use; the owning session serializes access.
type Graph struct {
	nodes     []*Node
	index     map[string]*Node
	edges     []Edge
	ids       IDGenerator
	place     PositionFunc
	observers []event.Observer
}

// Option configures a Graph.
type Option func(*Graph)

// WithIDs injects the id generator.
func WithIDs(ids IDGenerator) Option {
	return func(g *Graph) { g.ids = ids }
}

// WithPositions injects the placement function for new cards.
func WithPositions(fn PositionFunc) Option {
	return func(g *Graph) { g.place = fn }
}

func newGraph(opts []Option) *Graph {
	g := &Graph{index: make(map[string]*Node)}
	for _, o := range opts {
		o(g)
	}
	if g.ids == nil {
		g.ids = NewSequentialIDs()
	}
	if g.place == nil {
		g.place = RandomPosition
	}
	return g
}

// New returns a graph holding only the default "World" root card.
func New(opts ...Option) *Graph {
	g := newGraph(opts)
	g.insert(defaultRoot())
	return g
}

func defaultRoot() *Node {
	return &Node{
		ID:       DefaultRootID,
		Title:    DefaultRootTitle,
		Text:     DefaultRootText,
		Color:    DefaultRootColor,
		Assets:   []string{},
		Position: Position{X: 100, Y: 100},
	}
}

// OnChange registers an observer for accepted mutations.
func (g *Graph) OnChange(fn event.Observer) {
	g.observers = append(g.observers, fn)
}

func (g *Graph) emit(c event.Change) {
	c.OccurredAt = time.Now()
	for _, fn := range g.observers {
		fn(c)
	}
}

func (g *Graph) insert(n *Node) {
	g.nodes = append(g.nodes, n)
	g.index[n.ID] = n
}

// AddNode appends a new card. A blank title is refused and nothing changes.
func (g *Graph) AddNode(title, color string) (*Node, bool) {
	return g.addNode(title, color, false)
}

// AddAssetNode appends a legacy asset-as-node card. Such cards may only be
// edge targets, never sources.
func (g *Graph) AddAssetNode(title string) (*Node, bool) {
	return g.addNode(title, AssetNodeColor, true)
}

func (g *Graph) addNode(title, color string, isAsset bool) (*Node, bool) {
	if strings.TrimSpace(title) == "" {
		return nil, false
	}
	id := g.ids.NextID()
	for g.index[id] != nil {
		id = g.ids.NextID()
	}
	n := &Node{
		ID:       id,
		Title:    title,
		Text:     DefaultCardText,
		Color:    color,
		Assets:   []string{},
		IsAsset:  isAsset,
		Position: g.place(),
	}
	g.insert(n)
	g.emit(event.Change{Kind: event.NodeAdded, NodeID: id})
	return n.clone(), true
}

// AddEdge connects source → target. Self loops and edges originating at an
// asset node are refused. Duplicate edges are kept.
func (g *Graph) AddEdge(source, target string) (Edge, bool) {
	if source == target {
		return Edge{}, false
	}
	if n := g.index[source]; n != nil && n.IsAsset {
		return Edge{}, false
	}
	e := Edge{Source: source, Target: target}
	g.edges = append(g.edges, e)
	g.emit(event.Change{Kind: event.EdgeAdded, Source: source, Target: target})
	return e, true
}

// RemoveNode deletes the card and every edge touching it in one step.
func (g *Graph) RemoveNode(id string) bool {
	if g.index[id] == nil {
		return false
	}
	nodes := g.nodes[:0]
	for _, n := range g.nodes {
		if n.ID != id {
			nodes = append(nodes, n)
		}
	}
	g.nodes = nodes
	delete(g.index, id)

	edges := g.edges[:0]
	for _, e := range g.edges {
		if !e.Touches(id) {
			edges = append(edges, e)
		}
	}
	g.edges = edges
	g.emit(event.Change{Kind: event.NodeRemoved, NodeID: id})
	return true
}

// LinkAsset appends assetName to the card's asset list unless already present.
// Returns true only when the list changed.
func (g *Graph) LinkAsset(nodeID, assetName string) bool {
	n := g.index[nodeID]
	if n == nil || assetName == "" || n.HasAsset(assetName) {
		return false
	}
	n.Assets = append(n.Assets, assetName)
	g.emit(event.Change{Kind: event.AssetLinked, NodeID: nodeID, Asset: assetName})
	return true
}

// SetText replaces a card's body.
func (g *Graph) SetText(id, text string) bool {
	n := g.index[id]
	if n == nil {
		return false
	}
	n.Text = text
	g.emit(event.Change{Kind: event.NodeEdited, NodeID: id})
	return true
}

// SetTitle renames a card. Blank titles are refused.
func (g *Graph) SetTitle(id, title string) bool {
	n := g.index[id]
	if n == nil || strings.TrimSpace(title) == "" {
		return false
	}
	n.Title = title
	g.emit(event.Change{Kind: event.NodeEdited, NodeID: id})
	return true
}

// Move sets a card's canvas position.
func (g *Graph) Move(id string, p Position) bool {
	n := g.index[id]
	if n == nil {
		return false
	}
	n.Position = p
	g.emit(event.Change{Kind: event.NodeMoved, NodeID: id})
	return true
}

// Node returns a copy of the card, or nil.
func (g *Graph) Node(id string) *Node {
	n := g.index[id]
	if n == nil {
		return nil
	}
	return n.clone()
}

// Nodes returns copies of all cards in insertion order.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, len(g.nodes))
	for i, n := range g.nodes {
		out[i] = n.clone()
	}
	return out
}

// Edges returns a copy of the edge list.
func (g *Graph) Edges() []Edge {
	return append([]Edge(nil), g.edges...)
}

// NodeCount returns the number of cards.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of edges, duplicates included.
func (g *Graph) EdgeCount() int { return len(g.edges) }
