// Package session owns the live state of one loaded world: its quest graph,
// the transient visibility map and the viewport. A Session is the single
// writer for that state; every method takes its lock, so the graph always
// sits between whole mutations when read.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gyaneshwarpardhi/questgraph/internal/asset"
	"github.com/gyaneshwarpardhi/questgraph/internal/event"
	"github.com/gyaneshwarpardhi/questgraph/internal/metrics"
	"github.com/gyaneshwarpardhi/questgraph/internal/quest"
	"github.com/gyaneshwarpardhi/questgraph/internal/storage"
)

var (
	// ErrRejected marks a disallowed transition: blank title, self loop,
	// or an edge leaving an asset card. Nothing was changed.
	ErrRejected         = errors.New("mutation rejected")
	ErrNoCard           = errors.New("card not found")
	ErrUnknownAsset     = errors.New("asset not registered for this world")
	ErrUnknownQuestType = errors.New("unknown quest type")
	ErrClosed           = errors.New("session closed")
)

// Session is one world's editing state.
type Session struct {
	world   string
	mu      sync.Mutex
	graph   *quest.Graph
	hidden  quest.Visibility
	vp      quest.Viewport
	palette func() *quest.Palette
	assets  asset.Registry
	saver   *storage.Debouncer
	writer  *storage.Writer
	closed  bool
	dirty   bool // any change since open

	saveMu sync.Mutex // keeps snapshots reaching the writer in the order taken
}

func newSession(world string, g *quest.Graph, vp quest.Viewport, m *Manager) *Session {
	s := &Session{
		world:   world,
		graph:   g,
		hidden:  quest.Visibility{},
		vp:      vp,
		palette: m.Palette,
		assets:  m.assets,
		writer:  m.writer,
	}
	s.saver = storage.NewDebouncer(m.debounce(), s.persist)
	g.OnChange(s.observe)
	return s
}

// observe runs under s.mu, on the goroutine that made the change.
func (s *Session) observe(c event.Change) {
	s.dirty = true
	metrics.Mutations.WithLabelValues(string(c.Kind)).Inc()
	if c.Kind == event.NodeRemoved {
		s.hidden.Forget(c.NodeID)
	}
	s.saver.Trigger()
}

func (s *Session) encode() ([]byte, bool) {
	s.mu.Lock()
	snap := s.graph.Snapshot(s.vp)
	s.mu.Unlock()

	data, err := storage.EncodeSnapshot(snap)
	if err != nil {
		slog.Error("snapshot encode failed", "world", s.world, "err", err)
		return nil, false
	}
	return data, true
}

// persist encodes the current state and hands it to the writer. It never
// waits for the write itself.
func (s *Session) persist() {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	data, ok := s.encode()
	if !ok {
		return
	}
	if !s.writer.Submit(storage.SaveJob{World: s.world, Data: data}) {
		slog.Warn("snapshot save dropped", "world", s.world)
	}
}

// World returns the world name.
func (s *Session) World() string { return s.world }

func (s *Session) lock() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	return nil
}

func rejected(op string) error {
	metrics.MutationsRejected.WithLabelValues(op).Inc()
	return fmt.Errorf("%s: %w", op, ErrRejected)
}

// AddCard creates a card of the given quest type (label or color).
func (s *Session) AddCard(title, questType string) (*quest.Node, error) {
	qt, ok := s.palette().Resolve(questType)
	if !ok {
		return nil, fmt.Errorf("%q: %w", questType, ErrUnknownQuestType)
	}
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	n, ok := s.graph.AddNode(title, qt.Color)
	if !ok {
		return nil, rejected("add_card")
	}
	return n, nil
}

// AddAssetCard creates a legacy asset-as-node card.
func (s *Session) AddAssetCard(title string) (*quest.Node, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	n, ok := s.graph.AddAssetNode(title)
	if !ok {
		return nil, rejected("add_asset_card")
	}
	return n, nil
}

// Connect adds a source → target edge between two existing cards.
func (s *Session) Connect(source, target string) (quest.Edge, error) {
	if err := s.lock(); err != nil {
		return quest.Edge{}, err
	}
	defer s.mu.Unlock()
	for _, id := range []string{source, target} {
		if s.graph.Node(id) == nil {
			return quest.Edge{}, fmt.Errorf("card %s: %w", id, ErrNoCard)
		}
	}
	e, ok := s.graph.AddEdge(source, target)
	if !ok {
		return quest.Edge{}, rejected("connect")
	}
	return e, nil
}

// DeleteCard removes a card together with its edges.
func (s *Session) DeleteCard(id string) error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()
	if !s.graph.RemoveNode(id) {
		return fmt.Errorf("card %s: %w", id, ErrNoCard)
	}
	return nil
}

// LinkAsset attaches a registered asset name to a card. linked is false when
// the card already carried it.
func (s *Session) LinkAsset(ctx context.Context, id, name string) (linked bool, err error) {
	known, err := asset.Contains(ctx, s.assets, s.world, name)
	if err != nil {
		return false, fmt.Errorf("checking asset %s: %w", name, err)
	}
	if !known {
		return false, fmt.Errorf("%q: %w", name, ErrUnknownAsset)
	}
	if err := s.lock(); err != nil {
		return false, err
	}
	defer s.mu.Unlock()
	if s.graph.Node(id) == nil {
		return false, fmt.Errorf("card %s: %w", id, ErrNoCard)
	}
	return s.graph.LinkAsset(id, name), nil
}

// CardPatch lists the card fields to change; nil fields are left alone.
type CardPatch struct {
	Title    *string         `json:"title,omitempty"`
	Text     *string         `json:"text,omitempty"`
	Position *quest.Position `json:"position,omitempty"`
}

// EditCard applies a patch. A blank title rejects the whole patch.
func (s *Session) EditCard(id string, p CardPatch) (*quest.Node, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	if s.graph.Node(id) == nil {
		return nil, fmt.Errorf("card %s: %w", id, ErrNoCard)
	}
	if p.Title != nil && !s.graph.SetTitle(id, *p.Title) {
		return nil, rejected("edit_card")
	}
	if p.Text != nil {
		s.graph.SetText(id, *p.Text)
	}
	if p.Position != nil {
		s.graph.Move(id, *p.Position)
	}
	return s.graph.Node(id), nil
}

// SetViewport records the canvas pan/zoom.
func (s *Session) SetViewport(vp quest.Viewport) error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()
	s.vp = vp
	s.dirty = true
	metrics.Mutations.WithLabelValues(string(event.ViewportMove)).Inc()
	s.saver.Trigger()
	return nil
}

// Toggle is the outcome of a descendant visibility toggle.
type Toggle struct {
	Hidden      bool     `json:"hidden"`
	Descendants []string `json:"descendants"`
}

// ToggleDescendants hides or shows the whole subtree under id, leaving id visible.
func (s *Session) ToggleDescendants(id string) (Toggle, error) {
	if err := s.lock(); err != nil {
		return Toggle{}, err
	}
	defer s.mu.Unlock()
	if s.graph.Node(id) == nil {
		return Toggle{}, fmt.Errorf("card %s: %w", id, ErrNoCard)
	}
	edges := s.graph.Edges()
	hidden, changed := s.hidden.ToggleDescendants(id, edges)
	if changed > 0 {
		metrics.VisibilityToggles.Inc()
	}
	return Toggle{Hidden: hidden, Descendants: quest.DescendantIDs(id, edges)}, nil
}

// Descendants lists every card reachable from id, sorted. allHidden tells the
// view whether to offer "show" or "hide".
func (s *Session) Descendants(id string) (ids []string, allHidden bool, err error) {
	if err := s.lock(); err != nil {
		return nil, false, err
	}
	defer s.mu.Unlock()
	if s.graph.Node(id) == nil {
		return nil, false, fmt.Errorf("card %s: %w", id, ErrNoCard)
	}
	edges := s.graph.Edges()
	return quest.DescendantIDs(id, edges), s.hidden.AllHidden(id, edges), nil
}

// View is what the canvas draws: visible cards and edges.
type View struct {
	Nodes    []*quest.Node  `json:"nodes"`
	Edges    []quest.Edge   `json:"edges"`
	Viewport quest.Viewport `json:"viewport"`
	Hidden   int            `json:"hidden"`
}

// Visible returns the filtered canvas contents.
func (s *Session) Visible() (View, error) {
	if err := s.lock(); err != nil {
		return View{}, err
	}
	defer s.mu.Unlock()
	all := s.graph.Nodes()
	nodes, edges := quest.Filter(all, s.graph.Edges(), s.hidden)
	return View{Nodes: nodes, Edges: edges, Viewport: s.vp, Hidden: len(all) - len(nodes)}, nil
}

// Forest returns the hierarchy view as an acyclic copy.
func (s *Session) Forest() ([]*quest.View, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	return quest.Detach(quest.BuildForest(s.graph.Nodes(), s.graph.Edges())), nil
}

// Parents lists the cards with an edge into id, one entry per edge.
func (s *Session) Parents(id string) ([]string, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	if s.graph.Node(id) == nil {
		return nil, fmt.Errorf("card %s: %w", id, ErrNoCard)
	}
	parents := quest.Parents(id, s.graph.Edges())
	if parents == nil {
		parents = []string{}
	}
	return parents, nil
}

// Snapshot returns the persistable state.
func (s *Session) Snapshot() (*quest.Snapshot, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	return s.graph.Snapshot(s.vp), nil
}

func (s *Session) setDebounce(ms int) {
	s.saver.SetDelay(msDuration(ms))
}

// close refuses further calls, then writes the final state and waits until
// the store has it, so a later Open of the same world reads it back.
func (s *Session) close() {
	s.mu.Lock()
	s.closed = true
	dirty := s.dirty
	s.mu.Unlock()
	s.saver.Stop()
	if !dirty {
		return
	}

	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	data, ok := s.encode()
	if !ok {
		return
	}
	if err := s.writer.Save(context.Background(), storage.SaveJob{World: s.world, Data: data}); err != nil {
		slog.Warn("final snapshot save failed", "world", s.world, "err", err)
	}
}
