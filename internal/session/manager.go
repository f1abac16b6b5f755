package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gyaneshwarpardhi/questgraph/internal/asset"
	"github.com/gyaneshwarpardhi/questgraph/internal/config"
	"github.com/gyaneshwarpardhi/questgraph/internal/metrics"
	"github.com/gyaneshwarpardhi/questgraph/internal/quest"
	"github.com/gyaneshwarpardhi/questgraph/internal/storage"
)

// ErrBadWorld is returned for an empty or path-like world name.
var ErrBadWorld = errors.New("invalid world name")

// Options configures a Manager.
type Options struct {
	SaveDebounceMs int
	IDStrategy     string
	QuestTypes     []quest.QuestType
	// Positions overrides random card placement; tests pin it.
	Positions quest.PositionFunc
}

// OptionsFrom derives Manager options from a loaded config.
func OptionsFrom(cfg *config.Config) Options {
	return Options{
		SaveDebounceMs: cfg.Storage.SaveDebounceMs,
		IDStrategy:     cfg.Graph.IDStrategy,
		QuestTypes:     cfg.QuestTypes,
	}
}

// Manager keeps one Session per open world.
type Manager struct {
	store  storage.Store
	assets asset.Registry
	writer *storage.Writer

	idStrategy string
	positions  quest.PositionFunc
	debounceMs atomic.Int64
	palette    atomic.Pointer[quest.Palette]

	mu       sync.Mutex
	sessions map[string]*Session
	closing  map[string]chan struct{} // closed once the final save is stored
}

// NewManager wires sessions to a snapshot store, an asset registry and the
// background writer.
func NewManager(store storage.Store, assets asset.Registry, writer *storage.Writer, opts Options) *Manager {
	m := &Manager{
		store:      store,
		assets:     assets,
		writer:     writer,
		idStrategy: opts.IDStrategy,
		positions:  opts.Positions,
		sessions:   make(map[string]*Session),
		closing:    make(map[string]chan struct{}),
	}
	m.debounceMs.Store(int64(opts.SaveDebounceMs))
	m.palette.Store(quest.NewPalette(opts.QuestTypes))
	return m
}

func msDuration(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

func (m *Manager) debounce() time.Duration {
	return msDuration(int(m.debounceMs.Load()))
}

// Palette returns the current quest type palette.
func (m *Manager) Palette() *quest.Palette {
	return m.palette.Load()
}

// Apply takes the hot-reloadable parts of a new config: the palette and the
// save debounce. Storage and id settings need a restart.
func (m *Manager) Apply(cfg *config.Config) {
	m.palette.Store(quest.NewPalette(cfg.QuestTypes))
	m.debounceMs.Store(int64(cfg.Storage.SaveDebounceMs))

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		s.setDebounce(cfg.Storage.SaveDebounceMs)
	}
}

// ValidWorld reports whether name can be used as a world key.
func ValidWorld(name string) bool {
	return strings.TrimSpace(name) != "" && !strings.ContainsAny(name, `/\`)
}

// Open returns the session for world, loading it on first use. A missing or
// malformed saved snapshot yields the default world; a store failure is
// returned as an error so the saved data is never overwritten blindly.
// Opening a world that is still closing waits for its final save.
func (m *Manager) Open(ctx context.Context, world string) (*Session, error) {
	if !ValidWorld(world) {
		return nil, fmt.Errorf("%q: %w", world, ErrBadWorld)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for {
		done, ok := m.closing[world]
		if !ok {
			break
		}
		m.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			m.mu.Lock()
			return nil, ctx.Err()
		}
		m.mu.Lock()
	}
	if s, ok := m.sessions[world]; ok {
		return s, nil
	}

	g, vp, err := m.load(ctx, world)
	if err != nil {
		return nil, err
	}
	s := newSession(world, g, vp, m)
	m.sessions[world] = s
	metrics.OpenWorlds.Set(float64(len(m.sessions)))
	slog.Info("world opened", "world", world, "nodes", g.NodeCount(), "edges", g.EdgeCount())
	return s, nil
}

func (m *Manager) graphOptions() []quest.Option {
	opts := []quest.Option{quest.WithIDs(quest.NewIDGenerator(m.idStrategy))}
	if m.positions != nil {
		opts = append(opts, quest.WithPositions(m.positions))
	}
	return opts
}

func (m *Manager) load(ctx context.Context, world string) (*quest.Graph, quest.Viewport, error) {
	data, err := m.store.Load(ctx, world)
	if errors.Is(err, storage.ErrNotFound) {
		metrics.SnapshotLoads.WithLabelValues("missing").Inc()
		return quest.New(m.graphOptions()...), quest.Viewport{}, nil
	}
	if err != nil {
		metrics.SnapshotLoads.WithLabelValues("error").Inc()
		return nil, quest.Viewport{}, fmt.Errorf("loading world %s: %w", world, err)
	}

	snap, err := storage.DecodeSnapshot(data)
	if err != nil {
		metrics.SnapshotLoads.WithLabelValues("malformed").Inc()
		slog.Warn("saved world unreadable, starting from default", "world", world, "err", err)
		return quest.New(m.graphOptions()...), quest.Viewport{}, nil
	}
	g, ok := quest.Restore(snap, m.graphOptions()...)
	if !ok {
		metrics.SnapshotLoads.WithLabelValues("malformed").Inc()
		return g, quest.Viewport{}, nil
	}
	metrics.SnapshotLoads.WithLabelValues("restored").Inc()
	return g, snap.Viewport, nil
}

// Get returns an already open session.
func (m *Manager) Get(world string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[world]
	return s, ok
}

// Close forgets one world after its final snapshot is stored. It reports
// whether the world was open.
func (m *Manager) Close(world string) bool {
	m.mu.Lock()
	s, ok := m.sessions[world]
	if !ok {
		m.mu.Unlock()
		return false
	}
	done := make(chan struct{})
	delete(m.sessions, world)
	m.closing[world] = done
	metrics.OpenWorlds.Set(float64(len(m.sessions)))
	m.mu.Unlock()

	s.close()

	m.mu.Lock()
	delete(m.closing, world)
	m.mu.Unlock()
	close(done)
	return true
}

// CloseAll closes every open world, one final save each.
func (m *Manager) CloseAll() {
	for _, w := range m.Worlds() {
		m.Close(w)
	}
}

// Worlds lists open worlds, sorted.
func (m *Manager) Worlds() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.sessions))
	for w := range m.sessions {
		out = append(out, w)
	}
	sort.Strings(out)
	return out
}
