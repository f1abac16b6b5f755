// Package asset holds the named characters, locations and items a world's
// quest cards can reference. Cards link assets by name only.
package asset

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Kind is an asset category.
type Kind string

const (
	KindCharacter Kind = "character"
	KindLocation  Kind = "location"
	KindItem      Kind = "item"
)

// ParseKind accepts a kind name or its storage key ("asset-npc", ...).
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "character", "npc", "asset-npc":
		return KindCharacter, nil
	case "location", "asset-location":
		return KindLocation, nil
	case "item", "asset-item":
		return KindItem, nil
	}
	return "", fmt.Errorf("unknown asset kind %q", s)
}

// Card is a note attached to an asset.
type Card struct {
	Title string `json:"title,omitempty" yaml:"title,omitempty"`
	Text  string `json:"text,omitempty" yaml:"text,omitempty"`
}

// Asset is a named world entity.
type Asset struct {
	World string `json:"world"`
	Name  string `json:"name"`
	Kind  Kind   `json:"type"`
	Cards []Card `json:"cards"`
}

// ErrNotFound is returned when a world has no asset with the requested name.
var ErrNotFound = errors.New("asset not found")

// Registry looks up a world's assets.
type Registry interface {
	// Names lists asset names for the world, sorted.
	Names(ctx context.Context, world string) ([]string, error)
	Get(ctx context.Context, world, name string) (*Asset, error)
	Put(ctx context.Context, a *Asset) error
}

// Validate checks required fields.
func (a *Asset) Validate() error {
	if a.World == "" {
		return errors.New("asset: world is required")
	}
	if strings.TrimSpace(a.Name) == "" {
		return errors.New("asset: name is required")
	}
	if _, err := ParseKind(string(a.Kind)); err != nil {
		return fmt.Errorf("asset %s: %w", a.Name, err)
	}
	return nil
}

// WorldName derives a world name from an uploaded map file name by dropping
// the last extension. A name without an extension is returned unchanged.
func WorldName(fileName string) string {
	base := filepath.Base(fileName)
	ext := filepath.Ext(base)
	if trimmed := strings.TrimSuffix(base, ext); trimmed != "" {
		return trimmed
	}
	return base
}

// MemoryRegistry is an in-process Registry.
type MemoryRegistry struct {
	mu     sync.RWMutex
	worlds map[string]map[string]*Asset
}

// NewMemoryRegistry creates an empty registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{worlds: make(map[string]map[string]*Asset)}
}

func (r *MemoryRegistry) Names(_ context.Context, world string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.worlds[world]))
	for name := range r.worlds[world] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (r *MemoryRegistry) Get(_ context.Context, world, name string) (*Asset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.worlds[world][name]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", world, name, ErrNotFound)
	}
	c := *a
	c.Cards = append([]Card{}, a.Cards...)
	return &c, nil
}

func (r *MemoryRegistry) Put(_ context.Context, a *Asset) error {
	if err := a.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.worlds[a.World] == nil {
		r.worlds[a.World] = make(map[string]*Asset)
	}
	c := *a
	c.Kind, _ = ParseKind(string(a.Kind))
	c.Cards = append([]Card(nil), a.Cards...)
	r.worlds[a.World][a.Name] = &c
	return nil
}

// Contains reports whether name is one of the world's assets.
func Contains(ctx context.Context, r Registry, world, name string) (bool, error) {
	names, err := r.Names(ctx, world)
	if err != nil {
		return false, err
	}
	i := sort.SearchStrings(names, name)
	return i < len(names) && names[i] == name, nil
}
